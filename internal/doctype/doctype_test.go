package doctype

import "testing"

func TestFromContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        Kind
	}{
		{"application/pdf", PDF},
		{"application/pdf; charset=binary", PDF},
		{"text/html; charset=utf-8", HTML},
		{"TEXT/HTML", HTML},
		{"application/msword", DOC},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", DOCX},
		{"application/octet-stream", Unknown},
		{"", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			if got := FromContentType(tt.contentType); got != tt.want {
				t.Errorf("FromContentType(%q) = %q, want %q", tt.contentType, got, tt.want)
			}
		})
	}
}

func TestFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want Kind
	}{
		{"https://drc.gd.gov.cn/attachment/a.PDF", PDF},
		{"https://drc.gd.gov.cn/attachment/a.docx?download=1", DOCX},
		{"https://drc.gd.gov.cn/attachment/a.doc", DOC},
		{"https://www.gd.gov.cn/zwgk/content/post_1.html", HTML},
		{"https://www.gd.gov.cn/zwgk/index.shtml", HTML},
		{"https://www.gd.gov.cn/zwgk/", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := FromURL(tt.url); got != tt.want {
				t.Errorf("FromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    Kind
	}{
		{"pdf magic", []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj"), PDF},
		{"html document", []byte("<!DOCTYPE html><html><head><title>通知</title></head><body></body></html>"), HTML},
		{"plain text", []byte("关于印发光伏项目管理办法的通知"), Unknown},
		{"empty", nil, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.content); got != tt.want {
				t.Errorf("Sniff() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetect_Precedence(t *testing.T) {
	pdf := []byte("%PDF-1.4\n")

	if got := Detect("https://x.gov.cn/a.html", "application/pdf", nil); got != PDF {
		t.Errorf("content type should win, got %q", got)
	}
	if got := Detect("https://x.gov.cn/a.docx", "application/octet-stream", pdf); got != DOCX {
		t.Errorf("extension should win over sniffing, got %q", got)
	}
	if got := Detect("https://x.gov.cn/download?id=7", "application/octet-stream", pdf); got != PDF {
		t.Errorf("sniffing should be the last resort, got %q", got)
	}
}

func TestKind_Helpers(t *testing.T) {
	if !PDF.Supported() || Unknown.Supported() {
		t.Error("Supported() mismatch")
	}
	if PDF.Ext() != "pdf" || Unknown.Ext() != "bin" {
		t.Error("Ext() mismatch")
	}
	if HTML.MIME() != "text/html" || Unknown.MIME() != "application/octet-stream" {
		t.Error("MIME() mismatch")
	}
}
