package extract

import (
	"strings"
	"testing"
)

func TestConvertHTML(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		contains []string // Expected substrings in output
	}{
		{
			name: "converts headings",
			html: `<html><body><h1>广东省光伏发电项目并网管理办法</h1><h2>第一章 总则</h2></body></html>`,
			contains: []string{
				"# 广东省光伏发电项目并网管理办法",
				"## 第一章 总则",
			},
		},
		{
			name: "keeps paragraphs",
			html: `<html><body><p>第一条 为规范并网管理，制定本办法。</p><p>第二条 本办法适用于全省。</p></body></html>`,
			contains: []string{
				"第一条 为规范并网管理，制定本办法。",
				"第二条 本办法适用于全省。",
			},
		},
		{
			name: "converts lists",
			html: `<html><body><ul><li>项目备案文件</li><li>接入系统方案</li></ul></body></html>`,
			contains: []string{
				"项目备案文件",
				"接入系统方案",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ConvertHTML(tt.html)
			if err != nil {
				t.Fatalf("ConvertHTML() error = %v", err)
			}

			for _, expected := range tt.contains {
				if !strings.Contains(result, expected) {
					t.Errorf("expected output to contain %q, got:\n%s", expected, result)
				}
			}
		})
	}
}

func TestConvertHTML_EmptyInput(t *testing.T) {
	result, err := ConvertHTML("")
	if err != nil {
		t.Fatalf("ConvertHTML() error = %v", err)
	}
	if result != "" {
		t.Errorf("ConvertHTML(\"\") = %q, want empty", result)
	}
}

func TestStripTags(t *testing.T) {
	page := `<html><head><title>通知</title><style>p{color:red}</style></head>
<body><script>var x = "不应出现";</script>
<div>关于印发<b>光伏</b>项目管理办法的通知</div><p>自2024年6月1日起施行。</p></body></html>`

	got := StripTags(page)

	for _, want := range []string{"关于印发光伏项目管理办法的通知", "自2024年6月1日起施行。"} {
		if !strings.Contains(got, want) {
			t.Errorf("StripTags() missing %q, got:\n%s", want, got)
		}
	}
	for _, unwanted := range []string{"不应出现", "color:red", "<b>", "通知\n关于"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("StripTags() should not contain %q, got:\n%s", unwanted, got)
		}
	}
}

func TestHTMLTitle(t *testing.T) {
	page := `<html><head><title> 广东省能源局关于光伏并网的通知 </title></head><body><p>Content</p></body></html>`

	if got, want := HTMLTitle(page), "广东省能源局关于光伏并网的通知"; got != want {
		t.Errorf("HTMLTitle() = %q, want %q", got, want)
	}
}

func TestHTMLTitle_NoTitle(t *testing.T) {
	if title := HTMLTitle(`<html><body><p>No title here</p></body></html>`); title != "" {
		t.Errorf("HTMLTitle() should return empty for no title, got %q", title)
	}
}
