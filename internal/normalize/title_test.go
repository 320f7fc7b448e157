package normalize

import (
	"strings"
	"testing"
)

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{
			name:   "notice wrapping measures",
			text:   "广东省发展和改革委员会\n关于印发《广东省光伏发电项目并网管理办法》的通知\n各地级以上市发展改革局：",
			want:   "广东省光伏发电项目并网管理办法的通知",
			wantOK: true,
		},
		{
			name:   "skips short marker lines",
			text:   "通知\n\n山东省新型储能项目管理规定",
			want:   "山东省新型储能项目管理规定",
			wantOK: true,
		},
		{
			name:   "no marker",
			text:   "第一章 总则\n第一条 为了规范市场秩序",
			wantOK: false,
		},
		{
			name:   "marker beyond ten lines",
			text:   strings.Repeat("正文内容\n", 10) + "风电项目并网管理办法",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractTitle(tt.text)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ExtractTitle() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDetectDocType(t *testing.T) {
	tests := []struct {
		title, text, want string
	}{
		{"内蒙古自治区电力条例", "", "regulation"},
		{"光伏发电项目并网管理办法", "", "measures"},
		{"关于做好储能项目备案工作的通知", "", "notice"},
		{"", "根据有关规定，现就风电项目提出如下意见", "provision"},
		{"分布式光伏接入技术规范", "", "standard"},
		{"办事指南", "", "guidance"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := DetectDocType(tt.title, tt.text); got != tt.want {
			t.Errorf("DetectDocType(%q, %q) = %q, want %q", tt.title, tt.text, got, tt.want)
		}
	}
}
