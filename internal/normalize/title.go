package normalize

import (
	"strings"
	"unicode/utf8"
)

var titleMarkers = []string{"办法", "规定", "通知", "意见", "管理", "实施"}

var titleBrackets = strings.NewReplacer(
	"《", "", "》", "", "〈", "", "〉", "", "【", "", "】", "",
	"[", "", "]", "", "(", "", ")", "", "（", "", "）", "", "「", "", "」", "",
)

const (
	titleScanLines = 10
	minTitleChars  = 5
	maxTitleChars  = 100
)

// ExtractTitle picks a title from the first ten non-empty lines: the first
// line carrying a regulatory marker word, with 关于/印发 prefixes and brackets
// stripped, whose length falls within 5-100 characters.
func ExtractTitle(text string) (string, bool) {
	seen := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		seen++
		if seen > titleScanLines {
			break
		}
		if !containsAny(line, titleMarkers) {
			continue
		}

		title := strings.TrimPrefix(line, "关于")
		title = strings.TrimPrefix(title, "印发")
		title = strings.TrimSpace(titleBrackets.Replace(title))

		if n := utf8.RuneCountInString(title); n >= minTitleChars && n <= maxTitleChars {
			return title, true
		}
	}
	return "", false
}

var docTypes = []struct {
	docType  string
	keywords []string
}{
	{"regulation", []string{"条例"}},
	{"measures", []string{"办法"}},
	{"rules", []string{"细则"}},
	{"provision", []string{"规定"}},
	{"opinion", []string{"意见"}},
	{"guidance", []string{"指南", "指引"}},
	{"standard", []string{"标准", "规范"}},
	{"notice", []string{"通知", "公告", "通告"}},
}

// DetectDocType classifies a document from its title, falling back to the
// opening of its text. It returns "" when nothing matches.
func DetectDocType(title, text string) string {
	if t := docTypeOf(title); t != "" {
		return t
	}
	head := []rune(text)
	if len(head) > 200 {
		head = head[:200]
	}
	return docTypeOf(string(head))
}

func docTypeOf(s string) string {
	if s == "" {
		return ""
	}
	for _, dt := range docTypes {
		if containsAny(s, dt.keywords) {
			return dt.docType
		}
	}
	return ""
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
