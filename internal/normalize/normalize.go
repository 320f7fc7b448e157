// Package normalize cleans extracted Chinese regulatory text and pulls
// structured metadata (effective date, title, document type) out of it.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// keepFullWidth lists full-width forms that stay as they are: Chinese
// sentence punctuation and book-title brackets carry meaning in this corpus.
var keepFullWidth = map[rune]bool{
	'，': true, '。': true, '！': true, '？': true, '；': true, '、': true,
	'《': true, '》': true, '〈': true, '〉': true, '「': true, '」': true,
	'【': true, '】': true, '…': true,
}

var punctReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "″", `"`,
	"‘", "'", "’", "'", "‚", "'", "′", "'",
	"—", "-", "–", "-", "‒", "-", "‐", "-", "‑", "-", "―", "-", "−", "-",
	"\r\n", "\n", "\r", "\n",
)

var (
	spaceRun   = regexp.MustCompile(`[ \t]+`)
	lineEdges  = regexp.MustCompile(` *\n *`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// Normalize returns a canonical form of extracted text. It is total: the
// empty string maps to the empty string.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = norm.NFC.String(text)
	text = punctReplacer.Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	var prev rune
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t':
		case isZeroWidth(r) || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			r = ' '
		default:
			r = toHalfWidth(r)
		}
		if r == prev && isTerminal(r) {
			continue
		}
		b.WriteRune(r)
		prev = r
	}

	out := spaceRun.ReplaceAllString(b.String(), " ")
	out = lineEdges.ReplaceAllString(out, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// toHalfWidth narrows fullwidth forms only; wide CJK characters are left alone.
func toHalfWidth(r rune) rune {
	if keepFullWidth[r] {
		return r
	}
	p := width.LookupRune(r)
	if p.Kind() != width.EastAsianFullwidth {
		return r
	}
	if n := p.Narrow(); n != 0 {
		return n
	}
	return r
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff', '\u00ad':
		return true
	}
	return false
}

func isTerminal(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '!', '?', ';':
		return true
	}
	return false
}

// IsCJK reports whether r is a CJK Unified Ideograph (basic block, extension A,
// compatibility block or extension B).
func IsCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x20000 && r <= 0x2A6DF)
}

// CJKRatio is the share of CJK ideographs among non-whitespace characters.
func CJKRatio(text string) float64 {
	var cjk, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if IsCJK(r) {
			cjk++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(cjk) / float64(total)
}
