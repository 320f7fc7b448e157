// Package composer turns ranked search candidates into a cited Chinese answer
// built only from verbatim source sentences, or into a refusal.
package composer

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mfenderov/regrag/internal/catalog"
	"github.com/mfenderov/regrag/internal/normalize"
	"github.com/mfenderov/regrag/pkg/models"
)

// Composition limits.
const (
	MaxKeywords       = 8
	MaxCandidates     = 5
	SpansPerCandidate = 2
	MaxQuotes         = 4
	MinSpanChars      = 21
	MaxSpanChars      = 300
)

// Refusal texts.
const (
	RefusalZh = "根据现有官方文件，暂未找到足以回答该问题的依据。"
	RefusalEn = "No sufficient evidence was found in official documents to answer this question."
)

var defaultTips = []string{
	"请尽量具体描述问题，例如注明办理环节或文件名称。",
	"可尝试更换文件类别（并网、核准备案、电力市场）后重新提问。",
	"如需最新政策，请以省级主管部门官网发布为准。",
}

// vocabulary is checked before free-form segments so domain terms win the keyword budget.
var vocabulary = append([]string{
	"光伏", "风电", "储能", "分布式", "集中式", "接入", "资料", "材料",
	"流程", "时限", "电价", "容量", "消纳", "调度", "补贴", "环评", "用地",
}, normalize.RegulatoryTerms...)

// stopwords are removed from the question before segmenting.
var stopwords = []string{
	"哪些", "什么", "怎么", "怎样", "如何", "是否", "需要", "可以", "应该",
	"有关", "关于", "以及", "请问", "一下", "目前",
}

// Response is a composed answer or refusal. Citations is never nil so the
// JSON form always carries both answer_zh and citations.
type Response struct {
	AnswerZh  string            `json:"answer_zh"`
	Citations []models.Citation `json:"citations"`
	Refusal   string            `json:"refusal,omitempty"`
	Tips      []string          `json:"tips,omitempty"`
}

// Refused reports whether the response declines to answer.
func (r Response) Refused() bool {
	return r.Refusal != ""
}

// Refuse builds a refusal in the requested language.
func Refuse(lang string) Response {
	msg := RefusalZh
	if strings.HasPrefix(strings.ToLower(lang), "en") {
		msg = RefusalEn
	}
	return Response{
		Citations: []models.Citation{},
		Refusal:   msg,
		Tips:      append([]string(nil), defaultTips...),
	}
}

// Compose builds an answer from the top candidates. Every bullet quotes a
// sentence copied unchanged from a candidate's text and every quoted
// candidate contributes a citation; with no qualifying quote it refuses.
func Compose(candidates []models.SearchCandidate, question, lang string) Response {
	if len(candidates) == 0 {
		return Refuse(lang)
	}

	keywords := ExtractKeywords(question)
	if len(keywords) == 0 {
		return Refuse(lang)
	}

	var bullets []string
	var citations []models.Citation
	seen := make(map[string]bool)
	var head map[string]string

	for _, c := range candidates[:min(MaxCandidates, len(candidates))] {
		if len(bullets) == MaxQuotes {
			break
		}
		src := c.Metadata["url"]
		if src == "" {
			continue
		}
		spans := ExtractSpans(c.Text, keywords, SpansPerCandidate)
		if len(spans) == 0 {
			continue
		}

		title := c.Metadata["title"]
		if title == "" {
			title = hostOf(src)
		}
		date := c.Metadata["effective_date"]
		for _, s := range spans {
			if len(bullets) == MaxQuotes {
				break
			}
			bullets = append(bullets, bullet(s, title, date))
		}

		if head == nil {
			head = c.Metadata
		}
		if !seen[src] {
			seen[src] = true
			citations = append(citations, models.Citation{Title: title, URL: src, EffectiveDate: date})
		}
	}

	if len(bullets) == 0 {
		return Refuse(lang)
	}

	var b strings.Builder
	b.WriteString(header(head))
	b.WriteString("\n")
	for _, line := range bullets {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return Response{
		AnswerZh:  strings.TrimRight(b.String(), "\n"),
		Citations: citations,
	}
}

func header(meta map[string]string) string {
	province := catalog.ProvinceName(meta["province"])
	asset := catalog.AssetName(meta["asset"])
	class := catalog.DocClassName(meta["doc_class"])
	return fmt.Sprintf("【%s%s%s】相关规定摘录：", province, asset, class)
}

func bullet(span, title, date string) string {
	if date != "" {
		return fmt.Sprintf("- “%s”（《%s》，%s）", span, title, date)
	}
	return fmt.Sprintf("- “%s”（《%s》）", span, title)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}

// ExtractKeywords returns up to eight keywords: vocabulary terms found in the
// question first, then the remaining Chinese segments of two or more characters.
func ExtractKeywords(question string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(k string) {
		if len(out) < MaxKeywords && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}

	rest := question
	for _, term := range vocabulary {
		if strings.Contains(question, term) {
			add(term)
			rest = strings.ReplaceAll(rest, term, " ")
		}
	}
	for _, w := range stopwords {
		rest = strings.ReplaceAll(rest, w, " ")
	}

	for _, seg := range hanSegments(rest) {
		n := utf8.RuneCountInString(seg)
		if n <= 4 {
			add(seg)
			continue
		}
		r := []rune(seg)
		for i := 0; i+2 <= len(r); i += 2 {
			add(string(r[i : i+2]))
		}
	}
	return out
}

// hanSegments returns maximal runs of Han characters at least two long.
func hanSegments(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return !unicode.Is(unicode.Han, r) }) {
		if utf8.RuneCountInString(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

type span struct {
	text string
	hits int
}

// ExtractSpans returns up to limit sentences of text that contain at least
// one keyword, most keyword hits first. Spans are substrings of text; those
// of 20 characters or fewer are discarded.
func ExtractSpans(text string, keywords []string, limit int) []string {
	var cands []span
	for _, line := range strings.Split(text, "\n") {
		for _, s := range normalize.SplitSentences(line) {
			s = strings.TrimSpace(s)
			n := utf8.RuneCountInString(s)
			if n < MinSpanChars || n > MaxSpanChars {
				continue
			}
			hits := 0
			for _, k := range keywords {
				if strings.Contains(s, k) {
					hits++
				}
			}
			if hits > 0 {
				cands = append(cands, span{text: s, hits: hits})
			}
		}
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].hits > cands[j].hits })

	var out []string
	seen := make(map[string]bool)
	for _, c := range cands {
		if len(out) == limit {
			break
		}
		if seen[c.text] {
			continue
		}
		seen[c.text] = true
		out = append(out, c.text)
	}
	return out
}

// ErrMalformed marks a response that breaks the answer/citation contract.
var ErrMalformed = errors.New("malformed response")

// ValidateResponse checks the structural contract of a response: citations
// present, a non-empty answer mostly Chinese and backed by citations, and
// every citation carrying a title and URL.
func ValidateResponse(r Response) error {
	if r.Citations == nil {
		return fmt.Errorf("%w: citations missing", ErrMalformed)
	}
	if r.AnswerZh != "" {
		if ratio := normalize.CJKRatio(r.AnswerZh); ratio < normalize.MinChineseRatio {
			return fmt.Errorf("%w: answer is %.0f%% Chinese", ErrMalformed, ratio*100)
		}
		if len(r.Citations) == 0 {
			return fmt.Errorf("%w: answer without citations", ErrMalformed)
		}
	}
	for i, c := range r.Citations {
		if c.Title == "" || c.URL == "" {
			return fmt.Errorf("%w: citation %d lacks title or url", ErrMalformed, i)
		}
	}
	return nil
}
