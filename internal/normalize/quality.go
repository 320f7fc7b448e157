package normalize

import (
	"strings"
	"unicode/utf8"
)

// Quality gate thresholds for document text.
const (
	MinChineseRatio = 0.3
	MinQualityChars = 50
)

// RegulatoryTerms is the vocabulary whose presence marks text as regulatory.
var RegulatoryTerms = []string{
	"办法", "规定", "通知", "意见", "条例", "细则", "管理", "实施",
	"规范", "标准", "要求", "申请", "审批", "备案", "核准", "并网",
	"验收", "电网", "发电", "项目",
}

// Quality is the outcome of ValidateChineseContentQuality.
type Quality struct {
	IsValid             bool    `json:"is_valid"`
	ChineseRatio        float64 `json:"chinese_ratio"`
	Length              int     `json:"length"`
	HasRegulatoryTerms  bool    `json:"has_regulatory_terms"`
	RegulatoryTermCount int     `json:"regulatory_term_count"`
}

// ValidateChineseContentQuality reports whether text is usable: at least 30%
// CJK among non-whitespace characters, at least 50 characters, and at least
// one regulatory term.
func ValidateChineseContentQuality(text string) Quality {
	q := Quality{
		ChineseRatio: CJKRatio(text),
		Length:       utf8.RuneCountInString(text),
	}
	for _, term := range RegulatoryTerms {
		if strings.Contains(text, term) {
			q.RegulatoryTermCount++
		}
	}
	q.HasRegulatoryTerms = q.RegulatoryTermCount > 0
	q.IsValid = q.ChineseRatio >= MinChineseRatio && q.Length >= MinQualityChars && q.HasRegulatoryTerms
	return q
}
