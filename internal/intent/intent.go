// Package intent detects what a user is asking about and turns that into
// document-type keywords for better search queries.
package intent

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mfenderov/regrag/internal/catalog"
)

// Intent is one of the fixed question categories.
type Intent string

const (
	Definition   Intent = "definition"
	Materials    Intent = "materials"
	Timeline     Intent = "timeline"
	Environment  Intent = "environment"
	Procedure    Intent = "procedure"
	Approval     Intent = "approval"
	Coordination Intent = "coordination"
	Market       Intent = "market"
	Technical    Intent = "technical"
	Future       Intent = "future"
)

// Enhancement types reported by BuildEnhancedQuery.
const (
	EnhancementIntentBased = "intent_based"
	EnhancementGeneric     = "generic"
)

const (
	domainSuffix  = "site:gov.cn"
	genericSuffix = "政策 文件 管理规定"
	maxIntents    = 3
	shortQuery    = 8
)

type category struct {
	intent      Intent
	keywords    []string
	docKeywords string
}

// categories is ordered; detection results follow this order.
var categories = []category{
	{Definition, []string{"什么是", "定义", "含义", "是指", "概念", "指的是", "解释"}, "管理办法 名词解释 实施细则"},
	{Materials, []string{"资料", "材料", "文件", "提交", "清单", "需要哪些", "附件", "表格"}, "申报材料 办事指南 申请表"},
	{Timeline, []string{"时间", "多久", "期限", "时限", "几天", "工作日", "截止", "周期"}, "办理时限 工作时限 通知"},
	{Environment, []string{"环保", "环境", "环评", "生态", "排放", "水土保持"}, "环境影响评价 管理规定"},
	{Procedure, []string{"流程", "程序", "步骤", "如何", "怎么", "怎样", "办理"}, "办事指南 工作流程 实施细则"},
	{Approval, []string{"审批", "核准", "备案", "许可", "批复", "验收"}, "核准 备案 管理办法"},
	{Coordination, []string{"协调", "配合", "对接", "联系", "沟通", "部门"}, "工作机制 职责分工 通知"},
	{Market, []string{"电价", "市场", "交易", "结算", "补贴", "收益"}, "电力市场 交易规则 价格政策"},
	{Technical, []string{"技术", "标准", "规范", "参数", "容量", "电压", "接入"}, "技术规范 技术要求 标准"},
	{Future, []string{"未来", "规划", "发展", "趋势", "计划", "目标"}, "发展规划 实施方案"},
}

// DetectIntents returns every intent whose keywords appear in query, in a
// fixed category order. A query may match none, one or several.
func DetectIntents(query string) []Intent {
	var found []Intent
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(query, kw) {
				found = append(found, c.intent)
				break
			}
		}
	}
	return found
}

// DocumentKeywords concatenates the document-type search terms mapped to each intent.
func DocumentKeywords(intents []Intent) string {
	var parts []string
	for _, in := range intents {
		for _, c := range categories {
			if c.intent == in {
				parts = append(parts, c.docKeywords)
			}
		}
	}
	return strings.Join(parts, " ")
}

// Enhanced is the result of BuildEnhancedQuery.
type Enhanced struct {
	EnhancedQuery   string   `json:"enhanced_query"`
	IntentsDetected []Intent `json:"intents_detected"`
	EnhancementType string   `json:"enhancement_type"`
	DocKeywordsUsed string   `json:"doc_keywords_used,omitempty"`
	ProvinceName    string   `json:"province_name"`
	AssetName       string   `json:"asset_name"`
}

// BuildEnhancedQuery appends province and asset names to query and, when an
// intent matched, the mapped document keywords plus a government-domain
// restriction. Without a match a generic suffix is appended instead.
func BuildEnhancedQuery(query, province, asset string) Enhanced {
	e := Enhanced{
		IntentsDetected: DetectIntents(query),
		ProvinceName:    catalog.ProvinceName(province),
		AssetName:       catalog.AssetName(asset),
	}

	parts := []string{strings.TrimSpace(query), e.ProvinceName, e.AssetName}
	if len(e.IntentsDetected) > 0 {
		e.EnhancementType = EnhancementIntentBased
		e.DocKeywordsUsed = DocumentKeywords(e.IntentsDetected)
		parts = append(parts, e.DocKeywordsUsed, domainSuffix)
	} else {
		e.EnhancementType = EnhancementGeneric
		parts = append(parts, genericSuffix)
	}

	e.EnhancedQuery = strings.Join(nonEmpty(parts), " ")
	return e
}

// Validation flags suspicious intent sets. It never rejects a query outright.
type Validation struct {
	Valid    bool     `json:"valid"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidateIntents marks more than three simultaneous intents as invalid and
// warns when definition and procedure co-occur on a very short query.
func ValidateIntents(query string, intents []Intent) Validation {
	v := Validation{Valid: true}
	if len(intents) > maxIntents {
		v.Valid = false
		v.Warnings = append(v.Warnings, fmt.Sprintf("too many intents detected: %d", len(intents)))
	}
	if has(intents, Definition) && has(intents, Procedure) && utf8.RuneCountInString(query) < shortQuery {
		v.Warnings = append(v.Warnings, "definition and procedure both matched on a short query")
	}
	return v
}

func has(intents []Intent, want Intent) bool {
	for _, in := range intents {
		if in == want {
			return true
		}
	}
	return false
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
