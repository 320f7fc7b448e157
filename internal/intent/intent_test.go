package intent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectIntents(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []Intent
	}{
		{"materials and approval", "光伏并网验收需要哪些资料？", []Intent{Materials, Approval}},
		{"procedure", "风电项目如何办理核准", []Intent{Procedure, Approval}},
		{"market", "储能电站参与电力市场交易的电价", []Intent{Market}},
		{"none", "你好", nil},
		{"definition", "什么是分布式光伏", []Intent{Definition}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectIntents(tt.query))
		})
	}
}

func TestDocumentKeywords(t *testing.T) {
	got := DocumentKeywords([]Intent{Materials, Market})
	assert.Equal(t, "申报材料 办事指南 申请表 电力市场 交易规则 价格政策", got)
	assert.Empty(t, DocumentKeywords(nil))
}

func TestBuildEnhancedQuery_IntentBased(t *testing.T) {
	e := BuildEnhancedQuery("光伏并网验收需要哪些资料？", "gd", "solar")

	assert.Equal(t, EnhancementIntentBased, e.EnhancementType)
	assert.Equal(t, "广东省", e.ProvinceName)
	assert.Equal(t, "光伏", e.AssetName)
	assert.Contains(t, e.EnhancedQuery, "广东省")
	assert.Contains(t, e.EnhancedQuery, "申报材料")
	assert.True(t, strings.HasSuffix(e.EnhancedQuery, "site:gov.cn"))
	assert.NotEmpty(t, e.DocKeywordsUsed)
}

func TestBuildEnhancedQuery_Generic(t *testing.T) {
	e := BuildEnhancedQuery("你好", "sd", "wind")

	assert.Equal(t, EnhancementGeneric, e.EnhancementType)
	assert.Empty(t, e.IntentsDetected)
	assert.Equal(t, "你好 山东省 风电 政策 文件 管理规定", e.EnhancedQuery)
	assert.NotContains(t, e.EnhancedQuery, "site:")
}

func TestValidateIntents(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		intents      []Intent
		wantValid    bool
		wantWarnings int
	}{
		{"single", "光伏资料", []Intent{Materials}, true, 0},
		{"three is fine", "long enough question text", []Intent{Materials, Timeline, Market}, true, 0},
		{"four is invalid", "long enough question text", []Intent{Materials, Timeline, Market, Future}, false, 1},
		{"short definition and procedure", "什么是流程", []Intent{Definition, Procedure}, true, 1},
		{"long definition and procedure", "什么是光伏并网的完整办理流程和步骤", []Intent{Definition, Procedure}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValidateIntents(tt.query, tt.intents)
			assert.Equal(t, tt.wantValid, v.Valid)
			assert.Len(t, v.Warnings, tt.wantWarnings)
		})
	}
}
