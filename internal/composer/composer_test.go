package composer

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mfenderov/regrag/pkg/models"
)

const acceptanceText = "第一条 为规范分布式光伏发电项目并网管理，制定本办法。" +
	"第十二条 项目单位申请并网验收时，应当提交竣工验收报告、设备检测报告和并网调度协议等资料。" +
	"第十三条 电网企业应当在受理并网验收申请后十个工作日内完成现场验收并出具意见。" +
	"第二十条 本办法自2024年6月1日起施行。"

func candidate(id, text, url, title, date string) models.SearchCandidate {
	return models.SearchCandidate{
		ID:   id,
		Text: text,
		Metadata: map[string]string{
			"url":            url,
			"title":          title,
			"effective_date": date,
			"province":       "gd",
			"asset":          "solar",
			"doc_class":      "grid",
		},
		Score: 0.9,
	}
}

func TestCompose_EmptyCandidatesRefuses(t *testing.T) {
	r := Compose(nil, "光伏并网验收需要哪些资料？", "zh-CN")

	assert.Equal(t, "", r.AnswerZh)
	assert.NotNil(t, r.Citations)
	assert.Empty(t, r.Citations)
	assert.True(t, r.Refused())
	assert.NotEmpty(t, r.Tips)
	assert.NoError(t, ValidateResponse(r))
}

func TestCompose_Answer(t *testing.T) {
	cands := []models.SearchCandidate{
		candidate("a-0", acceptanceText, "https://drc.gd.gov.cn/a.pdf", "广东省分布式光伏发电项目并网管理办法", "2024-06-01"),
		candidate("a-1", acceptanceText, "https://drc.gd.gov.cn/a.pdf", "广东省分布式光伏发电项目并网管理办法", "2024-06-01"),
	}

	r := Compose(cands, "光伏并网验收需要哪些资料？", "zh-CN")

	require.False(t, r.Refused())
	require.NoError(t, ValidateResponse(r))
	assert.True(t, strings.HasPrefix(r.AnswerZh, "【广东省光伏并网】"))
	assert.Contains(t, r.AnswerZh, "- “第十二条 项目单位申请并网验收时，应当提交竣工验收报告、设备检测报告和并网调度协议等资料。”（《广东省分布式光伏发电项目并网管理办法》，2024-06-01）")
	assert.Len(t, r.Citations, 1, "citations are unique by url")
	assert.Equal(t, "https://drc.gd.gov.cn/a.pdf", r.Citations[0].URL)
	assert.LessOrEqual(t, strings.Count(r.AnswerZh, "\n- "), MaxQuotes)
}

func TestCompose_RefusesWithoutQualifyingSpan(t *testing.T) {
	cands := []models.SearchCandidate{
		candidate("a", "并网。很短的句子。", "https://gd.gov.cn/x.html", "短文", ""),
		candidate("b", "本条例所称风电场，是指由风力发电机组及配套设施组成的发电厂站。", "https://gd.gov.cn/y.html", "风电条例", ""),
	}

	r := Compose(cands, "光伏并网验收需要哪些资料？", "zh-CN")

	assert.True(t, r.Refused())
	assert.Empty(t, r.AnswerZh)
	assert.Empty(t, r.Citations)
}

func TestCompose_SkipsCandidatesWithoutURL(t *testing.T) {
	c := candidate("a", acceptanceText, "", "无来源", "")

	r := Compose([]models.SearchCandidate{c}, "并网验收资料", "zh-CN")

	assert.True(t, r.Refused())
}

func TestCompose_EnglishRefusal(t *testing.T) {
	assert.Equal(t, RefusalEn, Compose(nil, "", "en").Refusal)
	assert.Equal(t, RefusalZh, Compose(nil, "", "").Refusal)
}

func TestCompose_CitationOrderAndQuoteCap(t *testing.T) {
	var cands []models.SearchCandidate
	for i, u := range []string{"https://gd.gov.cn/1.pdf", "https://gd.gov.cn/2.pdf", "https://gd.gov.cn/3.pdf"} {
		cands = append(cands, candidate(string(rune('a'+i)), acceptanceText, u, "办法"+string(rune('一'+i)), ""))
	}

	r := Compose(cands, "并网验收", "zh-CN")

	require.False(t, r.Refused())
	assert.Equal(t, MaxQuotes, strings.Count(r.AnswerZh, "- “"))
	require.Len(t, r.Citations, 2)
	assert.Equal(t, "https://gd.gov.cn/1.pdf", r.Citations[0].URL)
	assert.Equal(t, "https://gd.gov.cn/2.pdf", r.Citations[1].URL)
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		question string
		want     []string
	}{
		{"光伏并网验收需要哪些资料？", []string{"光伏", "资料", "并网", "验收"}},
		{"储能电站调度运行", []string{"储能", "调度", "电站", "运行"}},
		{"", nil},
		{"what documents?", nil},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractKeywords(tt.question))
		})
	}
}

func TestExtractKeywords_Cap(t *testing.T) {
	got := ExtractKeywords("光伏风电储能分布式接入资料流程时限电价容量消纳")
	assert.Len(t, got, MaxKeywords)
}

func TestExtractSpans(t *testing.T) {
	spans := ExtractSpans(acceptanceText, []string{"并网", "验收", "资料"}, 2)

	require.Len(t, spans, 2)
	assert.Contains(t, spans[0], "竣工验收报告", "the sentence matching all keywords ranks first")
	for _, s := range spans {
		assert.Contains(t, acceptanceText, s)
	}
	assert.Empty(t, ExtractSpans("并网验收。", []string{"并网"}, 2), "short spans are discarded")
}

func TestValidateResponse(t *testing.T) {
	ok := models.Citation{Title: "办法", URL: "https://gd.gov.cn/a.pdf"}

	tests := []struct {
		name    string
		r       Response
		wantErr bool
	}{
		{"refusal", Refuse("zh"), false},
		{"answer", Response{AnswerZh: "【广东省】相关规定摘录：并网验收", Citations: []models.Citation{ok}}, false},
		{"nil citations", Response{AnswerZh: ""}, true},
		{"answer without citations", Response{AnswerZh: "并网验收规定", Citations: []models.Citation{}}, true},
		{"mostly ascii answer", Response{AnswerZh: "grid connection acceptance rules 并网", Citations: []models.Citation{ok}}, true},
		{"citation without url", Response{AnswerZh: "并网验收规定", Citations: []models.Citation{{Title: "办法"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResponse(tt.r)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

var quoteRe = regexp.MustCompile(`“([^”]*)”`)

var sentencePool = []string{
	"项目单位申请并网验收时，应当提交竣工验收报告和设备检测报告等资料。",
	"电网企业应当在受理申请后十个工作日内完成现场验收并出具书面意见。",
	"储能电站参与电力市场交易的，应当按照有关规定完成注册并签订调度协议。",
	"风电项目核准后两年内未开工建设的，项目核准文件自动失效。",
	"光伏。",
	"本办法由省能源局负责解释。",
	"\n",
}

func TestCompose_QuotesAreVerbatim(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 7).Draw(rt, "candidates")
		var cands []models.SearchCandidate
		for i := 0; i < n; i++ {
			var b strings.Builder
			for j, m := 0, rapid.IntRange(1, 6).Draw(rt, "sentences"); j < m; j++ {
				b.WriteString(rapid.SampledFrom(sentencePool).Draw(rt, "sentence"))
			}
			u := rapid.SampledFrom([]string{"https://gd.gov.cn/a.pdf", "https://gd.gov.cn/b.pdf", ""}).Draw(rt, "url")
			cands = append(cands, candidate("c", b.String(), u, "办法", ""))
		}
		q := rapid.SampledFrom([]string{"光伏并网验收需要哪些资料？", "风电核准", "储能市场交易", "", "hello"}).Draw(rt, "question")

		r := Compose(cands, q, "zh-CN")

		if err := ValidateResponse(r); err != nil {
			rt.Fatalf("invalid response: %v", err)
		}
		if r.AnswerZh == "" {
			return
		}
		if len(r.Citations) == 0 {
			rt.Fatalf("answer without citations")
		}
		for _, m := range quoteRe.FindAllStringSubmatch(r.AnswerZh, -1) {
			found := false
			for _, c := range cands {
				if strings.Contains(c.Text, m[1]) {
					found = true
					break
				}
			}
			if !found {
				rt.Fatalf("quote %q is not in any candidate", m[1])
			}
		}
	})
}
