package discovery

import (
	"fmt"
	"strings"

	"github.com/mfenderov/regrag/internal/catalog"
)

// DefaultMaxVariants caps the number of primary-backend queries per run.
const DefaultMaxVariants = 20

var qualifiers = []string{"管理办法", "规定", "实施细则", "技术要求", "申请流程"}

var filetypes = []string{"", "filetype:pdf", "filetype:doc", "filetype:docx"}

// QueryVariants builds up to max distinct queries combining the province
// name, asset and class synonyms, administrative qualifiers and filetype
// restrictions. Filetypes rotate so that any prefix of the list mixes them.
func QueryVariants(p catalog.Province, a catalog.Asset, c catalog.DocClass, max int) []string {
	if max <= 0 {
		max = DefaultMaxVariants
	}

	assetTerms := firstN(a.Synonyms, 2)
	classTerms := firstN(c.Synonyms, 2)

	seen := make(map[string]bool)
	var out []string
	i := 0
	for _, q := range qualifiers {
		for _, at := range assetTerms {
			for _, ct := range classTerms {
				base := fmt.Sprintf("%s %s %s %s", p.FullName, at, ct, q)
				variant := strings.TrimSpace(base + " " + filetypes[i%len(filetypes)])
				i++
				if seen[variant] {
					continue
				}
				seen[variant] = true
				out = append(out, variant)
				if len(out) == max {
					return out
				}
			}
		}
	}
	return out
}

// AggregateQuestion is the single fallback prompt sent to the generative backend.
func AggregateQuestion(p catalog.Province, a catalog.Asset, c catalog.DocClass) string {
	return fmt.Sprintf(
		"请列出%s关于%s项目%s的官方政策文件（%s），并给出每份文件在政府网站上的原文链接。",
		p.FullName, a.Name, c.Name, strings.Join(qualifiers, "、"),
	)
}

const aggregateSystem = "你是中国能源监管政策检索助手。只引用政府官方网站发布的原文，回答中必须附上文件链接。"

func firstN(s []string, n int) []string {
	if len(s) < n {
		return s
	}
	return s[:n]
}
