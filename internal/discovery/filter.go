package discovery

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mfenderov/regrag/internal/catalog"
	"github.com/mfenderov/regrag/pkg/models"
)

// BaseDomain is allowed for every province.
const BaseDomain = "gov.cn"

// Allowlist returns the domains a province's documents may come from: the
// government base suffix, the province's department domains, and extras.
// Entries carry no leading dot.
func Allowlist(p catalog.Province, extra ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(d string) {
		d = strings.ToLower(strings.TrimLeft(strings.TrimSpace(d), "."))
		if d != "" && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	add(BaseDomain)
	for _, d := range p.Domains {
		add(d)
	}
	for _, list := range extra {
		for _, d := range list {
			add(d)
		}
	}
	return out
}

// Allowed reports whether rawURL is http(s) and its host equals or is a
// subdomain of an allowlisted domain.
func Allowed(rawURL string, allowlist []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, d := range allowlist {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

var wordSplit = regexp.MustCompile(`[^a-z0-9]+`)

// Relevant applies the relevance heuristic: the URL (plus any hint text such
// as a result title) must plausibly name the province AND the asset or the
// document class.
func Relevant(rawURL, hint string, p catalog.Province, a catalog.Asset, c catalog.DocClass) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	pathText := strings.ToLower(u.Path + " " + u.RawQuery)
	if decoded, err := url.PathUnescape(pathText); err == nil {
		pathText = decoded
	}
	text := host + " " + pathText + " " + hint

	words := make(map[string]bool)
	for _, w := range wordSplit.Split(strings.ToLower(host+" "+pathText), -1) {
		if w != "" {
			words[w] = true
		}
	}

	provinceOK := mentions(text, words, p.Tokens, p.Name)
	if !provinceOK {
		for _, d := range p.Domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				provinceOK = true
				break
			}
		}
	}
	if !provinceOK {
		return false
	}

	return mentions(text, words, a.Tokens, a.Synonyms...) || mentions(text, words, c.Tokens, c.Synonyms...)
}

// mentions matches latin tokens as whole words and Chinese terms as substrings.
func mentions(text string, words map[string]bool, tokens []string, terms ...string) bool {
	for _, tok := range tokens {
		if isASCII(tok) {
			if words[tok] {
				return true
			}
		} else if strings.Contains(text, tok) {
			return true
		}
	}
	for _, term := range terms {
		if term != "" && strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

var inlineURL = regexp.MustCompile(`https?://[^\s<>"'()（）\[\]【】，。；、]+`)

// ExtractURLs returns the URLs appearing inline in generated text.
func ExtractURLs(text string) []string {
	matches := inlineURL.FindAllString(text, -1)
	for i, m := range matches {
		matches[i] = strings.TrimRight(m, ".,;:!?")
	}
	return matches
}

// candidate is a URL together with any text that describes it.
type candidate struct {
	URL  string
	Hint string
}

// dedupe drops repeated URLs by the hash of the URL string, keeping the first hint.
func dedupe(cands []candidate) []candidate {
	seen := make(map[string]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		key := models.HashURL(c.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// reachable checks liveness with a HEAD request, falling back to a ranged GET
// for servers that reject HEAD.
func reachable(ctx context.Context, client *http.Client, rawURL string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil); err == nil {
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode < 400 {
				return true
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Range", "bytes=0-1023")
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 400
}
