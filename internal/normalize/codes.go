package normalize

import (
	"strings"

	"github.com/mfenderov/regrag/internal/catalog"
)

// NormalizeProvinceCode maps a Chinese name, English name or code to an
// internal province code. Unknown input yields false; callers must treat
// that as a validation failure.
func NormalizeProvinceCode(s string) (string, bool) {
	raw := strings.TrimSpace(s)
	key := strings.ToLower(raw)
	if key == "" {
		return "", false
	}
	for _, p := range catalog.Provinces() {
		if key == p.Code || raw == p.Name || raw == p.FullName || key == strings.ToLower(p.English) {
			return p.Code, true
		}
		for _, alias := range p.Aliases {
			if key == strings.ToLower(alias) {
				return p.Code, true
			}
		}
	}
	return "", false
}

// NormalizeAssetType maps a Chinese name, English name or code to an
// internal asset code.
func NormalizeAssetType(s string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", false
	}
	for _, a := range catalog.Assets() {
		if key == a.Code || key == a.Name || key == strings.ToLower(a.English) {
			return a.Code, true
		}
		for _, alias := range a.Aliases {
			if key == strings.ToLower(alias) {
				return a.Code, true
			}
		}
	}
	return "", false
}

// NormalizeDocClass maps a Chinese name or code to an internal document class.
func NormalizeDocClass(s string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", false
	}
	for _, c := range catalog.DocClasses() {
		if key == c.Code || key == c.Name {
			return c.Code, true
		}
	}
	return "", false
}
