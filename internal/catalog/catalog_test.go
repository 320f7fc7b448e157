package catalog

import "testing"

func TestLookups(t *testing.T) {
	if p, ok := LookupProvince("gd"); !ok || p.FullName != "广东省" {
		t.Errorf("LookupProvince(gd) = %+v, %v", p, ok)
	}
	if _, ok := LookupProvince("bj"); ok {
		t.Error("LookupProvince(bj) should be false")
	}
	if a, ok := LookupAsset("wind"); !ok || a.Name != "风电" {
		t.Errorf("LookupAsset(wind) = %+v, %v", a, ok)
	}
	if _, ok := LookupDocClass(DefaultDocClass); !ok {
		t.Error("default doc class must be in the catalog")
	}
}

func TestNames_FallBackToCode(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{ProvinceName("sd"), "山东省"},
		{ProvinceName("xx"), "xx"},
		{AssetName("storage"), "储能"},
		{DocClassName("permit"), "核准备案"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestEveryEntryHasSearchTerms(t *testing.T) {
	for _, p := range Provinces() {
		if len(p.Tokens) == 0 || len(p.Domains) == 0 {
			t.Errorf("province %s missing tokens or domains", p.Code)
		}
	}
	for _, a := range Assets() {
		if len(a.Synonyms) < 2 || len(a.Tokens) == 0 {
			t.Errorf("asset %s needs at least two synonyms and one token", a.Code)
		}
	}
	for _, c := range DocClasses() {
		if len(c.Synonyms) < 2 || len(c.Tokens) == 0 {
			t.Errorf("doc class %s needs at least two synonyms and one token", c.Code)
		}
	}
}
