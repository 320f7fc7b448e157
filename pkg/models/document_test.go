package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDocument_JSONSerialization(t *testing.T) {
	doc := Document{
		ID:            "abc",
		Checksum:      "abc",
		URL:           "https://drc.gd.gov.cn/a.pdf",
		Title:         "广东省光伏发电项目并网管理办法",
		Text:          "第一条 为规范光伏发电项目并网管理，制定本办法。",
		EffectiveDate: "2024-06-01",
		Province:      "gd",
		Asset:         "solar",
		DocClass:      "grid",
		Lang:          Lang,
		ProcessedAt:   time.Date(2025, 12, 4, 10, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("failed to marshal Document: %v", err)
	}

	var decoded Document
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal Document: %v", err)
	}

	if decoded.Title != doc.Title {
		t.Errorf("Title mismatch: got %q, want %q", decoded.Title, doc.Title)
	}
	if decoded.EffectiveDate != doc.EffectiveDate {
		t.Errorf("EffectiveDate mismatch: got %q, want %q", decoded.EffectiveDate, doc.EffectiveDate)
	}
	if !decoded.ProcessedAt.Equal(doc.ProcessedAt) {
		t.Errorf("ProcessedAt mismatch: got %v, want %v", decoded.ProcessedAt, doc.ProcessedAt)
	}
	if !strings.Contains(string(data), `"doc_class":"grid"`) {
		t.Errorf("JSON should use snake_case keys: %s", data)
	}
}

func TestDocument_MetadataOmitsEmpty(t *testing.T) {
	doc := Document{Checksum: "c1", URL: "https://x.gov.cn/a", Title: "T", Province: "gd", Lang: Lang}

	meta := doc.Metadata()

	if _, ok := meta["effective_date"]; ok {
		t.Error("empty effective_date should be omitted")
	}
	if meta["checksum"] != "c1" {
		t.Errorf("checksum = %q, want c1", meta["checksum"])
	}
	if len(meta) != 5 {
		t.Errorf("len(meta) = %d, want 5: %v", len(meta), meta)
	}
}

func TestChecksum_Deterministic(t *testing.T) {
	a := Checksum([]byte("raw bytes"))
	b := Checksum([]byte("raw bytes"))
	c := Checksum([]byte("other bytes"))

	if a != b {
		t.Errorf("same bytes should give same checksum: %s != %s", a, b)
	}
	if a == c {
		t.Error("different bytes should give different checksums")
	}
	if len(a) != 64 {
		t.Errorf("checksum length = %d, want 64", len(a))
	}
}

func TestHashURL(t *testing.T) {
	if HashURL("https://a.gov.cn/x") != HashURL("https://a.gov.cn/x") {
		t.Error("HashURL should be deterministic")
	}
	if len(HashURL("https://a.gov.cn/x")) != 16 {
		t.Error("HashURL should return 16 chars")
	}
}

func TestNewChunk(t *testing.T) {
	meta := map[string]string{"checksum": "c1", "title": "T", "effective_date": ""}
	valid := strings.Repeat("光伏发电项目并网验收", 6)

	tests := []struct {
		name    string
		text    string
		meta    map[string]string
		wantErr error
	}{
		{"valid", valid, meta, nil},
		{"too short", "短文本", meta, ErrChunkLength},
		{"too long", strings.Repeat("长", MaxChunkChars+1), meta, ErrChunkLength},
		{"no checksum", valid, map[string]string{"title": "T"}, ErrChunkChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunk(tt.text, 3, tt.meta)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewChunk() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewChunk() error = %v", err)
			}
			if c.ID() != "c1-3" {
				t.Errorf("ID() = %q, want c1-3", c.ID())
			}
			if _, ok := c.Metadata["effective_date"]; ok {
				t.Error("empty metadata values should be dropped")
			}
		})
	}
}

func TestFilters_Expr(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		want    string
	}{
		{"empty", Filters{}, ""},
		{"province only", Filters{Province: "gd"}, `province == "gd"`},
		{"all", Filters{Province: "gd", Asset: "solar", DocClass: "grid"}, `province == "gd" && asset == "solar" && doc_class == "grid"`},
		{"skips empty middle", Filters{Province: "sd", DocClass: "grid"}, `province == "sd" && doc_class == "grid"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filters.Expr(); got != tt.want {
				t.Errorf("Expr() = %q, want %q", got, tt.want)
			}
		})
	}
}
