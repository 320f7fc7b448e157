package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Lang is the language tag carried by every document in this corpus.
const Lang = "zh-CN"

// Document is a regulatory source file after extraction and normalization.
// It is immutable once written to clean storage; re-ingestion replaces it by checksum.
type Document struct {
	ID               string    `json:"id"`
	Checksum         string    `json:"checksum"`
	URL              string    `json:"url"`
	Title            string    `json:"title"`
	Text             string    `json:"text"`
	EffectiveDate    string    `json:"effective_date,omitempty"` // YYYY-MM-DD
	DocType          string    `json:"doc_type,omitempty"`
	Province         string    `json:"province"`
	Asset            string    `json:"asset"`
	DocClass         string    `json:"doc_class"`
	Lang             string    `json:"lang"`
	RawStoragePath   string    `json:"raw_storage_path"`
	CleanStoragePath string    `json:"clean_storage_path"`
	ProcessedAt      time.Time `json:"processed_at"`
}

// Metadata returns the fields copied onto each chunk. Empty values are omitted.
func (d *Document) Metadata() map[string]string {
	meta := make(map[string]string, 8)
	set := func(k, v string) {
		if v != "" {
			meta[k] = v
		}
	}
	set("title", d.Title)
	set("url", d.URL)
	set("effective_date", d.EffectiveDate)
	set("province", d.Province)
	set("asset", d.Asset)
	set("doc_class", d.DocClass)
	set("checksum", d.Checksum)
	set("lang", d.Lang)
	return meta
}

// Checksum returns the hex SHA-256 of raw document bytes.
// It doubles as the document ID and the idempotency key for ingestion.
func Checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HashURL creates a deterministic key for a URL string.
// The key is a SHA-256 hash (first 16 chars) of the URL.
func HashURL(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])[:16]
}
