package storage

import (
	"path"
	"time"
)

const (
	rawRoot   = "raw"
	cleanRoot = "clean"
)

// RawPath is where a fetched document's original bytes live:
// raw/{province}/{YYYY-MM-DD}/{checksum}.{ext}.
func RawPath(province string, day time.Time, checksum, ext string) string {
	return path.Join(rawRoot, province, day.UTC().Format(time.DateOnly), checksum+"."+ext)
}

// CleanPath is where the processed Document JSON lives:
// clean/{province}/{checksum}.json.
func CleanPath(province, checksum string) string {
	return path.Join(cleanRoot, province, checksum+".json")
}

// CleanPrefix is the listing prefix for a province's clean documents, or for
// all provinces when province is empty.
func CleanPrefix(province string) string {
	if province == "" {
		return cleanRoot + "/"
	}
	return path.Join(cleanRoot, province) + "/"
}
