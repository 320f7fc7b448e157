// Package doctype decides which of the accepted document formats a fetched
// resource is, from its Content-Type header, its URL, or its leading bytes.
package doctype

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is an accepted document format.
type Kind string

const (
	Unknown Kind = ""
	PDF     Kind = "pdf"
	DOC     Kind = "doc"
	DOCX    Kind = "docx"
	HTML    Kind = "html"
)

var mimeTypes = map[Kind]string{
	PDF:  "application/pdf",
	DOC:  "application/msword",
	DOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	HTML: "text/html",
}

// MIME returns the canonical media type for k.
func (k Kind) MIME() string {
	if m, ok := mimeTypes[k]; ok {
		return m
	}
	return "application/octet-stream"
}

// Ext returns the file extension used for raw storage paths.
func (k Kind) Ext() string {
	if k == Unknown {
		return "bin"
	}
	return string(k)
}

// Supported reports whether k is on the accepted allowlist.
func (k Kind) Supported() bool {
	_, ok := mimeTypes[k]
	return ok
}

// FromContentType maps a Content-Type header value to a Kind.
func FromContentType(contentType string) Kind {
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		media = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch media {
	case "application/pdf", "application/x-pdf":
		return PDF
	case "application/msword":
		return DOC
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return DOCX
	case "text/html", "application/xhtml+xml":
		return HTML
	}
	return Unknown
}

// FromURL guesses a Kind from the URL path extension.
func FromURL(rawURL string) Kind {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".pdf":
		return PDF
	case ".doc":
		return DOC
	case ".docx":
		return DOCX
	case ".html", ".htm", ".shtml":
		return HTML
	}
	return Unknown
}

// Sniff inspects content bytes.
func Sniff(content []byte) Kind {
	if len(content) == 0 {
		return Unknown
	}
	m := mimetype.Detect(content)
	for ; m != nil; m = m.Parent() {
		switch {
		case m.Is("application/pdf"):
			return PDF
		case m.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
			return DOCX
		case m.Is("application/msword"), m.Is("application/x-ole-storage"):
			return DOC
		case m.Is("text/html"):
			return HTML
		}
	}
	return Unknown
}

// Detect combines all detection methods. Checks in order: Content-Type, URL,
// then content sniffing. Generic binary content types fall through so that
// servers labelling everything application/octet-stream still work.
func Detect(rawURL, contentType string, content []byte) Kind {
	if k := FromContentType(contentType); k != Unknown {
		return k
	}
	if k := FromURL(rawURL); k != Unknown {
		return k
	}
	return Sniff(content)
}
