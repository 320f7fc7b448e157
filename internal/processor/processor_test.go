package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mfenderov/regrag/pkg/models"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []string
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(_ context.Context, p string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[p] = data
	s.puts = append(s.puts, p)
	return nil
}

func (s *memStore) Exists(_ context.Context, p string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[p]
	return ok, nil
}

func (s *memStore) GetText(_ context.Context, p string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[p]
	if !ok {
		return "", fmt.Errorf("no object %s", p)
	}
	return string(data), nil
}

type fakeExtractor struct {
	text  string
	err   error
	paths []string
	mimes []string
}

func (f *fakeExtractor) Extract(_ context.Context, storagePath, mimeType string) (string, error) {
	f.paths = append(f.paths, storagePath)
	f.mimes = append(f.mimes, mimeType)
	return f.text, f.err
}

const regulationText = `广东省光伏发电项目并网管理办法
第一条 为规范全省光伏发电项目并网管理，保障电网安全稳定运行，根据国家有关规定，制定本办法。
第二条 本办法适用于本省行政区域内接入公共电网的集中式和分布式光伏发电项目。
第三条 项目单位应当在并网前向电网企业提交并网申请及相关材料，电网企业应当在规定时限内完成并网验收。
第四条 本办法自2024年6月1日起施行。`

const regulationHTML = `<html><head><title>政策文件</title></head><body>
<h1>广东省光伏发电项目并网管理办法</h1>
<p>第一条 为规范全省光伏发电项目并网管理，保障电网安全稳定运行，根据国家有关规定，制定本办法。</p>
<p>第二条 本办法适用于本省行政区域内接入公共电网的集中式和分布式光伏发电项目。</p>
<p>第三条 项目单位应当在并网前向电网企业提交并网申请及相关材料，电网企业应当在规定时限内完成并网验收。</p>
<p>第四条 本办法自2024年6月1日起施行。</p>
</body></html>`

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "regrag-test" {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Header().Set("Content-Type", contentType)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestProcessor(t *testing.T, store Store, extractor *fakeExtractor) *Processor {
	t.Helper()
	var p *Processor
	var err error
	if extractor == nil {
		p, err = New(Config{UserAgent: "regrag-test"}, store, nil)
	} else {
		p, err = New(Config{UserAgent: "regrag-test"}, store, extractor)
	}
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p.now = func() time.Time { return time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC) }
	return p
}

func TestProcess_HTMLWithoutBackend(t *testing.T) {
	server := serve(t, "text/html; charset=utf-8", regulationHTML)
	store := newMemStore()
	p := newTestProcessor(t, store, nil)

	doc, err := p.Process(context.Background(), server.URL+"/zwgk/post_1.html", "gd", "solar", "grid")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	checksum := models.Checksum([]byte(regulationHTML))
	if doc.Checksum != checksum || doc.ID != checksum {
		t.Errorf("checksum = %q, want %q", doc.Checksum, checksum)
	}
	if doc.Title != "广东省光伏发电项目并网管理办法" {
		t.Errorf("Title = %q", doc.Title)
	}
	if doc.EffectiveDate != "2024-06-01" {
		t.Errorf("EffectiveDate = %q", doc.EffectiveDate)
	}
	if doc.DocType != "measures" {
		t.Errorf("DocType = %q", doc.DocType)
	}
	if doc.Lang != models.Lang {
		t.Errorf("Lang = %q", doc.Lang)
	}
	if want := "raw/gd/2024-07-01/" + checksum + ".html"; doc.RawStoragePath != want {
		t.Errorf("RawStoragePath = %q, want %q", doc.RawStoragePath, want)
	}
	if want := "clean/gd/" + checksum + ".json"; doc.CleanStoragePath != want {
		t.Errorf("CleanStoragePath = %q, want %q", doc.CleanStoragePath, want)
	}
	if strings.Contains(doc.Text, "<p>") {
		t.Errorf("Text still contains markup: %q", doc.Text)
	}
	if !ValidateDocumentQuality(doc) {
		t.Error("ValidateDocumentQuality() = false for a valid regulation")
	}
}

func TestProcess_Idempotent(t *testing.T) {
	server := serve(t, "text/html", regulationHTML)
	store := newMemStore()
	p := newTestProcessor(t, store, nil)
	ctx := context.Background()

	first, err := p.Process(ctx, server.URL+"/a.html", "gd", "solar", "grid")
	if err != nil {
		t.Fatalf("first Process() error = %v", err)
	}
	putsAfterFirst := len(store.puts)

	p.now = func() time.Time { return time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC) }
	second, err := p.Process(ctx, server.URL+"/a.html", "gd", "solar", "grid")
	if err != nil {
		t.Fatalf("second Process() error = %v", err)
	}

	if len(store.puts) != putsAfterFirst {
		t.Errorf("second run wrote %v, want no writes", store.puts[putsAfterFirst:])
	}
	if first.CleanStoragePath != second.CleanStoragePath || first.Checksum != second.Checksum {
		t.Errorf("documents diverged: %+v vs %+v", first, second)
	}
	if first.Text != second.Text || first.Title != second.Title {
		t.Error("second run returned a different document")
	}
}

func TestProcess_UsesBackendForPDF(t *testing.T) {
	server := serve(t, "application/pdf", "%PDF-1.7 fake body")
	store := newMemStore()
	ext := &fakeExtractor{text: regulationText}
	p := newTestProcessor(t, store, ext)

	doc, err := p.Process(context.Background(), server.URL+"/a.pdf", "gd", "solar", "grid")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(ext.paths) != 1 || ext.paths[0] != doc.RawStoragePath {
		t.Errorf("extractor called with %v, want %q", ext.paths, doc.RawStoragePath)
	}
	if ext.mimes[0] != "application/pdf" {
		t.Errorf("extractor mime = %q", ext.mimes[0])
	}
	if _, ok := store.objects[doc.RawStoragePath]; !ok {
		t.Error("raw bytes were not persisted before extraction")
	}
}

func TestProcess_HTMLFallsBackWhenBackendFails(t *testing.T) {
	server := serve(t, "text/html", regulationHTML)
	ext := &fakeExtractor{err: errors.New("ocr down")}
	p := newTestProcessor(t, newMemStore(), ext)

	if _, err := p.Process(context.Background(), server.URL+"/a.html", "gd", "solar", "grid"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
}

func TestProcess_Errors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		path        string
		extractor   *fakeExtractor
		maxBytes    int64
		wantErr     error
	}{
		{
			name:        "pdf without backend",
			contentType: "application/pdf",
			body:        "%PDF-1.4",
			path:        "/a.pdf",
			wantErr:     ErrNoExtractor,
		},
		{
			name:        "image is not accepted",
			contentType: "image/png",
			body:        "\x89PNG\r\n\x1a\n",
			path:        "/a.png",
			wantErr:     ErrUnsupportedType,
		},
		{
			name:        "too large",
			contentType: "text/html",
			body:        regulationHTML,
			path:        "/a.html",
			maxBytes:    64,
			wantErr:     ErrTooLarge,
		},
		{
			name:        "low quality",
			contentType: "text/html",
			body:        "<html><body><p>Page not found. Please return to the home page and try again later.</p></body></html>",
			path:        "/404.html",
			wantErr:     ErrLowQuality,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serve(t, tt.contentType, tt.body)
			p := newTestProcessor(t, newMemStore(), tt.extractor)
			if tt.maxBytes > 0 {
				p.config.MaxBytes = tt.maxBytes
			}

			_, err := p.Process(context.Background(), server.URL+tt.path, "gd", "solar", "grid")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Process() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProcess_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	p := newTestProcessor(t, newMemStore(), nil)

	if _, err := p.Process(context.Background(), server.URL+"/gone.pdf", "gd", "solar", "grid"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestNew_RequiresStore(t *testing.T) {
	if _, err := New(Config{}, nil, nil); err == nil {
		t.Error("expected error for nil store")
	}
}

func TestValidateDocumentQuality(t *testing.T) {
	valid := models.Document{
		Title:    "广东省光伏发电项目并网管理办法",
		URL:      "https://drc.gd.gov.cn/a.pdf",
		Text:     regulationText,
		Province: "gd",
		Asset:    "solar",
		DocClass: "grid",
	}

	tests := []struct {
		name   string
		mutate func(d *models.Document)
		want   bool
	}{
		{"valid", func(*models.Document) {}, true},
		{"missing title", func(d *models.Document) { d.Title = "" }, false},
		{"missing url", func(d *models.Document) { d.URL = " " }, false},
		{"missing doc class", func(d *models.Document) { d.DocClass = "" }, false},
		{"too short", func(d *models.Document) { d.Text = "本办法自2024年6月1日起施行。" }, false},
		{"not chinese", func(d *models.Document) { d.Text = strings.Repeat("grid connection rules apply here. ", 10) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := valid
			tt.mutate(&doc)
			if got := ValidateDocumentQuality(&doc); got != tt.want {
				t.Errorf("ValidateDocumentQuality() = %v, want %v", got, tt.want)
			}
		})
	}

	if ValidateDocumentQuality(nil) {
		t.Error("nil document should be invalid")
	}
}
