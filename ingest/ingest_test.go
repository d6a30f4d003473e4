package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/finvect/finrag/store"
	"github.com/finvect/finrag/types"
)

func TestReadArticles(t *testing.T) {
	input := `{"title":"A","url":"https://example.com/a","published_at":"2025-06-10T00:00:00Z"}

{"title":"B","url":"https://example.com/b","company":"Acme"}
`
	articles, err := ReadArticles(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadArticles: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("len = %d, want 2 (blank line skipped)", len(articles))
	}
	if articles[0].Title != "A" || articles[1].Company != "Acme" {
		t.Errorf("articles = %+v", articles)
	}
	want := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	if !articles[0].PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v", articles[0].PublishedAt)
	}
}

func TestReadArticlesMalformedLineReportsNumber(t *testing.T) {
	input := `{"title":"A","url":"https://example.com/a"}
not json
`
	_, err := ReadArticles(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("err = %v, want line number", err)
	}
}

func TestAppendThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.jsonl")

	batch1 := []types.Article{{Title: "A", URL: "https://example.com/a"}}
	batch2 := []types.Article{{Title: "B", URL: "https://example.com/b"}}
	if err := AppendArticles(path, batch1); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if err := AppendArticles(path, batch2); err != nil {
		t.Fatalf("append 2: %v", err)
	}

	articles, err := LoadArticles(path)
	if err != nil {
		t.Fatalf("LoadArticles: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("len = %d, want 2 after two appends", len(articles))
	}
}

func TestLoadArticlesMissingFile(t *testing.T) {
	if _, err := LoadArticles(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestIndexArticles(t *testing.T) {
	s := store.NewMemoryStore(zap.NewNop())
	ix := NewIndexer(s, zap.NewNop())

	articles := []types.Article{
		{Title: "A", URL: "https://example.com/a"},
		{Title: "B", URL: ""}, // missing URL fails the upsert
		{Title: "C", URL: "https://example.com/c"},
	}
	res, err := ix.IndexArticles(context.Background(), articles)
	if err != nil {
		t.Fatalf("IndexArticles: %v", err)
	}
	if res.Indexed != 2 || res.Failed != 1 {
		t.Errorf("result = %+v, want 2 indexed / 1 failed", res)
	}
	if s.Count() != 2 {
		t.Errorf("store count = %d", s.Count())
	}
}

func TestIndexArticlesUpsertsByURL(t *testing.T) {
	s := store.NewMemoryStore(zap.NewNop())
	ix := NewIndexer(s, zap.NewNop())
	ctx := context.Background()

	if _, err := ix.IndexArticles(ctx, []types.Article{{Title: "old", URL: "https://example.com/a"}}); err != nil {
		t.Fatalf("first index: %v", err)
	}
	if _, err := ix.IndexArticles(ctx, []types.Article{{Title: "new", URL: "https://example.com/a"}}); err != nil {
		t.Fatalf("second index: %v", err)
	}
	if s.Count() != 1 {
		t.Errorf("store count = %d, want 1 after re-index", s.Count())
	}
}

func TestIndexFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.jsonl")
	content := `{"title":"A","url":"https://example.com/a"}
{"title":"B","url":"https://example.com/b"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := store.NewMemoryStore(zap.NewNop())
	ix := NewIndexer(s, zap.NewNop())
	res, err := ix.IndexFile(context.Background(), path)
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	if res.Indexed != 2 {
		t.Errorf("indexed = %d, want 2", res.Indexed)
	}
}

func TestIndexArticlesStopsOnCancelledContext(t *testing.T) {
	s := store.NewMemoryStore(zap.NewNop())
	ix := NewIndexer(s, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ix.IndexArticles(ctx, []types.Article{{Title: "A", URL: "https://example.com/a"}})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
