// Package ingest bridges line-delimited JSON article dumps into the
// document store.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/finvect/finrag/types"
)

// maxLineBytes bounds one JSONL line. Articles carry full text and a
// 384-float embedding, so lines run well past bufio's default.
const maxLineBytes = 4 * 1024 * 1024

// ReadArticles decodes line-delimited JSON articles from r. Blank lines
// are skipped; a malformed line fails the whole read with its line
// number.
func ReadArticles(r io.Reader) ([]types.Article, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var articles []types.Article
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var a types.Article
		if err := json.Unmarshal([]byte(text), &a); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		articles = append(articles, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read articles: %w", err)
	}
	return articles, nil
}

// LoadArticles reads a JSONL article file from disk.
func LoadArticles(path string) ([]types.Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadArticles(f)
}

// AppendArticles appends articles to a JSONL file, one object per line,
// creating the file if needed.
func AppendArticles(path string, articles []types.Article) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i, a := range articles {
		if err := enc.Encode(a); err != nil {
			return fmt.Errorf("encode article %d: %w", i, err)
		}
	}
	return nil
}
