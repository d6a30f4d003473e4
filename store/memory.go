package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/finvect/finrag/types"
)

// BM25 parameters, standard values.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// MemoryStore is an in-memory DocumentStore scoring lexical queries with
// BM25 and vector queries with an exact cosine scan. It exists for tests and
// for running the agent without a live search engine.
type MemoryStore struct {
	mu       sync.RWMutex
	articles []types.Article
	byURL    map[string]int

	// BM25 statistics, rebuilt after writes.
	stale     bool
	docLens   []int
	avgDocLen float64
	idf       map[string]float64

	logger *zap.Logger
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		byURL:  make(map[string]int),
		idf:    make(map[string]float64),
		logger: logger.With(zap.String("component", "memory_store")),
	}
}

// Ping implements Pinger and always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// Upsert inserts or replaces the article keyed by URL.
func (s *MemoryStore) Upsert(ctx context.Context, article types.Article) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if article.URL == "" {
		return types.NewError(types.ErrMalformedQuery, "article URL must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.byURL[article.URL]; ok {
		s.articles[i] = article
	} else {
		s.byURL[article.URL] = len(s.articles)
		s.articles = append(s.articles, article)
	}
	s.stale = true
	return nil
}

// Count returns the number of stored articles.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}

// LexicalQuery scores articles with BM25 over their search text and returns
// matching articles only, highest score first.
func (s *MemoryStore) LexicalQuery(ctx context.Context, query, company string, size int) ([]Hit, error) {
	if err := validateQueryText(query); err != nil {
		return nil, err
	}
	if err := validateQuerySize(size); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// One write lock across refresh and scan: an upsert between the two
	// would grow articles past the stats slices and break bm25Score.
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStats()

	queryTerms := tokenize(query)
	hits := make([]Hit, 0, size)
	for i, art := range s.articles {
		if company != "" && art.Company != company {
			continue
		}
		score := s.bm25Score(queryTerms, i)
		if score > 0 {
			hits = append(hits, Hit{Article: art, Score: score})
		}
	}

	sortHits(hits)
	if len(hits) > size {
		hits = hits[:size]
	}
	return hits, nil
}

// VectorQuery scores articles by cosine similarity against the query vector.
func (s *MemoryStore) VectorQuery(ctx context.Context, vector []float64, company string, size int) ([]Hit, error) {
	if len(vector) == 0 {
		return nil, types.NewError(types.ErrMalformedQuery, "query vector must not be empty")
	}
	if err := validateQuerySize(size); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]Hit, 0, size)
	for _, art := range s.articles {
		if company != "" && art.Company != company {
			continue
		}
		if len(art.Embedding) == 0 {
			continue
		}
		hits = append(hits, Hit{Article: art, Score: cosineSimilarity(vector, art.Embedding)})
	}

	sortHits(hits)
	if len(hits) > size {
		hits = hits[:size]
	}
	return hits, nil
}

// refreshStats recomputes document lengths and IDF. Caller holds the write lock.
func (s *MemoryStore) refreshStats() {
	if !s.stale {
		return
	}

	totalLen := 0
	s.docLens = make([]int, len(s.articles))
	termDocCount := make(map[string]int)

	for i, art := range s.articles {
		terms := tokenize(searchText(art))
		s.docLens[i] = len(terms)
		totalLen += len(terms)

		seen := make(map[string]bool)
		for _, term := range terms {
			if !seen[term] {
				termDocCount[term]++
				seen[term] = true
			}
		}
	}

	s.avgDocLen = 0
	if len(s.articles) > 0 {
		s.avgDocLen = float64(totalLen) / float64(len(s.articles))
	}

	s.idf = make(map[string]float64, len(termDocCount))
	n := float64(len(s.articles))
	for term, df := range termDocCount {
		s.idf[term] = math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1.0)
	}
	s.stale = false
}

func (s *MemoryStore) bm25Score(queryTerms []string, docIndex int) float64 {
	docTerms := tokenize(searchText(s.articles[docIndex]))
	termFreq := make(map[string]int, len(docTerms))
	for _, term := range docTerms {
		termFreq[term]++
	}

	score := 0.0
	docLen := float64(s.docLens[docIndex])
	for _, qTerm := range queryTerms {
		tf, ok := termFreq[qTerm]
		if !ok {
			continue
		}
		idf := s.idf[qTerm]
		numerator := float64(tf) * (bm25K1 + 1.0)
		denominator := float64(tf) + bm25K1*(1.0-bm25B+bm25B*(docLen/s.avgDocLen))
		score += idf * (numerator / denominator)
	}
	return score
}

// searchText is the text the lexical leg matches against, mirroring the
// multi-field query of the real store.
func searchText(art types.Article) string {
	if art.FullText != "" {
		return art.FullText
	}
	return strings.TrimSpace(art.Title + " " + art.Description + " " + art.Content)
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortHits orders by score descending, URL ascending for equal scores.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Article.URL < hits[j].Article.URL
	})
}
