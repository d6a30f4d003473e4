package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/finvect/finrag/store"
	"github.com/finvect/finrag/types"
)

// overfetchFactor is how many candidates each leg requests relative to the
// final size. The headroom keeps min-max normalization and cross-leg
// deduplication from starving the final list.
const overfetchFactor = 2

// midpointScore is assigned to every candidate of a leg whose score
// distribution has zero range. It avoids a divide by zero without biasing
// the fusion toward either leg.
const midpointScore = 0.5

// Params are the inputs of one hybrid search. The query vector is computed
// externally from the query text; both describe the same question.
type Params struct {
	// Query is the question text for the lexical leg.
	Query string
	// QueryVector is the question embedding for the vector leg.
	QueryVector []float64
	// Company optionally restricts both legs to one company tag.
	Company string
	// Size is the number of articles to return.
	Size int
	// TextWeight is the blend weight w in [0,1] given to the lexical leg.
	TextWeight float64
	// MinScore is the fused-score threshold the gate applies.
	MinScore float64
}

func (p Params) validate() error {
	if p.Size <= 0 {
		return types.NewError(types.ErrMalformedQuery,
			fmt.Sprintf("retrieval size must be positive, got %d", p.Size))
	}
	if p.TextWeight < 0 || p.TextWeight > 1 {
		return types.NewError(types.ErrMalformedQuery,
			fmt.Sprintf("text weight must be in [0, 1], got %g", p.TextWeight))
	}
	return nil
}

// StoreObserver receives per-leg query timings.
type StoreObserver interface {
	RecordStoreQuery(leg string, err error, d time.Duration)
}

// Searcher runs hybrid searches against a document store.
type Searcher struct {
	store    store.DocumentStore
	observer StoreObserver
	logger   *zap.Logger
}

// NewSearcher creates a Searcher.
func NewSearcher(docStore store.DocumentStore, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		store:  docStore,
		logger: logger.With(zap.String("component", "retrieval")),
	}
}

// WithObserver attaches a query-timing observer and returns the Searcher.
func (s *Searcher) WithObserver(o StoreObserver) *Searcher {
	s.observer = o
	return s
}

func (s *Searcher) observe(leg string, err error, d time.Duration) {
	if s.observer != nil {
		s.observer.RecordStoreQuery(leg, err, d)
	}
}

// candidate accumulates one article's scores across both legs.
type candidate struct {
	article  types.Article
	rawLex   float64
	rawVec   float64
	normLex  float64
	normVec  float64
	inLex    bool
	inVector bool
}

// Search runs both query legs concurrently, normalizes each leg's score
// distribution to [0,1] independently, fuses them as
// w*lexical + (1-w)*vector, and returns the top Size articles. A failure in
// either leg fails the whole search: the blend contract assumes both
// distributions are present.
func (s *Searcher) Search(ctx context.Context, p Params) (types.RetrievalResult, error) {
	if err := p.validate(); err != nil {
		return types.RetrievalResult{}, err
	}

	fetch := p.Size * overfetchFactor
	start := time.Now()

	var lexHits, vecHits []store.Hit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		legStart := time.Now()
		hits, err := s.store.LexicalQuery(gctx, p.Query, p.Company, fetch)
		s.observe("lexical", err, time.Since(legStart))
		if err != nil {
			return fmt.Errorf("lexical leg: %w", err)
		}
		lexHits = hits
		return nil
	})
	g.Go(func() error {
		legStart := time.Now()
		hits, err := s.store.VectorQuery(gctx, p.QueryVector, p.Company, fetch)
		s.observe("vector", err, time.Since(legStart))
		if err != nil {
			return fmt.Errorf("vector leg: %w", err)
		}
		vecHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return types.RetrievalResult{}, err
	}

	scored := fuse(lexHits, vecHits, p.TextWeight)
	sortScored(scored)
	if len(scored) > p.Size {
		scored = scored[:p.Size]
	}

	result := types.RetrievalResult{Articles: scored}
	result.Found = Decide(result, p.MinScore)

	s.logger.Debug("hybrid search completed",
		zap.Int("lexical_hits", len(lexHits)),
		zap.Int("vector_hits", len(vecHits)),
		zap.Int("fused", len(scored)),
		zap.Bool("found", result.Found),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

// fuse unions the two candidate sets by URL and blends their independently
// normalized scores. An article missing from one leg contributes 0 for that
// leg's normalized score.
func fuse(lexHits, vecHits []store.Hit, textWeight float64) []types.ScoredArticle {
	normLex := normalize(lexHits)
	normVec := normalize(vecHits)

	byURL := make(map[string]*candidate, len(lexHits)+len(vecHits))
	order := make([]string, 0, len(lexHits)+len(vecHits))

	for _, h := range lexHits {
		c, ok := byURL[h.Article.URL]
		if !ok {
			c = &candidate{article: h.Article}
			byURL[h.Article.URL] = c
			order = append(order, h.Article.URL)
		}
		c.rawLex = h.Score
		c.normLex = normLex[h.Article.URL]
		c.inLex = true
	}
	for _, h := range vecHits {
		c, ok := byURL[h.Article.URL]
		if !ok {
			c = &candidate{article: h.Article}
			byURL[h.Article.URL] = c
			order = append(order, h.Article.URL)
		}
		c.rawVec = h.Score
		c.normVec = normVec[h.Article.URL]
		c.inVector = true
	}

	scored := make([]types.ScoredArticle, 0, len(order))
	for _, url := range order {
		c := byURL[url]
		scored = append(scored, types.ScoredArticle{
			Article:      c.article,
			LexicalScore: c.rawLex,
			VectorScore:  c.rawVec,
			FusedScore:   textWeight*c.normLex + (1-textWeight)*c.normVec,
		})
	}
	return scored
}

// normalize min-max scales one leg's scores to [0,1] over the candidate set
// returned by that leg. A zero-range distribution maps every candidate to
// the midpoint.
func normalize(hits []store.Hit) map[string]float64 {
	normalized := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return normalized
	}

	minScore, maxScore := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < minScore {
			minScore = h.Score
		}
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	scoreRange := maxScore - minScore
	for _, h := range hits {
		if scoreRange == 0 {
			normalized[h.Article.URL] = midpointScore
		} else {
			normalized[h.Article.URL] = (h.Score - minScore) / scoreRange
		}
	}
	return normalized
}

// sortScored orders by fused score descending; ties break toward the more
// recently published article, then by URL, for total determinism.
func sortScored(scored []types.ScoredArticle) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].FusedScore != scored[j].FusedScore {
			return scored[i].FusedScore > scored[j].FusedScore
		}
		if !scored[i].PublishedAt.Equal(scored[j].PublishedAt) {
			return scored[i].PublishedAt.After(scored[j].PublishedAt)
		}
		return scored[i].URL < scored[j].URL
	})
}
