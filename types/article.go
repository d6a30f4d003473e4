package types

import "time"

// EmbeddingDim is the dimensionality of article embeddings. The index mapping
// and every vector query must agree on this value.
const EmbeddingDim = 384

// Entity is a named entity extracted from an article by the ingestion
// pipeline. Type is one of PER, ORG, LOC, MISC.
type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// Article is a single indexed news article. Articles are immutable once
// indexed: the retrieval and agent layers only ever read them. URL is the
// unique identifier.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	FullText    string    `json:"full_text"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
	Author      string    `json:"author,omitempty"`
	Company     string    `json:"company,omitempty"`
	Entities    []Entity  `json:"entities,omitempty"`
	Embedding   []float64 `json:"embedding,omitempty"`
}

// ScoredArticle is an article together with its per-leg relevance scores and
// the fused score. FusedScore is a pure function of LexicalScore, VectorScore
// and the blend weight; it carries no hidden state.
type ScoredArticle struct {
	Article

	// LexicalScore is the raw BM25-style score from the text leg (>= 0,
	// unbounded). Zero when the article was absent from that leg.
	LexicalScore float64 `json:"lexical_score"`

	// VectorScore is the raw cosine similarity from the vector leg.
	// Zero when the article was absent from that leg.
	VectorScore float64 `json:"vector_score"`

	// FusedScore is the blended, normalized score in [0, 1].
	FusedScore float64 `json:"fused_score"`
}

// RetrievalResult is the ordered output of a hybrid search: articles sorted
// descending by fused score, truncated to the requested size.
type RetrievalResult struct {
	Articles []ScoredArticle `json:"articles"`

	// Found reports whether the gate considered the evidence sufficient:
	// at least one article with FusedScore >= the configured minimum.
	Found bool `json:"found"`
}

// Top returns the highest-ranked article, or false when the result is empty.
func (r RetrievalResult) Top() (ScoredArticle, bool) {
	if len(r.Articles) == 0 {
		return ScoredArticle{}, false
	}
	return r.Articles[0], true
}

// AnswerResult is the outcome of a single Ask call. It is always well-formed:
// retrieval or generation failures surface as explanatory answer text, never
// as a missing result.
type AnswerResult struct {
	Question      string          `json:"question"`
	Answer        string          `json:"answer"`
	ArticlesFound bool            `json:"articles_found"`
	NumArticles   int             `json:"num_articles"`
	Articles      []ScoredArticle `json:"articles"`
}
