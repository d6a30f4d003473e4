// Package agent sequences retrieval, gating, and answer generation into
// a single ask workflow. Every failure past construction is folded into
// a well-formed AnswerResult; callers never see a crash for one bad
// question.
package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finvect/finrag/config"
	"github.com/finvect/finrag/llm"
	"github.com/finvect/finrag/llm/tokenizer"
	"github.com/finvect/finrag/retrieval"
	"github.com/finvect/finrag/types"
)

// Embedder computes the query embedding for the vector leg. Embedding
// computation lives outside the core; this is its only contract.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// AnswerCache stores answered questions. A miss or a cache failure is
// never an error, only a passthrough.
type AnswerCache interface {
	Get(ctx context.Context, key string) (types.AnswerResult, bool)
	Set(ctx context.Context, key string, result types.AnswerResult)
}

// Observer receives workflow outcome and answer cache notifications.
type Observer interface {
	ObserveAsk(outcome string, d time.Duration)
	RecordCacheHit()
	RecordCacheMiss()
}

// Ask outcomes reported to the Observer.
const (
	OutcomeAnswered     = "answered"
	OutcomeFallback     = "fallback"
	OutcomeDegraded     = "degraded"
	OutcomeBackendError = "backend_error"
)

// AskOptions override retrieval parameters for a single question. Zero
// values mean "use the configured default".
type AskOptions struct {
	RetrievalSize int
	MinScore      float64
	Company       string
}

// Agent answers financial questions over an indexed article corpus.
// One Agent serves many concurrent asks; all fields are read-only after
// construction.
type Agent struct {
	cfg      *config.Config
	searcher *retrieval.Searcher
	embedder Embedder
	provider llm.Provider
	tok      tokenizer.Tokenizer
	cache    AnswerCache
	observer Observer
	logger   *zap.Logger
}

// Options are the collaborators an Agent is built from. Searcher,
// Embedder, and Provider are required; the rest are optional.
type Options struct {
	Config   *config.Config
	Searcher *retrieval.Searcher
	Embedder Embedder
	Provider llm.Provider
	Tok      tokenizer.Tokenizer
	Cache    AnswerCache
	Observer Observer
	Logger   *zap.Logger
}

// New validates the collaborators and builds an Agent. Construction is
// the only place the agent is allowed to fail.
func New(opts Options) (*Agent, error) {
	if opts.Config == nil {
		return nil, types.NewError(types.ErrConfigInvalid, "agent requires a config")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Searcher == nil {
		return nil, types.NewError(types.ErrConfigInvalid, "agent requires a searcher")
	}
	if opts.Embedder == nil {
		return nil, types.NewError(types.ErrConfigInvalid, "agent requires an embedder")
	}
	if opts.Provider == nil {
		return nil, types.NewError(types.ErrConfigInvalid, "agent requires a model provider")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		cfg:      opts.Config,
		searcher: opts.Searcher,
		embedder: opts.Embedder,
		provider: opts.Provider,
		tok:      opts.Tok,
		cache:    opts.Cache,
		observer: opts.Observer,
		logger:   logger.With(zap.String("component", "agent")),
	}, nil
}

// askState carries one question through the workflow. It is created
// fresh per ask and discarded at StateDone.
type askState struct {
	question string
	opts     AskOptions
	result   types.RetrievalResult
	answer   string
	outcome  string
}

// Ask answers one question with the configured retrieval parameters.
func (a *Agent) Ask(ctx context.Context, question string) (types.AnswerResult, error) {
	return a.AskWith(ctx, question, AskOptions{})
}

// AskWith answers one question, optionally overriding retrieval size,
// gate threshold, or company filter for this call only.
func (a *Agent) AskWith(ctx context.Context, question string, opts AskOptions) (types.AnswerResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return types.AnswerResult{}, types.NewError(types.ErrMalformedQuery, "question must not be empty")
	}

	key := cacheKey(question, a.resolveSize(opts), a.resolveMinScore(opts), opts.Company)
	if a.cache != nil {
		if cached, ok := a.cache.Get(ctx, key); ok {
			if a.observer != nil {
				a.observer.RecordCacheHit()
			}
			a.logger.Debug("answer served from cache", zap.String("question", question))
			return cached, nil
		}
		if a.observer != nil {
			a.observer.RecordCacheMiss()
		}
	}

	start := time.Now()
	st := &askState{question: question, opts: opts}
	for state := StateStart; state != StateDone; {
		state = a.step(ctx, state, st)
	}

	result := types.AnswerResult{
		Question:      question,
		Answer:        st.answer,
		ArticlesFound: st.result.Found,
		NumArticles:   len(st.result.Articles),
		Articles:      st.result.Articles,
	}

	if a.observer != nil {
		a.observer.ObserveAsk(st.outcome, time.Since(start))
	}
	if a.cache != nil && st.outcome == OutcomeAnswered {
		a.cache.Set(ctx, key, result)
	}

	a.logger.Info("ask completed",
		zap.String("outcome", st.outcome),
		zap.Bool("articles_found", result.ArticlesFound),
		zap.Int("num_articles", result.NumArticles),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

// step executes one workflow state and returns the successor. Failures
// inside a state are absorbed into st; they steer the branch at Gate
// but never abort the walk to StateDone.
func (a *Agent) step(ctx context.Context, state State, st *askState) State {
	switch state {
	case StateStart:
		return next(state, false)

	case StateRetrieve:
		a.retrieve(ctx, st)
		return next(state, false)

	case StateGate:
		// Found was decided inside the search; the branch is the
		// machine's only conditional edge.
		return next(state, st.result.Found)

	case StateGenerate:
		a.generate(ctx, st)
		return next(state, false)

	case StateFallback:
		if st.answer == "" {
			st.answer = fallbackAnswer(st.question)
			st.outcome = OutcomeFallback
		}
		return next(state, false)

	default:
		return StateDone
	}
}

// retrieve runs the hybrid search. A store or embedder failure degrades
// to an explanatory not-found result instead of failing the ask.
func (a *Agent) retrieve(ctx context.Context, st *askState) {
	vector, err := a.embedder.Embed(ctx, st.question)
	if err != nil {
		a.logger.Warn("query embedding failed", zap.Error(err))
		st.answer = degradedAnswer(st.question, err)
		st.outcome = OutcomeDegraded
		return
	}

	result, err := a.searcher.Search(ctx, retrieval.Params{
		Query:       st.question,
		QueryVector: vector,
		Company:     st.opts.Company,
		Size:        a.resolveSize(st.opts),
		TextWeight:  a.cfg.Retrieval.TextWeight,
		MinScore:    a.resolveMinScore(st.opts),
	})
	if err != nil {
		a.logger.Warn("retrieval failed", zap.Error(err))
		st.answer = degradedAnswer(st.question, err)
		st.outcome = OutcomeDegraded
		return
	}
	st.result = result
}

// generate builds the grounded prompt and calls the model backend. A
// backend failure keeps the gate's true result and reports an
// error-flavored answer.
func (a *Agent) generate(ctx context.Context, st *askState) {
	prompt := buildPrompt(st.question, st.result.Articles, a.tok)
	if a.cfg.Agent.Verbose {
		a.logger.Debug("grounded prompt built",
			zap.Int("articles", len(st.result.Articles)),
			zap.Int("prompt_chars", len(prompt)))
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Agent.Timeout)
	defer cancel()

	resp, err := a.provider.Complete(callCtx, &llm.CompletionRequest{
		Model:        a.cfg.LLM.Model,
		Prompt:       prompt,
		Temperature:  a.cfg.LLM.Temperature,
		MaxNewTokens: a.cfg.LLM.MaxNewTokens,
	})
	if err != nil {
		a.logger.Warn("answer generation failed", zap.Error(err))
		st.answer = fmt.Sprintf(
			"I found %d relevant articles but ran into a problem generating the answer: %v. Please try again.",
			len(st.result.Articles), err)
		st.outcome = OutcomeBackendError
		return
	}

	st.answer = resp.Text
	st.outcome = OutcomeAnswered
}

func (a *Agent) resolveSize(opts AskOptions) int {
	if opts.RetrievalSize > 0 {
		return opts.RetrievalSize
	}
	return a.cfg.Retrieval.Size
}

func (a *Agent) resolveMinScore(opts AskOptions) float64 {
	if opts.MinScore > 0 {
		return opts.MinScore
	}
	return a.cfg.Retrieval.MinScore
}

// degradedAnswer explains a retrieval-side failure to the user.
func degradedAnswer(question string, err error) string {
	return fmt.Sprintf(
		"I ran into a problem searching the article database for your question %q: %v. Please try again in a moment.",
		question, err)
}

func cacheKey(question string, size int, minScore float64, company string) string {
	return fmt.Sprintf("ask:%s|%d|%g|%s", strings.ToLower(question), size, minScore, company)
}

// Chat runs an interactive loop over in, answering each line until EOF
// or an explicit quit. It holds no state across questions.
func (a *Agent) Chat(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Finance RAG Agent - Ask questions about indexed financial articles")
	fmt.Fprintln(out, "Type 'quit' or 'exit' to stop")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if q := strings.ToLower(question); q == "quit" || q == "exit" {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		result, err := a.Ask(ctx, question)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n\n", err)
			continue
		}

		fmt.Fprintf(out, "\nAgent: %s\n\n", result.Answer)
		if result.ArticlesFound {
			fmt.Fprintf(out, "(Based on %d articles)\n\n", result.NumArticles)
		}
	}
	return scanner.Err()
}
