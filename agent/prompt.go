package agent

import (
	"fmt"
	"strings"

	"github.com/finvect/finrag/llm/tokenizer"
	"github.com/finvect/finrag/types"
)

// contentSnippetChars bounds how much of each article body enters the
// prompt before token budgeting.
const contentSnippetChars = 500

// promptTokenBudget bounds the whole grounded prompt. It leaves headroom
// for the completion within a small instruction model's context window.
const promptTokenBudget = 3000

const promptHeader = `You are a financial analyst assistant. Answer the user's question based ONLY on the provided article excerpts.

Question: %s

Relevant Articles:
%s

Instructions:
- Provide a clear, concise answer based on the articles above
- Cite specific articles when making claims (e.g., "According to [Source Name]...")
- If the articles don't fully answer the question, acknowledge what information is available
- Be factual and avoid speculation

Answer:`

// buildPrompt renders the grounded prompt from the ranked articles.
// Articles are added in rank order until the token budget is exhausted,
// so the highest-scoring evidence always survives.
func buildPrompt(question string, articles []types.ScoredArticle, tok tokenizer.Tokenizer) string {
	tok = effectiveTokenizer(tok)
	skeleton := fmt.Sprintf(promptHeader, question, "")
	used := countTokens(tok, skeleton)

	var context strings.Builder
	for i, a := range articles {
		block := formatArticle(i+1, a)
		cost := countTokens(tok, block)
		if used+cost > promptTokenBudget {
			if context.Len() > 0 {
				break
			}
			// Even the top article overflows the budget on its own.
			// Cut its block to what remains rather than send nothing.
			block = tokenizer.Truncate(tok, block, promptTokenBudget-used)
			cost = promptTokenBudget - used
		}
		context.WriteString(block)
		context.WriteString("\n")
		used += cost
	}

	return fmt.Sprintf(promptHeader, question, context.String())
}

// formatArticle renders one ranked article as a context block.
func formatArticle(rank int, a types.ScoredArticle) string {
	return fmt.Sprintf(`
Article %d (Score: %.2f):
Source: %s
Title: %s
Published: %s
Content: %s %s...
URL: %s
`,
		rank, a.FusedScore,
		a.Source,
		a.Title,
		a.PublishedAt.Format("2006-01-02"),
		a.Description, snippet(a.Content),
		a.URL)
}

// snippet cuts the article body to a fixed prefix on a rune boundary.
func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= contentSnippetChars {
		return content
	}
	return string(runes[:contentSnippetChars])
}

// estimatorTok backs token counting whenever the configured tokenizer
// is absent or its encoding data cannot be loaded.
var estimatorTok = tokenizer.NewEstimatorTokenizer()

func effectiveTokenizer(tok tokenizer.Tokenizer) tokenizer.Tokenizer {
	if tok == nil {
		return estimatorTok
	}
	return tok
}

// countTokens falls back to the character-ratio estimator when the
// tokenizer fails, so prompt building never errors.
func countTokens(tok tokenizer.Tokenizer, text string) int {
	count, err := effectiveTokenizer(tok).CountTokens(text)
	if err != nil {
		count, _ = estimatorTok.CountTokens(text)
	}
	return count
}

// fallbackAnswer is the deterministic response when the gate finds the
// evidence insufficient. No model call is involved.
func fallbackAnswer(question string) string {
	return fmt.Sprintf(`I couldn't find any relevant articles in the database to answer your question: %q

This could mean:
- No articles matching your query have been indexed yet
- The question topic is outside the scope of the indexed financial articles
- Try rephrasing your question or asking about a different company/topic

You can index more articles with:

    finrag index --file articles.jsonl`, question)
}
