package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvect/finrag/types"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9200", cfg.Elasticsearch.Host)
	assert.Equal(t, "finance_articles", cfg.Elasticsearch.Index)
	assert.Equal(t, 5, cfg.Retrieval.Size)
	assert.Equal(t, 0.5, cfg.Retrieval.MinScore)
	assert.Equal(t, 0.5, cfg.Retrieval.TextWeight)
	assert.Equal(t, 512, cfg.LLM.MaxNewTokens)
	assert.Equal(t, 30*time.Second, cfg.Agent.Timeout)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
elasticsearch:
  host: http://es.internal:9200
  index: fin_news
retrieval:
  size: 8
  text_weight: 0.7
llm:
  model: llama3
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "http://es.internal:9200", cfg.Elasticsearch.Host)
	assert.Equal(t, "fin_news", cfg.Elasticsearch.Index)
	assert.Equal(t, 8, cfg.Retrieval.Size)
	assert.Equal(t, 0.7, cfg.Retrieval.TextWeight)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	// Untouched fields keep defaults.
	assert.Equal(t, 0.5, cfg.Retrieval.MinScore)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  size: 8\n"), 0o644))

	t.Setenv("FINRAG_RETRIEVAL_SIZE", "12")
	t.Setenv("FINRAG_RETRIEVAL_MIN_SCORE", "0.25")
	t.Setenv("FINRAG_AGENT_TIMEOUT", "45s")
	t.Setenv("FINRAG_AGENT_VERBOSE", "true")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Retrieval.Size)
	assert.Equal(t, 0.25, cfg.Retrieval.MinScore)
	assert.Equal(t, 45*time.Second, cfg.Agent.Timeout)
	assert.True(t, cfg.Agent.Verbose)
}

func TestOptionsOverrideEnv(t *testing.T) {
	t.Setenv("FINRAG_RETRIEVAL_SIZE", "12")
	t.Setenv("FINRAG_ELASTICSEARCH_INDEX", "env_index")

	cfg, err := NewLoader().
		WithOptions(WithRetrievalSize(3), WithIndex("opt_index"), WithTextWeight(1.0)).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retrieval.Size)
	assert.Equal(t, "opt_index", cfg.Elasticsearch.Index)
	assert.Equal(t, 1.0, cfg.Retrieval.TextWeight)
}

func TestMissingFileIsIgnored(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Retrieval.Size)
}

func TestValidationRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"negative size", WithRetrievalSize(-1)},
		{"weight above one", WithTextWeight(1.5)},
		{"zero timeout", WithTimeout(0)},
		{"empty index", WithIndex("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader().WithOptions(tt.opt).Load()
			require.Error(t, err)
			assert.Equal(t, types.ErrConfigInvalid, types.CodeOf(err))
		})
	}
}
