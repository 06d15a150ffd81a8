package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memetrend/internal/logging"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "meme", cfg.Sources.Query)
	assert.Equal(t, "crypto", cfg.Sources.Reddit.Subreddit)
	assert.Equal(t, 10, cfg.Trends.Topics)
	assert.Equal(t, 10, cfg.Trends.TopWords)
	assert.Equal(t, uint64(42), cfg.Trends.Seed)
	assert.Equal(t, 0.95, cfg.Trends.Vectorizer.MaxDF)
	assert.Equal(t, 10000, cfg.Classifier.Features.MaxFeatures)
	assert.Equal(t, 2, cfg.Classifier.Features.NGramMax)
	assert.Equal(t, 300, cfg.Classifier.Params.NEstimators)
	assert.Equal(t, "label", cfg.Recommender.Match)
	assert.Equal(t, "static", cfg.Profile.Store)
	assert.Equal(t, "user123", cfg.Profile.UserID)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memetrend.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
trends:
  topics: 3
sentiment:
  type: huggingface
recommender:
  match: words
profile:
  store: sqlite
  path: prefs.db
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Trends.Topics)
	assert.Equal(t, 10, cfg.Trends.TopWords)
	assert.Equal(t, "words", cfg.Recommender.Match)
	require.NotNil(t, cfg.Sentiment.HuggingFace)
	assert.Equal(t, "HF_API_TOKEN", cfg.Sentiment.HuggingFace.APIKeyEnv)
	assert.Equal(t, 16, cfg.Sentiment.HuggingFace.BatchSize)
	assert.Equal(t, "prefs.db", cfg.Profile.Path)
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"bad sentiment": "sentiment:\n  type: vader\n",
		"bad match":     "recommender:\n  match: fuzzy\n",
		"store no path": "profile:\n  store: yaml\n",
		"bad url":       "sources:\n  web:\n    urls: [\"not a url\"]\n",
		"bad results":   "sources:\n  twitter:\n    max_results: 500\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLogLevelsAcceptedAreHonoured(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	for _, level := range []string{"trace", "debug", "warn", "warning", "error", "fatal", "panic", "disabled", "off"} {
		cfg.Logging.Level = level
		require.NoError(t, cfg.Validate(), level)
		assert.NotEqual(t, zerolog.InfoLevel, logging.ParseLevel(level), level)
	}

	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trends: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TWITTER_BEARER_TOKEN", "secret")
	t.Setenv("SOLANA_RPC_URL", "http://localhost:8899")
	t.Setenv("SOLANA_WALLET_ADDRESS", "11111111111111111111111111111111")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Sources.Twitter.BearerToken)
	assert.Equal(t, "http://localhost:8899", cfg.Solana.RPCURL)
	assert.Equal(t, "11111111111111111111111111111111", cfg.Solana.WalletAddress)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSaveOmitsSecretsAndRoundTrips(t *testing.T) {
	t.Setenv("TWITTER_BEARER_TOKEN", "secret")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Trends.Topics = 4

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, Save(path, cfg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Equal(t, "secret", cfg.Sources.Twitter.BearerToken, "caller's config is untouched")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Trends.Topics)
}

func TestLoadDefaultWritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "memetrend", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, 10, cfg.Trends.Topics)
}
