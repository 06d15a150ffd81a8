package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"memetrend/internal/classifier"
	"memetrend/internal/vectorizer"
)

// TwitterConfig configures recent-search collection.
type TwitterConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url" validate:"omitempty,url"`
	BearerToken string `yaml:"bearer_token,omitempty"`
	MaxResults  int    `yaml:"max_results" validate:"min=0,max=100"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"min=0"`
}

// RedditConfig configures subreddit listing collection.
type RedditConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url" validate:"omitempty,url"`
	Subreddit   string `yaml:"subreddit"`
	Limit       int    `yaml:"limit" validate:"min=0,max=100"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"min=0"`
}

// WebConfig configures article scraping.
type WebConfig struct {
	Enabled           bool     `yaml:"enabled"`
	URLs              []string `yaml:"urls" validate:"dive,url"`
	SentencesPerChunk int      `yaml:"sentences_per_chunk" validate:"min=0"`
	OverlapSentences  int      `yaml:"overlap_sentences" validate:"min=0"`
	TimeoutSecs       int      `yaml:"timeout_secs" validate:"min=0"`
}

// SourcesConfig lists the document sources; Files are newline-delimited
// local documents.
type SourcesConfig struct {
	Query         string        `yaml:"query"`
	RatePerSecond float64       `yaml:"rate_per_second" validate:"min=0"`
	Twitter       TwitterConfig `yaml:"twitter"`
	Reddit        RedditConfig  `yaml:"reddit"`
	Web           WebConfig     `yaml:"web"`
	Files         []string      `yaml:"files"`
}

// TrendConfig configures topic detection.
type TrendConfig struct {
	Topics     int                `yaml:"topics" validate:"min=1"`
	TopWords   int                `yaml:"top_words" validate:"min=1"`
	Seed       uint64             `yaml:"seed"`
	Vectorizer vectorizer.Options `yaml:"vectorizer"`
}

// HuggingFaceConfig configures the hosted sentiment model.
type HuggingFaceConfig struct {
	BaseURL     string `yaml:"base_url" validate:"omitempty,url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"min=0"`
	BatchSize   int    `yaml:"batch_size" validate:"min=0"`
}

// SentimentConfig selects the sentiment scorer.
type SentimentConfig struct {
	Type        string             `yaml:"type" validate:"oneof=lexicon huggingface"`
	HuggingFace *HuggingFaceConfig `yaml:"huggingface,omitempty"`
}

// ClassifierConfig configures meme-success features and the boosted model.
type ClassifierConfig struct {
	Features       vectorizer.Options `yaml:"features"`
	Params         classifier.Params  `yaml:"params"`
	VectorizerPath string             `yaml:"vectorizer_path"`
	ModelPath      string             `yaml:"model_path"`
}

// RecommenderConfig selects how interests match trends.
type RecommenderConfig struct {
	Match string `yaml:"match" validate:"oneof=label words"`
}

// ProfileConfig selects the preference store.
type ProfileConfig struct {
	UserID string `yaml:"user_id" validate:"required"`
	Store  string `yaml:"store" validate:"oneof=static yaml sqlite"`
	Path   string `yaml:"path" validate:"required_unless=Store static"`
}

// SolanaConfig configures the RPC node and the wallet to report.
type SolanaConfig struct {
	RPCURL        string `yaml:"rpc_url" validate:"omitempty,url"`
	WalletAddress string `yaml:"wallet_address"`
	Commitment    string `yaml:"commitment" validate:"omitempty,oneof=processed confirmed finalized"`
	TimeoutSecs   int    `yaml:"timeout_secs" validate:"min=0"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled off"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Sources     SourcesConfig     `yaml:"sources"`
	Trends      TrendConfig       `yaml:"trends"`
	Sentiment   SentimentConfig   `yaml:"sentiment"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Recommender RecommenderConfig `yaml:"recommender"`
	Profile     ProfileConfig     `yaml:"profile"`
	Solana      SolanaConfig      `yaml:"solana"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// Timeout converts a seconds setting, zero meaning the component default.
func Timeout(secs int) time.Duration {
	return time.Duration(secs) * time.Second
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadEnv reads a .env file from the working directory if present.
// Variables already set in the environment win.
func LoadEnv() {
	_ = godotenv.Load()
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied and the result is validated.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyConfigDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./memetrend.yaml first, then ~/.config/memetrend/config.yaml.
// If neither exists, it writes defaults to ~/.config/memetrend/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "memetrend.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, defaultConfig()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
// Secrets taken from the environment are not written.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out := *cfg
	out.Sources.Twitter.BearerToken = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "memetrend", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	features := vectorizer.DefaultOptions()
	features.MaxFeatures = 10000
	features.NGramMax = 2
	features.SublinearTF = true

	trendOpts := vectorizer.DefaultOptions()
	trendOpts.MaxDF = 0.95

	return &AppConfig{
		Sources: SourcesConfig{
			Query:         "meme",
			RatePerSecond: 1,
			Twitter:       TwitterConfig{Enabled: true, MaxResults: 100},
			Reddit:        RedditConfig{Enabled: true, Subreddit: "crypto", Limit: 100},
			Web:           WebConfig{SentencesPerChunk: 3, OverlapSentences: 1},
		},
		Trends:      TrendConfig{Topics: 10, TopWords: 10, Seed: 42, Vectorizer: trendOpts},
		Sentiment:   SentimentConfig{Type: "lexicon"},
		Classifier:  ClassifierConfig{Features: features, Params: classifier.DefaultParams()},
		Recommender: RecommenderConfig{Match: "label"},
		Profile:     ProfileConfig{UserID: "user123", Store: "static"},
		Solana:      SolanaConfig{RPCURL: "https://api.mainnet-beta.solana.com", Commitment: "confirmed"},
		Logging:     LoggingConfig{Level: "info", Format: "console"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Sources.Query == "" {
		cfg.Sources.Query = "meme"
	}
	if cfg.Trends.Topics == 0 {
		cfg.Trends.Topics = 10
	}
	if cfg.Trends.TopWords == 0 {
		cfg.Trends.TopWords = 10
	}
	if cfg.Sentiment.Type == "" {
		cfg.Sentiment.Type = "lexicon"
	}
	if cfg.Sentiment.Type == "huggingface" {
		if cfg.Sentiment.HuggingFace == nil {
			cfg.Sentiment.HuggingFace = &HuggingFaceConfig{}
		}
		hf := cfg.Sentiment.HuggingFace
		if hf.BaseURL == "" {
			hf.BaseURL = "https://api-inference.huggingface.co"
		}
		if hf.APIKeyEnv == "" {
			hf.APIKeyEnv = "HF_API_TOKEN"
		}
		if hf.Model == "" {
			hf.Model = "nlptown/bert-base-multilingual-uncased-sentiment"
		}
		if hf.TimeoutSecs == 0 {
			hf.TimeoutSecs = 30
		}
		if hf.BatchSize == 0 {
			hf.BatchSize = 16
		}
	}
	if cfg.Recommender.Match == "" {
		cfg.Recommender.Match = "label"
	}
	if cfg.Profile.UserID == "" {
		cfg.Profile.UserID = "user123"
	}
	if cfg.Profile.Store == "" {
		cfg.Profile.Store = "static"
	}
}

// applyEnv lets the environment override secrets and deployment settings.
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("TWITTER_BEARER_TOKEN"); v != "" {
		cfg.Sources.Twitter.BearerToken = v
	}
	if v := os.Getenv("SOLANA_RPC_URL"); v != "" {
		cfg.Solana.RPCURL = v
	}
	if v := os.Getenv("SOLANA_WALLET_ADDRESS"); v != "" {
		cfg.Solana.WalletAddress = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}
