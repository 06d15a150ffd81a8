package sentiment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"memetrend/internal/source"
)

// DefaultModel is the five-star multilingual review model.
const DefaultModel = "nlptown/bert-base-multilingual-uncased-sentiment"

// HuggingFaceConfig configures the inference API client.
type HuggingFaceConfig struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	BatchSize int
	// Client tunes rate limiting and the circuit breaker; its Timeout
	// defaults to Timeout.
	Client source.ClientConfig
}

// HuggingFace scores texts with a hosted text-classification model whose
// labels are star ratings.
type HuggingFace struct {
	baseURL    string
	apiKey     string
	model      string
	batchSize  int
	client     *source.Client
	maxRetries int
}

// NewHuggingFace builds a client. The API key is optional for public models.
func NewHuggingFace(cfg HuggingFaceConfig) *HuggingFace {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api-inference.huggingface.co"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Client.Timeout == 0 {
		cfg.Client.Timeout = cfg.Timeout
	}
	if cfg.Client.RatePerSecond <= 0 {
		cfg.Client.RatePerSecond = 5
	}
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	return &HuggingFace{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     key,
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		client:     source.NewClient("huggingface", cfg.Client),
		maxRetries: 3,
	}
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Score implements domain.SentimentScorer.
func (c *HuggingFace) Score(ctx context.Context, texts []string) ([]float64, error) {
	out := make([]float64, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		batch, err := c.scoreBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (c *HuggingFace) scoreBatch(ctx context.Context, texts []string) ([]float64, error) {
	payload, err := c.post(ctx, texts)
	if err != nil {
		return nil, err
	}
	results, err := decodeResults(payload, len(texts))
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = StarScore(r.Label, r.Score)
	}
	return scores, nil
}

func (c *HuggingFace) post(ctx context.Context, texts []string) ([]byte, error) {
	url := fmt.Sprintf("%s/models/%s", c.baseURL, c.model)
	data, err := json.Marshal(map[string]any{"inputs": texts})
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for attempt := 0; ; attempt++ {
		body, err := c.client.Post(ctx, url, data, header)
		if err == nil {
			return body, nil
		}
		delay, retry := retryAfter(err, attempt)
		if !retry || attempt >= c.maxRetries || ctx.Err() != nil {
			return nil, fmt.Errorf("sentiment inference failed: %w", err)
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// retryAfter decides whether err is worth another attempt. 503 is returned
// while the model is loading. An open breaker is final.
func retryAfter(err error, attempt int) (time.Duration, bool) {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return 0, false
	}
	var se *source.StatusError
	if errors.As(err, &se) {
		if !se.Temporary() {
			return 0, false
		}
		if se.RetryAfter > 0 {
			return se.RetryAfter, true
		}
	}
	return retryDelay(attempt), true
}

// decodeResults accepts the per-input label lists ([[{label,score}...]...])
// or a flat list, which is either all labels of a single input or the top
// label of each input.
func decodeResults(payload []byte, n int) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(payload, &nested); err == nil && len(nested) == n {
		out := make([]labelScore, n)
		for i, labels := range nested {
			out[i] = top(labels)
		}
		return out, nil
	}
	var flat []labelScore
	if err := json.Unmarshal(payload, &flat); err == nil && len(flat) > 0 {
		switch {
		case n == 1:
			return []labelScore{top(flat)}, nil
		case len(flat) == n:
			return flat, nil
		}
	}
	return nil, errors.New("unexpected sentiment response shape")
}

func top(labels []labelScore) labelScore {
	var best labelScore
	for i, l := range labels {
		if i == 0 || l.Score > best.Score {
			best = l
		}
	}
	return best
}

// StarScore maps a star-rating label to a signed score: one or two stars
// negate the confidence, four or five keep it, anything else is neutral.
func StarScore(label string, score float64) float64 {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "1 star", "2 stars":
		return -score
	case "4 stars", "5 stars":
		return score
	default:
		return 0
	}
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// exponential backoff capped at 5s
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
