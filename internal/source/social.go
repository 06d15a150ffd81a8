package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"memetrend/internal/logging"
)

// ErrMissingToken is returned by the Twitter source when no bearer token is configured.
var ErrMissingToken = errors.New("source: missing bearer token")

// TwitterConfig configures the recent-search client.
type TwitterConfig struct {
	BaseURL     string
	BearerToken string
	MaxResults  int
	Client      ClientConfig
}

// Twitter fetches recent tweets matching a query.
type Twitter struct {
	baseURL    string
	token      string
	maxResults int
	client     *Client
}

func NewTwitter(cfg TwitterConfig) *Twitter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twitter.com"
	}
	// the API accepts 10..100
	cfg.MaxResults = max(10, min(cfg.MaxResults, 100))
	return &Twitter{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.BearerToken,
		maxResults: cfg.MaxResults,
		client:     NewClient("twitter", cfg.Client),
	}
}

func (t *Twitter) Name() string { return "twitter" }

// Fetch returns tweet texts. Responses without a data array yield nothing.
func (t *Twitter) Fetch(ctx context.Context, query string) ([]string, error) {
	if t.token == "" {
		return nil, ErrMissingToken
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("max_results", strconv.Itoa(t.maxResults))
	q.Set("tweet.fields", "created_at,public_metrics")

	header := http.Header{}
	header.Set("Authorization", "Bearer "+t.token)
	body, err := t.client.Get(ctx, t.baseURL+"/2/tweets/search/recent?"+q.Encode(), header)
	if err != nil {
		return nil, fmt.Errorf("twitter search: %w", err)
	}

	var resp struct {
		Data []struct {
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("source", t.Name()).Msg("unexpected response shape")
		return []string{}, nil
	}
	docs := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		if s := strings.TrimSpace(d.Text); s != "" {
			docs = append(docs, s)
		}
	}
	return docs, nil
}

// RedditConfig configures the subreddit listing client.
type RedditConfig struct {
	BaseURL   string
	Subreddit string
	Limit     int
	Client    ClientConfig
}

// Reddit fetches the newest post titles of a subreddit.
type Reddit struct {
	baseURL   string
	subreddit string
	limit     int
	client    *Client
}

func NewReddit(cfg RedditConfig) *Reddit {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.reddit.com"
	}
	if cfg.Subreddit == "" {
		cfg.Subreddit = "CryptoCurrency"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	return &Reddit{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		subreddit: cfg.Subreddit,
		limit:     cfg.Limit,
		client:    NewClient("reddit", cfg.Client),
	}
}

func (r *Reddit) Name() string { return "reddit" }

// Fetch ignores query; listings are per subreddit.
func (r *Reddit) Fetch(ctx context.Context, _ string) ([]string, error) {
	u := fmt.Sprintf("%s/r/%s/new.json?limit=%d", r.baseURL, url.PathEscape(r.subreddit), r.limit)
	body, err := r.client.Get(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("reddit listing: %w", err)
	}

	var resp struct {
		Data struct {
			Children []struct {
				Data struct {
					Title string `json:"title"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("source", r.Name()).Msg("unexpected response shape")
		return []string{}, nil
	}
	docs := make([]string, 0, len(resp.Data.Children))
	for _, c := range resp.Data.Children {
		if s := strings.TrimSpace(c.Data.Title); s != "" {
			docs = append(docs, s)
		}
	}
	return docs, nil
}
