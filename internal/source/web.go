package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"memetrend/internal/chunker"
	"memetrend/internal/logging"
)

// WebConfig configures the article scraper.
type WebConfig struct {
	URLs              []string
	SentencesPerChunk int
	OverlapSentences  int
	MaxConcurrency    int
	Client            ClientConfig
}

// Web scrapes the readable text of configured pages and splits it into
// sentence windows, one document per window.
type Web struct {
	urls        []string
	chunker     *chunker.SentenceChunker
	concurrency int
	client      *Client
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &Web{
		urls:        cfg.URLs,
		chunker:     chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences),
		concurrency: cfg.MaxConcurrency,
		client:      NewClient("web", cfg.Client),
	}
}

func (w *Web) Name() string { return "web" }

// Fetch scrapes every URL. Pages that fail are logged and skipped; an error
// is returned only when all of them fail.
func (w *Web) Fetch(ctx context.Context, _ string) ([]string, error) {
	results := make([][]string, len(w.urls))
	errs := make([]error, len(w.urls))

	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for i, u := range w.urls {
		g.Go(func() error {
			results[i], errs[i] = w.scrape(ctx, u)
			if errs[i] != nil {
				logging.Ctx(ctx).Warn().Err(errs[i]).Str("source", w.Name()).Str("url", u).Msg("scrape failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	var docs []string
	failed := 0
	for i := range w.urls {
		if errs[i] != nil {
			failed++
			continue
		}
		docs = append(docs, results[i]...)
	}
	if len(w.urls) > 0 && failed == len(w.urls) {
		return nil, fmt.Errorf("web: all %d pages failed: %w", failed, errors.Join(errs...))
	}
	if docs == nil {
		docs = []string{}
	}
	return docs, nil
}

func (w *Web) scrape(ctx context.Context, rawURL string) ([]string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	body, err := w.client.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if title := strings.TrimSpace(article.Title); title != "" && !strings.HasPrefix(text, title) {
		text = title + ". " + text
	}
	return w.chunker.Chunk(text), nil
}
