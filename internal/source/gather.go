package source

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"memetrend/internal/domain"
	"memetrend/internal/logging"
	"memetrend/internal/metrics"
)

// Gather fetches every source concurrently and concatenates the documents
// in source order. A failing source is logged and contributes nothing.
func Gather(ctx context.Context, query string, sources ...domain.DocumentSource) []string {
	results := make([][]string, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			start := time.Now()
			docs, err := src.Fetch(ctx, query)
			metrics.RecordFetch(src.Name(), len(docs), err)
			log := logging.Ctx(ctx)
			if err != nil {
				log.Error().Err(err).Str("op", "fetch").Str("source", src.Name()).Msg("source fetch failed")
				return nil
			}
			log.Info().Str("source", src.Name()).Int("count", len(docs)).Dur("took", time.Since(start)).Msg("documents fetched")
			results[i] = docs
			return nil
		})
	}
	_ = g.Wait()

	out := []string{}
	for _, docs := range results {
		out = append(out, docs...)
	}
	return out
}

// Static serves a fixed document list, e.g. the contents of a local file.
type Static struct {
	Label string
	Docs  []string
}

func (s Static) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

func (s Static) Fetch(context.Context, string) ([]string, error) {
	return append([]string{}, s.Docs...), nil
}
