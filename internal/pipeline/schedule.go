package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"memetrend/internal/logging"
)

// Runner is anything that performs one pipeline pass.
type Runner interface {
	Run(ctx context.Context) (*Report, error)
}

// Watch runs r on the cron schedule spec until ctx is cancelled. A run that
// is still in progress when the next tick fires makes that tick skip.
// onReport receives every successful report; it may be nil.
func Watch(ctx context.Context, spec string, r Runner, onReport func(*Report)) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		report, err := r.Run(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Msg("scheduled run failed")
			}
			return
		}
		if onReport != nil {
			onReport(report)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	logging.Info().Str("schedule", spec).Msg("watching")
	c.Start()
	<-ctx.Done()
	// wait for a running pass to finish
	<-c.Stop().Done()
	return nil
}
