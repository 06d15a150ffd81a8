package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"memetrend/internal/config"
	"memetrend/internal/logging"
)

var (
	cfgPath  string
	logLevel string
	cfg      *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "memetrend",
	Short: "Detect meme trends and recommend meme coins",
	Long: `memetrend collects posts from social and web sources, detects trending
topics, scores sentiment, predicts meme success and recommends meme coins
that match a user's interests.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadEnv()

		var err error
		path := cfgPath
		if path == "" {
			cfg, path, err = config.LoadDefault()
		} else {
			cfg, err = config.Load(path)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		logging.Debug().Str("path", path).Msg("config loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (uses ./memetrend.yaml or ~/.config/memetrend/config.yaml if not provided)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(runCmd, trendsCmd, recommendCmd, trainCmd, balanceCmd, browseCmd, profileCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logging.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
