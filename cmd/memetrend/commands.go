package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"memetrend/internal/domain"
	"memetrend/internal/logging"
	"memetrend/internal/metrics"
	"memetrend/internal/pipeline"
	"memetrend/internal/profile"
	"memetrend/internal/source"
	"memetrend/internal/tui"
)

const lamportsPerSOL = 1_000_000_000

var (
	runWatch    string
	runQuery    string
	runFiles    []string
	trendTopics int
	trendWords  int
	recUser     string
	profUser    string
	profSet     []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline once, or on a schedule with --watch",
	Long: `Run gathers documents from every enabled source, detects trends, scores
sentiment, predicts meme success and prints the recommendations.

Examples:
  memetrend run
  memetrend run --file posts.txt
  memetrend run --watch "@every 30m"
  memetrend run --watch "0 */6 * * *"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runQuery != "" {
			cfg.Sources.Query = runQuery
		}
		cfg.Sources.Files = append(cfg.Sources.Files, runFiles...)
		svc, cleanup, err := buildService(cfg, buildSources(cfg))
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := cmd.Context()
		if addr := cfg.Metrics.Addr; addr != "" {
			go func() {
				if err := metrics.Serve(ctx, addr); err != nil {
					logging.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
				}
			}()
		}

		out := cmd.OutOrStdout()
		if runWatch != "" {
			return pipeline.Watch(ctx, runWatch, svc, func(r *pipeline.Report) { printReport(out, r) })
		}
		r, err := svc.Run(ctx)
		if err != nil {
			return err
		}
		printReport(out, r)
		return nil
	},
}

var trendsCmd = &cobra.Command{
	Use:   "trends <file>",
	Short: "Detect trends in a newline-delimited document file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := source.ReadLines(args[0])
		if err != nil {
			return err
		}
		trends, err := buildDetector(cfg).Detect(docs, topicsFlag(), wordsFlag())
		if err != nil {
			return err
		}
		for _, label := range domain.Labels(trends) {
			fmt.Fprintln(cmd.OutOrStdout(), label)
		}
		return nil
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <file>",
	Short: "Recommend meme coins for the trends of a document file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := source.ReadLines(args[0])
		if err != nil {
			return err
		}
		rec, err := buildRecommender(cfg)
		if err != nil {
			return err
		}
		store, closeStore, err := buildProfileStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		user := cfg.Profile.UserID
		if recUser != "" {
			user = recUser
		}
		trends := buildDetector(cfg).DetectTrends(docs, topicsFlag(), wordsFlag())
		p := profile.Load(cmd.Context(), user, store)
		for _, r := range rec.GenerateRecommendations(trends, p.Preferences()) {
			fmt.Fprintln(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

var trainCmd = &cobra.Command{
	Use:   "train <labelled.tsv>",
	Short: "Train the meme success model on labelled documents",
	Long: `Train fits the feature vectorizer and the boosted classifier on a file of
"<label>\t<text>" lines (label 0 or 1) and saves both artifacts to the paths
configured under classifier.vectorizer_path and classifier.model_path.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Classifier.VectorizerPath == "" || cfg.Classifier.ModelPath == "" {
			return errors.New("classifier.vectorizer_path and classifier.model_path must be set")
		}
		lines, err := source.ReadLines(args[0])
		if err != nil {
			return err
		}
		docs, labels, err := parseLabelled(lines)
		if err != nil {
			return err
		}
		svc, cleanup, err := buildService(cfg, nil)
		if err != nil {
			return err
		}
		defer cleanup()
		if err := svc.Train(cmd.Context(), docs, labels); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "trained on %d documents\nvectorizer: %s\nmodel: %s\n",
			len(docs), cfg.Classifier.VectorizerPath, cfg.Classifier.ModelPath)
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Show the SOL balance of a wallet",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.Solana.WalletAddress
		if len(args) == 1 {
			addr = args[0]
		}
		if addr == "" {
			return errors.New("no wallet address given")
		}
		client := buildSolana(cfg)
		defer client.Close()
		lamports, err := client.GetBalance(cmd.Context(), addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d lamports (%.9f SOL)\n", addr, lamports, float64(lamports)/lamportsPerSOL)
		return nil
	},
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Run the pipeline once and browse the results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Sources.Files = append(cfg.Sources.Files, runFiles...)
		svc, cleanup, err := buildService(cfg, buildSources(cfg))
		if err != nil {
			return err
		}
		defer cleanup()
		r, err := svc.Run(cmd.Context())
		if err != nil {
			return err
		}
		rec, err := buildRecommender(cfg)
		if err != nil {
			return err
		}
		store, closeStore, err := buildProfileStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		p := profile.Load(cmd.Context(), cfg.Profile.UserID, store)

		m := tui.New(r, rec, p.Preferences().Interests())
		if _, ok := store.(profile.Saver); ok {
			ctx, user := cmd.Context(), cfg.Profile.UserID
			m = m.WithSave(func(interests []string) error {
				return profile.SetInterests(ctx, store, user, interests)
			})
		}
		_, err = tea.NewProgram(m, tea.WithContext(cmd.Context())).Run()
		return err
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or change a user's interests",
	Long: `Profile prints the stored interests of a user. With --interests it replaces
them first; this needs profile.store set to yaml or sqlite.

Examples:
  memetrend profile
  memetrend profile --user alice --interests crypto,memes,AI`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := buildProfileStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		user := cfg.Profile.UserID
		if profUser != "" {
			user = profUser
		}
		if cmd.Flags().Changed("interests") {
			if err := profile.SetInterests(cmd.Context(), store, user, profSet); err != nil {
				return err
			}
		}
		prefs, err := store.Load(cmd.Context(), user)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", user, strings.Join(prefs.Interests(), ", "))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runWatch, "watch", "", "Cron schedule to re-run on (e.g. \"@every 1h\")")
	runCmd.Flags().StringVar(&runQuery, "query", "", "Search query for social sources")
	runCmd.Flags().StringSliceVar(&runFiles, "file", nil, "Newline-delimited document files to include")
	browseCmd.Flags().StringSliceVar(&runFiles, "file", nil, "Newline-delimited document files to include")

	for _, c := range []*cobra.Command{trendsCmd, recommendCmd} {
		c.Flags().IntVar(&trendTopics, "topics", 0, "Number of trends (defaults to trends.topics)")
		c.Flags().IntVar(&trendWords, "top-words", 0, "Words per trend (defaults to trends.top_words)")
	}
	recommendCmd.Flags().StringVar(&recUser, "user", "", "User whose interests are matched (defaults to profile.user_id)")
	profileCmd.Flags().StringVar(&profUser, "user", "", "User to show or change (defaults to profile.user_id)")
	profileCmd.Flags().StringSliceVar(&profSet, "interests", nil, "Replace the user's interests (comma separated)")
}

func topicsFlag() int {
	if trendTopics > 0 {
		return trendTopics
	}
	return cfg.Trends.Topics
}

func wordsFlag() int {
	if trendWords > 0 {
		return trendWords
	}
	return cfg.Trends.TopWords
}

// parseLabelled splits "<label>\t<text>" lines.
func parseLabelled(lines []string) ([]string, []int, error) {
	docs := make([]string, 0, len(lines))
	labels := make([]int, 0, len(lines))
	for i, line := range lines {
		label, text, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, nil, fmt.Errorf("line %d: expected <label>\\t<text>", i+1)
		}
		y, err := strconv.Atoi(strings.TrimSpace(label))
		if err != nil || (y != 0 && y != 1) {
			return nil, nil, fmt.Errorf("line %d: label must be 0 or 1, got %q", i+1, label)
		}
		docs = append(docs, strings.TrimSpace(text))
		labels = append(labels, y)
	}
	return docs, labels, nil
}

func printReport(w io.Writer, r *pipeline.Report) {
	fmt.Fprintf(w, "run %s: %d documents in %s\n", r.RunID, len(r.Documents), r.Duration.Round(1e6))
	fmt.Fprintln(w, "\nTrends:")
	for _, t := range r.Trends {
		fmt.Fprintf(w, "  %s\n", t)
	}
	if len(r.Predictions) > 0 {
		var sum float64
		for _, p := range r.Predictions {
			sum += p
		}
		fmt.Fprintf(w, "\nMean predicted success: %.3f\n", sum/float64(len(r.Predictions)))
	}
	fmt.Fprintln(w, "\nRecommendations:")
	if len(r.Recommendations) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "  %s\n", rec)
	}
	if r.Balance != nil {
		fmt.Fprintf(w, "\nWallet balance: %d lamports\n", *r.Balance)
	}
	if len(r.Degraded) > 0 {
		fmt.Fprintf(w, "\nDegraded stages: %s\n", strings.Join(r.Degraded, ", "))
	}
}
