// Package pipeline wires collection, trend detection, prediction and
// recommendation into a single run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"memetrend/internal/domain"
	"memetrend/internal/logging"
	"memetrend/internal/metrics"
	"memetrend/internal/persist"
	"memetrend/internal/profile"
	"memetrend/internal/sentiment"
	"memetrend/internal/source"
)

// ErrNoDocuments is returned when no source produced a document.
var ErrNoDocuments = errors.New("pipeline: no documents gathered")

// TrendDetector produces trend labels; failures yield an empty slice.
type TrendDetector interface {
	DetectTrends(documents []string, nTopics, nTopWords int) []string
}

// Recommender matches trend labels against user preferences.
type Recommender interface {
	GenerateRecommendations(trends []string, prefs domain.UserPreferences) []string
}

// BalanceFetcher looks up a wallet balance in lamports.
type BalanceFetcher interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
}

// Deps are the collaborators of a Service. Balance may be nil.
type Deps struct {
	Sources     []domain.DocumentSource
	Detector    TrendDetector
	Scorer      domain.SentimentScorer
	Vectorizer  domain.Vectorizer
	Classifier  domain.Classifier
	Recommender Recommender
	Profiles    profile.Store
	Balance     BalanceFetcher
}

// Options configure a run.
type Options struct {
	Query          string
	Topics         int
	TopWords       int
	UserID         string
	VectorizerPath string
	ModelPath      string
	WalletAddress  string
}

// Report carries every intermediate output of a run.
type Report struct {
	RunID           string
	Documents       []string
	Trends          []string
	Sentiments      []float64
	Predictions     []float64
	Recommendations []string
	// Balance is nil when no wallet is configured or the lookup failed.
	Balance  *uint64
	Degraded []string
	Duration time.Duration
}

// Service runs the pipeline. Runs are serialized.
type Service struct {
	mu         sync.Mutex
	deps       Deps
	opts       Options
	pretrained bool
}

// NewService builds a service. When both artifact paths hold saved
// artifacts they are loaded and later runs predict without retraining.
func NewService(deps Deps, opts Options) *Service {
	s := &Service{deps: deps, opts: opts}
	s.pretrained = s.loadArtifacts()
	return s
}

// Pretrained reports whether runs reuse a loaded vectorizer and model.
func (s *Service) Pretrained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pretrained
}

func (s *Service) loadArtifacts() bool {
	vp, mp := s.opts.VectorizerPath, s.opts.ModelPath
	if vp == "" || mp == "" || !persist.Exists(vp) || !persist.Exists(mp) {
		return false
	}
	if err := s.deps.Vectorizer.Load(vp); err != nil {
		logging.Warn().Err(err).Str("path", vp).Msg("ignoring saved vectorizer")
		return false
	}
	if err := s.deps.Classifier.Load(mp); err != nil {
		logging.Warn().Err(err).Str("path", mp).Msg("ignoring saved model")
		return false
	}
	return true
}

// Run executes one pass. Stage failures are logged and recorded in
// Report.Degraded; only a run without any document returns an error.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	r := &Report{RunID: uuid.NewString()}
	ctx = logging.WithRunID(ctx, r.RunID)
	log := logging.Ctx(ctx)
	log.Info().Str("query", s.opts.Query).Int("sources", len(s.deps.Sources)).Msg("pipeline run started")

	s.stage(ctx, r, "gather", func() error {
		r.Documents = source.Gather(ctx, s.opts.Query, s.deps.Sources...)
		if len(r.Documents) == 0 {
			return ErrNoDocuments
		}
		return nil
	})
	if len(r.Documents) == 0 {
		r.Duration = time.Since(start)
		metrics.RecordRun(0, 0, ErrNoDocuments)
		return r, ErrNoDocuments
	}

	s.stage(ctx, r, "trends", func() error {
		r.Trends = s.deps.Detector.DetectTrends(r.Documents, s.opts.Topics, s.opts.TopWords)
		if len(r.Trends) == 0 {
			return errors.New("no trends detected")
		}
		return nil
	})

	s.stage(ctx, r, "sentiment", func() error {
		r.Sentiments = sentiment.Analyze(ctx, s.deps.Scorer, r.Documents)
		if len(r.Sentiments) != len(r.Documents) {
			return errors.New("sentiment unavailable")
		}
		return nil
	})

	s.predict(ctx, r)

	s.stage(ctx, r, "recommend", func() error {
		p := profile.Load(ctx, s.opts.UserID, s.deps.Profiles)
		r.Recommendations = s.deps.Recommender.GenerateRecommendations(r.Trends, p.Preferences())
		return nil
	})

	if s.opts.WalletAddress != "" && s.deps.Balance != nil {
		s.stage(ctx, r, "balance", func() error {
			lamports, err := s.deps.Balance.GetBalance(ctx, s.opts.WalletAddress)
			if err != nil {
				return err
			}
			r.Balance = &lamports
			log.Info().Str("wallet", s.opts.WalletAddress).Uint64("lamports", lamports).Msg("wallet balance")
			return nil
		})
	}

	r.Duration = time.Since(start)
	metrics.RecordRun(len(r.Trends), len(r.Recommendations), nil)
	log.Info().
		Int("documents", len(r.Documents)).
		Int("trends", len(r.Trends)).
		Int("recommendations", len(r.Recommendations)).
		Strs("degraded", r.Degraded).
		Dur("took", r.Duration).
		Msg("pipeline run completed")
	return r, nil
}

// predict extracts features, trains on sentiment proxy labels unless a
// pretrained model is loaded, and scores every document.
func (s *Service) predict(ctx context.Context, r *Report) {
	var x *mat.Dense
	s.stage(ctx, r, "features", func() error {
		var err error
		if s.pretrained {
			x, err = s.deps.Vectorizer.Transform(r.Documents)
		} else {
			x, err = s.deps.Vectorizer.FitTransform(r.Documents)
		}
		return err
	})
	if x == nil {
		return
	}

	if !s.pretrained {
		trained := false
		s.stage(ctx, r, "train", func() error {
			if len(r.Sentiments) != len(r.Documents) {
				return errors.New("no labels without sentiment")
			}
			if err := s.deps.Classifier.Train(x, ProxyLabels(r.Sentiments)); err != nil {
				return err
			}
			trained = true
			return s.saveArtifacts()
		})
		// a model from an earlier run does not match this vocabulary
		if !trained {
			return
		}
	}

	s.stage(ctx, r, "predict", func() error {
		var err error
		r.Predictions, err = s.deps.Classifier.Predict(x)
		return err
	})
}

// Train fits the vectorizer and classifier on labelled documents, saves the
// artifacts and makes later runs reuse them.
func (s *Service) Train(ctx context.Context, documents []string, labels []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, err := s.deps.Vectorizer.FitTransform(documents)
	if err != nil {
		return fmt.Errorf("extract features: %w", err)
	}
	if err := s.deps.Classifier.Train(x, labels); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if err := s.saveArtifacts(); err != nil {
		return err
	}
	s.pretrained = true
	logging.Ctx(ctx).Info().Int("documents", len(documents)).Msg("model trained on labelled documents")
	return nil
}

func (s *Service) saveArtifacts() error {
	var errs []error
	if p := s.opts.VectorizerPath; p != "" {
		errs = append(errs, s.deps.Vectorizer.Save(p))
	}
	if p := s.opts.ModelPath; p != "" {
		errs = append(errs, s.deps.Classifier.Save(p))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("save artifacts: %w", err)
	}
	return nil
}

func (s *Service) stage(ctx context.Context, r *Report, name string, fn func() error) {
	start := time.Now()
	err := fn()
	took := time.Since(start)
	metrics.RecordStage(name, took, err != nil)
	if err != nil {
		r.Degraded = append(r.Degraded, name)
		logging.Ctx(ctx).Warn().Err(err).Str("stage", name).Dur("took", took).Msg("stage degraded")
		return
	}
	logging.Ctx(ctx).Debug().Str("stage", name).Dur("took", took).Msg("stage completed")
}

// ProxyLabels marks documents with positive sentiment as successful.
func ProxyLabels(sentiments []float64) []int {
	labels := make([]int, len(sentiments))
	for i, s := range sentiments {
		if s > 0 {
			labels[i] = 1
		}
	}
	return labels
}
