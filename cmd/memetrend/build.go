package main

import (
	"fmt"

	"memetrend/internal/classifier"
	"memetrend/internal/config"
	"memetrend/internal/domain"
	"memetrend/internal/pipeline"
	"memetrend/internal/profile"
	"memetrend/internal/recommend"
	"memetrend/internal/sentiment"
	"memetrend/internal/solana"
	"memetrend/internal/source"
	"memetrend/internal/trend"
	"memetrend/internal/vectorizer"
)

func buildSources(cfg *config.AppConfig) []domain.DocumentSource {
	sc := cfg.Sources
	var out []domain.DocumentSource
	if sc.Twitter.Enabled {
		out = append(out, source.NewTwitter(source.TwitterConfig{
			BaseURL:     sc.Twitter.BaseURL,
			BearerToken: sc.Twitter.BearerToken,
			MaxResults:  sc.Twitter.MaxResults,
			Client:      source.ClientConfig{Timeout: config.Timeout(sc.Twitter.TimeoutSecs), RatePerSecond: sc.RatePerSecond},
		}))
	}
	if sc.Reddit.Enabled {
		out = append(out, source.NewReddit(source.RedditConfig{
			BaseURL:   sc.Reddit.BaseURL,
			Subreddit: sc.Reddit.Subreddit,
			Limit:     sc.Reddit.Limit,
			Client:    source.ClientConfig{Timeout: config.Timeout(sc.Reddit.TimeoutSecs), RatePerSecond: sc.RatePerSecond},
		}))
	}
	if sc.Web.Enabled && len(sc.Web.URLs) > 0 {
		out = append(out, source.NewWeb(source.WebConfig{
			URLs:              sc.Web.URLs,
			SentencesPerChunk: sc.Web.SentencesPerChunk,
			OverlapSentences:  sc.Web.OverlapSentences,
			Client:            source.ClientConfig{Timeout: config.Timeout(sc.Web.TimeoutSecs), RatePerSecond: sc.RatePerSecond},
		}))
	}
	if len(sc.Files) > 0 {
		out = append(out, source.File{Paths: sc.Files})
	}
	return out
}

func buildScorer(cfg *config.AppConfig) (domain.SentimentScorer, error) {
	switch cfg.Sentiment.Type {
	case "lexicon", "":
		return sentiment.NewLexicon(), nil
	case "huggingface":
		hf := cfg.Sentiment.HuggingFace
		if hf == nil {
			return nil, fmt.Errorf("huggingface sentiment config missing")
		}
		return sentiment.NewHuggingFace(sentiment.HuggingFaceConfig{
			BaseURL:   hf.BaseURL,
			APIKeyEnv: hf.APIKeyEnv,
			Model:     hf.Model,
			Timeout:   config.Timeout(hf.TimeoutSecs),
			BatchSize: hf.BatchSize,
		}), nil
	default:
		return nil, fmt.Errorf("unknown sentiment scorer: %s", cfg.Sentiment.Type)
	}
}

// buildProfileStore returns the store and a cleanup func.
func buildProfileStore(cfg *config.AppConfig) (profile.Store, func(), error) {
	switch cfg.Profile.Store {
	case "static", "":
		return profile.NewStaticStore(), func() {}, nil
	case "yaml":
		return profile.YAMLStore{Path: cfg.Profile.Path}, func() {}, nil
	case "sqlite":
		s, err := profile.OpenSQLite(cfg.Profile.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown profile store: %s", cfg.Profile.Store)
	}
}

func buildRecommender(cfg *config.AppConfig) (*recommend.Recommender, error) {
	mode, err := recommend.ParseMatchMode(cfg.Recommender.Match)
	if err != nil {
		return nil, err
	}
	return recommend.New(mode), nil
}

func buildDetector(cfg *config.AppConfig) *trend.Detector {
	return trend.NewDetector(cfg.Trends.Vectorizer, cfg.Trends.Seed)
}

func buildSolana(cfg *config.AppConfig) *solana.Client {
	return solana.NewClient(solana.Config{
		URL:        cfg.Solana.RPCURL,
		Commitment: cfg.Solana.Commitment,
		Timeout:    config.Timeout(cfg.Solana.TimeoutSecs),
	})
}

// buildService assembles the pipeline. The returned cleanup releases the
// profile store and RPC connections.
func buildService(cfg *config.AppConfig, sources []domain.DocumentSource) (*pipeline.Service, func(), error) {
	scorer, err := buildScorer(cfg)
	if err != nil {
		return nil, nil, err
	}
	rec, err := buildRecommender(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := buildProfileStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	sol := buildSolana(cfg)

	svc := pipeline.NewService(pipeline.Deps{
		Sources:     sources,
		Detector:    buildDetector(cfg),
		Scorer:      scorer,
		Vectorizer:  vectorizer.New(cfg.Classifier.Features),
		Classifier:  classifier.New(cfg.Classifier.Params),
		Recommender: rec,
		Profiles:    store,
		Balance:     sol,
	}, pipeline.Options{
		Query:          cfg.Sources.Query,
		Topics:         cfg.Trends.Topics,
		TopWords:       cfg.Trends.TopWords,
		UserID:         cfg.Profile.UserID,
		VectorizerPath: cfg.Classifier.VectorizerPath,
		ModelPath:      cfg.Classifier.ModelPath,
		WalletAddress:  cfg.Solana.WalletAddress,
	})
	cleanup := func() {
		sol.Close()
		closeStore()
	}
	return svc, cleanup, nil
}
