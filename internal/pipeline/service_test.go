package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memetrend/internal/classifier"
	"memetrend/internal/domain"
	"memetrend/internal/profile"
	"memetrend/internal/recommend"
	"memetrend/internal/sentiment"
	"memetrend/internal/source"
	"memetrend/internal/trend"
	"memetrend/internal/vectorizer"
)

var corpus = []string{
	"Bitcoin is surging to new highs and traders love it",
	"Meme coins are becoming popular with amazing gains",
	"AI and cryptocurrency are the future of finance",
	"This new token is a scam and will crash hard",
	"Dog coins dumping after the rugpull, terrible losses",
	"Gaming tokens rally as NFTs win back players",
	"Crypto markets panic while memes stay popular",
	"Bearish traders fear another crash in meme coins",
}

type failingSource struct{}

func (failingSource) Name() string { return "down" }
func (failingSource) Fetch(context.Context, string) ([]string, error) {
	return nil, errors.New("unreachable")
}

type fixedBalance struct {
	lamports uint64
	err      error
	calls    int
}

func (b *fixedBalance) GetBalance(context.Context, string) (uint64, error) {
	b.calls++
	return b.lamports, b.err
}

func newDeps(sources ...domain.DocumentSource) Deps {
	params := classifier.DefaultParams()
	params.NEstimators = 20
	params.MaxDepth = 3
	return Deps{
		Sources:     sources,
		Detector:    trend.NewDetector(vectorizer.DefaultOptions(), 42),
		Scorer:      sentiment.NewLexicon(),
		Vectorizer:  vectorizer.New(vectorizer.DefaultOptions()),
		Classifier:  classifier.New(params),
		Recommender: recommend.New(recommend.MatchLabel),
		Profiles:    profile.NewStaticStore(),
	}
}

func defaultOptions() Options {
	return Options{Query: "meme", Topics: 2, TopWords: 5, UserID: "user123"}
}

func TestRunEndToEnd(t *testing.T) {
	deps := newDeps(failingSource{}, source.Static{Docs: corpus})
	bal := &fixedBalance{lamports: 42}
	deps.Balance = bal
	opts := defaultOptions()
	opts.WalletAddress = "11111111111111111111111111111111"

	r, err := NewService(deps, opts).Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, corpus, r.Documents)
	require.Len(t, r.Trends, 2)
	assert.Contains(t, r.Trends[0], "Trend 1: ")
	assert.Contains(t, r.Trends[1], "Trend 2: ")
	assert.Len(t, r.Sentiments, len(corpus))
	assert.Len(t, r.Predictions, len(corpus))
	for _, p := range r.Predictions {
		assert.True(t, p >= 0 && p <= 1)
	}
	assert.LessOrEqual(t, len(r.Recommendations), len(r.Trends))
	for _, rec := range r.Recommendations {
		assert.Contains(t, rec, "Create a meme coin based on Trend ")
	}
	require.NotNil(t, r.Balance)
	assert.Equal(t, uint64(42), *r.Balance)
	assert.Empty(t, r.Degraded)
}

func TestRunDeterministic(t *testing.T) {
	a, err := NewService(newDeps(source.Static{Docs: corpus}), defaultOptions()).Run(context.Background())
	require.NoError(t, err)
	b, err := NewService(newDeps(source.Static{Docs: corpus}), defaultOptions()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a.Trends, b.Trends)
	assert.Equal(t, a.Predictions, b.Predictions)
	assert.Equal(t, a.Recommendations, b.Recommendations)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRunWithoutDocumentsFails(t *testing.T) {
	r, err := NewService(newDeps(failingSource{}), defaultOptions()).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoDocuments)
	require.NotNil(t, r)
	assert.Contains(t, r.Degraded, "gather")
}

func TestRunDegradesStages(t *testing.T) {
	deps := newDeps(source.Static{Docs: []string{"doge doge", "pepe pepe"}})
	deps.Balance = &fixedBalance{err: errors.New("rpc down")}
	opts := defaultOptions()
	opts.Topics = 5
	opts.WalletAddress = "11111111111111111111111111111111"

	r, err := NewService(deps, opts).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, r.Trends, "more topics than documents")
	assert.Empty(t, r.Recommendations)
	assert.Nil(t, r.Predictions, "neutral sentiment gives a single class")
	assert.Nil(t, r.Balance)
	assert.Contains(t, r.Degraded, "trends")
	assert.Contains(t, r.Degraded, "train")
	assert.Contains(t, r.Degraded, "balance")
}

func TestRunSkipsBalanceWithoutWallet(t *testing.T) {
	deps := newDeps(source.Static{Docs: corpus})
	bal := &fixedBalance{lamports: 1}
	deps.Balance = bal

	r, err := NewService(deps, defaultOptions()).Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, r.Balance)
	assert.Zero(t, bal.calls)
}

func TestTrainThenReuseArtifacts(t *testing.T) {
	dir := t.TempDir()
	opts := defaultOptions()
	opts.VectorizerPath = filepath.Join(dir, "vectorizer.json")
	opts.ModelPath = filepath.Join(dir, "model.json")

	labels := []int{1, 1, 1, 0, 0, 1, 0, 0}
	svc := NewService(newDeps(source.Static{Docs: corpus}), opts)
	assert.False(t, svc.Pretrained())
	require.NoError(t, svc.Train(context.Background(), corpus, labels))
	assert.True(t, svc.Pretrained())
	assert.FileExists(t, opts.VectorizerPath)
	assert.FileExists(t, opts.ModelPath)

	// a fresh service picks the artifacts up and predicts without training
	fresh := NewService(newDeps(source.Static{Docs: corpus[:3]}), opts)
	require.True(t, fresh.Pretrained())
	r, err := fresh.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, r.Predictions, 3)
	assert.NotContains(t, r.Degraded, "train")
}

func TestTrainErrors(t *testing.T) {
	svc := NewService(newDeps(), defaultOptions())
	assert.Error(t, svc.Train(context.Background(), nil, nil))
	assert.ErrorIs(t, svc.Train(context.Background(), corpus, make([]int, len(corpus))), classifier.ErrSingleClass)
	assert.False(t, svc.Pretrained())
}

func TestProxyLabels(t *testing.T) {
	assert.Equal(t, []int{1, 0, 0, 1}, ProxyLabels([]float64{0.4, 0, -0.2, 1}))
	assert.Empty(t, ProxyLabels(nil))
}
