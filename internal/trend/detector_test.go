package trend

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"memetrend/internal/domain"
	"memetrend/internal/topic"
	"memetrend/internal/vectorizer"
)

var sampleDocuments = []string{
	"Bitcoin is surging to new highs",
	"Meme coins are becoming popular",
	"AI and cryptocurrency are the future of finance",
}

func newDetector() *Detector {
	return NewDetector(vectorizer.Options{MinDF: 1, MaxDF: 0.95}, 42)
}

func TestDetectTrendsScenario(t *testing.T) {
	trends := newDetector().DetectTrends(sampleDocuments, 2, 3)

	require.Len(t, trends, 2)
	assert.True(t, strings.HasPrefix(trends[0], "Trend 1: "), trends[0])
	assert.True(t, strings.HasPrefix(trends[1], "Trend 2: "), trends[1])
	for _, tr := range trends {
		words := strings.Split(strings.SplitN(tr, ": ", 2)[1], ", ")
		assert.Len(t, words, 3)
	}
}

func TestDetectTrendsDeterministic(t *testing.T) {
	d := newDetector()
	first := d.DetectTrends(sampleDocuments, 2, 3)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, d.DetectTrends(sampleDocuments, 2, 3))
	}
	assert.Equal(t, first, newDetector().DetectTrends(sampleDocuments, 2, 3))
}

func TestDetectTrendsDegrades(t *testing.T) {
	d := newDetector()

	t.Run("empty documents", func(t *testing.T) {
		got := d.DetectTrends([]string{}, 2, 3)
		assert.NotNil(t, got)
		assert.Empty(t, got)
		assert.Empty(t, d.DetectTrends(nil, 2, 3))
	})

	t.Run("only stop words", func(t *testing.T) {
		assert.Empty(t, d.DetectTrends([]string{"the and", "of is"}, 1, 3))
	})

	t.Run("too many topics", func(t *testing.T) {
		assert.Empty(t, d.DetectTrends(sampleDocuments, 5, 3))
	})

	t.Run("negative top words", func(t *testing.T) {
		assert.Empty(t, d.DetectTrends(sampleDocuments, 2, -1))
	})
}

func TestDetectErrors(t *testing.T) {
	d := newDetector()

	_, err := d.Detect(nil, 2, 3)
	assert.ErrorIs(t, err, vectorizer.ErrEmptyCorpus)

	_, err = d.Detect(sampleDocuments, 10, 3)
	assert.ErrorIs(t, err, topic.ErrTooManyTopics)

	_, err = d.Detect(sampleDocuments, 2, -1)
	assert.ErrorIs(t, err, ErrInvalidTopWords)
}

func TestDetectZeroTopWords(t *testing.T) {
	labels := newDetector().DetectTrends(sampleDocuments, 2, 0)
	assert.Equal(t, []string{"Trend 1: ", "Trend 2: "}, labels)
}

// Two repeated documents and one distinct one used to collapse into two
// copies of the same topic.
func TestDetectSmallCorpusDistinctTopics(t *testing.T) {
	docs := []string{"doge doge", "doge doge", "pepe cat"}

	trends, err := newDetector().Detect(docs, 2, 2)
	require.NoError(t, err)
	require.Len(t, trends, 2)
	assert.Equal(t, "doge", trends[0].Words[0])
	assert.ElementsMatch(t, []string{"cat", "pepe"}, trends[1].Words)

	for _, seed := range []uint64{1, 7, 42} {
		got := NewDetector(vectorizer.Options{MinDF: 1, MaxDF: 0.95}, seed).DetectTrends(docs, 2, 1)
		assert.Equal(t, "Trend 1: doge", got[0], "seed %d", seed)
		assert.NotEqual(t, got[0], got[1], "seed %d", seed)
	}
}

func TestDetectClampsTopWords(t *testing.T) {
	trends, err := NewDetector(vectorizer.DefaultOptions(), 42).Detect([]string{"moon lambo", "lambo rocket"}, 1, 50)
	require.NoError(t, err)
	require.Len(t, trends, 1)
	assert.ElementsMatch(t, []string{"lambo", "moon", "rocket"}, trends[0].Words)
}

type fixedModel struct {
	h   *mat.Dense
	err error
}

func (m fixedModel) Fit(x *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	r, _ := x.Dims()
	k, _ := m.h.Dims()
	return mat.NewDense(r, k, nil), m.h, nil
}

func TestDetectWithInjectedModel(t *testing.T) {
	// vocabulary: bull, crypto, market
	h := mat.NewDense(2, 3, []float64{
		0.5, 0.9, 0.5,
		0.0, 0.1, 0.7,
	})
	d := NewDetector(vectorizer.DefaultOptions(), 42).WithModel(func(int) domain.TopicModel { return fixedModel{h: h} })

	labels := d.DetectTrends([]string{"crypto bull market", "crypto market"}, 2, 3)
	assert.Equal(t, []string{
		"Trend 1: crypto, bull, market",
		"Trend 2: market, crypto, bull",
	}, labels)

	failing := newDetector().WithModel(func(int) domain.TopicModel {
		return fixedModel{err: errors.New("solver diverged")}
	})
	assert.Empty(t, failing.DetectTrends(sampleDocuments, 2, 3))
}

func TestTopWords(t *testing.T) {
	vocab := []string{"a", "b", "c", "d"}

	assert.Equal(t, []string{"c", "a"}, TopWords([]float64{0.5, 0.1, 0.9, 0.2}, vocab, 2))
	// ties resolved by vocabulary order
	assert.Equal(t, []string{"b", "d", "a"}, TopWords([]float64{0.1, 0.7, 0.1, 0.7}, vocab, 3))
	assert.Equal(t, []string{"a", "b", "c", "d"}, TopWords([]float64{0, 0, 0, 0}, vocab, 10))
	assert.Empty(t, TopWords([]float64{1, 2}, vocab[:2], 0))
}
