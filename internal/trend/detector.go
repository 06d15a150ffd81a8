// Package trend detects trending topics in a document set and labels them.
package trend

import (
	"errors"
	"fmt"
	"sort"

	"memetrend/internal/domain"
	"memetrend/internal/logging"
	"memetrend/internal/topic"
	"memetrend/internal/vectorizer"
)

// ErrInvalidTopWords is returned for a negative top word count.
var ErrInvalidTopWords = errors.New("trend: top word count must not be negative")

// ModelFactory builds a topic model with k components.
type ModelFactory func(k int) domain.TopicModel

// Detector vectorizes documents, factors them into topics and labels each
// topic with its top terms. Each call fits fresh state, so one Detector may
// be shared between goroutines.
type Detector struct {
	opts     vectorizer.Options
	newModel ModelFactory
}

// NewDetector returns a detector using TF-IDF with opts and a seeded NMF.
func NewDetector(opts vectorizer.Options, seed uint64) *Detector {
	return &Detector{
		opts: opts,
		newModel: func(k int) domain.TopicModel {
			return topic.NewNMF(k, seed)
		},
	}
}

// WithModel swaps the topic model factory.
func (d *Detector) WithModel(f ModelFactory) *Detector {
	d.newModel = f
	return d
}

// Detect returns exactly nTopics trends in topic order, or an error
// explaining why none could be produced. nTopWords == 0 yields trends
// without words, labelled "Trend N: ".
func (d *Detector) Detect(documents []string, nTopics, nTopWords int) ([]domain.Trend, error) {
	if nTopWords < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopWords, nTopWords)
	}
	vec := vectorizer.New(d.opts)
	x, err := vec.FitTransform(documents)
	if err != nil {
		return nil, fmt.Errorf("vectorize: %w", err)
	}
	_, h, err := d.newModel(nTopics).Fit(x)
	if err != nil {
		return nil, fmt.Errorf("factorize: %w", err)
	}

	vocab := vec.Vocabulary()
	k, _ := h.Dims()
	trends := make([]domain.Trend, k)
	for i := 0; i < k; i++ {
		trends[i] = domain.Trend{Index: i, Words: TopWords(h.RawRowView(i), vocab, nTopWords)}
	}
	return trends, nil
}

// DetectTrends is Detect rendered as labels. Failures are logged and yield
// an empty slice.
func (d *Detector) DetectTrends(documents []string, nTopics, nTopWords int) []string {
	trends, err := d.Detect(documents, nTopics, nTopWords)
	if err != nil {
		logging.Error().
			Err(err).
			Str("op", "detect_trends").
			Int("documents", len(documents)).
			Int("n_topics", nTopics).
			Msg("trend detection failed")
		return []string{}
	}
	logging.Info().Int("trends", len(trends)).Msg("trends detected")
	return domain.Labels(trends)
}

// TopWords returns up to n terms with the largest weights, highest first.
// Equal weights keep vocabulary order.
func TopWords(weights []float64, vocab []string, n int) []string {
	size := min(len(weights), len(vocab))
	idx := make([]int, size)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return weights[idx[a]] > weights[idx[b]]
	})
	if n > size {
		n = size
	}
	if n < 0 {
		n = 0
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = vocab[idx[i]]
	}
	return out
}
