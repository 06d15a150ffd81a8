package domain

import (
	"context"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// InterestsKey is the preference category consulted by the recommender.
const InterestsKey = "interests"

// Trend is a detected topic together with its highest-weighted terms.
type Trend struct {
	// Index is the 0-based topic index.
	Index int
	// Words holds the top terms, highest weight first.
	Words []string
}

// String renders the trend label, e.g. "Trend 1: crypto, bull, market".
func (t Trend) String() string {
	return fmt.Sprintf("Trend %d: %s", t.Index+1, strings.Join(t.Words, ", "))
}

// Labels renders every trend as its label, keeping order.
func Labels(trends []Trend) []string {
	out := make([]string, len(trends))
	for i, t := range trends {
		out[i] = t.String()
	}
	return out
}

// UserPreferences maps a category name (e.g. "interests") to ordered tags.
type UserPreferences map[string][]string

// Interests returns the interest tags, or nil when the key is absent.
func (p UserPreferences) Interests() []string {
	return p[InterestsKey]
}

// Clone returns a deep copy so callers cannot mutate the owner's state.
func (p UserPreferences) Clone() UserPreferences {
	if p == nil {
		return UserPreferences{}
	}
	out := make(UserPreferences, len(p))
	for k, v := range p {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// DocumentSource supplies raw text documents for a query.
type DocumentSource interface {
	Name() string
	Fetch(ctx context.Context, query string) ([]string, error)
}

// Vectorizer converts documents into a feature matrix.
// FitTransform learns the vocabulary; Transform reuses it.
type Vectorizer interface {
	FitTransform(documents []string) (*mat.Dense, error)
	Transform(documents []string) (*mat.Dense, error)
	Vocabulary() []string
	Save(path string) error
	Load(path string) error
}

// TopicModel factors a non-negative feature matrix into
// document-topic (W) and topic-term (H) matrices.
type TopicModel interface {
	Fit(x *mat.Dense) (w, h *mat.Dense, err error)
}

// SentimentScorer assigns each text a signed score in [-1, 1].
// The output has the same length and order as the input.
type SentimentScorer interface {
	Score(ctx context.Context, texts []string) ([]float64, error)
}

// Classifier is a supervised binary model over feature rows.
type Classifier interface {
	Train(x *mat.Dense, labels []int) error
	Predict(x *mat.Dense) ([]float64, error)
	Save(path string) error
	Load(path string) error
}
