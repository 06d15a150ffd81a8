// Package sentiment scores texts on a signed [-1, 1] scale.
package sentiment

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"memetrend/internal/domain"
	"memetrend/internal/logging"
)

// Analyze scores texts with scorer. Errors and length mismatches are logged
// and produce an empty slice.
func Analyze(ctx context.Context, scorer domain.SentimentScorer, texts []string) []float64 {
	if len(texts) == 0 {
		return []float64{}
	}
	scores, err := scorer.Score(ctx, texts)
	if err == nil && len(scores) != len(texts) {
		err = fmt.Errorf("scorer returned %d scores for %d texts", len(scores), len(texts))
	}
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("op", "analyze_sentiment").Int("texts", len(texts)).Msg("sentiment analysis failed")
		return []float64{}
	}
	logging.Ctx(ctx).Info().Int("texts", len(texts)).Msg("sentiment analysis completed")
	return scores
}

// Lexicon is an offline scorer summing word polarities with simple negation.
type Lexicon struct {
	words        map[string]float64
	negations    map[string]struct{}
	tokenPattern *regexp.Regexp
}

// normalization constant: score = s / sqrt(s² + alpha)
const alpha = 15.0

// NewLexicon returns a scorer with the built-in crypto/social lexicon.
func NewLexicon() *Lexicon {
	neg := make(map[string]struct{}, len(negationWords))
	for _, w := range negationWords {
		neg[w] = struct{}{}
	}
	return &Lexicon{
		words:        defaultLexicon,
		negations:    neg,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
	}
}

// Score implements domain.SentimentScorer.
func (l *Lexicon) Score(_ context.Context, texts []string) ([]float64, error) {
	out := make([]float64, len(texts))
	for i, text := range texts {
		out[i] = l.score(text)
	}
	return out, nil
}

func (l *Lexicon) score(text string) float64 {
	tokens := l.tokenPattern.FindAllString(strings.ToLower(text), -1)
	sum := 0.0
	negate := false
	for _, tok := range tokens {
		if _, ok := l.negations[tok]; ok {
			negate = true
			continue
		}
		if v, ok := l.words[tok]; ok {
			if negate {
				v = -v
			}
			sum += v
		}
		negate = false
	}
	if sum == 0 {
		return 0
	}
	return sum / math.Sqrt(sum*sum+alpha)
}

var negationWords = []string{"not", "no", "never", "don't", "doesn't", "isn't", "aren't", "won't", "can't", "nothing"}

var defaultLexicon = map[string]float64{
	"good": 1.9, "great": 3.1, "amazing": 2.8, "awesome": 3.1, "love": 3.2, "like": 1.5,
	"bullish": 2.5, "moon": 2.0, "mooning": 2.5, "surging": 2.0, "soaring": 2.2, "rally": 1.8,
	"pump": 1.5, "gains": 2.0, "profit": 1.8, "win": 2.8, "winning": 2.4, "popular": 1.8,
	"highs": 1.5, "happy": 2.7, "excited": 2.2, "best": 3.2, "strong": 1.7, "future": 0.8,
	"bad": -2.5, "terrible": -3.0, "awful": -3.1, "hate": -2.7, "bearish": -2.5, "dump": -2.0,
	"dumping": -2.2, "crash": -2.8, "crashing": -2.8, "scam": -3.2, "rug": -2.8, "rugpull": -3.4,
	"loss": -2.0, "losses": -2.1, "lose": -2.2, "fear": -2.2, "panic": -2.6, "down": -1.0,
	"weak": -1.7, "worst": -3.1, "sad": -2.1, "fraud": -3.2, "hack": -2.4, "hacked": -2.6,
}
