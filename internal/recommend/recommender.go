// Package recommend turns detected trends into meme coin suggestions for a
// user's declared interests.
package recommend

import (
	"fmt"
	"strings"

	"memetrend/internal/domain"
	"memetrend/internal/logging"
)

// MatchMode selects what part of a trend an interest is compared against.
type MatchMode string

const (
	// MatchLabel compares against the whole label, including "Trend N:".
	// An interest such as "trend" or "1" therefore matches broadly.
	MatchLabel MatchMode = "label"
	// MatchWords compares against the trend's top words only.
	MatchWords MatchMode = "words"
)

const recommendationPrefix = "Create a meme coin based on "

// ParseMatchMode maps a config value to a MatchMode; empty means MatchLabel.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchLabel:
		return MatchLabel, nil
	case MatchWords:
		return MatchWords, nil
	default:
		return "", fmt.Errorf("unknown recommender match mode %q", s)
	}
}

// Recommender intersects trends with interests.
type Recommender struct {
	mode MatchMode
}

// New returns a recommender using mode.
func New(mode MatchMode) *Recommender {
	if mode == "" {
		mode = MatchLabel
	}
	return &Recommender{mode: mode}
}

// Mode returns the configured match mode.
func (r *Recommender) Mode() MatchMode { return r.mode }

// GenerateRecommendations emits at most one recommendation per trend, in
// trend order: the first interest (in list order) that matches wins.
// Failures are logged and produce an empty slice.
func (r *Recommender) GenerateRecommendations(trends []string, prefs domain.UserPreferences) []string {
	recs, err := r.Generate(trends, prefs)
	if err != nil {
		logging.Error().Err(err).Str("op", "generate_recommendations").Int("trends", len(trends)).Msg("recommendation failed")
		return []string{}
	}
	logging.Info().Int("recommendations", len(recs)).Msg("recommendations generated")
	return recs
}

// Generate is GenerateRecommendations with an explicit error outcome. It
// fails only when the recommender was built with an unknown match mode.
func (r *Recommender) Generate(trends []string, prefs domain.UserPreferences) ([]string, error) {
	if r.mode != MatchLabel && r.mode != MatchWords {
		return nil, fmt.Errorf("recommend: unknown match mode %q", r.mode)
	}

	interests := prefs.Interests()
	recs := []string{}
	for _, trend := range trends {
		for _, interest := range interests {
			if r.Match(trend, interest) {
				recs = append(recs, recommendationPrefix+trend)
				break
			}
		}
	}
	return recs, nil
}

// Match reports whether interest occurs in trend, ignoring case.
func (r *Recommender) Match(trend, interest string) bool {
	needle := strings.ToLower(interest)
	if r.mode == MatchWords {
		for _, w := range trendWords(trend) {
			if strings.Contains(strings.ToLower(w), needle) {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.ToLower(trend), needle)
}

// trendWords extracts the comma separated words after "Trend N: ".
// A string without the prefix is treated as a word list as-is.
func trendWords(label string) []string {
	if i := strings.Index(label, ": "); i >= 0 && strings.HasPrefix(label, "Trend ") {
		label = label[i+2:]
	}
	if strings.TrimSpace(label) == "" {
		return nil
	}
	parts := strings.Split(label, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
