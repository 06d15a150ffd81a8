// Package vectorizer turns documents into TF-IDF feature matrices.
package vectorizer

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"

	"memetrend/internal/logging"
	"memetrend/internal/persist"
)

var (
	// ErrEmptyCorpus is returned when fitting on no documents.
	ErrEmptyCorpus = errors.New("vectorizer: empty corpus")
	// ErrEmptyVocabulary is returned when stop words and df limits remove every term.
	ErrEmptyVocabulary = errors.New("vectorizer: no terms survive filtering")
	// ErrNotFitted is returned by Transform and Save before Fit.
	ErrNotFitted = errors.New("vectorizer: not fitted")
)

const artifactKind = "tfidf"

// Options controls vocabulary construction and term weighting.
type Options struct {
	// MinDF is the minimum number of documents a term must appear in.
	MinDF int `json:"min_df" yaml:"min_df"`
	// MaxDF is the maximum fraction of documents a term may appear in.
	MaxDF float64 `json:"max_df" yaml:"max_df"`
	// MaxFeatures keeps only the most frequent terms when > 0.
	MaxFeatures int `json:"max_features" yaml:"max_features"`
	// NGramMax is the longest n-gram generated (1 = unigrams only).
	NGramMax int `json:"ngram_max" yaml:"ngram_max"`
	// SublinearTF replaces tf with 1 + ln(tf).
	SublinearTF bool `json:"sublinear_tf" yaml:"sublinear_tf"`
	// StopWords overrides the English stop list when non-nil.
	StopWords []string `json:"stop_words,omitempty" yaml:"stop_words,omitempty"`
}

// DefaultOptions returns unigram TF-IDF keeping every non-stop-word term.
func DefaultOptions() Options {
	return Options{MinDF: 1, MaxDF: 1.0, NGramMax: 1}
}

// TFIDF is a fit-once, transform-many TF-IDF vectorizer.
// Vocabulary columns are sorted alphabetically.
type TFIDF struct {
	mu           sync.RWMutex
	opts         Options
	vocabulary   map[string]int
	terms        []string
	idf          []float64
	fitted       bool
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// New creates an unfitted vectorizer.
func New(opts Options) *TFIDF {
	opts = normalizeOptions(opts)
	return &TFIDF{
		opts:         opts,
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
		stopwords:    stopwordSet(opts.StopWords),
	}
}

func normalizeOptions(opts Options) Options {
	if opts.MinDF < 1 {
		opts.MinDF = 1
	}
	if opts.MaxDF <= 0 || opts.MaxDF > 1 {
		opts.MaxDF = 1.0
	}
	if opts.NGramMax < 1 {
		opts.NGramMax = 1
	}
	if opts.MaxFeatures < 0 {
		opts.MaxFeatures = 0
	}
	return opts
}

// Options returns the configuration the vectorizer was built with.
func (v *TFIDF) Options() Options {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.opts
}

// Fitted reports whether a vocabulary has been learned or loaded.
func (v *TFIDF) Fitted() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fitted
}

// Vocabulary returns the fitted terms in column order.
func (v *TFIDF) Vocabulary() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.terms...)
}

// FitTransform learns the vocabulary and IDF weights from documents and
// returns their feature matrix. Row i corresponds to documents[i].
func (v *TFIDF) FitTransform(documents []string) (*mat.Dense, error) {
	if len(documents) == 0 {
		return nil, ErrEmptyCorpus
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	counts := make([]map[string]int, len(documents))
	df := make(map[string]int)
	total := make(map[string]int)
	for i, doc := range documents {
		tf := v.termCounts(doc)
		counts[i] = tf
		for term, c := range tf {
			df[term]++
			total[term] += c
		}
	}

	n := len(documents)
	maxDocs := v.opts.MaxDF * float64(n)
	terms := make([]string, 0, len(df))
	for term, d := range df {
		if d < v.opts.MinDF || float64(d) > maxDocs {
			continue
		}
		terms = append(terms, term)
	}
	if v.opts.MaxFeatures > 0 && len(terms) > v.opts.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if total[terms[i]] != total[terms[j]] {
				return total[terms[i]] > total[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:v.opts.MaxFeatures]
	}
	if len(terms) == 0 {
		return nil, ErrEmptyVocabulary
	}
	sort.Strings(terms)

	v.terms = terms
	v.vocabulary = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	for i, term := range terms {
		v.vocabulary[term] = i
		// Smoothed IDF
		v.idf[i] = math.Log((1+float64(n))/(1+float64(df[term]))) + 1.0
	}
	v.fitted = true

	logging.Debug().Int("documents", n).Int("terms", len(terms)).Msg("tfidf vocabulary fitted")
	return v.matrix(counts), nil
}

// Transform projects documents onto the fitted vocabulary. Unseen terms are
// ignored. Safe for concurrent use once fitted.
func (v *TFIDF) Transform(documents []string) (*mat.Dense, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.fitted {
		return nil, ErrNotFitted
	}
	if len(documents) == 0 {
		return nil, ErrEmptyCorpus
	}
	counts := make([]map[string]int, len(documents))
	for i, doc := range documents {
		counts[i] = v.termCounts(doc)
	}
	return v.matrix(counts), nil
}

// matrix builds L2-normalised TF-IDF rows; caller holds the lock.
func (v *TFIDF) matrix(counts []map[string]int) *mat.Dense {
	x := mat.NewDense(len(counts), len(v.terms), nil)
	for row, tf := range counts {
		norm := 0.0
		for term, c := range tf {
			col, ok := v.vocabulary[term]
			if !ok {
				continue
			}
			w := float64(c)
			if v.opts.SublinearTF {
				w = 1 + math.Log(w)
			}
			w *= v.idf[col]
			x.Set(row, col, w)
			norm += w * w
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for term := range tf {
			if col, ok := v.vocabulary[term]; ok {
				x.Set(row, col, x.At(row, col)/norm)
			}
		}
	}
	return x
}

// termCounts tokenizes text, drops stop words and counts 1..NGramMax grams.
func (v *TFIDF) termCounts(text string) map[string]int {
	tokens := v.tokenize(text)
	tf := make(map[string]int, len(tokens))
	for n := 1; n <= v.opts.NGramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			tf[strings.Join(tokens[i:i+n], " ")]++
		}
	}
	return tf
}

func (v *TFIDF) tokenize(text string) []string {
	raw := v.tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if len([]rune(t)) < 2 {
			continue
		}
		if _, isStop := v.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

type artifact struct {
	Kind    string    `json:"kind"`
	Options Options   `json:"options"`
	Terms   []string  `json:"terms"`
	IDF     []float64 `json:"idf"`
}

// Save writes the fitted vocabulary, IDF weights and options to path.
func (v *TFIDF) Save(path string) error {
	v.mu.RLock()
	if !v.fitted {
		v.mu.RUnlock()
		return ErrNotFitted
	}
	a := artifact{Kind: artifactKind, Options: v.opts, Terms: v.terms, IDF: v.idf}
	v.mu.RUnlock()

	if err := persist.SaveAtomic(path, a); err != nil {
		return fmt.Errorf("save vectorizer: %w", err)
	}
	logging.Info().Str("path", path).Int("terms", len(a.Terms)).Msg("vectorizer saved")
	return nil
}

// Load replaces the vectorizer state with the artifact at path.
func (v *TFIDF) Load(path string) error {
	var a artifact
	if err := persist.Load(path, &a); err != nil {
		return fmt.Errorf("load vectorizer: %w", err)
	}
	if a.Kind != artifactKind {
		return fmt.Errorf("load vectorizer: unexpected artifact kind %q", a.Kind)
	}
	if len(a.Terms) == 0 || len(a.Terms) != len(a.IDF) {
		return fmt.Errorf("load vectorizer: %d terms but %d idf weights", len(a.Terms), len(a.IDF))
	}

	opts := normalizeOptions(a.Options)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.opts = opts
	v.stopwords = stopwordSet(opts.StopWords)
	v.terms = a.Terms
	v.idf = a.IDF
	v.vocabulary = make(map[string]int, len(a.Terms))
	for i, term := range a.Terms {
		v.vocabulary[term] = i
	}
	v.fitted = true
	logging.Info().Str("path", path).Int("terms", len(a.Terms)).Msg("vectorizer loaded")
	return nil
}
