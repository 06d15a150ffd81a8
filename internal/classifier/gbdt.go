// Package classifier predicts meme success with gradient-boosted trees.
package classifier

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	"memetrend/internal/logging"
	"memetrend/internal/persist"
)

// Errors returned by Train, Predict and Load.
var (
	ErrNotTrained      = errors.New("classifier: model not trained")
	ErrEmptyInput      = errors.New("classifier: empty input")
	ErrLabelMismatch   = errors.New("classifier: label count does not match rows")
	ErrInvalidLabel    = errors.New("classifier: labels must be 0 or 1")
	ErrSingleClass     = errors.New("classifier: training data needs both classes")
	ErrFeatureMismatch = errors.New("classifier: feature count differs from training")
)

const artifactKind = "gbdt"

// Params configures boosting. Defaults mirror a typical XGBoost setup for
// small sparse text features.
type Params struct {
	NEstimators         int     `json:"n_estimators" yaml:"n_estimators"`
	LearningRate        float64 `json:"learning_rate" yaml:"learning_rate"`
	MaxDepth            int     `json:"max_depth" yaml:"max_depth"`
	Subsample           float64 `json:"subsample" yaml:"subsample"`
	ColsampleByTree     float64 `json:"colsample_bytree" yaml:"colsample_bytree"`
	Lambda              float64 `json:"lambda" yaml:"lambda"`
	MinChildWeight      float64 `json:"min_child_weight" yaml:"min_child_weight"`
	EarlyStoppingRounds int     `json:"early_stopping_rounds" yaml:"early_stopping_rounds"`
	ValidationFraction  float64 `json:"validation_fraction" yaml:"validation_fraction"`
	Seed                uint64  `json:"seed" yaml:"seed"`
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		NEstimators:         300,
		LearningRate:        0.05,
		MaxDepth:            12,
		Subsample:           0.7,
		ColsampleByTree:     0.7,
		Lambda:              1,
		MinChildWeight:      1,
		EarlyStoppingRounds: 20,
		ValidationFraction:  0.2,
		Seed:                42,
	}
}

func (p Params) normalized() Params {
	d := DefaultParams()
	if p.NEstimators <= 0 {
		p.NEstimators = d.NEstimators
	}
	if p.LearningRate <= 0 {
		p.LearningRate = d.LearningRate
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		p.Subsample = 1
	}
	if p.ColsampleByTree <= 0 || p.ColsampleByTree > 1 {
		p.ColsampleByTree = 1
	}
	if p.Lambda < 0 {
		p.Lambda = 0
	}
	if p.MinChildWeight < 0 {
		p.MinChildWeight = 0
	}
	if p.ValidationFraction < 0 || p.ValidationFraction >= 1 {
		p.ValidationFraction = 0
	}
	return p
}

// GBDT is a binary classifier with a logistic objective.
type GBDT struct {
	mu        sync.RWMutex
	params    Params
	baseScore float64
	trees     []tree
	nFeatures int
	trained   bool
}

// New returns an untrained model.
func New(p Params) *GBDT {
	return &GBDT{params: p.normalized()}
}

// Params returns the boosting parameters.
func (m *GBDT) Params() Params {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params
}

// Trained reports whether the model can predict.
func (m *GBDT) Trained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trained
}

// Trees returns the number of boosted trees kept after early stopping.
func (m *GBDT) Trees() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trees)
}

// Train fits the model on x (rows = samples) and binary labels. A stratified
// validation split drives early stopping when both classes have at least
// two samples.
func (m *GBDT) Train(x *mat.Dense, labels []int) error {
	if x == nil || x.IsEmpty() {
		return ErrEmptyInput
	}
	rows, cols := x.Dims()
	if len(labels) != rows {
		return fmt.Errorf("%w: %d labels, %d rows", ErrLabelMismatch, len(labels), rows)
	}
	var pos int
	for _, l := range labels {
		if l != 0 && l != 1 {
			return fmt.Errorf("%w: got %d", ErrInvalidLabel, l)
		}
		pos += l
	}
	if pos == 0 || pos == rows {
		return ErrSingleClass
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.params
	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))

	data := make([][]float64, rows)
	for i := range data {
		data[i] = x.RawRowView(i)
	}
	y := make([]float64, rows)
	for i, l := range labels {
		y[i] = float64(l)
	}

	trainIdx, valIdx := stratifiedSplit(labels, p.ValidationFraction, rng)

	var trainPos float64
	for _, i := range trainIdx {
		trainPos += y[i]
	}
	prior := clamp(trainPos/float64(len(trainIdx)), 1e-6, 1-1e-6)
	base := math.Log(prior / (1 - prior))

	margin := make([]float64, rows)
	for i := range margin {
		margin[i] = base
	}
	grad := make([]float64, rows)
	hess := make([]float64, rows)

	var (
		trees     []tree
		bestIter  = -1
		bestLoss  = math.Inf(1)
		stopAfter = p.EarlyStoppingRounds
	)
	for iter := 0; iter < p.NEstimators; iter++ {
		for _, i := range trainIdx {
			pr := sigmoid(margin[i])
			grad[i] = pr - y[i]
			hess[i] = math.Max(pr*(1-pr), 1e-16)
		}
		sample := subsample(trainIdx, p.Subsample, rng)
		features := colsample(cols, p.ColsampleByTree, rng)

		b := &builder{rows: data, grad: grad, hess: hess, features: features, params: p}
		b.build(sample, 0)
		t := tree{Nodes: b.nodes}
		trees = append(trees, t)
		for i := range margin {
			margin[i] += t.predict(data[i])
		}

		if len(valIdx) == 0 {
			continue
		}
		loss := logLoss(valIdx, margin, y)
		if loss < bestLoss-1e-12 {
			bestLoss, bestIter = loss, iter
		} else if stopAfter > 0 && iter-bestIter >= stopAfter {
			logging.Debug().Int("iteration", iter).Int("best", bestIter).Msg("early stopping")
			break
		}
	}
	if len(valIdx) > 0 && bestIter >= 0 {
		trees = trees[:bestIter+1]
	}

	m.baseScore = base
	m.trees = trees
	m.nFeatures = cols
	m.trained = true

	evalIdx := valIdx
	if len(evalIdx) == 0 {
		evalIdx = trainIdx
	}
	m.report(data, y, evalIdx)
	return nil
}

// Predict returns P(label = 1) for every row of x, in row order.
// Safe for concurrent use.
func (m *GBDT) Predict(x *mat.Dense) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.trained {
		return nil, ErrNotTrained
	}
	if x == nil || x.IsEmpty() {
		return nil, ErrEmptyInput
	}
	rows, cols := x.Dims()
	if cols != m.nFeatures {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, cols, m.nFeatures)
	}
	out := make([]float64, rows)
	for i := range out {
		out[i] = sigmoid(m.margin(x.RawRowView(i)))
	}
	return out, nil
}

func (m *GBDT) margin(row []float64) float64 {
	s := m.baseScore
	for i := range m.trees {
		s += m.trees[i].predict(row)
	}
	return s
}

// report logs validation metrics, the equivalent of a classification report.
func (m *GBDT) report(data [][]float64, y []float64, idx []int) {
	var tp, fp, tn, fn float64
	margin := make([]float64, len(y))
	for _, i := range idx {
		margin[i] = m.margin(data[i])
		pred := sigmoid(margin[i]) >= 0.5
		switch {
		case pred && y[i] == 1:
			tp++
		case pred && y[i] == 0:
			fp++
		case !pred && y[i] == 0:
			tn++
		default:
			fn++
		}
	}
	precision := safeDiv(tp, tp+fp)
	recall := safeDiv(tp, tp+fn)
	logging.Info().
		Int("trees", len(m.trees)).
		Int("samples", len(idx)).
		Float64("accuracy", safeDiv(tp+tn, float64(len(idx)))).
		Float64("precision", precision).
		Float64("recall", recall).
		Float64("f1", safeDiv(2*precision*recall, precision+recall)).
		Float64("logloss", logLoss(idx, margin, y)).
		Msg("classifier training completed")
}

type artifact struct {
	Kind      string  `json:"kind"`
	Params    Params  `json:"params"`
	BaseScore float64 `json:"base_score"`
	Features  int     `json:"features"`
	Trees     []tree  `json:"trees"`
}

// Save writes the trained model to path.
func (m *GBDT) Save(path string) error {
	m.mu.RLock()
	if !m.trained {
		m.mu.RUnlock()
		return ErrNotTrained
	}
	a := artifact{Kind: artifactKind, Params: m.params, BaseScore: m.baseScore, Features: m.nFeatures, Trees: m.trees}
	m.mu.RUnlock()

	if err := persist.SaveAtomic(path, a); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	logging.Info().Str("path", path).Int("trees", len(a.Trees)).Msg("model saved")
	return nil
}

// Load replaces the model with the one stored at path.
func (m *GBDT) Load(path string) error {
	var a artifact
	if err := persist.Load(path, &a); err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	if a.Kind != artifactKind {
		return fmt.Errorf("load model: unexpected artifact kind %q", a.Kind)
	}
	if a.Features <= 0 {
		return fmt.Errorf("load model: invalid feature count %d", a.Features)
	}
	for i, t := range a.Trees {
		if err := t.validate(a.Features); err != nil {
			return fmt.Errorf("load model: tree %d: %w", i, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = a.Params.normalized()
	m.baseScore = a.BaseScore
	m.nFeatures = a.Features
	m.trees = a.Trees
	m.trained = true
	logging.Info().Str("path", path).Int("trees", len(a.Trees)).Msg("model loaded")
	return nil
}

func stratifiedSplit(labels []int, frac float64, rng *rand.Rand) (train, val []int) {
	var byClass [2][]int
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	if frac <= 0 || len(byClass[0]) < 2 || len(byClass[1]) < 2 {
		train = make([]int, len(labels))
		for i := range train {
			train[i] = i
		}
		return train, nil
	}
	for _, idx := range byClass {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		n := int(math.Round(frac * float64(len(idx))))
		n = max(1, min(n, len(idx)-1))
		val = append(val, idx[:n]...)
		train = append(train, idx[n:]...)
	}
	sort.Ints(train)
	sort.Ints(val)
	return train, val
}

func subsample(idx []int, rate float64, rng *rand.Rand) []int {
	if rate >= 1 {
		return append([]int(nil), idx...)
	}
	out := make([]int, 0, int(float64(len(idx))*rate)+1)
	for _, i := range idx {
		if rng.Float64() < rate {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		out = append(out, idx[rng.IntN(len(idx))])
	}
	return out
}

func colsample(n int, rate float64, rng *rand.Rand) []int {
	k := max(1, int(math.Round(rate*float64(n))))
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := rng.Perm(n)[:k]
	sort.Ints(out)
	return out
}

func logLoss(idx []int, margin, y []float64) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		p := clamp(sigmoid(margin[i]), 1e-15, 1-1e-15)
		sum -= y[i]*math.Log(p) + (1-y[i])*math.Log(1-p)
	}
	return sum / float64(len(idx))
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
