package classifier

import (
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// separable builds n rows of 4 features where the label is x0 > 0.5.
func separable(n int, seed uint64) (*mat.Dense, []int) {
	rng := rand.New(rand.NewPCG(seed, seed))
	x := mat.NewDense(n, 4, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < 4; j++ {
			x.Set(i, j, rng.Float64())
		}
		if x.At(i, 0) > 0.5 {
			y[i] = 1
		}
	}
	return x, y
}

func smallParams() Params {
	p := DefaultParams()
	p.NEstimators = 60
	p.LearningRate = 0.3
	p.MaxDepth = 3
	p.ColsampleByTree = 1
	return p
}

func TestTrainPredict(t *testing.T) {
	x, y := separable(120, 7)
	m := New(smallParams())
	require.NoError(t, m.Train(x, y))
	assert.True(t, m.Trained())
	assert.Positive(t, m.Trees())

	probs, err := m.Predict(x)
	require.NoError(t, err)
	require.Len(t, probs, len(y))

	correct := 0
	for i, p := range probs {
		assert.True(t, p >= 0 && p <= 1)
		if (p >= 0.5) == (y[i] == 1) {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(y)), 0.9)
}

func TestTrainDeterministic(t *testing.T) {
	x, y := separable(80, 3)
	a, b := New(smallParams()), New(smallParams())
	require.NoError(t, a.Train(x, y))
	require.NoError(t, b.Train(x, y))

	pa, err := a.Predict(x)
	require.NoError(t, err)
	pb, err := b.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestTrainTinyDatasetSkipsValidation(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{
		1, 0,
		0, 1,
		1, 1,
	})
	m := New(smallParams())
	require.NoError(t, m.Train(x, []int{1, 0, 1}))
	assert.Equal(t, smallParams().NEstimators, m.Trees())

	probs, err := m.Predict(x)
	require.NoError(t, err)
	assert.Len(t, probs, 3)
}

func TestTrainErrors(t *testing.T) {
	x, y := separable(10, 1)
	m := New(DefaultParams())

	assert.ErrorIs(t, m.Train(nil, nil), ErrEmptyInput)
	assert.ErrorIs(t, m.Train(x, y[:5]), ErrLabelMismatch)

	bad := append([]int(nil), y...)
	bad[0] = 2
	assert.ErrorIs(t, m.Train(x, bad), ErrInvalidLabel)

	assert.ErrorIs(t, m.Train(x, make([]int, 10)), ErrSingleClass)
	assert.False(t, m.Trained())
}

func TestPredictErrors(t *testing.T) {
	m := New(DefaultParams())
	_, err := m.Predict(mat.NewDense(1, 4, nil))
	assert.ErrorIs(t, err, ErrNotTrained)

	x, y := separable(40, 2)
	m = New(smallParams())
	require.NoError(t, m.Train(x, y))
	_, err = m.Predict(mat.NewDense(1, 3, nil))
	assert.ErrorIs(t, err, ErrFeatureMismatch)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	x, y := separable(60, 11)
	m := New(smallParams())
	require.NoError(t, m.Train(x, y))
	want, err := m.Predict(x)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, m.Save(path))

	loaded := New(DefaultParams())
	require.NoError(t, loaded.Load(path))
	got, err := loaded.Predict(x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)
	assert.Equal(t, m.Trees(), loaded.Trees())
}

func TestSaveUntrained(t *testing.T) {
	err := New(DefaultParams()).Save(filepath.Join(t.TempDir(), "m.json"))
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestLoadMissing(t *testing.T) {
	err := New(DefaultParams()).Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestStratifiedSplit(t *testing.T) {
	labels := []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}
	rng := rand.New(rand.NewPCG(42, 42))
	train, val := stratifiedSplit(labels, 0.2, rng)
	assert.Len(t, train, 8)
	assert.Len(t, val, 2)

	var pos int
	for _, i := range val {
		pos += labels[i]
	}
	assert.Equal(t, 1, pos, "one sample of each class in validation")
}
