// Package topic factors TF-IDF matrices into topics.
package topic

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"memetrend/internal/logging"
)

var (
	// ErrTooManyTopics is returned when k exceeds the number of documents or terms.
	ErrTooManyTopics = errors.New("topic: more topics than documents or terms")
	// ErrInvalidInput is returned for empty, negative or NaN input and k <= 0.
	ErrInvalidInput = errors.New("topic: invalid input matrix")
)

const eps = 1e-10

// NMF is a non-negative matrix factorization X ≈ W·H using Lee-Seung
// multiplicative updates on the Frobenius norm. Factors start from NNDSVDa
// (SVD based, zeros filled with mean(X)); Seed is only used when the SVD
// does not converge.
type NMF struct {
	Components int
	Seed       uint64
	MaxIter    int
	// Tol stops iterating once the relative drop in reconstruction error
	// between two checks falls below it.
	Tol float64
}

// NewNMF returns a solver with the defaults used by the trend detector.
func NewNMF(components int, seed uint64) *NMF {
	return &NMF{Components: components, Seed: seed, MaxIter: 200, Tol: 1e-4}
}

// Fit factors x (documents × terms) into W (documents × k) and
// H (k × terms). Identical input and seed give identical output.
func (m *NMF) Fit(x *mat.Dense) (w, h *mat.Dense, err error) {
	if x == nil || x.IsEmpty() {
		return nil, nil, fmt.Errorf("%w: empty matrix", ErrInvalidInput)
	}
	k := m.Components
	if k <= 0 {
		return nil, nil, fmt.Errorf("%w: components must be positive, got %d", ErrInvalidInput, k)
	}
	rows, cols := x.Dims()
	if k > rows || k > cols {
		return nil, nil, fmt.Errorf("%w: k=%d, matrix %dx%d", ErrTooManyTopics, k, rows, cols)
	}

	sum := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := x.At(i, j)
			if v < 0 || math.IsNaN(v) {
				return nil, nil, fmt.Errorf("%w: negative or NaN entry at (%d,%d)", ErrInvalidInput, i, j)
			}
			sum += v
		}
	}

	maxIter := m.MaxIter
	if maxIter <= 0 {
		maxIter = 200
	}

	mean := sum / float64(rows*cols)
	w, h, ok := nndsvda(x, k, mean)
	if !ok {
		logging.Warn().Int("components", k).Msg("svd did not converge, using random nmf init")
		rng := rand.New(rand.NewPCG(m.Seed, m.Seed))
		scale := math.Sqrt(mean / float64(k))
		w = randomFactor(rng, rows, k, scale)
		h = randomFactor(rng, k, cols, scale)
	}

	var (
		numH, denH mat.Dense // k × terms
		numW, denW mat.Dense // documents × k
		gram       mat.Dense // k × k
		prevErr    = reconstructionError(x, w, h)
		iter       int
	)
	for iter = 1; iter <= maxIter; iter++ {
		// H <- H ∘ (WᵀX) / (WᵀWH)
		numH.Mul(w.T(), x)
		gram.Mul(w.T(), w)
		denH.Mul(&gram, h)
		multiplicativeUpdate(h, &numH, &denH)

		// W <- W ∘ (XHᵀ) / (WHHᵀ)
		numW.Mul(x, h.T())
		gram.Mul(h, h.T())
		denW.Mul(w, &gram)
		multiplicativeUpdate(w, &numW, &denW)

		if m.Tol > 0 && iter%10 == 0 {
			cur := reconstructionError(x, w, h)
			if prevErr > 0 && (prevErr-cur)/prevErr < m.Tol {
				break
			}
			prevErr = cur
		}
	}

	logging.Debug().
		Int("components", k).
		Int("iterations", min(iter, maxIter)).
		Float64("error", reconstructionError(x, w, h)).
		Msg("nmf converged")
	return w, h, nil
}

// nndsvda builds W and H from the k leading singular triplets of x, keeping
// for each one the dominant non-negative part. Zeros are then replaced by
// fill so multiplicative updates can move them.
func nndsvda(x *mat.Dense, k int, fill float64) (w, h *mat.Dense, ok bool) {
	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, nil, false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	rows, cols := x.Dims()
	w = mat.NewDense(rows, k, nil)
	h = mat.NewDense(k, cols, nil)
	for j := 0; j < k; j++ {
		uc := mat.Col(nil, j, &u)
		vc := mat.Col(nil, j, &v)
		if j == 0 {
			// the leading pair can be taken non-negative as a whole
			root := math.Sqrt(s[0])
			for i, e := range uc {
				w.Set(i, 0, root*math.Abs(e))
			}
			for i, e := range vc {
				h.Set(0, i, root*math.Abs(e))
			}
			continue
		}

		up, un := splitSign(uc)
		vp, vn := splitSign(vc)
		upn, unn := norm2(up), norm2(un)
		vpn, vnn := norm2(vp), norm2(vn)
		uSel, vSel := up, vp
		uNorm, vNorm := upn, vpn
		if upn*vpn <= unn*vnn {
			uSel, vSel = un, vn
			uNorm, vNorm = unn, vnn
		}
		sigma := uNorm * vNorm
		if sigma == 0 {
			continue
		}
		lambda := math.Sqrt(s[j] * sigma)
		for i, e := range uSel {
			w.Set(i, j, lambda*e/uNorm)
		}
		for i, e := range vSel {
			h.Set(j, i, lambda*e/vNorm)
		}
	}

	fillSmall(w, fill)
	fillSmall(h, fill)
	return w, h, true
}

// splitSign returns max(x, 0) and |min(x, 0)|.
func splitSign(x []float64) (pos, neg []float64) {
	pos = make([]float64, len(x))
	neg = make([]float64, len(x))
	for i, v := range x {
		if v > 0 {
			pos[i] = v
		} else {
			neg[i] = -v
		}
	}
	return pos, neg
}

func norm2(x []float64) float64 {
	return mat.Norm(mat.NewVecDense(len(x), x), 2)
}

func fillSmall(m *mat.Dense, fill float64) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if m.At(i, j) < 1e-6 {
				m.Set(i, j, fill)
			}
		}
	}
}

func randomFactor(rng *rand.Rand, r, c int, scale float64) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = scale * math.Abs(rng.NormFloat64())
	}
	return mat.NewDense(r, c, data)
}

func multiplicativeUpdate(dst, num, den *mat.Dense) {
	r, c := dst.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, dst.At(i, j)*num.At(i, j)/(den.At(i, j)+eps))
		}
	}
}

func reconstructionError(x, w, h *mat.Dense) float64 {
	var wh, diff mat.Dense
	wh.Mul(w, h)
	diff.Sub(x, &wh)
	return mat.Norm(&diff, 2)
}
