package classifier

import (
	"fmt"
	"sort"
)

// node is a flat tree node; children are indexes into tree.Nodes.
type node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

func (t *tree) predict(row []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if row[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *tree) validate(features int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("no nodes")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= features {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		// children are always appended after their parent
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: bad children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// builder grows one regression tree on gradients and hessians with the
// second-order gain used by XGBoost.
type builder struct {
	rows     [][]float64
	grad     []float64
	hess     []float64
	features []int
	params   Params
	nodes    []node
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *builder) build(idx []int, depth int) int {
	var g, h float64
	for _, i := range idx {
		g += b.grad[i]
		h += b.hess[i]
	}
	id := len(b.nodes)
	b.nodes = append(b.nodes, node{Leaf: true, Value: b.params.LearningRate * -g / (h + b.params.Lambda)})

	if depth >= b.params.MaxDepth || len(idx) < 2 || h < 2*b.params.MinChildWeight {
		return id
	}
	best, ok := b.bestSplit(idx, g, h)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.rows[i][best.feature] < best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id] = node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
	return id
}

func (b *builder) bestSplit(idx []int, g, h float64) (split, bool) {
	lambda := b.params.Lambda
	mcw := b.params.MinChildWeight
	parent := g * g / (h + lambda)
	best := split{gain: 1e-12}
	found := false

	sorted := make([]int, len(idx))
	for _, f := range b.features {
		if constant(b.rows, idx, f) {
			continue
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.rows[sorted[a]][f] < b.rows[sorted[c]][f]
		})
		var gl, hl float64
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			gl += b.grad[i]
			hl += b.hess[i]
			v, next := b.rows[i][f], b.rows[sorted[k+1]][f]
			if v == next {
				continue
			}
			hr := h - hl
			if hl < mcw || hr < mcw {
				continue
			}
			gr := g - gl
			gain := gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - parent
			if gain > best.gain {
				best = split{feature: f, threshold: (v + next) / 2, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

func constant(rows [][]float64, idx []int, f int) bool {
	first := rows[idx[0]][f]
	for _, i := range idx[1:] {
		if rows[i][f] != first {
			return false
		}
	}
	return true
}
