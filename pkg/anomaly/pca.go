package anomaly

import (
	"fmt"
	"math"
)

// PCA is a fitted 2-component linear projector. It exists only to derive plot
// coordinates for the dashboard; it plays no part in the outlier decision.
type PCA struct {
	Mean       []float64   `json:"mean"`
	Components [][]float64 `json:"components"` // row-major, one component per row
}

const (
	pcaComponents = 2
	powerIters    = 200
	powerEps      = 1e-10
)

// FitPCA fits a 2-component projector on X using power iteration with
// deflation. Initialization is fixed, so fitting is deterministic.
func FitPCA(X [][]float64) (*PCA, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("no data to fit projector")
	}
	n := len(X)
	d := len(X[0])

	mean := make([]float64, d)
	for _, row := range X {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}

	centered := make([][]float64, n)
	for i, row := range X {
		c := make([]float64, d)
		for j, v := range row {
			c[j] = v - mean[j]
		}
		centered[i] = c
	}

	p := &PCA{Mean: mean, Components: make([][]float64, 0, pcaComponents)}
	for k := 0; k < pcaComponents; k++ {
		comp := powerIteration(centered, d, k)
		p.Components = append(p.Components, comp)
		// Deflate: remove the found component from every row.
		for i := range centered {
			proj := dot(centered[i], comp)
			for j := range centered[i] {
				centered[i][j] -= proj * comp[j]
			}
		}
	}
	return p, nil
}

// Project maps a full-dimension vector to its 2D coordinates.
func (p *PCA) Project(x []float64) [2]float64 {
	c := make([]float64, len(x))
	for j, v := range x {
		c[j] = v - p.Mean[j]
	}
	var out [2]float64
	for k, comp := range p.Components {
		if k >= 2 {
			break
		}
		out[k] = dot(c, comp)
	}
	return out
}

// powerIteration finds the dominant direction of the (implicit) covariance of
// centered rows. The start vector depends only on the component index.
func powerIteration(centered [][]float64, d, k int) []float64 {
	v := make([]float64, d)
	v[k%d] = 1.0

	next := make([]float64, d)
	for iter := 0; iter < powerIters; iter++ {
		for j := range next {
			next[j] = 0
		}
		// next = X^T X v without materializing the covariance matrix.
		for _, row := range centered {
			proj := dot(row, v)
			for j, rv := range row {
				next[j] += proj * rv
			}
		}
		norm := 0.0
		for _, nv := range next {
			norm += nv * nv
		}
		norm = math.Sqrt(norm)
		if norm < powerEps {
			// Degenerate direction; keep the previous estimate.
			break
		}
		diff := 0.0
		for j := range v {
			nv := next[j] / norm
			diff += math.Abs(nv - v[j])
			v[j] = nv
		}
		if diff < powerEps {
			break
		}
	}
	return append([]float64(nil), v...)
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
