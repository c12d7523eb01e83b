// Package pmi scores how strongly a term is associated with a class label
// using smoothed pointwise mutual information over document counts.
package pmi

import "math"

// Calculator computes smoothed PMI scores.
type Calculator struct {
	epsilon float64
}

// NewCalculator returns a Calculator with the given smoothing constant.
// A non-positive epsilon selects 1.
func NewCalculator(epsilon float64) *Calculator {
	if epsilon <= 0 {
		epsilon = 1.0
	}
	return &Calculator{epsilon: epsilon}
}

// PMI returns
//
//	log((n_xy + ε) * N / ((n_x + ε)(n_y + ε)))
//
// where n_xy counts documents holding both x and y, n_x and n_y count
// documents holding each, and N is the number of documents.
func (c *Calculator) PMI(nXY, nX, nY, n int64) float64 {
	if n == 0 {
		return 0
	}
	num := (float64(nXY) + c.epsilon) * float64(n)
	den := (float64(nX) + c.epsilon) * (float64(nY) + c.epsilon)
	return math.Log(num / den)
}

// NPMI normalizes PMI by -log P(x,y). It is 0 when x and y never co-occur.
func (c *Calculator) NPMI(nXY, nX, nY, n int64) float64 {
	if n == 0 || nXY == 0 {
		return 0
	}
	logP := math.Log((float64(nXY) + c.epsilon) / float64(n))
	if logP == 0 {
		return 0
	}
	return c.PMI(nXY, nX, nY, n) / -logP
}
