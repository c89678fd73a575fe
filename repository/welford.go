package repository

import "math"

// welford keeps a running mean and variance of the delays inserted into a
// snapshot without a second pass over the rows.
// Reference: https://en.wikipedia.org/wiki/Algorithms_for_calculating_variance#Welford's_online_algorithm
type welford struct {
	count int
	mean  float64
	m2    float64
}

// Update adds one observation
func (w *welford) Update(v float64) {
	w.count++
	delta := v - w.mean
	w.mean += delta / float64(w.count)
	w.m2 += delta * (v - w.mean)
}

// Mean returns the running mean, 0 when empty
func (w *welford) Mean() float64 {
	return w.mean
}

// StdDev returns the population standard deviation.
// Returns 0 if fewer than 2 observations.
func (w *welford) StdDev() float64 {
	if w.count < 2 {
		return 0
	}
	return math.Sqrt(w.m2 / float64(w.count))
}
