package analytics

import "math"

// mean returns the arithmetic mean of xs, or 0 for an empty slice.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStdDev returns the N-1 standard deviation of xs. ok is false when
// fewer than two observations make it undefined.
func sampleStdDev(xs []float64) (sd float64, ok bool) {
	if len(xs) < 2 {
		return 0, false
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1)), true
}

// meanGrowth returns the mean fractional change between consecutive values.
// Transitions from a zero value are undefined and skipped; skipped counts them.
func meanGrowth(xs []float64) (growth float64, skipped int) {
	if len(xs) < 2 {
		return 0, 0
	}
	var sum float64
	n := 0
	for i := 1; i < len(xs); i++ {
		prev := xs[i-1]
		if prev == 0 {
			skipped++
			continue
		}
		sum += (xs[i] - prev) / prev
		n++
	}
	if n == 0 {
		return 0, skipped
	}
	return sum / float64(n), skipped
}

// bounds holds the batch-wide extremes of one feature.
type bounds struct {
	min, max float64
}

func newBounds() bounds {
	return bounds{min: math.Inf(1), max: math.Inf(-1)}
}

func (b *bounds) observe(x float64) {
	if x < b.min {
		b.min = x
	}
	if x > b.max {
		b.max = x
	}
}

// scale maps x onto [0,1]. A degenerate range maps every value to 0.
func (b bounds) scale(x float64) float64 {
	span := b.max - b.min
	if span <= 0 || math.IsInf(span, 0) || math.IsNaN(span) {
		return 0
	}
	return (x - b.min) / span
}
