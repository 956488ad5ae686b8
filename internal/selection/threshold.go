package selection

import (
	"math"
	"sort"

	"peerreview/kgraph/internal/config"
)

// ThresholdSelector picks a std_rating cutoff from a data set's std ratings.
// ok is false when no cutoff can be derived.
type ThresholdSelector interface {
	Threshold(values []float64) (threshold float64, ok bool)
}

// FixedThreshold always returns its value
type FixedThreshold float64

// Threshold implements ThresholdSelector
func (f FixedThreshold) Threshold([]float64) (float64, bool) {
	return float64(f), true
}

// KDEValley places the cutoff at a valley of a Gaussian kernel density
// estimate of the values.
type KDEValley struct {
	// GridPoints is the number of evaluation points on [0, max+0.5]
	GridPoints int
	// Distance is the minimum spacing between valleys, in grid points
	Distance int
	// Valley is the 1-based valley to use
	Valley int
}

// NewKDEValley returns the second-valley selector over a 500-point grid
func NewKDEValley() KDEValley {
	return KDEValley{GridPoints: 500, Distance: 10, Valley: 2}
}

// SelectorFor returns the selector configured for a data set such as
// "ICLR2024".
func SelectorFor(cfg config.SelectionConfig, dataset string) ThresholdSelector {
	if cfg.UseKDE {
		return NewKDEValley()
	}
	return FixedThreshold(cfg.ThresholdFor(dataset))
}

// Threshold implements ThresholdSelector
func (k KDEValley) Threshold(values []float64) (float64, bool) {
	valleys := k.Valleys(values)
	if k.Valley < 1 || len(valleys) < k.Valley {
		return 0, false
	}
	return valleys[k.Valley-1], true
}

// Valleys returns the grid positions of density minima in ascending order
func (k KDEValley) Valleys(values []float64) []float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	bw := scottBandwidth(clean)
	if bw == 0 || k.GridPoints < 3 {
		return nil
	}

	maxV := clean[0]
	for _, v := range clean[1:] {
		maxV = math.Max(maxV, v)
	}
	grid := linspace(0, maxV+0.5, k.GridPoints)

	inverted := make([]float64, len(grid))
	for i, x := range grid {
		inverted[i] = -gaussianDensity(clean, bw, x)
	}

	var out []float64
	for _, idx := range findPeaks(inverted, k.Distance) {
		out = append(out, grid[idx])
	}
	return out
}

// scottBandwidth is the kernel standard deviation n^(-1/5) * sample std.
// It is 0 when the values carry no spread.
func scottBandwidth(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(n-1))
	return math.Pow(float64(n), -0.2) * std
}

func gaussianDensity(values []float64, bw, x float64) float64 {
	norm := 1 / (math.Sqrt(2*math.Pi) * bw * float64(len(values)))
	var sum float64
	for _, v := range values {
		z := (x - v) / bw
		sum += math.Exp(-0.5 * z * z)
	}
	return sum * norm
}

func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

// findPeaks returns indices of local maxima, excluding the endpoints.
// Flat peaks report their middle index. Peaks closer than distance to a
// higher peak are discarded.
func findPeaks(x []float64, distance int) []int {
	var peaks []int
	last := len(x) - 1
	for i := 1; i < last; i++ {
		if !(x[i-1] < x[i]) {
			continue
		}
		ahead := i + 1
		for ahead < last && x[ahead] == x[i] {
			ahead++
		}
		if x[ahead] < x[i] {
			peaks = append(peaks, (i+ahead-1)/2)
			i = ahead - 1
		}
	}
	if distance <= 1 || len(peaks) < 2 {
		return peaks
	}

	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	// highest first; ties favor the later peak
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := x[peaks[order[a]]], x[peaks[order[b]]]
		if pa != pb {
			return pa > pb
		}
		return order[a] > order[b]
	})

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}
	for _, j := range order {
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < distance; k++ {
			keep[k] = false
		}
	}

	var out []int
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}
