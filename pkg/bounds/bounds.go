// Package bounds estimates axis-aligned bounding intervals of intervals
// mapped through a transform.
//
// EstimateBounds maps all 2^N corners and is exact for affine transforms. For
// curved transforms the extremum of the mapped shape need not sit on a mapped
// corner, so the corner estimate may miss part of the image;
// EstimateBoundsSubdivided additionally samples a regular grid over the
// boundary of the interval and never returns a smaller box than
// EstimateBounds.
package bounds

import (
	"errors"
	"fmt"
	"math"

	"warpresample/pkg/geom"
	"warpresample/pkg/transform"
)

var (
	// ErrDimensionMismatch is returned when the interval and transform
	// dimensionality differ.
	ErrDimensionMismatch = errors.New("bounds: dimension mismatch")

	// ErrNonFinite is returned when a mapped point is NaN or infinite, which
	// typically means the inverse of a warp failed to converge.
	ErrNonFinite = errors.New("bounds: transformed point is not finite")
)

// accumulator tracks the floor of the minimum and the ceiling of the
// maximum of mapped points.
type accumulator struct {
	min, max []int64
}

func newAccumulator(n int) *accumulator {
	acc := &accumulator{min: make([]int64, n), max: make([]int64, n)}
	for d := 0; d < n; d++ {
		acc.min[d] = math.MaxInt64
		acc.max[d] = math.MinInt64
	}
	return acc
}

func (a *accumulator) add(pt []float64) error {
	for d, v := range pt {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: coordinate %d is %v", ErrNonFinite, d, v)
		}
		lo := int64(math.Floor(v))
		hi := int64(math.Ceil(v))
		if lo < a.min[d] {
			a.min[d] = lo
		}
		if hi > a.max[d] {
			a.max[d] = hi
		}
	}
	return nil
}

func (a *accumulator) interval() geom.Interval {
	return geom.Interval{Min: a.min, Max: a.max}
}

func check(xfm transform.RealTransform, nd int) error {
	if nd == 0 {
		return geom.ErrZeroDimensions
	}
	if xfm.NumSourceDims() != nd {
		return fmt.Errorf("%w: interval has %d dimensions, transform expects %d",
			ErrDimensionMismatch, nd, xfm.NumSourceDims())
	}
	return nil
}

// EstimateBounds maps every corner of itvl through xfm and returns the
// smallest integer interval containing all mapped corners.
func EstimateBounds(xfm transform.RealTransform, itvl geom.Interval) (geom.Interval, error) {
	if err := check(xfm, itvl.NumDims()); err != nil {
		return geom.Interval{}, err
	}
	pt := make([]float64, itvl.NumDims())
	out := make([]float64, xfm.NumTargetDims())
	acc := newAccumulator(xfm.NumTargetDims())
	for k := 0; k < itvl.NumCorners(); k++ {
		itvl.Corner(k, pt)
		xfm.Apply(pt, out)
		if err := acc.add(out); err != nil {
			return geom.Interval{}, err
		}
	}
	return acc.interval(), nil
}

// TransformIntervalMinMax maps only the min and max corners of itvl. It is
// valid only for transforms that are monotonic per axis, such as scalings
// and translations; use EstimateBounds for anything else.
func TransformIntervalMinMax(xfm transform.RealTransform, itvl geom.Interval) (geom.Interval, error) {
	if err := check(xfm, itvl.NumDims()); err != nil {
		return geom.Interval{}, err
	}
	return transformExtremes(xfm, itvl.Real())
}

// TransformRealInterval is TransformIntervalMinMax for real-valued bounds.
func TransformRealInterval(xfm transform.RealTransform, r geom.RealInterval) (geom.Interval, error) {
	if err := check(xfm, r.NumDims()); err != nil {
		return geom.Interval{}, err
	}
	return transformExtremes(xfm, r)
}

func transformExtremes(xfm transform.RealTransform, r geom.RealInterval) (geom.Interval, error) {
	n := xfm.NumTargetDims()
	lo := make([]float64, n)
	hi := make([]float64, n)
	xfm.Apply(r.Min, lo)
	xfm.Apply(r.Max, hi)
	for d := 0; d < n; d++ {
		if math.IsNaN(lo[d]) || math.IsInf(lo[d], 0) || math.IsNaN(hi[d]) || math.IsInf(hi[d], 0) {
			return geom.Interval{}, fmt.Errorf("%w: dimension %d", ErrNonFinite, d)
		}
	}
	return geom.RealInterval{Min: lo, Max: hi}.Smallest(), nil
}

// EstimateBoundsSubdivided maps, in addition to the corners of itvl, a grid
// of samples points per axis over each of its 2N faces, about
// 2N*samples^(N-1) points in all. The result contains EstimateBounds(xfm,
// itvl) and converges to the true bounding box of the mapped boundary as
// samples grows. Values below 2, and one-dimensional intervals, fall back to
// corners only.
func EstimateBoundsSubdivided(xfm transform.RealTransform, itvl geom.Interval, samples int) (geom.Interval, error) {
	nd := itvl.NumDims()
	if samples < 2 || nd < 2 {
		return EstimateBounds(xfm, itvl)
	}
	if err := check(xfm, nd); err != nil {
		return geom.Interval{}, err
	}
	r := itvl.Real()
	pt := make([]float64, nd)
	out := make([]float64, xfm.NumTargetDims())
	acc := newAccumulator(xfm.NumTargetDims())

	grid := make([]int64, nd-1)
	for d := range grid {
		grid[d] = int64(samples)
	}
	face := geom.FromDimensions(grid...)
	idx := make([]int64, nd-1)
	for fixed := 0; fixed < nd; fixed++ {
		for _, side := range []float64{r.Min[fixed], r.Max[fixed]} {
			pt[fixed] = side
			for i := int64(0); i < face.NumElements(); i++ {
				face.PositionOf(i, idx)
				for k, d := 0, 0; d < nd; d++ {
					if d == fixed {
						continue
					}
					frac := float64(idx[k]) / float64(samples-1)
					pt[d] = r.Min[d] + frac*(r.Max[d]-r.Min[d])
					k++
				}
				xfm.Apply(pt, out)
				if err := acc.add(out); err != nil {
					return geom.Interval{}, err
				}
			}
		}
	}
	return acc.interval(), nil
}
