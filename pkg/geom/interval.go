// Package geom provides the axis-aligned integer and real intervals used to
// describe raster extents and physical-space regions.
package geom

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidInterval is returned when min > max along some dimension or
	// when min and max disagree on the number of dimensions.
	ErrInvalidInterval = errors.New("geom: invalid interval")

	// ErrZeroDimensions is returned for intervals with no dimensions.
	ErrZeroDimensions = errors.New("geom: interval has zero dimensions")

	// ErrEmptyPoints is returned when a bounding interval is requested for an
	// empty point set.
	ErrEmptyPoints = errors.New("geom: empty point set")
)

// Interval is an N-dimensional integer box with inclusive bounds.
type Interval struct {
	Min []int64
	Max []int64
}

// NewInterval validates min and max and returns an Interval owning copies of
// both slices.
func NewInterval(min, max []int64) (Interval, error) {
	if len(min) == 0 {
		return Interval{}, ErrZeroDimensions
	}
	if len(min) != len(max) {
		return Interval{}, fmt.Errorf("%w: %d min vs %d max values", ErrInvalidInterval, len(min), len(max))
	}
	for d := range min {
		if min[d] > max[d] {
			return Interval{}, fmt.Errorf("%w: min %d > max %d in dimension %d", ErrInvalidInterval, min[d], max[d], d)
		}
	}
	return Interval{Min: append([]int64(nil), min...), Max: append([]int64(nil), max...)}, nil
}

// MustInterval is like NewInterval but panics on invalid input. It is meant
// for literals in tests and examples.
func MustInterval(min, max []int64) Interval {
	itvl, err := NewInterval(min, max)
	if err != nil {
		panic(err)
	}
	return itvl
}

// FromDimensions returns the interval [0, dims[d]-1] in every dimension.
func FromDimensions(dims ...int64) Interval {
	min := make([]int64, len(dims))
	max := make([]int64, len(dims))
	for d, n := range dims {
		max[d] = n - 1
	}
	return Interval{Min: min, Max: max}
}

// NumDims returns the number of dimensions.
func (i Interval) NumDims() int { return len(i.Min) }

// Dimension returns the number of samples along d.
func (i Interval) Dimension(d int) int64 { return i.Max[d] - i.Min[d] + 1 }

// Dimensions returns the extent along every dimension.
func (i Interval) Dimensions() []int64 {
	dims := make([]int64, i.NumDims())
	for d := range dims {
		dims[d] = i.Dimension(d)
	}
	return dims
}

// NumElements returns the number of integer positions inside the interval.
func (i Interval) NumElements() int64 {
	if i.NumDims() == 0 {
		return 0
	}
	n := int64(1)
	for d := 0; d < i.NumDims(); d++ {
		n *= i.Dimension(d)
	}
	return n
}

// Validate reports whether the interval satisfies min <= max everywhere.
func (i Interval) Validate() error {
	_, err := NewInterval(i.Min, i.Max)
	return err
}

// Contains reports whether pos lies inside the interval.
func (i Interval) Contains(pos []int64) bool {
	if len(pos) != i.NumDims() {
		return false
	}
	for d, p := range pos {
		if p < i.Min[d] || p > i.Max[d] {
			return false
		}
	}
	return true
}

// ContainsInterval reports whether o lies entirely inside i.
func (i Interval) ContainsInterval(o Interval) bool {
	if o.NumDims() != i.NumDims() {
		return false
	}
	for d := range i.Min {
		if o.Min[d] < i.Min[d] || o.Max[d] > i.Max[d] {
			return false
		}
	}
	return true
}

// Equal reports whether both intervals have identical bounds.
func (i Interval) Equal(o Interval) bool {
	if i.NumDims() != o.NumDims() {
		return false
	}
	for d := range i.Min {
		if i.Min[d] != o.Min[d] || i.Max[d] != o.Max[d] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (i Interval) Clone() Interval {
	return Interval{Min: append([]int64(nil), i.Min...), Max: append([]int64(nil), i.Max...)}
}

// Union returns the smallest interval containing both i and o.
func (i Interval) Union(o Interval) Interval {
	u := i.Clone()
	for d := range u.Min {
		if o.Min[d] < u.Min[d] {
			u.Min[d] = o.Min[d]
		}
		if o.Max[d] > u.Max[d] {
			u.Max[d] = o.Max[d]
		}
	}
	return u
}

// Intersect returns the overlap of i and o. The boolean is false when the
// intervals are disjoint.
func (i Interval) Intersect(o Interval) (Interval, bool) {
	r := i.Clone()
	for d := range r.Min {
		r.Min[d] = max(r.Min[d], o.Min[d])
		r.Max[d] = min(r.Max[d], o.Max[d])
		if r.Min[d] > r.Max[d] {
			return Interval{}, false
		}
	}
	return r, true
}

// Real converts the interval to a RealInterval with the same bounds.
func (i Interval) Real() RealInterval {
	r := RealInterval{Min: make([]float64, i.NumDims()), Max: make([]float64, i.NumDims())}
	for d := range i.Min {
		r.Min[d] = float64(i.Min[d])
		r.Max[d] = float64(i.Max[d])
	}
	return r
}

// Corner writes corner k of the interval into dst. Bit d of k selects the
// max (1) or min (0) bound in dimension d, so k ranges over [0, 2^N).
func (i Interval) Corner(k int, dst []float64) {
	for d := range i.Min {
		if k&(1<<d) == 0 {
			dst[d] = float64(i.Min[d])
		} else {
			dst[d] = float64(i.Max[d])
		}
	}
}

// NumCorners returns 2^N.
func (i Interval) NumCorners() int { return 1 << i.NumDims() }

// PositionOf writes the position of flat index idx into pos. Dimension 0
// varies fastest.
func (i Interval) PositionOf(idx int64, pos []int64) {
	for d := range i.Min {
		n := i.Dimension(d)
		pos[d] = i.Min[d] + idx%n
		idx /= n
	}
}

// IndexOf returns the flat index of pos, the inverse of PositionOf.
func (i Interval) IndexOf(pos []int64) int64 {
	idx := int64(0)
	for d := i.NumDims() - 1; d >= 0; d-- {
		idx = idx*i.Dimension(d) + (pos[d] - i.Min[d])
	}
	return idx
}

// SubInterval returns the interval restricted along dimension d to the
// relative range [start, end), measured from i.Min[d].
func (i Interval) SubInterval(d int, start, end int64) Interval {
	s := i.Clone()
	s.Min[d] = i.Min[d] + start
	s.Max[d] = i.Min[d] + end - 1
	return s
}

func (i Interval) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for d := range i.Min {
		if d > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d..%d", i.Min[d], i.Max[d])
	}
	sb.WriteString("]")
	return sb.String()
}

// RealInterval is an N-dimensional box with floating-point bounds.
type RealInterval struct {
	Min []float64
	Max []float64
}

// NumDims returns the number of dimensions.
func (r RealInterval) NumDims() int { return len(r.Min) }

// Smallest returns the smallest integer interval containing r.
func (r RealInterval) Smallest() Interval {
	itvl := Interval{Min: make([]int64, r.NumDims()), Max: make([]int64, r.NumDims())}
	for d := range r.Min {
		itvl.Min[d] = int64(math.Floor(r.Min[d]))
		itvl.Max[d] = int64(math.Ceil(r.Max[d]))
	}
	return itvl
}

// Contains reports whether pt lies inside the closed box.
func (r RealInterval) Contains(pt []float64) bool {
	if len(pt) != r.NumDims() {
		return false
	}
	for d, v := range pt {
		if v < r.Min[d] || v > r.Max[d] {
			return false
		}
	}
	return true
}

// BoundingInterval returns the smallest integer interval containing every
// point: per axis the floor of the minimum and the ceiling of the maximum.
func BoundingInterval(points [][]float64) (Interval, error) {
	if len(points) == 0 {
		return Interval{}, ErrEmptyPoints
	}
	nd := len(points[0])
	if nd == 0 {
		return Interval{}, ErrZeroDimensions
	}
	lo := make([]float64, nd)
	hi := make([]float64, nd)
	for d := range lo {
		lo[d] = math.Inf(1)
		hi[d] = math.Inf(-1)
	}
	for i, pt := range points {
		if len(pt) != nd {
			return Interval{}, fmt.Errorf("%w: point %d has %d coordinates, expected %d", ErrInvalidInterval, i, len(pt), nd)
		}
		for d, v := range pt {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Interval{}, fmt.Errorf("%w: point %d is not finite", ErrInvalidInterval, i)
			}
			lo[d] = math.Min(lo[d], v)
			hi[d] = math.Max(hi[d], v)
		}
	}
	return RealInterval{Min: lo, Max: hi}.Smallest(), nil
}
