// Package raster provides a dense N-dimensional float64 image whose origin is
// the minimum of its interval.
//
// Data is stored as a 1D array in flat iteration order: dimension 0 varies
// fastest, then dimension 1, and so on. For a 3D raster the index of (x, y, z)
// is (z*height + y)*width + x.
package raster

import (
	"fmt"

	"warpresample/pkg/geom"
)

// Raster is an N-dimensional array of samples over an integer interval.
type Raster struct {
	interval geom.Interval
	data     []float64
}

// New allocates a zero-filled raster over itvl.
func New(itvl geom.Interval) *Raster {
	return &Raster{interval: itvl.Clone(), data: make([]float64, itvl.NumElements())}
}

// FromData wraps data as a raster over itvl.
func FromData(itvl geom.Interval, data []float64) (*Raster, error) {
	if int64(len(data)) != itvl.NumElements() {
		return nil, fmt.Errorf("raster: %d samples for interval %v with %d elements", len(data), itvl, itvl.NumElements())
	}
	return &Raster{interval: itvl.Clone(), data: data}, nil
}

// Interval returns the extent of the raster.
func (r *Raster) Interval() geom.Interval { return r.interval }

// NumDims returns the number of dimensions.
func (r *Raster) NumDims() int { return r.interval.NumDims() }

// Data returns the backing samples in flat iteration order.
func (r *Raster) Data() []float64 { return r.data }

// Len returns the number of samples.
func (r *Raster) Len() int { return len(r.data) }

// At returns the sample at pos, which must lie inside the interval.
func (r *Raster) At(pos []int64) float64 { return r.data[r.interval.IndexOf(pos)] }

// Set writes the sample at pos, which must lie inside the interval.
func (r *Raster) Set(pos []int64, v float64) { r.data[r.interval.IndexOf(pos)] = v }

// Fill sets every sample to fn(pos).
func (r *Raster) Fill(fn func(pos []int64) float64) {
	c := r.Cursor()
	for c.HasNext() {
		c.Fwd()
		c.Set(fn(c.Position()))
	}
}

// Equal reports whether both rasters have the same interval and identical
// samples.
func (r *Raster) Equal(o *Raster) bool {
	if !r.interval.Equal(o.interval) || len(r.data) != len(o.data) {
		return false
	}
	for i, v := range r.data {
		if o.data[i] != v {
			return false
		}
	}
	return true
}

// Cursor returns a cursor over the whole raster.
func (r *Raster) Cursor() *Cursor {
	return newCursor(r, r.interval)
}

// SubCursor returns a cursor visiting the samples of sub, which must lie
// inside the raster, in flat iteration order of sub.
func (r *Raster) SubCursor(sub geom.Interval) (*Cursor, error) {
	if !r.interval.ContainsInterval(sub) {
		return nil, fmt.Errorf("raster: sub-interval %v outside %v", sub, r.interval)
	}
	return newCursor(r, sub), nil
}

// Cursor iterates a region of a raster. It starts before the first element;
// call Fwd before the first Get. A cursor is not safe for concurrent use.
type Cursor struct {
	r     *Raster
	itvl  geom.Interval
	n     int64
	i     int64
	pos   []int64
	index int64
}

func newCursor(r *Raster, itvl geom.Interval) *Cursor {
	return &Cursor{r: r, itvl: itvl, n: itvl.NumElements(), i: -1, pos: make([]int64, itvl.NumDims())}
}

// Size returns the number of elements visited by the cursor.
func (c *Cursor) Size() int64 { return c.n }

// HasNext reports whether Fwd moves onto another element.
func (c *Cursor) HasNext() bool { return c.i+1 < c.n }

// Fwd advances by one element.
func (c *Cursor) Fwd() { c.JumpFwd(1) }

// JumpFwd advances by steps elements. The cursor may move past the end, in
// which case HasNext is false and Get must not be called.
func (c *Cursor) JumpFwd(steps int64) {
	c.i += steps
	if c.i >= c.n {
		return
	}
	c.itvl.PositionOf(c.i, c.pos)
	c.index = c.r.interval.IndexOf(c.pos)
}

// Index returns the position of the cursor within its iteration, starting at 0.
func (c *Cursor) Index() int64 { return c.i }

// Position returns the current position. The slice is owned by the cursor.
func (c *Cursor) Position() []int64 { return c.pos }

// Get returns the current sample.
func (c *Cursor) Get() float64 { return c.r.data[c.index] }

// Set writes the current sample.
func (c *Cursor) Set(v float64) { c.r.data[c.index] = v }
