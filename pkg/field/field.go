// Package field provides real-valued, continuously sampleable fields and the
// position-bearing accessors used to read them.
//
// A RealField is immutable and may be shared between goroutines. Its
// accessors carry a mutable position and must not be shared: every
// goroutine obtains its own accessor via RealField.RealAccess or
// RealAccess.Copy.
package field

import (
	"fmt"
	"strings"

	"warpresample/pkg/geom"
	"warpresample/pkg/transform"
)

// RealField is a scalar field over N-dimensional real space.
type RealField interface {
	NumDims() int
	RealAccess() RealAccess
}

// RealAccess samples a field at a settable position.
type RealAccess interface {
	// SetPosition moves the accessor to pos. The slice is copied.
	SetPosition(pos []float64)

	// Get returns the field value at the current position.
	Get() float64

	// Copy returns an accessor at the same position with its own state.
	Copy() RealAccess
}

// Interpolation selects how a raster is sampled between grid positions.
type Interpolation int

const (
	NearestNeighbor Interpolation = iota
	NLinear
)

func (i Interpolation) String() string {
	switch i {
	case NearestNeighbor:
		return "nearest"
	case NLinear:
		return "linear"
	default:
		return fmt.Sprintf("Interpolation(%d)", int(i))
	}
}

// ParseInterpolation parses "nearest" or "linear".
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest", "nearestneighbor", "nn":
		return NearestNeighbor, nil
	case "linear", "nlinear", "trilinear", "bilinear":
		return NLinear, nil
	default:
		return 0, fmt.Errorf("field: unknown interpolation %q", s)
	}
}

type funcField struct {
	n  int
	fn func(pos []float64) float64
}

// Func returns the field whose value at x is fn(x). fn must be safe for
// concurrent use and must not retain pos.
func Func(n int, fn func(pos []float64) float64) RealField {
	return &funcField{n: n, fn: fn}
}

// Constant returns the field with value v everywhere.
func Constant(n int, v float64) RealField {
	return Func(n, func([]float64) float64 { return v })
}

func (f *funcField) NumDims() int { return f.n }

func (f *funcField) RealAccess() RealAccess {
	return &funcAccess{f: f, pos: make([]float64, f.n)}
}

type funcAccess struct {
	f   *funcField
	pos []float64
}

func (a *funcAccess) SetPosition(pos []float64) { copy(a.pos, pos) }
func (a *funcAccess) Get() float64              { return a.f.fn(a.pos) }

func (a *funcAccess) Copy() RealAccess {
	c := &funcAccess{f: a.f, pos: make([]float64, len(a.pos))}
	copy(c.pos, a.pos)
	return c
}

// transformed is the field x ↦ f(xfm(x)).
type transformed struct {
	f   RealField
	xfm transform.RealTransform
}

// Transformed returns the field whose value at x is f(xfm(x)): every query
// point is passed through xfm before it is looked up in f.
func Transformed(f RealField, xfm transform.RealTransform) RealField {
	return &transformed{f: f, xfm: xfm}
}

func (t *transformed) NumDims() int { return t.xfm.NumSourceDims() }

func (t *transformed) RealAccess() RealAccess {
	return &transformedAccess{
		inner: t.f.RealAccess(),
		xfm:   t.xfm.Copy(),
		pos:   make([]float64, t.xfm.NumSourceDims()),
		tmp:   make([]float64, t.xfm.NumTargetDims()),
	}
}

type transformedAccess struct {
	inner RealAccess
	xfm   transform.RealTransform
	pos   []float64
	tmp   []float64
}

func (a *transformedAccess) SetPosition(pos []float64) { copy(a.pos, pos) }

func (a *transformedAccess) Get() float64 {
	a.xfm.Apply(a.pos, a.tmp)
	a.inner.SetPosition(a.tmp)
	return a.inner.Get()
}

func (a *transformedAccess) Copy() RealAccess {
	c := &transformedAccess{
		inner: a.inner.Copy(),
		xfm:   a.xfm.Copy(),
		pos:   make([]float64, len(a.pos)),
		tmp:   make([]float64, len(a.tmp)),
	}
	copy(c.pos, a.pos)
	return c
}

// AffineReal places f in the space reached through a: the value of the
// result at x is f(a⁻¹(x)). It fails when a is singular.
func AffineReal(f RealField, a *transform.Affine) (RealField, error) {
	inv, err := a.Invert()
	if err != nil {
		return nil, fmt.Errorf("field: placing field by %v: %w", a, err)
	}
	return Transformed(f, inv), nil
}

// View restricts a field to an integer interval, the lazily evaluated
// counterpart of a materialized raster.
type View struct {
	Field    RealField
	Interval geom.Interval
}

// NewView returns a view of f over itvl.
func NewView(f RealField, itvl geom.Interval) (*View, error) {
	if f.NumDims() != itvl.NumDims() {
		return nil, fmt.Errorf("field: %d-dimensional field viewed over %d-dimensional interval", f.NumDims(), itvl.NumDims())
	}
	return &View{Field: f, Interval: itvl.Clone()}, nil
}

// Reader returns a function sampling the view at integer positions. Each
// reader owns an accessor and must stay on one goroutine.
func (v *View) Reader() func(pos []int64) float64 {
	acc := v.Field.RealAccess()
	buf := make([]float64, v.Interval.NumDims())
	return func(pos []int64) float64 {
		for d, p := range pos {
			buf[d] = float64(p)
		}
		acc.SetPosition(buf)
		return acc.Get()
	}
}
