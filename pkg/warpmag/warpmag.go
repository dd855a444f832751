// Package warpmag provides the warp-magnitude field: the distance, at each
// physical point, between where a warp and a base transform send it.
//
// Only random-access sampling is offered. The field is immutable and can be
// shared; each goroutine reads it through its own accessor.
package warpmag

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"warpresample/pkg/field"
	"warpresample/pkg/geom"
	"warpresample/pkg/transform"
)

// ErrDimensionMismatch is returned when the warp and base transforms do not
// share the dimensionality of the interval.
var ErrDimensionMismatch = errors.New("warpmag: dimension mismatch")

// Field is the warp-magnitude field over a real interval. A nil warp yields
// zero everywhere.
type Field struct {
	interval geom.RealInterval
	warp     transform.RealTransform
	base     transform.RealTransform
}

// New returns the magnitude of warp against base over itvl. A nil base is
// the identity.
func New(itvl geom.RealInterval, warp, base transform.RealTransform) (*Field, error) {
	n := itvl.NumDims()
	if n == 0 {
		return nil, fmt.Errorf("%w: zero-dimensional interval", ErrDimensionMismatch)
	}
	if base == nil {
		base = transform.NewIdentity(n)
	}
	for _, t := range []transform.RealTransform{warp, base} {
		if t == nil {
			continue
		}
		if t.NumSourceDims() != n || t.NumTargetDims() != base.NumTargetDims() {
			return nil, fmt.Errorf("%w: %dD interval, transform %d -> %d",
				ErrDimensionMismatch, n, t.NumSourceDims(), t.NumTargetDims())
		}
	}
	return &Field{interval: itvl, warp: warp, base: base}, nil
}

func (f *Field) NumDims() int { return f.interval.NumDims() }

// Interval returns the real interval the field is defined over.
func (f *Field) Interval() geom.RealInterval { return f.interval }

// RealAccess returns a new accessor owning copies of both transforms.
func (f *Field) RealAccess() field.RealAccess {
	a := &access{
		f:   f,
		pos: make([]float64, f.NumDims()),
	}
	if f.warp != nil {
		a.warp = f.warp.Copy()
		a.base = f.base.Copy()
		a.warpOut = make([]float64, f.base.NumTargetDims())
		a.baseOut = make([]float64, f.base.NumTargetDims())
	}
	return a
}

type access struct {
	f          *Field
	warp, base transform.RealTransform
	pos        []float64

	warpOut, baseOut []float64
}

func (a *access) SetPosition(pos []float64) { copy(a.pos, pos) }

// Get returns the Euclidean distance between warp(p) and base(p).
func (a *access) Get() float64 {
	if a.warp == nil {
		return 0
	}
	a.warp.Apply(a.pos, a.warpOut)
	a.base.Apply(a.pos, a.baseOut)
	return floats.Distance(a.warpOut, a.baseOut, 2)
}

func (a *access) Copy() field.RealAccess {
	c := a.f.RealAccess().(*access)
	copy(c.pos, a.pos)
	return c
}
