// Package transform defines the point-mapping capability consumed by the
// resampling engine together with its concrete variants: identity, affine
// and generic invertible warps.
//
// Transforms follow one convention throughout: Apply(source, target) maps a
// point of the source space into target. Implementations may keep scratch
// buffers, so a single instance is not safe for concurrent use; callers that
// evaluate from several goroutines hold their own instance obtained via Copy.
package transform

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInvertible is returned when an inverse is requested from a
	// transform that has none.
	ErrNotInvertible = errors.New("transform: not invertible")

	// ErrDimensionMismatch is returned when transforms of different
	// dimensionality are combined.
	ErrDimensionMismatch = errors.New("transform: dimension mismatch")
)

// RealTransform maps real-valued points between spaces.
type RealTransform interface {
	NumSourceDims() int
	NumTargetDims() int

	// Apply maps source into target. The slices must not alias.
	Apply(source, target []float64)

	// Copy returns an instance with independent internal state.
	Copy() RealTransform
}

// InvertibleRealTransform is a RealTransform with an inverse.
type InvertibleRealTransform interface {
	RealTransform

	// Inverse returns the inverse transform, which is itself invertible and
	// whose inverse maps back to an equivalent of the receiver.
	Inverse() (InvertibleRealTransform, error)
}

// Invert returns the inverse of t. It fails with ErrNotInvertible when t does
// not expose the capability.
func Invert(t RealTransform) (InvertibleRealTransform, error) {
	it, ok := t.(InvertibleRealTransform)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotInvertible, t)
	}
	return it.Inverse()
}

// Identity maps each point onto itself.
type Identity struct {
	n int
}

// NewIdentity returns the n-dimensional identity.
func NewIdentity(n int) *Identity { return &Identity{n: n} }

func (t *Identity) NumSourceDims() int { return t.n }
func (t *Identity) NumTargetDims() int { return t.n }

func (t *Identity) Apply(source, target []float64) {
	copy(target[:t.n], source[:t.n])
}

func (t *Identity) Copy() RealTransform { return t }

func (t *Identity) Inverse() (InvertibleRealTransform, error) { return t, nil }

func (t *Identity) String() string { return fmt.Sprintf("Identity(%d)", t.n) }

// Sequence applies its transforms in order, each reading the output of the
// previous one.
type Sequence struct {
	ts  []RealTransform
	buf [][]float64
}

// Chain returns the transform applying ts[0] first and ts[len(ts)-1] last.
func Chain(ts ...RealTransform) (*Sequence, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("%w: empty chain", ErrDimensionMismatch)
	}
	for i := 1; i < len(ts); i++ {
		if ts[i-1].NumTargetDims() != ts[i].NumSourceDims() {
			return nil, fmt.Errorf("%w: step %d yields %d dimensions, step %d expects %d",
				ErrDimensionMismatch, i-1, ts[i-1].NumTargetDims(), i, ts[i].NumSourceDims())
		}
	}
	return newSequence(ts), nil
}

func newSequence(ts []RealTransform) *Sequence {
	s := &Sequence{ts: ts, buf: make([][]float64, len(ts)-1)}
	for i := range s.buf {
		s.buf[i] = make([]float64, ts[i].NumTargetDims())
	}
	return s
}

func (s *Sequence) NumSourceDims() int { return s.ts[0].NumSourceDims() }
func (s *Sequence) NumTargetDims() int { return s.ts[len(s.ts)-1].NumTargetDims() }

func (s *Sequence) Apply(source, target []float64) {
	in := source
	last := len(s.ts) - 1
	for i, t := range s.ts[:last] {
		t.Apply(in, s.buf[i])
		in = s.buf[i]
	}
	s.ts[last].Apply(in, target)
}

func (s *Sequence) Copy() RealTransform {
	ts := make([]RealTransform, len(s.ts))
	for i, t := range s.ts {
		ts[i] = t.Copy()
	}
	return newSequence(ts)
}
