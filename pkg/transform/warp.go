package transform

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNotConverged is reported by CheckedApply when the Newton iteration of a
// numerically inverted warp does not reach the tolerance.
var ErrNotConverged = errors.New("transform: inverse did not converge")

// Func maps source into target.
type Func func(source, target []float64)

// Warp is a generic, possibly non-linear, invertible transform given by its
// forward mapping. The inverse is either supplied analytically or evaluated
// numerically with Newton's method on finite-difference Jacobians.
type Warp struct {
	n       int
	forward Func
	inverse Func
	tol     float64
	maxIter int
}

// WarpOption configures a Warp.
type WarpOption func(*Warp)

// WithInverse supplies a closed-form inverse.
func WithInverse(inv Func) WarpOption {
	return func(w *Warp) { w.inverse = inv }
}

// WithTolerance sets the residual tolerance of the numerical inverse.
func WithTolerance(tol float64) WarpOption {
	return func(w *Warp) { w.tol = tol }
}

// WithMaxIterations bounds the Newton iterations of the numerical inverse.
func WithMaxIterations(n int) WarpOption {
	return func(w *Warp) { w.maxIter = n }
}

// NewWarp returns an n-dimensional warp with the given forward mapping. The
// forward function must be safe for concurrent use.
func NewWarp(n int, forward Func, opts ...WarpOption) *Warp {
	w := &Warp{n: n, forward: forward, tol: 1e-9, maxIter: 50}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Warp) NumSourceDims() int { return w.n }
func (w *Warp) NumTargetDims() int { return w.n }

func (w *Warp) Apply(source, target []float64) { w.forward(source, target) }

func (w *Warp) Copy() RealTransform {
	c := *w
	return &c
}

// Inverse returns the inverse warp.
func (w *Warp) Inverse() (InvertibleRealTransform, error) {
	return newInverseWarp(w), nil
}

// inverseWarp evaluates the inverse of a Warp. It owns scratch buffers and
// must not be shared across goroutines.
type inverseWarp struct {
	w   *Warp
	jac *mat.Dense
	res []float64
	fx  []float64
	x   []float64
}

func newInverseWarp(w *Warp) *inverseWarp {
	return &inverseWarp{
		w:   w,
		jac: mat.NewDense(w.n, w.n, nil),
		res: make([]float64, w.n),
		fx:  make([]float64, w.n),
		x:   make([]float64, w.n),
	}
}

func (iw *inverseWarp) NumSourceDims() int { return iw.w.n }
func (iw *inverseWarp) NumTargetDims() int { return iw.w.n }

// Apply writes the preimage of source. When the numerical inverse fails to
// converge every coordinate of target is NaN, which downstream consumers
// treat as a failure of the inverse.
func (iw *inverseWarp) Apply(source, target []float64) {
	if err := iw.CheckedApply(source, target); err != nil {
		for d := range target[:iw.w.n] {
			target[d] = math.NaN()
		}
	}
}

// CheckedApply is Apply with the convergence failure reported as an error.
func (iw *inverseWarp) CheckedApply(source, target []float64) error {
	if iw.w.inverse != nil {
		iw.w.inverse(source, target)
		return nil
	}
	return iw.newton(source, target)
}

func (iw *inverseWarp) newton(y, target []float64) error {
	n := iw.w.n
	copy(iw.x, y[:n])
	f := func(out, in []float64) { iw.w.forward(in, out) }
	settings := &fd.JacobianSettings{Formula: fd.Central}
	for it := 0; it < iw.w.maxIter; it++ {
		iw.w.forward(iw.x, iw.fx)
		floats.SubTo(iw.res, iw.fx, y[:n])
		if floats.Norm(iw.res, 2) <= iw.w.tol {
			copy(target, iw.x)
			return nil
		}
		fd.Jacobian(iw.jac, f, iw.x, settings)
		var dx mat.VecDense
		if err := dx.SolveVec(iw.jac, mat.NewVecDense(n, iw.res)); err != nil {
			return ErrNotConverged
		}
		for d := 0; d < n; d++ {
			iw.x[d] -= dx.AtVec(d)
		}
	}
	iw.w.forward(iw.x, iw.fx)
	floats.SubTo(iw.res, iw.fx, y[:n])
	if floats.Norm(iw.res, 2) <= iw.w.tol {
		copy(target, iw.x)
		return nil
	}
	return ErrNotConverged
}

func (iw *inverseWarp) Copy() RealTransform { return newInverseWarp(iw.w) }

func (iw *inverseWarp) Inverse() (InvertibleRealTransform, error) { return iw.w, nil }
