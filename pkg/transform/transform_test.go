package transform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAffineApplyAndInvert(t *testing.T) {
	a, err := NewAffineFromRows(2, []float64{
		2, 1, 3,
		0, 4, -1,
	})
	require.NoError(t, err)

	out := make([]float64, 2)
	a.Apply([]float64{1, 2}, out)
	require.Equal(t, []float64{7, 7}, out)

	inv, err := a.Invert()
	require.NoError(t, err)
	back := make([]float64, 2)
	inv.Apply(out, back)
	require.InDelta(t, 1, back[0], 1e-12)
	require.InDelta(t, 2, back[1], 1e-12)
}

func TestTranslationInverseIsExact(t *testing.T) {
	inv, err := NewTranslation(5, 5, 0).Invert()
	require.NoError(t, err)
	out := make([]float64, 3)
	inv.Apply([]float64{20, 20, 0}, out)
	require.Equal(t, []float64{15, 15, 0}, out)
}

func TestSingularAffine(t *testing.T) {
	_, err := NewScale(1, 0).Invert()
	require.ErrorIs(t, err, ErrNotInvertible)

	_, err = Invert(NewScale(0, 0, 0))
	require.ErrorIs(t, err, ErrNotInvertible)
}

func TestConcatenateOrder(t *testing.T) {
	// scale ∘ translate: translation is applied first
	a := NewScale(2, 2)
	a.Concatenate(NewTranslation(1, 0))
	out := make([]float64, 2)
	a.Apply([]float64{0, 3}, out)
	require.Equal(t, []float64{2, 6}, out)

	b := NewScale(2, 2)
	b.PreConcatenate(NewTranslation(1, 0))
	b.Apply([]float64{0, 3}, out)
	require.Equal(t, []float64{1, 6}, out)
}

func TestAffineIdentityAndClone(t *testing.T) {
	a := NewTranslation(1, 2)
	require.False(t, a.IsIdentity())
	c := a.Clone()
	a.Identity()
	require.True(t, a.IsIdentity())
	require.Equal(t, 2.0, c.Get(1, 2))
	require.InDelta(t, 3.0, NewScale(3, 3, 3).LinearScale(), 1e-12)
}

type forwardOnly struct{}

func (forwardOnly) NumSourceDims() int            { return 1 }
func (forwardOnly) NumTargetDims() int            { return 1 }
func (forwardOnly) Apply(source, target []float64) { target[0] = source[0] * source[0] }
func (f forwardOnly) Copy() RealTransform         { return f }

func TestInvertRequiresCapability(t *testing.T) {
	_, err := Invert(forwardOnly{})
	require.ErrorIs(t, err, ErrNotInvertible)
}

func cubicWarp() *Warp {
	return NewWarp(2, func(s, t []float64) {
		t[0] = s[0] + 0.01*s[0]*s[0]*s[0]
		t[1] = s[1] + 0.1*math.Sin(s[0])
	})
}

func TestWarpNumericalInverse(t *testing.T) {
	w := cubicWarp()
	inv, err := w.Inverse()
	require.NoError(t, err)

	for _, p := range [][]float64{{0, 0}, {3, -2}, {-4.5, 7}, {10, 10}} {
		y := make([]float64, 2)
		w.Apply(p, y)
		x := make([]float64, 2)
		inv.Apply(y, x)
		require.InDelta(t, p[0], x[0], 1e-6)
		require.InDelta(t, p[1], x[1], 1e-6)
	}

	back, err := inv.Inverse()
	require.NoError(t, err)
	require.Same(t, w, back)
}

func TestWarpAnalyticInverse(t *testing.T) {
	w := NewWarp(1,
		func(s, t []float64) { t[0] = 2*s[0] + 1 },
		WithInverse(func(s, t []float64) { t[0] = (s[0] - 1) / 2 }))
	inv, err := w.Inverse()
	require.NoError(t, err)
	out := make([]float64, 1)
	inv.Apply([]float64{7}, out)
	require.Equal(t, 3.0, out[0])
}

func TestWarpInverseNotConverged(t *testing.T) {
	// x² has no preimage for negative values
	w := NewWarp(1, func(s, t []float64) { t[0] = s[0] * s[0] }, WithMaxIterations(5))
	inv, err := w.Inverse()
	require.NoError(t, err)

	out := make([]float64, 1)
	inv.Apply([]float64{-4}, out)
	require.True(t, math.IsNaN(out[0]))

	checked, ok := inv.(interface {
		CheckedApply(source, target []float64) error
	})
	require.True(t, ok)
	require.ErrorIs(t, checked.CheckedApply([]float64{-4}, out), ErrNotConverged)
}

func TestWrapped2DAs3D(t *testing.T) {
	w, err := NewWrapped2DAs3D(NewTranslation(1, 2))
	require.NoError(t, err)
	out := make([]float64, 3)
	w.Apply([]float64{0, 0, 9}, out)
	require.Equal(t, []float64{1, 2, 9}, out)

	inv, err := w.Inverse()
	require.NoError(t, err)
	inv.Apply([]float64{1, 2, 9}, out)
	require.Equal(t, []float64{0, 0, 9}, out)

	_, err = NewWrapped2DAs3D(NewTranslation(1, 2, 3))
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChainAppliesInOrder(t *testing.T) {
	// scale first, then translate: (1, 1) -> (2, 3) -> (12, 13)
	c, err := Chain(NewScale(2, 3), NewTranslation(10, 10))
	require.NoError(t, err)
	require.Equal(t, 2, c.NumSourceDims())
	out := make([]float64, 2)
	c.Apply([]float64{1, 1}, out)
	require.Equal(t, []float64{12, 13}, out)

	cp := c.Copy()
	cp.Apply([]float64{0, 0}, out)
	require.Equal(t, []float64{10, 10}, out)

	_, err = Chain(NewScale(2, 3), NewTranslation(1, 1, 1))
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = Chain()
	require.ErrorIs(t, err, ErrDimensionMismatch)
}
