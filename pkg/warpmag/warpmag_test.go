package warpmag

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"warpresample/pkg/geom"
	"warpresample/pkg/transform"
)

func unitBox(n int) geom.RealInterval {
	r := geom.RealInterval{Min: make([]float64, n), Max: make([]float64, n)}
	for d := range r.Max {
		r.Max[d] = 100
	}
	return r
}

func TestTranslationMagnitudeIsConstant(t *testing.T) {
	f, err := New(unitBox(2), transform.NewTranslation(3, 4), nil)
	require.NoError(t, err)

	acc := f.RealAccess()
	for _, p := range [][]float64{{0, 0}, {12.5, 3}, {99, 99}} {
		acc.SetPosition(p)
		require.InDelta(t, 5, acc.Get(), 1e-12)
	}
}

func TestNilWarpIsZero(t *testing.T) {
	f, err := New(unitBox(3), nil, transform.NewScale(2, 2, 2))
	require.NoError(t, err)
	acc := f.RealAccess()
	acc.SetPosition([]float64{7, 8, 9})
	require.Equal(t, 0.0, acc.Get())
	require.Equal(t, 0.0, acc.Copy().Get())
}

func TestWarpAgainstAffineBase(t *testing.T) {
	warp := transform.NewWarp(2, func(src, dst []float64) {
		dst[0] = src[0] + src[1]*src[1]/100
		dst[1] = src[1]
	})
	f, err := New(unitBox(2), warp, transform.NewAffine(2))
	require.NoError(t, err)

	acc := f.RealAccess()
	acc.SetPosition([]float64{1, 10})
	require.InDelta(t, 1, acc.Get(), 1e-12)
	acc.SetPosition([]float64{1, 0})
	require.InDelta(t, 0, acc.Get(), 1e-12)
}

func TestDimensionMismatch(t *testing.T) {
	_, err := New(unitBox(2), transform.NewTranslation(1, 1, 1), nil)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = New(geom.RealInterval{}, nil, nil)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCopiedAccessorsReadConcurrently(t *testing.T) {
	warp := transform.NewWarp(2, func(src, dst []float64) {
		dst[0] = src[0] + math.Sin(src[1])
		dst[1] = src[1] + math.Cos(src[0])
	})
	f, err := New(unitBox(2), warp, nil)
	require.NoError(t, err)

	want := func(x, y float64) float64 {
		return math.Hypot(math.Sin(y), math.Cos(x))
	}

	proto := f.RealAccess()
	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for g := 0; g < 8; g++ {
		acc := proto.Copy()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				x, y := float64(g)+float64(i)/50, float64(i%97)
				acc.SetPosition([]float64{x, y})
				if got := acc.Get(); math.Abs(got-want(x, y)) > 1e-12 {
					errs <- "mismatch"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	require.Empty(t, errs)
}

func TestCopyKeepsPosition(t *testing.T) {
	f, err := New(unitBox(1), transform.NewTranslation(2), nil)
	require.NoError(t, err)
	acc := f.RealAccess()
	acc.SetPosition([]float64{4})
	c := acc.Copy()
	acc.SetPosition([]float64{50})
	require.InDelta(t, 2, c.Get(), 1e-12)
}
