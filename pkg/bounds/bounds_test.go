package bounds

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"warpresample/pkg/geom"
	"warpresample/pkg/transform"
)

func TestEstimateBoundsIdentity(t *testing.T) {
	itvl := geom.MustInterval([]int64{-3, 0, 2}, []int64{4, 9, 2})
	got, err := EstimateBounds(transform.NewIdentity(3), itvl)
	require.NoError(t, err)
	require.True(t, got.Equal(itvl), "got %v", got)
}

func TestEstimateBoundsSinglePoint(t *testing.T) {
	itvl := geom.MustInterval([]int64{2, 2}, []int64{2, 2})
	got, err := EstimateBounds(transform.NewTranslation(0.5, -1), itvl)
	require.NoError(t, err)
	require.Equal(t, []int64{2, 1}, got.Min)
	require.Equal(t, []int64{3, 1}, got.Max)
}

func TestEstimateBoundsRotation(t *testing.T) {
	// 90 degree rotation maps [0,10]x[0,4] onto [-4,0]x[0,10]
	rot, err := transform.NewAffineFromRows(2, []float64{
		0, -1, 0,
		1, 0, 0,
	})
	require.NoError(t, err)
	got, err := EstimateBounds(rot, geom.MustInterval([]int64{0, 0}, []int64{10, 4}))
	require.NoError(t, err)
	require.Equal(t, []int64{-4, 0}, got.Min)
	require.Equal(t, []int64{0, 10}, got.Max)
}

// For monotonic affine transforms the corner estimate equals the min/max
// corner mapping.
func TestEstimateBoundsMatchesMinMaxForMonotonicAffine(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		scale := transform.NewScale(0.1+rng.Float64()*5, 0.1+rng.Float64()*5, 0.1+rng.Float64()*5)
		scale.Concatenate(transform.NewTranslation(rng.NormFloat64()*20, rng.NormFloat64()*20, rng.NormFloat64()*20))
		itvl := randomInterval(rng, 3)

		est, err := EstimateBounds(scale, itvl)
		require.NoError(t, err)
		mm, err := TransformIntervalMinMax(scale, itvl)
		require.NoError(t, err)
		require.True(t, est.Equal(mm), "estimate %v vs min/max %v", est, mm)
	}
}

// Every mapped point of the interval lies inside the estimate for affine
// transforms, rotations and shears included.
func TestEstimateBoundsCoversAffineImage(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 100; i++ {
		values := make([]float64, 3*4)
		for j := range values {
			values[j] = rng.NormFloat64() * 3
		}
		a, err := transform.NewAffineFromRows(3, values)
		require.NoError(t, err)
		itvl := randomInterval(rng, 3)
		assertCovers(t, a, itvl, rng, 300)
	}
}

func TestSubdividedCoversCurvedTransform(t *testing.T) {
	// a bulge in x that peaks in the middle of the y range; the corners alone
	// miss the bulge
	bulge := transform.NewWarp(2, func(s, tt []float64) {
		tt[0] = s[0] + 5*math.Sin(math.Pi*s[1]/20)
		tt[1] = s[1]
	})
	itvl := geom.MustInterval([]int64{0, 0}, []int64{10, 20})

	corners, err := EstimateBounds(bulge, itvl)
	require.NoError(t, err)
	require.Equal(t, int64(10), corners.Max[0])

	sub, err := EstimateBoundsSubdivided(bulge, itvl, 41)
	require.NoError(t, err)
	require.True(t, sub.ContainsInterval(corners))
	require.Equal(t, int64(15), sub.Max[0])

	rng := rand.New(rand.NewSource(3))
	pt := make([]float64, 2)
	out := make([]float64, 2)
	for i := 0; i < 500; i++ {
		pt[0] = rng.Float64() * 10
		pt[1] = rng.Float64() * 20
		bulge.Apply(pt, out)
		require.True(t, sub.Real().Contains(out), "point %v outside %v", out, sub)
	}
}

type countingTransform struct {
	transform.RealTransform
	calls int
}

func (c *countingTransform) Apply(source, target []float64) {
	c.calls++
	c.RealTransform.Apply(source, target)
}

func TestSubdividedSamplesOnlyFaces(t *testing.T) {
	itvl := geom.MustInterval([]int64{0, 0, 0}, []int64{9, 19, 29})
	xfm := &countingTransform{RealTransform: transform.NewScale(2, 1, 0.5)}

	got, err := EstimateBoundsSubdivided(xfm, itvl, 50)
	require.NoError(t, err)
	// 2 faces per dimension, 50x50 samples each
	require.Equal(t, 6*50*50, xfm.calls)

	corners, err := EstimateBounds(transform.NewScale(2, 1, 0.5), itvl)
	require.NoError(t, err)
	require.True(t, got.Equal(corners), "subdivided %v, corners %v", got, corners)
}

func TestTransformRealIntervalUsesCeilForMax(t *testing.T) {
	got, err := TransformRealInterval(transform.NewScale(1, 1),
		geom.RealInterval{Min: []float64{0.2, -1.7}, Max: []float64{3.2, 4.01}})
	require.NoError(t, err)
	require.Equal(t, []int64{0, -2}, got.Min)
	require.Equal(t, []int64{4, 5}, got.Max)
}

func TestEstimateBoundsErrors(t *testing.T) {
	_, err := EstimateBounds(transform.NewIdentity(2), geom.FromDimensions(3, 3, 3))
	require.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = EstimateBounds(transform.NewIdentity(0), geom.Interval{})
	require.ErrorIs(t, err, geom.ErrZeroDimensions)

	nan := transform.NewWarp(1, func(s, tt []float64) { tt[0] = math.NaN() })
	_, err = EstimateBounds(nan, geom.FromDimensions(4))
	require.ErrorIs(t, err, ErrNonFinite)
}

func randomInterval(rng *rand.Rand, nd int) geom.Interval {
	min := make([]int64, nd)
	max := make([]int64, nd)
	for d := 0; d < nd; d++ {
		min[d] = int64(rng.Intn(50) - 25)
		max[d] = min[d] + int64(rng.Intn(40))
	}
	return geom.MustInterval(min, max)
}

func assertCovers(t *testing.T, xfm transform.RealTransform, itvl geom.Interval, rng *rand.Rand, n int) {
	t.Helper()
	est, err := EstimateBounds(xfm, itvl)
	require.NoError(t, err)
	box := est.Real()
	nd := itvl.NumDims()
	pt := make([]float64, nd)
	out := make([]float64, nd)
	for i := 0; i < n; i++ {
		for d := 0; d < nd; d++ {
			pt[d] = float64(itvl.Min[d]) + rng.Float64()*float64(itvl.Max[d]-itvl.Min[d])
		}
		xfm.Apply(pt, out)
		require.True(t, box.Contains(out), "mapped %v of %v outside %v", out, pt, est)
	}
}
