package raster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"warpresample/pkg/geom"
)

func TestFillAndAt(t *testing.T) {
	r := New(geom.MustInterval([]int64{1, 2}, []int64{3, 4}))
	r.Fill(func(pos []int64) float64 { return float64(pos[0]*10 + pos[1]) })

	require.Equal(t, 9, r.Len())
	require.Equal(t, 12.0, r.At([]int64{1, 2}))
	require.Equal(t, 34.0, r.At([]int64{3, 4}))
	// flat order: dimension 0 fastest
	require.Equal(t, []float64{12, 22, 32, 13, 23, 33, 14, 24, 34}, r.Data())
}

func TestCursorJumpFwd(t *testing.T) {
	r := New(geom.FromDimensions(4, 3))
	r.Fill(func(pos []int64) float64 { return float64(pos[1]*4 + pos[0]) })

	c := r.Cursor()
	c.JumpFwd(3)
	require.Equal(t, 2.0, c.Get())
	c.JumpFwd(4)
	require.Equal(t, []int64{2, 1}, c.Position())
	require.Equal(t, 6.0, c.Get())
	c.JumpFwd(100)
	require.False(t, c.HasNext())
}

func TestSubCursor(t *testing.T) {
	r := New(geom.FromDimensions(4, 4))
	sub := geom.MustInterval([]int64{1, 1}, []int64{2, 3})
	c, err := r.SubCursor(sub)
	require.NoError(t, err)
	require.Equal(t, int64(6), c.Size())
	for c.HasNext() {
		c.Fwd()
		c.Set(1)
	}

	total := 0.0
	for _, v := range r.Data() {
		total += v
	}
	require.Equal(t, 6.0, total)
	require.Equal(t, 1.0, r.At([]int64{2, 3}))
	require.Equal(t, 0.0, r.At([]int64{3, 3}))

	_, err = r.SubCursor(geom.FromDimensions(5, 5))
	require.Error(t, err)
}

func TestFromDataAndEqual(t *testing.T) {
	itvl := geom.FromDimensions(2, 2)
	a, err := FromData(itvl, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	b := New(itvl)
	require.False(t, a.Equal(b))
	copy(b.Data(), a.Data())
	require.True(t, a.Equal(b))

	_, err = FromData(itvl, []float64{1})
	require.Error(t, err)
}
