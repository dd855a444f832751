package field

import (
	"math"

	"warpresample/pkg/geom"
	"warpresample/pkg/raster"
)

// Interpolate returns a field sampling r with the given interpolation. The
// raster is extended with zeros outside its interval.
func Interpolate(r *raster.Raster, mode Interpolation) RealField {
	return &rasterField{r: r, mode: mode}
}

type rasterField struct {
	r    *raster.Raster
	mode Interpolation
}

func (f *rasterField) NumDims() int { return f.r.NumDims() }

func (f *rasterField) RealAccess() RealAccess {
	n := f.r.NumDims()
	return &rasterAccess{
		f:    f,
		itvl: f.r.Interval(),
		pos:  make([]float64, n),
		base: make([]int64, n),
		cur:  make([]int64, n),
		frac: make([]float64, n),
	}
}

type rasterAccess struct {
	f    *rasterField
	itvl geom.Interval
	pos  []float64
	base []int64
	cur  []int64
	frac []float64
}

func (a *rasterAccess) SetPosition(pos []float64) { copy(a.pos, pos) }

func (a *rasterAccess) Get() float64 {
	if a.f.mode == NLinear {
		return a.linear()
	}
	return a.nearest()
}

func (a *rasterAccess) nearest() float64 {
	for d, p := range a.pos {
		if math.IsNaN(p) {
			return 0
		}
		a.cur[d] = int64(math.Floor(p + 0.5))
	}
	if !a.itvl.Contains(a.cur) {
		return 0
	}
	return a.f.r.At(a.cur)
}

// linear weights the 2^N grid neighbours of the position. Neighbours with
// zero weight are skipped so integer positions return the stored sample
// exactly.
func (a *rasterAccess) linear() float64 {
	n := len(a.pos)
	for d, p := range a.pos {
		if math.IsNaN(p) {
			return 0
		}
		fl := math.Floor(p)
		a.base[d] = int64(fl)
		a.frac[d] = p - fl
	}
	sum := 0.0
	for k := 0; k < 1<<n; k++ {
		w := 1.0
		for d := 0; d < n; d++ {
			if k&(1<<d) == 0 {
				a.cur[d] = a.base[d]
				w *= 1 - a.frac[d]
			} else {
				a.cur[d] = a.base[d] + 1
				w *= a.frac[d]
			}
		}
		if w == 0 || !a.itvl.Contains(a.cur) {
			continue
		}
		sum += w * a.f.r.At(a.cur)
	}
	return sum
}

func (a *rasterAccess) Copy() RealAccess {
	c := a.f.RealAccess().(*rasterAccess)
	copy(c.pos, a.pos)
	return c
}
