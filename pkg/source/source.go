// Package source defines multi-resolution, multi-timepoint image sources and
// the Warped wrapper presenting a transformed view of a source without
// copying its data.
package source

import (
	"errors"
	"math"

	"warpresample/pkg/field"
	"warpresample/pkg/geom"
	"warpresample/pkg/transform"
)

// ErrNotPresent is returned when a source has no data at a timepoint or
// resolution level.
var ErrNotPresent = errors.New("source: no data at timepoint or level")

// VoxelDimensions carries the physical size of a voxel at full resolution.
type VoxelDimensions struct {
	Unit string
	Size []float64
}

// Source is a multi-resolution, multi-timepoint sampleable image.
type Source interface {
	Name() string
	IsPresent(t int) bool
	NumMipmapLevels() int
	VoxelDimensions() VoxelDimensions

	// Interval returns the pixel extent of the image at (t, level).
	Interval(t, level int) geom.Interval

	// Interpolated returns the image at (t, level) as a continuous field in
	// pixel coordinates.
	Interpolated(t, level int, mode field.Interpolation) (field.RealField, error)

	// SourceTransform returns the pixel-to-physical transform at (t, level).
	SourceTransform(t, level int) *transform.Affine
}

// MipmapLevel ranks one resolution level for rendering.
type MipmapLevel struct {
	Level         int
	RenderOrder   int
	PrefetchOrder int
}

// MipmapHints lists the levels to render, best first.
type MipmapHints struct {
	Levels []MipmapLevel
}

// MipmapOrdering chooses resolution levels for a screen transform.
type MipmapOrdering interface {
	MipmapHints(screen *transform.Affine, t, previousT int) MipmapHints
}

// DefaultMipmapOrdering picks the level whose voxels cover closest to one
// screen pixel and renders it first, followed by every coarser level.
type DefaultMipmapOrdering struct {
	source Source
}

// NewDefaultMipmapOrdering returns the ordering for src.
func NewDefaultMipmapOrdering(src Source) *DefaultMipmapOrdering {
	return &DefaultMipmapOrdering{source: src}
}

// BestLevel returns the level whose voxel footprint on screen is closest to
// one pixel.
func (o *DefaultMipmapOrdering) BestLevel(screen *transform.Affine, t int) int {
	best, bestScore := 0, math.Inf(1)
	for level := 0; level < o.source.NumMipmapLevels(); level++ {
		st := o.source.SourceTransform(t, level)
		if screen != nil && screen.NumSourceDims() == st.NumSourceDims() {
			st = screen.Clone().Concatenate(st)
		}
		scale := st.LinearScale()
		if scale <= 0 || math.IsNaN(scale) {
			continue
		}
		if score := math.Abs(math.Log(scale)); score < bestScore {
			best, bestScore = level, score
		}
	}
	return best
}

func (o *DefaultMipmapOrdering) MipmapHints(screen *transform.Affine, t, previousT int) MipmapHints {
	best := o.BestLevel(screen, t)
	var hints MipmapHints
	for level, order := best, 0; level < o.source.NumMipmapLevels(); level, order = level+1, order+1 {
		hints.Levels = append(hints.Levels, MipmapLevel{Level: level, RenderOrder: order, PrefetchOrder: order})
	}
	return hints
}
