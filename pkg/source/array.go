package source

import (
	"fmt"

	"warpresample/pkg/field"
	"warpresample/pkg/geom"
	"warpresample/pkg/raster"
	"warpresample/pkg/transform"
)

// ArraySource is an in-memory Source holding one raster per timepoint and
// resolution level.
type ArraySource struct {
	name       string
	voxels     VoxelDimensions
	timepoints [][]*raster.Raster
	transforms []*transform.Affine
}

// NewArraySource builds a source. timepoints[t][level] is the raster at
// (t, level); transforms[level] is the pixel-to-physical transform shared by
// all timepoints at that level. A nil transforms slice means identity at
// every level.
func NewArraySource(name string, voxels VoxelDimensions, timepoints [][]*raster.Raster, transforms []*transform.Affine) (*ArraySource, error) {
	if len(timepoints) == 0 || len(timepoints[0]) == 0 {
		return nil, fmt.Errorf("source %q: no data", name)
	}
	levels := len(timepoints[0])
	nd := timepoints[0][0].NumDims()
	for t, tp := range timepoints {
		if len(tp) != levels {
			return nil, fmt.Errorf("source %q: timepoint %d has %d levels, expected %d", name, t, len(tp), levels)
		}
		for level, r := range tp {
			if r == nil || r.NumDims() != nd {
				return nil, fmt.Errorf("source %q: timepoint %d level %d is missing or not %d-dimensional", name, t, level, nd)
			}
		}
	}
	if transforms == nil {
		transforms = make([]*transform.Affine, levels)
		for level := range transforms {
			transforms[level] = transform.NewAffine(nd)
		}
	}
	if len(transforms) != levels {
		return nil, fmt.Errorf("source %q: %d transforms for %d levels", name, len(transforms), levels)
	}
	for level, a := range transforms {
		if a.NumSourceDims() != nd {
			return nil, fmt.Errorf("source %q: level %d transform is %dD, data is %dD", name, level, a.NumSourceDims(), nd)
		}
	}
	return &ArraySource{name: name, voxels: voxels, timepoints: timepoints, transforms: transforms}, nil
}

// NewSingleSource wraps one raster as a single-timepoint, single-level source
// placed by the given transform, or identity when it is nil.
func NewSingleSource(name string, r *raster.Raster, placement *transform.Affine) (*ArraySource, error) {
	var transforms []*transform.Affine
	if placement != nil {
		transforms = []*transform.Affine{placement}
	}
	return NewArraySource(name, VoxelDimensions{}, [][]*raster.Raster{{r}}, transforms)
}

func (s *ArraySource) Name() string                     { return s.name }
func (s *ArraySource) IsPresent(t int) bool             { return t >= 0 && t < len(s.timepoints) }
func (s *ArraySource) NumMipmapLevels() int             { return len(s.transforms) }
func (s *ArraySource) VoxelDimensions() VoxelDimensions { return s.voxels }

// Raster returns the stored raster at (t, level).
func (s *ArraySource) Raster(t, level int) (*raster.Raster, error) {
	if !s.IsPresent(t) || level < 0 || level >= s.NumMipmapLevels() {
		return nil, fmt.Errorf("%w: %q t=%d level=%d", ErrNotPresent, s.name, t, level)
	}
	return s.timepoints[t][level], nil
}

func (s *ArraySource) Interval(t, level int) geom.Interval {
	r, err := s.Raster(t, level)
	if err != nil {
		return geom.Interval{}
	}
	return r.Interval()
}

func (s *ArraySource) Interpolated(t, level int, mode field.Interpolation) (field.RealField, error) {
	r, err := s.Raster(t, level)
	if err != nil {
		return nil, err
	}
	return field.Interpolate(r, mode), nil
}

func (s *ArraySource) SourceTransform(t, level int) *transform.Affine {
	return s.transforms[level].Clone()
}
