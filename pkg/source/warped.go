package source

import (
	"fmt"
	"sync"

	"warpresample/pkg/bounds"
	"warpresample/pkg/field"
	"warpresample/pkg/geom"
	"warpresample/pkg/transform"
)

// Warped presents a possibly transformed view of a wrapped Source. Nothing
// is cached: every query is recomputed from the current flag, the wrapped
// source and the current transform.
//
// The transform maps points of the viewing (target) space into the physical
// space of the wrapped (moving) source. With transformation disabled, or no
// transform set, the view passes through to the wrapped source unchanged.
//
// Warped is safe for concurrent use; UpdateTransform and SetTransformed may be
// called while other goroutines query it.
type Warped struct {
	source   Source
	name     string
	ordering MipmapOrdering

	mu            sync.RWMutex
	xfm           transform.InvertibleRealTransform
	isTransformed bool
}

// NewWarped wraps src. The wrapper starts in pass-through state.
func NewWarped(src Source, name string) *Warped {
	ordering, ok := src.(MipmapOrdering)
	if !ok {
		ordering = NewDefaultMipmapOrdering(src)
	}
	return &Warped{source: src, name: name, ordering: ordering}
}

// UpdateTransform sets the transform used while transformation is enabled.
func (w *Warped) UpdateTransform(xfm transform.InvertibleRealTransform) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.xfm = xfm
}

// SetTransformed enables or disables the transformed view.
func (w *Warped) SetTransformed(isTransformed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.isTransformed = isTransformed
}

// IsTransformed reports whether the transformed view is enabled.
func (w *Warped) IsTransformed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isTransformed
}

// Transform returns the current transform, which may be nil.
func (w *Warped) Transform() transform.InvertibleRealTransform {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.xfm
}

// WrappedSource returns the source being wrapped.
func (w *Warped) WrappedSource() Source { return w.source }

func (w *Warped) state() (bool, transform.InvertibleRealTransform) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isTransformed, w.xfm
}

func (w *Warped) Name() string                     { return w.source.Name() + "_" + w.name }
func (w *Warped) IsPresent(t int) bool             { return w.source.IsPresent(t) }
func (w *Warped) NumMipmapLevels() int             { return w.source.NumMipmapLevels() }
func (w *Warped) VoxelDimensions() VoxelDimensions { return w.source.VoxelDimensions() }

// Interval returns EstimateBoundingInterval, or the zero Interval when the
// estimate fails. Callers needing the cause use EstimateBoundingInterval.
func (w *Warped) Interval(t, level int) geom.Interval {
	itvl, err := w.EstimateBoundingInterval(t, level)
	if err != nil {
		return geom.Interval{}
	}
	return itvl
}

// EstimateBoundingInterval returns the region of the view holding data. In
// pass-through state that is the native interval of the wrapped source.
// Otherwise it is the native interval placed in physical space by the source
// transform and then mapped through the inverse of the transform, if one is
// set. This is the frame Interpolated samples in, so the bounds always cover
// the data of the view.
//
// A 2D source under a Wrapped2DAs3D transform is bounded through the wrapped
// 2D transform.
func (w *Warped) EstimateBoundingInterval(t, level int) (geom.Interval, error) {
	native := w.source.Interval(t, level)
	isTransformed, xfm := w.state()
	if !isTransformed {
		return native, nil
	}
	placement := w.source.SourceTransform(t, level)
	if xfm == nil {
		return bounds.EstimateBounds(placement, native)
	}

	var inv transform.InvertibleRealTransform
	var err error
	if w2, ok := xfm.(*transform.Wrapped2DAs3D); ok && native.NumDims() == 2 {
		inv, err = w2.Transform.Inverse()
	} else {
		inv, err = xfm.Inverse()
	}
	if err != nil {
		return geom.Interval{}, fmt.Errorf("source %q: inverting transform: %w", w.Name(), err)
	}
	toView, err := transform.Chain(placement, inv.Copy())
	if err != nil {
		return geom.Interval{}, fmt.Errorf("source %q: %w", w.Name(), err)
	}
	itvl, err := bounds.EstimateBounds(toView, native)
	if err != nil {
		return geom.Interval{}, fmt.Errorf("source %q: estimating bounds: %w", w.Name(), err)
	}
	return itvl, nil
}

// Interpolated returns the wrapped field unchanged in pass-through state.
// Otherwise the field is first placed in physical space by the wrapped
// source transform and then, if a transform is set, every query point is
// mapped through it before the lookup.
func (w *Warped) Interpolated(t, level int, mode field.Interpolation) (field.RealField, error) {
	f, err := w.source.Interpolated(t, level, mode)
	if err != nil {
		return nil, err
	}
	isTransformed, xfm := w.state()
	if !isTransformed {
		return f, nil
	}

	phys, err := field.AffineReal(f, w.source.SourceTransform(t, level))
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", w.Name(), err)
	}
	if xfm == nil {
		return phys, nil
	}
	if xfm.NumTargetDims() != phys.NumDims() {
		return nil, fmt.Errorf("source %q: %w: transform targets %d dimensions, data has %d",
			w.Name(), transform.ErrDimensionMismatch, xfm.NumTargetDims(), phys.NumDims())
	}
	return field.Transformed(phys, xfm), nil
}

// SourceTransform is the identity while transformed, since the physical
// placement is already part of the interpolated field.
func (w *Warped) SourceTransform(t, level int) *transform.Affine {
	if isTransformed, _ := w.state(); isTransformed {
		return transform.NewAffine(w.source.SourceTransform(t, level).NumSourceDims())
	}
	return w.source.SourceTransform(t, level)
}

// Bounded returns the view sampled with nearest-neighbour interpolation over
// its estimated bounding interval.
func (w *Warped) Bounded(t, level int) (*field.View, error) {
	f, err := w.Interpolated(t, level, field.NearestNeighbor)
	if err != nil {
		return nil, err
	}
	itvl, err := w.EstimateBoundingInterval(t, level)
	if err != nil {
		return nil, err
	}
	return field.NewView(f, itvl)
}

func (w *Warped) MipmapHints(screen *transform.Affine, t, previousT int) MipmapHints {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ordering.MipmapHints(screen, t, previousT)
}
