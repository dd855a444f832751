package transform

import "fmt"

// Wrapped2DAs3D lifts a 2D transform to 3D. X and Y are mapped by the
// wrapped transform, Z passes through unchanged.
type Wrapped2DAs3D struct {
	Transform InvertibleRealTransform

	src, dst [2]float64
}

// NewWrapped2DAs3D wraps a 2D transform.
func NewWrapped2DAs3D(t InvertibleRealTransform) (*Wrapped2DAs3D, error) {
	if t.NumSourceDims() != 2 || t.NumTargetDims() != 2 {
		return nil, fmt.Errorf("%w: wrapped transform must be 2D, got %dD", ErrDimensionMismatch, t.NumSourceDims())
	}
	return &Wrapped2DAs3D{Transform: t}, nil
}

func (w *Wrapped2DAs3D) NumSourceDims() int { return 3 }
func (w *Wrapped2DAs3D) NumTargetDims() int { return 3 }

func (w *Wrapped2DAs3D) Apply(source, target []float64) {
	w.src[0], w.src[1] = source[0], source[1]
	w.Transform.Apply(w.src[:], w.dst[:])
	target[0], target[1] = w.dst[0], w.dst[1]
	target[2] = source[2]
}

func (w *Wrapped2DAs3D) Copy() RealTransform {
	return &Wrapped2DAs3D{Transform: w.Transform.Copy().(InvertibleRealTransform)}
}

func (w *Wrapped2DAs3D) Inverse() (InvertibleRealTransform, error) {
	inv, err := w.Transform.Inverse()
	if err != nil {
		return nil, err
	}
	return &Wrapped2DAs3D{Transform: inv}, nil
}
