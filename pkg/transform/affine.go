package transform

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Affine is an n-dimensional affine transform stored as an (n+1)x(n+1)
// homogeneous matrix whose last row is [0 ... 0 1].
type Affine struct {
	n int
	m *mat.Dense
}

// NewAffine returns the n-dimensional identity affine.
func NewAffine(n int) *Affine {
	a := &Affine{n: n, m: mat.NewDense(n+1, n+1, nil)}
	a.Identity()
	return a
}

// NewAffineFromRows builds an affine from the row-packed n x (n+1) matrix
// [L | t], so values[r*(n+1)+c] is the entry at row r, column c.
func NewAffineFromRows(n int, values []float64) (*Affine, error) {
	if len(values) != n*(n+1) {
		return nil, fmt.Errorf("%w: %d values for a %d-dimensional affine, expected %d",
			ErrDimensionMismatch, len(values), n, n*(n+1))
	}
	a := NewAffine(n)
	for r := 0; r < n; r++ {
		for c := 0; c <= n; c++ {
			a.m.Set(r, c, values[r*(n+1)+c])
		}
	}
	return a, nil
}

// NewTranslation returns the translation by t.
func NewTranslation(t ...float64) *Affine {
	a := NewAffine(len(t))
	for d, v := range t {
		a.m.Set(d, len(t), v)
	}
	return a
}

// NewScale returns the diagonal scaling by s.
func NewScale(s ...float64) *Affine {
	a := NewAffine(len(s))
	for d, v := range s {
		a.m.Set(d, d, v)
	}
	return a
}

func (a *Affine) NumSourceDims() int { return a.n }
func (a *Affine) NumTargetDims() int { return a.n }

// Identity resets the receiver to the identity.
func (a *Affine) Identity() {
	a.m.Zero()
	for d := 0; d <= a.n; d++ {
		a.m.Set(d, d, 1)
	}
}

// Get returns the matrix entry at (row, col); col == n addresses the
// translation column.
func (a *Affine) Get(row, col int) float64 { return a.m.At(row, col) }

// Set writes the matrix entry at (row, col).
func (a *Affine) Set(row, col int, v float64) {
	if row >= a.n {
		panic(fmt.Sprintf("transform: row %d outside %d-dimensional affine", row, a.n))
	}
	a.m.Set(row, col, v)
}

// Concatenate replaces the receiver with a ∘ b, i.e. b is applied first.
func (a *Affine) Concatenate(b *Affine) *Affine {
	a.mustMatch(b)
	var tmp mat.Dense
	tmp.Mul(a.m, b.m)
	a.m.Copy(&tmp)
	return a
}

// PreConcatenate replaces the receiver with b ∘ a, i.e. b is applied last.
func (a *Affine) PreConcatenate(b *Affine) *Affine {
	a.mustMatch(b)
	var tmp mat.Dense
	tmp.Mul(b.m, a.m)
	a.m.Copy(&tmp)
	return a
}

func (a *Affine) mustMatch(b *Affine) {
	if a.n != b.n {
		panic(fmt.Sprintf("%v: %d vs %d", ErrDimensionMismatch, a.n, b.n))
	}
}

// Apply maps source into target.
func (a *Affine) Apply(source, target []float64) {
	raw := a.m.RawMatrix()
	for r := 0; r < a.n; r++ {
		row := raw.Data[r*raw.Stride : r*raw.Stride+a.n+1]
		v := row[a.n]
		for c := 0; c < a.n; c++ {
			v += row[c] * source[c]
		}
		target[r] = v
	}
}

// Copy returns an independent copy.
func (a *Affine) Copy() RealTransform { return a.Clone() }

// Clone returns an independent copy with the concrete type.
func (a *Affine) Clone() *Affine {
	c := &Affine{n: a.n, m: mat.NewDense(a.n+1, a.n+1, nil)}
	c.m.Copy(a.m)
	return c
}

// Inverse implements InvertibleRealTransform.
func (a *Affine) Inverse() (InvertibleRealTransform, error) {
	return a.Invert()
}

// Invert returns the inverse affine. The linear part is inverted on its own
// and the translation is derived from it, which keeps pure translations and
// diagonal scalings exact.
func (a *Affine) Invert() (*Affine, error) {
	lin := a.m.Slice(0, a.n, 0, a.n)
	if det := mat.Det(lin); det == 0 || math.IsNaN(det) {
		return nil, fmt.Errorf("%w: singular linear part", ErrNotInvertible)
	}
	var linInv mat.Dense
	if a.isDiagonal() {
		linInv.CloneFrom(lin)
		for d := 0; d < a.n; d++ {
			linInv.Set(d, d, 1/lin.At(d, d))
		}
	} else if err := linInv.Inverse(lin); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotInvertible, err)
	}

	inv := NewAffine(a.n)
	for r := 0; r < a.n; r++ {
		t := 0.0
		for c := 0; c < a.n; c++ {
			v := linInv.At(r, c)
			inv.m.Set(r, c, v)
			t -= v * a.m.At(c, a.n)
		}
		inv.m.Set(r, a.n, t)
	}
	return inv, nil
}

func (a *Affine) isDiagonal() bool {
	for r := 0; r < a.n; r++ {
		for c := 0; c < a.n; c++ {
			if r != c && a.m.At(r, c) != 0 {
				return false
			}
		}
	}
	return true
}

// IsIdentity reports whether the affine is exactly the identity.
func (a *Affine) IsIdentity() bool {
	for r := 0; r < a.n; r++ {
		for c := 0; c <= a.n; c++ {
			want := 0.0
			if r == c {
				want = 1
			}
			if a.m.At(r, c) != want {
				return false
			}
		}
	}
	return true
}

// LinearScale returns |det(L)|^(1/n), the mean isotropic scale factor of the
// linear part.
func (a *Affine) LinearScale() float64 {
	det := mat.Det(a.m.Slice(0, a.n, 0, a.n))
	return math.Pow(math.Abs(det), 1/float64(a.n))
}

// RowPacked returns the n x (n+1) matrix [L | t] in row-major order.
func (a *Affine) RowPacked() []float64 {
	out := make([]float64, 0, a.n*(a.n+1))
	for r := 0; r < a.n; r++ {
		for c := 0; c <= a.n; c++ {
			out = append(out, a.m.At(r, c))
		}
	}
	return out
}

func (a *Affine) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Affine%d(", a.n)
	for i, v := range a.RowPacked() {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%g", v)
	}
	sb.WriteString(")")
	return sb.String()
}
