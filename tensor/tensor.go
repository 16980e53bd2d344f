// Package tensor implements the dense real tensors used by the matrix product state code.
//
// A Dense is a row-major []float64 together with its shape.
// Heavy lifting such as matrix products and singular value decompositions is delegated to gonum.
package tensor

import (
	"fmt"
	"iter"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Dense is a dense tensor of float64.
type Dense struct {
	shape []int
	data  []float64
}

// Zeros returns a tensor of the given shape filled with zeros.
func Zeros(shape ...int) *Dense {
	t := &Dense{}
	return t.Reset(shape...)
}

// New returns a tensor that takes ownership of data.
func New(data []float64, shape ...int) *Dense {
	if n := size(shape); n != len(data) {
		panic(fmt.Sprintf("%d %#v", len(data), shape))
	}
	return &Dense{shape: slices.Clone(shape), data: data}
}

// Scalar returns a rank zero tensor.
func Scalar(v float64) *Dense {
	return &Dense{shape: []int{}, data: []float64{v}}
}

// T2 creates a matrix.
func T2(m [][]float64) *Dense {
	t := Zeros(len(m), len(m[0]))
	for i, row := range m {
		copy(t.data[i*len(m[0]):], row)
	}
	return t
}

// T4 creates a rank four tensor.
func T4(m [][][][]float64) *Dense {
	t := Zeros(len(m), len(m[0]), len(m[0][0]), len(m[0][0][0]))
	for i, mi := range m {
		for j, mij := range mi {
			for k, mijk := range mij {
				for l, v := range mijk {
					t.SetAt([]int{i, j, k, l}, v)
				}
			}
		}
	}
	return t
}

// ToSlice2 returns the matrix t as nested slices.
func (t *Dense) ToSlice2() [][]float64 {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("%#v", t.shape))
	}
	m := make([][]float64, t.shape[0])
	for i := range m {
		m[i] = slices.Clone(t.data[i*t.shape[1] : (i+1)*t.shape[1]])
	}
	return m
}

// Reset sets the shape of t and zeros its content, reusing the underlying storage when possible.
func (t *Dense) Reset(shape ...int) *Dense {
	n := size(shape)
	for _, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("%#v", shape))
		}
	}
	t.shape = append(t.shape[:0], shape...)
	if cap(t.data) < n {
		t.data = make([]float64, n)
	}
	t.data = t.data[:n]
	clear(t.data)
	return t
}

// Shape returns the shape of t.
func (t *Dense) Shape() []int {
	return slices.Clone(t.shape)
}

// Rank returns the number of axes.
func (t *Dense) Rank() int { return len(t.shape) }

// Size returns the number of elements.
func (t *Dense) Size() int { return len(t.data) }

// Data returns the row-major elements of t.
// The returned slice shares storage with t.
func (t *Dense) Data() []float64 { return t.data }

// At returns the element at the given index.
func (t *Dense) At(index ...int) float64 {
	return t.data[t.offset(index)]
}

// SetAt sets the element at the given index.
func (t *Dense) SetAt(index []int, v float64) {
	t.data[t.offset(index)] = v
}

// All iterates over the indices and values of t in row-major order.
// The yielded index is reused between iterations.
func (t *Dense) All() iter.Seq2[[]int, float64] {
	return func(yield func([]int, float64) bool) {
		index := make([]int, len(t.shape))
		for _, v := range t.data {
			if !yield(index, v) {
				return
			}
			for ax := len(index) - 1; ax >= 0; ax-- {
				index[ax]++
				if index[ax] < t.shape[ax] {
					break
				}
				index[ax] = 0
			}
		}
	}
}

// Reshape returns a tensor of the given shape sharing storage with t.
// At most one dimension may be -1, in which case it is inferred.
func (t *Dense) Reshape(shape ...int) *Dense {
	shape = slices.Clone(shape)
	infer, known := -1, 1
	for i, d := range shape {
		switch {
		case d == -1 && infer == -1:
			infer = i
		case d < 0:
			panic(fmt.Sprintf("%#v", shape))
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if known == 0 || len(t.data)%known != 0 {
			panic(fmt.Sprintf("%#v %#v", t.shape, shape))
		}
		shape[infer] = len(t.data) / known
	}
	if size(shape) != len(t.data) {
		panic(fmt.Sprintf("%#v %#v", t.shape, shape))
	}
	return &Dense{shape: shape, data: t.data}
}

// Transpose returns a copy of t whose axis i is axis axes[i] of t.
func (t *Dense) Transpose(axes ...int) *Dense {
	if len(axes) != len(t.shape) {
		panic(fmt.Sprintf("%#v %#v", t.shape, axes))
	}
	seen := make([]bool, len(axes))
	shape := make([]int, len(axes))
	for i, ax := range axes {
		if ax < 0 || ax >= len(axes) || seen[ax] {
			panic(fmt.Sprintf("%#v", axes))
		}
		seen[ax] = true
		shape[i] = t.shape[ax]
	}

	// strides[i] is the stride in t of the output axis i.
	src := t.strides()
	strides := make([]int, len(axes))
	for i, ax := range axes {
		strides[i] = src[ax]
	}

	out := Zeros(shape...)
	index := make([]int, len(shape))
	var off int
	for k := range out.data {
		out.data[k] = t.data[off]
		for ax := len(index) - 1; ax >= 0; ax-- {
			index[ax]++
			off += strides[ax]
			if index[ax] < shape[ax] {
				break
			}
			off -= strides[ax] * shape[ax]
			index[ax] = 0
		}
	}
	return out
}

// Slice returns a copy of the sub tensor bounded by the half open ranges in bounds.
func (t *Dense) Slice(bounds [][2]int) *Dense {
	if len(bounds) != len(t.shape) {
		panic(fmt.Sprintf("%#v %#v", t.shape, bounds))
	}
	shape := make([]int, len(bounds))
	for i, b := range bounds {
		if b[0] < 0 || b[1] > t.shape[i] || b[0] > b[1] {
			panic(fmt.Sprintf("%#v %#v", t.shape, bounds))
		}
		shape[i] = b[1] - b[0]
	}

	out := Zeros(shape...)
	src := make([]int, len(shape))
	for ijk := range out.All() {
		for i, v := range ijk {
			src[i] = v + bounds[i][0]
		}
		out.SetAt(ijk, t.At(src...))
	}
	return out
}

// Conj returns the complex conjugate of t.
// Dense is real, so this is t itself.
func (t *Dense) Conj() *Dense { return t }

// Copy returns a deep copy of t.
func (t *Dense) Copy() *Dense {
	return &Dense{shape: slices.Clone(t.shape), data: slices.Clone(t.data)}
}

// Norm returns the Frobenius norm of t.
func (t *Dense) Norm() float64 {
	return floats.Norm(t.data, 2)
}

// Scale multiplies t by c in place.
func (t *Dense) Scale(c float64) *Dense {
	floats.Scale(c, t.data)
	return t
}

// ScaleRows multiplies t in place by diag(s) from the left, where the first axis of t has length len(s).
func (t *Dense) ScaleRows(s []float64) *Dense {
	if len(t.shape) == 0 || t.shape[0] != len(s) {
		panic(fmt.Sprintf("%#v %d", t.shape, len(s)))
	}
	stride := len(t.data) / len(s)
	for i, si := range s {
		floats.Scale(si, t.data[i*stride:(i+1)*stride])
	}
	return t
}

// ScaleColumns multiplies t in place by diag(s) from the right, where the last axis of t has length len(s).
func (t *Dense) ScaleColumns(s []float64) *Dense {
	if len(t.shape) == 0 || t.shape[len(t.shape)-1] != len(s) {
		panic(fmt.Sprintf("%#v %d", t.shape, len(s)))
	}
	for i := 0; i < len(t.data); i += len(s) {
		floats.Mul(t.data[i:i+len(s)], s)
	}
	return t
}

// EqualApprox reports whether a and b have the same shape and all elements within tol.
func (t *Dense) EqualApprox(b *Dense, tol float64) bool {
	if !slices.Equal(t.shape, b.shape) {
		return false
	}
	for i, v := range t.data {
		if math.Abs(v-b.data[i]) > tol {
			return false
		}
	}
	return true
}

func (t *Dense) String() string {
	return fmt.Sprintf("%v%v", t.shape, t.data)
}

func (t *Dense) offset(index []int) int {
	if len(index) != len(t.shape) {
		panic(fmt.Sprintf("%#v %#v", t.shape, index))
	}
	var off int
	for i, v := range index {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("%#v %#v", t.shape, index))
		}
		off = off*t.shape[i] + v
	}
	return off
}

func (t *Dense) strides() []int {
	strides := make([]int, len(t.shape))
	s := 1
	for i := len(t.shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= t.shape[i]
	}
	return strides
}

func size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
