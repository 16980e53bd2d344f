package tensor

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Product contracts a and b over the axis pairs in axes, where each pair is {aAxis, bAxis}.
// The axes of the result are the free axes of a followed by the free axes of b, each in their original order.
// The result is written into dst, which is allocated if nil.
// dst must not share storage with a or b.
func Product(dst, a, b *Dense, axes [][2]int) *Dense {
	aContracted := make([]bool, len(a.shape))
	bContracted := make([]bool, len(b.shape))
	aAxes := make([]int, 0, len(a.shape))
	bAxes := make([]int, 0, len(b.shape))
	k := 1
	for _, ab := range axes {
		ai, bi := ab[0], ab[1]
		if ai < 0 || ai >= len(a.shape) || bi < 0 || bi >= len(b.shape) || aContracted[ai] || bContracted[bi] {
			panic(fmt.Sprintf("%#v %#v %#v", a.shape, b.shape, axes))
		}
		if a.shape[ai] != b.shape[bi] {
			panic(fmt.Sprintf("%#v %#v %#v", a.shape, b.shape, axes))
		}
		aContracted[ai], bContracted[bi] = true, true
		k *= a.shape[ai]
	}

	// Move the contracted axes of a to the back, and those of b to the front.
	shape := make([]int, 0, len(a.shape)+len(b.shape)-2*len(axes))
	m, n := 1, 1
	for i, d := range a.shape {
		if !aContracted[i] {
			aAxes = append(aAxes, i)
			shape = append(shape, d)
			m *= d
		}
	}
	for _, ab := range axes {
		aAxes = append(aAxes, ab[0])
		bAxes = append(bAxes, ab[1])
	}
	for i, d := range b.shape {
		if !bContracted[i] {
			bAxes = append(bAxes, i)
			shape = append(shape, d)
			n *= d
		}
	}

	if dst == nil {
		dst = &Dense{}
	}
	dst.Reset(shape...)
	if m == 0 || n == 0 {
		return dst
	}
	if k == 0 {
		return dst
	}

	am := mat.NewDense(m, k, permuted(a, aAxes).data)
	bm := mat.NewDense(k, n, permuted(b, bAxes).data)
	cm := mat.NewDense(m, n, dst.data)
	cm.Mul(am, bm)
	return dst
}

// Ncon contracts a network of tensors.
// labels[i] labels the axes of ts[i].
// Axes sharing a positive label are summed over, while negative labels mark free axes,
// with the free axis labelled -j becoming axis j-1 of the result.
// Tensors are contracted from left to right.
func Ncon(ts []*Dense, labels [][]int) *Dense {
	if len(ts) == 0 || len(ts) != len(labels) {
		panic(fmt.Sprintf("%d %d", len(ts), len(labels)))
	}
	for i, t := range ts {
		if len(labels[i]) != len(t.shape) {
			panic(fmt.Sprintf("%d %#v %#v", i, t.shape, labels[i]))
		}
	}

	acc, accLabels := ts[0], slices.Clone(labels[0])
	for i := 1; i < len(ts); i++ {
		axes := make([][2]int, 0)
		for ai, l := range accLabels {
			if l <= 0 {
				continue
			}
			if bi := slices.Index(labels[i], l); bi >= 0 {
				axes = append(axes, [2]int{ai, bi})
			}
		}
		acc = Product(nil, acc, ts[i], axes)

		next := make([]int, 0, len(accLabels)+len(labels[i]))
		for _, l := range accLabels {
			if l <= 0 || !slices.Contains(labels[i], l) {
				next = append(next, l)
			}
		}
		for _, l := range labels[i] {
			if l <= 0 || !slices.Contains(accLabels, l) {
				next = append(next, l)
			}
		}
		accLabels = next
	}

	perm := make([]int, len(accLabels))
	for i := range perm {
		perm[i] = -1
	}
	for ai, l := range accLabels {
		if l >= 0 || -l > len(perm) || perm[-l-1] != -1 {
			panic(fmt.Sprintf("%#v", labels))
		}
		perm[-l-1] = ai
	}
	return acc.Transpose(perm...)
}

// Dot returns the sum of the elementwise product of a and b.
func Dot(a, b *Dense) float64 {
	if !slices.Equal(a.shape, b.shape) {
		panic(fmt.Sprintf("%#v %#v", a.shape, b.shape))
	}
	var s float64
	for i, v := range a.data {
		s += v * b.data[i]
	}
	return s
}

func permuted(t *Dense, axes []int) *Dense {
	identity := true
	for i, ax := range axes {
		if i != ax {
			identity = false
			break
		}
	}
	if identity {
		return t
	}
	return t.Transpose(axes...)
}
