// Package tensor provides a minimal dense float64 tensor with explicit shape
// metadata. It covers exactly the operations the attention tutorial needs:
// batched matrix multiplication, transposition of the last two axes, scaling,
// and a numerically stable softmax over the last axis.
//
// Operations panic on shape mismatches. Student code runs under the grading
// executor, which converts panics into per-call failures, so a shape error
// inside a student function surfaces the same way a raised exception would in
// a live notebook session.
package tensor

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
)

// Tensor is a dense row-major float64 array tagged with its shape.
type Tensor struct {
	Shape []int
	Data  []float64
}

// New creates a tensor of the given shape backed by data. The data length
// must match the shape volume.
func New(data []float64, shape ...int) *Tensor {
	n := volume(shape)
	if len(data) != n {
		panic(fmt.Sprintf("tensor: data length %d does not match shape %v (want %d)", len(data), shape, n))
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: data}
}

// Zeros creates a zero-filled tensor of the given shape.
func Zeros(shape ...int) *Tensor {
	return &Tensor{Shape: append([]int(nil), shape...), Data: make([]float64, volume(shape))}
}

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(42))
)

// Seed reseeds the package random source. Grading runs reseed before each
// replay so synthesized fallback tensors are reproducible.
func Seed(seed int64) {
	rngMu.Lock()
	defer rngMu.Unlock()
	rng = rand.New(rand.NewSource(seed))
}

// Randn creates a tensor of the given shape filled with standard normal
// samples from the package random source.
func Randn(shape ...int) *Tensor {
	t := Zeros(shape...)
	rngMu.Lock()
	defer rngMu.Unlock()
	for i := range t.Data {
		t.Data[i] = rng.NormFloat64()
	}
	return t
}

// Dims returns the number of axes.
func (t *Tensor) Dims() int { return len(t.Shape) }

// Volume returns the total number of elements.
func (t *Tensor) Volume() int { return volume(t.Shape) }

// ShapeEquals reports whether the tensor has exactly the given shape.
func (t *Tensor) ShapeEquals(shape ...int) bool {
	if len(t.Shape) != len(shape) {
		return false
	}
	for i, d := range shape {
		if t.Shape[i] != d {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.Data))
	copy(data, t.Data)
	return New(data, t.Shape...)
}

// Unsqueeze0 returns a view-copy with a leading batch axis of size 1.
func (t *Tensor) Unsqueeze0() *Tensor {
	shape := append([]int{1}, t.Shape...)
	return New(append([]float64(nil), t.Data...), shape...)
}

// Squeeze0 drops a leading axis of size 1.
func (t *Tensor) Squeeze0() *Tensor {
	if len(t.Shape) == 0 || t.Shape[0] != 1 {
		panic(fmt.Sprintf("tensor: cannot squeeze leading axis of shape %v", t.Shape))
	}
	return New(append([]float64(nil), t.Data...), t.Shape[1:]...)
}

// MatMul multiplies two tensors over their last two axes:
// [b,n,k] x [b,k,m] -> [b,n,m]. A 2D right operand is broadcast across the
// batch (linear projection), and 2D x 2D is treated as batch size 1 with the
// result squeezed back.
func MatMul(a, b *Tensor) *Tensor {
	squeeze := false
	if a.Dims() == 2 && b.Dims() == 2 {
		a, b = a.Unsqueeze0(), b.Unsqueeze0()
		squeeze = true
	}
	if a.Dims() == 3 && b.Dims() == 2 {
		bs, n, m := a.Shape[0], b.Shape[0], b.Shape[1]
		wide := Zeros(bs, n, m)
		for bi := 0; bi < bs; bi++ {
			copy(wide.Data[bi*n*m:(bi+1)*n*m], b.Data)
		}
		b = wide
	}
	if a.Dims() != 3 || b.Dims() != 3 {
		panic(fmt.Sprintf("tensor: matmul requires 2D or 3D operands, got %v x %v", a.Shape, b.Shape))
	}
	bs, n, k := a.Shape[0], a.Shape[1], a.Shape[2]
	if b.Shape[0] != bs || b.Shape[1] != k {
		panic(fmt.Sprintf("tensor: matmul shape mismatch %v x %v", a.Shape, b.Shape))
	}
	m := b.Shape[2]
	out := Zeros(bs, n, m)
	for bi := 0; bi < bs; bi++ {
		ao := bi * n * k
		bo := bi * k * m
		oo := bi * n * m
		for i := 0; i < n; i++ {
			for j := 0; j < m; j++ {
				var sum float64
				for p := 0; p < k; p++ {
					sum += a.Data[ao+i*k+p] * b.Data[bo+p*m+j]
				}
				out.Data[oo+i*m+j] = sum
			}
		}
	}
	if squeeze {
		return out.Squeeze0()
	}
	return out
}

// TransposeLast2 swaps the last two axes of a 2D or 3D tensor.
func (t *Tensor) TransposeLast2() *Tensor {
	switch t.Dims() {
	case 2:
		n, m := t.Shape[0], t.Shape[1]
		out := Zeros(m, n)
		for i := 0; i < n; i++ {
			for j := 0; j < m; j++ {
				out.Data[j*n+i] = t.Data[i*m+j]
			}
		}
		return out
	case 3:
		b, n, m := t.Shape[0], t.Shape[1], t.Shape[2]
		out := Zeros(b, m, n)
		for bi := 0; bi < b; bi++ {
			for i := 0; i < n; i++ {
				for j := 0; j < m; j++ {
					out.Data[bi*m*n+j*n+i] = t.Data[bi*n*m+i*m+j]
				}
			}
		}
		return out
	default:
		panic(fmt.Sprintf("tensor: transpose requires 2D or 3D tensor, got %v", t.Shape))
	}
}

// Scale returns t multiplied element-wise by s.
func (t *Tensor) Scale(s float64) *Tensor {
	out := t.Clone()
	for i := range out.Data {
		out.Data[i] *= s
	}
	return out
}

// Softmax applies a numerically stable softmax over the last axis.
func Softmax(t *Tensor) *Tensor {
	if t.Dims() == 0 {
		panic("tensor: softmax of scalar")
	}
	last := t.Shape[len(t.Shape)-1]
	out := t.Clone()
	for row := 0; row < t.Volume()/last; row++ {
		off := row * last
		max := out.Data[off]
		for i := 1; i < last; i++ {
			if out.Data[off+i] > max {
				max = out.Data[off+i]
			}
		}
		var sum float64
		for i := 0; i < last; i++ {
			out.Data[off+i] = math.Exp(out.Data[off+i] - max)
			sum += out.Data[off+i]
		}
		for i := 0; i < last; i++ {
			out.Data[off+i] /= sum
		}
	}
	return out
}

// SumLast sums over the last axis: [.., n] -> [..].
func (t *Tensor) SumLast() *Tensor {
	if t.Dims() == 0 {
		panic("tensor: sum of scalar")
	}
	last := t.Shape[len(t.Shape)-1]
	out := Zeros(t.Shape[:len(t.Shape)-1]...)
	for row := 0; row < t.Volume()/last; row++ {
		var sum float64
		for i := 0; i < last; i++ {
			sum += t.Data[row*last+i]
		}
		out.Data[row] = sum
	}
	return out
}

// Min returns the smallest element.
func (t *Tensor) Min() float64 {
	min := t.Data[0]
	for _, v := range t.Data[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// AllClose reports whether a and b have identical shapes and element-wise
// absolute differences within atol.
func AllClose(a, b *Tensor, atol float64) bool {
	if !a.ShapeEquals(b.Shape...) {
		return false
	}
	for i := range a.Data {
		if math.Abs(a.Data[i]-b.Data[i]) > atol {
			return false
		}
	}
	return true
}

// String renders the shape and a short data preview.
func (t *Tensor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tensor%v[", t.Shape)
	for i, v := range t.Data {
		if i == 8 {
			b.WriteString("...")
			break
		}
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%.4f", v)
	}
	b.WriteString("]")
	return b.String()
}

func volume(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
