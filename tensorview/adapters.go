package tensorview

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// FromShape builds a 2D view from a flat buffer and the logical shape an
// inference runtime reports for it. Rank 2 shapes map directly. Rank 3 shapes
// must carry a leading batch of exactly 1, which is dropped.
//
// Arguments:
//   - data: The flat output buffer.
//   - shape: The logical shape, e.g. [1, 84, 8400].
//
// Returns:
//   - A (shape[-2], shape[-1]) view.
//   - ErrBatchSize, ErrRank or ErrShapeMismatch on malformed input.
//
// @example
// v, err := FromShape(output, []int{1, 84, 8400}) // v.Shape() == [84 8400]
func FromShape(data []float32, shape []int) (ReadOnlyView2D, error) {
	switch len(shape) {
	case 2:
		return NewReadOnlyView2D(data, shape[0], shape[1])
	case 3:
		if shape[0] != 1 {
			return ReadOnlyView2D{}, errors.Wrapf(ErrBatchSize, "shape %v", shape)
		}
		return NewReadOnlyView2D(data, shape[1], shape[2])
	default:
		return ReadOnlyView2D{}, errors.Wrapf(ErrRank, "shape %v has rank %d, want 2 or 3", shape, len(shape))
	}
}

// OrtTensor is the part of an onnxruntime output tensor a view needs.
// *ort.Tensor[float32] satisfies it.
type OrtTensor interface {
	GetData() []float32
	GetShape() ort.Shape
}

// FromOrt views the data of an onnxruntime float32 tensor without copying.
func FromOrt(t OrtTensor) (ReadOnlyView2D, error) {
	if t == nil {
		return ReadOnlyView2D{}, errors.New("tensorview: nil onnxruntime tensor")
	}
	dims := t.GetShape()
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}
	v, err := FromShape(t.GetData(), shape)
	return v, errors.Wrap(err, "onnxruntime tensor")
}

// FromDense views the backing array of a gorgonia float32 tensor without copying.
// Views over other tensors (slices, transposes that were not materialized) are
// rejected because their backing array is not in logical row-major order.
func FromDense(d *tensor.Dense) (ReadOnlyView2D, error) {
	if d == nil {
		return ReadOnlyView2D{}, errors.New("tensorview: nil dense tensor")
	}
	if d.Dtype() != tensor.Float32 {
		return ReadOnlyView2D{}, errors.Errorf("tensorview: dense tensor has dtype %v, want float32", d.Dtype())
	}
	if d.IsView() {
		return ReadOnlyView2D{}, errors.New("tensorview: dense tensor is a view; materialize it first")
	}
	data, ok := d.Data().([]float32)
	if !ok {
		return ReadOnlyView2D{}, errors.Errorf("tensorview: dense tensor data is %T, want []float32", d.Data())
	}
	v, err := FromShape(data, []int(d.Shape()))
	return v, errors.Wrap(err, "dense tensor")
}
