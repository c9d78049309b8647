package tensorview

import "github.com/pkg/errors"

var (
	// ErrShapeMismatch is returned when a buffer length does not match the
	// product of a shape, or when two views have incompatible shapes.
	ErrShapeMismatch = errors.New("tensorview: shape mismatch")
	// ErrRank is returned for shapes that are neither rank 2 nor rank 3.
	ErrRank = errors.New("tensorview: unsupported rank")
	// ErrBatchSize is returned when a batched shape has a batch other than 1.
	ErrBatchSize = errors.New("tensorview: batch size must be 1")
	// ErrIndex is the panic value for out of range indices in checked builds.
	ErrIndex = errors.New("tensorview: index out of range")
	// ErrAliased is returned when a transpose is asked to write over its input.
	ErrAliased = errors.New("tensorview: input and output share memory")
)
