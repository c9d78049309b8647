// Package util - loaders for recorded model output tensors.
package util

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// TensorExt is the file extension of raw tensor dumps.
const TensorExt = ".bin"

// TensorFile represents one recorded model output.
type TensorFile struct {
	// Path is the path to the tensor dump.
	Path string
	// Data is the tensor contents in row-major order.
	Data []float32
	// Frame is the frame number parsed from a "frame-<n>.bin" name.
	Frame int
}

// ReadTensor decodes little-endian float32 values until EOF.
//
// Arguments:
//   - r: The raw dump.
//
// Returns:
//   - The values.
//   - An error if reading fails or the length is not a multiple of 4 bytes.
func ReadTensor(r io.Reader) ([]float32, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read tensor")
	}
	if len(raw)%4 != 0 {
		return nil, errors.Errorf("tensor dump has %d bytes, not a multiple of 4", len(raw))
	}
	data := make([]float32, len(raw)/4)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, data); err != nil {
		return nil, errors.Wrap(err, "decode tensor")
	}
	return data, nil
}

// WriteTensor encodes values as little-endian float32.
func WriteTensor(w io.Writer, data []float32) error {
	return errors.Wrap(binary.Write(w, binary.LittleEndian, data), "write tensor")
}

// LoadTensorFile reads a raw little-endian float32 dump, such as the output
// of numpy's ndarray.astype('<f4').tofile().
func LoadTensorFile(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open tensor")
	}
	defer f.Close()

	data, err := ReadTensor(f)
	if err != nil {
		return nil, errors.Wrapf(err, "tensor %s", path)
	}
	return data, nil
}

// LoadDirectoryTensorFiles reads every "frame-<n>.bin" dump in a directory.
//
// Arguments:
//   - dir: Directory path containing tensor dumps.
//
// Returns:
//   - []TensorFile: The dumps, ordered by frame number.
//   - error: Error if loading fails.
func LoadDirectoryTensorFiles(dir string) ([]TensorFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read tensor directory")
	}

	var tensors []TensorFile
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != TensorExt {
			continue
		}

		name := strings.TrimSuffix(file.Name(), TensorExt)
		frame, err := strconv.Atoi(strings.TrimPrefix(name, "frame-"))
		if err != nil {
			return nil, errors.Wrapf(err, "frame number of %s", file.Name())
		}
		path := filepath.Join(dir, file.Name())
		data, err := LoadTensorFile(path)
		if err != nil {
			return nil, err
		}
		tensors = append(tensors, TensorFile{
			Path:  path,
			Data:  data,
			Frame: frame,
		})
	}

	sort.Slice(tensors, func(i, j int) bool {
		return tensors[i].Frame < tensors[j].Frame
	})

	return tensors, nil
}

// ParseShape parses a comma or x separated shape such as "1,84,8400" or
// "1x84x8400".
func ParseShape(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == 'x' || r == ' '
	})
	if len(fields) == 0 {
		return nil, errors.Errorf("empty shape %q", s)
	}
	shape := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n <= 0 {
			return nil, errors.Errorf("invalid dimension %q in shape %q", f, s)
		}
		shape[i] = n
	}
	return shape, nil
}
