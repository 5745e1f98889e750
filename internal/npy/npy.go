// Package npy stores embedding collections in the NumPy .npy container.
//
// The format is what numpy.save produces for a C-ordered 2-D array, so blobs
// written here load with numpy.load and blobs written by numpy load here.
package npy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/sbinet/npyio"
)

var (
	// ErrEmpty is returned when encoding a collection with no rows or zero-length rows.
	ErrEmpty = errors.New("npy: empty embedding collection")
	// ErrRagged is returned when rows of a collection have different lengths.
	ErrRagged = errors.New("npy: embeddings have different dimensions")
)

var magic = []byte("\x93NUMPY")

const headerAlign = 64

// maxElements caps the values a single blob may declare before anything is allocated.
const maxElements = 1 << 26

// Encode writes the collection as a float32 array of shape (len(rows), dim).
func Encode(w io.Writer, rows [][]float32) error {
	dim, err := checkShape(rows)
	if err != nil {
		return err
	}

	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", len(rows), dim)
	// magic(6) + version(2) + header length(2) + header + '\n' is padded to a multiple of 64
	preamble := len(magic) + 4
	pad := headerAlign - (preamble+len(header)+1)%headerAlign
	if pad == headerAlign {
		pad = 0
	}
	header += string(bytes.Repeat([]byte{' '}, pad)) + "\n"

	buf := make([]byte, 0, preamble+len(header)+len(rows)*dim*4)
	buf = append(buf, magic...)
	buf = append(buf, 1, 0)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(header)))
	buf = append(buf, header...)
	for _, row := range rows {
		for _, v := range row {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("npy: write array: %w", err)
	}
	return nil
}

// Marshal returns the encoded collection.
func Marshal(rows [][]float32) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a 2-D float array. float64 arrays are narrowed to float32.
// When r reports its remaining length (bytes.Reader, bytes.Buffer), the
// payload must match the declared shape exactly.
func Decode(r io.Reader) ([][]float32, error) {
	nr, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	descr := nr.Header.Descr
	if len(descr.Shape) != 2 {
		return nil, fmt.Errorf("npy: expected 2-D array, got shape %v", descr.Shape)
	}
	if descr.Fortran {
		return nil, fmt.Errorf("npy: fortran-ordered arrays are not supported")
	}
	n, dim := descr.Shape[0], descr.Shape[1]
	if n < 0 || dim < 0 {
		return nil, fmt.Errorf("npy: negative dimension in shape %v", descr.Shape)
	}
	if n > maxElements || (dim != 0 && n > maxElements/dim) {
		return nil, fmt.Errorf("npy: shape %v exceeds %d values", descr.Shape, maxElements)
	}

	itemSize, ok := itemSizes[descr.Type]
	if !ok {
		return nil, fmt.Errorf("npy: unsupported dtype %q", descr.Type)
	}
	if lr, ok := r.(interface{ Len() int }); ok {
		if want := n * dim * itemSize; lr.Len() != want {
			return nil, fmt.Errorf("npy: shape %v needs %d data bytes, blob has %d", descr.Shape, want, lr.Len())
		}
	}

	var flat []float32
	switch descr.Type {
	case "<f4":
		flat = make([]float32, n*dim)
		if err := nr.Read(&flat); err != nil {
			return nil, fmt.Errorf("npy: read data: %w", err)
		}
	case "<f8":
		wide := make([]float64, n*dim)
		if err := nr.Read(&wide); err != nil {
			return nil, fmt.Errorf("npy: read data: %w", err)
		}
		flat = make([]float32, len(wide))
		for i, v := range wide {
			flat[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("npy: unsupported dtype %q", descr.Type)
	}

	rows := make([][]float32, n)
	for i := range rows {
		rows[i] = flat[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return rows, nil
}

var itemSizes = map[string]int{"<f4": 4, "<f8": 8}

// readHeader wraps npyio.NewReader, which slices the header dictionary
// without bounds checks and panics on some malformed headers.
func readHeader(r io.Reader) (nr *npyio.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			nr, err = nil, fmt.Errorf("npy: read header: malformed header: %v", p)
		}
	}()
	nr, err = npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("npy: read header: %w", err)
	}
	return nr, nil
}

// Unmarshal decodes a blob produced by Marshal or numpy.save.
func Unmarshal(data []byte) ([][]float32, error) {
	return Decode(bytes.NewReader(data))
}

func checkShape(rows [][]float32) (int, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, ErrEmpty
	}
	dim := len(rows[0])
	for i, row := range rows {
		if len(row) != dim {
			return 0, fmt.Errorf("%w: row %d has %d values, expected %d", ErrRagged, i, len(row), dim)
		}
	}
	return dim, nil
}
