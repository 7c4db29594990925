package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/menta2k/catalog-prep/pkg/types"
)

// Well-known column names.
const (
	ColumnID          = "id"
	ColumnProductID   = "product_id"
	ColumnCategory    = "category"
	ColumnPrice       = "price"
	ColumnLabel       = "label"
	ColumnPath        = "path"
	ColumnName        = "product_name"
	ColumnDescription = "product_description"
	ColumnLocation    = "location"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Frame is an in-memory table of string cells. Every row has len(Header)
// cells.
type Frame struct {
	Header []string
	Rows   [][]string
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Index returns the position of the named column.
func (f *Frame) Index(name string) (int, error) {
	for i, h := range f.Header {
		if h == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %q not found", name)
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]string, error) {
	idx, err := f.Index(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// DropColumn removes the column at idx in place.
func (f *Frame) DropColumn(idx int) {
	f.Header = append(f.Header[:idx:idx], f.Header[idx+1:]...)
	for i, row := range f.Rows {
		f.Rows[i] = append(row[:idx:idx], row[idx+1:]...)
	}
}

// SetColumn replaces the values of an existing column.
func (f *Frame) SetColumn(name string, values []string) error {
	idx, err := f.Index(name)
	if err != nil {
		return err
	}
	if len(values) != len(f.Rows) {
		return fmt.Errorf("column %q: %d values for %d rows", name, len(values), len(f.Rows))
	}
	for i := range f.Rows {
		f.Rows[i][idx] = values[i]
	}
	return nil
}

// AppendColumn adds a column at the right edge, or overwrites it if the
// name already exists.
func (f *Frame) AppendColumn(name string, values []string) error {
	if _, err := f.Index(name); err == nil {
		return f.SetColumn(name, values)
	}
	if len(values) != len(f.Rows) {
		return fmt.Errorf("column %q: %d values for %d rows", name, len(values), len(f.Rows))
	}
	f.Header = append(f.Header, name)
	for i := range f.Rows {
		f.Rows[i] = append(f.Rows[i], values[i])
	}
	return nil
}

// Select returns a new frame holding the given rows in the given order.
func (f *Frame) Select(rows []int) *Frame {
	out := &Frame{Header: append([]string(nil), f.Header...), Rows: make([][]string, len(rows))}
	for i, r := range rows {
		out.Rows[i] = append([]string(nil), f.Rows[r]...)
	}
	return out
}

// ReadFrame parses CSV with a header row. Short rows are padded with
// empty cells; long rows are malformed.
func ReadFrame(r io.Reader) (*Frame, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimPrefix(b, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, types.Malformed("empty csv: missing header")
		}
		return nil, err
	}

	frame := &Frame{Header: header}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) > len(header) {
			return nil, types.Malformed("line %d: %d fields for %d columns", line, len(rec), len(header))
		}
		row := make([]string, len(header))
		copy(row, rec)
		frame.Rows = append(frame.Rows, row)
	}
	return frame, nil
}

// ReadFrameCSV reads a CSV file with a header row.
func ReadFrameCSV(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.WrapIO("open", path, err)
	}
	defer f.Close()

	frame, err := ReadFrame(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return frame, nil
}

// WriteFrame writes the frame as CSV with a header row.
func WriteFrame(w io.Writer, frame *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(frame.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(frame.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteFrameCSV writes the frame to path, creating parent directories.
func WriteFrameCSV(path string, frame *Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return types.WrapIO("mkdir", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return types.WrapIO("create", path, err)
	}
	if err := WriteFrame(f, frame); err != nil {
		f.Close()
		return types.WrapIO("write", path, err)
	}
	return types.WrapIO("close", path, f.Close())
}
