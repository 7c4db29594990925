package pipeline

import (
	"sort"
	"strconv"

	"github.com/menta2k/catalog-prep/pkg/tabular"
	"github.com/menta2k/catalog-prep/pkg/types"
)

// Manifest is the durable record of a run: one entry per retained image.
// Labeled is false for resize-pad runs, whose manifest has no label column.
type Manifest struct {
	Labeled bool
	Entries []types.ManifestEntry
}

// Sort orders entries by image id.
func (m *Manifest) Sort() {
	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].ID < m.Entries[j].ID })
}

// Paths returns the storage path of every entry.
func (m *Manifest) Paths() []string {
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Path
	}
	return out
}

// Labels returns the label of every entry.
func (m *Manifest) Labels() []int {
	out := make([]int, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Label
	}
	return out
}

// Frame renders the manifest as id,label,path (or id,path when unlabeled).
func (m *Manifest) Frame() *tabular.Frame {
	frame := &tabular.Frame{Header: []string{tabular.ColumnID, tabular.ColumnPath}}
	if m.Labeled {
		frame.Header = []string{tabular.ColumnID, tabular.ColumnLabel, tabular.ColumnPath}
	}
	for _, e := range m.Entries {
		if m.Labeled {
			frame.Rows = append(frame.Rows, []string{e.ID, strconv.Itoa(e.Label), e.Path})
		} else {
			frame.Rows = append(frame.Rows, []string{e.ID, e.Path})
		}
	}
	return frame
}

// WriteManifest writes m to path as CSV.
func WriteManifest(path string, m *Manifest) error {
	return tabular.WriteFrameCSV(path, m.Frame())
}

// ManifestColumns names the path and label columns of a manifest read back
// for training. Empty names fall back to path and label.
type ManifestColumns struct {
	Path  string
	Label string
}

func (c ManifestColumns) withDefaults() ManifestColumns {
	if c.Path == "" {
		c.Path = tabular.ColumnPath
	}
	if c.Label == "" {
		c.Label = tabular.ColumnLabel
	}
	return c
}

// ReadManifest parses a manifest CSV of either shape.
func ReadManifest(path string) (*Manifest, error) {
	return ReadManifestColumns(path, ManifestColumns{})
}

// ReadManifestColumns parses a manifest CSV whose path and label columns
// carry the given names.
func ReadManifestColumns(path string, cols ManifestColumns) (*Manifest, error) {
	frame, err := tabular.ReadFrameCSV(path)
	if err != nil {
		return nil, err
	}
	return ManifestFromFrameColumns(frame, cols)
}

// ManifestFromFrame converts a frame with id, path and optional label columns.
func ManifestFromFrame(frame *tabular.Frame) (*Manifest, error) {
	return ManifestFromFrameColumns(frame, ManifestColumns{})
}

// ManifestFromFrameColumns is ManifestFromFrame with renamed path and
// label columns. The label column stays optional.
func ManifestFromFrameColumns(frame *tabular.Frame, cols ManifestColumns) (*Manifest, error) {
	cols = cols.withDefaults()
	idCol, err := frame.Index(tabular.ColumnID)
	if err != nil {
		return nil, types.Malformed("manifest: %v", err)
	}
	pathCol, err := frame.Index(cols.Path)
	if err != nil {
		return nil, types.Malformed("manifest: %v", err)
	}
	labelCol, labelErr := frame.Index(cols.Label)

	m := &Manifest{Labeled: labelErr == nil, Entries: make([]types.ManifestEntry, 0, frame.Len())}
	for i, row := range frame.Rows {
		e := types.ManifestEntry{ID: row[idCol], Path: row[pathCol]}
		if m.Labeled {
			label, err := strconv.Atoi(row[labelCol])
			if err != nil {
				return nil, types.Malformed("manifest row %d: %s %q", i+1, cols.Label, row[labelCol])
			}
			e.Label = label
		}
		m.Entries = append(m.Entries, e)
	}
	return m, nil
}
