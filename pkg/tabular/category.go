package tabular

import (
	"strings"

	"github.com/menta2k/catalog-prep/pkg/types"
)

// CategorySeparator splits the levels of a hierarchical category.
const CategorySeparator = "/"

// DeriveLabel returns the top-level category: the text before the first
// separator, trimmed of surrounding whitespace.
func DeriveLabel(category string) (string, error) {
	top, _, _ := strings.Cut(category, CategorySeparator)
	top = strings.TrimSpace(top)
	if top == "" {
		return "", types.Malformed("category %q: empty top-level segment", category)
	}
	return top, nil
}

// LabelMap assigns integer labels to top-level categories in first-seen
// order. It lives for one cleaning run.
type LabelMap struct {
	ids   map[string]int
	names []string
}

// NewLabelMap returns an empty map.
func NewLabelMap() *LabelMap {
	return &LabelMap{ids: make(map[string]int)}
}

// Add returns the label for a top-level category, assigning the next id
// on first sight.
func (m *LabelMap) Add(top string) int {
	if id, ok := m.ids[top]; ok {
		return id
	}
	id := len(m.names)
	m.ids[top] = id
	m.names = append(m.names, top)
	return id
}

// Lookup returns the label of a top-level category.
func (m *LabelMap) Lookup(top string) (int, bool) {
	id, ok := m.ids[top]
	return id, ok
}

// Len returns the number of distinct categories.
func (m *LabelMap) Len() int {
	return len(m.names)
}

// Categories returns the categories ordered by label.
func (m *LabelMap) Categories() []string {
	return append([]string(nil), m.names...)
}

// BuildCategoryLabelMap derives the top-level category of every entry and
// numbers the distinct values in order of first occurrence.
func BuildCategoryLabelMap(categories []string) (*LabelMap, error) {
	m := NewLabelMap()
	for i, c := range categories {
		top, err := DeriveLabel(c)
		if err != nil {
			return nil, withRow(i, err)
		}
		m.Add(top)
	}
	return m, nil
}

// MapLabels converts raw categories to labels through m.
func MapLabels(categories []string, m *LabelMap) ([]int, error) {
	out := make([]int, len(categories))
	for i, c := range categories {
		top, err := DeriveLabel(c)
		if err != nil {
			return nil, withRow(i, err)
		}
		id, ok := m.Lookup(top)
		if !ok {
			return nil, withRow(i, types.Malformed("category %q not in label map", top))
		}
		out[i] = id
	}
	return out, nil
}
