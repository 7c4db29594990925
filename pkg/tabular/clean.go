// Package tabular cleans raw product tables: prices become numbers and the
// hierarchical category yields an integer label.
package tabular

import (
	"fmt"
	"regexp"
	"strconv"
)

var artifactColumn = regexp.MustCompile(`^Unnamed: \d+$`)

// CleanResult is the cleaned frame together with the label map built for it.
type CleanResult struct {
	Frame    *Frame
	LabelMap *LabelMap
}

// IsArtifactColumn reports whether a header is a leftover index column,
// either unnamed or written by a dataframe library as "Unnamed: N".
func IsArtifactColumn(name string) bool {
	return name == "" || artifactColumn.MatchString(name)
}

// CleanProducts drops index columns, parses the price column and appends
// a label column derived from the category. The row count never changes.
// The input frame is not modified.
func CleanProducts(frame *Frame) (*CleanResult, error) {
	out := frame.Select(allRows(frame.Len()))
	for i := len(out.Header) - 1; i >= 0; i-- {
		if IsArtifactColumn(out.Header[i]) {
			out.DropColumn(i)
		}
	}

	prices, err := out.Column(ColumnPrice)
	if err != nil {
		return nil, err
	}
	for i, raw := range prices {
		v, err := ParsePrice(raw)
		if err != nil {
			return nil, withRow(i, err)
		}
		prices[i] = FormatPrice(v)
	}
	if err := out.SetColumn(ColumnPrice, prices); err != nil {
		return nil, err
	}

	categories, err := out.Column(ColumnCategory)
	if err != nil {
		return nil, err
	}
	labelMap, err := BuildCategoryLabelMap(categories)
	if err != nil {
		return nil, err
	}
	ids, err := MapLabels(categories, labelMap)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(ids))
	for i, id := range ids {
		labels[i] = strconv.Itoa(id)
	}
	if err := out.AppendColumn(ColumnLabel, labels); err != nil {
		return nil, err
	}

	return &CleanResult{Frame: out, LabelMap: labelMap}, nil
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// withRow prefixes err with a 1-based data row number.
func withRow(i int, err error) error {
	return fmt.Errorf("row %d: %w", i+1, err)
}
