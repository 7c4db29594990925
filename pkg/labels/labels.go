// Package labels joins image identifiers to category labels through the
// image-to-product index and the cleaned product table.
package labels

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/menta2k/catalog-prep/pkg/tabular"
	"github.com/menta2k/catalog-prep/pkg/types"
)

var (
	// ErrImageNotIndexed means the image id has no product id.
	ErrImageNotIndexed = fmt.Errorf("%w: image id not in product index", types.ErrUnresolvedLabel)

	// ErrProductNotLabeled means the product id has no label.
	ErrProductNotLabeled = fmt.Errorf("%w: product id has no label", types.ErrUnresolvedLabel)
)

// ProductIndex maps image ids to product ids.
type ProductIndex map[string]string

// ProductLabels maps product ids to integer labels.
type ProductLabels map[string]int

// Resolution is the outcome of a label lookup. Label is meaningful only
// when Err is nil.
type Resolution struct {
	Label int
	Err   error
}

// Resolved returns a successful resolution.
func Resolved(label int) Resolution {
	return Resolution{Label: label}
}

// Unresolved returns a failed resolution carrying the reason.
func Unresolved(reason error) Resolution {
	if reason == nil {
		reason = types.ErrUnresolvedLabel
	}
	return Resolution{Err: reason}
}

// OK reports whether the label was found.
func (r Resolution) OK() bool {
	return r.Err == nil
}

// Joiner resolves image ids to labels.
type Joiner struct {
	index  ProductIndex
	labels ProductLabels
}

// NewJoiner creates a Joiner over the given lookups.
func NewJoiner(index ProductIndex, labels ProductLabels) *Joiner {
	return &Joiner{index: index, labels: labels}
}

// Resolve looks up the product id for imageID and then its label.
func (j *Joiner) Resolve(imageID string) Resolution {
	return ResolveLabel(imageID, j.index, j.labels)
}

// ResolveLabel performs the two-step lookup imageID -> product id -> label.
func ResolveLabel(imageID string, index ProductIndex, labels ProductLabels) Resolution {
	productID, ok := index[imageID]
	if !ok {
		return Unresolved(fmt.Errorf("%w: %s", ErrImageNotIndexed, imageID))
	}
	label, ok := labels[productID]
	if !ok {
		return Unresolved(fmt.Errorf("%w: %s (image %s)", ErrProductNotLabeled, productID, imageID))
	}
	return Resolved(label)
}

// FilterResolved keeps the ids whose resolution succeeded, in input order,
// and returns them with their labels and the number of dropped entries.
func FilterResolved(ids []string, resolutions []Resolution) ([]string, []int, int, error) {
	if len(ids) != len(resolutions) {
		return nil, nil, 0, fmt.Errorf("ids and resolutions differ in length: %d vs %d", len(ids), len(resolutions))
	}
	outIDs := make([]string, 0, len(ids))
	outLabels := make([]int, 0, len(ids))
	for i, r := range resolutions {
		if !r.OK() {
			continue
		}
		outIDs = append(outIDs, ids[i])
		outLabels = append(outLabels, r.Label)
	}
	return outIDs, outLabels, len(ids) - len(outIDs), nil
}

// IndexFromFrame builds a ProductIndex from a frame with id and product_id
// columns. A repeated image id is malformed input.
func IndexFromFrame(frame *tabular.Frame) (ProductIndex, error) {
	idCol, err := frame.Index(tabular.ColumnID)
	if err != nil {
		return nil, err
	}
	productCol, err := frame.Index(tabular.ColumnProductID)
	if err != nil {
		return nil, err
	}

	index := make(ProductIndex, len(frame.Rows))
	for i, row := range frame.Rows {
		imageID, productID := row[idCol], row[productCol]
		if _, dup := index[imageID]; dup {
			return nil, types.Malformed("row %d: duplicate image id %q", i+1, imageID)
		}
		index[imageID] = productID
	}
	return index, nil
}

// LoadIndex reads the image-to-product CSV.
func LoadIndex(path string) (ProductIndex, error) {
	frame, err := tabular.ReadFrameCSV(path)
	if err != nil {
		return nil, err
	}
	return IndexFromFrame(frame)
}

// LabelsFromFrame builds ProductLabels from a cleaned product frame.
func LabelsFromFrame(frame *tabular.Frame) (ProductLabels, error) {
	idCol, err := frame.Index(tabular.ColumnID)
	if err != nil {
		return nil, err
	}
	labelCol, err := frame.Index(tabular.ColumnLabel)
	if err != nil {
		return nil, err
	}

	out := make(ProductLabels, len(frame.Rows))
	for i, row := range frame.Rows {
		label, err := strconv.Atoi(row[labelCol])
		if err != nil {
			return nil, types.Malformed("row %d: label %q: %v", i+1, row[labelCol], errors.Unwrap(err))
		}
		out[row[idCol]] = label
	}
	return out, nil
}
