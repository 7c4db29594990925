package textfeat

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/catalog-prep/pkg/tabular"
	"github.com/menta2k/catalog-prep/pkg/types"
)

// Dataset holds the train and test matrices of several text columns
// concatenated column-wise. Columns names every feature as
// "<column>:<term>".
type Dataset struct {
	Train   *mat.Dense
	Test    *mat.Dense
	Columns []string
	Models  map[string]*Model
}

// TransformDataset fits one model per feature column on the training frame
// only and applies it to both frames. Row order of each frame is kept.
func TransformDataset(train, test *tabular.Frame, featureColumns []string, opts Options) (*Dataset, error) {
	if len(featureColumns) == 0 {
		return nil, types.Configuration("no feature columns")
	}
	if train.Len() == 0 || test.Len() == 0 {
		return nil, types.Configuration("train and test frames must be non-empty (train=%d, test=%d)", train.Len(), test.Len())
	}

	ds := &Dataset{Models: make(map[string]*Model, len(featureColumns))}
	var trainParts, testParts []*mat.Dense
	for _, col := range featureColumns {
		trainDocs, err := train.Column(col)
		if err != nil {
			return nil, fmt.Errorf("train: %w", err)
		}
		testDocs, err := test.Column(col)
		if err != nil {
			return nil, fmt.Errorf("test: %w", err)
		}

		model, trainMat, err := FitTransform(trainDocs, opts)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		ds.Models[col] = model
		trainParts = append(trainParts, trainMat)
		testParts = append(testParts, model.Transform(testDocs))
		for _, term := range model.vocabulary {
			ds.Columns = append(ds.Columns, col+":"+term)
		}
	}

	ds.Train = hstack(train.Len(), trainParts)
	ds.Test = hstack(test.Len(), testParts)
	return ds, nil
}

// hstack concatenates matrices with the same row count left to right.
func hstack(rows int, parts []*mat.Dense) *mat.Dense {
	cols := 0
	for _, p := range parts {
		_, c := p.Dims()
		cols += c
	}
	out := mat.NewDense(rows, cols, nil)
	offset := 0
	for _, p := range parts {
		_, c := p.Dims()
		out.Slice(0, rows, offset, offset+c).(*mat.Dense).Copy(p)
		offset += c
	}
	return out
}
