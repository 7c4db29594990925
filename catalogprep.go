// Package catalogprep prepares e-commerce product records and product
// photos for classical model training.
//
// Two paths are exposed:
//
//   - The tabular path cleans product records (currency prices, category
//     labels), splits them into train and test rows, and converts the free
//     text columns into TF-IDF features fitted on the training rows only.
//   - The image path normalizes a folder of photos into fixed-size arrays,
//     joins each to its product's category label, writes a manifest, and
//     later loads the manifest back as a flattened pixel matrix.
//
// Basic usage:
//
//	prep := catalogprep.New()
//
//	products, err := tabular.ReadFrameCSV("Data/Products.csv")
//	if err != nil {
//		log.Fatal(err)
//	}
//	cleaned, err := prep.CleanProducts(products)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ds, err := prep.TextDataset(cleaned.Frame, catalogprep.DefaultTextSettings())
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(ds.Train.Dims())
//
// The packages under pkg/ can also be used directly: transform for the
// per-image geometry, labels for the image to label join, pipeline for the
// directory run, tabular for product cleaning, split for partitioning,
// textfeat for TF-IDF and loader for the flattened image matrix.
package catalogprep

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/catalog-prep/internal/metrics"
	"github.com/menta2k/catalog-prep/pkg/labels"
	"github.com/menta2k/catalog-prep/pkg/loader"
	"github.com/menta2k/catalog-prep/pkg/pipeline"
	"github.com/menta2k/catalog-prep/pkg/split"
	"github.com/menta2k/catalog-prep/pkg/tabular"
	"github.com/menta2k/catalog-prep/pkg/textfeat"
	"github.com/menta2k/catalog-prep/pkg/types"
)

// Version of the catalog-prep library
const Version = "1.0.0"

// Preparer provides a high-level interface over both preparation paths
type Preparer struct {
	logger  zerolog.Logger
	metrics *metrics.Recorder
}

// New creates a Preparer that does not log
func New() *Preparer {
	return NewWithLogger(zerolog.Nop())
}

// NewWithLogger creates a Preparer logging to logger
func NewWithLogger(logger zerolog.Logger) *Preparer {
	return &Preparer{logger: logger, metrics: metrics.New()}
}

// TextSettings configures TextDataset
type TextSettings struct {
	FeatureColumns []string
	TargetColumn   string
	TestFraction   float64
	Seed           int64
	Options        textfeat.Options
}

// DefaultTextSettings returns the settings used for the price regression data
func DefaultTextSettings() TextSettings {
	return TextSettings{
		FeatureColumns: []string{tabular.ColumnName, tabular.ColumnDescription, tabular.ColumnLocation},
		TargetColumn:   tabular.ColumnPrice,
		TestFraction:   0.33,
		Options:        textfeat.DefaultOptions(),
	}
}

// ImageSettings configures ImageDataset
type ImageSettings struct {
	TestFraction float64
	Seed         int64
	// DataRange normalizes re-encoded images; persisted arrays ignore it.
	DataRange float64
	// PathColumn and LabelColumn name the manifest columns; empty means
	// path and label.
	PathColumn  string
	LabelColumn string
}

// DefaultImageSettings returns the settings used for the category classification data
func DefaultImageSettings() ImageSettings {
	return ImageSettings{
		TestFraction: 0.33,
		DataRange:    255,
		PathColumn:   tabular.ColumnPath,
		LabelColumn:  tabular.ColumnLabel,
	}
}

// TextDataset holds leak-free TF-IDF features with their regression targets
type TextDataset struct {
	*textfeat.Dataset
	TrainTarget []float64
	TestTarget  []float64
	Split       split.Split
}

// ImageDataset holds flattened pixel matrices with their class labels
type ImageDataset struct {
	Train       *mat.Dense
	Test        *mat.Dense
	TrainLabels []int
	TestLabels  []int
	Split       split.Split
}

// Metrics returns the counters updated by CleanImages
func (p *Preparer) Metrics() *metrics.Recorder {
	return p.metrics
}

// CleanProducts parses prices and appends category labels
func (p *Preparer) CleanProducts(products *tabular.Frame) (*tabular.CleanResult, error) {
	result, err := tabular.CleanProducts(products)
	if err != nil {
		return nil, fmt.Errorf("clean products: %w", err)
	}
	p.logger.Info().
		Int("rows", result.Frame.Len()).
		Int("categories", result.LabelMap.Len()).
		Msg("products cleaned")
	return result, nil
}

// Joiner builds the image label joiner from the image-to-product index
// and the cleaned product table
func (p *Preparer) Joiner(index *tabular.Frame, cleaned *tabular.Frame) (*labels.Joiner, error) {
	productIndex, err := labels.IndexFromFrame(index)
	if err != nil {
		return nil, fmt.Errorf("product index: %w", err)
	}
	return joinerFor(productIndex, cleaned)
}

// JoinerFromFile is Joiner with the index read from an image-to-product CSV
func (p *Preparer) JoinerFromFile(indexPath string, cleaned *tabular.Frame) (*labels.Joiner, error) {
	productIndex, err := labels.LoadIndex(indexPath)
	if err != nil {
		return nil, fmt.Errorf("product index %s: %w", indexPath, err)
	}
	p.logger.Debug().Str("path", indexPath).Int("images", len(productIndex)).Msg("image index loaded")
	return joinerFor(productIndex, cleaned)
}

func joinerFor(index labels.ProductIndex, cleaned *tabular.Frame) (*labels.Joiner, error) {
	productLabels, err := labels.LabelsFromFrame(cleaned)
	if err != nil {
		return nil, fmt.Errorf("product labels: %w", err)
	}
	return labels.NewJoiner(index, productLabels), nil
}

// CleanImages runs the image pipeline. joiner may be nil in resize-pad mode.
func (p *Preparer) CleanImages(ctx context.Context, config pipeline.Config, joiner *labels.Joiner) (*pipeline.Report, error) {
	pl := pipeline.New(config, joiner)
	pl.SetLogger(p.logger)
	pl.SetMetrics(p.metrics)
	return pl.Run(ctx)
}

// TextDataset splits cleaned products and fits one TF-IDF model per
// feature column on the training rows
func (p *Preparer) TextDataset(cleaned *tabular.Frame, settings TextSettings) (*TextDataset, error) {
	if len(settings.FeatureColumns) == 0 {
		return nil, types.Configuration("no feature columns")
	}
	if err := settings.Options.Validate(); err != nil {
		return nil, err
	}
	targetValues, err := cleaned.Column(settings.TargetColumn)
	if err != nil {
		return nil, types.Configuration("target column: %v", err)
	}
	target := make([]float64, len(targetValues))
	for i, v := range targetValues {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, types.Malformed("row %d: %s %q is not a number", i+1, settings.TargetColumn, v)
		}
		target[i] = f
	}

	s, err := split.SplitTrainTest(cleaned.Len(), settings.TestFraction, split.NewRand(settings.Seed))
	if err != nil {
		return nil, err
	}
	ds, err := textfeat.TransformDataset(cleaned.Select(s.Train), cleaned.Select(s.Test), settings.FeatureColumns, settings.Options)
	if err != nil {
		return nil, fmt.Errorf("text features: %w", err)
	}

	p.logger.Info().
		Int("train_rows", len(s.Train)).
		Int("test_rows", len(s.Test)).
		Int("features", len(ds.Columns)).
		Msg("text dataset built")
	return &TextDataset{
		Dataset:     ds,
		TrainTarget: split.Take(target, s.Train),
		TestTarget:  split.Take(target, s.Test),
		Split:       s,
	}, nil
}

// ImageDataset reads a labeled manifest, splits it and loads both sides
// as flattened pixel matrices
func (p *Preparer) ImageDataset(manifestPath string, settings ImageSettings) (*ImageDataset, error) {
	m, err := pipeline.ReadManifestColumns(manifestPath, pipeline.ManifestColumns{
		Path:  settings.PathColumn,
		Label: settings.LabelColumn,
	})
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if !m.Labeled {
		return nil, types.Configuration("manifest %s has no label column %q", manifestPath, settings.LabelColumn)
	}

	s, err := split.SplitTrainTest(len(m.Entries), settings.TestFraction, split.NewRand(settings.Seed))
	if err != nil {
		return nil, err
	}
	paths, lbls := m.Paths(), m.Labels()
	ld := loader.New(settings.DataRange)

	train, err := ld.LoadDataset(split.Take(paths, s.Train))
	if err != nil {
		return nil, fmt.Errorf("load train images: %w", err)
	}
	test, err := ld.LoadDataset(split.Take(paths, s.Test))
	if err != nil {
		return nil, fmt.Errorf("load test images: %w", err)
	}
	_, trainCols := train.Dims()
	_, testCols := test.Dims()
	if trainCols != testCols {
		return nil, fmt.Errorf("%w: train images have %d pixels, test images %d", types.ErrShapeMismatch, trainCols, testCols)
	}

	p.logger.Info().
		Int("train_rows", len(s.Train)).
		Int("test_rows", len(s.Test)).
		Int("pixels", trainCols).
		Msg("image dataset built")
	return &ImageDataset{
		Train:       train,
		Test:        test,
		TrainLabels: split.Take(lbls, s.Train),
		TestLabels:  split.Take(lbls, s.Test),
		Split:       s,
	}, nil
}
