// Package textfeat converts free-text columns into TF-IDF feature matrices.
// A Model is fitted on the training column only and then applied, never
// refitted, to any other column.
package textfeat

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/catalog-prep/pkg/types"
)

// ErrEmptyVocabulary is returned when pruning leaves no terms.
var ErrEmptyVocabulary = errors.New("empty vocabulary after pruning")

// Options bound the vocabulary built by Fit.
type Options struct {
	// MaxFeatures keeps at most this many terms, highest document
	// frequency first. Zero means no limit.
	MaxFeatures int
	// MinDF and MaxDF are document-frequency fractions in [0,1].
	MinDF float64
	MaxDF float64
	// StopWords selects the stop-word list ("english" or "none").
	StopWords    string
	StripAccents bool
}

// DefaultOptions mirrors the vectorizer settings used for product text.
func DefaultOptions() Options {
	return Options{
		MaxFeatures: 10000,
		MinDF:       0.01,
		MaxDF:       0.9,
		StopWords:   StopWordsEnglish,
	}
}

// Validate checks the bounds.
func (o Options) Validate() error {
	if o.MaxFeatures < 0 {
		return types.Configuration("max features must not be negative, got %d", o.MaxFeatures)
	}
	if o.MinDF < 0 || o.MinDF > 1 || o.MaxDF < 0 || o.MaxDF > 1 {
		return types.Configuration("document-frequency bounds must be in [0,1], got [%g, %g]", o.MinDF, o.MaxDF)
	}
	if o.MinDF > o.MaxDF {
		return types.Configuration("min df %g exceeds max df %g", o.MinDF, o.MaxDF)
	}
	_, err := StopWords(o.StopWords)
	return err
}

// Model is a fitted vocabulary with smoothed inverse document frequencies.
type Model struct {
	vocabulary []string
	index      map[string]int
	idf        []float64
	analyzer   Analyzer
}

// Vocabulary returns the terms in column order.
func (m *Model) Vocabulary() []string {
	return append([]string(nil), m.vocabulary...)
}

// IDF returns the weight of each vocabulary term.
func (m *Model) IDF() []float64 {
	return append([]float64(nil), m.idf...)
}

// Len returns the number of feature columns.
func (m *Model) Len() int {
	return len(m.vocabulary)
}

// Fit builds a model from training documents. Terms are kept when their
// document count df satisfies MinDF*n <= df <= MaxDF*n; then the
// MaxFeatures most frequent (ties alphabetical) survive. The vocabulary is
// ordered alphabetically and idf = ln((1+n)/(1+df)) + 1.
func Fit(train []string, opts Options) (*Model, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(train) == 0 {
		return nil, fmt.Errorf("%w: no training documents", ErrEmptyVocabulary)
	}
	stop, _ := StopWords(opts.StopWords)
	analyzer := Analyzer{StripAccents: opts.StripAccents, StopWords: stop}

	df := make(map[string]int)
	for _, doc := range train {
		seen := make(map[string]struct{})
		for _, term := range analyzer.Terms(doc) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	n := float64(len(train))
	lo, hi := opts.MinDF*n, opts.MaxDF*n
	kept := make([]string, 0, len(df))
	for term, count := range df {
		c := float64(count)
		if c >= lo && c <= hi {
			kept = append(kept, term)
		}
	}
	if opts.MaxFeatures > 0 && len(kept) > opts.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if df[kept[i]] != df[kept[j]] {
				return df[kept[i]] > df[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:opts.MaxFeatures]
	}
	if len(kept) == 0 {
		return nil, ErrEmptyVocabulary
	}
	sort.Strings(kept)

	m := &Model{
		vocabulary: kept,
		index:      make(map[string]int, len(kept)),
		idf:        make([]float64, len(kept)),
		analyzer:   analyzer,
	}
	for i, term := range kept {
		m.index[term] = i
		m.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return m, nil
}

// Transform maps documents to a len(docs) x Len() matrix of L2-normalized
// TF-IDF weights. Terms outside the vocabulary are ignored, so a row with
// only unseen words is all zeros.
func (m *Model) Transform(docs []string) *mat.Dense {
	if len(docs) == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(len(docs), m.Len(), nil)
	for i, doc := range docs {
		row := out.RawRowView(i)
		for _, term := range m.analyzer.Terms(doc) {
			if j, ok := m.index[term]; ok {
				row[j]++
			}
		}
		var norm float64
		for j, tf := range row {
			if tf == 0 {
				continue
			}
			row[j] = tf * m.idf[j]
			norm += row[j] * row[j]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range row {
				row[j] /= norm
			}
		}
	}
	return out
}

// FitTransform fits on train and returns the model with the training matrix.
func FitTransform(train []string, opts Options) (*Model, *mat.Dense, error) {
	m, err := Fit(train, opts)
	if err != nil {
		return nil, nil, err
	}
	return m, m.Transform(train), nil
}
