// Package pipeline turns a folder of product photos into persisted,
// fixed-size images plus a manifest tying each retained image to its
// label and storage path.
//
// Two modes exist and are never mixed:
//
//   - grayscale-crop: grayscale, center-crop, normalize, persist a
//     normalized array per image and label it through the product index.
//     Images whose label does not resolve are excluded before anything is
//     written for them.
//   - resize-pad: resize-and-pad to an RGB square and re-encode it as
//     <index>.<format>. No labels are involved.
//
// A corrupt or unreadable source image only fails that image; failing to
// write an output file or the manifest fails the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/catalog-prep/internal/metrics"
	"github.com/menta2k/catalog-prep/internal/utils"
	"github.com/menta2k/catalog-prep/pkg/imageio"
	"github.com/menta2k/catalog-prep/pkg/labels"
	"github.com/menta2k/catalog-prep/pkg/transform"
	"github.com/menta2k/catalog-prep/pkg/types"
)

// ErrDuplicateImageID marks source files whose names differ only by
// extension. None of them is processed since they would share one output.
var ErrDuplicateImageID = fmt.Errorf("%w: duplicate image id", types.ErrMalformedInput)

// Mode selects the cleaning variant.
type Mode string

const (
	ModeGrayscaleCrop Mode = "grayscale-crop"
	ModeResizePad     Mode = "resize-pad"
)

// ParseMode converts a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeGrayscaleCrop:
		return ModeGrayscaleCrop, nil
	case ModeResizePad:
		return ModeResizePad, nil
	default:
		return "", types.Configuration("unknown image mode %q", s)
	}
}

// Config holds the parameters of one run.
type Config struct {
	Mode         Mode
	SourceDir    string
	TargetDir    string
	ManifestPath string
	TargetSize   int
	DataRange    float64
	// OutputFormat and Quality apply to resize-pad output.
	OutputFormat string
	Quality      int
	Workers      int
}

// Validate checks the configuration without touching the filesystem.
func (c Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.SourceDir == "" || c.TargetDir == "" || c.ManifestPath == "" {
		return types.Configuration("source dir, target dir and manifest path are required")
	}
	if c.TargetSize <= 0 {
		return types.Configuration("target size must be positive, got %d", c.TargetSize)
	}
	if c.DataRange <= 0 {
		return types.Configuration("data range must be positive, got %g", c.DataRange)
	}
	if c.Workers < 1 {
		return types.Configuration("workers must be at least 1, got %d", c.Workers)
	}
	if c.Mode == ModeResizePad {
		if !imageio.IsSupportedFormat(c.OutputFormat) {
			return types.Configuration("unsupported output format %q", c.OutputFormat)
		}
		if c.Quality < 1 || c.Quality > 100 {
			return types.Configuration("quality must be between 1 and 100, got %d", c.Quality)
		}
	}
	return nil
}

// Report summarizes a run.
type Report struct {
	Processed  int
	Manifest   *Manifest
	Exclusions []types.Exclusion
	Failures   []types.ImageFailure
}

// Retained returns the number of manifest entries.
func (r *Report) Retained() int {
	if r.Manifest == nil {
		return 0
	}
	return len(r.Manifest.Entries)
}

// Excluded returns the number of images dropped for an unresolved label.
func (r *Report) Excluded() int {
	return len(r.Exclusions)
}

// Pipeline runs the image cleaning over a directory.
type Pipeline struct {
	config  Config
	joiner  *labels.Joiner
	logger  zerolog.Logger
	metrics *metrics.Recorder
}

// New creates a pipeline. The joiner is required in grayscale-crop mode
// and ignored in resize-pad mode.
func New(config Config, joiner *labels.Joiner) *Pipeline {
	return &Pipeline{
		config:  config,
		joiner:  joiner,
		logger:  zerolog.Nop(),
		metrics: metrics.New(),
	}
}

// SetLogger replaces the default no-op logger.
func (p *Pipeline) SetLogger(logger zerolog.Logger) {
	p.logger = logger
}

// SetMetrics replaces the run counters.
func (p *Pipeline) SetMetrics(recorder *metrics.Recorder) {
	p.metrics = recorder
}

// Metrics returns the run counters.
func (p *Pipeline) Metrics() *metrics.Recorder {
	return p.metrics
}

type outcome struct {
	entry     *types.ManifestEntry
	exclusion *types.Exclusion
	failure   *types.ImageFailure
}

// Run enumerates the source directory in sorted order, processes every
// image and writes the manifest sorted by image id.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if err := p.config.Validate(); err != nil {
		return nil, err
	}
	if p.config.Mode == ModeGrayscaleCrop && p.joiner == nil {
		return nil, types.Configuration("grayscale-crop mode needs a label joiner")
	}

	files, err := utils.ListImageFiles(p.config.SourceDir)
	if err != nil {
		return nil, types.WrapIO("list", p.config.SourceDir, err)
	}
	if err := utils.EnsureDir(p.config.TargetDir); err != nil {
		return nil, types.WrapIO("mkdir", p.config.TargetDir, err)
	}

	p.logger.Info().
		Str("mode", string(p.config.Mode)).
		Str("source", p.config.SourceDir).
		Int("target_size", p.config.TargetSize).
		Int("images", len(files)).
		Msg("image cleaning started")

	report := &Report{Manifest: &Manifest{Labeled: p.config.Mode == ModeGrayscaleCrop}}
	dups := duplicateIDs(files)
	for _, path := range files {
		if id := utils.ImageID(path); dups[id] {
			p.record(report, failed(id, path, ErrDuplicateImageID))
		}
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		if dups[utils.ImageID(path)] {
			continue
		}
		i, path := i, path
		g.Go(func() error {
			out, err := p.processOne(i, path)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			p.record(report, out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	report.Manifest.Sort()
	sort.Slice(report.Exclusions, func(i, j int) bool { return report.Exclusions[i].ID < report.Exclusions[j].ID })
	sort.Slice(report.Failures, func(i, j int) bool {
		a, b := report.Failures[i], report.Failures[j]
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Path < b.Path
	})
	if err := WriteManifest(p.config.ManifestPath, report.Manifest); err != nil {
		return report, fmt.Errorf("write manifest: %w", err)
	}

	p.logger.Info().
		Int("processed", report.Processed).
		Int("retained", report.Retained()).
		Int("excluded", report.Excluded()).
		Int("failed", len(report.Failures)).
		Str("manifest", p.config.ManifestPath).
		Msg("image cleaning finished")
	return report, nil
}

func (p *Pipeline) record(report *Report, out outcome) {
	report.Processed++
	p.metrics.Processed()
	switch {
	case out.entry != nil:
		report.Manifest.Entries = append(report.Manifest.Entries, *out.entry)
		p.metrics.Retained()
	case out.exclusion != nil:
		report.Exclusions = append(report.Exclusions, *out.exclusion)
		p.metrics.Excluded(exclusionReason(out.exclusion.Reason))
		p.logger.Warn().Str("id", out.exclusion.ID).Err(out.exclusion.Reason).Msg("image excluded")
	case out.failure != nil:
		report.Failures = append(report.Failures, *out.failure)
		p.metrics.Failed()
		p.logger.Warn().Str("id", out.failure.ID).Str("path", out.failure.Path).Err(out.failure.Err).Msg("image failed")
	}
}

// processOne returns an error only for failures that must stop the run.
func (p *Pipeline) processOne(index int, path string) (outcome, error) {
	if p.config.Mode == ModeResizePad {
		return p.resizePad(index, path)
	}
	return p.grayscaleCrop(path)
}

func (p *Pipeline) grayscaleCrop(path string) (outcome, error) {
	id := utils.ImageID(path)
	res := p.joiner.Resolve(id)
	if !res.OK() {
		return outcome{exclusion: &types.Exclusion{ID: id, Reason: res.Err}}, nil
	}

	img, err := imageio.LoadImage(path)
	if err != nil {
		return failed(id, path, err), nil
	}
	size := p.config.TargetSize
	cropped, err := transform.CenterCrop(transform.ToGrayscale(img), size, size)
	if err != nil {
		return failed(id, path, err), nil
	}
	norm, err := transform.Normalize(cropped, p.config.DataRange)
	if err != nil {
		return failed(id, path, err), nil
	}

	out := utils.OutputPath(p.config.TargetDir, id, imageio.ArrayExt)
	if err := imageio.WriteArray(out, norm); err != nil {
		return outcome{}, err
	}
	p.logger.Debug().Str("id", id).Str("path", out).Int("label", res.Label).Msg("array written")
	return outcome{entry: &types.ManifestEntry{ID: id, Label: res.Label, Path: out}}, nil
}

func (p *Pipeline) resizePad(index int, path string) (outcome, error) {
	id := utils.ImageID(path)
	img, err := imageio.LoadImage(path)
	if err != nil {
		return failed(id, path, err), nil
	}
	square, err := transform.ResizeToSquare(img, p.config.TargetSize)
	if err != nil {
		return failed(id, path, err), nil
	}

	format := strings.ToLower(p.config.OutputFormat)
	out := utils.OutputPath(p.config.TargetDir, strconv.Itoa(index), format)
	if err := imageio.SaveImage(square, out, format, p.config.Quality, false); err != nil {
		return outcome{}, err
	}
	p.logger.Debug().Str("id", id).Str("path", out).Msg("image written")
	return outcome{entry: &types.ManifestEntry{ID: id, Path: out}}, nil
}

// duplicateIDs returns the image ids shared by more than one file.
func duplicateIDs(files []string) map[string]bool {
	seen := make(map[string]int, len(files))
	for _, path := range files {
		seen[utils.ImageID(path)]++
	}
	dups := make(map[string]bool)
	for id, n := range seen {
		if n > 1 {
			dups[id] = true
		}
	}
	return dups
}

func failed(id, path string, err error) outcome {
	return outcome{failure: &types.ImageFailure{ID: id, Path: path, Err: err}}
}

func exclusionReason(err error) string {
	switch {
	case errors.Is(err, labels.ErrImageNotIndexed):
		return "image_not_indexed"
	case errors.Is(err, labels.ErrProductNotLabeled):
		return "product_not_labeled"
	default:
		return "unresolved"
	}
}
