package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/catalog-prep/internal/utils"
	"github.com/menta2k/catalog-prep/pkg/imageio"
	"github.com/menta2k/catalog-prep/pkg/pipeline"
	"github.com/menta2k/catalog-prep/pkg/textfeat"
	"github.com/menta2k/catalog-prep/pkg/types"
)

// Config holds the application configuration
type Config struct {
	Image        ImageConfig        `yaml:"image"`
	Tabular      TabularConfig      `yaml:"tabular"`
	Text         TextConfig         `yaml:"text"`
	ImageDataset ImageDatasetConfig `yaml:"image_dataset"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ImageConfig holds configuration for the image cleaning pipeline
type ImageConfig struct {
	SourceDir    string  `yaml:"source_dir"`
	TargetDir    string  `yaml:"target_dir"`
	IndexPath    string  `yaml:"index_path"`
	ManifestPath string  `yaml:"manifest_path"`
	TargetSize   int     `yaml:"target_size"`
	DataRange    float64 `yaml:"data_range"`
	Mode         string  `yaml:"mode"`
	OutputFormat string  `yaml:"output_format"`
	Quality      int     `yaml:"quality"`
	Workers      int     `yaml:"workers"`
}

// TabularConfig holds configuration for product cleaning. When SQLitePath
// is set products are read from SQLiteTable instead of ProductPath.
type TabularConfig struct {
	ProductPath      string `yaml:"product_path"`
	SQLitePath       string `yaml:"sqlite_path"`
	SQLiteTable      string `yaml:"sqlite_table"`
	CleanProductPath string `yaml:"clean_product_path"`
}

// TextConfig holds configuration for the text dataset and TF-IDF fitting
type TextConfig struct {
	FeatureColumns []string `yaml:"feature_columns"`
	TargetColumn   string   `yaml:"target_column"`
	TestFraction   float64  `yaml:"test_fraction"`
	Seed           int64    `yaml:"seed"`
	MaxFeatures    int      `yaml:"max_features"`
	MinDF          float64  `yaml:"min_df"`
	MaxDF          float64  `yaml:"max_df"`
	StopWords      string   `yaml:"stop_words"`
	StripAccents   bool     `yaml:"strip_accents"`
}

// ImageDatasetConfig holds configuration for the flattened image dataset
type ImageDatasetConfig struct {
	PathColumn   string  `yaml:"path_column"`
	TargetColumn string  `yaml:"target_column"`
	TestFraction float64 `yaml:"test_fraction"`
	Seed         int64   `yaml:"seed"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds the optional textfile destination for run counters
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Image: ImageConfig{
			SourceDir:    "./images",
			TargetDir:    "./Data/CleanImage",
			IndexPath:    "./Data/Images.csv",
			ManifestPath: "./Data/ImageLoading.csv",
			TargetSize:   256,
			DataRange:    255,
			Mode:         string(pipeline.ModeGrayscaleCrop),
			OutputFormat: imageio.FormatJPG,
			Quality:      95,
			Workers:      1,
		},
		Tabular: TabularConfig{
			ProductPath:      "./Data/Products.csv",
			SQLiteTable:      "products",
			CleanProductPath: "./Data/CleanProduct.csv",
		},
		Text: TextConfig{
			FeatureColumns: []string{"product_name", "product_description", "location"},
			TargetColumn:   "price",
			TestFraction:   0.33,
			MaxFeatures:    10000,
			MinDF:          0.01,
			MaxDF:          0.9,
			StopWords:      textfeat.StopWordsEnglish,
		},
		ImageDataset: ImageDatasetConfig{
			PathColumn:   "path",
			TargetColumn: "label",
			TestFraction: 0.33,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromFile loads configuration from a YAML (or JSON) file over the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, types.WrapIO("read", filename, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return types.WrapIO("mkdir", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return types.WrapIO("write", filename, err)
	}

	return nil
}

// ErrConfigExists is returned by WriteDefault when it would overwrite a file.
var ErrConfigExists = errors.New("configuration file already exists")

// WriteDefault saves the default configuration to filename. An existing
// file is only replaced when overwrite is set.
func WriteDefault(filename string, overwrite bool) error {
	if !overwrite && utils.FileExists(filename) {
		return fmt.Errorf("%w: %s", ErrConfigExists, filename)
	}
	return Default().SaveToFile(filename)
}

// Environment variables read by ApplyEnv.
const (
	EnvSourceDir  = "CATALOG_PREP_IMAGE_DIR"
	EnvTargetDir  = "CATALOG_PREP_TARGET_DIR"
	EnvProducts   = "CATALOG_PREP_PRODUCTS"
	EnvSQLite     = "CATALOG_PREP_SQLITE"
	EnvTargetSize = "CATALOG_PREP_TARGET_SIZE"
	EnvWorkers    = "CATALOG_PREP_WORKERS"
	EnvSeed       = "CATALOG_PREP_SEED"
	EnvLogLevel   = "CATALOG_PREP_LOG_LEVEL"
	EnvLogFormat  = "CATALOG_PREP_LOG_FORMAT"
)

// ApplyEnv overrides settings from CATALOG_PREP_* environment variables
func (c *Config) ApplyEnv() error {
	setString(&c.Image.SourceDir, EnvSourceDir)
	setString(&c.Image.TargetDir, EnvTargetDir)
	setString(&c.Tabular.ProductPath, EnvProducts)
	setString(&c.Tabular.SQLitePath, EnvSQLite)
	setString(&c.Logging.Level, EnvLogLevel)
	setString(&c.Logging.Format, EnvLogFormat)

	if err := setInt(&c.Image.TargetSize, EnvTargetSize); err != nil {
		return err
	}
	if err := setInt(&c.Image.Workers, EnvWorkers); err != nil {
		return err
	}
	if v, ok := os.LookupEnv(EnvSeed); ok {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return types.Configuration("%s: %v", EnvSeed, err)
		}
		c.Text.Seed = seed
		c.ImageDataset.Seed = seed
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return types.Configuration("%s: %v", key, err)
	}
	*dst = n
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Image.TargetSize <= 0 {
		errs = append(errs, types.Configuration("image.target_size must be positive"))
	}

	if c.Image.DataRange <= 0 {
		errs = append(errs, types.Configuration("image.data_range must be positive"))
	}

	if _, err := pipeline.ParseMode(c.Image.Mode); err != nil {
		errs = append(errs, fmt.Errorf("image.mode: %w", err))
	}

	if !imageio.IsSupportedFormat(c.Image.OutputFormat) {
		errs = append(errs, types.Configuration("image.output_format %q is not supported", c.Image.OutputFormat))
	}

	if c.Image.Quality < 1 || c.Image.Quality > 100 {
		errs = append(errs, types.Configuration("image.quality must be between 1 and 100"))
	}

	if c.Image.Workers < 1 {
		errs = append(errs, types.Configuration("image.workers must be at least 1"))
	}

	if len(c.Text.FeatureColumns) == 0 {
		errs = append(errs, types.Configuration("text.feature_columns cannot be empty"))
	}

	if c.Text.TestFraction <= 0 || c.Text.TestFraction >= 1 {
		errs = append(errs, types.Configuration("text.test_fraction must be between 0 and 1 (exclusive)"))
	}

	if err := c.TextOptions().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("text: %w", err))
	}

	if c.ImageDataset.TestFraction <= 0 || c.ImageDataset.TestFraction >= 1 {
		errs = append(errs, types.Configuration("image_dataset.test_fraction must be between 0 and 1 (exclusive)"))
	}

	return errors.Join(errs...)
}

// TextOptions returns the TF-IDF options of the text section
func (c *Config) TextOptions() textfeat.Options {
	return textfeat.Options{
		MaxFeatures:  c.Text.MaxFeatures,
		MinDF:        c.Text.MinDF,
		MaxDF:        c.Text.MaxDF,
		StopWords:    c.Text.StopWords,
		StripAccents: c.Text.StripAccents,
	}
}

// PipelineConfig returns the image pipeline settings of the image section
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Mode:         pipeline.Mode(c.Image.Mode),
		SourceDir:    c.Image.SourceDir,
		TargetDir:    c.Image.TargetDir,
		ManifestPath: c.Image.ManifestPath,
		TargetSize:   c.Image.TargetSize,
		DataRange:    c.Image.DataRange,
		OutputFormat: c.Image.OutputFormat,
		Quality:      c.Image.Quality,
		Workers:      c.Image.Workers,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./catalog-prep.yaml"
	}
	return filepath.Join(home, ".config", "catalog-prep", "config.yaml")
}
