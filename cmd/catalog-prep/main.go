package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	catalogprep "github.com/menta2k/catalog-prep"
	"github.com/menta2k/catalog-prep/internal/config"
	"github.com/menta2k/catalog-prep/internal/logging"
	"github.com/menta2k/catalog-prep/pkg/labels"
	"github.com/menta2k/catalog-prep/pkg/pipeline"
	"github.com/menta2k/catalog-prep/pkg/tabular"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	imageMode  string
	workers    int
	forceInit  bool

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "catalog-prep",
	Short:         "Prepare product records and photos for model training",
	Version:       catalogprep.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

var cleanProductsCmd = &cobra.Command{
	Use:   "clean-products",
	Short: "Parse prices, derive category labels and write the clean product table",
	RunE: func(cmd *cobra.Command, args []string) error {
		prep := catalogprep.NewWithLogger(logger)
		cleaned, err := loadCleanProducts(cmd.Context(), prep)
		if err != nil {
			return err
		}
		if err := tabular.WriteFrameCSV(cfg.Tabular.CleanProductPath, cleaned.Frame); err != nil {
			return fmt.Errorf("write clean products: %w", err)
		}
		fmt.Printf("%d products, %d categories -> %s\n", cleaned.Frame.Len(), cleaned.LabelMap.Len(), cfg.Tabular.CleanProductPath)
		return nil
	},
}

var cleanImagesCmd = &cobra.Command{
	Use:   "clean-images",
	Short: "Normalize the image folder and write the manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		prep := catalogprep.NewWithLogger(logger)
		pc := cfg.PipelineConfig()

		var joiner *labels.Joiner
		if pc.Mode == pipeline.ModeGrayscaleCrop {
			cleaned, err := loadCleanProducts(ctx, prep)
			if err != nil {
				return err
			}
			if joiner, err = prep.JoinerFromFile(cfg.Image.IndexPath, cleaned.Frame); err != nil {
				return err
			}
		}

		report, err := prep.CleanImages(ctx, pc, joiner)
		if path := cfg.Metrics.TextfilePath; path != "" {
			if werr := prep.Metrics().WriteTextfile(path); werr != nil {
				logger.Warn().Err(werr).Str("path", path).Msg("metrics textfile not written")
			}
		}
		if err != nil {
			return err
		}
		fmt.Printf("processed %d, retained %d, excluded %d, failed %d -> %s\n",
			report.Processed, report.Retained(), report.Excluded(), len(report.Failures), pc.ManifestPath)
		return nil
	},
}

var textFeaturesCmd = &cobra.Command{
	Use:   "text-features",
	Short: "Build the TF-IDF train and test matrices from the clean product table",
	RunE: func(cmd *cobra.Command, args []string) error {
		prep := catalogprep.NewWithLogger(logger)
		cleaned, err := tabular.ReadFrameCSV(cfg.Tabular.CleanProductPath)
		if err != nil {
			return fmt.Errorf("read clean products: %w", err)
		}
		ds, err := prep.TextDataset(cleaned, catalogprep.TextSettings{
			FeatureColumns: cfg.Text.FeatureColumns,
			TargetColumn:   cfg.Text.TargetColumn,
			TestFraction:   cfg.Text.TestFraction,
			Seed:           cfg.Text.Seed,
			Options:        cfg.TextOptions(),
		})
		if err != nil {
			return err
		}
		trainRows, cols := ds.Train.Dims()
		testRows, _ := ds.Test.Dims()
		fmt.Printf("train %dx%d, test %dx%d\n", trainRows, cols, testRows, cols)
		return nil
	},
}

var imageFeaturesCmd = &cobra.Command{
	Use:   "image-features",
	Short: "Load the manifest as flattened train and test pixel matrices",
	RunE: func(cmd *cobra.Command, args []string) error {
		prep := catalogprep.NewWithLogger(logger)
		ds, err := prep.ImageDataset(cfg.Image.ManifestPath, catalogprep.ImageSettings{
			TestFraction: cfg.ImageDataset.TestFraction,
			Seed:         cfg.ImageDataset.Seed,
			DataRange:    cfg.Image.DataRange,
			PathColumn:   cfg.ImageDataset.PathColumn,
			LabelColumn:  cfg.ImageDataset.TargetColumn,
		})
		if err != nil {
			return err
		}
		trainRows, cols := ds.Train.Dims()
		testRows, _ := ds.Test.Dims()
		fmt.Printf("train %dx%d, test %dx%d\n", trainRows, cols, testRows, cols)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	// the default file is written without loading an existing one
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetConfigPath()
		if len(args) > 0 {
			path = args[0]
		}
		if err := config.Default().SaveToFile(path); err != nil {
			return err
		}
		fmt.Printf("configuration written to %s\n", path)
		return nil
	},
}

// setup loads the configuration, applies flag and environment overrides
// and builds the logger.
func setup(cmd *cobra.Command) error {
	var err error
	cfg = config.Default()
	if configPath != "" {
		if cfg, err = config.LoadFromFile(configPath); err != nil {
			return err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	if flags.Changed("mode") {
		cfg.Image.Mode = imageMode
	}
	if flags.Changed("workers") {
		cfg.Image.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, _ = logging.WithRun(logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr))
	logger.Debug().Str("command", cmd.Name()).Str("config", configPath).Msg("configuration loaded")
	return nil
}

func loadCleanProducts(ctx context.Context, prep *catalogprep.Preparer) (*tabular.CleanResult, error) {
	var (
		products *tabular.Frame
		err      error
	)
	if cfg.Tabular.SQLitePath != "" {
		products, err = tabular.LoadProductsSQLite(ctx, cfg.Tabular.SQLitePath, cfg.Tabular.SQLiteTable)
	} else {
		products, err = tabular.ReadFrameCSV(cfg.Tabular.ProductPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}
	return prep.CleanProducts(products)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatConsole, "log format: console|json")

	cleanImagesCmd.Flags().StringVarP(&imageMode, "mode", "m", string(pipeline.ModeGrayscaleCrop), "image mode: grayscale-crop|resize-pad")
	cleanImagesCmd.Flags().IntVarP(&workers, "workers", "w", 1, "images processed in parallel")

	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(cleanProductsCmd, cleanImagesCmd, textFeaturesCmd, imageFeaturesCmd, configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
