package main

import (
	"fmt"
	"os"

	"github.com/Brownie44l1/phonedetect/internal/config"
	"github.com/Brownie44l1/phonedetect/internal/detector"
	"github.com/Brownie44l1/phonedetect/internal/logger"
	"github.com/Brownie44l1/phonedetect/internal/model"
	"github.com/Brownie44l1/phonedetect/internal/report"
	"github.com/Brownie44l1/phonedetect/internal/runner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "0.1.0"

var configFile string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "phonedetect [images...]",
		Short: "Detect phones in images with a pretrained classifier",
		Long: `Runs an ImageNet classifier over each image and reports whether one of the
top predictions is a phone-like label above the confidence threshold.
Without arguments the image list from the configuration is used.`,
		Args:          cobra.ArbitraryArgs,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDetect,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default: ./phonedetect.yaml if present)")
	pf.String("model", "models/mobilenet_v2.onnx", "Path to the ONNX model")
	pf.String("metadata", "models/model_metadata.json", "Path to the model metadata JSON")
	pf.String("labels", "", "Path to a class labels file (overrides metadata classes)")
	pf.String("ort-lib", "", "Path to the onnxruntime shared library")
	pf.Bool("warm-up", true, "Run a warm-up inference after loading the model")
	pf.Float64("threshold", detector.DefaultThreshold, "Minimum probability for a phone label")
	pf.Int("top-k", detector.DefaultTopK, "Number of ranked predictions to inspect")
	pf.StringSlice("keyword", detector.DefaultKeywords, "Phone keyword matched against labels (repeatable)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")

	f := rootCmd.Flags()
	f.StringP("output", "o", "detection_results.txt", "Results file, overwritten on each run")
	f.StringP("format", "f", report.FormatText, "Results file format: text, json, yaml")
	f.String("locale", "en", fmt.Sprintf("Result wording: %v", report.Locales()))
	f.Bool("progress", false, "Show a progress bar on stderr")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.AddCommand(newServeCmd())
	return rootCmd
}

// setup loads configuration, the logger and the model shared by all commands.
func setup(cmd *cobra.Command) (*config.Config, *logrus.Logger, *model.Classifier, *detector.Detector, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, nil, nil, err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	log.WithField("model", cfg.Model.Path).Info("Loading model")
	classifier, err := model.NewClassifier(model.Options{
		ModelPath:         cfg.Model.Path,
		MetadataPath:      cfg.Model.MetadataPath,
		LabelsPath:        cfg.Model.LabelsPath,
		SharedLibraryPath: cfg.Model.SharedLibraryPath,
		WarmUp:            cfg.Model.WarmUp,
		Logger:            log,
	})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to initialize model: %w", err)
	}

	d, err := detector.New(classifier, detector.Options{
		Keywords:  cfg.Detection.Keywords,
		Threshold: cfg.Detection.Threshold,
		TopK:      cfg.Detection.TopK,
		Logger:    log,
	})
	if err != nil {
		classifier.Close()
		return nil, nil, nil, nil, err
	}

	return cfg, log, classifier, d, nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, log, classifier, d, err := setup(cmd)
	if err != nil {
		return err
	}
	defer classifier.Close()

	rep, err := report.New(cfg.Output.Locale, cfg.Output.Format)
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		paths = cfg.Images
	}

	opts := runner.Options{Out: cmd.OutOrStdout(), Logger: log}
	if cfg.Output.Progress {
		opts.Progress = cmd.ErrOrStderr()
	}
	results := runner.New(d, rep, opts).Run(paths)

	if err := rep.WriteFile(cfg.Output.Path, results); err != nil {
		return err
	}
	log.WithField("path", cfg.Output.Path).Info("Results saved")
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
