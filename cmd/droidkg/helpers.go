package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/droidkg/droidkg/internal/logging"
	"github.com/droidkg/droidkg/internal/output"
	"github.com/droidkg/droidkg/pkg/config"
)

// loadConfig reads --config when given, otherwise the standard locations.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.LoadOrDefault(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.LoggerCloser, error) {
	return logging.New(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Verbose: verbose,
	})
}

// addOutputFlags registers -f/--format and -o/--output.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "", "Output format: text, json, markdown, toon (default from config)")
	cmd.Flags().StringP("output", "o", "", "Write output to file")
}

// getFormat returns the format flag, falling back to the configured format.
func getFormat(cmd *cobra.Command, cfg *config.Config) string {
	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		return cfg.Output.Format
	}
	return format
}

// getOutputFile returns the output file path from the command.
func getOutputFile(cmd *cobra.Command) string {
	outputFile, _ := cmd.Flags().GetString("output")
	return outputFile
}

func newFormatter(cmd *cobra.Command, cfg *config.Config) (*output.Formatter, error) {
	return output.NewFormatter(output.ParseFormat(getFormat(cmd, cfg)), getOutputFile(cmd), true)
}

// appName is the display name of a work directory.
func appName(workDir string) string {
	return filepath.Base(filepath.Clean(workDir))
}
