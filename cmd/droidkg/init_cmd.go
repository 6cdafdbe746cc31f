package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/droidkg/droidkg/pkg/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new droidkg configuration file",
	Long: `Creates a new droidkg.toml configuration file in the current directory
with sensible defaults. Use --output to specify a different location; a
.yaml or .yml extension writes YAML instead.

Examples:
  droidkg init                          # Creates droidkg.toml in current directory
  droidkg init -o .droidkg/droidkg.yaml # Creates a YAML config in .droidkg
  droidkg init --force                  # Overwrite existing config file`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringP("output", "o", "droidkg.toml", "Output file path")
	initCmd.Flags().Bool("force", false, "Overwrite existing config file")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("output")
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(outputPath); err == nil && !force {
		return fmt.Errorf("config file %q already exists (use --force to overwrite)", outputPath)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	content, err := generateDefaultConfig(outputPath)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	color.Green("Created %s", outputPath)
	fmt.Fprintln(cmd.OutOrStdout(), "Edit this file to customize analysis settings.")
	return nil
}

// generateDefaultConfig renders the defaults as TOML, or as YAML when path
// has a YAML extension.
func generateDefaultConfig(path string) (string, error) {
	cfg := config.DefaultConfig()

	var content []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		content, err = yaml.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
	default:
		content, err = toml.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
	}

	var buf strings.Builder
	buf.WriteString("# droidkg configuration\n")
	buf.WriteString("# Values shown are the defaults.\n\n")
	buf.Write(content)

	return buf.String(), nil
}
