// Package cli implements the warpresample command-line interface.
//
// # Commands
//
//   - export: resample a slice stack through the configured transform and
//     write the result as JPEG sections
//   - bounds: print the native and transformed bounding intervals
//   - magnitude: export the warp-magnitude field of the configured transform
//   - config init: write a default configuration file
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging; otherwise the
// level comes from logging.level in the configuration. Loggers and the
// loaded configuration are passed to commands through context.Context.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"warpresample/pkg/config"
)

var version = "dev"

// SetVersion sets the version reported by --version.
func SetVersion(v string) { version = v }

// Execute runs the CLI with ctx, which commands observe for cancellation.
func Execute(ctx context.Context) error {
	return newRootCommand(os.Stderr).ExecuteContext(ctx)
}

func newRootCommand(logOut io.Writer) *cobra.Command {
	var (
		verbose    bool
		configPath string
	)

	root := &cobra.Command{
		Use:          "warpresample",
		Short:        "Resample image stacks through spatial transforms",
		Long:         `warpresample maps a moving image stack into a target space through an affine or 2D-in-3D transform, exports the resampled volume in parallel and writes it as image sections.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			level, err := parseLevel(cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("%w: %w", config.ErrInvalid, err)
			}
			if verbose {
				level = log.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(logOut, level))
			cmd.SetContext(withConfig(ctx, cfg))
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "warpresample.yaml", "configuration file (.yaml or .toml)")

	root.AddCommand(newExportCmd())
	root.AddCommand(newBoundsCmd())
	root.AddCommand(newMagnitudeCmd())
	root.AddCommand(newConfigCmd())

	return root
}
