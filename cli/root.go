// Package cli holds the rollcall command tree.
package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cppla/rollcall/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"

	cfg config.AppConfig
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Config returns the configuration loaded before the subcommand ran.
func (o *RootOptions) Config() config.AppConfig { return o.cfg }

// NewRootCommand creates the root command. Running it without a subcommand serves.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rollcall",
		Short: "Daily check-in tracker behind a group chat bot",
		Long: `rollcall records one check-in per member per day, keeps consecutive-day
streaks, reports who is pending and rotates a daily content item per group.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			c, err := config.LoadFrom(opts.ConfigPath)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			opts.cfg = c
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(commandContext(cmd), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", filepath.Join("config", "config.json"), "path to config.json")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewEmitCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
