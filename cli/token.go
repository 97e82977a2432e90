package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cppla/rollcall/utils"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	Operator string
	TTL      time.Duration
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token for the HTTP API",
		Long: `Mint an HS256 operator token signed with JWT_SECRET.

Example:
  rollcall token --operator alice --ttl 720h`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mintToken(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Operator, "operator", "", "operator name recorded in the token (required)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 30*24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("operator")

	return cmd
}

func mintToken(opts *TokenOptions, cmd *cobra.Command) error {
	cfg := opts.Config()
	if err := cfg.RequireJWTSecret(); err != nil {
		return err
	}
	if opts.TTL <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}
	tok, err := utils.GenerateToken(cfg.JWTSecret, opts.Operator, opts.TTL)
	if err != nil {
		return err
	}
	if opts.Format == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"operator":   opts.Operator,
			"token":      tok,
			"expires_at": time.Now().Add(opts.TTL).UTC().Format(time.RFC3339),
		})
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
	return err
}
