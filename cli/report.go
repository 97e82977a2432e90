package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cppla/rollcall/bot"
	"github.com/cppla/rollcall/ledger"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Group int64
	Total int
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print today's report from the stored snapshot",
		Long: `Print today's report for one group from the stored snapshot without
contacting Telegram. The member total has to be given explicitly.

Example:
  rollcall report --group -1001234567890 --total 42
  rollcall report --group -1001234567890 --total 42 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printReport(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Group, "group", 0, "group chat id (required)")
	cmd.Flags().IntVar(&opts.Total, "total", 0, "current member count of the group")
	_ = cmd.MarkFlagRequired("group")

	return cmd
}

func printReport(opts *ReportOptions, cmd *cobra.Command) error {
	if opts.Total < 0 {
		return fmt.Errorf("--total must not be negative")
	}
	cfg := opts.Config()
	st, err := loadState(commandContext(cmd), cfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer st.close()

	group := ledger.GroupID(opts.Group)
	r := st.ledger.Report(group, opts.Total)
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	now := st.ledger.Clock().Now()
	if _, err := fmt.Fprintln(out, bot.RenderReport(now, r)); err != nil {
		return err
	}
	if len(r.Named) > 0 {
		_, err = fmt.Fprintf(out, "\npending (%d named):\n", len(r.Named))
		for _, m := range r.Named {
			if err != nil {
				break
			}
			_, err = fmt.Fprintf(out, "  %d\t%s\n", m.ID, m.Name)
		}
	}
	return err
}
