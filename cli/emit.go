package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cppla/rollcall/worker"
)

// EmitOptions holds flags for the emit command.
type EmitOptions struct {
	*RootOptions
	Group   int64
	User    int64
	Name    string
	BatchID string
	Status  string
}

// NewEmitCommand creates the emit command.
func NewEmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "emit <checkin|member>",
		Short: "Publish one intake event to the RabbitMQ queue",
		Long: `Publish a check-in or member event to RABBITMQ_QUEUE, where a running
"rollcall serve" picks it up.

Example:
  rollcall emit checkin --group -1001234567890 --user 42 --name Asha`,
		Args:          cobra.ExactArgs(1),
		ValidArgs:     []string{worker.EventCheckIn, worker.EventMember},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return emitEvent(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Group, "group", 0, "group chat id (required)")
	cmd.Flags().Int64Var(&opts.User, "user", 0, "user id (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.BatchID, "batch", "", "transport batch id for check-ins")
	cmd.Flags().StringVar(&opts.Status, "status", "", "membership status for member events")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func emitEvent(opts *EmitOptions, kind string, cmd *cobra.Command) error {
	if kind != worker.EventCheckIn && kind != worker.EventMember {
		return fmt.Errorf("unknown event type %q", kind)
	}
	cfg := opts.Config()
	client, err := worker.Dial(cfg.RabbitMQURL, cfg.RabbitMQQueue)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.DeclareTopology(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), 10*time.Second)
	defer cancel()
	ev := worker.Event{
		Type:        kind,
		GroupID:     opts.Group,
		UserID:      opts.User,
		DisplayName: opts.Name,
		BatchID:     opts.BatchID,
		Status:      opts.Status,
	}
	if err := client.Publish(ctx, ev); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "published %s for user %d in group %d\n", kind, opts.User, opts.Group)
	return err
}
