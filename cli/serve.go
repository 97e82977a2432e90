package cli

import (
	"context"
	"errors"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cppla/rollcall/bot"
	"github.com/cppla/rollcall/config"
	"github.com/cppla/rollcall/ledger"
	"github.com/cppla/rollcall/metrics"
	"github.com/cppla/rollcall/routes"
	"github.com/cppla/rollcall/utils"
	"github.com/cppla/rollcall/worker"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, scheduler, event worker and HTTP API",
		Long: `Run every configured component until SIGINT or SIGTERM.

The Telegram side runs when TELEGRAM_BOT_TOKEN is set and TELEGRAM_MODE is not
"off". The event worker runs when RABBITMQ_URL is set. The HTTP API always runs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(commandContext(cmd), rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg := opts.Config()
	if err := cfg.RequireJWTSecret(); err != nil {
		return err
	}
	if err := utils.InitLogger(cfg); err != nil {
		return err
	}
	defer func() { _ = utils.Logger.Sync() }()
	metrics.Init()
	log := utils.Logger

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := loadState(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	if cfg.SetupMode() {
		log.Warn("no ALLOWED_CHAT_IDS configured: serving every group, scheduler disabled")
	}

	batches := newBatchFilter(cfg, log)
	deps := routes.Deps{Ledger: st.ledger, Rotation: st.rotation, Batches: batches}
	g, ctx := errgroup.WithContext(ctx)

	if cfg.TelegramBotToken != "" && cfg.TelegramMode != config.TelegramOff {
		tg, err := bot.NewTelegramClient(cfg.TelegramAPIBase, cfg.TelegramBotToken, log.Named("telegram"))
		if err != nil {
			return err
		}
		rep := bot.NewReporter(st.ledger, st.rotation, tg, log.Named("reporter"))
		disp := bot.NewDispatcher(st.ledger, rep, batches, cfg.Allowed, log.Named("dispatcher"))
		deps.Counter, deps.Announcer, deps.Updates = tg, rep, disp

		if cfg.TelegramMode == config.TelegramPolling {
			poller := bot.NewPoller(tg, disp, log.Named("poller"))
			g.Go(func() error { return poller.Run(ctx) })
		}
		sched, err := bot.NewScheduler(cfg.Location(), rep, allowedGroups(cfg), bot.ScheduleConfig{
			ReportTimes: cfg.ReportTimes,
			AwardsDelay: cfg.AwardsDelay(),
			ContentTime: cfg.ContentTime,
		}, log.Named("scheduler"))
		if err != nil {
			return err
		}
		g.Go(func() error { return sched.Run(ctx) })
	} else {
		log.Info("telegram transport disabled")
	}

	if cfg.RabbitMQURL != "" {
		client, err := worker.Dial(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			return err
		}
		defer client.Close()
		h := &worker.Handler{Ledger: st.ledger, Batches: batches, Allowed: cfg.Allowed, Log: log.Named("worker")}
		g.Go(func() error { return worker.Run(ctx, client, 1, h) })
	}

	router := routes.SetupRouter(cfg, deps)
	g.Go(func() error {
		log.Info("starting server", zap.String("port", cfg.AppPort))
		return utils.GraceServer(ctx, net.JoinHostPort("", cfg.AppPort), router)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("stopped with error", zap.Error(err))
		return err
	}
	log.Info("stopped")
	return nil
}

func allowedGroups(cfg config.AppConfig) []ledger.GroupID {
	out := make([]ledger.GroupID, 0, len(cfg.AllowedChatIDs))
	for _, id := range cfg.AllowedChatIDs {
		out = append(out, ledger.GroupID(id))
	}
	return out
}
