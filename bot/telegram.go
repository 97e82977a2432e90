package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cppla/rollcall/ledger"
	"github.com/cppla/rollcall/metrics"
)

// Update is one incoming Bot API update.
type Update = tgbotapi.Update

// allowedUpdates limits polling to what the dispatcher handles.
var allowedUpdates = []string{"message", "chat_member"}

// TelegramClient talks to the Bot API. Outgoing calls share one token bucket
// so bursts (awards, several groups at once) stay under the platform's flood
// limits.
type TelegramClient struct {
	api     *tgbotapi.BotAPI
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewTelegramClient creates a client for base (normally
// https://api.telegram.org) and checks the token with getMe.
func NewTelegramClient(base, token string, log *zap.Logger) (*TelegramClient, error) {
	if log == nil {
		log = zap.NewNop()
	}
	hc := &http.Client{Timeout: 70 * time.Second}
	endpoint := strings.TrimRight(base, "/") + "/bot%s/%s"
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, hc)
	if err != nil {
		return nil, callError("getMe", err)
	}
	log.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return &TelegramClient{
		api:     api,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(20), 5),
		log:     log,
	}, nil
}

// contextClient binds one call's context to the requests the SDK builds.
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

// bound returns a shallow copy of the SDK client whose requests follow ctx.
func (c *TelegramClient) bound(ctx context.Context) (*tgbotapi.BotAPI, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	api := *c.api
	api.Client = contextClient{ctx: ctx, client: c.http}
	return &api, nil
}

// callError keeps API errors and strips transport errors, whose URL carries
// the token.
func callError(method string, err error) error {
	if err == nil {
		return nil
	}
	metrics.TransportErrors.WithLabelValues(method).Inc()
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("telegram %s: %w", method, apiErr)
	}
	return fmt.Errorf("telegram %s: request failed", method)
}

// GetUpdates long-polls for updates after offset.
func (c *TelegramClient) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]Update, error) {
	api, err := c.bound(ctx)
	if err != nil {
		return nil, err
	}
	cfg := tgbotapi.NewUpdate(offset)
	cfg.Timeout = int(timeout.Seconds())
	cfg.AllowedUpdates = allowedUpdates
	updates, err := api.GetUpdates(cfg)
	if err != nil {
		return nil, callError("getUpdates", err)
	}
	return updates, nil
}

// DropPending removes any webhook and discards updates queued while the bot was offline.
func (c *TelegramClient) DropPending(ctx context.Context) error {
	api, err := c.bound(ctx)
	if err != nil {
		return err
	}
	_, err = api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true})
	return callError("deleteWebhook", err)
}

func (c *TelegramClient) MemberCount(ctx context.Context, group ledger.GroupID) (int, error) {
	api, err := c.bound(ctx)
	if err != nil {
		return 0, err
	}
	n, err := api.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: int64(group)},
	})
	if err != nil {
		return 0, callError("getChatMemberCount", err)
	}
	return n, nil
}

func (c *TelegramClient) Send(ctx context.Context, group ledger.GroupID, msg Message) error {
	api, err := c.bound(ctx)
	if err != nil {
		return err
	}
	out := tgbotapi.NewMessage(int64(group), msg.Text)
	if msg.Markdown {
		out.ParseMode = tgbotapi.ModeMarkdown
	}
	if _, err := api.Request(out); err != nil {
		err = callError("sendMessage", err)
		c.log.Warn("send failed", zap.Int64("group", int64(group)), zap.Error(err))
		return err
	}
	return nil
}

// isGroupChat reports whether the chat is a group or supergroup.
func isGroupChat(c *tgbotapi.Chat) bool {
	return c != nil && (c.IsGroup() || c.IsSuperGroup())
}
