package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/cppla/rollcall/ledger"
	"github.com/cppla/rollcall/utils"
)

// reportToAwardsPause separates the summary from the awards on /report.
const reportToAwardsPause = time.Second

// Dispatcher routes incoming updates to the ledger and the reporter.
type Dispatcher struct {
	ledger   *ledger.Ledger
	reporter *Reporter
	batches  ledger.BatchFilter
	allowed  func(group int64) bool
	pause    time.Duration
	log      *zap.Logger
}

// NewDispatcher creates a dispatcher. allowed decides which groups are served;
// nil serves every group.
func NewDispatcher(l *ledger.Ledger, rep *Reporter, batches ledger.BatchFilter, allowed func(int64) bool, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if allowed == nil {
		allowed = func(int64) bool { return true }
	}
	if batches == nil {
		batches = ledger.NewMemoryBatchFilter(0, 0)
	}
	return &Dispatcher{ledger: l, reporter: rep, batches: batches, allowed: allowed, pause: reportToAwardsPause, log: log}
}

// HandleUpdate processes one update. Updates from groups outside the
// allow-list are dropped without a reply.
func (d *Dispatcher) HandleUpdate(ctx context.Context, u Update) error {
	if u.ChatMember != nil {
		return d.handleMember(ctx, u.ChatMember)
	}
	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}
	if cmd, ok := command(msg.Text); ok {
		return d.handleCommand(ctx, cmd, msg)
	}
	if len(msg.Photo) > 0 && isGroupChat(msg.Chat) {
		return d.handlePhoto(ctx, msg)
	}
	return nil
}

func (d *Dispatcher) handleCommand(ctx context.Context, cmd string, msg *tgbotapi.Message) error {
	group := ledger.GroupID(msg.Chat.ID)
	send := func(text string) error {
		return d.reporter.transport.Send(ctx, group, Message{Text: text})
	}

	// /id answers anywhere so operators can discover the id before allow-listing it.
	if cmd == "id" {
		return send(chatIDText(msg.Chat.ID))
	}
	if !d.allowed(msg.Chat.ID) {
		return nil
	}
	switch cmd {
	case "start":
		return send(welcomeText())
	case "members":
		return d.reporter.MemberCount(ctx, group)
	case "report":
		if err := d.reporter.Report(ctx, group); err != nil {
			return err
		}
		if d.pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.pause):
			}
		}
		return d.reporter.Awards(ctx, group)
	case "pending":
		return d.reporter.Pending(ctx, group)
	case "next":
		return d.reporter.NextContent(ctx, group)
	}
	return nil
}

func (d *Dispatcher) handlePhoto(ctx context.Context, msg *tgbotapi.Message) error {
	if !d.allowed(msg.Chat.ID) || msg.From == nil {
		return nil
	}
	group := ledger.GroupID(msg.Chat.ID)
	user := ledger.UserID(msg.From.ID)
	name := displayName(msg.From)

	// the sender counts as known even when this photo turns out to be a repeat
	res, filtered, err := d.ledger.Submit(ctx, d.batches, group, user, name, msg.MediaGroupID)
	if err != nil && !errors.Is(err, ledger.ErrPersistence) {
		return err
	}
	if filtered || res.Outcome != ledger.Accepted {
		return nil
	}
	return d.reporter.transport.Send(ctx, group, Message{Text: confirmationText(res.Name)})
}

func (d *Dispatcher) handleMember(ctx context.Context, m *tgbotapi.ChatMemberUpdated) error {
	if !d.allowed(m.Chat.ID) {
		return nil
	}
	switch m.NewChatMember.Status {
	case "member", "administrator":
	default:
		return nil
	}
	u := m.NewChatMember.User
	if u == nil {
		return nil
	}
	err := d.ledger.Observe(ctx, ledger.GroupID(m.Chat.ID), ledger.UserID(u.ID), displayName(u))
	if errors.Is(err, ledger.ErrPersistence) {
		return nil
	}
	return err
}

func displayName(u *tgbotapi.User) string {
	if name := utils.DisplayName(u.FirstName); name != "" {
		return name
	}
	return ledger.DefaultName
}

// command extracts the command name from "/report@SomeBot arg".
func command(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(word, '@'); at >= 0 {
		word = word[:at]
	}
	return strings.ToLower(word), word != ""
}
