package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/rollcall/ledger"
	"github.com/cppla/rollcall/models"
)

// DefaultAwardPace is the pause between consecutive award messages.
const DefaultAwardPace = 500 * time.Millisecond

// Reporter posts group-wide messages: the summary report, the awards, the
// pending list and the daily content item.
type Reporter struct {
	ledger    *ledger.Ledger
	rotation  *ledger.Rotation
	transport Transport
	pace      time.Duration
	log       *zap.Logger
}

// NewReporter wires a reporter. rotation may be nil when no content list is configured.
func NewReporter(l *ledger.Ledger, rotation *ledger.Rotation, t Transport, log *zap.Logger) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{ledger: l, rotation: rotation, transport: t, pace: DefaultAwardPace, log: log}
}

// SetPace changes the pause between award messages.
func (r *Reporter) SetPace(d time.Duration) {
	r.pace = d
}

// Build computes the report for a group using the transport's member count.
func (r *Reporter) Build(ctx context.Context, group ledger.GroupID) (ledger.Report, error) {
	total, err := r.transport.MemberCount(ctx, group)
	if err != nil {
		return ledger.Report{}, fmt.Errorf("member count: %w", err)
	}
	return r.ledger.Report(group, total), nil
}

// Report posts the summary for a group.
func (r *Reporter) Report(ctx context.Context, group ledger.GroupID) error {
	rep, err := r.Build(ctx, group)
	if err != nil {
		return err
	}
	r.log.Info("report",
		zap.Int64("group", int64(group)),
		zap.Int("total", rep.Total),
		zap.Int("sent", rep.Submitted),
		zap.Int("pending", rep.Count),
	)
	return r.transport.Send(ctx, group, Message{Text: reportText(r.ledger.Clock().Now(), rep)})
}

// Awards posts one medal message per leaderboard row, paced. Nothing is sent
// when nobody has a streak.
func (r *Reporter) Awards(ctx context.Context, group ledger.GroupID) error {
	top := r.ledger.Top(group, ledger.DefaultTop)
	for i, s := range top {
		if i > 0 && r.pace > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.pace):
			}
		}
		if err := r.transport.Send(ctx, group, Message{Text: awardText(s), Markdown: true}); err != nil {
			return err
		}
	}
	return nil
}

// Pending posts the named pending list.
func (r *Reporter) Pending(ctx context.Context, group ledger.GroupID) error {
	p := r.ledger.Pending(group, 0)
	return r.transport.Send(ctx, group, Message{Text: pendingText(p)})
}

// MemberCount posts the platform's member count.
func (r *Reporter) MemberCount(ctx context.Context, group ledger.GroupID) error {
	n, err := r.transport.MemberCount(ctx, group)
	if err != nil {
		return err
	}
	return r.transport.Send(ctx, group, Message{Text: memberCountText(n)})
}

// NextContent posts today's content item. An exhausted list gets a terminal
// notice; a persistence failure still posts the item.
func (r *Reporter) NextContent(ctx context.Context, group ledger.GroupID) error {
	if r.rotation == nil {
		return ledger.ErrContentUnavailable
	}
	item, err := r.rotation.Next(ctx, group)
	switch {
	case errors.Is(err, ledger.ErrExhausted):
		return r.transport.Send(ctx, group, Message{Text: exhaustedText()})
	case err != nil && !errors.Is(err, ledger.ErrPersistence):
		return err
	}
	if sendErr := r.Announce(ctx, group, item); sendErr != nil {
		return sendErr
	}
	return err
}

// Announce posts an already rotated content item.
func (r *Reporter) Announce(ctx context.Context, group ledger.GroupID, item models.ContentItem) error {
	return r.transport.Send(ctx, group, Message{Text: contentText(item)})
}
