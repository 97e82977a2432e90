package bot

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	pollTimeout  = 50 * time.Second
	pollBackoff  = 3 * time.Second
	maxPollDelay = time.Minute
)

// UpdateSource is the long-polling side of the Bot API.
type UpdateSource interface {
	DropPending(ctx context.Context) error
	GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]Update, error)
}

// Poller feeds long-polled updates to a dispatcher until its context ends.
type Poller struct {
	source     UpdateSource
	dispatcher *Dispatcher
	log        *zap.Logger
}

func NewPoller(src UpdateSource, d *Dispatcher, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{source: src, dispatcher: d, log: log}
}

// Run drops updates queued while offline, then polls. Failed polls back off
// exponentially up to a minute.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.source.DropPending(ctx); err != nil {
		p.log.Warn("could not drop pending updates", zap.Error(err))
	}
	p.log.Info("bot online, waiting for updates")

	var offset int
	delay := pollBackoff
	for {
		updates, err := p.source.GetUpdates(ctx, offset, pollTimeout)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			p.log.Warn("getUpdates failed", zap.Error(err), zap.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			delay = min(delay*2, maxPollDelay)
			continue
		}
		delay = pollBackoff

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if err := p.dispatcher.HandleUpdate(ctx, u); err != nil {
				p.log.Warn("update failed", zap.Int("update_id", u.UpdateID), zap.Error(err))
			}
		}
	}
}
