// Package worker feeds check-ins and member sightings from a RabbitMQ queue
// into the ledger, for intake paths that do not go through the bot.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/cppla/rollcall/ledger"
	"github.com/cppla/rollcall/metrics"
	"github.com/cppla/rollcall/utils"
)

// Event types.
const (
	EventCheckIn = "checkin"
	EventMember  = "member"
)

// Event is the JSON body of one queued message.
type Event struct {
	Type        string `json:"type"`
	GroupID     int64  `json:"group_id"`
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	BatchID     string `json:"batch_id,omitempty"`
	// Status is the chat membership status for member events; empty means member.
	Status string `json:"status,omitempty"`
}

// Disposition tells the consumer what to do with a delivery.
type Disposition int

const (
	Ack Disposition = iota
	Requeue
)

var errMalformed = errors.New("malformed event")

// Handler applies events to the ledger.
type Handler struct {
	Ledger  *ledger.Ledger
	Batches ledger.BatchFilter
	Allowed func(group int64) bool
	Log     *zap.Logger
}

// Handle applies one message body and decides its disposition. Malformed
// events and events for groups outside the allow-list are dropped. A failed
// save is acknowledged too because the ledger already holds the change.
func (h *Handler) Handle(ctx context.Context, body []byte) (Disposition, error) {
	ev, err := decode(body)
	if err != nil {
		return Ack, err
	}
	if h.Allowed != nil && !h.Allowed(ev.GroupID) {
		return Ack, fmt.Errorf("group %d is not served", ev.GroupID)
	}
	group := ledger.GroupID(ev.GroupID)
	user := ledger.UserID(ev.UserID)
	name := utils.DisplayName(ev.DisplayName)

	switch ev.Type {
	case EventCheckIn:
		_, _, err = h.Ledger.Submit(ctx, h.Batches, group, user, name, ev.BatchID)
	case EventMember:
		switch ev.Status {
		case "", "member", "administrator":
			err = h.Ledger.Observe(ctx, group, user, name)
		}
	}
	switch {
	case err == nil:
		return Ack, nil
	case errors.Is(err, ledger.ErrPersistence):
		return Ack, err
	default:
		return Requeue, err
	}
}

func decode(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if ev.Type != EventCheckIn && ev.Type != EventMember {
		return ev, fmt.Errorf("%w: unknown type %q", errMalformed, ev.Type)
	}
	if ev.GroupID == 0 || ev.UserID == 0 {
		return ev, fmt.Errorf("%w: group_id and user_id are required", errMalformed)
	}
	return ev, nil
}

// Run consumes the events queue until ctx is done.
func Run(ctx context.Context, client *Client, prefetch int, h *Handler) error {
	if h.Log == nil {
		h.Log = zap.NewNop()
	}
	if err := client.DeclareTopology(); err != nil {
		return err
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := client.Channel.Qos(prefetch, 0, false); err != nil {
		return err
	}
	deliveries, err := client.Channel.Consume(client.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	h.Log.Info("event worker consuming", zap.String("queue", client.Queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("event worker: delivery channel closed")
			}
			h.deliver(ctx, d)
		}
	}
}

func (h *Handler) deliver(ctx context.Context, d amqp.Delivery) {
	disp, err := h.Handle(ctx, d.Body)
	if err != nil {
		h.Log.Warn("event not applied", zap.Error(err), zap.Bool("requeue", disp == Requeue))
	}
	if disp == Requeue {
		metrics.TransportErrors.WithLabelValues("amqp_requeue").Inc()
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}
