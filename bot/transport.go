// Package bot adapts the ledger to a group chat: it turns incoming updates into
// check-ins and membership changes, answers commands, and posts the scheduled
// reports, awards and daily content.
package bot

import (
	"context"

	"github.com/cppla/rollcall/ledger"
)

// Message is one outgoing chat message.
type Message struct {
	Text string
	// Markdown asks the transport to render Text as Markdown.
	Markdown bool
}

// Transport is what the bot needs from the chat platform.
type Transport interface {
	// MemberCount returns the platform's current member count for the group.
	MemberCount(ctx context.Context, group ledger.GroupID) (int, error)
	Send(ctx context.Context, group ledger.GroupID, msg Message) error
}
