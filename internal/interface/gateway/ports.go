// Package gateway connects the chat platform to the application layer. The
// platform client itself (message transport, voice events, slash-command
// registration) stays behind the ports in this file; the dispatcher and the
// presenters only ever see rendered text and opaque message refs.
package gateway

import (
	"context"
	"errors"

	"github.com/cozykbin/Jipsa-bot/internal/application/command"
)

// ErrMessageNotFound is returned by a Notifier when the referenced message
// no longer exists. Callers treat it as benign: rendered views are
// recreated, pending prompts are cleared.
var ErrMessageNotFound = errors.New("gateway: message not found")

// Notifier sends and maintains messages on the platform. Refs are opaque
// platform message identifiers.
type Notifier interface {
	// Send posts content to a channel and returns the new message ref.
	Send(ctx context.Context, channel, content string) (string, error)

	// Edit replaces a message's content in place.
	Edit(ctx context.Context, channel, ref, content string) error

	// Delete removes a message.
	Delete(ctx context.Context, channel, ref string) error

	// Pin pins a message in its channel.
	Pin(ctx context.Context, channel, ref string) error
}

// Directory resolves platform-side member information.
type Directory interface {
	command.Directory

	// IsAdmin reports whether the member holds the admin flag.
	IsAdmin(ctx context.Context, userID string) (bool, error)

	// DisplayName resolves a member's current display name, or "" when the
	// member cannot be resolved anymore.
	DisplayName(ctx context.Context, userID string) (string, error)
}

// RefStore remembers which platform message each long-lived view is
// rendered into. Lost refs read back as "".
type RefStore interface {
	SetPinnedLeaderboard(ctx context.Context, ref string) error
	PinnedLeaderboard(ctx context.Context) (string, error)
	SetProfile(ctx context.Context, userID, ref string) error
	Profile(ctx context.Context, userID string) (string, error)
	ClearProfile(ctx context.Context, userID string) error
}

// Presence tracks who is currently in a tracked voice room, feeding the
// raffle pool and the startup reconciliation.
type Presence interface {
	Enter(ctx context.Context, userID string) error
	Leave(ctx context.Context, userID string) error
	Reset(ctx context.Context) error
}
