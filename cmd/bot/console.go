package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cozykbin/Jipsa-bot/internal/application/command"
	"github.com/cozykbin/Jipsa-bot/internal/domain/member"
	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
	"github.com/cozykbin/Jipsa-bot/internal/interface/gateway"
	"github.com/cozykbin/Jipsa-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSOLE PLATFORM ADAPTER
// The engine talks to the chat platform only through the gateway ports. This
// adapter satisfies those ports without a platform: outgoing messages land in
// the log, refs are process-local, and the member directory answers from
// configuration. A real platform SDK adapter replaces this file wholesale.
// ══════════════════════════════════════════════════════════════════════════════

// consoleNotifier logs outgoing messages and hands out process-local refs.
type consoleNotifier struct {
	log *logger.Logger

	mu    sync.Mutex
	next  int
	known map[string]bool
}

func newConsoleNotifier(log *logger.Logger) *consoleNotifier {
	return &consoleNotifier{
		log:   log.With(logger.Component("console_notifier")),
		known: make(map[string]bool),
	}
}

func (n *consoleNotifier) Send(_ context.Context, channel, content string) (string, error) {
	n.mu.Lock()
	n.next++
	ref := fmt.Sprintf("console-%d", n.next)
	n.known[ref] = true
	n.mu.Unlock()

	n.log.Info("send", logger.String("channel", channel), logger.String("ref", ref), logger.String("content", content))
	return ref, nil
}

func (n *consoleNotifier) Edit(_ context.Context, channel, ref, content string) error {
	n.mu.Lock()
	ok := n.known[ref]
	n.mu.Unlock()
	if !ok {
		return gateway.ErrMessageNotFound
	}

	n.log.Info("edit", logger.String("channel", channel), logger.String("ref", ref), logger.String("content", content))
	return nil
}

func (n *consoleNotifier) Delete(_ context.Context, channel, ref string) error {
	n.mu.Lock()
	ok := n.known[ref]
	delete(n.known, ref)
	n.mu.Unlock()
	if !ok {
		return gateway.ErrMessageNotFound
	}

	n.log.Info("delete", logger.String("channel", channel), logger.String("ref", ref))
	return nil
}

func (n *consoleNotifier) Pin(_ context.Context, channel, ref string) error {
	n.log.Info("pin", logger.String("channel", channel), logger.String("ref", ref))
	return nil
}

// presenceSource is the slice of the voice-presence tracker the directory
// reads its raffle pool from.
type presenceSource interface {
	Present(ctx context.Context) ([]string, error)
}

// nameResolver resolves a member by ID for display names.
type nameResolver interface {
	GetByID(ctx context.Context, id string) (*member.Member, error)
}

// staticDirectory answers membership questions from configuration and the
// engine's own records. Roles need a live platform, so those come back
// empty; the active pool is whoever the voice tracker currently holds.
type staticDirectory struct {
	admins   map[string]bool
	presence presenceSource
	names    nameResolver
}

func newStaticDirectory(adminIDs []string, presence presenceSource, names nameResolver) *staticDirectory {
	admins := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &staticDirectory{admins: admins, presence: presence, names: names}
}

func (d *staticDirectory) RoleMembers(context.Context, string) ([]command.Participant, error) {
	return nil, nil
}

func (d *staticDirectory) ActiveParticipants(ctx context.Context) ([]command.Participant, error) {
	ids, err := d.presence.Present(ctx)
	if err != nil {
		return nil, err
	}

	pool := make([]command.Participant, 0, len(ids))
	for _, id := range ids {
		name, err := d.DisplayName(ctx, id)
		if err != nil {
			return nil, err
		}
		pool = append(pool, command.Participant{ID: id, DisplayName: name})
	}
	return pool, nil
}

func (d *staticDirectory) IsAdmin(_ context.Context, userID string) (bool, error) {
	return d.admins[userID], nil
}

func (d *staticDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	m, err := d.names.GetByID(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.DisplayName, nil
}

// detachedRooms is the voice-room controller without a platform: nobody is
// ever in a room, and a disconnect has nothing to do.
type detachedRooms struct{}

func (detachedRooms) InRoom(context.Context, string, string) (bool, error) { return false, nil }
func (detachedRooms) Disconnect(context.Context, string) error             { return nil }
