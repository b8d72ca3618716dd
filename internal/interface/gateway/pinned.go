package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/cozykbin/Jipsa-bot/internal/domain/ranking"
	"github.com/cozykbin/Jipsa-bot/pkg/logger"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

// PinnedLeaderboard keeps one pinned message showing the current board.
// The message is found through the ref store and recreated whenever the
// stored ref no longer resolves, so a deleted or lost message heals on the
// next refresh.
type PinnedLeaderboard struct {
	notifier Notifier
	refs     RefStore
	present  *Presenter
	channel  string
	log      *logger.Logger
}

// NewPinnedLeaderboard creates the pinned-message renderer.
func NewPinnedLeaderboard(notifier Notifier, refs RefStore, channel string, log *logger.Logger) *PinnedLeaderboard {
	return &PinnedLeaderboard{
		notifier: notifier,
		refs:     refs,
		present:  NewPresenter(),
		channel:  channel,
		log:      log.With(logger.Component("pinned_leaderboard")),
	}
}

// Render edits the pinned message in place, creating and pinning a fresh
// one when the ref is missing or stale.
func (p *PinnedLeaderboard) Render(ctx context.Context, lb *ranking.Leaderboard) error {
	content := p.present.Leaderboard(lb, timeutil.Today())

	ref, err := p.refs.PinnedLeaderboard(ctx)
	if err != nil {
		return fmt.Errorf("pinned leaderboard: read ref: %w", err)
	}

	if ref != "" {
		err = p.notifier.Edit(ctx, p.channel, ref, content)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrMessageNotFound) {
			return fmt.Errorf("pinned leaderboard: edit: %w", err)
		}
		p.log.Info("pinned leaderboard message lost, recreating")
	}

	return p.recreate(ctx, content)
}

func (p *PinnedLeaderboard) recreate(ctx context.Context, content string) error {
	ref, err := p.notifier.Send(ctx, p.channel, content)
	if err != nil {
		return fmt.Errorf("pinned leaderboard: send: %w", err)
	}
	if err := p.notifier.Pin(ctx, p.channel, ref); err != nil {
		// An unpinned board still updates; pinning heals next recreate.
		p.log.Warn("pin failed", logger.Err(err))
	}
	if err := p.refs.SetPinnedLeaderboard(ctx, ref); err != nil {
		return fmt.Errorf("pinned leaderboard: store ref: %w", err)
	}
	return nil
}
