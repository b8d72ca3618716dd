package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/domain/ledger"
	"github.com/cozykbin/Jipsa-bot/internal/domain/member"
	"github.com/cozykbin/Jipsa-bot/internal/domain/session"
	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
	"github.com/cozykbin/Jipsa-bot/pkg/logger"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WAKE-UP VERIFICATION
// Two-phase: the member asks, then posts a photo. The first phase parks a
// pending request; the second resolves it, records the wake-up, and grants
// XP with an early-bird bonus before 09:00 KST.
// ══════════════════════════════════════════════════════════════════════════════

// RequestWakeupCommand opens a wake-up verification request.
type RequestWakeupCommand struct {
	UserID string

	// NotificationRef is the prompt message the gateway posted; the
	// resolver deletes it once the proof lands.
	NotificationRef string

	At time.Time
}

// Validate validates the command.
func (c RequestWakeupCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("request_wakeup: user_id is required")
	}
	return nil
}

// RequestWakeupResult reports the request outcome.
type RequestWakeupResult struct {
	// AlreadyVerified is true when today's wake-up is already recorded;
	// no new request is opened.
	AlreadyVerified bool

	// AlreadyPending is true when a live request existed; the duplicate
	// command is a reminder, not a second request.
	AlreadyPending bool

	Date timeutil.Date
}

// RequestWakeupHandler handles the RequestWakeupCommand.
type RequestWakeupHandler struct {
	ledgerStore ledger.Store
	sessionRepo session.Repository
	log         *logger.Logger
}

// NewRequestWakeupHandler creates a new RequestWakeupHandler.
func NewRequestWakeupHandler(
	ledgerStore ledger.Store,
	sessionRepo session.Repository,
	log *logger.Logger,
) *RequestWakeupHandler {
	return &RequestWakeupHandler{
		ledgerStore: ledgerStore,
		sessionRepo: sessionRepo,
		log:         log.With(logger.Component("wakeup")),
	}
}

// Handle executes the request command.
func (h *RequestWakeupHandler) Handle(ctx context.Context, cmd RequestWakeupCommand) (*RequestWakeupResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	at := cmd.At
	if at.IsZero() {
		at = timeutil.Now()
	}
	date := timeutil.DateOf(at)
	result := &RequestWakeupResult{Date: date}

	// Already verified today: nothing to open.
	count, err := h.ledgerStore.CountInRange(ctx, ledger.KindWakeup, cmd.UserID, timeutil.Range{From: date, To: date})
	if err != nil {
		return nil, fmt.Errorf("request_wakeup: check today: %w", err)
	}
	if count > 0 {
		result.AlreadyVerified = true
		return result, nil
	}

	pending, err := h.sessionRepo.GetWakeupRequest(ctx, cmd.UserID)
	switch {
	case err == nil && timeutil.DateOf(pending.RequestedAt) == date:
		result.AlreadyPending = true
		return result, nil
	case err == nil:
		// A request left over from an earlier day never resolves; drop
		// it and open a fresh one.
		if err := h.ClearWakeupRequest(ctx, cmd.UserID); err != nil {
			return nil, fmt.Errorf("request_wakeup: clear stale: %w", err)
		}
	case !errors.Is(err, shared.ErrNotFound):
		return nil, fmt.Errorf("request_wakeup: check pending: %w", err)
	}

	req, err := session.NewWakeupRequest(cmd.UserID, cmd.NotificationRef, at)
	if err != nil {
		return nil, err
	}
	if err := h.sessionRepo.SaveWakeupRequest(ctx, req); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// Lost the race to a concurrent command for the same member.
			result.AlreadyPending = true
			return result, nil
		}
		return nil, fmt.Errorf("request_wakeup: save: %w", err)
	}

	h.log.Info("wakeup request opened", logger.MemberID(cmd.UserID))
	return result, nil
}

// ResolveWakeupCommand resolves a pending request with a photo proof.
// The gateway invokes it for every attachment message in the wake-up
// channel; members without a pending request are ignored.
type ResolveWakeupCommand struct {
	UserID      string
	DisplayName string
	At          time.Time
}

// Validate validates the command.
func (c ResolveWakeupCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("resolve_wakeup: user_id is required")
	}
	return nil
}

// ResolveWakeupResult reports the resolution outcome.
type ResolveWakeupResult struct {
	// Resolved is false when no request was pending for the member.
	Resolved bool

	// AlreadyVerified is true when today's wake-up was already recorded;
	// the request is consumed but no XP is granted.
	AlreadyVerified bool

	// Early is true when the proof landed before the cutoff hour.
	Early bool

	// NotificationRef is the prompt message to clean up.
	NotificationRef string

	Date        timeutil.Date
	XPEarned    int
	NewTotal    int
	Level       int
	LeveledUp   bool
	DisplayName string
}

// ResolveWakeupHandler handles the ResolveWakeupCommand.
type ResolveWakeupHandler struct {
	ledgerStore ledger.Store
	memberRepo  member.Repository
	sessionRepo session.Repository
	publisher   shared.EventPublisher
	log         *logger.Logger
}

// NewResolveWakeupHandler creates a new ResolveWakeupHandler.
func NewResolveWakeupHandler(
	ledgerStore ledger.Store,
	memberRepo member.Repository,
	sessionRepo session.Repository,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *ResolveWakeupHandler {
	return &ResolveWakeupHandler{
		ledgerStore: ledgerStore,
		memberRepo:  memberRepo,
		sessionRepo: sessionRepo,
		publisher:   publisher,
		log:         log.With(logger.Component("wakeup")),
	}
}

// Handle executes the resolve command.
func (h *ResolveWakeupHandler) Handle(ctx context.Context, cmd ResolveWakeupCommand) (*ResolveWakeupResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	at := cmd.At
	if at.IsZero() {
		at = timeutil.Now()
	}
	date := timeutil.DateOf(at)

	// Read-and-delete: a proof consumes at most one request. The request
	// is consumed before the wake-up is recorded: a storage failure on the
	// record step costs the member a re-request, whereas recording first
	// would mark the day done and a retry could never grant the XP.
	req, err := h.sessionRepo.TakeWakeupRequest(ctx, cmd.UserID)
	if errors.Is(err, shared.ErrNotFound) {
		return &ResolveWakeupResult{Resolved: false, Date: date}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve_wakeup: take request: %w", err)
	}

	result := &ResolveWakeupResult{
		Resolved:        true,
		Date:            date,
		NotificationRef: req.NotificationRef,
	}

	already, err := h.ledgerStore.RecordWakeup(ctx, cmd.UserID, date)
	if err != nil {
		return nil, fmt.Errorf("resolve_wakeup: record: %w", err)
	}
	if already {
		result.AlreadyVerified = true
		return result, nil
	}

	xp := ledger.WakeupXPFor(at)
	m, err := h.memberRepo.AddExperience(ctx, cmd.UserID, cmd.DisplayName, xp)
	if err != nil {
		return nil, fmt.Errorf("resolve_wakeup: grant xp: %w", err)
	}

	before := member.XP(m.Experience.Int() - xp)
	result.Early = xp == ledger.WakeupEarlyXP
	result.XPEarned = xp
	result.NewTotal = m.Experience.Int()
	result.Level = m.Level()
	result.LeveledUp = m.Level() > member.LevelOf(before)
	result.DisplayName = m.DisplayName

	_ = h.publisher.Publish(shared.NewWakeupVerifiedEvent(cmd.UserID, date.String(), xp))
	_ = h.publisher.Publish(shared.NewXPChangedEvent(cmd.UserID, m.DisplayName, xp, m.Experience.Int(), "wakeup"))
	if result.LeveledUp {
		_ = h.publisher.Publish(shared.NewLevelUpEvent(cmd.UserID, m.DisplayName, member.LevelOf(before), m.Level()))
	}

	h.log.Info("wakeup verified",
		logger.MemberID(cmd.UserID),
		logger.XPAmount(xp),
		logger.F("early", result.Early),
	)

	return result, nil
}

// ClearWakeupRequest drops a pending request without resolving it: a stale
// request from an earlier day, or one whose prompt message is gone. The
// member can simply ask again.
func (h *RequestWakeupHandler) ClearWakeupRequest(ctx context.Context, userID string) error {
	return h.sessionRepo.DeleteWakeupRequest(ctx, userID)
}
