// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/domain/ledger"
	"github.com/cozykbin/Jipsa-bot/internal/domain/member"
	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
	"github.com/cozykbin/Jipsa-bot/pkg/logger"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK-IN COMMAND
// First check-in of a Seoul civil day records attendance and grants XP.
// A repeat check-in is a reported outcome, not an error.
// ══════════════════════════════════════════════════════════════════════════════

// CheckInCommand contains the data for a daily check-in.
type CheckInCommand struct {
	// UserID is the platform ID of the member checking in.
	UserID string

	// DisplayName refreshes the cached name on the profile.
	DisplayName string

	// At is the check-in instant (defaults to now if zero).
	At time.Time
}

// Validate validates the command.
func (c CheckInCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("check_in: user_id is required")
	}
	return nil
}

// CheckInResult contains the result of a check-in.
type CheckInResult struct {
	// AlreadyCheckedIn is true when today's attendance already existed.
	// No XP is granted in that case.
	AlreadyCheckedIn bool

	Date        timeutil.Date
	Streak      int
	TotalDays   int
	XPEarned    int
	NewTotal    int
	Level       int
	LeveledUp   bool
	DisplayName string
}

// CheckInHandler handles the CheckInCommand.
type CheckInHandler struct {
	ledgerStore ledger.Store
	memberRepo  member.Repository
	publisher   shared.EventPublisher
	log         *logger.Logger
}

// NewCheckInHandler creates a new CheckInHandler.
func NewCheckInHandler(
	ledgerStore ledger.Store,
	memberRepo member.Repository,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *CheckInHandler {
	return &CheckInHandler{
		ledgerStore: ledgerStore,
		memberRepo:  memberRepo,
		publisher:   publisher,
		log:         log.With(logger.Component("check_in")),
	}
}

// Handle executes the check-in command.
func (h *CheckInHandler) Handle(ctx context.Context, cmd CheckInCommand) (*CheckInResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	at := cmd.At
	if at.IsZero() {
		at = timeutil.Now()
	}
	date := timeutil.DateOf(at)

	already, err := h.ledgerStore.RecordAttendance(ctx, cmd.UserID, date)
	if err != nil {
		return nil, fmt.Errorf("check_in: record attendance: %w", err)
	}

	dates, err := h.ledgerStore.ListDates(ctx, ledger.KindAttendance, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("check_in: list dates: %w", err)
	}
	streak := ledger.ComputeStreak(date, dates)

	total, err := h.ledgerStore.CountAll(ctx, ledger.KindAttendance, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("check_in: count attendance: %w", err)
	}

	result := &CheckInResult{
		AlreadyCheckedIn: already,
		Date:             date,
		Streak:           streak,
		TotalDays:        total,
	}

	if already {
		m, err := h.memberRepo.GetByID(ctx, cmd.UserID)
		if err == nil {
			result.NewTotal = m.Experience.Int()
			result.Level = m.Level()
			result.DisplayName = m.DisplayName
		}
		return result, nil
	}

	m, err := h.memberRepo.AddExperience(ctx, cmd.UserID, cmd.DisplayName, ledger.CheckInXP)
	if err != nil {
		return nil, fmt.Errorf("check_in: grant xp: %w", err)
	}
	if err := h.memberRepo.TouchCheckIn(ctx, cmd.UserID, at); err != nil {
		return nil, fmt.Errorf("check_in: touch profile: %w", err)
	}

	before := member.XP(m.Experience.Int() - ledger.CheckInXP)
	result.XPEarned = ledger.CheckInXP
	result.NewTotal = m.Experience.Int()
	result.Level = m.Level()
	result.LeveledUp = m.Level() > member.LevelOf(before)
	result.DisplayName = m.DisplayName

	h.publishOutcome(cmd, result, m, before)

	h.log.Info("check-in recorded",
		logger.MemberID(cmd.UserID),
		logger.Streak(streak),
		logger.XPAmount(ledger.CheckInXP),
	)

	return result, nil
}

func (h *CheckInHandler) publishOutcome(cmd CheckInCommand, result *CheckInResult, m *member.Member, before member.XP) {
	_ = h.publisher.Publish(shared.NewAttendanceRecordedEvent(cmd.UserID, result.Date.String(), result.Streak))
	_ = h.publisher.Publish(shared.NewXPChangedEvent(
		cmd.UserID, m.DisplayName, ledger.CheckInXP, m.Experience.Int(), "check_in"))
	if result.LeveledUp {
		_ = h.publisher.Publish(shared.NewLevelUpEvent(
			cmd.UserID, m.DisplayName, member.LevelOf(before), m.Level()))
	}
}
