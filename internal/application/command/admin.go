package command

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/cozykbin/Jipsa-bot/internal/domain/ledger"
	"github.com/cozykbin/Jipsa-bot/internal/domain/member"
	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
	"github.com/cozykbin/Jipsa-bot/pkg/logger"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN OPERATIONS
// Manual XP adjustments, the role-wide grant, the raffle, and study-minute
// credits. Every command requires the caller's admin flag, resolved by the
// gateway; rejection is uniform and says nothing about what the command
// would have done.
// ══════════════════════════════════════════════════════════════════════════════

// Participant identifies a member resolved through the platform directory.
type Participant struct {
	ID          string
	DisplayName string
}

// Directory is the slice of the platform the admin handlers need.
type Directory interface {
	// RoleMembers returns every member holding the role.
	RoleMembers(ctx context.Context, role string) ([]Participant, error)

	// ActiveParticipants returns the online, non-bot members currently
	// eligible for the raffle.
	ActiveParticipants(ctx context.Context) ([]Participant, error)
}

// ErrNotAdmin is the uniform rejection for non-admin callers.
var ErrNotAdmin = shared.NewDomainError("admin", "authorize", shared.ErrForbidden, "admin privileges required")

// AdminHandler handles all admin commands.
type AdminHandler struct {
	ledgerStore ledger.Store
	memberRepo  member.Repository
	directory   Directory
	publisher   shared.EventPublisher
	log         *logger.Logger

	// pick is swappable for tests; defaults to rand.Intn.
	pick func(n int) int
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	ledgerStore ledger.Store,
	memberRepo member.Repository,
	directory Directory,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		ledgerStore: ledgerStore,
		memberRepo:  memberRepo,
		directory:   directory,
		publisher:   publisher,
		log:         log.With(logger.Component("admin")),
		pick:        rand.Intn,
	}
}

// AdjustXPCommand grants, removes, or sets a member's experience.
type AdjustXPCommand struct {
	// CallerIsAdmin is the caller's resolved admin flag.
	CallerIsAdmin bool

	TargetID    string
	DisplayName string
	Amount      int
}

// AdjustXPResult reports the adjustment.
type AdjustXPResult struct {
	TargetID    string
	DisplayName string
	Applied     int // actual change (removes report the clamped amount)
	NewTotal    int
	Level       int
	LeveledUp   bool
}

// HandleGrantXP adds a positive amount of experience.
func (h *AdminHandler) HandleGrantXP(ctx context.Context, cmd AdjustXPCommand) (*AdjustXPResult, error) {
	if !cmd.CallerIsAdmin {
		return nil, ErrNotAdmin
	}
	if cmd.TargetID == "" {
		return nil, errors.New("grant_xp: target is required")
	}
	if cmd.Amount <= 0 {
		return nil, shared.NewDomainError("admin", "GrantXP", shared.ErrInvalidInput,
			fmt.Sprintf("amount must be positive, got %d", cmd.Amount))
	}

	m, err := h.memberRepo.AddExperience(ctx, cmd.TargetID, cmd.DisplayName, cmd.Amount)
	if err != nil {
		return nil, fmt.Errorf("grant_xp: %w", err)
	}

	return h.finishAdjust(cmd.TargetID, m, cmd.Amount, cmd.Amount), nil
}

// HandleRemoveXP subtracts experience, clamping at zero.
func (h *AdminHandler) HandleRemoveXP(ctx context.Context, cmd AdjustXPCommand) (*AdjustXPResult, error) {
	if !cmd.CallerIsAdmin {
		return nil, ErrNotAdmin
	}
	if cmd.TargetID == "" {
		return nil, errors.New("remove_xp: target is required")
	}
	if cmd.Amount < 0 {
		return nil, shared.NewDomainError("admin", "RemoveXP", shared.ErrInvalidInput,
			fmt.Sprintf("amount must be non-negative, got %d", cmd.Amount))
	}

	m, removed, err := h.memberRepo.RemoveExperience(ctx, cmd.TargetID, cmd.DisplayName, cmd.Amount)
	if err != nil {
		return nil, fmt.Errorf("remove_xp: %w", err)
	}

	return h.finishAdjust(cmd.TargetID, m, -removed, removed), nil
}

// HandleSetXP replaces a member's experience total outright.
func (h *AdminHandler) HandleSetXP(ctx context.Context, cmd AdjustXPCommand) (*AdjustXPResult, error) {
	if !cmd.CallerIsAdmin {
		return nil, ErrNotAdmin
	}
	if cmd.TargetID == "" {
		return nil, errors.New("set_xp: target is required")
	}
	if cmd.Amount < 0 {
		return nil, shared.NewDomainError("admin", "SetXP", shared.ErrNegativeValue,
			fmt.Sprintf("total must be non-negative, got %d", cmd.Amount))
	}

	before, err := h.memberRepo.GetExperience(ctx, cmd.TargetID)
	if err != nil {
		return nil, fmt.Errorf("set_xp: read current: %w", err)
	}

	m, err := h.memberRepo.SetExperience(ctx, cmd.TargetID, cmd.DisplayName, cmd.Amount)
	if err != nil {
		return nil, fmt.Errorf("set_xp: %w", err)
	}

	delta := m.Experience.Int() - before.Int()
	return h.finishAdjust(cmd.TargetID, m, delta, delta), nil
}

func (h *AdminHandler) finishAdjust(targetID string, m *member.Member, delta, applied int) *AdjustXPResult {
	before := member.XP(m.Experience.Int() - delta)
	leveledUp := m.Level() > member.LevelOf(before)

	_ = h.publisher.Publish(shared.NewXPChangedEvent(targetID, m.DisplayName, delta, m.Experience.Int(), "admin"))
	if leveledUp {
		_ = h.publisher.Publish(shared.NewLevelUpEvent(targetID, m.DisplayName, member.LevelOf(before), m.Level()))
	}

	h.log.Info("admin xp adjustment",
		logger.MemberID(targetID),
		logger.XPAmount(delta),
	)

	if applied < 0 {
		applied = -applied
	}
	return &AdjustXPResult{
		TargetID:    targetID,
		DisplayName: m.DisplayName,
		Applied:     applied,
		NewTotal:    m.Experience.Int(),
		Level:       m.Level(),
		LeveledUp:   leveledUp,
	}
}

// GrantToRoleCommand grants experience to every holder of a role.
type GrantToRoleCommand struct {
	CallerIsAdmin bool
	Role          string
	Amount        int
}

// GrantToRoleResult reports the bulk grant.
type GrantToRoleResult struct {
	Role       string
	Amount     int
	Recipients []AdjustXPResult
}

// HandleGrantToRole grants a positive amount to every member of the role.
// Individual failures are logged and skipped so one bad profile does not
// abort the rest.
func (h *AdminHandler) HandleGrantToRole(ctx context.Context, cmd GrantToRoleCommand) (*GrantToRoleResult, error) {
	if !cmd.CallerIsAdmin {
		return nil, ErrNotAdmin
	}
	if cmd.Role == "" {
		return nil, errors.New("grant_to_role: role is required")
	}
	if cmd.Amount <= 0 {
		return nil, shared.NewDomainError("admin", "GrantToRole", shared.ErrInvalidInput,
			fmt.Sprintf("amount must be positive, got %d", cmd.Amount))
	}

	holders, err := h.directory.RoleMembers(ctx, cmd.Role)
	if err != nil {
		return nil, fmt.Errorf("grant_to_role: resolve role: %w", err)
	}

	result := &GrantToRoleResult{Role: cmd.Role, Amount: cmd.Amount}
	for _, p := range holders {
		m, err := h.memberRepo.AddExperience(ctx, p.ID, p.DisplayName, cmd.Amount)
		if err != nil {
			h.log.Error("role grant skipped member", logger.MemberID(p.ID), logger.Err(err))
			continue
		}
		result.Recipients = append(result.Recipients, *h.finishAdjust(p.ID, m, cmd.Amount, cmd.Amount))
	}

	return result, nil
}

// RaffleXPCommand grants experience to one randomly drawn active member.
type RaffleXPCommand struct {
	CallerIsAdmin bool
	Amount        int
}

// RaffleXPResult reports the draw.
type RaffleXPResult struct {
	// NoParticipants is true when nobody was eligible.
	NoParticipants bool

	DrawID   string
	Winner   AdjustXPResult
	PoolSize int
}

// HandleRaffleXP draws one winner from the active participants.
func (h *AdminHandler) HandleRaffleXP(ctx context.Context, cmd RaffleXPCommand) (*RaffleXPResult, error) {
	if !cmd.CallerIsAdmin {
		return nil, ErrNotAdmin
	}
	if cmd.Amount <= 0 {
		return nil, shared.NewDomainError("admin", "RaffleXP", shared.ErrInvalidInput,
			fmt.Sprintf("amount must be positive, got %d", cmd.Amount))
	}

	pool, err := h.directory.ActiveParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("raffle_xp: resolve pool: %w", err)
	}
	if len(pool) == 0 {
		return &RaffleXPResult{NoParticipants: true}, nil
	}

	winner := pool[h.pick(len(pool))]
	m, err := h.memberRepo.AddExperience(ctx, winner.ID, winner.DisplayName, cmd.Amount)
	if err != nil {
		return nil, fmt.Errorf("raffle_xp: grant: %w", err)
	}

	drawID := uuid.NewString()
	h.log.Info("raffle drawn",
		logger.String("draw_id", drawID),
		logger.MemberID(winner.ID),
		logger.XPAmount(cmd.Amount),
		logger.Int("pool_size", len(pool)),
	)

	return &RaffleXPResult{
		DrawID:   drawID,
		Winner:   *h.finishAdjust(winner.ID, m, cmd.Amount, cmd.Amount),
		PoolSize: len(pool),
	}, nil
}

// CreditStudyMinutesCommand credits study minutes (and the matching base
// XP) to a member, e.g. for sessions the tracker missed.
type CreditStudyMinutesCommand struct {
	CallerIsAdmin bool
	TargetID      string
	DisplayName   string
	Minutes       int
	At            time.Time
}

// CreditStudyMinutesResult reports the credit.
type CreditStudyMinutesResult struct {
	Date     timeutil.Date
	Minutes  int
	DayTotal int
	XPEarned int
	NewTotal int
}

// HandleCreditStudyMinutes applies the manual study credit.
func (h *AdminHandler) HandleCreditStudyMinutes(ctx context.Context, cmd CreditStudyMinutesCommand) (*CreditStudyMinutesResult, error) {
	if !cmd.CallerIsAdmin {
		return nil, ErrNotAdmin
	}
	if cmd.TargetID == "" {
		return nil, errors.New("credit_study: target is required")
	}
	if cmd.Minutes <= 0 {
		return nil, shared.NewDomainError("admin", "CreditStudyMinutes", shared.ErrInvalidInput,
			fmt.Sprintf("minutes must be positive, got %d", cmd.Minutes))
	}

	at := cmd.At
	if at.IsZero() {
		at = timeutil.Now()
	}
	date := timeutil.DateOf(at)

	dayTotal, err := h.ledgerStore.AccumulateStudyMinutes(ctx, cmd.TargetID, date, cmd.Minutes)
	if err != nil {
		return nil, fmt.Errorf("credit_study: accumulate: %w", err)
	}

	xp := ledger.StudyXPFor(cmd.Minutes, 1)
	m, err := h.memberRepo.AddExperience(ctx, cmd.TargetID, cmd.DisplayName, xp)
	if err != nil {
		return nil, fmt.Errorf("credit_study: grant xp: %w", err)
	}

	h.finishAdjust(cmd.TargetID, m, xp, xp)

	return &CreditStudyMinutesResult{
		Date:     date,
		Minutes:  cmd.Minutes,
		DayTotal: dayTotal,
		XPEarned: xp,
		NewTotal: m.Experience.Int(),
	}, nil
}
