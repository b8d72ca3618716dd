// Package member contains the member profile aggregate and the experience
// and level model built on top of it.
package member

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
)

// XP is a cumulative experience total. It never goes below zero.
type XP int

// Add returns the total increased by delta, clamped at zero.
func (x XP) Add(delta int) XP {
	next := int(x) + delta
	if next < 0 {
		next = 0
	}
	return XP(next)
}

// Int returns the total as a plain int.
func (x XP) Int() int { return int(x) }

// Member is the profile aggregate: one row per community member who has
// ever earned experience.
type Member struct {
	ID          string // platform user id, opaque to the domain
	DisplayName string
	Experience  XP
	CheckedInAt time.Time // last check-in instant, zero if never
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New creates a member profile with zero experience.
func New(id, displayName string, now time.Time) (*Member, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.NewDomainError("member", "New", shared.ErrInvalidInput, "member id is empty")
	}
	return &Member{
		ID:          id,
		DisplayName: strings.TrimSpace(displayName),
		Experience:  0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Level returns the member's current level.
func (m *Member) Level() int {
	return LevelOf(m.Experience)
}

// ApplyXP adjusts the experience total by delta (positive or negative,
// clamped at zero) and reports whether the adjustment crossed into a
// strictly higher level.
func (m *Member) ApplyXP(delta int, now time.Time) (leveledUp bool) {
	before := LevelOf(m.Experience)
	m.Experience = m.Experience.Add(delta)
	m.UpdatedAt = now
	return LevelOf(m.Experience) > before
}

// SetXP replaces the experience total outright. Used by admin overrides.
func (m *Member) SetXP(total int, now time.Time) error {
	if total < 0 {
		return shared.NewDomainError("member", "SetXP", shared.ErrNegativeValue,
			fmt.Sprintf("experience total %d is negative", total))
	}
	m.Experience = XP(total)
	m.UpdatedAt = now
	return nil
}

// Rename updates the cached display name.
func (m *Member) Rename(displayName string) {
	m.DisplayName = strings.TrimSpace(displayName)
}

// Repository persists member profiles.
type Repository interface {
	// GetByID returns the profile, or shared.ErrNotFound.
	GetByID(ctx context.Context, id string) (*Member, error)

	// Upsert inserts or fully updates a profile.
	Upsert(ctx context.Context, m *Member) error

	// AddExperience atomically applies an XP delta to the stored total,
	// creating the profile if it does not exist, and returns the profile
	// after the change. The stored total never goes below zero.
	AddExperience(ctx context.Context, id, displayName string, delta int) (*Member, error)

	// RemoveExperience atomically subtracts up to amount from the stored
	// total, clamping at zero, and returns the profile after the change
	// plus the amount actually removed.
	RemoveExperience(ctx context.Context, id, displayName string, amount int) (*Member, int, error)

	// SetExperience atomically replaces the stored total.
	SetExperience(ctx context.Context, id, displayName string, total int) (*Member, error)

	// GetExperience returns the stored total, or 0 for an unknown member.
	GetExperience(ctx context.Context, id string) (XP, error)

	// TouchCheckIn records the check-in instant on the profile.
	TouchCheckIn(ctx context.Context, id string, at time.Time) error

	// TopByExperience returns up to limit profiles ordered by experience
	// descending.
	TopByExperience(ctx context.Context, limit int) ([]*Member, error)

	// ListAll returns every profile; used by the mirror export.
	ListAll(ctx context.Context) ([]*Member, error)
}
