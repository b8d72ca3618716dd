// Package session holds the short-lived per-member state that bridges
// two-phase interactions: a wake-up request waiting for its photo proof,
// and an open study session in a tracked voice room. Both are persisted so
// a process restart loses nothing that was already underway.
package session

import (
	"context"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
)

// Multiplier values for a study session. The camera signal in the
// camera-required room toggles between them.
const (
	BaseMultiplier   = 1
	CameraMultiplier = 2
)

// CameraGracePeriod is how long a member may sit in the camera-required
// room before the enforcement check fires.
const CameraGracePeriod = 600 * time.Second

// WakeupRequest is a pending wake-up verification: the member has asked,
// and the next attachment they post resolves it. At most one exists per
// member.
type WakeupRequest struct {
	UserID          string
	NotificationRef string // the prompt message the bot posted
	RequestedAt     time.Time
}

// NewWakeupRequest creates a pending request.
func NewWakeupRequest(userID, notificationRef string, now time.Time) (*WakeupRequest, error) {
	if userID == "" {
		return nil, shared.NewDomainError("session", "NewWakeupRequest", shared.ErrInvalidInput, "user id is empty")
	}
	return &WakeupRequest{
		UserID:          userID,
		NotificationRef: notificationRef,
		RequestedAt:     now,
	}, nil
}

// StudySession is an open voice-room study session.
type StudySession struct {
	UserID          string
	Room            string
	StartedAt       time.Time
	Multiplier      int
	NotificationRef string // the enter notice, edited in place on leave
}

// NewStudySession opens a session at the base multiplier.
func NewStudySession(userID, room string, startedAt time.Time) (*StudySession, error) {
	if userID == "" {
		return nil, shared.NewDomainError("session", "NewStudySession", shared.ErrInvalidInput, "user id is empty")
	}
	return &StudySession{
		UserID:     userID,
		Room:       room,
		StartedAt:  startedAt,
		Multiplier: BaseMultiplier,
	}, nil
}

// ToggleCamera flips the multiplier between base and camera bonus and
// returns the new value.
func (s *StudySession) ToggleCamera() int {
	if s.Multiplier == CameraMultiplier {
		s.Multiplier = BaseMultiplier
	} else {
		s.Multiplier = CameraMultiplier
	}
	return s.Multiplier
}

// ElapsedMinutes returns whole minutes since the session opened, rounded
// down. Negative clock skew reads as zero.
func (s *StudySession) ElapsedMinutes(now time.Time) int {
	mins := int(now.Sub(s.StartedAt).Minutes())
	if mins < 0 {
		return 0
	}
	return mins
}

// Repository persists the ephemeral state. One row per member per kind;
// resolving deletes the row.
type Repository interface {
	// SaveWakeupRequest stores a pending request. A live request for the
	// same member returns shared.ErrAlreadyExists.
	SaveWakeupRequest(ctx context.Context, r *WakeupRequest) error

	// GetWakeupRequest returns the pending request, or shared.ErrNotFound.
	GetWakeupRequest(ctx context.Context, userID string) (*WakeupRequest, error)

	// TakeWakeupRequest atomically reads and deletes the pending request,
	// or returns shared.ErrNotFound. Guarantees a proof resolves at most
	// one request even under concurrent attachments.
	TakeWakeupRequest(ctx context.Context, userID string) (*WakeupRequest, error)

	// DeleteWakeupRequest removes the pending request if present.
	DeleteWakeupRequest(ctx context.Context, userID string) error

	// SaveStudySession stores an open session, replacing any previous one.
	SaveStudySession(ctx context.Context, s *StudySession) error

	// GetStudySession returns the open session, or shared.ErrNotFound.
	GetStudySession(ctx context.Context, userID string) (*StudySession, error)

	// TakeStudySession atomically reads and deletes the open session, or
	// returns shared.ErrNotFound.
	TakeStudySession(ctx context.Context, userID string) (*StudySession, error)

	// DeleteStudySession removes the open session if present.
	DeleteStudySession(ctx context.Context, userID string) error

	// UpdateStudyMultiplier persists a multiplier change on the open
	// session, or returns shared.ErrNotFound.
	UpdateStudyMultiplier(ctx context.Context, userID string, multiplier int) error

	// ListStudySessions returns every open session; used on startup to
	// log sessions that survived a restart.
	ListStudySessions(ctx context.Context) ([]*StudySession, error)
}
