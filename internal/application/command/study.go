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
// STUDY SESSIONS
// Entering a tracked voice room opens a session; leaving all tracked rooms
// finalizes it. The camera-required room doubles XP but enforces the camera
// with a deferred check.
// ══════════════════════════════════════════════════════════════════════════════

// RoomController is the slice of the platform the study handlers need:
// occupancy checks for the deferred camera enforcement, and the ability to
// disconnect a member who failed it.
type RoomController interface {
	// InRoom reports whether the member is currently in the room.
	InRoom(ctx context.Context, userID, room string) (bool, error)

	// Disconnect removes the member from voice.
	Disconnect(ctx context.Context, userID string) error
}

// EnterStudyRoomCommand opens a study session.
type EnterStudyRoomCommand struct {
	UserID          string
	DisplayName     string
	Room            string
	CameraRequired  bool
	NotificationRef string
	At              time.Time
}

// Validate validates the command.
func (c EnterStudyRoomCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("enter_study: user_id is required")
	}
	if c.Room == "" {
		return errors.New("enter_study: room is required")
	}
	return nil
}

// EnterStudyRoomResult reports the session open.
type EnterStudyRoomResult struct {
	// Reopened is true when an open session already existed and was
	// replaced (e.g. a room-to-room move).
	Reopened bool

	StartedAt time.Time
}

// StudyHandler handles the study-session lifecycle: enter, camera signal,
// leave, and the deferred camera enforcement.
type StudyHandler struct {
	ledgerStore ledger.Store
	finalizer   ledger.Finalizer
	sessionRepo session.Repository
	rooms       RoomController
	cameraRoom  string
	publisher   shared.EventPublisher
	log         *logger.Logger

	// afterFunc is swappable for tests; defaults to time.AfterFunc.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// NewStudyHandler creates a new StudyHandler. cameraRoom names the one
// tracked room where the camera bonus applies.
func NewStudyHandler(
	ledgerStore ledger.Store,
	finalizer ledger.Finalizer,
	sessionRepo session.Repository,
	rooms RoomController,
	cameraRoom string,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *StudyHandler {
	return &StudyHandler{
		ledgerStore: ledgerStore,
		finalizer:   finalizer,
		sessionRepo: sessionRepo,
		rooms:       rooms,
		cameraRoom:  cameraRoom,
		publisher:   publisher,
		log:         log.With(logger.Component("study")),
		afterFunc:   time.AfterFunc,
	}
}

// HandleEnter opens a session when a member joins a tracked voice room.
func (h *StudyHandler) HandleEnter(ctx context.Context, cmd EnterStudyRoomCommand) (*EnterStudyRoomResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	at := cmd.At
	if at.IsZero() {
		at = timeutil.Now()
	}

	result := &EnterStudyRoomResult{StartedAt: at}
	if _, err := h.sessionRepo.GetStudySession(ctx, cmd.UserID); err == nil {
		result.Reopened = true
	}

	s, err := session.NewStudySession(cmd.UserID, cmd.Room, at)
	if err != nil {
		return nil, err
	}
	s.NotificationRef = cmd.NotificationRef

	if err := h.sessionRepo.SaveStudySession(ctx, s); err != nil {
		return nil, fmt.Errorf("enter_study: save session: %w", err)
	}

	_ = h.publisher.Publish(shared.NewStudyStartedEvent(cmd.UserID, cmd.Room))

	if cmd.CameraRequired {
		h.scheduleCameraCheck(cmd.UserID, cmd.Room)
	}

	h.log.Info("study session opened",
		logger.MemberID(cmd.UserID),
		logger.Room(cmd.Room),
	)

	return result, nil
}

// CameraSignalCommand toggles the camera bonus on an open session.
type CameraSignalCommand struct {
	UserID string
}

// CameraSignalResult reports the toggle outcome.
type CameraSignalResult struct {
	// NoSession is true when the member has no open session.
	NoSession bool

	Multiplier int
}

// HandleCameraSignal flips the session multiplier between base and camera
// bonus. The bonus is confined to the camera room; signals from sessions in
// any other tracked room leave the rate untouched.
func (h *StudyHandler) HandleCameraSignal(ctx context.Context, cmd CameraSignalCommand) (*CameraSignalResult, error) {
	if cmd.UserID == "" {
		return nil, errors.New("camera_signal: user_id is required")
	}

	s, err := h.sessionRepo.GetStudySession(ctx, cmd.UserID)
	if errors.Is(err, shared.ErrNotFound) {
		return &CameraSignalResult{NoSession: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("camera_signal: get session: %w", err)
	}

	if s.Room != h.cameraRoom {
		h.log.Debug("camera signal outside the camera room ignored",
			logger.MemberID(cmd.UserID),
			logger.Room(s.Room),
		)
		return &CameraSignalResult{Multiplier: s.Multiplier}, nil
	}

	multiplier := s.ToggleCamera()
	if err := h.sessionRepo.UpdateStudyMultiplier(ctx, cmd.UserID, multiplier); err != nil {
		return nil, fmt.Errorf("camera_signal: persist: %w", err)
	}

	h.log.Info("camera signal",
		logger.MemberID(cmd.UserID),
		logger.Int("multiplier", multiplier),
	)

	return &CameraSignalResult{Multiplier: multiplier}, nil
}

// LeaveStudyRoomCommand finalizes an open session when the member leaves
// all tracked rooms.
type LeaveStudyRoomCommand struct {
	UserID      string
	DisplayName string
	At          time.Time
}

// Validate validates the command.
func (c LeaveStudyRoomCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("leave_study: user_id is required")
	}
	return nil
}

// LeaveStudyRoomResult reports the finalization outcome.
type LeaveStudyRoomResult struct {
	// NoSession is true when no session was open; the leave is ignored.
	NoSession bool

	// TooShort is true when the session stayed under the credit threshold.
	// Nothing is written and no XP is granted.
	TooShort bool

	// NotificationRef is the enter notice to edit in place.
	NotificationRef string

	Date       timeutil.Date
	Minutes    int
	Multiplier int
	XPEarned   int
	DayTotal   int
	NewTotal   int
	Level      int
	LeveledUp  bool
}

// HandleLeave finalizes the session. The ledger write, the XP grant, and
// the session delete are one atomic unit inside the finalizer.
func (h *StudyHandler) HandleLeave(ctx context.Context, cmd LeaveStudyRoomCommand) (*LeaveStudyRoomResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	at := cmd.At
	if at.IsZero() {
		at = timeutil.Now()
	}
	date := timeutil.DateOf(at)

	s, err := h.sessionRepo.GetStudySession(ctx, cmd.UserID)
	if errors.Is(err, shared.ErrNotFound) {
		return &LeaveStudyRoomResult{NoSession: true, Date: date}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("leave_study: get session: %w", err)
	}

	result := &LeaveStudyRoomResult{
		Date:            date,
		Minutes:         s.ElapsedMinutes(at),
		Multiplier:      s.Multiplier,
		NotificationRef: s.NotificationRef,
	}

	if result.Minutes < ledger.MinStudyMinutes {
		result.TooShort = true
		if err := h.sessionRepo.DeleteStudySession(ctx, cmd.UserID); err != nil {
			return nil, fmt.Errorf("leave_study: drop short session: %w", err)
		}
		h.log.Info("study session too short",
			logger.MemberID(cmd.UserID),
			logger.Minutes(result.Minutes),
		)
		return result, nil
	}

	fin, err := h.finalizer.FinalizeStudy(ctx, cmd.UserID, cmd.DisplayName, date, result.Minutes, s.Multiplier)
	if errors.Is(err, shared.ErrNotFound) {
		// The eviction timer got there first; the session is resolved
		// and nothing was credited.
		return &LeaveStudyRoomResult{NoSession: true, Date: date}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("leave_study: finalize: %w", err)
	}

	result.XPEarned = fin.XPEarned
	result.DayTotal = fin.DayTotal
	result.NewTotal = fin.Member.Experience.Int()
	result.Level = fin.Member.Level()
	result.LeveledUp = fin.LeveledUp

	_ = h.publisher.Publish(shared.NewStudyEndedEvent(
		cmd.UserID, date.String(), fin.Minutes, fin.Multiplier, fin.XPEarned, fin.DayTotal))
	_ = h.publisher.Publish(shared.NewXPChangedEvent(
		cmd.UserID, fin.Member.DisplayName, fin.XPEarned, result.NewTotal, "study"))
	if fin.LeveledUp {
		before := member.LevelOf(member.XP(result.NewTotal - fin.XPEarned))
		_ = h.publisher.Publish(shared.NewLevelUpEvent(
			cmd.UserID, fin.Member.DisplayName, before, result.Level))
	}

	h.log.Info("study session finalized",
		logger.MemberID(cmd.UserID),
		logger.Minutes(fin.Minutes),
		logger.XPAmount(fin.XPEarned),
	)

	return result, nil
}

// scheduleCameraCheck arms the one-shot deferred enforcement. The timer is
// best effort and does not survive a restart; at fire time the persisted
// session and the live room occupancy are re-read, so a stale timer is a
// no-op.
func (h *StudyHandler) scheduleCameraCheck(userID, room string) {
	h.afterFunc(session.CameraGracePeriod, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := h.enforceCamera(ctx, userID, room); err != nil {
			h.log.Error("camera enforcement failed",
				logger.MemberID(userID),
				logger.Err(err),
			)
		}
	})
}

// enforceCamera ends a camera-less session in the camera-required room
// without credit and disconnects the member. Any state change since the
// timer was armed defuses it.
func (h *StudyHandler) enforceCamera(ctx context.Context, userID, room string) error {
	s, err := h.sessionRepo.GetStudySession(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if s.Room != room || s.Multiplier != session.BaseMultiplier {
		return nil
	}

	inRoom, err := h.rooms.InRoom(ctx, userID, room)
	if err != nil {
		return err
	}
	if !inRoom {
		return nil
	}

	// Consuming the session is the resolution claim; losing the race to a
	// concurrent leave defuses the eviction.
	if _, err := h.sessionRepo.TakeStudySession(ctx, userID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := h.rooms.Disconnect(ctx, userID); err != nil {
		h.log.Warn("eviction disconnect failed", logger.MemberID(userID), logger.Err(err))
	}

	_ = h.publisher.Publish(shared.NewStudyEvictedEvent(userID, room))

	h.log.Info("session evicted for missing camera",
		logger.MemberID(userID),
		logger.Room(room),
	)

	return nil
}
