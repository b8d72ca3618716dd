// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven parts of the bot:
// level-up announcements, profile message refreshes, mirror exports.
const (
	// Member events
	EventMemberRegistered EventType = "member.registered"
	EventXPChanged        EventType = "member.xp_changed"
	EventLevelUp          EventType = "member.level_up"

	// Ledger events
	EventAttendanceRecorded EventType = "ledger.attendance_recorded"
	EventWakeupVerified     EventType = "ledger.wakeup_verified"
	EventStudyAccumulated   EventType = "ledger.study_accumulated"

	// Session events
	EventStudyStarted EventType = "session.study_started"
	EventStudyEnded   EventType = "session.study_ended"
	EventStudyEvicted EventType = "session.study_evicted"

	// System events
	EventLeaderboardRefreshed EventType = "system.leaderboard_refreshed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:          eventType,
		Timestamp:     time.Now(),
		AggregateId:   aggregateID,
		CorrelationID: uuid.NewString(),
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Member Events
// ═══════════════════════════════════════════════════════════════════════════

// XPChangedEvent is emitted whenever a member's experience changes for any
// reason (check-in, wake-up, study, admin adjustment). Subscribers use it to
// refresh the per-member profile message and the mirror sink.
type XPChangedEvent struct {
	BaseEvent
	MemberID    string `json:"member_id"`
	DisplayName string `json:"display_name"`
	Delta       int    `json:"delta"`
	NewTotal    int    `json:"new_total"`
	Source      string `json:"source"` // e.g., "check_in", "wakeup", "study", "admin"
}

// Payload implements Event interface.
func (e XPChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id":    e.MemberID,
		"display_name": e.DisplayName,
		"delta":        e.Delta,
		"new_total":    e.NewTotal,
		"source":       e.Source,
	}
}

// NewXPChangedEvent creates a new XPChangedEvent.
func NewXPChangedEvent(memberID, displayName string, delta, newTotal int, source string) XPChangedEvent {
	return XPChangedEvent{
		BaseEvent:   NewBaseEvent(EventXPChanged, memberID),
		MemberID:    memberID,
		DisplayName: displayName,
		Delta:       delta,
		NewTotal:    newTotal,
		Source:      source,
	}
}

// LevelUpEvent is emitted when an XP-adding operation pushes a member into a
// strictly higher tier. Emitted at most once per crossing.
type LevelUpEvent struct {
	BaseEvent
	MemberID    string `json:"member_id"`
	DisplayName string `json:"display_name"`
	OldLevel    int    `json:"old_level"`
	NewLevel    int    `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id":    e.MemberID,
		"display_name": e.DisplayName,
		"old_level":    e.OldLevel,
		"new_level":    e.NewLevel,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(memberID, displayName string, oldLevel, newLevel int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent:   NewBaseEvent(EventLevelUp, memberID),
		MemberID:    memberID,
		DisplayName: displayName,
		OldLevel:    oldLevel,
		NewLevel:    newLevel,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Events
// ═══════════════════════════════════════════════════════════════════════════

// AttendanceRecordedEvent is emitted on a member's first check-in of a day.
type AttendanceRecordedEvent struct {
	BaseEvent
	MemberID string `json:"member_id"`
	Date     string `json:"date"`
	Streak   int    `json:"streak"`
}

// Payload implements Event interface.
func (e AttendanceRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id": e.MemberID,
		"date":      e.Date,
		"streak":    e.Streak,
	}
}

// NewAttendanceRecordedEvent creates a new AttendanceRecordedEvent.
func NewAttendanceRecordedEvent(memberID, date string, streak int) AttendanceRecordedEvent {
	return AttendanceRecordedEvent{
		BaseEvent: NewBaseEvent(EventAttendanceRecorded, memberID),
		MemberID:  memberID,
		Date:      date,
		Streak:    streak,
	}
}

// WakeupVerifiedEvent is emitted when a wake-up photo proof is accepted.
type WakeupVerifiedEvent struct {
	BaseEvent
	MemberID string `json:"member_id"`
	Date     string `json:"date"`
	XPEarned int    `json:"xp_earned"`
}

// Payload implements Event interface.
func (e WakeupVerifiedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id": e.MemberID,
		"date":      e.Date,
		"xp_earned": e.XPEarned,
	}
}

// NewWakeupVerifiedEvent creates a new WakeupVerifiedEvent.
func NewWakeupVerifiedEvent(memberID, date string, xpEarned int) WakeupVerifiedEvent {
	return WakeupVerifiedEvent{
		BaseEvent: NewBaseEvent(EventWakeupVerified, memberID),
		MemberID:  memberID,
		Date:      date,
		XPEarned:  xpEarned,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Events
// ═══════════════════════════════════════════════════════════════════════════

// StudyStartedEvent is emitted when a member opens a study session.
type StudyStartedEvent struct {
	BaseEvent
	MemberID string `json:"member_id"`
	Room     string `json:"room"`
}

// Payload implements Event interface.
func (e StudyStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id": e.MemberID,
		"room":      e.Room,
	}
}

// NewStudyStartedEvent creates a new StudyStartedEvent.
func NewStudyStartedEvent(memberID, room string) StudyStartedEvent {
	return StudyStartedEvent{
		BaseEvent: NewBaseEvent(EventStudyStarted, memberID),
		MemberID:  memberID,
		Room:      room,
	}
}

// StudyEndedEvent is emitted when a study session finalizes with credit.
type StudyEndedEvent struct {
	BaseEvent
	MemberID   string `json:"member_id"`
	Date       string `json:"date"`
	Minutes    int    `json:"minutes"`
	Multiplier int    `json:"multiplier"`
	XPEarned   int    `json:"xp_earned"`
	TodayTotal int    `json:"today_total"`
}

// Payload implements Event interface.
func (e StudyEndedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id":   e.MemberID,
		"date":        e.Date,
		"minutes":     e.Minutes,
		"multiplier":  e.Multiplier,
		"xp_earned":   e.XPEarned,
		"today_total": e.TodayTotal,
	}
}

// NewStudyEndedEvent creates a new StudyEndedEvent.
func NewStudyEndedEvent(memberID, date string, minutes, multiplier, xpEarned, todayTotal int) StudyEndedEvent {
	return StudyEndedEvent{
		BaseEvent:  NewBaseEvent(EventStudyEnded, memberID),
		MemberID:   memberID,
		Date:       date,
		Minutes:    minutes,
		Multiplier: multiplier,
		XPEarned:   xpEarned,
		TodayTotal: todayTotal,
	}
}

// StudyEvictedEvent is emitted when the camera-room enforcement check ends a
// session without credit.
type StudyEvictedEvent struct {
	BaseEvent
	MemberID string `json:"member_id"`
	Room     string `json:"room"`
}

// Payload implements Event interface.
func (e StudyEvictedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id": e.MemberID,
		"room":      e.Room,
	}
}

// NewStudyEvictedEvent creates a new StudyEvictedEvent.
func NewStudyEvictedEvent(memberID, room string) StudyEvictedEvent {
	return StudyEvictedEvent{
		BaseEvent: NewBaseEvent(EventStudyEvicted, memberID),
		MemberID:  memberID,
		Room:      room,
	}
}

// LeaderboardRefreshedEvent is emitted after the periodic refresh job
// recomputes the boards.
type LeaderboardRefreshedEvent struct {
	BaseEvent
	Boards  []string `json:"boards"`
	Entries int      `json:"entries"`
}

// Payload implements Event interface.
func (e LeaderboardRefreshedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"boards":  e.Boards,
		"entries": e.Entries,
	}
}

// NewLeaderboardRefreshedEvent creates a new LeaderboardRefreshedEvent.
func NewLeaderboardRefreshedEvent(boards []string, entries int) LeaderboardRefreshedEvent {
	return LeaderboardRefreshedEvent{
		BaseEvent: NewBaseEvent(EventLeaderboardRefreshed, "leaderboard"),
		Boards:    boards,
		Entries:   entries,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to all subscribed handlers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber

	// Close shuts down the bus and waits for in-flight handlers.
	Close() error
}
