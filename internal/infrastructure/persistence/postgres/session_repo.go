package postgres

import (
	"context"
	"fmt"

	"github.com/cozykbin/Jipsa-bot/internal/domain/session"
	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
)

// SessionRepository implements session.Repository on PostgreSQL. The
// read-and-delete operations lean on DELETE ... RETURNING so a concurrent
// resolver can win at most once.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

// ══════════════════════════════════════════════════════════════════════════════
// WAKE-UP REQUESTS
// ══════════════════════════════════════════════════════════════════════════════

// SaveWakeupRequest stores a pending request. The insert is the claim on
// the member's request slot; two racing commands collapse to one request.
func (r *SessionRepository) SaveWakeupRequest(ctx context.Context, req *session.WakeupRequest) error {
	query := `
		INSERT INTO wakeup_pending (user_id, notification_ref, requested_at)
		VALUES ($1, $2, $3)`

	_, err := r.conn.Exec(ctx, query, req.UserID, req.NotificationRef, req.RequestedAt)
	if IsUniqueViolation(err) {
		return shared.NewDomainError("session", "SaveWakeupRequest", shared.ErrAlreadyExists,
			fmt.Sprintf("wakeup request already pending for %s", req.UserID))
	}
	if err != nil {
		return shared.WrapError("session", "SaveWakeupRequest", shared.ErrStorage, "insert failed", err)
	}
	return nil
}

// GetWakeupRequest returns the pending request, or shared.ErrNotFound.
func (r *SessionRepository) GetWakeupRequest(ctx context.Context, userID string) (*session.WakeupRequest, error) {
	query := `SELECT user_id, notification_ref, requested_at FROM wakeup_pending WHERE user_id = $1`

	var req session.WakeupRequest
	err := r.conn.QueryRow(ctx, query, userID).Scan(&req.UserID, &req.NotificationRef, &req.RequestedAt)
	if IsNoRows(err) {
		return nil, shared.NewDomainError("session", "GetWakeupRequest", shared.ErrNotFound,
			fmt.Sprintf("no pending wakeup request for %s", userID))
	}
	if err != nil {
		return nil, shared.WrapError("session", "GetWakeupRequest", shared.ErrStorage, "query failed", err)
	}
	return &req, nil
}

// TakeWakeupRequest atomically reads and deletes the pending request.
func (r *SessionRepository) TakeWakeupRequest(ctx context.Context, userID string) (*session.WakeupRequest, error) {
	query := `
		DELETE FROM wakeup_pending WHERE user_id = $1
		RETURNING user_id, notification_ref, requested_at`

	var req session.WakeupRequest
	err := r.conn.QueryRow(ctx, query, userID).Scan(&req.UserID, &req.NotificationRef, &req.RequestedAt)
	if IsNoRows(err) {
		return nil, shared.NewDomainError("session", "TakeWakeupRequest", shared.ErrNotFound,
			fmt.Sprintf("no pending wakeup request for %s", userID))
	}
	if err != nil {
		return nil, shared.WrapError("session", "TakeWakeupRequest", shared.ErrStorage, "query failed", err)
	}
	return &req, nil
}

// DeleteWakeupRequest removes the pending request if present.
func (r *SessionRepository) DeleteWakeupRequest(ctx context.Context, userID string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM wakeup_pending WHERE user_id = $1`, userID)
	if err != nil {
		return shared.WrapError("session", "DeleteWakeupRequest", shared.ErrStorage, "delete failed", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDY SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

const studySessionColumns = `user_id, room, started_at, multiplier, notification_ref`

// SaveStudySession stores an open session, replacing any previous one.
func (r *SessionRepository) SaveStudySession(ctx context.Context, s *session.StudySession) error {
	query := `
		INSERT INTO study_sessions (user_id, room, started_at, multiplier, notification_ref)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			room             = EXCLUDED.room,
			started_at       = EXCLUDED.started_at,
			multiplier       = EXCLUDED.multiplier,
			notification_ref = EXCLUDED.notification_ref`

	_, err := r.conn.Exec(ctx, query, s.UserID, s.Room, s.StartedAt, s.Multiplier, s.NotificationRef)
	if err != nil {
		return shared.WrapError("session", "SaveStudySession", shared.ErrStorage, "upsert failed", err)
	}
	return nil
}

// GetStudySession returns the open session, or shared.ErrNotFound.
func (r *SessionRepository) GetStudySession(ctx context.Context, userID string) (*session.StudySession, error) {
	query := fmt.Sprintf(`SELECT %s FROM study_sessions WHERE user_id = $1`, studySessionColumns)

	var s session.StudySession
	err := r.conn.QueryRow(ctx, query, userID).
		Scan(&s.UserID, &s.Room, &s.StartedAt, &s.Multiplier, &s.NotificationRef)
	if IsNoRows(err) {
		return nil, shared.NewDomainError("session", "GetStudySession", shared.ErrNotFound,
			fmt.Sprintf("no open study session for %s", userID))
	}
	if err != nil {
		return nil, shared.WrapError("session", "GetStudySession", shared.ErrStorage, "query failed", err)
	}
	return &s, nil
}

// TakeStudySession atomically reads and deletes the open session.
func (r *SessionRepository) TakeStudySession(ctx context.Context, userID string) (*session.StudySession, error) {
	query := fmt.Sprintf(`
		DELETE FROM study_sessions WHERE user_id = $1
		RETURNING %s`, studySessionColumns)

	var s session.StudySession
	err := r.conn.QueryRow(ctx, query, userID).
		Scan(&s.UserID, &s.Room, &s.StartedAt, &s.Multiplier, &s.NotificationRef)
	if IsNoRows(err) {
		return nil, shared.NewDomainError("session", "TakeStudySession", shared.ErrNotFound,
			fmt.Sprintf("no open study session for %s", userID))
	}
	if err != nil {
		return nil, shared.WrapError("session", "TakeStudySession", shared.ErrStorage, "query failed", err)
	}
	return &s, nil
}

// DeleteStudySession removes the open session if present.
func (r *SessionRepository) DeleteStudySession(ctx context.Context, userID string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM study_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return shared.WrapError("session", "DeleteStudySession", shared.ErrStorage, "delete failed", err)
	}
	return nil
}

// UpdateStudyMultiplier persists a multiplier change on the open session.
func (r *SessionRepository) UpdateStudyMultiplier(ctx context.Context, userID string, multiplier int) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE study_sessions SET multiplier = $2 WHERE user_id = $1`, userID, multiplier)
	if err != nil {
		return shared.WrapError("session", "UpdateStudyMultiplier", shared.ErrStorage, "update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("session", "UpdateStudyMultiplier", shared.ErrNotFound,
			fmt.Sprintf("no open study session for %s", userID))
	}
	return nil
}

// ListStudySessions returns every open session.
func (r *SessionRepository) ListStudySessions(ctx context.Context) ([]*session.StudySession, error) {
	query := fmt.Sprintf(`SELECT %s FROM study_sessions ORDER BY started_at`, studySessionColumns)

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, shared.WrapError("session", "ListStudySessions", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	var sessions []*session.StudySession
	for rows.Next() {
		var s session.StudySession
		if err := rows.Scan(&s.UserID, &s.Room, &s.StartedAt, &s.Multiplier, &s.NotificationRef); err != nil {
			return nil, shared.WrapError("session", "ListStudySessions", shared.ErrStorage, "scan failed", err)
		}
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}
