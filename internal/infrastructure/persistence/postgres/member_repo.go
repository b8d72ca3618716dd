package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cozykbin/Jipsa-bot/internal/domain/member"
	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
)

// MemberRepository implements member.Repository on PostgreSQL.
type MemberRepository struct {
	conn *Connection
}

// NewMemberRepository creates a new member repository.
func NewMemberRepository(conn *Connection) *MemberRepository {
	return &MemberRepository{conn: conn}
}

const memberColumns = `id, display_name, experience, checked_in_at, created_at, updated_at`

func scanMember(row pgx.Row) (*member.Member, error) {
	var (
		m         member.Member
		xp        int64
		checkedIn *time.Time
	)
	if err := row.Scan(&m.ID, &m.DisplayName, &xp, &checkedIn, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Experience = member.XP(xp)
	if checkedIn != nil {
		m.CheckedInAt = *checkedIn
	}
	return &m, nil
}

// GetByID returns the profile, or shared.ErrNotFound.
func (r *MemberRepository) GetByID(ctx context.Context, id string) (*member.Member, error) {
	query := fmt.Sprintf(`SELECT %s FROM members WHERE id = $1`, memberColumns)

	m, err := scanMember(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("member", "GetByID", shared.ErrNotFound,
				fmt.Sprintf("member %s not found", id))
		}
		return nil, shared.WrapError("member", "GetByID", shared.ErrStorage, "query failed", err)
	}
	return m, nil
}

// Upsert inserts or fully updates a profile.
func (r *MemberRepository) Upsert(ctx context.Context, m *member.Member) error {
	query := `
		INSERT INTO members (id, display_name, experience, checked_in_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			display_name  = EXCLUDED.display_name,
			experience    = EXCLUDED.experience,
			checked_in_at = EXCLUDED.checked_in_at,
			updated_at    = EXCLUDED.updated_at
	`

	var checkedIn *time.Time
	if !m.CheckedInAt.IsZero() {
		checkedIn = &m.CheckedInAt
	}

	_, err := r.conn.Exec(ctx, query, m.ID, m.DisplayName, int64(m.Experience), checkedIn, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return shared.WrapError("member", "Upsert", shared.ErrStorage, "query failed", err)
	}
	return nil
}

// AddExperience atomically applies an XP delta, creating the profile on
// first contact. The stored total is clamped at zero; a non-empty display
// name refreshes the cached one.
func (r *MemberRepository) AddExperience(ctx context.Context, id, displayName string, delta int) (*member.Member, error) {
	query := fmt.Sprintf(`
		INSERT INTO members (id, display_name, experience)
		VALUES ($1, $2, GREATEST(0, $3::bigint))
		ON CONFLICT (id) DO UPDATE SET
			experience   = GREATEST(0, members.experience + $3),
			display_name = CASE WHEN $2 <> '' THEN $2 ELSE members.display_name END,
			updated_at   = NOW()
		RETURNING %s`, memberColumns)

	m, err := scanMember(r.conn.QueryRow(ctx, query, id, displayName, delta))
	if err != nil {
		return nil, shared.WrapError("member", "AddExperience", shared.ErrStorage, "query failed", err)
	}
	return m, nil
}

// RemoveExperience subtracts up to amount, clamping at zero, and reports
// how much was actually removed. Runs in one transaction so concurrent
// adjustments never lose updates.
func (r *MemberRepository) RemoveExperience(ctx context.Context, id, displayName string, amount int) (*member.Member, int, error) {
	var (
		result  *member.Member
		removed int
	)

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var before int64
		err := tx.QueryRow(ctx, `SELECT experience FROM members WHERE id = $1 FOR UPDATE`, id).Scan(&before)
		if IsNoRows(err) {
			before = 0
		} else if err != nil {
			return err
		}

		query := fmt.Sprintf(`
			INSERT INTO members (id, display_name, experience)
			VALUES ($1, $2, 0)
			ON CONFLICT (id) DO UPDATE SET
				experience   = GREATEST(0, members.experience - $3),
				display_name = CASE WHEN $2 <> '' THEN $2 ELSE members.display_name END,
				updated_at   = NOW()
			RETURNING %s`, memberColumns)

		m, err := scanMember(tx.QueryRow(ctx, query, id, displayName, amount))
		if err != nil {
			return err
		}

		result = m
		removed = int(before) - m.Experience.Int()
		return nil
	})
	if err != nil {
		return nil, 0, shared.WrapError("member", "RemoveExperience", shared.ErrStorage, "query failed", err)
	}
	return result, removed, nil
}

// SetExperience atomically replaces the stored total.
func (r *MemberRepository) SetExperience(ctx context.Context, id, displayName string, total int) (*member.Member, error) {
	query := fmt.Sprintf(`
		INSERT INTO members (id, display_name, experience)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			experience   = EXCLUDED.experience,
			display_name = CASE WHEN $2 <> '' THEN $2 ELSE members.display_name END,
			updated_at   = NOW()
		RETURNING %s`, memberColumns)

	m, err := scanMember(r.conn.QueryRow(ctx, query, id, displayName, total))
	if err != nil {
		return nil, shared.WrapError("member", "SetExperience", shared.ErrStorage, "query failed", err)
	}
	return m, nil
}

// GetExperience returns the stored total, or 0 for an unknown member.
func (r *MemberRepository) GetExperience(ctx context.Context, id string) (member.XP, error) {
	var xp int64
	err := r.conn.QueryRow(ctx, `SELECT experience FROM members WHERE id = $1`, id).Scan(&xp)
	if IsNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, shared.WrapError("member", "GetExperience", shared.ErrStorage, "query failed", err)
	}
	return member.XP(xp), nil
}

// TouchCheckIn records the check-in instant on the profile.
func (r *MemberRepository) TouchCheckIn(ctx context.Context, id string, at time.Time) error {
	_, err := r.conn.Exec(ctx,
		`UPDATE members SET checked_in_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return shared.WrapError("member", "TouchCheckIn", shared.ErrStorage, "query failed", err)
	}
	return nil
}

// TopByExperience returns up to limit profiles ordered by experience
// descending, earliest-registered first among ties.
func (r *MemberRepository) TopByExperience(ctx context.Context, limit int) ([]*member.Member, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM members
		ORDER BY experience DESC, created_at ASC
		LIMIT $1`, memberColumns)

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, shared.WrapError("member", "TopByExperience", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	return collectMembers(rows)
}

// ListAll returns every profile.
func (r *MemberRepository) ListAll(ctx context.Context) ([]*member.Member, error) {
	query := fmt.Sprintf(`SELECT %s FROM members ORDER BY experience DESC`, memberColumns)

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, shared.WrapError("member", "ListAll", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	return collectMembers(rows)
}

func collectMembers(rows pgx.Rows) ([]*member.Member, error) {
	var members []*member.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, shared.WrapError("member", "scan", shared.ErrStorage, "query failed", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("member", "rows", shared.ErrStorage, "query failed", err)
	}
	return members, nil
}
