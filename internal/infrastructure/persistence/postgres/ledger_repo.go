package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cozykbin/Jipsa-bot/internal/domain/ledger"
	"github.com/cozykbin/Jipsa-bot/internal/domain/member"
	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

// LedgerRepository implements ledger.Store and ledger.Finalizer on
// PostgreSQL. Every mutating call commits before returning.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

func ledgerTable(kind ledger.Kind) (string, error) {
	switch kind {
	case ledger.KindAttendance:
		return "attendance", nil
	case ledger.KindWakeup:
		return "wakeup", nil
	case ledger.KindStudy:
		return "study", nil
	default:
		return "", shared.NewDomainError("ledger", "table", shared.ErrInvalidInput,
			fmt.Sprintf("unknown ledger kind %q", kind))
	}
}

// civilDate converts a scanned DATE value (midnight, zone irrelevant) back
// into a calendar date without any zone conversion.
func civilDate(t time.Time) timeutil.Date {
	y, m, d := t.Date()
	return timeutil.Date{Year: y, Month: m, Day: d}
}

// RecordAttendance inserts the (user, day) attendance row. A pre-existing
// row is reported, not failed: the unique index is the arbiter under
// concurrent check-ins.
func (r *LedgerRepository) RecordAttendance(ctx context.Context, userID string, date timeutil.Date) (bool, error) {
	return r.recordDay(ctx, "attendance", "RecordAttendance", userID, date)
}

// RecordWakeup inserts the (user, day) wake-up row with the same duplicate
// semantics as RecordAttendance.
func (r *LedgerRepository) RecordWakeup(ctx context.Context, userID string, date timeutil.Date) (bool, error) {
	return r.recordDay(ctx, "wakeup", "RecordWakeup", userID, date)
}

func (r *LedgerRepository) recordDay(ctx context.Context, table, op, userID string, date timeutil.Date) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, day) VALUES ($1, $2::date)
		ON CONFLICT (user_id, day) DO NOTHING`, table)

	tag, err := r.conn.Exec(ctx, query, userID, date.String())
	if err != nil {
		return false, shared.WrapError("ledger", op, shared.ErrStorage, "insert failed", err)
	}
	return tag.RowsAffected() == 0, nil
}

// AccumulateStudyMinutes adds minutes to the (user, day) study row and
// returns the day's new total.
func (r *LedgerRepository) AccumulateStudyMinutes(ctx context.Context, userID string, date timeutil.Date, minutes int) (int, error) {
	if minutes < 1 {
		return 0, shared.NewDomainError("ledger", "AccumulateStudyMinutes", shared.ErrInvalidInput,
			fmt.Sprintf("minutes must be >= 1, got %d", minutes))
	}
	return accumulateStudy(ctx, r.conn, userID, date, minutes)
}

func accumulateStudy(ctx context.Context, q Querier, userID string, date timeutil.Date, minutes int) (int, error) {
	query := `
		INSERT INTO study (user_id, day, minutes) VALUES ($1, $2::date, $3)
		ON CONFLICT (user_id, day) DO UPDATE SET
			minutes    = study.minutes + $3,
			updated_at = NOW()
		RETURNING minutes`

	var total int
	if err := q.QueryRow(ctx, query, userID, date.String(), minutes).Scan(&total); err != nil {
		return 0, shared.WrapError("ledger", "AccumulateStudyMinutes", shared.ErrStorage, "upsert failed", err)
	}
	return total, nil
}

// ListDates returns the user's recorded days of the given kind, newest
// first. Study days below the qualification threshold are excluded.
func (r *LedgerRepository) ListDates(ctx context.Context, kind ledger.Kind, userID string) ([]timeutil.Date, error) {
	table, err := ledgerTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT day FROM %s WHERE user_id = $1 ORDER BY day DESC`, table)
	if kind == ledger.KindStudy {
		query = fmt.Sprintf(
			`SELECT day FROM study WHERE user_id = $1 AND minutes >= %d ORDER BY day DESC`,
			ledger.MinStudyMinutes)
	}

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, shared.WrapError("ledger", "ListDates", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	var dates []timeutil.Date
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, shared.WrapError("ledger", "ListDates", shared.ErrStorage, "scan failed", err)
		}
		dates = append(dates, civilDate(day))
	}
	return dates, rows.Err()
}

// CountInRange counts the user's recorded days of the given kind inside
// the range, inclusive on both ends.
func (r *LedgerRepository) CountInRange(ctx context.Context, kind ledger.Kind, userID string, rng timeutil.Range) (int, error) {
	table, err := ledgerTable(kind)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE user_id = $1 AND day BETWEEN $2::date AND $3::date`, table)
	if kind == ledger.KindStudy {
		query = fmt.Sprintf(
			`SELECT COUNT(*) FROM study WHERE user_id = $1 AND day BETWEEN $2::date AND $3::date AND minutes >= %d`,
			ledger.MinStudyMinutes)
	}

	var count int
	err = r.conn.QueryRow(ctx, query, userID, rng.From.String(), rng.To.String()).Scan(&count)
	if err != nil {
		return 0, shared.WrapError("ledger", "CountInRange", shared.ErrStorage, "query failed", err)
	}
	return count, nil
}

// CountAll counts all recorded days of the given kind for the user.
func (r *LedgerRepository) CountAll(ctx context.Context, kind ledger.Kind, userID string) (int, error) {
	table, err := ledgerTable(kind)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = $1`, table)
	if kind == ledger.KindStudy {
		query = fmt.Sprintf(
			`SELECT COUNT(*) FROM study WHERE user_id = $1 AND minutes >= %d`, ledger.MinStudyMinutes)
	}

	var count int
	if err := r.conn.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, shared.WrapError("ledger", "CountAll", shared.ErrStorage, "query failed", err)
	}
	return count, nil
}

// SumMinutesInRange totals the user's study minutes inside the range.
func (r *LedgerRepository) SumMinutesInRange(ctx context.Context, userID string, rng timeutil.Range) (int, error) {
	query := `
		SELECT COALESCE(SUM(minutes), 0) FROM study
		WHERE user_id = $1 AND day BETWEEN $2::date AND $3::date`

	var sum int
	err := r.conn.QueryRow(ctx, query, userID, rng.From.String(), rng.To.String()).Scan(&sum)
	if err != nil {
		return 0, shared.WrapError("ledger", "SumMinutesInRange", shared.ErrStorage, "query failed", err)
	}
	return sum, nil
}

// SumMinutesAll totals the user's study minutes over all time.
func (r *LedgerRepository) SumMinutesAll(ctx context.Context, userID string) (int, error) {
	var sum int
	err := r.conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(minutes), 0) FROM study WHERE user_id = $1`, userID).Scan(&sum)
	if err != nil {
		return 0, shared.WrapError("ledger", "SumMinutesAll", shared.ErrStorage, "query failed", err)
	}
	return sum, nil
}

// AttendanceCounts returns every attendee's lifetime attendance count.
func (r *LedgerRepository) AttendanceCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT user_id, COUNT(*) FROM attendance GROUP BY user_id`)
	if err != nil {
		return nil, shared.WrapError("ledger", "AttendanceCounts", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			userID string
			count  int
		)
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, shared.WrapError("ledger", "AttendanceCounts", shared.ErrStorage, "scan failed", err)
		}
		counts[userID] = count
	}
	return counts, rows.Err()
}

// AttendanceDatesByUser returns every attendee's attendance dates, newest
// first per user.
func (r *LedgerRepository) AttendanceDatesByUser(ctx context.Context) (map[string][]timeutil.Date, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT user_id, day FROM attendance ORDER BY user_id, day DESC`)
	if err != nil {
		return nil, shared.WrapError("ledger", "AttendanceDatesByUser", shared.ErrStorage, "query failed", err)
	}
	defer rows.Close()

	byUser := make(map[string][]timeutil.Date)
	for rows.Next() {
		var (
			userID string
			day    time.Time
		)
		if err := rows.Scan(&userID, &day); err != nil {
			return nil, shared.WrapError("ledger", "AttendanceDatesByUser", shared.ErrStorage, "scan failed", err)
		}
		byUser[userID] = append(byUser[userID], civilDate(day))
	}
	return byUser, rows.Err()
}

// FinalizeStudy credits a finished study session atomically: the minutes
// accumulation, the XP grant, and the open-session delete all commit
// together or not at all.
func (r *LedgerRepository) FinalizeStudy(ctx context.Context, userID, displayName string, date timeutil.Date, minutes, multiplier int) (*ledger.FinalizeStudyResult, error) {
	if minutes < 1 {
		return nil, shared.NewDomainError("ledger", "FinalizeStudy", shared.ErrInvalidInput,
			fmt.Sprintf("minutes must be >= 1, got %d", minutes))
	}

	xpEarned := ledger.StudyXPFor(minutes, multiplier)
	result := &ledger.FinalizeStudyResult{
		Minutes:    minutes,
		Multiplier: multiplier,
		XPEarned:   xpEarned,
	}

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		dayTotal, err := accumulateStudy(ctx, tx, userID, date, minutes)
		if err != nil {
			return err
		}
		result.DayTotal = dayTotal

		var before int64
		err = tx.QueryRow(ctx, `SELECT experience FROM members WHERE id = $1 FOR UPDATE`, userID).Scan(&before)
		if IsNoRows(err) {
			before = 0
		} else if err != nil {
			return err
		}

		query := fmt.Sprintf(`
			INSERT INTO members (id, display_name, experience)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET
				experience   = members.experience + $3,
				display_name = CASE WHEN $2 <> '' THEN $2 ELSE members.display_name END,
				updated_at   = NOW()
			RETURNING %s`, memberColumns)

		m, err := scanMember(tx.QueryRow(ctx, query, userID, displayName, xpEarned))
		if err != nil {
			return err
		}

		result.Member = m
		result.LeveledUp = member.LevelOf(m.Experience) > member.LevelOf(member.XP(before))

		// The delete is the resolution claim. Zero rows means another
		// path already consumed the session; the credit rolls back.
		tag, err := tx.Exec(ctx, `DELETE FROM study_sessions WHERE user_id = $1`, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.NewDomainError("ledger", "FinalizeStudy", shared.ErrNotFound,
				"study session already resolved")
		}
		return nil
	})
	if errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, shared.WrapError("ledger", "FinalizeStudy", shared.ErrStorage, "transaction failed", err)
	}
	return result, nil
}
