package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cozykbin/Jipsa-bot/internal/application/query"
	"github.com/cozykbin/Jipsa-bot/internal/domain/ledger"
	"github.com/cozykbin/Jipsa-bot/internal/domain/member"
	"github.com/cozykbin/Jipsa-bot/internal/domain/ranking"
	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

type stubMembers struct {
	members []*member.Member
}

func (s *stubMembers) GetByID(_ context.Context, id string) (*member.Member, error) {
	for _, m := range s.members {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, shared.NewDomainError("member", "GetByID", shared.ErrNotFound, "not found")
}

func (s *stubMembers) Upsert(context.Context, *member.Member) error { return nil }

func (s *stubMembers) AddExperience(context.Context, string, string, int) (*member.Member, error) {
	return nil, nil
}

func (s *stubMembers) RemoveExperience(context.Context, string, string, int) (*member.Member, int, error) {
	return nil, 0, nil
}

func (s *stubMembers) SetExperience(context.Context, string, string, int) (*member.Member, error) {
	return nil, nil
}

func (s *stubMembers) GetExperience(context.Context, string) (member.XP, error) { return 0, nil }

func (s *stubMembers) TouchCheckIn(context.Context, string, time.Time) error { return nil }

func (s *stubMembers) TopByExperience(_ context.Context, limit int) ([]*member.Member, error) {
	if limit > 0 && len(s.members) > limit {
		return s.members[:limit], nil
	}
	return s.members, nil
}

func (s *stubMembers) ListAll(ctx context.Context) ([]*member.Member, error) {
	return s.TopByExperience(ctx, 0)
}

type stubLedger struct{}

func (stubLedger) RecordAttendance(context.Context, string, timeutil.Date) (bool, error) {
	return false, nil
}

func (stubLedger) RecordWakeup(context.Context, string, timeutil.Date) (bool, error) {
	return false, nil
}

func (stubLedger) AccumulateStudyMinutes(context.Context, string, timeutil.Date, int) (int, error) {
	return 0, nil
}

func (stubLedger) ListDates(context.Context, ledger.Kind, string) ([]timeutil.Date, error) {
	return nil, nil
}

func (stubLedger) CountInRange(context.Context, ledger.Kind, string, timeutil.Range) (int, error) {
	return 0, nil
}

func (stubLedger) CountAll(context.Context, ledger.Kind, string) (int, error) { return 0, nil }

func (stubLedger) SumMinutesInRange(context.Context, string, timeutil.Range) (int, error) {
	return 0, nil
}

func (stubLedger) SumMinutesAll(context.Context, string) (int, error) { return 0, nil }

func (stubLedger) AttendanceCounts(context.Context) (map[string]int, error) {
	return map[string]int{"u1": 3}, nil
}

func (stubLedger) AttendanceDatesByUser(context.Context) (map[string][]timeutil.Date, error) {
	return nil, nil
}

type recordingPinned struct {
	boards []ranking.Board
	err    error
}

func (p *recordingPinned) Render(_ context.Context, lb *ranking.Leaderboard) error {
	p.boards = append(p.boards, lb.Board)
	return p.err
}

type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return nil
}

func newRefreshFixture() (*RefreshLeaderboardJob, *recordingPinned, *recordingPublisher) {
	now := time.Now()
	m1, _ := member.New("u1", "Dana", now)
	m1.Experience = 1600
	m2, _ := member.New("u2", "Miro", now)
	m2.Experience = 250

	boards := query.NewLeaderboardHandler(&stubMembers{members: []*member.Member{m1, m2}}, stubLedger{}, nil)
	pinned := &recordingPinned{}
	publisher := &recordingPublisher{}
	job := NewRefreshLeaderboardJob(boards, pinned, publisher, nil, DefaultRefreshLeaderboardConfig())
	return job, pinned, publisher
}

func TestRefreshLeaderboardJobRun(t *testing.T) {
	job, pinned, publisher := newRefreshFixture()

	require.NoError(t, job.Run(context.Background()))

	// Only the first configured board lands in the pinned message.
	require.Equal(t, []ranking.Board{ranking.BoardExperience}, pinned.boards)

	require.Len(t, publisher.events, 1)
	e, ok := publisher.events[0].(shared.LeaderboardRefreshedEvent)
	require.True(t, ok)
	assert.Len(t, e.Boards, 3)
	// Two members on the experience board, one attendee on the attendance
	// board, nobody with a live streak.
	assert.Equal(t, 3, e.Entries)
}

func TestRefreshLeaderboardJobSurvivesPinnedFailure(t *testing.T) {
	job, pinned, publisher := newRefreshFixture()
	pinned.err = errors.New("channel deleted")

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, publisher.events, 1)
}

func TestRefreshLeaderboardJobMetadata(t *testing.T) {
	job, _, _ := newRefreshFixture()
	assert.Equal(t, "refresh_leaderboard", job.Name())
	assert.NotEmpty(t, job.Description())
}
