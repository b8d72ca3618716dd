package query

import (
	"context"
	"sort"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/domain/ledger"
	"github.com/cozykbin/Jipsa-bot/internal/domain/member"
	"github.com/cozykbin/Jipsa-bot/internal/domain/ranking"
	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

func day(s string) timeutil.Date { return timeutil.MustParseDate(s) }

// ── ledger store ────────────────────────────────────────────────────────────

type dayKey struct {
	userID string
	date   timeutil.Date
}

type fakeLedger struct {
	attendance map[dayKey]bool
	wakeup     map[dayKey]bool
	study      map[dayKey]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		attendance: make(map[dayKey]bool),
		wakeup:     make(map[dayKey]bool),
		study:      make(map[dayKey]int),
	}
}

func (f *fakeLedger) attend(userID string, dates ...timeutil.Date) {
	for _, d := range dates {
		f.attendance[dayKey{userID, d}] = true
	}
}

func (f *fakeLedger) wake(userID string, dates ...timeutil.Date) {
	for _, d := range dates {
		f.wakeup[dayKey{userID, d}] = true
	}
}

func (f *fakeLedger) studied(userID string, d timeutil.Date, minutes int) {
	f.study[dayKey{userID, d}] += minutes
}

func (f *fakeLedger) RecordAttendance(_ context.Context, userID string, date timeutil.Date) (bool, error) {
	k := dayKey{userID, date}
	if f.attendance[k] {
		return true, nil
	}
	f.attendance[k] = true
	return false, nil
}

func (f *fakeLedger) RecordWakeup(_ context.Context, userID string, date timeutil.Date) (bool, error) {
	k := dayKey{userID, date}
	if f.wakeup[k] {
		return true, nil
	}
	f.wakeup[k] = true
	return false, nil
}

func (f *fakeLedger) AccumulateStudyMinutes(_ context.Context, userID string, date timeutil.Date, minutes int) (int, error) {
	k := dayKey{userID, date}
	f.study[k] += minutes
	return f.study[k], nil
}

func (f *fakeLedger) ListDates(_ context.Context, kind ledger.Kind, userID string) ([]timeutil.Date, error) {
	var dates []timeutil.Date
	switch kind {
	case ledger.KindAttendance:
		for k := range f.attendance {
			if k.userID == userID {
				dates = append(dates, k.date)
			}
		}
	case ledger.KindWakeup:
		for k := range f.wakeup {
			if k.userID == userID {
				dates = append(dates, k.date)
			}
		}
	case ledger.KindStudy:
		for k, mins := range f.study {
			if k.userID == userID && mins >= ledger.MinStudyMinutes {
				dates = append(dates, k.date)
			}
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	return dates, nil
}

func (f *fakeLedger) CountInRange(ctx context.Context, kind ledger.Kind, userID string, r timeutil.Range) (int, error) {
	dates, err := f.ListDates(ctx, kind, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, d := range dates {
		if r.Contains(d) {
			count++
		}
	}
	return count, nil
}

func (f *fakeLedger) CountAll(ctx context.Context, kind ledger.Kind, userID string) (int, error) {
	dates, err := f.ListDates(ctx, kind, userID)
	return len(dates), err
}

func (f *fakeLedger) SumMinutesInRange(_ context.Context, userID string, r timeutil.Range) (int, error) {
	sum := 0
	for k, mins := range f.study {
		if k.userID == userID && r.Contains(k.date) {
			sum += mins
		}
	}
	return sum, nil
}

func (f *fakeLedger) SumMinutesAll(_ context.Context, userID string) (int, error) {
	sum := 0
	for k, mins := range f.study {
		if k.userID == userID {
			sum += mins
		}
	}
	return sum, nil
}

func (f *fakeLedger) AttendanceCounts(_ context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for k := range f.attendance {
		counts[k.userID]++
	}
	return counts, nil
}

func (f *fakeLedger) AttendanceDatesByUser(_ context.Context) (map[string][]timeutil.Date, error) {
	byUser := make(map[string][]timeutil.Date)
	for k := range f.attendance {
		byUser[k.userID] = append(byUser[k.userID], k.date)
	}
	return byUser, nil
}

// ── member repository ───────────────────────────────────────────────────────

type fakeMembers struct {
	members map[string]*member.Member
	order   []string // insertion order, the registration-time tiebreak
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{members: make(map[string]*member.Member)}
}

func (f *fakeMembers) seed(id, displayName string, xp int) {
	m, _ := member.New(id, displayName, time.Now())
	m.Experience = member.XP(xp)
	f.members[id] = m
	f.order = append(f.order, id)
}

func (f *fakeMembers) GetByID(_ context.Context, id string) (*member.Member, error) {
	m, ok := f.members[id]
	if !ok {
		return nil, shared.NewDomainError("member", "GetByID", shared.ErrNotFound, "not found")
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMembers) Upsert(_ context.Context, m *member.Member) error {
	cp := *m
	f.members[m.ID] = &cp
	return nil
}

func (f *fakeMembers) AddExperience(_ context.Context, id, displayName string, delta int) (*member.Member, error) {
	m, ok := f.members[id]
	if !ok {
		f.seed(id, displayName, 0)
		m = f.members[id]
	}
	m.Experience = m.Experience.Add(delta)
	cp := *m
	return &cp, nil
}

func (f *fakeMembers) RemoveExperience(ctx context.Context, id, displayName string, amount int) (*member.Member, int, error) {
	m, err := f.AddExperience(ctx, id, displayName, -amount)
	return m, amount, err
}

func (f *fakeMembers) SetExperience(_ context.Context, id, displayName string, total int) (*member.Member, error) {
	m, ok := f.members[id]
	if !ok {
		f.seed(id, displayName, 0)
		m = f.members[id]
	}
	m.Experience = member.XP(total)
	cp := *m
	return &cp, nil
}

func (f *fakeMembers) GetExperience(_ context.Context, id string) (member.XP, error) {
	if m, ok := f.members[id]; ok {
		return m.Experience, nil
	}
	return 0, nil
}

func (f *fakeMembers) TouchCheckIn(_ context.Context, id string, at time.Time) error {
	return nil
}

func (f *fakeMembers) TopByExperience(_ context.Context, limit int) ([]*member.Member, error) {
	rank := make(map[string]int, len(f.order))
	for i, id := range f.order {
		rank[id] = i
	}
	var all []*member.Member
	for _, m := range f.members {
		cp := *m
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Experience != all[j].Experience {
			return all[i].Experience > all[j].Experience
		}
		return rank[all[i].ID] < rank[all[j].ID]
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeMembers) ListAll(ctx context.Context) ([]*member.Member, error) {
	return f.TopByExperience(ctx, 0)
}

// ── board cache ─────────────────────────────────────────────────────────────

type fakeBoardCache struct {
	boards map[ranking.Board]*ranking.Leaderboard
	puts   int
	hits   int
}

func newFakeBoardCache() *fakeBoardCache {
	return &fakeBoardCache{boards: make(map[ranking.Board]*ranking.Leaderboard)}
}

func (f *fakeBoardCache) Get(_ context.Context, board ranking.Board) (*ranking.Leaderboard, error) {
	lb, ok := f.boards[board]
	if !ok {
		return nil, nil
	}
	f.hits++
	return lb, nil
}

func (f *fakeBoardCache) Put(_ context.Context, lb *ranking.Leaderboard) error {
	f.boards[lb.Board] = lb
	f.puts++
	return nil
}

func (f *fakeBoardCache) Invalidate(_ context.Context, boards ...ranking.Board) error {
	for _, b := range boards {
		delete(f.boards, b)
	}
	return nil
}
