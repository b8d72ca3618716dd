package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/domain/ledger"
	"github.com/cozykbin/Jipsa-bot/internal/domain/member"
	"github.com/cozykbin/Jipsa-bot/internal/domain/session"
	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
	"github.com/cozykbin/Jipsa-bot/pkg/logger"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Level: logger.LevelError})
}

func day(s string) timeutil.Date { return timeutil.MustParseDate(s) }

func mustWakeupRequest(t testing.TB, userID, ref string) *session.WakeupRequest {
	t.Helper()
	req, err := session.NewWakeupRequest(userID, ref, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return req
}

// ── ledger store ────────────────────────────────────────────────────────────

type dayKey struct {
	userID string
	date   timeutil.Date
}

type fakeLedger struct {
	mu         sync.Mutex
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

func (f *fakeLedger) RecordAttendance(_ context.Context, userID string, date timeutil.Date) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := dayKey{userID, date}
	if f.attendance[k] {
		return true, nil
	}
	f.attendance[k] = true
	return false, nil
}

func (f *fakeLedger) RecordWakeup(_ context.Context, userID string, date timeutil.Date) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := dayKey{userID, date}
	if f.wakeup[k] {
		return true, nil
	}
	f.wakeup[k] = true
	return false, nil
}

func (f *fakeLedger) AccumulateStudyMinutes(_ context.Context, userID string, date timeutil.Date, minutes int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := dayKey{userID, date}
	f.study[k] += minutes
	return f.study[k], nil
}

func (f *fakeLedger) ListDates(_ context.Context, kind ledger.Kind, userID string) ([]timeutil.Date, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
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
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := 0
	for k, mins := range f.study {
		if k.userID == userID && r.Contains(k.date) {
			sum += mins
		}
	}
	return sum, nil
}

func (f *fakeLedger) SumMinutesAll(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := 0
	for k, mins := range f.study {
		if k.userID == userID {
			sum += mins
		}
	}
	return sum, nil
}

func (f *fakeLedger) AttendanceCounts(_ context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for k := range f.attendance {
		counts[k.userID]++
	}
	return counts, nil
}

func (f *fakeLedger) AttendanceDatesByUser(_ context.Context) (map[string][]timeutil.Date, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byUser := make(map[string][]timeutil.Date)
	for k := range f.attendance {
		byUser[k.userID] = append(byUser[k.userID], k.date)
	}
	return byUser, nil
}

// ── member repository ───────────────────────────────────────────────────────

type fakeMembers struct {
	mu      sync.Mutex
	members map[string]*member.Member
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{members: make(map[string]*member.Member)}
}

func (f *fakeMembers) get(id, displayName string) *member.Member {
	m, ok := f.members[id]
	if !ok {
		m, _ = member.New(id, displayName, time.Now())
		f.members[id] = m
	}
	if displayName != "" {
		m.Rename(displayName)
	}
	return m
}

func (f *fakeMembers) GetByID(_ context.Context, id string) (*member.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok {
		return nil, shared.NewDomainError("member", "GetByID", shared.ErrNotFound, "not found")
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMembers) Upsert(_ context.Context, m *member.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.members[m.ID] = &cp
	return nil
}

func (f *fakeMembers) AddExperience(_ context.Context, id, displayName string, delta int) (*member.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.get(id, displayName)
	m.Experience = m.Experience.Add(delta)
	cp := *m
	return &cp, nil
}

func (f *fakeMembers) RemoveExperience(_ context.Context, id, displayName string, amount int) (*member.Member, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.get(id, displayName)
	before := m.Experience.Int()
	m.Experience = m.Experience.Add(-amount)
	cp := *m
	return &cp, before - m.Experience.Int(), nil
}

func (f *fakeMembers) SetExperience(_ context.Context, id, displayName string, total int) (*member.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.get(id, displayName)
	m.Experience = member.XP(total)
	cp := *m
	return &cp, nil
}

func (f *fakeMembers) GetExperience(_ context.Context, id string) (member.XP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok {
		return 0, nil
	}
	return m.Experience, nil
}

func (f *fakeMembers) TouchCheckIn(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.members[id]; ok {
		m.CheckedInAt = at
	}
	return nil
}

func (f *fakeMembers) TopByExperience(_ context.Context, limit int) ([]*member.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*member.Member
	for _, m := range f.members {
		cp := *m
		all = append(all, &cp)
	}
	return all, nil
}

func (f *fakeMembers) ListAll(ctx context.Context) ([]*member.Member, error) {
	return f.TopByExperience(ctx, 0)
}

// ── session repository ──────────────────────────────────────────────────────

type fakeSessions struct {
	mu       sync.Mutex
	wakeups  map[string]*session.WakeupRequest
	sessions map[string]*session.StudySession
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		wakeups:  make(map[string]*session.WakeupRequest),
		sessions: make(map[string]*session.StudySession),
	}
}

func (f *fakeSessions) SaveWakeupRequest(_ context.Context, r *session.WakeupRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.wakeups[r.UserID]; ok {
		return shared.NewDomainError("session", "SaveWakeupRequest", shared.ErrAlreadyExists, "already pending")
	}
	cp := *r
	f.wakeups[r.UserID] = &cp
	return nil
}

func (f *fakeSessions) GetWakeupRequest(_ context.Context, userID string) (*session.WakeupRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.wakeups[userID]
	if !ok {
		return nil, shared.NewDomainError("session", "GetWakeupRequest", shared.ErrNotFound, "not found")
	}
	cp := *r
	return &cp, nil
}

func (f *fakeSessions) TakeWakeupRequest(_ context.Context, userID string) (*session.WakeupRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.wakeups[userID]
	if !ok {
		return nil, shared.NewDomainError("session", "TakeWakeupRequest", shared.ErrNotFound, "not found")
	}
	delete(f.wakeups, userID)
	return r, nil
}

func (f *fakeSessions) DeleteWakeupRequest(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.wakeups, userID)
	return nil
}

func (f *fakeSessions) SaveStudySession(_ context.Context, s *session.StudySession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.sessions[s.UserID] = &cp
	return nil
}

func (f *fakeSessions) GetStudySession(_ context.Context, userID string) (*session.StudySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[userID]
	if !ok {
		return nil, shared.NewDomainError("session", "GetStudySession", shared.ErrNotFound, "not found")
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) TakeStudySession(_ context.Context, userID string) (*session.StudySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[userID]
	if !ok {
		return nil, shared.NewDomainError("session", "TakeStudySession", shared.ErrNotFound, "not found")
	}
	delete(f.sessions, userID)
	return s, nil
}

func (f *fakeSessions) DeleteStudySession(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, userID)
	return nil
}

func (f *fakeSessions) UpdateStudyMultiplier(_ context.Context, userID string, multiplier int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[userID]
	if !ok {
		return shared.NewDomainError("session", "UpdateStudyMultiplier", shared.ErrNotFound, "not found")
	}
	s.Multiplier = multiplier
	return nil
}

func (f *fakeSessions) ListStudySessions(_ context.Context) ([]*session.StudySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*session.StudySession
	for _, s := range f.sessions {
		cp := *s
		all = append(all, &cp)
	}
	return all, nil
}

// ── finalizer ───────────────────────────────────────────────────────────────

// fakeFinalizer mirrors the transactional semantics over the fakes.
type fakeFinalizer struct {
	ledger   *fakeLedger
	members  *fakeMembers
	sessions *fakeSessions
}

func (f *fakeFinalizer) FinalizeStudy(ctx context.Context, userID, displayName string, date timeutil.Date, minutes, multiplier int) (*ledger.FinalizeStudyResult, error) {
	// Consuming the session first stands in for the transaction's
	// zero-rows abort: a session resolved elsewhere credits nothing.
	if _, err := f.sessions.TakeStudySession(ctx, userID); err != nil {
		return nil, err
	}

	dayTotal, err := f.ledger.AccumulateStudyMinutes(ctx, userID, date, minutes)
	if err != nil {
		return nil, err
	}

	xp := ledger.StudyXPFor(minutes, multiplier)
	before, _ := f.members.GetExperience(ctx, userID)
	m, err := f.members.AddExperience(ctx, userID, displayName, xp)
	if err != nil {
		return nil, err
	}

	return &ledger.FinalizeStudyResult{
		Minutes:    minutes,
		Multiplier: multiplier,
		XPEarned:   xp,
		DayTotal:   dayTotal,
		Member:     m,
		LeveledUp:  member.LevelOf(m.Experience) > member.LevelOf(before),
	}, nil
}

// resolvedFinalizer reports the session as consumed by a concurrent
// resolution, the way the transactional finalizer does when its delete
// affects zero rows.
type resolvedFinalizer struct{}

func (resolvedFinalizer) FinalizeStudy(context.Context, string, string, timeutil.Date, int, int) (*ledger.FinalizeStudyResult, error) {
	return nil, shared.NewDomainError("ledger", "FinalizeStudy", shared.ErrNotFound,
		"study session already resolved")
}

// ── event capture ───────────────────────────────────────────────────────────

type capturedEvents struct {
	mu     sync.Mutex
	events []shared.Event
}

func (c *capturedEvents) Publish(event shared.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturedEvents) ofType(t shared.EventType) []shared.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []shared.Event
	for _, e := range c.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// ── room controller ─────────────────────────────────────────────────────────

type fakeRooms struct {
	mu           sync.Mutex
	occupancy    map[string]string // userID -> room
	disconnected []string
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{occupancy: make(map[string]string)}
}

func (f *fakeRooms) InRoom(_ context.Context, userID, room string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.occupancy[userID] == room, nil
}

func (f *fakeRooms) Disconnect(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.occupancy, userID)
	f.disconnected = append(f.disconnected, userID)
	return nil
}

// ── directory ───────────────────────────────────────────────────────────────

type fakeDirectory struct {
	roles  map[string][]Participant
	active []Participant
}

func (f *fakeDirectory) RoleMembers(_ context.Context, role string) ([]Participant, error) {
	return f.roles[role], nil
}

func (f *fakeDirectory) ActiveParticipants(_ context.Context) ([]Participant, error) {
	return f.active, nil
}
