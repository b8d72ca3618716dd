package gateway

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/application/command"
	"github.com/cozykbin/Jipsa-bot/internal/application/query"
	"github.com/cozykbin/Jipsa-bot/internal/domain/ledger"
	"github.com/cozykbin/Jipsa-bot/internal/domain/member"
	"github.com/cozykbin/Jipsa-bot/internal/domain/session"
	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
	"github.com/cozykbin/Jipsa-bot/pkg/logger"
	"github.com/cozykbin/Jipsa-bot/pkg/timeutil"
)

// The gateway tests drive the real application handlers over in-memory
// storage, so a dispatched command exercises the same path production does
// short of postgres.

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Level: logger.LevelError})
}

// ── storage fakes ───────────────────────────────────────────────────────────

type dayKey struct {
	userID string
	date   timeutil.Date
}

type memLedger struct {
	attendance map[dayKey]bool
	wakeup     map[dayKey]bool
	study      map[dayKey]int
}

func newMemLedger() *memLedger {
	return &memLedger{
		attendance: make(map[dayKey]bool),
		wakeup:     make(map[dayKey]bool),
		study:      make(map[dayKey]int),
	}
}

func (f *memLedger) RecordAttendance(_ context.Context, userID string, date timeutil.Date) (bool, error) {
	k := dayKey{userID, date}
	if f.attendance[k] {
		return true, nil
	}
	f.attendance[k] = true
	return false, nil
}

func (f *memLedger) RecordWakeup(_ context.Context, userID string, date timeutil.Date) (bool, error) {
	k := dayKey{userID, date}
	if f.wakeup[k] {
		return true, nil
	}
	f.wakeup[k] = true
	return false, nil
}

func (f *memLedger) AccumulateStudyMinutes(_ context.Context, userID string, date timeutil.Date, minutes int) (int, error) {
	k := dayKey{userID, date}
	f.study[k] += minutes
	return f.study[k], nil
}

func (f *memLedger) ListDates(_ context.Context, kind ledger.Kind, userID string) ([]timeutil.Date, error) {
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

func (f *memLedger) CountInRange(ctx context.Context, kind ledger.Kind, userID string, r timeutil.Range) (int, error) {
	dates, _ := f.ListDates(ctx, kind, userID)
	count := 0
	for _, d := range dates {
		if r.Contains(d) {
			count++
		}
	}
	return count, nil
}

func (f *memLedger) CountAll(ctx context.Context, kind ledger.Kind, userID string) (int, error) {
	dates, _ := f.ListDates(ctx, kind, userID)
	return len(dates), nil
}

func (f *memLedger) SumMinutesInRange(_ context.Context, userID string, r timeutil.Range) (int, error) {
	sum := 0
	for k, mins := range f.study {
		if k.userID == userID && r.Contains(k.date) {
			sum += mins
		}
	}
	return sum, nil
}

func (f *memLedger) SumMinutesAll(_ context.Context, userID string) (int, error) {
	sum := 0
	for k, mins := range f.study {
		if k.userID == userID {
			sum += mins
		}
	}
	return sum, nil
}

func (f *memLedger) AttendanceCounts(_ context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for k := range f.attendance {
		counts[k.userID]++
	}
	return counts, nil
}

func (f *memLedger) AttendanceDatesByUser(_ context.Context) (map[string][]timeutil.Date, error) {
	byUser := make(map[string][]timeutil.Date)
	for k := range f.attendance {
		byUser[k.userID] = append(byUser[k.userID], k.date)
	}
	for _, dates := range byUser {
		sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	}
	return byUser, nil
}

type memMembers struct {
	members map[string]*member.Member
}

func newMemMembers() *memMembers {
	return &memMembers{members: make(map[string]*member.Member)}
}

func (f *memMembers) get(id, displayName string) *member.Member {
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

func (f *memMembers) GetByID(_ context.Context, id string) (*member.Member, error) {
	m, ok := f.members[id]
	if !ok {
		return nil, shared.NewDomainError("member", "GetByID", shared.ErrNotFound, "not found")
	}
	cp := *m
	return &cp, nil
}

func (f *memMembers) Upsert(_ context.Context, m *member.Member) error {
	cp := *m
	f.members[m.ID] = &cp
	return nil
}

func (f *memMembers) AddExperience(_ context.Context, id, displayName string, delta int) (*member.Member, error) {
	m := f.get(id, displayName)
	m.Experience = m.Experience.Add(delta)
	cp := *m
	return &cp, nil
}

func (f *memMembers) RemoveExperience(_ context.Context, id, displayName string, amount int) (*member.Member, int, error) {
	m := f.get(id, displayName)
	before := m.Experience.Int()
	m.Experience = m.Experience.Add(-amount)
	cp := *m
	return &cp, before - m.Experience.Int(), nil
}

func (f *memMembers) SetExperience(_ context.Context, id, displayName string, total int) (*member.Member, error) {
	m := f.get(id, displayName)
	m.Experience = member.XP(total)
	cp := *m
	return &cp, nil
}

func (f *memMembers) GetExperience(_ context.Context, id string) (member.XP, error) {
	if m, ok := f.members[id]; ok {
		return m.Experience, nil
	}
	return 0, nil
}

func (f *memMembers) TouchCheckIn(_ context.Context, id string, at time.Time) error {
	if m, ok := f.members[id]; ok {
		m.CheckedInAt = at
	}
	return nil
}

func (f *memMembers) TopByExperience(_ context.Context, limit int) ([]*member.Member, error) {
	var all []*member.Member
	for _, m := range f.members {
		cp := *m
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Experience != all[j].Experience {
			return all[i].Experience > all[j].Experience
		}
		return all[i].ID < all[j].ID
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *memMembers) ListAll(ctx context.Context) ([]*member.Member, error) {
	return f.TopByExperience(ctx, 0)
}

type memSessions struct {
	wakeups  map[string]*session.WakeupRequest
	sessions map[string]*session.StudySession
}

func newMemSessions() *memSessions {
	return &memSessions{
		wakeups:  make(map[string]*session.WakeupRequest),
		sessions: make(map[string]*session.StudySession),
	}
}

func (f *memSessions) SaveWakeupRequest(_ context.Context, r *session.WakeupRequest) error {
	if _, ok := f.wakeups[r.UserID]; ok {
		return shared.NewDomainError("session", "SaveWakeupRequest", shared.ErrAlreadyExists, "already pending")
	}
	cp := *r
	f.wakeups[r.UserID] = &cp
	return nil
}

func (f *memSessions) GetWakeupRequest(_ context.Context, userID string) (*session.WakeupRequest, error) {
	r, ok := f.wakeups[userID]
	if !ok {
		return nil, shared.NewDomainError("session", "GetWakeupRequest", shared.ErrNotFound, "not found")
	}
	cp := *r
	return &cp, nil
}

func (f *memSessions) TakeWakeupRequest(_ context.Context, userID string) (*session.WakeupRequest, error) {
	r, ok := f.wakeups[userID]
	if !ok {
		return nil, shared.NewDomainError("session", "TakeWakeupRequest", shared.ErrNotFound, "not found")
	}
	delete(f.wakeups, userID)
	return r, nil
}

func (f *memSessions) DeleteWakeupRequest(_ context.Context, userID string) error {
	delete(f.wakeups, userID)
	return nil
}

func (f *memSessions) SaveStudySession(_ context.Context, s *session.StudySession) error {
	cp := *s
	f.sessions[s.UserID] = &cp
	return nil
}

func (f *memSessions) GetStudySession(_ context.Context, userID string) (*session.StudySession, error) {
	s, ok := f.sessions[userID]
	if !ok {
		return nil, shared.NewDomainError("session", "GetStudySession", shared.ErrNotFound, "not found")
	}
	cp := *s
	return &cp, nil
}

func (f *memSessions) TakeStudySession(_ context.Context, userID string) (*session.StudySession, error) {
	s, ok := f.sessions[userID]
	if !ok {
		return nil, shared.NewDomainError("session", "TakeStudySession", shared.ErrNotFound, "not found")
	}
	delete(f.sessions, userID)
	return s, nil
}

func (f *memSessions) DeleteStudySession(_ context.Context, userID string) error {
	delete(f.sessions, userID)
	return nil
}

func (f *memSessions) UpdateStudyMultiplier(_ context.Context, userID string, multiplier int) error {
	s, ok := f.sessions[userID]
	if !ok {
		return shared.NewDomainError("session", "UpdateStudyMultiplier", shared.ErrNotFound, "not found")
	}
	s.Multiplier = multiplier
	return nil
}

func (f *memSessions) ListStudySessions(_ context.Context) ([]*session.StudySession, error) {
	var all []*session.StudySession
	for _, s := range f.sessions {
		cp := *s
		all = append(all, &cp)
	}
	return all, nil
}

type memFinalizer struct {
	ledger   *memLedger
	members  *memMembers
	sessions *memSessions
}

func (f *memFinalizer) FinalizeStudy(ctx context.Context, userID, displayName string, date timeutil.Date, minutes, multiplier int) (*ledger.FinalizeStudyResult, error) {
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

// ── platform fakes ──────────────────────────────────────────────────────────

type sentMessage struct {
	channel string
	ref     string
	content string
}

type fakeNotifier struct {
	next     int
	sent     []sentMessage
	edits    []sentMessage
	pins     []string
	deleted  []string
	missing  map[string]bool // refs that report ErrMessageNotFound
	contents map[string]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		missing:  make(map[string]bool),
		contents: make(map[string]string),
	}
}

func (n *fakeNotifier) Send(_ context.Context, channel, content string) (string, error) {
	n.next++
	ref := fmt.Sprintf("m%d", n.next)
	n.sent = append(n.sent, sentMessage{channel, ref, content})
	n.contents[ref] = content
	return ref, nil
}

func (n *fakeNotifier) Edit(_ context.Context, channel, ref, content string) error {
	if n.missing[ref] {
		return ErrMessageNotFound
	}
	n.edits = append(n.edits, sentMessage{channel, ref, content})
	n.contents[ref] = content
	return nil
}

func (n *fakeNotifier) Delete(_ context.Context, _, ref string) error {
	if n.missing[ref] {
		return ErrMessageNotFound
	}
	n.deleted = append(n.deleted, ref)
	return nil
}

func (n *fakeNotifier) Pin(_ context.Context, _, ref string) error {
	n.pins = append(n.pins, ref)
	return nil
}

func (n *fakeNotifier) lastSent() sentMessage {
	return n.sent[len(n.sent)-1]
}

type fakeDirectory struct {
	admins map[string]bool
	names  map[string]string
	roles  map[string][]command.Participant
	active []command.Participant
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		admins: make(map[string]bool),
		names:  make(map[string]string),
		roles:  make(map[string][]command.Participant),
	}
}

func (d *fakeDirectory) RoleMembers(_ context.Context, role string) ([]command.Participant, error) {
	return d.roles[role], nil
}

func (d *fakeDirectory) ActiveParticipants(_ context.Context) ([]command.Participant, error) {
	return d.active, nil
}

func (d *fakeDirectory) IsAdmin(_ context.Context, userID string) (bool, error) {
	return d.admins[userID], nil
}

func (d *fakeDirectory) DisplayName(_ context.Context, userID string) (string, error) {
	return d.names[userID], nil
}

type fakeRefStore struct {
	pinned   string
	profiles map[string]string
}

func newFakeRefStore() *fakeRefStore {
	return &fakeRefStore{profiles: make(map[string]string)}
}

func (s *fakeRefStore) SetPinnedLeaderboard(_ context.Context, ref string) error {
	s.pinned = ref
	return nil
}

func (s *fakeRefStore) PinnedLeaderboard(_ context.Context) (string, error) {
	return s.pinned, nil
}

func (s *fakeRefStore) SetProfile(_ context.Context, userID, ref string) error {
	s.profiles[userID] = ref
	return nil
}

func (s *fakeRefStore) Profile(_ context.Context, userID string) (string, error) {
	return s.profiles[userID], nil
}

func (s *fakeRefStore) ClearProfile(_ context.Context, userID string) error {
	delete(s.profiles, userID)
	return nil
}

type fakePresence struct {
	in map[string]bool
}

func newFakePresence() *fakePresence {
	return &fakePresence{in: make(map[string]bool)}
}

func (p *fakePresence) Enter(_ context.Context, userID string) error {
	p.in[userID] = true
	return nil
}

func (p *fakePresence) Leave(_ context.Context, userID string) error {
	delete(p.in, userID)
	return nil
}

func (p *fakePresence) Reset(_ context.Context) error {
	p.in = make(map[string]bool)
	return nil
}

type fakeRooms struct {
	occupancy map[string]string
}

func (f *fakeRooms) InRoom(_ context.Context, userID, room string) (bool, error) {
	return f.occupancy[userID] == room, nil
}

func (f *fakeRooms) Disconnect(_ context.Context, userID string) error {
	delete(f.occupancy, userID)
	return nil
}

type nullPublisher struct{}

func (nullPublisher) Publish(shared.Event) error { return nil }

// ── fixture ─────────────────────────────────────────────────────────────────

type fixture struct {
	ledger     *memLedger
	members    *memMembers
	sessions   *memSessions
	rooms      *fakeRooms
	notifier   *fakeNotifier
	directory  *fakeDirectory
	refs       *fakeRefStore
	presence   *fakePresence
	dispatcher *Dispatcher
}

func newFixture() *fixture {
	log := testLogger()
	fx := &fixture{
		ledger:    newMemLedger(),
		members:   newMemMembers(),
		sessions:  newMemSessions(),
		rooms:     &fakeRooms{occupancy: make(map[string]string)},
		notifier:  newFakeNotifier(),
		directory: newFakeDirectory(),
		refs:      newFakeRefStore(),
		presence:  newFakePresence(),
	}
	fin := &memFinalizer{ledger: fx.ledger, members: fx.members, sessions: fx.sessions}
	pub := nullPublisher{}

	handlers := Handlers{
		CheckIn:       command.NewCheckInHandler(fx.ledger, fx.members, pub, log),
		RequestWakeup: command.NewRequestWakeupHandler(fx.ledger, fx.sessions, log),
		ResolveWakeup: command.NewResolveWakeupHandler(fx.ledger, fx.members, fx.sessions, pub, log),
		Study:         command.NewStudyHandler(fx.ledger, fin, fx.sessions, fx.rooms, "camera-study", pub, log),
		Admin:         command.NewAdminHandler(fx.ledger, fx.members, fx.directory, pub, log),
		Stats:         query.NewStatsHandler(fx.ledger),
		History:       query.NewHistoryHandler(fx.ledger),
		Profile:       query.NewProfileHandler(fx.members, fx.ledger),
		Boards:        query.NewLeaderboardHandler(fx.members, fx.ledger, nil),
	}

	fx.dispatcher = NewDispatcher(handlers, fx.notifier, fx.directory, fx.refs, fx.presence, log, Config{
		TrackedRooms:       []string{"focus", "camera-study"},
		CameraRoom:         "camera-study",
		StudyChannel:       "study-log",
		LeaderboardChannel: "hall-of-fame",
	})
	return fx
}
