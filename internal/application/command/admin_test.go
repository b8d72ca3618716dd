package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
)

func newAdminHandler(ledgers *fakeLedger, members *fakeMembers, dir *fakeDirectory, events *capturedEvents) *AdminHandler {
	if dir == nil {
		dir = &fakeDirectory{}
	}
	return NewAdminHandler(ledgers, members, dir, events, testLogger())
}

func TestAdminAuthorization(t *testing.T) {
	ctx := context.Background()
	h := newAdminHandler(newFakeLedger(), newFakeMembers(), nil, &capturedEvents{})

	_, err := h.HandleGrantXP(ctx, AdjustXPCommand{TargetID: "u1", Amount: 100})
	assert.ErrorIs(t, err, ErrNotAdmin)

	_, err = h.HandleRemoveXP(ctx, AdjustXPCommand{TargetID: "u1", Amount: 100})
	assert.ErrorIs(t, err, ErrNotAdmin)

	_, err = h.HandleSetXP(ctx, AdjustXPCommand{TargetID: "u1", Amount: 100})
	assert.ErrorIs(t, err, ErrNotAdmin)

	_, err = h.HandleGrantToRole(ctx, GrantToRoleCommand{Role: "members", Amount: 100})
	assert.ErrorIs(t, err, ErrNotAdmin)

	_, err = h.HandleRaffleXP(ctx, RaffleXPCommand{Amount: 100})
	assert.ErrorIs(t, err, ErrNotAdmin)

	_, err = h.HandleCreditStudyMinutes(ctx, CreditStudyMinutesCommand{TargetID: "u1", Minutes: 30})
	assert.ErrorIs(t, err, ErrNotAdmin)
}

func TestAdminGrantXP(t *testing.T) {
	ctx := context.Background()

	t.Run("grant adds and publishes the change", func(t *testing.T) {
		members := newFakeMembers()
		events := &capturedEvents{}
		h := newAdminHandler(newFakeLedger(), members, nil, events)

		res, err := h.HandleGrantXP(ctx, AdjustXPCommand{
			CallerIsAdmin: true, TargetID: "u1", DisplayName: "alice", Amount: 250,
		})
		require.NoError(t, err)

		assert.Equal(t, 250, res.Applied)
		assert.Equal(t, 250, res.NewTotal)
		assert.Equal(t, 2, res.Level)
		assert.True(t, res.LeveledUp)
		assert.Len(t, events.ofType(shared.EventXPChanged), 1)
		assert.Len(t, events.ofType(shared.EventLevelUp), 1)
	})

	t.Run("zero and negative amounts are rejected", func(t *testing.T) {
		h := newAdminHandler(newFakeLedger(), newFakeMembers(), nil, &capturedEvents{})

		_, err := h.HandleGrantXP(ctx, AdjustXPCommand{CallerIsAdmin: true, TargetID: "u1", Amount: 0})
		assert.Error(t, err)

		_, err = h.HandleGrantXP(ctx, AdjustXPCommand{CallerIsAdmin: true, TargetID: "u1", Amount: -50})
		assert.Error(t, err)
	})
}

func TestAdminRemoveXP(t *testing.T) {
	ctx := context.Background()

	t.Run("remove clamps at zero and reports the actual cut", func(t *testing.T) {
		members := newFakeMembers()
		_, err := members.AddExperience(ctx, "u1", "alice", 120)
		require.NoError(t, err)

		h := newAdminHandler(newFakeLedger(), members, nil, &capturedEvents{})

		res, err := h.HandleRemoveXP(ctx, AdjustXPCommand{
			CallerIsAdmin: true, TargetID: "u1", Amount: 500,
		})
		require.NoError(t, err)

		assert.Equal(t, 120, res.Applied)
		assert.Equal(t, 0, res.NewTotal)
		assert.Equal(t, 1, res.Level)
	})

	t.Run("removing from an unknown member stays at zero", func(t *testing.T) {
		h := newAdminHandler(newFakeLedger(), newFakeMembers(), nil, &capturedEvents{})

		res, err := h.HandleRemoveXP(ctx, AdjustXPCommand{
			CallerIsAdmin: true, TargetID: "ghost", Amount: 30,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Applied)
		assert.Equal(t, 0, res.NewTotal)
	})
}

func TestAdminSetXP(t *testing.T) {
	ctx := context.Background()

	t.Run("set replaces the total outright", func(t *testing.T) {
		members := newFakeMembers()
		_, err := members.AddExperience(ctx, "u1", "alice", 400)
		require.NoError(t, err)

		events := &capturedEvents{}
		h := newAdminHandler(newFakeLedger(), members, nil, events)

		res, err := h.HandleSetXP(ctx, AdjustXPCommand{
			CallerIsAdmin: true, TargetID: "u1", Amount: 18500,
		})
		require.NoError(t, err)

		assert.Equal(t, 18500, res.NewTotal)
		assert.Equal(t, 10, res.Level)
		assert.True(t, res.LeveledUp)
		assert.Len(t, events.ofType(shared.EventLevelUp), 1)
	})

	t.Run("negative totals are rejected", func(t *testing.T) {
		h := newAdminHandler(newFakeLedger(), newFakeMembers(), nil, &capturedEvents{})

		_, err := h.HandleSetXP(ctx, AdjustXPCommand{CallerIsAdmin: true, TargetID: "u1", Amount: -1})
		assert.ErrorIs(t, err, shared.ErrNegativeValue)
	})
}

func TestAdminGrantToRole(t *testing.T) {
	ctx := context.Background()

	dir := &fakeDirectory{roles: map[string][]Participant{
		"night-owls": {
			{ID: "u1", DisplayName: "alice"},
			{ID: "u2", DisplayName: "bob"},
		},
	}}

	members := newFakeMembers()
	events := &capturedEvents{}
	h := newAdminHandler(newFakeLedger(), members, dir, events)

	res, err := h.HandleGrantToRole(ctx, GrantToRoleCommand{
		CallerIsAdmin: true, Role: "night-owls", Amount: 100,
	})
	require.NoError(t, err)

	require.Len(t, res.Recipients, 2)
	assert.Len(t, events.ofType(shared.EventXPChanged), 2)
	for _, r := range res.Recipients {
		assert.Equal(t, 100, r.NewTotal)
	}

	res, err = h.HandleGrantToRole(ctx, GrantToRoleCommand{
		CallerIsAdmin: true, Role: "empty-role", Amount: 100,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Recipients)
}

func TestAdminRaffleXP(t *testing.T) {
	ctx := context.Background()

	t.Run("draw picks from the pool and grants the amount", func(t *testing.T) {
		dir := &fakeDirectory{active: []Participant{
			{ID: "u1", DisplayName: "alice"},
			{ID: "u2", DisplayName: "bob"},
			{ID: "u3", DisplayName: "carol"},
		}}

		members := newFakeMembers()
		h := newAdminHandler(newFakeLedger(), members, dir, &capturedEvents{})
		h.pick = func(n int) int {
			require.Equal(t, 3, n)
			return 1
		}

		res, err := h.HandleRaffleXP(ctx, RaffleXPCommand{CallerIsAdmin: true, Amount: 300})
		require.NoError(t, err)

		assert.False(t, res.NoParticipants)
		assert.NotEmpty(t, res.DrawID)
		assert.Equal(t, 3, res.PoolSize)
		assert.Equal(t, "u2", res.Winner.TargetID)
		assert.Equal(t, 300, res.Winner.NewTotal)
	})

	t.Run("empty pool is reported, not an error", func(t *testing.T) {
		h := newAdminHandler(newFakeLedger(), newFakeMembers(), &fakeDirectory{}, &capturedEvents{})

		res, err := h.HandleRaffleXP(ctx, RaffleXPCommand{CallerIsAdmin: true, Amount: 300})
		require.NoError(t, err)
		assert.True(t, res.NoParticipants)
	})
}

func TestAdminCreditStudyMinutes(t *testing.T) {
	ctx := context.Background()
	at := kst(2026, 8, 31, 14, 0)

	ledgers := newFakeLedger()
	members := newFakeMembers()
	h := newAdminHandler(ledgers, members, nil, &capturedEvents{})

	res, err := h.HandleCreditStudyMinutes(ctx, CreditStudyMinutesCommand{
		CallerIsAdmin: true, TargetID: "u1", DisplayName: "alice", Minutes: 40, At: at,
	})
	require.NoError(t, err)

	assert.Equal(t, 40, res.Minutes)
	assert.Equal(t, 40, res.DayTotal)
	assert.Equal(t, 40, res.XPEarned, "manual credits use the base rate")
	assert.Equal(t, 40, res.NewTotal)

	res, err = h.HandleCreditStudyMinutes(ctx, CreditStudyMinutesCommand{
		CallerIsAdmin: true, TargetID: "u1", Minutes: 20, At: at,
	})
	require.NoError(t, err)
	assert.Equal(t, 60, res.DayTotal, "credits accumulate within the day")

	_, err = h.HandleCreditStudyMinutes(ctx, CreditStudyMinutesCommand{
		CallerIsAdmin: true, TargetID: "u1", Minutes: 0,
	})
	assert.Error(t, err)
}
