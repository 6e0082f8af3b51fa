package tally

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harfbaz/harfbaz-server/internal/session"
	"github.com/harfbaz/harfbaz-server/internal/store"
)

func TestIsRejectedMajorityRule(t *testing.T) {
	votes := func(n int) []store.Vote {
		out := make([]store.Vote, n)
		for i := range out {
			out[i] = store.Vote{TargetID: "p1", Category: "Hayvan", IsVeto: true}
		}
		return out
	}

	cases := []struct {
		name   string
		vetoes int
		active int
		want   bool
	}{
		{"no votes", 0, 4, false},
		{"exactly half does not reject", 2, 4, false},
		{"strict majority rejects", 3, 4, true},
		{"odd count, floor plus one", 2, 3, true},
		{"odd count, exactly floor", 1, 3, false},
		{"everyone", 4, 4, true},
		{"no active players", 1, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := IsRejected(votes(tc.vetoes), "p1", "Hayvan", tc.active)
			if got != tc.want {
				t.Fatalf("IsRejected(%d vetoes, %d active) = %v, want %v", tc.vetoes, tc.active, got, tc.want)
			}
		})
	}
}

func TestIsRejectedIgnoresOtherTargets(t *testing.T) {
	votes := []store.Vote{
		{TargetID: "p1", Category: "Hayvan", IsVeto: true},
		{TargetID: "p1", Category: "Şehir", IsVeto: true},
		{TargetID: "p2", Category: "Hayvan", IsVeto: true},
	}
	if IsRejected(votes, "p1", "Hayvan", 2) != false {
		t.Fatal("single veto of two active players should not reject")
	}
	counts := VetoCounts(votes)
	if counts[TargetKey{"p1", "Hayvan"}] != 1 || counts[TargetKey{"p2", "Hayvan"}] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func setup(t *testing.T) (*Tally, store.Room, *store.Memory) {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()
	room, err := m.CreateRoom(ctx, store.Room{
		Code:      "TALLY1",
		Phase:     session.PhaseVoting,
		SessionID: "gen-1",
	})
	require.NoError(t, err)
	room.RoundStartedAt = time.Now().Add(-time.Minute)
	require.NoError(t, m.UpdateRoom(ctx, room))

	for _, id := range []string{"p1", "p2"} {
		require.NoError(t, m.UpsertPlayer(ctx, store.Player{
			ID: id, RoomID: room.ID, JoinedAt: time.Now().Add(-time.Hour),
		}))
	}
	require.NoError(t, m.UpsertAnswer(ctx, store.Answer{
		RoomID: room.ID, Round: 1, SessionID: "gen-1", PlayerID: "p2",
		Answers: map[string]string{"Hayvan": "Kedi"},
	}))
	return New(m, 10*time.Second), room, m
}

func TestToggleParity(t *testing.T) {
	ctx := context.Background()
	tl, room, m := setup(t)

	for i := 1; i <= 4; i++ {
		state, err := tl.Toggle(ctx, room.ID, 1, "p1", "p2", "Hayvan")
		require.NoError(t, err)
		assert.Equal(t, i%2 == 1, state.Cast, "toggle %d", i)
	}

	votes, err := m.Votes(ctx, room.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, votes, "even number of toggles should leave no vote")
}

func TestToggleRejectsSpectators(t *testing.T) {
	ctx := context.Background()
	tl, room, m := setup(t)

	// Joined well after the round started.
	require.NoError(t, m.UpsertPlayer(ctx, store.Player{
		ID: "late", RoomID: room.ID, JoinedAt: time.Now(),
	}))

	_, err := tl.Toggle(ctx, room.ID, 1, "late", "p2", "Hayvan")
	require.ErrorIs(t, err, store.ErrInvalidTarget)

	_, err = tl.Toggle(ctx, room.ID, 1, "p1", "late", "Hayvan")
	require.ErrorIs(t, err, store.ErrInvalidTarget)
}

func TestToggleRejectsSelfVote(t *testing.T) {
	ctx := context.Background()
	tl, room, _ := setup(t)

	_, err := tl.Toggle(ctx, room.ID, 1, "p2", "p2", "Hayvan")
	require.ErrorIs(t, err, store.ErrInvalidTarget)
}
