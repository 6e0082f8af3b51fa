package recon

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harfbaz/harfbaz-server/internal/session"
	"github.com/harfbaz/harfbaz-server/internal/store"
)

// tracingStore records the order of mutating calls so tests can pin
// down write ordering, not just end state.
type tracingStore struct {
	store.Store
	mu    sync.Mutex
	calls []string
}

func (s *tracingStore) record(name string) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
}

func (s *tracingStore) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *tracingStore) UpdateRoom(ctx context.Context, room store.Room) error {
	s.record("UpdateRoom:" + string(room.Phase))
	return s.Store.UpdateRoom(ctx, room)
}

func (s *tracingStore) DeleteAnswers(ctx context.Context, roomID string) error {
	s.record("DeleteAnswers")
	return s.Store.DeleteAnswers(ctx, roomID)
}

func (s *tracingStore) DeleteVotes(ctx context.Context, roomID string) error {
	s.record("DeleteVotes")
	return s.Store.DeleteVotes(ctx, roomID)
}

func (s *tracingStore) ResetScores(ctx context.Context, roomID string) error {
	s.record("ResetScores")
	return s.Store.ResetScores(ctx, roomID)
}

func indexOf(calls []string, name string) int {
	for i, c := range calls {
		if c == name {
			return i
		}
	}
	return -1
}

// The phase flip to PLAYING is what tells clients the round is open, so
// every cleanup write of the prior game must already be done when it
// goes out. Otherwise a sheet submitted the instant a client sees
// PLAYING could be wiped by trailing cleanup, with no event to say so.
func TestStartCleansUpBeforePhaseFlip(t *testing.T) {
	ts := &tracingStore{Store: store.NewMemory()}
	host := newEngine(t, ts)
	_, err := host.CreateRoom("Ece", "🦊", store.Settings{RoundDurationSec: 60, TotalRounds: 2})
	require.NoError(t, err)

	require.NoError(t, host.Start())

	calls := ts.recorded()
	flip := indexOf(calls, "UpdateRoom:"+string(session.PhasePlaying))
	require.NotEqual(t, -1, flip, "no phase flip recorded: %v", calls)
	for _, cleanup := range []string{"ResetScores", "DeleteAnswers", "DeleteVotes"} {
		i := indexOf(calls, cleanup)
		require.NotEqual(t, -1, i, "%s never called: %v", cleanup, calls)
		assert.Less(t, i, flip, "%s ran after the phase flip: %v", cleanup, calls)
	}
}

func TestResetCleansUpBeforePhaseFlip(t *testing.T) {
	ts := &tracingStore{Store: store.NewMemory()}
	host, guest := twoPlayerGame(t, ts)

	playRound := func() {
		submitAll(t, host, guest)
		waitFor(t, func() bool { return host.Snapshot().Room.Phase == session.PhaseVoting }, "VOTING")
		categories := len(host.Snapshot().Room.CategoryOrder)
		for i := 0; i < categories; i++ {
			require.NoError(t, host.AdvanceCategory())
		}
	}
	playRound()
	waitFor(t, func() bool {
		snap := host.Snapshot()
		return snap.Room.Phase == session.PhasePlaying && snap.Room.CurrentRound == 2
	}, "round 2")
	playRound()
	waitFor(t, func() bool { return host.Snapshot().Room.Phase == session.PhaseGameOver }, "GAME_OVER")

	ts.mu.Lock()
	ts.calls = nil
	ts.mu.Unlock()

	require.NoError(t, host.Reset())

	calls := ts.recorded()
	flip := indexOf(calls, "UpdateRoom:"+string(session.PhaseLobby))
	require.NotEqual(t, -1, flip, "no phase flip recorded: %v", calls)
	for _, cleanup := range []string{"DeleteAnswers", "DeleteVotes", "ResetScores"} {
		i := indexOf(calls, cleanup)
		require.NotEqual(t, -1, i, "%s never called: %v", cleanup, calls)
		assert.Less(t, i, flip, "%s ran after the phase flip: %v", cleanup, calls)
	}
}

// A failed start must leave the room's data untouched: validation runs
// before any cleanup write.
func TestStartOutsideWaitingLeavesDataAlone(t *testing.T) {
	ts := &tracingStore{Store: store.NewMemory()}
	host, guest := twoPlayerGame(t, ts)
	submitAll(t, host, guest)
	waitFor(t, func() bool { return host.Snapshot().Room.Phase == session.PhaseVoting }, "voting")

	ts.mu.Lock()
	ts.calls = nil
	ts.mu.Unlock()

	require.Error(t, host.Start())
	assert.Empty(t, ts.recorded(), "a rejected start must not write")
}
