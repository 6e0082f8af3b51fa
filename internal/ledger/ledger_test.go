package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harfbaz/harfbaz-server/internal/session"
	"github.com/harfbaz/harfbaz-server/internal/store"
)

func setup(t *testing.T) (*Ledger, store.Room, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	room, err := m.CreateRoom(context.Background(), store.Room{
		Code:      "LDGR01",
		Phase:     session.PhasePlaying,
		SessionID: "gen-1",
	})
	require.NoError(t, err)
	return New(m), room, m
}

func TestSubmitTwiceKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	l, room, m := setup(t)
	require.NoError(t, m.UpsertPlayer(ctx, store.Player{ID: "p1", RoomID: room.ID}))

	require.NoError(t, l.Submit(ctx, room.ID, 1, "gen-1", "p1", map[string]string{"Şehir": "Konya"}))
	require.NoError(t, l.Submit(ctx, room.ID, 1, "gen-1", "p1", map[string]string{"Şehir": "Kars"}))

	n, err := l.CountSubmitted(ctx, room.ID, 1, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	answers, err := m.Answers(ctx, room.ID, 1, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, "Kars", answers[0].Answers["Şehir"])
}

func TestSubmitUnknownRoom(t *testing.T) {
	l, _, _ := setup(t)
	err := l.Submit(context.Background(), "missing", 1, "gen-1", "p1", nil)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAllSubmitted(t *testing.T) {
	ctx := context.Background()
	l, room, m := setup(t)
	require.NoError(t, m.UpsertPlayer(ctx, store.Player{ID: "p1", RoomID: room.ID}))
	require.NoError(t, m.UpsertPlayer(ctx, store.Player{ID: "p2", RoomID: room.ID}))

	require.NoError(t, l.Submit(ctx, room.ID, 1, "gen-1", "p1", map[string]string{"Şehir": "Konya"}))

	done, err := l.AllSubmitted(ctx, room.ID, 1, "gen-1", 2)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, l.Submit(ctx, room.ID, 1, "gen-1", "p2", map[string]string{"Şehir": "Kars"}))
	done, err = l.AllSubmitted(ctx, room.ID, 1, "gen-1", 2)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestStaleSessionAnswersNotCounted(t *testing.T) {
	ctx := context.Background()
	l, room, m := setup(t)
	require.NoError(t, m.UpsertPlayer(ctx, store.Player{ID: "p1", RoomID: room.ID}))

	// A sheet left over from a previous game generation.
	require.NoError(t, l.Submit(ctx, room.ID, 1, "gen-0", "p1", map[string]string{"Şehir": "Konya"}))

	n, err := l.CountSubmitted(ctx, room.ID, 1, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
