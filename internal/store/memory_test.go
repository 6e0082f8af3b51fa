package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harfbaz/harfbaz-server/internal/session"
)

func seedRoom(t *testing.T, m *Memory) Room {
	t.Helper()
	room, err := m.CreateRoom(context.Background(), Room{
		Code:      "ABCD12",
		Phase:     session.PhasePlaying,
		SessionID: "gen-1",
		Settings:  Settings{RoundDurationSec: 60, TotalRounds: 5},
	})
	require.NoError(t, err)
	return room
}

func seedPlayer(t *testing.T, m *Memory, roomID, id string, host bool) Player {
	t.Helper()
	p := Player{ID: id, RoomID: roomID, Name: id, IsHost: host}
	require.NoError(t, m.UpsertPlayer(context.Background(), p))
	return p
}

func seedAnswer(t *testing.T, m *Memory, roomID, playerID string, answers map[string]string) {
	t.Helper()
	require.NoError(t, m.UpsertAnswer(context.Background(), Answer{
		RoomID: roomID, Round: 1, SessionID: "gen-1", PlayerID: playerID, Answers: answers,
	}))
}

func TestUpsertAnswerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	room := seedRoom(t, m)
	seedPlayer(t, m, room.ID, "p1", true)

	// Explicit submit, then the timeout-forced resubmit.
	seedAnswer(t, m, room.ID, "p1", map[string]string{"Hayvan": "Kedi"})
	seedAnswer(t, m, room.ID, "p1", map[string]string{"Hayvan": "Kirpi"})

	answers, err := m.Answers(ctx, room.ID, 1, "gen-1")
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "Kirpi", answers[0].Answers["Hayvan"])

	n, err := m.CountAnswers(ctx, room.ID, 1, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestToggleVoteFlipsState(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	room := seedRoom(t, m)
	seedPlayer(t, m, room.ID, "p1", true)
	seedPlayer(t, m, room.ID, "p2", false)
	seedAnswer(t, m, room.ID, "p2", map[string]string{"Hayvan": "Kedi"})

	v := Vote{RoomID: room.ID, Round: 1, VoterID: "p1", TargetID: "p2", Category: "Hayvan"}

	for i := 1; i <= 5; i++ {
		cast, _, err := m.ToggleVote(ctx, v)
		require.NoError(t, err)
		assert.Equal(t, i%2 == 1, cast, "call %d", i)
	}

	votes, err := m.Votes(ctx, room.ID, 1)
	require.NoError(t, err)
	require.Len(t, votes, 1) // odd number of calls: cast
}

func TestToggleVoteRejectsInvalidTargets(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	room := seedRoom(t, m)
	seedPlayer(t, m, room.ID, "p1", true)
	seedPlayer(t, m, room.ID, "p2", false)
	seedAnswer(t, m, room.ID, "p2", map[string]string{"Hayvan": "  "})

	cases := []struct {
		name string
		vote Vote
	}{
		{"self vote", Vote{RoomID: room.ID, Round: 1, VoterID: "p1", TargetID: "p1", Category: "Hayvan"}},
		{"whitespace answer", Vote{RoomID: room.ID, Round: 1, VoterID: "p1", TargetID: "p2", Category: "Hayvan"}},
		{"missing answer", Vote{RoomID: room.ID, Round: 1, VoterID: "p1", TargetID: "p2", Category: "Şehir"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := m.ToggleVote(ctx, tc.vote)
			require.ErrorIs(t, err, ErrInvalidTarget)
		})
	}
}

func TestCommitRoundScoresOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	room := seedRoom(t, m)
	seedPlayer(t, m, room.ID, "p1", true)
	seedPlayer(t, m, room.ID, "p2", false)

	deltas := map[string]int{"p1": 15, "p2": 10}
	require.NoError(t, m.CommitRoundScores(ctx, room.ID, 1, deltas))

	err := m.CommitRoundScores(ctx, room.ID, 1, deltas)
	require.ErrorIs(t, err, ErrAlreadyProcessed)

	p1, err := m.PlayerByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 15, p1.Score)

	// A different round commits fine.
	require.NoError(t, m.CommitRoundScores(ctx, room.ID, 2, deltas))
	p1, _ = m.PlayerByID(ctx, "p1")
	assert.Equal(t, 30, p1.Score)
}

func TestSubscribeDeliversTypedEvents(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	room := seedRoom(t, m)
	seedPlayer(t, m, room.ID, "p1", true)
	seedPlayer(t, m, room.ID, "p2", false)

	ch, cancel := m.Subscribe(room.ID)
	defer cancel()

	seedAnswer(t, m, room.ID, "p2", map[string]string{"Hayvan": "Kedi"})
	_, _, err := m.ToggleVote(ctx, Vote{RoomID: room.ID, Round: 1, VoterID: "p1", TargetID: "p2", Category: "Hayvan"})
	require.NoError(t, err)
	room.Phase = session.PhaseVoting
	require.NoError(t, m.UpdateRoom(ctx, room))

	var got []Event
	timeout := time.After(time.Second)
	for len(got) < 3 {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("only %d events arrived", len(got))
		}
	}

	require.IsType(t, AnswerChanged{}, got[0])
	require.IsType(t, VoteChanged{}, got[1])
	assert.Equal(t, OpInsert, got[1].(VoteChanged).Op)
	require.IsType(t, RoomChanged{}, got[2])
	assert.Equal(t, session.PhaseVoting, got[2].(RoomChanged).Room.Phase)
}

func TestRoomByCodeIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	room := seedRoom(t, m)

	found, err := m.RoomByCode(ctx, "abcd12")
	require.NoError(t, err)
	assert.Equal(t, room.ID, found.ID)

	_, err = m.RoomByCode(ctx, "NOPE")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRoomDropsEverything(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	room := seedRoom(t, m)
	seedPlayer(t, m, room.ID, "p1", true)
	seedAnswer(t, m, room.ID, "p1", map[string]string{"Hayvan": "Kedi"})

	require.NoError(t, m.DeleteRoom(ctx, room.ID))

	_, err := m.RoomByID(ctx, room.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.PlayerByID(ctx, "p1")
	require.ErrorIs(t, err, ErrNotFound)
	answers, _ := m.Answers(ctx, room.ID, 1, "gen-1")
	assert.Empty(t, answers)
}

func TestSpectatorClassification(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	grace := 10 * time.Second

	cases := []struct {
		name     string
		joinedAt time.Time
		want     bool
	}{
		{"joined before round", start.Add(-time.Minute), false},
		{"joined within grace", start.Add(5 * time.Second), false},
		{"joined after grace", start.Add(11 * time.Second), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Player{JoinedAt: tc.joinedAt}
			if got := p.Spectator(start, grace); got != tc.want {
				t.Fatalf("Spectator() = %v, want %v", got, tc.want)
			}
		})
	}
}
