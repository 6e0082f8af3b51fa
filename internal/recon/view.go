package recon

import (
	"time"

	"github.com/harfbaz/harfbaz-server/internal/session"
	"github.com/harfbaz/harfbaz-server/internal/store"
)

// View is the client's best-known copy of the game, handed to the
// presentation layer on each change. It is a value: the engine never
// shares its internal maps.
type View struct {
	Room    store.Room     `json:"room"`
	Phase   session.Phase  `json:"phase"` // derived UI phase, not always the raw room phase
	Players []store.Player `json:"players"`
	Me      store.Player   `json:"me"`
	// Answers is playerID -> category -> text for the round under vote.
	Answers map[string]map[string]string `json:"answers"`
	Votes   []store.Vote                 `json:"votes"`
	Conn    store.ConnState              `json:"conn"`
}

// derivePhase maps the persisted room status to what the client should
// show. A bound player looking at a LOBBY room is waiting for the game
// to start, not picking a room.
func derivePhase(roomPhase session.Phase, bound bool) session.Phase {
	if roomPhase == session.PhaseLobby && bound {
		return session.PhaseWaiting
	}
	if roomPhase == "" {
		return session.PhaseLobby
	}
	return roomPhase
}

// ActivePlayers filters out spectators for the round that started at
// the view's RoundStartedAt.
func (v View) ActivePlayers(grace time.Duration) []store.Player {
	var out []store.Player
	for _, p := range v.Players {
		if !p.Spectator(v.Room.RoundStartedAt, grace) {
			out = append(out, p)
		}
	}
	return out
}

func (v View) clone() View {
	out := v
	out.Players = append([]store.Player(nil), v.Players...)
	out.Votes = append([]store.Vote(nil), v.Votes...)
	out.Answers = make(map[string]map[string]string, len(v.Answers))
	for player, sheet := range v.Answers {
		copied := make(map[string]string, len(sheet))
		for category, word := range sheet {
			copied[category] = word
		}
		out.Answers[player] = copied
	}
	return out
}

// currentCategory is the category under vote, or "" outside Voting.
func (v View) currentCategory() string {
	if v.Room.Phase != session.PhaseVoting {
		return ""
	}
	idx := v.Room.VotingCategoryIndex
	if idx < 0 || idx >= len(v.Room.CategoryOrder) {
		return ""
	}
	return v.Room.CategoryOrder[idx]
}
