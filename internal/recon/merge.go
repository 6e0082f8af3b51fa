package recon

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/harfbaz/harfbaz-server/internal/session"
	"github.com/harfbaz/harfbaz-server/internal/store"
)

// applyEvent merges one inbound change notification into the view.
// Malformed or out-of-date events are dropped, never fatal.
func (e *Engine) applyEvent(ev store.Event) {
	if !e.bound {
		return
	}

	switch ev := ev.(type) {
	case store.RoomChanged:
		e.mergeRoom(ev.Room)

	case store.PlayerSetChanged:
		e.refreshPlayers()

	case store.VoteChanged:
		e.mergeVote(ev)

	case store.AnswerChanged:
		e.mergeAnswer(ev)

	case store.ConnStateChanged:
		e.view.Conn = ev.State
		if ev.State == store.Connected {
			// Back from an outage: resync rather than trusting
			// whatever arrived while the link was flapping.
			if err := e.resync(e.ctx); err != nil {
				if errors.Is(err, store.ErrSessionExpired) {
					e.expireSession()
					return
				}
				e.log.Warnw("post-reconnect resync failed", "error", err)
			}
		}

	default:
		// Unknown event shape; ignore.
	}
}

// mergeRoom accepts the authoritative room row and runs phase-entry
// side effects exactly once per distinct phase value seen.
func (e *Engine) mergeRoom(room store.Room) {
	e.view.Room = room
	phase := derivePhase(room.Phase, true)
	e.view.Phase = phase

	if phase == e.lastPhase {
		return
	}
	e.lastPhase = phase

	effect := session.OnEnter[phase]
	if effect.ClearRound {
		e.view.Answers = map[string]map[string]string{}
		e.view.Votes = nil
		e.processed = map[int]bool{}
		e.timeUpAt = time.Time{}
	}
	if effect.FetchAnswers || effect.FetchVotes {
		if err := e.fetchRound(e.ctx, room); err != nil {
			e.log.Warnw("round fetch failed", "phase", phase, "error", err)
		}
	}
	if effect.RefreshPlayers {
		e.refreshPlayers()
	}
}

func (e *Engine) refreshPlayers() {
	players, err := e.store.Players(e.ctx, e.view.Room.ID)
	if err != nil {
		e.log.Warnw("player refresh failed", "error", err)
		return
	}
	e.view.Players = players

	for _, p := range players {
		if p.ID == e.view.Me.ID {
			e.view.Me = p
			return
		}
	}
	// The caller is gone from the roster: kicked, or the room was
	// rebuilt underneath them. The session is over.
	e.expireSession()
}

// mergeVote applies a vote insert or delete. Inserts are deduplicated
// first by row id, then by natural key, which absorbs the echo of an
// optimistic local insert. Deletes go strictly by id so an optimistic
// entry is never removed by content match.
func (e *Engine) mergeVote(ev store.VoteChanged) {
	if ev.Vote.Round != e.view.Room.CurrentRound {
		return // stale event from an earlier round
	}

	switch ev.Op {
	case store.OpInsert:
		for i, v := range e.view.Votes {
			if v.ID == ev.Vote.ID {
				return
			}
			if sameVoteKey(v, ev.Vote) {
				// The optimistic twin: adopt the authoritative row.
				e.view.Votes[i] = ev.Vote
				return
			}
		}
		e.view.Votes = append(e.view.Votes, ev.Vote)

	case store.OpDelete:
		for i, v := range e.view.Votes {
			if v.ID == ev.Vote.ID {
				e.view.Votes = append(e.view.Votes[:i], e.view.Votes[i+1:]...)
				return
			}
		}
	}
}

func sameVoteKey(a, b store.Vote) bool {
	return a.VoterID == b.VoterID && a.TargetID == b.TargetID && a.Category == b.Category
}

// mergeAnswer applies an answer insert or update for the round under
// vote. Sheets from another round or a previous game generation are
// dropped — as are any sheets arriving outside Voting: answers stay
// hidden until the round ends, so an early submitter's words never
// reach an opponent's snapshot mid-round. Entering Voting fetches the
// full set fresh, so nothing is lost by dropping here.
func (e *Engine) mergeAnswer(ev store.AnswerChanged) {
	if e.view.Phase != session.PhaseVoting {
		return
	}
	a := ev.Answer
	if a.Round != e.view.Room.CurrentRound || a.SessionID != e.view.Room.SessionID {
		return
	}
	if e.view.Answers == nil {
		e.view.Answers = map[string]map[string]string{}
	}
	e.view.Answers[a.PlayerID] = a.Answers
}

// applyOptimisticToggle flips the local vote immediately, before the
// remote write confirms, and returns an undo for authoritative
// rejections.
func (e *Engine) applyOptimisticToggle(targetID, category string) func() {
	me := e.view.Me.ID
	for i, v := range e.view.Votes {
		if v.VoterID == me && v.TargetID == targetID && v.Category == category {
			removed := v
			e.view.Votes = append(e.view.Votes[:i], e.view.Votes[i+1:]...)
			at := i
			return func() {
				e.view.Votes = append(e.view.Votes[:at], append([]store.Vote{removed}, e.view.Votes[at:]...)...)
			}
		}
	}

	guess := store.Vote{
		ID:       uuid.NewString(), // replaced by the stored id on ack
		RoomID:   e.view.Room.ID,
		Round:    e.view.Room.CurrentRound,
		VoterID:  me,
		TargetID: targetID,
		Category: category,
		IsVeto:   true,
	}
	e.view.Votes = append(e.view.Votes, guess)
	id := guess.ID
	return func() {
		for i, v := range e.view.Votes {
			if v.ID == id {
				e.view.Votes = append(e.view.Votes[:i], e.view.Votes[i+1:]...)
				return
			}
		}
	}
}

// adoptVoteID swaps the optimistic placeholder for the stored row, so
// the store's echo dedupes by id as well as by key.
func (e *Engine) adoptVoteID(stored store.Vote) {
	for i, v := range e.view.Votes {
		if sameVoteKey(v, stored) {
			e.view.Votes[i] = stored
			return
		}
	}
}
