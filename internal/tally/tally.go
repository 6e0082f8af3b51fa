// Package tally tracks veto votes and the majority-rejection rule.
package tally

import (
	"context"
	"fmt"
	"time"

	"github.com/harfbaz/harfbaz-server/internal/store"
)

// VoteState is the result of one toggle.
type VoteState struct {
	Cast bool // true: vote now stands; false: vote retracted
	Vote store.Vote
}

// Tally wraps the store's atomic toggle procedure and adds the
// spectator rule: a player who joined mid-round neither votes nor is
// voted on.
type Tally struct {
	store          store.Store
	spectatorGrace time.Duration
}

func New(s store.Store, spectatorGrace time.Duration) *Tally {
	return &Tally{store: s, spectatorGrace: spectatorGrace}
}

// Toggle casts the veto if absent, retracts it if present. Self-votes,
// votes on empty answers, and votes involving spectators come back as
// store.ErrInvalidTarget.
func (t *Tally) Toggle(ctx context.Context, roomID string, round int, voterID, targetID, category string) (VoteState, error) {
	room, err := t.store.RoomByID(ctx, roomID)
	if err != nil {
		return VoteState{}, fmt.Errorf("toggle vote: %w", err)
	}

	for _, id := range []string{voterID, targetID} {
		p, err := t.store.PlayerByID(ctx, id)
		if err != nil {
			return VoteState{}, fmt.Errorf("toggle vote: %w", err)
		}
		if p.Spectator(room.RoundStartedAt, t.spectatorGrace) {
			return VoteState{}, store.ErrInvalidTarget
		}
	}

	cast, stored, err := t.store.ToggleVote(ctx, store.Vote{
		RoomID:   roomID,
		Round:    round,
		VoterID:  voterID,
		TargetID: targetID,
		Category: category,
	})
	if err != nil {
		return VoteState{}, err
	}
	return VoteState{Cast: cast, Vote: stored}, nil
}

// TargetKey addresses one answer under vote.
type TargetKey struct {
	TargetID string
	Category string
}

// VetoCounts folds a vote list into per-target counts.
func VetoCounts(votes []store.Vote) map[TargetKey]int {
	counts := make(map[TargetKey]int)
	for _, v := range votes {
		if !v.IsVeto {
			continue
		}
		counts[TargetKey{TargetID: v.TargetID, Category: v.Category}]++
	}
	return counts
}

// IsRejected reports whether the answer lost its majority vote: strictly
// more than half of the active players vetoed it. A tie keeps the
// answer alive.
func IsRejected(votes []store.Vote, targetID, category string, activePlayers int) bool {
	if activePlayers <= 0 {
		return false
	}
	count := VetoCounts(votes)[TargetKey{TargetID: targetID, Category: category}]
	return count*2 > activePlayers
}
