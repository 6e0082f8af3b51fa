// Package ledger records per-player answer sheets for a round.
package ledger

import (
	"context"
	"fmt"

	"github.com/harfbaz/harfbaz-server/internal/store"
)

// Ledger is a thin, idempotent layer over the answer table. Submitting
// twice for the same (room, round, session, player) key replaces the
// earlier sheet: the explicit "submit early" click and the forced
// timeout submit land on the same row.
type Ledger struct {
	store store.Store
}

func New(s store.Store) *Ledger {
	return &Ledger{store: s}
}

// Submit upserts one player's sheet. Unknown rooms fail with
// store.ErrNotFound; duplicate submission never fails.
func (l *Ledger) Submit(ctx context.Context, roomID string, round int, sessionID, playerID string, answers map[string]string) error {
	if _, err := l.store.RoomByID(ctx, roomID); err != nil {
		return fmt.Errorf("submit answers: %w", err)
	}
	err := l.store.UpsertAnswer(ctx, store.Answer{
		RoomID:    roomID,
		Round:     round,
		SessionID: sessionID,
		PlayerID:  playerID,
		Answers:   answers,
	})
	if err != nil {
		return fmt.Errorf("submit answers: %w", err)
	}
	return nil
}

// CountSubmitted reports how many sheets exist for the round.
func (l *Ledger) CountSubmitted(ctx context.Context, roomID string, round int, sessionID string) (int, error) {
	return l.store.CountAnswers(ctx, roomID, round, sessionID)
}

// AllSubmitted reports whether at least expected sheets are in. The
// host polls this while waiting out the grace window.
func (l *Ledger) AllSubmitted(ctx context.Context, roomID string, round int, sessionID string, expected int) (bool, error) {
	n, err := l.CountSubmitted(ctx, roomID, round, sessionID)
	if err != nil {
		return false, err
	}
	return n >= expected, nil
}
