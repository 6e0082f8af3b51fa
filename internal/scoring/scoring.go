// Package scoring turns a finished round's answers and votes into
// score deltas. It is the only place player-reported text becomes
// points, so it runs next to the store and commits through the
// once-per-round guard.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/harfbaz/harfbaz-server/internal/game"
	"github.com/harfbaz/harfbaz-server/internal/store"
	"github.com/harfbaz/harfbaz-server/internal/tally"
)

// folder lowercases with Turkish rules: dotted/dotless i must fold
// correctly or "İnci" never matches letter İ.
var folder = cases.Lower(language.Turkish)

type Calculator struct {
	store          store.Store
	log            *zap.SugaredLogger
	spectatorGrace time.Duration
}

func New(s store.Store, log *zap.SugaredLogger, spectatorGrace time.Duration) *Calculator {
	return &Calculator{store: s, log: log, spectatorGrace: spectatorGrace}
}

// ComputeRoundScores evaluates every active player's sheet for the
// round. Per category: empty answers and answers not opening with the
// round letter score zero, majority-vetoed answers score zero, a word
// someone else also wrote scores PointsDuplicate, a unique word scores
// PointsUnique.
func (c *Calculator) ComputeRoundScores(ctx context.Context, roomID string, round int) (map[string]int, error) {
	room, err := c.store.RoomByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("compute scores: %w", err)
	}
	players, err := c.store.Players(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("compute scores: %w", err)
	}
	answers, err := c.store.Answers(ctx, roomID, round, room.SessionID)
	if err != nil {
		return nil, fmt.Errorf("compute scores: %w", err)
	}
	votes, err := c.store.Votes(ctx, roomID, round)
	if err != nil {
		return nil, fmt.Errorf("compute scores: %w", err)
	}

	letter := normalize(room.CurrentLetter)

	var active []store.Player
	for _, p := range players {
		if !p.Spectator(room.RoundStartedAt, c.spectatorGrace) {
			active = append(active, p)
		}
	}

	sheets := make(map[string]map[string]string, len(answers))
	for _, a := range answers {
		sheets[a.PlayerID] = a.Answers
	}

	// Word pool per category: normalized answers that pass the empty
	// and letter checks. A vetoed answer still counts toward someone
	// else's duplicate status.
	pool := make(map[string]map[string]int)
	for _, p := range active {
		for category, raw := range sheets[p.ID] {
			word := normalize(raw)
			if word == "" || !strings.HasPrefix(word, letter) {
				continue
			}
			if pool[category] == nil {
				pool[category] = make(map[string]int)
			}
			pool[category][word]++
		}
	}

	deltas := make(map[string]int, len(active))
	for _, p := range active {
		total := 0
		for _, category := range room.CategoryOrder {
			word := normalize(sheets[p.ID][category])
			if word == "" {
				continue
			}
			if !strings.HasPrefix(word, letter) {
				continue
			}
			if tally.IsRejected(votes, p.ID, category, len(active)) {
				continue
			}
			if pool[category][word] > 1 {
				total += game.PointsDuplicate
			} else {
				total += game.PointsUnique
			}
		}
		deltas[p.ID] = total
	}
	return deltas, nil
}

// CommitOnce applies the deltas behind the store's processed-rounds
// guard. A duplicate commit is success, not an error: the host's
// retry-on-failure path may fire it twice.
func (c *Calculator) CommitOnce(ctx context.Context, roomID string, round int, deltas map[string]int) error {
	err := c.store.CommitRoundScores(ctx, roomID, round, deltas)
	if errors.Is(err, store.ErrAlreadyProcessed) {
		c.log.Infow("round already scored, skipping", "room", roomID, "round", round)
		return nil
	}
	if err != nil {
		return fmt.Errorf("commit scores: %w", err)
	}
	return nil
}

// ScoreRound computes and commits in one call.
func (c *Calculator) ScoreRound(ctx context.Context, roomID string, round int) error {
	deltas, err := c.ComputeRoundScores(ctx, roomID, round)
	if err != nil {
		return err
	}
	return c.CommitOnce(ctx, roomID, round, deltas)
}

func normalize(s string) string {
	return folder.String(strings.TrimSpace(s))
}
