package recon

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/harfbaz/harfbaz-server/internal/session"
	"github.com/harfbaz/harfbaz-server/internal/store"
)

const codeLength = 6
const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func newRoomCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[n.Int64()]
	}
	return string(code), nil
}

// CreateRoom creates a fresh room and seats the caller as host.
func (e *Engine) CreateRoom(name, avatar string, settings store.Settings) (View, error) {
	err := e.intent("create_room", func(ctx context.Context) error {
		var room store.Room
		for attempt := 0; ; attempt++ {
			code, err := newRoomCode()
			if err != nil {
				return fmt.Errorf("create room: %w", err)
			}
			room, err = e.store.CreateRoom(ctx, store.Room{
				Code:     code,
				Phase:    session.PhaseLobby,
				Settings: settings,
			})
			if errors.Is(err, store.ErrCodeTaken) && attempt < 5 {
				continue
			}
			if err != nil {
				return fmt.Errorf("create room: %w", err)
			}
			break
		}

		me := store.Player{
			ID:       uuid.NewString(),
			RoomID:   room.ID,
			Name:     name,
			Avatar:   avatar,
			IsHost:   true,
			JoinedAt: time.Now(),
		}
		if err := e.store.UpsertPlayer(ctx, me); err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		return e.bind(ctx, room, me)
	})
	if err != nil {
		return View{}, err
	}
	return e.Snapshot(), nil
}

// Join seats the caller in the room with the given code.
func (e *Engine) Join(code, name, avatar string) (View, error) {
	err := e.intent("join", func(ctx context.Context) error {
		room, err := e.store.RoomByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("join room: %w", err)
		}
		me := store.Player{
			ID:       uuid.NewString(),
			RoomID:   room.ID,
			Name:     name,
			Avatar:   avatar,
			JoinedAt: time.Now(),
		}
		if err := e.store.UpsertPlayer(ctx, me); err != nil {
			return fmt.Errorf("join room: %w", err)
		}
		return e.bind(ctx, room, me)
	})
	if err != nil {
		return View{}, err
	}
	return e.Snapshot(), nil
}

// bind installs the room/player pair, refreshes the roster, and opens
// the change feed. Runs on the loop goroutine.
func (e *Engine) bind(ctx context.Context, room store.Room, me store.Player) error {
	// First seat taken: the room's bookkeeping moves from Lobby to
	// Waiting for everyone.
	if room.Phase == session.PhaseLobby {
		if _, next, err := session.Apply(sessionState(room), session.Command{Type: session.CmdPlayerJoined}); err == nil {
			updated := applyState(room, next)
			if err := e.store.UpdateRoom(ctx, updated); err == nil {
				room = updated
			}
		}
	}

	players, err := e.store.Players(ctx, room.ID)
	if err != nil {
		return err
	}
	e.bound = true
	e.view = View{
		Room:    room,
		Me:      me,
		Players: players,
		Phase:   derivePhase(room.Phase, true),
		Answers: map[string]map[string]string{},
		Conn:    store.Connected,
	}
	e.lastPhase = e.view.Phase
	e.processed = map[int]bool{}
	e.subscribe(room.ID)
	return nil
}

// Reconnect restores a persisted room/player binding after a reload.
// A vanished room or player surfaces as store.ErrSessionExpired.
func (e *Engine) Reconnect(roomID, playerID string) (View, error) {
	err := e.intent("reconnect", func(ctx context.Context) error {
		e.bound = true
		e.view.Room.ID = roomID
		e.view.Me.ID = playerID
		if err := e.resync(ctx); err != nil {
			e.expireSession()
			return err
		}
		e.subscribe(roomID)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return e.Snapshot(), nil
}

// Leave removes the caller from the room. Host status transfers to the
// longest-tenured remaining player; the last player out destroys the
// room.
func (e *Engine) Leave() error {
	return e.intent("leave", func(ctx context.Context) error {
		if !e.bound {
			return nil
		}
		roomID, me := e.view.Room.ID, e.view.Me
		if err := e.store.DeletePlayer(ctx, me.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if me.IsHost {
			if err := e.transferHost(ctx, roomID); err != nil {
				return err
			}
		}
		e.expireSession()
		return nil
	})
}

func (e *Engine) transferHost(ctx context.Context, roomID string) error {
	remaining, err := e.store.Players(ctx, roomID)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		return e.store.DeleteRoom(ctx, roomID)
	}
	oldest := remaining[0]
	for _, p := range remaining[1:] {
		if p.JoinedAt.Before(oldest.JoinedAt) {
			oldest = p
		}
	}
	oldest.IsHost = true
	return e.store.UpsertPlayer(ctx, oldest)
}

// Kick removes another player. Host only.
func (e *Engine) Kick(playerID string) error {
	return e.intent("kick", func(ctx context.Context) error {
		if !e.view.Me.IsHost {
			return session.ErrNotHost
		}
		if playerID == e.view.Me.ID {
			return store.ErrInvalidTarget
		}
		return e.store.DeletePlayer(ctx, playerID)
	})
}

// UpdateSettings changes the game knobs before the game starts.
func (e *Engine) UpdateSettings(settings store.Settings) error {
	return e.intent("update_settings", func(ctx context.Context) error {
		if !e.view.Me.IsHost {
			return session.ErrNotHost
		}
		room, err := e.store.RoomByID(ctx, e.view.Room.ID)
		if err != nil {
			return err
		}
		if room.Phase != session.PhaseLobby && room.Phase != session.PhaseWaiting {
			return session.ErrBadTransition
		}
		room.Settings = settings
		return e.store.UpdateRoom(ctx, room)
	})
}

// Start begins the game: fresh generation id, first letter, zeroed
// scores, cleared answers and votes.
func (e *Engine) Start() error {
	return e.intent("start", func(ctx context.Context) error {
		release, err := e.acquireAdvance()
		if err != nil {
			return err
		}
		defer release()

		if !e.view.Me.IsHost {
			return session.ErrNotHost
		}
		roomID := e.view.Room.ID
		room, err := e.store.RoomByID(ctx, roomID)
		if err != nil {
			return err
		}
		if derivePhase(room.Phase, e.bound) != session.PhaseWaiting {
			return session.ErrBadTransition
		}

		// Clear out the prior game before the phase flip goes out, so
		// a sheet submitted the instant a client sees PLAYING can
		// never be swept up by trailing cleanup.
		if err := e.store.ResetScores(ctx, roomID); err != nil {
			return err
		}
		if err := e.store.DeleteAnswers(ctx, roomID); err != nil {
			return err
		}
		if err := e.store.DeleteVotes(ctx, roomID); err != nil {
			return err
		}
		e.processed = map[int]bool{}
		return e.transition(ctx, session.Command{Type: session.CmdStartGame})
	})
}

// SubmitAnswers writes the caller's sheet for the current round. Safe
// to call again on timeout: the ledger keeps one row per key.
func (e *Engine) SubmitAnswers(answers map[string]string) error {
	return e.intent("submit_answers", func(ctx context.Context) error {
		if !e.bound {
			return ErrNotInRoom
		}
		room := e.view.Room
		return e.ledger.Submit(ctx, room.ID, room.CurrentRound, room.SessionID, e.view.Me.ID, answers)
	})
}

// ToggleVote casts or retracts the caller's veto against the target's
// answer in the category currently under vote. The local view flips
// immediately; the store's echo is deduplicated on arrival.
func (e *Engine) ToggleVote(targetID string) error {
	return e.intent("toggle_vote", func(ctx context.Context) error {
		category := e.view.currentCategory()
		if category == "" || targetID == e.view.Me.ID {
			return store.ErrInvalidTarget
		}

		undo := e.applyOptimisticToggle(targetID, category)

		state, err := e.tally.Toggle(ctx, e.view.Room.ID, e.view.Room.CurrentRound, e.view.Me.ID, targetID, category)
		if errors.Is(err, store.ErrInvalidTarget) {
			// Authoritative rejection: the guess was wrong, take it back.
			undo()
			return err
		}
		if err != nil {
			// Transient failure: leave the optimistic state in place,
			// the user may retry and the next resync reconciles.
			e.log.Warnw("vote toggle failed", "target", targetID, "error", err)
			return err
		}
		if state.Cast {
			e.adoptVoteID(state.Vote)
		}
		return nil
	})
}

// RevealCard marks the caller's card revealed in hidden mode.
func (e *Engine) RevealCard() error {
	return e.intent("reveal_card", func(ctx context.Context) error {
		return e.transition(ctx, session.Command{
			Type:     session.CmdRevealCard,
			PlayerID: e.view.Me.ID,
		})
	})
}

// AdvanceCategory moves voting to the next category; on the last
// category it scores the round and rolls into the next round or the
// final scoreboard. Host only; double-clicks are swallowed by the
// in-flight guard.
func (e *Engine) AdvanceCategory() error {
	return e.intent("advance_category", func(ctx context.Context) error {
		release, err := e.acquireAdvance()
		if err != nil {
			return err
		}
		defer release()

		room := e.view.Room
		if room.VotingCategoryIndex < len(room.CategoryOrder)-1 {
			return e.transition(ctx, session.Command{Type: session.CmdAdvanceCategory})
		}

		if err := e.transition(ctx, session.Command{Type: session.CmdBeginScoring}); err != nil {
			return err
		}
		if err := e.scoreRoundOnce(ctx, room.CurrentRound); err != nil {
			return err
		}
		return e.transition(ctx, session.Command{Type: session.CmdNextRound})
	})
}

// NextRound retries the scoring-to-next-round step, e.g. after a
// failure left the room parked in Scoring.
func (e *Engine) NextRound() error {
	return e.intent("next_round", func(ctx context.Context) error {
		release, err := e.acquireAdvance()
		if err != nil {
			return err
		}
		defer release()

		if err := e.scoreRoundOnce(ctx, e.view.Room.CurrentRound); err != nil {
			return err
		}
		return e.transition(ctx, session.Command{Type: session.CmdNextRound})
	})
}

// Reset returns a finished game to the lobby.
func (e *Engine) Reset() error {
	return e.intent("reset", func(ctx context.Context) error {
		if !e.view.Me.IsHost {
			return session.ErrNotHost
		}
		roomID := e.view.Room.ID
		room, err := e.store.RoomByID(ctx, roomID)
		if err != nil {
			return err
		}
		if !session.CanTransition(derivePhase(room.Phase, e.bound), session.PhaseLobby) {
			return session.ErrBadTransition
		}

		// Same ordering as Start: cleanup first, phase flip last.
		if err := e.store.DeleteAnswers(ctx, roomID); err != nil {
			return err
		}
		if err := e.store.DeleteVotes(ctx, roomID); err != nil {
			return err
		}
		if err := e.store.ResetScores(ctx, roomID); err != nil {
			return err
		}
		e.processed = map[int]bool{}
		return e.transition(ctx, session.Command{Type: session.CmdResetGame})
	})
}

// scoreRoundOnce commits the round's scores behind both the local
// processed-rounds mark and the store's guard.
func (e *Engine) scoreRoundOnce(ctx context.Context, round int) error {
	if !e.view.Me.IsHost {
		return session.ErrNotHost
	}
	if e.processed[round] {
		return nil
	}
	if err := e.scoring.ScoreRound(ctx, e.view.Room.ID, round); err != nil {
		return err
	}
	e.processed[round] = true
	return nil
}

// acquireAdvance is the local reentrancy guard: a second phase-advance
// while one is in flight is ignored until it completes or the safety
// timeout passes.
func (e *Engine) acquireAdvance() (func(), error) {
	if e.inFlight && time.Since(e.inFlightAt) < e.opts.AdvanceTimeout {
		return nil, ErrBusy
	}
	e.inFlight = true
	e.inFlightAt = time.Now()
	return func() { e.inFlight = false }, nil
}
