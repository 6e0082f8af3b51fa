package recon

import (
	"errors"
	"time"

	"github.com/harfbaz/harfbaz-server/internal/session"
)

// handleTick is the host's round watchdog, run once per poll interval.
// During Playing it checks two exits from the round: every active
// player has submitted, or the clock ran out. The store offers no push
// for "all answers in", so this is polled, matching the transport's
// one-second resolution.
func (e *Engine) handleTick() {
	if !e.bound || !e.view.Me.IsHost || e.view.Room.Phase != session.PhasePlaying {
		e.timeUpAt = time.Time{}
		return
	}

	room := e.view.Room
	active := e.view.ActivePlayers(e.opts.SpectatorGrace)

	done, err := e.ledger.AllSubmitted(e.ctx, room.ID, room.CurrentRound, room.SessionID, len(active))
	if err != nil {
		e.log.Warnw("submission poll failed", "error", err)
		return
	}

	duration := time.Duration(room.Settings.RoundDurationSec) * time.Second
	expired := !room.RoundStartedAt.IsZero() &&
		time.Since(room.RoundStartedAt) > duration+e.opts.RoundGrace

	if expired && e.timeUpAt.IsZero() {
		e.timeUpAt = time.Now()
	}
	// After expiry, hold the door open for forced timeout submissions,
	// but only up to a hard floor so one stalled client cannot wedge
	// the whole room.
	floorPassed := !e.timeUpAt.IsZero() && time.Since(e.timeUpAt) > e.opts.SubmitWait

	if !done && !floorPassed {
		return
	}

	release, err := e.acquireAdvance()
	if err != nil {
		return
	}
	defer release()

	if err := e.transition(e.ctx, session.Command{Type: session.CmdBeginVoting}); err != nil {
		if !errors.Is(err, session.ErrBadTransition) {
			e.log.Warnw("force voting failed", "error", err)
		}
		return
	}
	e.timeUpAt = time.Time{}
	e.notify()
}
