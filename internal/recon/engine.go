// Package recon is the per-client reconciliation engine: it holds the
// local view of one room, applies optimistic user intents, merges the
// store's change feed without duplicating or losing records, and
// restores the view after a reload or dropped connection.
//
// The engine is a single goroutine in the actor shape:
// every intent and every inbound event funnels through one inbox, so
// the view needs no locking.
package recon

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/harfbaz/harfbaz-server/internal/ledger"
	"github.com/harfbaz/harfbaz-server/internal/scoring"
	"github.com/harfbaz/harfbaz-server/internal/session"
	"github.com/harfbaz/harfbaz-server/internal/store"
	"github.com/harfbaz/harfbaz-server/internal/tally"
)

var ErrNotInRoom = errors.New("not joined to a room")
var ErrBusy = errors.New("transition already in flight")

type msg interface{ isEngineMsg() }

type intentMsg struct {
	name  string
	run   func(ctx context.Context) error
	reply chan error
}

type storeEventMsg struct{ ev store.Event }
type feedClosedMsg struct{}
type tickMsg struct{}
type snapshotMsg struct{ reply chan View }

func (intentMsg) isEngineMsg()     {}
func (storeEventMsg) isEngineMsg() {}
func (feedClosedMsg) isEngineMsg() {}
func (tickMsg) isEngineMsg()       {}
func (snapshotMsg) isEngineMsg()   {}

// Options tune the engine's timers. Zero values fall back to the
// defaults the game was designed around.
type Options struct {
	SpectatorGrace time.Duration // mid-round join window before spectator status
	RoundGrace     time.Duration // slack past the round duration before forcing Voting
	PollInterval   time.Duration // host poll cadence in Playing
	AdvanceTimeout time.Duration // in-flight guard safety release
	SubmitWait     time.Duration // ceiling on waiting for stragglers after time is up
}

func (o Options) withDefaults() Options {
	if o.SpectatorGrace == 0 {
		o.SpectatorGrace = 10 * time.Second
	}
	if o.RoundGrace == 0 {
		o.RoundGrace = 3 * time.Second
	}
	if o.PollInterval == 0 {
		o.PollInterval = time.Second
	}
	if o.AdvanceTimeout == 0 {
		o.AdvanceTimeout = 5 * time.Second
	}
	if o.SubmitWait == 0 {
		o.SubmitWait = 10 * time.Second
	}
	return o
}

type Engine struct {
	store   store.Store
	ledger  *ledger.Ledger
	tally   *tally.Tally
	scoring *scoring.Calculator
	log     *zap.SugaredLogger
	opts    Options

	inbox  chan msg
	ctx    context.Context
	cancel context.CancelFunc

	// Everything below is owned by the loop goroutine.
	view       View
	lastPhase  session.Phase
	bound      bool
	subCancel  func()
	inFlight   bool
	inFlightAt time.Time
	// processed guards the host's scoring trigger client-side, on top
	// of the store's own guard.
	processed map[int]bool
	timeUpAt  time.Time // when the host first saw the round expire
	onUpdate  func(View)
}

func New(parent context.Context, s store.Store, log *zap.SugaredLogger, opts Options) *Engine {
	ctx, cancel := context.WithCancel(parent)
	opts = opts.withDefaults()

	e := &Engine{
		store:     s,
		ledger:    ledger.New(s),
		tally:     tally.New(s, opts.SpectatorGrace),
		scoring:   scoring.New(s, log, opts.SpectatorGrace),
		log:       log,
		opts:      opts,
		inbox:     make(chan msg, 64),
		ctx:       ctx,
		cancel:    cancel,
		processed: map[int]bool{},
		view:      View{Conn: store.Disconnected},
	}
	go e.loop()
	return e
}

// OnUpdate registers the presentation callback. It is invoked from the
// engine goroutine after every view change; keep it cheap.
func (e *Engine) OnUpdate(fn func(View)) {
	e.send(intentMsg{name: "on_update", run: func(context.Context) error {
		e.onUpdate = fn
		return nil
	}, reply: make(chan error, 1)})
}

// Snapshot returns a copy of the current view.
func (e *Engine) Snapshot() View {
	reply := make(chan View, 1)
	select {
	case e.inbox <- snapshotMsg{reply: reply}:
		return <-reply
	case <-e.ctx.Done():
		return View{}
	}
}

func (e *Engine) Close() {
	e.cancel()
}

func (e *Engine) send(m intentMsg) error {
	select {
	case e.inbox <- m:
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
	select {
	case err := <-m.reply:
		return err
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
}

func (e *Engine) intent(name string, run func(ctx context.Context) error) error {
	return e.send(intentMsg{name: name, run: run, reply: make(chan error, 1)})
}

func (e *Engine) loop() {
	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			if e.subCancel != nil {
				e.subCancel()
			}
			return

		case <-ticker.C:
			e.handleTick()

		case m := <-e.inbox:
			switch m := m.(type) {
			case intentMsg:
				err := m.run(e.ctx)
				if err != nil && !silent(err) {
					e.log.Warnw("intent failed", "intent", m.name, "error", err)
				}
				m.reply <- err
				e.notify()

			case storeEventMsg:
				e.applyEvent(m.ev)
				e.notify()

			case feedClosedMsg:
				e.handleFeedClosed()
				e.notify()

			case snapshotMsg:
				m.reply <- e.view.clone()
			}
		}
	}
}

// silent errors are expected rejections, not failures worth logging.
func silent(err error) bool {
	return errors.Is(err, store.ErrInvalidTarget) ||
		errors.Is(err, session.ErrNotHost) ||
		errors.Is(err, ErrBusy)
}

func (e *Engine) notify() {
	if e.onUpdate != nil {
		e.onUpdate(e.view.clone())
	}
}

// subscribe opens the room feed and pumps it into the inbox.
func (e *Engine) subscribe(roomID string) {
	if e.subCancel != nil {
		e.subCancel()
	}
	ch, cancel := e.store.Subscribe(roomID)
	e.subCancel = cancel
	e.view.Conn = store.Connected

	go func() {
		for ev := range ch {
			select {
			case e.inbox <- storeEventMsg{ev: ev}:
			case <-e.ctx.Done():
				return
			}
		}
		select {
		case e.inbox <- feedClosedMsg{}:
		case <-e.ctx.Done():
		}
	}()
}

// handleFeedClosed runs the reconnect path: the feed channel closing
// means this client fell behind or the room went away. Buffered local
// guesses are not trusted; the view is rebuilt from the store.
func (e *Engine) handleFeedClosed() {
	if !e.bound {
		return
	}
	e.view.Conn = store.Reconnecting
	e.notify()

	if err := e.resync(e.ctx); err != nil {
		if errors.Is(err, store.ErrSessionExpired) {
			e.expireSession()
			return
		}
		e.log.Warnw("resync failed", "error", err)
		e.view.Conn = store.Disconnected
		return
	}
	e.subscribe(e.view.Room.ID)
}

// expireSession clears the binding after the room or player vanished.
func (e *Engine) expireSession() {
	if e.subCancel != nil {
		e.subCancel()
		e.subCancel = nil
	}
	e.bound = false
	e.view = View{Conn: store.Disconnected}
	e.lastPhase = ""
	e.processed = map[int]bool{}
}

// resync rebuilds the whole view from persisted state, the same path
// a page reload takes.
func (e *Engine) resync(ctx context.Context) error {
	room, err := e.store.RoomByID(ctx, e.view.Room.ID)
	if errors.Is(err, store.ErrNotFound) {
		return store.ErrSessionExpired
	}
	if err != nil {
		return err
	}
	me, err := e.store.PlayerByID(ctx, e.view.Me.ID)
	if errors.Is(err, store.ErrNotFound) {
		return store.ErrSessionExpired
	}
	if err != nil {
		return err
	}
	players, err := e.store.Players(ctx, room.ID)
	if err != nil {
		return err
	}

	e.view.Room = room
	e.view.Me = me
	e.view.Players = players
	e.view.Phase = derivePhase(room.Phase, true)
	e.lastPhase = e.view.Phase

	if room.Phase == session.PhaseVoting {
		if err := e.fetchRound(ctx, room); err != nil {
			return err
		}
	} else {
		e.view.Answers = map[string]map[string]string{}
		e.view.Votes = nil
	}
	e.view.Conn = store.Connected
	return nil
}

// fetchRound pulls the round's answers and votes fresh.
func (e *Engine) fetchRound(ctx context.Context, room store.Room) error {
	answers, err := e.store.Answers(ctx, room.ID, room.CurrentRound, room.SessionID)
	if err != nil {
		return err
	}
	votes, err := e.store.Votes(ctx, room.ID, room.CurrentRound)
	if err != nil {
		return err
	}
	sheets := make(map[string]map[string]string, len(answers))
	for _, a := range answers {
		sheets[a.PlayerID] = a.Answers
	}
	e.view.Answers = sheets
	e.view.Votes = votes
	return nil
}

// sessionState projects the room row into machine state.
func sessionState(room store.Room) session.State {
	used := make(map[rune]bool, len(room.UsedLetters))
	for _, s := range room.UsedLetters {
		for _, r := range s {
			used[r] = true
		}
	}
	revealed := make(map[string]bool, len(room.RevealedPlayerIDs))
	for _, id := range room.RevealedPlayerIDs {
		revealed[id] = true
	}
	var letter rune
	for _, r := range room.CurrentLetter {
		letter = r
		break
	}
	return session.State{
		Phase:               room.Phase,
		Round:               room.CurrentRound,
		Letter:              letter,
		SessionID:           room.SessionID,
		CategoryOrder:       room.CategoryOrder,
		VotingCategoryIndex: room.VotingCategoryIndex,
		Revealed:            revealed,
		UsedLetters:         used,
		RoundStartedAt:      room.RoundStartedAt,
		Settings: session.Settings{
			RoundDurationSec: room.Settings.RoundDurationSec,
			TotalRounds:      room.Settings.TotalRounds,
			HiddenMode:       room.Settings.HiddenMode,
		},
	}
}

// applyState writes machine state back onto the room row.
func applyState(room store.Room, s session.State) store.Room {
	room.Phase = s.Phase
	room.CurrentRound = s.Round
	if s.Letter == 0 {
		room.CurrentLetter = ""
	} else {
		room.CurrentLetter = string(s.Letter)
	}
	room.SessionID = s.SessionID
	room.CategoryOrder = s.CategoryOrder
	room.VotingCategoryIndex = s.VotingCategoryIndex
	room.RoundStartedAt = s.RoundStartedAt

	room.RevealedPlayerIDs = room.RevealedPlayerIDs[:0]
	for id := range s.Revealed {
		room.RevealedPlayerIDs = append(room.RevealedPlayerIDs, id)
	}
	room.UsedLetters = room.UsedLetters[:0]
	for r := range s.UsedLetters {
		room.UsedLetters = append(room.UsedLetters, string(r))
	}
	room.Settings = store.Settings{
		RoundDurationSec: s.Settings.RoundDurationSec,
		TotalRounds:      s.Settings.TotalRounds,
		HiddenMode:       s.Settings.HiddenMode,
	}
	return room
}

// transition runs one machine command against the persisted room and
// writes the result back. The room stays in its prior phase when the
// command is rejected, so callers may retry freely.
func (e *Engine) transition(ctx context.Context, cmd session.Command) error {
	room, err := e.store.RoomByID(ctx, e.view.Room.ID)
	if err != nil {
		return err
	}
	st := sessionState(room)
	// A reset room persists as LOBBY while its players stay seated;
	// for a bound client that is the Waiting state.
	st.Phase = derivePhase(st.Phase, e.bound)
	cmd.IsHost = e.view.Me.IsHost
	_, next, err := session.Apply(st, cmd)
	if err != nil {
		return err
	}
	return e.store.UpdateRoom(ctx, applyState(room, next))
}
