package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/harfbaz/harfbaz-server/internal/game"
)

var ErrNotHost = errors.New("host-only command")
var ErrBadTransition = errors.New("invalid phase transition")
var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrNoPlayers = errors.New("no players in room")

type Phase string

const (
	PhaseLobby    Phase = "LOBBY"
	PhaseWaiting  Phase = "WAITING"
	PhasePlaying  Phase = "PLAYING"
	PhaseVoting   Phase = "VOTING"
	PhaseScoring  Phase = "SCORING"
	PhaseGameOver Phase = "GAME_OVER"
)

// Settings are the host-chosen knobs for one game.
type Settings struct {
	RoundDurationSec int
	TotalRounds      int
	HiddenMode       bool
}

func DefaultSettings() Settings {
	return Settings{
		RoundDurationSec: game.DefaultRoundDurationSec,
		TotalRounds:      game.DefaultTotalRounds,
	}
}

// State is the machine's view of one room. It is a value: Apply never
// mutates its input, it returns the successor state.
type State struct {
	Phase               Phase
	Round               int
	Letter              rune
	SessionID           string
	CategoryOrder       []string
	VotingCategoryIndex int
	Revealed            map[string]bool
	UsedLetters         map[rune]bool
	RoundStartedAt      time.Time
	Settings            Settings
}

func NewState(settings Settings) State {
	return State{
		Phase:       PhaseLobby,
		Round:       1,
		Revealed:    map[string]bool{},
		UsedLetters: map[rune]bool{},
		Settings:    settings,
	}
}

type CommandType string

const (
	CmdPlayerJoined    CommandType = "PlayerJoined"
	CmdStartGame       CommandType = "StartGame"
	CmdBeginVoting     CommandType = "BeginVoting"
	CmdAdvanceCategory CommandType = "AdvanceCategory"
	CmdBeginScoring    CommandType = "BeginScoring"
	CmdNextRound       CommandType = "NextRound"
	CmdRevealCard      CommandType = "RevealCard"
	CmdResetGame       CommandType = "ResetGame"
)

// Command is one request against the machine. IsHost is resolved by the
// caller from the player roster; the machine only enforces it.
type Command struct {
	Type     CommandType
	IsHost   bool
	PlayerID string
}

type EventType string

const (
	EvtPhaseChanged     EventType = "PhaseChanged"
	EvtRoundStarted     EventType = "RoundStarted"
	EvtCategoryAdvanced EventType = "CategoryAdvanced"
	EvtCardRevealed     EventType = "CardRevealed"
	EvtGameCompleted    EventType = "GameCompleted"
)

type Event struct {
	Type     EventType
	Phase    Phase
	Round    int
	PlayerID string
}

// Injection points so Apply stays deterministic under test.
var (
	pickLetter        = game.NextLetter
	shuffleCategories = game.ShuffledCategories
	newSessionID      = uuid.NewString
	now               = time.Now
)

// hostOnly lists the commands a non-host may not issue.
var hostOnly = map[CommandType]bool{
	CmdStartGame:       true,
	CmdAdvanceCategory: true,
	CmdBeginScoring:    true,
	CmdNextRound:       true,
	CmdResetGame:       true,
}

// Apply runs one command against the state and returns the events it
// produced plus the successor state. A rejected command returns the
// input state untouched together with a sentinel error; rejection is
// never fatal and the caller may retry.
func Apply(s State, cmd Command) ([]Event, State, error) {
	if hostOnly[cmd.Type] && !cmd.IsHost {
		return nil, s, ErrNotHost
	}

	switch cmd.Type {
	case CmdPlayerJoined:
		if s.Phase != PhaseLobby {
			return nil, s, nil
		}
		next := clone(s)
		next.Phase = PhaseWaiting
		return []Event{{Type: EvtPhaseChanged, Phase: PhaseWaiting}}, next, nil

	case CmdStartGame:
		if !CanTransition(s.Phase, PhasePlaying) || s.Phase != PhaseWaiting {
			return nil, s, ErrBadTransition
		}
		next := clone(s)
		next.Phase = PhasePlaying
		next.Round = 1
		next.SessionID = newSessionID()
		next.CategoryOrder = shuffleCategories()
		next.UsedLetters = map[rune]bool{}
		next.Letter = pickLetter(next.UsedLetters)
		next.UsedLetters[next.Letter] = true
		next.VotingCategoryIndex = 0
		next.Revealed = map[string]bool{}
		next.RoundStartedAt = now()
		return []Event{
			{Type: EvtPhaseChanged, Phase: PhasePlaying},
			{Type: EvtRoundStarted, Round: 1},
		}, next, nil

	case CmdBeginVoting:
		if !CanTransition(s.Phase, PhaseVoting) {
			return nil, s, ErrBadTransition
		}
		next := clone(s)
		next.Phase = PhaseVoting
		next.VotingCategoryIndex = 0
		next.Revealed = map[string]bool{}
		return []Event{{Type: EvtPhaseChanged, Phase: PhaseVoting}}, next, nil

	case CmdAdvanceCategory:
		if s.Phase != PhaseVoting {
			return nil, s, ErrBadTransition
		}
		if s.VotingCategoryIndex >= len(s.CategoryOrder)-1 {
			return nil, s, ErrBadTransition
		}
		next := clone(s)
		next.VotingCategoryIndex++
		next.Revealed = map[string]bool{}
		return []Event{{Type: EvtCategoryAdvanced, Round: next.VotingCategoryIndex}}, next, nil

	case CmdBeginScoring:
		if !CanTransition(s.Phase, PhaseScoring) {
			return nil, s, ErrBadTransition
		}
		// Only meaningful after the last category has been voted on.
		if s.VotingCategoryIndex < len(s.CategoryOrder)-1 {
			return nil, s, ErrBadTransition
		}
		next := clone(s)
		next.Phase = PhaseScoring
		return []Event{{Type: EvtPhaseChanged, Phase: PhaseScoring}}, next, nil

	case CmdNextRound:
		if s.Phase != PhaseScoring {
			return nil, s, ErrBadTransition
		}
		if s.Round >= s.Settings.TotalRounds {
			next := clone(s)
			next.Phase = PhaseGameOver
			return []Event{
				{Type: EvtPhaseChanged, Phase: PhaseGameOver},
				{Type: EvtGameCompleted},
			}, next, nil
		}
		next := clone(s)
		next.Phase = PhasePlaying
		next.Round++
		next.Letter = pickLetter(next.UsedLetters)
		next.UsedLetters[next.Letter] = true
		next.VotingCategoryIndex = 0
		next.Revealed = map[string]bool{}
		next.RoundStartedAt = now()
		return []Event{
			{Type: EvtPhaseChanged, Phase: PhasePlaying},
			{Type: EvtRoundStarted, Round: next.Round},
		}, next, nil

	case CmdRevealCard:
		if s.Phase != PhaseVoting || !s.Settings.HiddenMode {
			return nil, s, ErrBadTransition
		}
		if s.Revealed[cmd.PlayerID] {
			return nil, s, nil
		}
		next := clone(s)
		next.Revealed[cmd.PlayerID] = true
		return []Event{{Type: EvtCardRevealed, PlayerID: cmd.PlayerID}}, next, nil

	case CmdResetGame:
		if !CanTransition(s.Phase, PhaseLobby) {
			return nil, s, ErrBadTransition
		}
		next := NewState(s.Settings)
		return []Event{{Type: EvtPhaseChanged, Phase: PhaseLobby}}, next, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func clone(s State) State {
	next := s
	next.Revealed = make(map[string]bool, len(s.Revealed))
	for k, v := range s.Revealed {
		next.Revealed[k] = v
	}
	next.UsedLetters = make(map[rune]bool, len(s.UsedLetters))
	for k, v := range s.UsedLetters {
		next.UsedLetters[k] = v
	}
	next.CategoryOrder = append([]string(nil), s.CategoryOrder...)
	return next
}
