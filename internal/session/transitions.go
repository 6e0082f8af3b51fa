package session

// transitions is the full phase graph. Voting appears in its own row
// because the host re-enters it once per category.
var transitions = map[Phase][]Phase{
	PhaseLobby:    {PhaseWaiting},
	PhaseWaiting:  {PhasePlaying, PhaseLobby},
	PhasePlaying:  {PhaseVoting},
	PhaseVoting:   {PhaseVoting, PhaseScoring},
	PhaseScoring:  {PhasePlaying, PhaseGameOver},
	PhaseGameOver: {PhaseLobby},
}

func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// EnterEffect describes what a client must do on first seeing a phase.
// The reconciliation engine runs this table once per distinct phase
// value, never per message.
type EnterEffect struct {
	FetchAnswers   bool // pull the round's answer set fresh
	FetchVotes     bool // pull the round's vote set fresh
	RefreshPlayers bool // scores changed, re-read the roster
	ClearRound     bool // drop local answers/votes/processed-round marks
}

var OnEnter = map[Phase]EnterEffect{
	PhaseWaiting:  {ClearRound: true},
	PhasePlaying:  {ClearRound: true},
	PhaseVoting:   {FetchAnswers: true, FetchVotes: true},
	PhaseScoring:  {RefreshPlayers: true},
	PhaseGameOver: {RefreshPlayers: true},
}
