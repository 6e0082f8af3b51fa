package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harfbaz/harfbaz-server/internal/hub"
)

type answerKey struct {
	RoomID    string
	Round     int
	SessionID string
	PlayerID  string
}

type voteKey struct {
	RoomID   string
	Round    int
	VoterID  string
	TargetID string
	Category string
}

// Memory is the in-process Store. All records live behind one mutex;
// every method is atomic, which is exactly the guarantee the
// procedures need.
type Memory struct {
	mu       sync.Mutex
	rooms    map[string]Room   // by id
	codes    map[string]string // code -> room id
	players  map[string]Player // by id
	answers  map[string]Answer // by id
	answerix map[answerKey]string
	votes    map[string]Vote // by id
	voteix   map[voteKey]string
	scored   map[string]map[int]bool

	events *hub.Hub[Event]
}

func NewMemory() *Memory {
	return &Memory{
		rooms:    make(map[string]Room),
		codes:    make(map[string]string),
		players:  make(map[string]Player),
		answers:  make(map[string]Answer),
		answerix: make(map[answerKey]string),
		votes:    make(map[string]Vote),
		voteix:   make(map[voteKey]string),
		scored:   make(map[string]map[int]bool),
		events:   hub.New[Event](),
	}
}

func (m *Memory) CreateRoom(_ context.Context, room Room) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.codes[room.Code]; taken {
		return Room{}, ErrCodeTaken
	}
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	room.CreatedAt = time.Now()
	m.rooms[room.ID] = copyRoom(room)
	m.codes[room.Code] = room.ID
	return copyRoom(room), nil
}

func (m *Memory) RoomByID(_ context.Context, id string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomByIDLocked(id)
}

func (m *Memory) roomByIDLocked(id string) (Room, error) {
	room, ok := m.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}
	return copyRoom(room), nil
}

func (m *Memory) RoomByCode(_ context.Context, code string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.codes[strings.ToUpper(code)]
	if !ok {
		return Room{}, ErrNotFound
	}
	return m.roomByIDLocked(id)
}

func (m *Memory) UpdateRoom(_ context.Context, room Room) error {
	m.mu.Lock()
	if _, ok := m.rooms[room.ID]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	m.rooms[room.ID] = copyRoom(room)
	m.mu.Unlock()

	m.events.Publish(room.ID, RoomChanged{Room: copyRoom(room)})
	return nil
}

func (m *Memory) DeleteRoom(_ context.Context, id string) error {
	m.mu.Lock()
	room, ok := m.rooms[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.rooms, id)
	delete(m.codes, room.Code)
	delete(m.scored, id)
	for pid, p := range m.players {
		if p.RoomID == id {
			delete(m.players, pid)
		}
	}
	m.deleteAnswersLocked(id)
	m.deleteVotesLocked(id)
	m.mu.Unlock()

	m.events.Close(id)
	return nil
}

func (m *Memory) UpsertPlayer(_ context.Context, p Player) error {
	m.mu.Lock()
	if _, ok := m.rooms[p.RoomID]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now()
	}
	m.players[p.ID] = p
	m.mu.Unlock()

	m.events.Publish(p.RoomID, PlayerSetChanged{})
	return nil
}

func (m *Memory) PlayerByID(_ context.Context, id string) (Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[id]
	if !ok {
		return Player{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) Players(_ context.Context, roomID string) ([]Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Player
	for _, p := range m.players {
		if p.RoomID == roomID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) DeletePlayer(_ context.Context, id string) error {
	m.mu.Lock()
	p, ok := m.players[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.players, id)
	m.mu.Unlock()

	m.events.Publish(p.RoomID, PlayerSetChanged{})
	return nil
}

func (m *Memory) ResetScores(_ context.Context, roomID string) error {
	m.mu.Lock()
	for id, p := range m.players {
		if p.RoomID == roomID {
			p.Score = 0
			m.players[id] = p
		}
	}
	delete(m.scored, roomID)
	m.mu.Unlock()

	m.events.Publish(roomID, PlayerSetChanged{})
	return nil
}

func (m *Memory) UpsertAnswer(_ context.Context, a Answer) error {
	m.mu.Lock()
	if _, ok := m.rooms[a.RoomID]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}

	key := answerKey{a.RoomID, a.Round, a.SessionID, a.PlayerID}
	op := OpInsert
	if prior, ok := m.answerix[key]; ok {
		// Last write wins; keep the original row id so update events
		// stay addressable.
		a.ID = prior
		op = OpUpdate
	} else if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.SubmittedAt = time.Now()
	m.answers[a.ID] = copyAnswer(a)
	m.answerix[key] = a.ID
	m.mu.Unlock()

	m.events.Publish(a.RoomID, AnswerChanged{Op: op, Answer: copyAnswer(a)})
	return nil
}

func (m *Memory) Answers(_ context.Context, roomID string, round int, sessionID string) ([]Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Answer
	for _, a := range m.answers {
		if a.RoomID == roomID && a.Round == round && a.SessionID == sessionID {
			out = append(out, copyAnswer(a))
		}
	}
	return out, nil
}

func (m *Memory) CountAnswers(ctx context.Context, roomID string, round int, sessionID string) (int, error) {
	answers, err := m.Answers(ctx, roomID, round, sessionID)
	if err != nil {
		return 0, err
	}
	return len(answers), nil
}

func (m *Memory) DeleteAnswers(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteAnswersLocked(roomID)
	return nil
}

func (m *Memory) deleteAnswersLocked(roomID string) {
	for id, a := range m.answers {
		if a.RoomID == roomID {
			delete(m.answers, id)
			delete(m.answerix, answerKey{a.RoomID, a.Round, a.SessionID, a.PlayerID})
		}
	}
}

// ToggleVote is the atomic cast/retract procedure. Self-votes and
// votes against an empty or missing answer are rejected here, not just
// in the client engine, so a hand-rolled client cannot sneak them in.
func (m *Memory) ToggleVote(_ context.Context, v Vote) (bool, Vote, error) {
	m.mu.Lock()

	if v.VoterID == v.TargetID {
		m.mu.Unlock()
		return false, Vote{}, ErrInvalidTarget
	}
	room, ok := m.rooms[v.RoomID]
	if !ok {
		m.mu.Unlock()
		return false, Vote{}, ErrNotFound
	}
	if !m.hasAnswerLocked(room, v.Round, v.TargetID, v.Category) {
		m.mu.Unlock()
		return false, Vote{}, ErrInvalidTarget
	}

	key := voteKey{v.RoomID, v.Round, v.VoterID, v.TargetID, v.Category}
	if id, exists := m.voteix[key]; exists {
		prior := m.votes[id]
		delete(m.votes, id)
		delete(m.voteix, key)
		m.mu.Unlock()

		m.events.Publish(v.RoomID, VoteChanged{Op: OpDelete, Vote: prior})
		return false, prior, nil
	}

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.IsVeto = true
	v.CastAt = time.Now()
	m.votes[v.ID] = v
	m.voteix[key] = v.ID
	m.mu.Unlock()

	m.events.Publish(v.RoomID, VoteChanged{Op: OpInsert, Vote: v})
	return true, v, nil
}

func (m *Memory) hasAnswerLocked(room Room, round int, playerID, category string) bool {
	id, ok := m.answerix[answerKey{room.ID, round, room.SessionID, playerID}]
	if !ok {
		return false
	}
	return strings.TrimSpace(m.answers[id].Answers[category]) != ""
}

func (m *Memory) Votes(_ context.Context, roomID string, round int) ([]Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Vote
	for _, v := range m.votes {
		if v.RoomID == roomID && v.Round == round {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *Memory) DeleteVotes(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteVotesLocked(roomID)
	return nil
}

func (m *Memory) deleteVotesLocked(roomID string) {
	for id, v := range m.votes {
		if v.RoomID == roomID {
			delete(m.votes, id)
			delete(m.voteix, voteKey{v.RoomID, v.Round, v.VoterID, v.TargetID, v.Category})
		}
	}
}

// CommitRoundScores applies deltas under the processed-rounds guard.
// Retried commits return ErrAlreadyProcessed with no score change.
func (m *Memory) CommitRoundScores(_ context.Context, roomID string, round int, deltas map[string]int) error {
	m.mu.Lock()

	if _, ok := m.rooms[roomID]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if m.scored[roomID][round] {
		m.mu.Unlock()
		return ErrAlreadyProcessed
	}
	if m.scored[roomID] == nil {
		m.scored[roomID] = make(map[int]bool)
	}
	m.scored[roomID][round] = true

	for playerID, delta := range deltas {
		if p, ok := m.players[playerID]; ok && p.RoomID == roomID {
			p.Score += delta
			m.players[playerID] = p
		}
	}
	m.mu.Unlock()

	m.events.Publish(roomID, PlayerSetChanged{})
	return nil
}

func (m *Memory) Subscribe(roomID string) (<-chan Event, func()) {
	return m.events.Subscribe(roomID, 64)
}

func copyRoom(r Room) Room {
	r.CategoryOrder = append([]string(nil), r.CategoryOrder...)
	r.RevealedPlayerIDs = append([]string(nil), r.RevealedPlayerIDs...)
	r.UsedLetters = append([]string(nil), r.UsedLetters...)
	return r
}

func copyAnswer(a Answer) Answer {
	answers := make(map[string]string, len(a.Answers))
	for k, v := range a.Answers {
		answers[k] = v
	}
	a.Answers = answers
	return a
}
