package store

import (
	"time"

	"github.com/harfbaz/harfbaz-server/internal/session"
)

// Settings mirrors session.Settings on the wire and in the database.
type Settings struct {
	RoundDurationSec int  `json:"round_duration_sec"`
	TotalRounds      int  `json:"total_rounds"`
	HiddenMode       bool `json:"hidden_mode"`
}

// Room is the authoritative room row. Mutated only through the session
// state machine; every other component reads it.
type Room struct {
	ID                  string        `json:"id" gorm:"column:id;primaryKey;size:36"`
	Code                string        `json:"code" gorm:"column:code;size:8;uniqueIndex"`
	Phase               session.Phase `json:"phase" gorm:"column:phase;size:16"`
	CurrentRound        int           `json:"current_round" gorm:"column:current_round"`
	CurrentLetter       string        `json:"current_letter" gorm:"column:current_letter;size:4"`
	SessionID           string        `json:"session_id" gorm:"column:session_id;size:36"`
	CategoryOrder       []string      `json:"category_order" gorm:"column:category_order;serializer:json"`
	VotingCategoryIndex int           `json:"voting_category_index" gorm:"column:voting_category_index"`
	RevealedPlayerIDs   []string      `json:"revealed_player_ids" gorm:"column:revealed_player_ids;serializer:json"`
	UsedLetters         []string      `json:"used_letters" gorm:"column:used_letters;serializer:json"`
	RoundStartedAt      time.Time     `json:"round_started_at" gorm:"column:round_started_at"`
	Settings            Settings      `json:"settings" gorm:"column:settings;serializer:json"`
	CreatedAt           time.Time     `json:"created_at" gorm:"column:created_at"`
}

func (Room) TableName() string { return "rooms" }

// Player is one seat in a room. The id doubles as the identity token
// the client persists across reloads.
type Player struct {
	ID       string    `json:"id" gorm:"column:id;primaryKey;size:36"`
	RoomID   string    `json:"room_id" gorm:"column:room_id;size:36;index"`
	Name     string    `json:"name" gorm:"column:name;size:64"`
	Avatar   string    `json:"avatar" gorm:"column:avatar;size:8"`
	IsHost   bool      `json:"is_host" gorm:"column:is_host"`
	Score    int       `json:"score" gorm:"column:score"`
	JoinedAt time.Time `json:"joined_at" gorm:"column:joined_at"`
}

func (Player) TableName() string { return "players" }

// Spectator reports whether this player joined too late to take part
// in the round that started at roundStart: spectators may watch but
// not vote, be voted on, or be waited on for answers.
func (p Player) Spectator(roundStart time.Time, grace time.Duration) bool {
	if roundStart.IsZero() {
		return false
	}
	return p.JoinedAt.After(roundStart.Add(grace))
}

// Answer is one player's sheet for one round. Natural key
// (room, round, session, player); resubmission replaces the row.
type Answer struct {
	ID          string            `json:"id" gorm:"column:id;primaryKey;size:36"`
	RoomID      string            `json:"room_id" gorm:"column:room_id;size:36;uniqueIndex:idx_answer_key,priority:1"`
	Round       int               `json:"round" gorm:"column:round;uniqueIndex:idx_answer_key,priority:2"`
	SessionID   string            `json:"session_id" gorm:"column:session_id;size:36;uniqueIndex:idx_answer_key,priority:3"`
	PlayerID    string            `json:"player_id" gorm:"column:player_id;size:36;uniqueIndex:idx_answer_key,priority:4"`
	Answers     map[string]string `json:"answers" gorm:"column:answers;serializer:json"`
	SubmittedAt time.Time         `json:"submitted_at" gorm:"column:submitted_at"`
}

func (Answer) TableName() string { return "answers" }

// Vote is one veto. Presence means cast; the toggle procedure deletes
// on a second identical request. The surrogate id is what delete
// events carry, so an optimistic local row is never removed by content
// match.
type Vote struct {
	ID       string    `json:"id" gorm:"column:id;primaryKey;size:36"`
	RoomID   string    `json:"room_id" gorm:"column:room_id;size:36;uniqueIndex:idx_vote_key,priority:1"`
	Round    int       `json:"round" gorm:"column:round;uniqueIndex:idx_vote_key,priority:2"`
	VoterID  string    `json:"voter_id" gorm:"column:voter_id;size:36;uniqueIndex:idx_vote_key,priority:3"`
	TargetID string    `json:"target_id" gorm:"column:target_id;size:36;uniqueIndex:idx_vote_key,priority:4"`
	Category string    `json:"category" gorm:"column:category;size:64;uniqueIndex:idx_vote_key,priority:5"`
	IsVeto   bool      `json:"is_veto" gorm:"column:is_veto"`
	CastAt   time.Time `json:"cast_at" gorm:"column:cast_at"`
}

func (Vote) TableName() string { return "votes" }

// ScoredRound guards score commitment: one row per (room, round) that
// has already had its deltas applied.
type ScoredRound struct {
	RoomID   string    `json:"room_id" gorm:"column:room_id;primaryKey;size:36"`
	Round    int       `json:"round" gorm:"column:round;primaryKey"`
	ScoredAt time.Time `json:"scored_at" gorm:"column:scored_at"`
}

func (ScoredRound) TableName() string { return "scored_rounds" }
