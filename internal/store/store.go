// Package store defines the record model and the storage/notification
// boundary the rest of the engine is written against. Two
// implementations ship: an in-memory store for single-process serving
// and tests, and a Postgres store behind gorm.
package store

import "context"

type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// Event is a typed change notification delivered on a per-room
// subscription. Consumers ignore kinds they don't recognize.
type Event interface{ isStoreEvent() }

// RoomChanged carries the full new room row.
type RoomChanged struct{ Room Room }

// PlayerSetChanged signals that the roster changed in some way; the
// consumer re-reads the player list rather than patching it.
type PlayerSetChanged struct{}

// VoteChanged carries a single vote insert or delete. Deletes are
// applied by Vote.ID, never by content match.
type VoteChanged struct {
	Op   ChangeOp
	Vote Vote
}

// AnswerChanged carries a single answer insert or update.
type AnswerChanged struct {
	Op     ChangeOp
	Answer Answer
}

// ConnState mirrors the transport's connection lifecycle. In-process
// subscriptions only ever report Connected.
type ConnState string

const (
	Connected    ConnState = "connected"
	Disconnected ConnState = "disconnected"
	Reconnecting ConnState = "reconnecting"
)

type ConnStateChanged struct{ State ConnState }

func (RoomChanged) isStoreEvent()      {}
func (PlayerSetChanged) isStoreEvent() {}
func (VoteChanged) isStoreEvent()      {}
func (AnswerChanged) isStoreEvent()    {}
func (ConnStateChanged) isStoreEvent() {}

// Store is the keyed persistence plus change-notification surface.
// ToggleVote and CommitRoundScores are procedures, not plain writes:
// their rules must hold even against a client that skips the engine.
type Store interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	RoomByID(ctx context.Context, id string) (Room, error)
	RoomByCode(ctx context.Context, code string) (Room, error)
	// UpdateRoom replaces the room row and notifies subscribers.
	UpdateRoom(ctx context.Context, room Room) error
	DeleteRoom(ctx context.Context, id string) error

	UpsertPlayer(ctx context.Context, p Player) error
	PlayerByID(ctx context.Context, id string) (Player, error)
	Players(ctx context.Context, roomID string) ([]Player, error)
	DeletePlayer(ctx context.Context, id string) error
	// ResetScores zeroes every score in the room.
	ResetScores(ctx context.Context, roomID string) error

	// UpsertAnswer writes one player's sheet, replacing any prior row
	// with the same (room, round, session, player) key.
	UpsertAnswer(ctx context.Context, a Answer) error
	Answers(ctx context.Context, roomID string, round int, sessionID string) ([]Answer, error)
	CountAnswers(ctx context.Context, roomID string, round int, sessionID string) (int, error)
	DeleteAnswers(ctx context.Context, roomID string) error

	// ToggleVote atomically casts the vote if absent or retracts it if
	// present. cast reports the resulting state; on cast the returned
	// vote carries the stored id.
	ToggleVote(ctx context.Context, v Vote) (cast bool, stored Vote, err error)
	Votes(ctx context.Context, roomID string, round int) ([]Vote, error)
	DeleteVotes(ctx context.Context, roomID string) error

	// CommitRoundScores applies the per-player deltas exactly once per
	// (room, round); a second call returns ErrAlreadyProcessed without
	// touching any score.
	CommitRoundScores(ctx context.Context, roomID string, round int, deltas map[string]int) error

	// Subscribe opens a per-room change feed. The cancel func must be
	// called when the consumer goes away.
	Subscribe(roomID string) (<-chan Event, func())
}
