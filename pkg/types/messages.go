package types

// Client -> Server
// CreateRoom:
//   name: string
//   avatar: string
//   settings: { round_duration_sec, total_rounds, hidden_mode }
//
// JoinRoom:
//   code: string
//   name: string
//   avatar: string
//
// Reconnect:
//   room_id: string
//   player_id: string
//
// UpdateSettings (host only, before the game starts):
//   settings: { round_duration_sec, total_rounds, hidden_mode }
//
// StartGame: {}          (host only)
//
// SubmitAnswers:
//   answers: { [category]: string }
//
// ToggleVote (cast or retract a veto on the category under vote):
//   target_id: string
//
// RevealCard: {}         (hidden mode; reveals the caller's own card)
//
// AdvanceCategory: {}    (host only)
//
// NextRound: {}          (host only)
//
// ResetGame: {}          (host only)
//
// KickPlayer (host only):
//   player_id: string
//
// LeaveRoom: {}

// Server -> Client
// StateSnapshot:
//   view: the full client view, sent after every change (see snapshot.go)
//
// Error:
//   error: string
//
// SessionExpired: {}     (the room or seat is gone; forget the saved binding)
