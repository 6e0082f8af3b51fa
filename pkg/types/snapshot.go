package types

// StateSnapshot view:
//   room:
//     id: string
//     code: string
//     phase: "LOBBY" | "WAITING" | "PLAYING" | "VOTING" | "SCORING" | "GAME_OVER"
//     current_round: number
//     current_letter: string
//     session_id: string              // game generation; changes on every start
//     category_order: string[]
//     voting_category_index: number
//     revealed_player_ids: string[]   // hidden mode only
//     round_started_at: timestamp
//     settings: { round_duration_sec, total_rounds, hidden_mode }
//   phase: derived client phase (a seated player sees WAITING for a LOBBY room)
//   players: [ { id, name, avatar, is_host, score, joined_at } ]
//   me: the caller's own player row
//   answers: { [playerId]: { [category]: string } }  // the round under vote
//   votes: [ { id, round, voter_id, target_id, category, is_veto } ]
//   conn: "connected" | "disconnected" | "reconnecting"
