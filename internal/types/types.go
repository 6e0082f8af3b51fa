package types

import (
	"github.com/harfbaz/harfbaz-server/internal/recon"
	"github.com/harfbaz/harfbaz-server/internal/store"
)

type ClientMessage struct {
	Type     string            `json:"type"`
	Code     string            `json:"code,omitempty"`
	Name     string            `json:"name,omitempty"`
	Avatar   string            `json:"avatar,omitempty"`
	RoomID   string            `json:"room_id,omitempty"`
	PlayerID string            `json:"player_id,omitempty"`
	TargetID string            `json:"target_id,omitempty"`
	Settings *store.Settings   `json:"settings,omitempty"`
	Answers  map[string]string `json:"answers,omitempty"`
}

type ServerMessage struct {
	Type  string      `json:"type"` // "StateSnapshot" | "Error" | "SessionExpired"
	View  *recon.View `json:"view,omitempty"`
	Error string      `json:"error,omitempty"`
}
