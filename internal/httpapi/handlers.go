package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/harfbaz/harfbaz-server/internal/game"
	"github.com/harfbaz/harfbaz-server/internal/store"
)

type API struct {
	store     store.Store
	log       *zap.SugaredLogger
	publicURL string
}

// RoomByCode lets a client check a code before opening the socket.
// Only the public fields are returned; the roster travels over the
// websocket.
func (a *API) RoomByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	room, err := a.store.RoomByCode(r.Context(), code)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		a.log.Warnw("room lookup failed", "code", code, "error", err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Code    string `json:"code"`
		Phase   string `json:"phase"`
		Players int    `json:"players"`
	}{Code: room.Code, Phase: string(room.Phase), Players: a.playerCount(r, room.ID)})
}

func (a *API) playerCount(r *http.Request, roomID string) int {
	players, err := a.store.Players(r.Context(), roomID)
	if err != nil {
		return 0
	}
	return len(players)
}

// RoomQR renders the join link as a PNG for the host to put on a
// shared screen.
func (a *API) RoomQR(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))

	if _, err := a.store.RoomByCode(r.Context(), code); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	png, err := qrcode.Encode(a.publicURL+"/join/"+code, qrcode.Medium, 256)
	if err != nil {
		a.log.Warnw("qr encode failed", "code", code, "error", err)
		http.Error(w, "qr encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

type metaResponse struct {
	Avatars         []string       `json:"avatars"`
	Categories      []string       `json:"categories"`
	DefaultSettings store.Settings `json:"default_settings"`
}

// Meta serves the static picks a lobby screen needs before any room
// exists: selectable avatars, the category pool, and the settings
// defaults.
func Meta(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(metaResponse{
		Avatars:    game.Avatars,
		Categories: game.Categories,
		DefaultSettings: store.Settings{
			RoundDurationSec: game.DefaultRoundDurationSec,
			TotalRounds:      game.DefaultTotalRounds,
		},
	})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
