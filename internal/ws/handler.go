package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/harfbaz/harfbaz-server/internal/recon"
	"github.com/harfbaz/harfbaz-server/internal/session"
	"github.com/harfbaz/harfbaz-server/internal/store"
	"github.com/harfbaz/harfbaz-server/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	readTimeout  = 5 * time.Minute
)

// Handler upgrades each client to a websocket and runs a dedicated
// reconciliation engine for it. Intents arrive as JSON messages; every
// view change goes back out as a full snapshot.
func Handler(s store.Store, log *zap.SugaredLogger, opts recon.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		engine := recon.New(ctx, s, log, opts)
		defer engine.Close()

		out := make(chan recon.View, 8)
		engine.OnUpdate(func(v recon.View) {
			select {
			case out <- v:
			default:
				// Writer is behind; it will catch up on the next
				// snapshot, each one carries the whole view.
			}
		})

		// Writer goroutine
		go func() {
			var wasBound bool
			for {
				select {
				case <-ctx.Done():
					return
				case v := <-out:
					bound := v.Room.ID != ""
					msg := types.ServerMessage{Type: "StateSnapshot", View: &v}
					if wasBound && !bound {
						msg = types.ServerMessage{Type: "SessionExpired"}
					}
					wasBound = bound
					if err := write(ctx, conn, msg); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			readCtx, cancelRead := context.WithTimeout(ctx, readTimeout)
			_, data, err := conn.Read(readCtx)
			cancelRead()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = write(ctx, conn, types.ServerMessage{Type: "Error", Error: "bad json"})
				continue
			}

			if err := dispatch(engine, cm); err != nil {
				_ = write(ctx, conn, types.ServerMessage{Type: "Error", Error: userError(err)})
			}
		}
	}
}

func dispatch(e *recon.Engine, m types.ClientMessage) error {
	switch m.Type {
	case "CreateRoom":
		var settings store.Settings
		if m.Settings != nil {
			settings = *m.Settings
		}
		_, err := e.CreateRoom(m.Name, m.Avatar, settings)
		return err
	case "JoinRoom":
		_, err := e.Join(m.Code, m.Name, m.Avatar)
		return err
	case "Reconnect":
		_, err := e.Reconnect(m.RoomID, m.PlayerID)
		return err
	case "LeaveRoom":
		return e.Leave()
	case "KickPlayer":
		return e.Kick(m.PlayerID)
	case "UpdateSettings":
		if m.Settings == nil {
			return errors.New("missing settings")
		}
		return e.UpdateSettings(*m.Settings)
	case "StartGame":
		return e.Start()
	case "SubmitAnswers":
		return e.SubmitAnswers(m.Answers)
	case "ToggleVote":
		return e.ToggleVote(m.TargetID)
	case "RevealCard":
		return e.RevealCard()
	case "AdvanceCategory":
		return e.AdvanceCategory()
	case "NextRound":
		return e.NextRound()
	case "ResetGame":
		return e.Reset()
	default:
		return errors.New("unknown type")
	}
}

// userError maps internal failures to messages safe to show a client.
func userError(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "room not found"
	case errors.Is(err, store.ErrSessionExpired):
		return "session expired"
	case errors.Is(err, store.ErrInvalidTarget):
		return "invalid target"
	case errors.Is(err, session.ErrNotHost):
		return "host only"
	case errors.Is(err, recon.ErrNotInRoom):
		return "not in a room"
	case errors.Is(err, recon.ErrBusy):
		return "try again"
	default:
		return err.Error()
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, payload)
}
