package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/harfbaz/harfbaz-server/internal/recon"
	"github.com/harfbaz/harfbaz-server/internal/store"
	"github.com/harfbaz/harfbaz-server/internal/ws"
)

// SetupRoutes wires the HTTP surface. Gameplay runs over the
// websocket; the REST routes cover room discovery and the join QR.
func SetupRoutes(s store.Store, log *zap.SugaredLogger, opts recon.Options, publicURL string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	api := &API{store: s, log: log, publicURL: publicURL}

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/meta", Meta)
	r.Get("/rooms/{code}", api.RoomByCode)
	r.Get("/rooms/{code}/qr", api.RoomQR)
	r.Get("/ws", ws.Handler(s, log, opts))
	return r
}
