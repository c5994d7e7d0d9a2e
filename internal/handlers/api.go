// internal/handlers/api.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/THoguet/random-lol/internal/champion"
	"github.com/THoguet/random-lol/internal/gateway"
	"github.com/THoguet/random-lol/internal/middleware"
)

// NewRouter wires the HTTP surface of the room server.
func NewRouter(logger *logrus.Logger, hub *gateway.Hub, originPatterns []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.LogMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(originPatterns),
		AllowedMethods: []string{"GET", "OPTIONS"},
		MaxAge:         300,
	}))

	r.Get("/healthz", Healthz)
	r.Get("/rooms", ListRoomsHandler(logger, hub))
	r.Get("/champions", ChampionsHandler(logger, hub))
	r.Get("/ws", RoomWSHandler(logger, hub, originPatterns))
	return r
}

// corsOrigins turns WebSocket host patterns ("example.com", "*.example.com")
// into the origin form the CORS handler matches.
func corsOrigins(patterns []string) []string {
	out := make([]string, 0, 2*len(patterns))
	for _, p := range patterns {
		if p == "*" {
			return []string{"*"}
		}
		out = append(out, "https://"+p, "http://"+p)
	}
	return out
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ListRoomsHandler returns the live rooms, for debugging.
func ListRoomsHandler(logger *logrus.Logger, hub *gateway.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := hub.Rooms(r.Context())
		if err != nil {
			logger.WithError(err).Warn("Unable to list rooms")
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, logger, rooms)
	}
}

// ChampionsHandler returns the roster the server currently rolls from.
func ChampionsHandler(logger *logrus.Logger, hub *gateway.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roster, err := hub.Roster(r.Context())
		if err != nil {
			logger.WithError(err).Warn("Unable to read roster")
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		champs := roster.All()
		if champs == nil {
			champs = []champion.Champion{}
		}
		writeJSON(w, logger, champs)
	}
}

func writeJSON(w http.ResponseWriter, logger *logrus.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Warn("Failed to encode response")
	}
}
