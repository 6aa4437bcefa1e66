package server

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bargain/internal/negotiation"
	"bargain/internal/store"
)

// API serves the read-only HTTP surface next to the game socket: health
// checks, session snapshots and the all-rounds data export.
type API struct {
	engine *negotiation.Engine
	repo   store.Repository
	logger *log.Logger
}

// NewAPI creates the HTTP API around a live engine and its repository. The
// repository may be nil when running without persistence; the export routes
// then respond 503.
func NewAPI(engine *negotiation.Engine, repo store.Repository, logger *log.Logger) *API {
	return &API{
		engine: engine,
		repo:   repo,
		logger: logger.WithPrefix("api"),
	}
}

// Handler builds the route tree.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/health", a.handleHealth)
	r.Get("/api/game/{pairID}", a.handleGameState)
	r.Get("/api/export.csv", a.handleExport)

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Server is running",
	})
}

// handleGameState returns the summary of one session. Live sessions are read
// from the registry; finished sessions fall back to the store, so results
// stay reachable across restarts.
func (a *API) handleGameState(w http.ResponseWriter, r *http.Request) {
	pairID := chi.URLParam(r, "pairID")

	if sess, err := a.engine.Session(pairID); err == nil {
		a.writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"game":    sess.Summary(),
			"rounds":  sess.Rounds(),
		})
		return
	}

	if a.repo != nil {
		sum, err := a.repo.GetSummary(r.Context(), pairID)
		if err != nil {
			a.logger.Error("Failed to load session", "pair", pairID, "error", err)
			a.writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
			return
		}
		if sum != nil {
			a.writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"game":    sum,
			})
			return
		}
	}

	a.writeJSON(w, http.StatusNotFound, map[string]string{"message": "Game not found"})
}

// handleExport streams every recorded round as CSV.
func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	if a.repo == nil {
		a.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "Persistence disabled"})
		return
	}

	rounds, err := a.repo.ListRounds(r.Context())
	if err != nil {
		a.logger.Error("Failed to load rounds for export", "error", err)
		a.writeJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="all_games.csv"`)
	w.Header().Set("Content-Type", "text/csv")

	if err := store.WriteRoundsCSV(w, rounds); err != nil {
		a.logger.Error("Failed to write export", "error", err)
	}
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Error("Failed to encode response", "error", err)
	}
}
