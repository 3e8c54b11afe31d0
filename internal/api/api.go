// Package api wires the HTTP surface: item/vote-event ingest and the three
// ranking pages, routed with gorilla/mux in the same style as the
// retrieved ledger service's router.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/social-protocols/rankers/internal/health"
	"github.com/social-protocols/rankers/internal/ingest"
	"github.com/social-protocols/rankers/internal/model"
	"github.com/social-protocols/rankers/internal/ranker"
	"github.com/social-protocols/rankers/internal/store"
)

// Server holds the dependencies every handler needs.
type Server struct {
	Ingest *ingest.Ingest
	Ranker *ranker.Ranker
	Health *health.Health
	Log    *slog.Logger
}

// Router builds the gorilla/mux router for the service.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health_check", s.handleHealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/items", s.handleCreateItem).Methods(http.MethodPost)
	r.HandleFunc("/vote_events", s.handleCreateVoteEvent).Methods(http.MethodPost)
	r.HandleFunc("/rankings/hn", s.handleRanking(s.Ranker.HackerNews)).Methods(http.MethodGet)
	r.HandleFunc("/rankings/qn", s.handleRanking(s.Ranker.QualityNews)).Methods(http.MethodGet)
	r.HandleFunc("/rankings/newest", s.handleRanking(s.Ranker.Newest)).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if s.Health == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"healthy": true})
		return
	}
	s.Health.Handler()(w, r)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var item model.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.Ingest.RegisterItem(r.Context(), item); err != nil {
		s.writeStoreError(w, r, "create_item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleCreateVoteEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.VoteEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.Ingest.RegisterVoteEvent(r.Context(), ev); err != nil {
		s.writeStoreError(w, r, "create_vote_event", err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleRanking adapts one of the Ranker's three page methods (which all
// share this shape) into an http.HandlerFunc.
func (s *Server) handleRanking(get func(ctx context.Context) ([]model.ScoredItem, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := get(r.Context())
		if err != nil {
			s.writeStoreError(w, r, "get_ranking", err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps a store-layer error to an HTTP status, logging a
// correlation id for anything that is our own fault (not the caller's).
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, store.ErrConflict) {
		writeError(w, http.StatusConflict, "conflict")
		return
	}
	correlationID := uuid.NewString()
	s.Log.Error("request failed", "op", op, "correlation_id", correlationID, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error, correlation_id="+correlationID)
}
