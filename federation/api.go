package federation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Routes returns the service's HTTP API. Every route requires the caller's
// identity in the X-User-ID header; mount behind whatever authentication
// proxy establishes it.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requireUser)

	r.Route("/search", func(r chi.Router) {
		r.Post("/federated", s.handleFederatedSearch)
		r.Post("/augmented", s.handleAugmentedSearch)
		r.Get("/providers", s.handleProviderOptions)
		r.Get("/providers/status", s.handleProviderStatus)
		r.Get("/log", s.handleSearchLog)
	})
	r.Route("/ingest", func(r chi.Router) {
		r.Post("/jobs", s.handleQueueIngest)
		r.Get("/jobs/{jobID}", s.handleJobStatus)
	})
	r.Get("/sources", s.handleSources)
	return r
}

type ctxKey int

const userKey ctxKey = 0

func contextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

func userFrom(r *http.Request) string {
	userID, _ := r.Context().Value(userKey).(string)
	return userID
}

func (s *Service) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
			return
		}
		ctx := contextWithUser(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) handleFederatedSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !readJSON(w, r, &req) {
		return
	}
	resp, err := s.FederatedSearch(r.Context(), userFrom(r), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleAugmentedSearch(w http.ResponseWriter, r *http.Request) {
	var req AugmentedSearchRequest
	if !readJSON(w, r, &req) {
		return
	}
	resp, err := s.AugmentedSearch(r.Context(), userFrom(r), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleQueueIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if !readJSON(w, r, &req) {
		return
	}
	receipt, err := s.QueueIngest(r.Context(), userFrom(r), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

func (s *Service) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.JobStatus(r.Context(), userFrom(r), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Service) handleProviderOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": s.ProviderOptions(r.Context()),
	})
}

func (s *Service) handleProviderStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": s.ProviderStatus(r.Context()),
	})
}

func (s *Service) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.Sources(r.Context(), userFrom(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if sources == nil {
		sources = []VirtualSource{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func (s *Service) handleSearchLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.SearchLog(r.Context(), userFrom(r), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []SearchLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Service) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmptySelection), errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
