package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clipforge/internal/domain"
	"clipforge/internal/usecase"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type submitRequest struct {
	SourceURL      string `json:"source_url"`
	SegmentCount   int    `json:"segment_count"`
	SegmentSeconds int    `json:"segment_seconds"`
	OverlayText    string `json:"overlay_text,omitempty"`
}

func (r submitRequest) config() usecase.SegmentConfig {
	return usecase.SegmentConfig{
		Count:       r.SegmentCount,
		Length:      time.Duration(r.SegmentSeconds) * time.Second,
		OverlayText: r.OverlayText,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	user, err := s.userUC.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := s.auth.Issue(user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user_id": user.ID,
		"credits": user.Credits,
		"token":   token,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	user, err := s.userUC.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := s.auth.Issue(user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"credits": user.Credits,
		"token":   token,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.userUC.Get(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
		"credits":  user.Credits,
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	res, err := s.jobUC.Preview(r.Context(), ownerFromContext(r.Context()), req.SourceURL, req.config())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":            res.Title,
		"duration_seconds": int(res.Duration.Seconds()),
		"segment_count":    res.SegmentCount,
		"total_cost":       res.TotalCost,
		"affordable":       res.Affordable,
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	jobID, err := s.jobUC.Submit(r.Context(), ownerFromContext(r.Context()), req.SourceURL, req.config())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": jobID})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	view, err := s.jobUC.GetJob(r.Context(), chi.URLParam(r, "id"), ownerFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	segments := make([]map[string]any, 0, len(view.Segments))
	for _, seg := range view.Segments {
		segments = append(segments, map[string]any{
			"index":            seg.Index,
			"start_seconds":    seg.Start.Seconds(),
			"duration_seconds": seg.Duration.Seconds(),
			"download_url":     seg.DownloadURL,
			"preview_url":      seg.PreviewURL,
			"thumbnail_url":    seg.ThumbnailURL,
			"byte_size":        seg.ByteSize,
		})
	}
	resp := map[string]any{
		"job_id":        view.ID,
		"title":         view.Title,
		"status":        view.Status,
		"segment_count": view.SegmentCount,
		"created_at":    view.CreatedAt,
		"segments":      segments,
	}
	if view.FailureReason != "" {
		resp["failure_reason"] = view.FailureReason
	}
	if view.CompletedAt != nil {
		resp["completed_at"] = view.CompletedAt
		resp["days_until_expiry"] = view.DaysUntilExpiry
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobUC.ListJobs(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, map[string]any{
			"job_id":        j.ID,
			"title":         j.Title,
			"status":        j.Status,
			"segment_count": j.SegmentCount,
			"created_at":    j.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

// writeError maps domain errors to HTTP statuses; anything unknown is a 500
// with a generic body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrFetch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidCredentials):
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, domain.ErrInsufficientCredits):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNotOwner):
		// Not-owner reads as not-found so job IDs don't leak across owners.
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrAlreadyExists):
		http.Error(w, "Username already taken", http.StatusConflict)
	case errors.Is(err, domain.ErrLockBusy):
		http.Error(w, "Try again shortly", http.StatusConflict)
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("internal error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
