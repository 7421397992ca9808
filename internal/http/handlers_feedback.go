package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"finanzas/internal/core"
)

type feedbackRequest struct {
	Rating  int    `json:"rating" validate:"min=0,max=5"`
	Message string `json:"message" validate:"required,max=2000"`
	URL     string `json:"url" validate:"max=500"`
}

// handleFeedback stores the submission and mirrors it to the configured
// webhook. The session is optional; anonymous feedback is accepted.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	uid, _ := s.sessions.Resolve(r)

	feedback := core.Feedback{
		ID:        uuid.NewString(),
		UserID:    uid,
		Rating:    req.Rating,
		Message:   sanitizeInput(req.Message),
		URL:       sanitizeInput(req.URL),
		UserAgent: r.UserAgent(),
		CreatedAt: time.Now(),
	}

	if err := s.repo.CreateFeedback(r.Context(), feedback); err != nil {
		s.logger.ErrorContext(r.Context(), "feedback storage failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	if err := s.webhook.Forward(r.Context(), feedback); err != nil {
		// Non-fatal: the feedback is stored either way.
		s.logger.WarnContext(r.Context(), "feedback webhook forward failed", "error", err)
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "Gracias por tu opinión"})
}
