package http

import (
	"net/http"
	"time"

	"finanzas/internal/core"
)

type settingsResponse struct {
	Language string `json:"language"`
	Currency string `json:"currency"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.repo.GetOrCreateSettings(r.Context(), userID(r))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "settings lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{Language: settings.Language, Currency: settings.Currency})
}

type settingsRequest struct {
	Language string `json:"language" validate:"required,oneof=es en"`
	Currency string `json:"currency" validate:"required,len=3"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings := core.UserSettings{
		UserID:    userID(r),
		Language:  req.Language,
		Currency:  req.Currency,
		UpdatedAt: time.Now(),
	}
	if err := s.repo.UpsertSettings(r.Context(), settings); err != nil {
		s.logger.ErrorContext(r.Context(), "settings update failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{Language: settings.Language, Currency: settings.Currency})
}
