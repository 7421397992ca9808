package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

type clientResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Company      string `json:"company,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Notes        string `json:"notes,omitempty"`
	InvoiceCount int    `json:"invoiceCount"`
	CreatedAt    string `json:"createdAt"`
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.repo.ListClients(r.Context(), userID(r))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "client listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	out := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, clientResponse{
			ID:           c.ID,
			Name:         c.Name,
			Email:        c.Email,
			Company:      c.Company,
			Phone:        c.Phone,
			Notes:        c.Notes,
			InvoiceCount: c.InvoiceCount,
			CreatedAt:    c.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type clientRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"omitempty,email"`
	Company string `json:"company" validate:"max=200"`
	Phone   string `json:"phone" validate:"max=50"`
	Notes   string `json:"notes" validate:"max=2000"`
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	client := core.Client{
		ID:        uuid.NewString(),
		UserID:    userID(r),
		Name:      sanitizeInput(req.Name),
		Email:     sanitizeInput(req.Email),
		Company:   sanitizeInput(req.Company),
		Phone:     sanitizeInput(req.Phone),
		Notes:     sanitizeInput(req.Notes),
		CreatedAt: time.Now(),
	}
	if err := client.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if err := s.repo.CreateClient(r.Context(), client); err != nil {
		s.logger.ErrorContext(r.Context(), "client creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeJSON(w, http.StatusCreated, clientResponse{
		ID:        client.ID,
		Name:      client.Name,
		Email:     client.Email,
		Company:   client.Company,
		Phone:     client.Phone,
		Notes:     client.Notes,
		CreatedAt: client.CreatedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	uid := userID(r)
	client, err := s.repo.GetClient(r.Context(), uid, r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "client lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	client.Name = sanitizeInput(req.Name)
	client.Email = sanitizeInput(req.Email)
	client.Company = sanitizeInput(req.Company)
	client.Phone = sanitizeInput(req.Phone)
	client.Notes = sanitizeInput(req.Notes)
	if err := client.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if err := s.repo.UpdateClient(r.Context(), client); err != nil {
		s.logger.ErrorContext(r.Context(), "client update failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeJSON(w, http.StatusOK, clientResponse{
		ID:        client.ID,
		Name:      client.Name,
		Email:     client.Email,
		Company:   client.Company,
		Phone:     client.Phone,
		Notes:     client.Notes,
		CreatedAt: client.CreatedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	err := s.repo.DeleteClient(r.Context(), userID(r), r.PathValue("id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	case err != nil:
		s.logger.ErrorContext(r.Context(), "client deletion failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Cliente eliminado"})
	}
}
