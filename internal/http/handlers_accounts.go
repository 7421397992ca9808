package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

type accountResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Balance   float64 `json:"balance"`
	CreatedAt string  `json:"createdAt"`
}

func toAccountResponse(a core.Account) accountResponse {
	balance, _ := a.Balance.Float64()
	return accountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Type:      string(a.Type),
		Balance:   balance,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.repo.ListAccounts(r.Context(), userID(r))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "account listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

type accountRequest struct {
	Name    string  `json:"name" validate:"required,max=100"`
	Type    string  `json:"type" validate:"required"`
	Balance float64 `json:"balance"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account := core.Account{
		ID:        uuid.NewString(),
		UserID:    userID(r),
		Name:      sanitizeInput(req.Name),
		Type:      core.AccountType(req.Type),
		Balance:   decimal.NewFromFloat(req.Balance),
		CreatedAt: time.Now(),
	}
	if err := account.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Tipo de cuenta no válido")
		return
	}

	if err := s.repo.CreateAccount(r.Context(), account); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "Ya existe una cuenta con este nombre")
			return
		}
		s.logger.ErrorContext(r.Context(), "account creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	uid := userID(r)
	account, err := s.repo.GetAccount(r.Context(), uid, r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "account lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	account.Name = sanitizeInput(req.Name)
	account.Type = core.AccountType(req.Type)
	account.Balance = decimal.NewFromFloat(req.Balance)
	if err := account.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Tipo de cuenta no válido")
		return
	}

	if err := s.repo.UpdateAccount(r.Context(), account); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "Ya existe una cuenta con este nombre")
			return
		}
		s.logger.ErrorContext(r.Context(), "account update failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	err := s.repo.DeleteAccount(r.Context(), userID(r), r.PathValue("id"))
	switch {
	case errors.Is(err, storage.ErrAccountInUse):
		writeError(w, http.StatusConflict, "No se puede eliminar una cuenta con transacciones")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	case err != nil:
		s.logger.ErrorContext(r.Context(), "account deletion failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Cuenta eliminada"})
	}
}
