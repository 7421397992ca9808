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

type budgetResponse struct {
	ID         string  `json:"id"`
	CategoryID string  `json:"categoryId"`
	Category   string  `json:"category"`
	Month      string  `json:"month"`
	Amount     float64 `json:"amount"`
	Spent      float64 `json:"spent"`
	Remaining  float64 `json:"remaining"`
	Percentage float64 `json:"percentage"`
	Status     string  `json:"status"` // ok, warning, exceeded
}

// budgetStatus classifies progress: warning from 80%, exceeded from 100%.
func budgetStatus(percentage float64) string {
	switch {
	case percentage >= 100:
		return "exceeded"
	case percentage >= 80:
		return "warning"
	default:
		return "ok"
	}
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	month := r.URL.Query().Get("month")
	if month == "" {
		month = time.Now().Format("2006-01")
	}
	if !core.ValidMonth(month) {
		writeError(w, http.StatusBadRequest, "Mes no válido, formato esperado YYYY-MM")
		return
	}

	budgets, err := s.repo.ListBudgets(r.Context(), uid, month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "budget listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	spentByCategory, err := s.repo.SpentByCategory(r.Context(), uid, month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "spent aggregation failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		amount, _ := b.Amount.Float64()
		spent, _ := spentByCategory[b.CategoryID].Float64()
		remaining := amount - spent
		percentage := 0.0
		if amount > 0 {
			percentage = spent / amount * 100
		}
		out = append(out, budgetResponse{
			ID:         b.ID,
			CategoryID: b.CategoryID,
			Category:   b.CategoryName,
			Month:      b.Month,
			Amount:     amount,
			Spent:      spent,
			Remaining:  remaining,
			Percentage: percentage,
			Status:     budgetStatus(percentage),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type budgetRequest struct {
	CategoryID string  `json:"categoryId" validate:"required"`
	Month      string  `json:"month" validate:"required"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	uid := userID(r)
	if _, err := s.repo.GetCategoryForUser(r.Context(), uid, req.CategoryID); err != nil {
		writeError(w, http.StatusBadRequest, "Categoría no válida")
		return
	}

	budget := core.Budget{
		ID:         uuid.NewString(),
		UserID:     uid,
		CategoryID: req.CategoryID,
		Month:      req.Month,
		Amount:     decimal.NewFromFloat(req.Amount),
		CreatedAt:  time.Now(),
	}
	if err := budget.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Mes no válido, formato esperado YYYY-MM")
		return
	}

	if err := s.repo.CreateBudget(r.Context(), budget); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "Ya existe un presupuesto para esta categoría este mes")
			return
		}
		s.logger.ErrorContext(r.Context(), "budget creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	amount, _ := budget.Amount.Float64()
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         budget.ID,
		"categoryId": budget.CategoryID,
		"month":      budget.Month,
		"amount":     amount,
	})
}

type budgetUpdateRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	uid := userID(r)
	budget, err := s.repo.GetBudget(r.Context(), uid, r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "budget lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	budget.Amount = decimal.NewFromFloat(req.Amount)
	if err := s.repo.UpdateBudget(r.Context(), budget); err != nil {
		s.logger.ErrorContext(r.Context(), "budget update failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	amount, _ := budget.Amount.Float64()
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         budget.ID,
		"categoryId": budget.CategoryID,
		"month":      budget.Month,
		"amount":     amount,
	})
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	err := s.repo.DeleteBudget(r.Context(), userID(r), r.PathValue("id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	case err != nil:
		s.logger.ErrorContext(r.Context(), "budget deletion failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Presupuesto eliminado"})
	}
}
