package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

type transactionResponse struct {
	ID            string   `json:"id"`
	Date          string   `json:"date"`
	Amount        float64  `json:"amount"`
	Type          string   `json:"type"`
	Description   string   `json:"description"`
	PaymentMethod string   `json:"paymentMethod"`
	Merchant      string   `json:"merchant,omitempty"`
	Tags          []string `json:"tags"`
	Currency      string   `json:"currency"`
	Category      idName   `json:"category"`
	Account       idName   `json:"account"`
	CreatedAt     string   `json:"createdAt"`
}

type idName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func toTransactionResponse(rec storage.TransactionRecord) transactionResponse {
	amount, _ := rec.Amount.Float64()
	return transactionResponse{
		ID:            rec.ID,
		Date:          rec.Date.Format("2006-01-02"),
		Amount:        amount,
		Type:          string(rec.Type),
		Description:   rec.Description,
		PaymentMethod: string(rec.PaymentMethod),
		Merchant:      rec.Merchant,
		Tags:          rec.Tags,
		Currency:      rec.Currency,
		Category:      idName{ID: rec.CategoryID, Name: rec.CategoryName},
		Account:       idName{ID: rec.AccountID, Name: rec.AccountName},
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.TransactionFilter{
		AccountID:  q.Get("accountId"),
		CategoryID: q.Get("categoryId"),
		Type:       core.TransactionType(q.Get("type")),
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.ParseInLocation("2006-01-02", v, time.Local); err == nil {
			filter.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.ParseInLocation("2006-01-02", v, time.Local); err == nil {
			filter.To = t.AddDate(0, 0, 1) // inclusive end date
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	records, err := s.repo.ListTransactions(r.Context(), userID(r), filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "transaction listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	out := make([]transactionResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toTransactionResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

type transactionRequest struct {
	AccountID     string   `json:"accountId" validate:"required"`
	CategoryID    string   `json:"categoryId" validate:"required"`
	Date          string   `json:"date" validate:"required"`
	Amount        float64  `json:"amount" validate:"required"`
	Type          string   `json:"type" validate:"required,oneof=ingreso gasto"`
	Description   string   `json:"description" validate:"required,max=500"`
	PaymentMethod string   `json:"paymentMethod"`
	Merchant      string   `json:"merchant"`
	Tags          []string `json:"tags"`
}

// buildTransaction validates the request into a domain transaction with the
// stored sign convention applied.
func (s *Server) buildTransaction(r *http.Request, req transactionRequest, id string) (core.Transaction, string) {
	uid := userID(r)

	date, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		return core.Transaction{}, "Fecha no válida"
	}

	if _, err := s.repo.GetAccount(r.Context(), uid, req.AccountID); err != nil {
		return core.Transaction{}, "Cuenta no válida"
	}
	if _, err := s.repo.GetCategoryForUser(r.Context(), uid, req.CategoryID); err != nil {
		return core.Transaction{}, "Categoría no válida"
	}

	paymentMethod := core.PaymentMethod(req.PaymentMethod)
	if req.PaymentMethod == "" {
		paymentMethod = core.PaymentCash
	}
	if !paymentMethod.Valid() {
		return core.Transaction{}, "Método de pago no válido"
	}

	t := core.Transaction{
		ID:            id,
		UserID:        uid,
		AccountID:     req.AccountID,
		CategoryID:    req.CategoryID,
		Date:          date,
		Amount:        core.SignedAmount(decimal.NewFromFloat(req.Amount), core.TransactionType(req.Type)),
		Type:          core.TransactionType(req.Type),
		Description:   sanitizeInput(req.Description),
		PaymentMethod: paymentMethod,
		Merchant:      sanitizeInput(req.Merchant),
		Tags:          req.Tags,
		Currency:      "EUR",
		CreatedAt:     time.Now(),
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, "Datos de transacción no válidos"
	}
	return t, ""
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, msg := s.buildTransaction(r, req, uuid.NewString())
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	uid := userID(r)
	if err := s.repo.CreateTransaction(r.Context(), t); err != nil {
		s.logger.ErrorContext(r.Context(), "transaction creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	if err := s.repo.AdjustAccountBalance(r.Context(), uid, t.AccountID, t.Amount); err != nil {
		s.logger.ErrorContext(r.Context(), "balance adjustment failed", "transaction_id", t.ID, "error", err)
	}

	s.publishExport(r.Context(), t.ID, uid)

	rec, err := s.repo.GetTransactionRecord(r.Context(), uid, t.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "transaction readback failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(rec))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	uid := userID(r)
	existing, err := s.repo.GetTransaction(r.Context(), uid, r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "transaction lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	t, msg := s.buildTransaction(r, req, existing.ID)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := s.repo.UpdateTransaction(r.Context(), t); err != nil {
		s.logger.ErrorContext(r.Context(), "transaction update failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	// Rebalance: undo the old amount on the old account, apply the new one.
	if err := s.repo.AdjustAccountBalance(r.Context(), uid, existing.AccountID, existing.Amount.Neg()); err != nil {
		s.logger.ErrorContext(r.Context(), "balance rollback failed", "transaction_id", t.ID, "error", err)
	}
	if err := s.repo.AdjustAccountBalance(r.Context(), uid, t.AccountID, t.Amount); err != nil {
		s.logger.ErrorContext(r.Context(), "balance adjustment failed", "transaction_id", t.ID, "error", err)
	}

	rec, err := s.repo.GetTransactionRecord(r.Context(), uid, t.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "transaction readback failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(rec))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	existing, err := s.repo.GetTransaction(r.Context(), uid, r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "transaction lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	if err := s.repo.DeleteTransaction(r.Context(), uid, existing.ID); err != nil {
		s.logger.ErrorContext(r.Context(), "transaction deletion failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	if err := s.repo.AdjustAccountBalance(r.Context(), uid, existing.AccountID, existing.Amount.Neg()); err != nil {
		s.logger.ErrorContext(r.Context(), "balance rollback failed", "transaction_id", existing.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Transacción eliminada"})
}
