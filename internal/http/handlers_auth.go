package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finanzas/internal/audit"
	"finanzas/internal/auth"
	"finanzas/internal/core"
	"finanzas/internal/storage"
)

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,max=100"`
	DemoData bool   `json:"demoData"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "password hashing failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	user := core.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         sanitizeInput(req.Name),
		CreatedAt:    time.Now(),
	}

	if err := s.repo.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "Ya existe una cuenta con este correo electrónico")
			return
		}
		s.logger.ErrorContext(r.Context(), "user creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	if _, err := s.repo.GetOrCreateSettings(r.Context(), user.ID); err != nil {
		s.logger.WarnContext(r.Context(), "default settings creation failed", "user_id", user.ID, "error", err)
	}

	if req.DemoData {
		if err := s.seedDemoData(r.Context(), user.ID); err != nil {
			s.logger.WarnContext(r.Context(), "demo data seeding failed", "user_id", user.ID, "error", err)
		}
	}

	if err := s.sessions.Issue(r.Context(), w, user.ID); err != nil {
		s.logger.ErrorContext(r.Context(), "session issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	s.audit.Record(r.Context(), audit.Entry{
		UserID:    user.ID,
		Action:    "signup",
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.repo.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !auth.VerifyPassword(user.PasswordHash, req.Password)) {
		writeError(w, http.StatusUnauthorized, "Correo electrónico o contraseña incorrectos")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "user lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	if err := s.sessions.Issue(r.Context(), w, user.ID); err != nil {
		s.logger.ErrorContext(r.Context(), "session issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	s.audit.Record(r.Context(), audit.Entry{
		UserID:    user.ID,
		Action:    "login",
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if err := s.sessions.Clear(r.Context(), w, r); err != nil {
		s.logger.ErrorContext(r.Context(), "session clear failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	s.audit.Record(r.Context(), audit.Entry{
		UserID:    uid,
		Action:    "logout",
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Sesión cerrada"})
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	// Audit before the delete; afterwards there is no user to attribute it to.
	s.audit.Record(r.Context(), audit.Entry{
		UserID:    uid,
		Action:    "user_delete",
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})

	if err := s.repo.DeleteUserData(r.Context(), uid); err != nil {
		s.logger.ErrorContext(r.Context(), "user deletion failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	_ = s.sessions.Clear(r.Context(), w, r)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cuenta eliminada"})
}

// seedDemoData gives a fresh account something to look at: one checking
// account, a salary entry and a handful of recent expenses.
func (s *Server) seedDemoData(ctx context.Context, uid string) error {
	now := time.Now()

	account := core.Account{
		ID:        uuid.NewString(),
		UserID:    uid,
		Name:      "Cuenta corriente",
		Type:      core.AccountChecking,
		Balance:   decimal.Zero,
		CreatedAt: now,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return err
	}

	categories, err := s.repo.ListCategories(ctx, uid)
	if err != nil {
		return err
	}
	categoryID := func(name string) string {
		for _, c := range categories {
			if c.Name == name {
				return c.ID
			}
		}
		return ""
	}

	type seed struct {
		daysAgo     int
		amount      string
		txType      core.TransactionType
		category    string
		description string
		merchant    string
	}
	seeds := []seed{
		{2, "1850.00", core.Income, "Salario", "Nómina mensual", ""},
		{3, "-54.30", core.Expense, "Supermercado", "Compra semanal", "Mercadona"},
		{5, "-12.50", core.Expense, "Restaurantes y bares", "Comida con amigos", ""},
		{8, "-39.99", core.Expense, "Suscripciones", "Gimnasio", ""},
		{12, "-61.75", core.Expense, "Supermercado", "Compra semanal", "Carrefour"},
		{15, "-28.40", core.Expense, "Transporte", "Abono transporte", ""},
	}

	for _, sd := range seeds {
		catID := categoryID(sd.category)
		if catID == "" {
			continue
		}
		amount, err := decimal.NewFromString(sd.amount)
		if err != nil {
			return err
		}
		t := core.Transaction{
			ID:            uuid.NewString(),
			UserID:        uid,
			AccountID:     account.ID,
			CategoryID:    catID,
			Date:          now.AddDate(0, 0, -sd.daysAgo),
			Amount:        amount,
			Type:          sd.txType,
			Description:   sd.description,
			PaymentMethod: core.PaymentDebitCard,
			Merchant:      sd.merchant,
			Currency:      "EUR",
			CreatedAt:     now,
		}
		if err := s.repo.CreateTransaction(ctx, t); err != nil {
			return err
		}
		if err := s.repo.AdjustAccountBalance(ctx, uid, account.ID, amount); err != nil {
			return err
		}
	}

	return nil
}
