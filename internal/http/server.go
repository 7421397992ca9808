package http

import (
	"context"
	"log/slog"
	"net/http"

	"finanzas/internal/analysis"
	"finanzas/internal/audit"
	"finanzas/internal/auth"
	"finanzas/internal/llm"
	"finanzas/internal/ratelimit"
	"finanzas/internal/storage"
	"finanzas/internal/webhook"
)

// ExportPublisher enqueues transactions for the export worker. Nil-safe
// wiring lives in publishExport: the server runs without a queue.
type ExportPublisher interface {
	PublishTransactionExport(ctx context.Context, transactionID, userID string) error
}

type Server struct {
	repo       *storage.Repository
	sessions   *auth.Manager
	limits     ratelimit.Store
	audit      *audit.Recorder
	webhook    *webhook.Forwarder
	queue      ExportPublisher
	llm        *llm.Client
	aggregator *analysis.Aggregator
	logger     *slog.Logger
}

type ServerOptions struct {
	Repo       *storage.Repository
	Sessions   *auth.Manager
	Limits     ratelimit.Store
	Audit      *audit.Recorder
	Webhook    *webhook.Forwarder
	Queue      ExportPublisher // may be nil
	LLM        *llm.Client
	Aggregator *analysis.Aggregator
	Logger     *slog.Logger
}

func NewServer(opts ServerOptions) *Server {
	return &Server{
		repo:       opts.Repo,
		sessions:   opts.Sessions,
		limits:     opts.Limits,
		audit:      opts.Audit,
		webhook:    opts.Webhook,
		queue:      opts.Queue,
		llm:        opts.LLM,
		aggregator: opts.Aggregator,
		logger:     opts.Logger,
	}
}

// Handler builds the route table. Every route goes through trace + security
// headers; mutation and auth routes add rate limiting; everything except
// signup/login/feedback/health requires a session.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	base := []Middleware{s.withTrace, withSecurityHeaders}
	authRL := []Middleware{s.withTrace, withSecurityHeaders, s.withRateLimit(ratelimit.Auth)}
	public := []Middleware{s.withTrace, withSecurityHeaders, s.withRateLimit(ratelimit.Sensitive)}
	authed := []Middleware{s.withTrace, withSecurityHeaders, s.withRateLimit(ratelimit.API), s.requireSession}
	sensitive := []Middleware{s.withTrace, withSecurityHeaders, s.withRateLimit(ratelimit.Sensitive), s.requireSession}

	mux.HandleFunc("POST /api/signup", chain(s.handleSignup, authRL...))
	mux.HandleFunc("POST /api/login", chain(s.handleLogin, authRL...))
	mux.HandleFunc("POST /api/logout", chain(s.handleLogout, authed...))
	mux.HandleFunc("DELETE /api/user/delete", chain(s.handleUserDelete, sensitive...))

	mux.HandleFunc("GET /api/accounts", chain(s.handleListAccounts, authed...))
	mux.HandleFunc("POST /api/accounts", chain(s.handleCreateAccount, authed...))
	mux.HandleFunc("PUT /api/accounts/{id}", chain(s.handleUpdateAccount, authed...))
	mux.HandleFunc("DELETE /api/accounts/{id}", chain(s.handleDeleteAccount, authed...))

	mux.HandleFunc("GET /api/transactions", chain(s.handleListTransactions, authed...))
	mux.HandleFunc("POST /api/transactions", chain(s.handleCreateTransaction, authed...))
	mux.HandleFunc("PUT /api/transactions/{id}", chain(s.handleUpdateTransaction, authed...))
	mux.HandleFunc("DELETE /api/transactions/{id}", chain(s.handleDeleteTransaction, authed...))

	mux.HandleFunc("GET /api/categories", chain(s.handleListCategories, authed...))
	mux.HandleFunc("POST /api/categories", chain(s.handleCreateCategory, authed...))
	mux.HandleFunc("PUT /api/categories/{id}", chain(s.handleUpdateCategory, authed...))
	mux.HandleFunc("DELETE /api/categories/{id}", chain(s.handleDeleteCategory, authed...))

	mux.HandleFunc("GET /api/budgets", chain(s.handleListBudgets, authed...))
	mux.HandleFunc("POST /api/budgets", chain(s.handleCreateBudget, authed...))
	mux.HandleFunc("PUT /api/budgets/{id}", chain(s.handleUpdateBudget, authed...))
	mux.HandleFunc("DELETE /api/budgets/{id}", chain(s.handleDeleteBudget, authed...))

	mux.HandleFunc("GET /api/clients", chain(s.handleListClients, authed...))
	mux.HandleFunc("POST /api/clients", chain(s.handleCreateClient, authed...))
	mux.HandleFunc("PUT /api/clients/{id}", chain(s.handleUpdateClient, authed...))
	mux.HandleFunc("DELETE /api/clients/{id}", chain(s.handleDeleteClient, authed...))

	mux.HandleFunc("GET /api/settings", chain(s.handleGetSettings, authed...))
	mux.HandleFunc("PUT /api/settings", chain(s.handleUpdateSettings, authed...))

	mux.HandleFunc("GET /api/dashboard", chain(s.handleDashboard, authed...))
	mux.HandleFunc("GET /api/export/transactions", chain(s.handleExportTransactions, authed...))

	mux.HandleFunc("POST /api/feedback", chain(s.handleFeedback, public...))
	mux.HandleFunc("GET /api/health", chain(s.handleHealth, base...))

	mux.HandleFunc("POST /api/analysis/financial", chain(s.handleAnalysis, sensitive...))

	return mux
}

// publishExport forwards the created transaction to the export queue. Best
// effort: a queue outage must not fail the user's write.
func (s *Server) publishExport(ctx context.Context, transactionID, uid string) {
	if s.queue == nil {
		s.logger.DebugContext(ctx, "export queue not configured, skipping publish",
			"transaction_id", transactionID)
		return
	}
	if err := s.queue.PublishTransactionExport(ctx, transactionID, uid); err != nil {
		s.logger.WarnContext(ctx, "failed to publish export message",
			"transaction_id", transactionID,
			"error", err)
	}
}
