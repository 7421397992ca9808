package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"finanzas/internal/storage"
)

// Recorder writes the append-only audit trail. Failures are logged, never
// surfaced: audit must not break the operation it describes.
type Recorder struct {
	repo   *storage.Repository
	logger *slog.Logger
}

func NewRecorder(repo *storage.Repository, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Entry describes one auditable action.
type Entry struct {
	UserID    string
	Action    string // signup, login, logout, user_delete, ...
	Entity    string
	EntityID  string
	IPAddress string
	UserAgent string
}

func (r *Recorder) Record(ctx context.Context, e Entry) {
	err := r.repo.CreateAuditEntry(ctx, storage.AuditEntry{
		ID:        uuid.NewString(),
		UserID:    e.UserID,
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
		CreatedAt: time.Now(),
	})
	if err != nil {
		r.logger.WarnContext(ctx, "audit write failed",
			"action", e.Action,
			"user_id", e.UserID,
			"error", err)
	}
}
