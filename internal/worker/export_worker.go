package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finanzas/internal/amqp"
	"finanzas/internal/sheets"
	"finanzas/internal/storage"
)

// ExportWorker mirrors created transactions from sqlite to the backup
// spreadsheet.
type ExportWorker struct {
	repo   *storage.Repository
	sheets sheets.TransactionAppender
}

func NewExportWorker(repo *storage.Repository, appender sheets.TransactionAppender) *ExportWorker {
	return &ExportWorker{repo: repo, sheets: appender}
}

// HandleExportMessage processes one queued transaction export. A missing
// transaction (deleted before the worker got to it) is dropped without error
// so the delivery is acked instead of requeued forever.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.ExportMessage) error {
	slog.InfoContext(ctx, "processing export message",
		"transaction_id", msg.TransactionID,
		"user_id", msg.UserID)

	record, err := w.repo.GetTransactionRecord(ctx, msg.UserID, msg.TransactionID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "transaction no longer exists, skipping export",
			"transaction_id", msg.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	ref, err := w.sheets.Append(ctx, record)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	slog.InfoContext(ctx, "exported transaction",
		"transaction_id", msg.TransactionID,
		"sheets_ref", ref)
	return nil
}
