package sheets

import (
	"context"

	"finanzas/internal/storage"
)

// TransactionAppender is the outbound port the export worker writes through.
type TransactionAppender interface {
	Append(ctx context.Context, t storage.TransactionRecord) (rowRef string, err error)
}
