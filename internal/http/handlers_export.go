package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"finanzas/internal/storage"
)

// handleExportTransactions streams the user's full transaction history as a
// CSV download: Spanish headers, quoted fields, decimal comma.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := s.repo.ListTransactions(r.Context(), userID(r), storage.TransactionFilter{})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "export transaction read failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	filename := fmt.Sprintf("transacciones_%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	var b strings.Builder
	b.WriteString(`"Fecha","Tipo","Categoría","Descripción","Importe","Cuenta","Comercio","Método de pago"` + "\n")
	for _, rec := range records {
		fields := []string{
			rec.Date.Format("2006-01-02"),
			string(rec.Type),
			rec.CategoryName,
			rec.Description,
			decimalComma(rec.Amount.StringFixed(2)),
			rec.AccountName,
			rec.Merchant,
			string(rec.PaymentMethod),
		}
		for i, f := range fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(csvQuote(f))
		}
		b.WriteByte('\n')
	}

	if _, err := w.Write([]byte(b.String())); err != nil {
		s.logger.ErrorContext(r.Context(), "export write failed", "error", err)
	}
}

func csvQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func decimalComma(s string) string {
	return strings.ReplaceAll(s, ".", ",")
}
