package http

import (
	"errors"
	"net/http"
	"time"

	"finanzas/internal/analysis"
	"finanzas/internal/core"
	"finanzas/internal/llm"
	"finanzas/internal/sse"
)

// handleAnalysis runs the streaming financial analysis. Validation failures
// are plain JSON errors; once the stream starts, every outcome (including
// upstream failure) is delivered as exactly one terminal event on the stream.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	agg, err := s.aggregator.Aggregate(r.Context(), uid, time.Now())
	if errors.Is(err, core.ErrInsufficientData) {
		writeError(w, http.StatusBadRequest,
			"Necesitas al menos 3 transacciones para generar un análisis")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "analysis aggregation failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	// From here on the response is a stream; errors become terminal events.
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	relay := analysis.NewRelay(sse.NewWriter(w))

	upstream, err := s.llm.Stream(r.Context(), analysis.SystemPrompt, analysis.BuildPrompt(agg))
	if err != nil {
		var upErr *llm.UpstreamError
		if errors.As(err, &upErr) {
			s.logger.ErrorContext(r.Context(), "upstream analysis request rejected",
				"status", upErr.Status, "body", upErr.Body)
			relay.Fail("El servicio de análisis no está disponible en este momento")
			return
		}
		s.logger.ErrorContext(r.Context(), "upstream analysis request failed", "error", err)
		relay.Fail("No se pudo iniciar el análisis")
		return
	}
	defer upstream.Close()

	if err := relay.Run(r.Context(), upstream); err != nil {
		s.logger.ErrorContext(r.Context(), "analysis relay failed", "user_id", uid, "error", err)
	}
}
