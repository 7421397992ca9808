package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// Spanish user-facing messages, matching the responses the frontend expects.
const (
	msgUnauthorized   = "No autorizado"
	msgNotFound       = "No encontrado"
	msgInvalidBody    = "Datos de solicitud no válidos"
	msgInternalError  = "Error interno del servidor"
	msgTooManyRetries = "Demasiadas solicitudes. Inténtalo de nuevo más tarde."
)
