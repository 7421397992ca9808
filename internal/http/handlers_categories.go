package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

type categoryResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsPredefined bool   `json:"isPredefined"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.repo.ListCategories(r.Context(), userID(r))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "category listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryResponse{ID: c.ID, Name: c.Name, IsPredefined: c.IsPredefined})
	}
	writeJSON(w, http.StatusOK, out)
}

type categoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category := core.Category{
		ID:        uuid.NewString(),
		UserID:    userID(r),
		Name:      sanitizeInput(req.Name),
		CreatedAt: time.Now(),
	}
	if category.Name == "" {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	if err := s.repo.CreateCategory(r.Context(), category); err != nil {
		s.logger.ErrorContext(r.Context(), "category creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeJSON(w, http.StatusCreated, categoryResponse{ID: category.ID, Name: category.Name})
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := sanitizeInput(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	id := r.PathValue("id")
	err := s.repo.UpdateCategory(r.Context(), userID(r), id, name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// Predefined categories are immutable and land here as well.
		writeError(w, http.StatusNotFound, msgNotFound)
	case err != nil:
		s.logger.ErrorContext(r.Context(), "category update failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
	default:
		writeJSON(w, http.StatusOK, categoryResponse{ID: id, Name: name})
	}
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	err := s.repo.DeleteCategory(r.Context(), userID(r), r.PathValue("id"))
	switch {
	case errors.Is(err, storage.ErrCategoryInUse):
		writeError(w, http.StatusConflict, "No se puede eliminar una categoría en uso")
	case errors.Is(err, storage.ErrNotFound):
		// Predefined categories fall through here too: not deletable, not owned.
		writeError(w, http.StatusNotFound, msgNotFound)
	case err != nil:
		s.logger.ErrorContext(r.Context(), "category deletion failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Categoría eliminada"})
	}
}
