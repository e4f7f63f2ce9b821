package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/belagenda/belagenda/internal/model"
	"github.com/belagenda/belagenda/internal/storage"
)

// ProcedureCatalog is implemented by storage.ProcedureRepository.
type ProcedureCatalog interface {
	Create(ctx context.Context, name string) (model.Procedure, error)
	List(ctx context.Context) ([]model.Procedure, error)
	Delete(ctx context.Context, id string) error
}

type ProcedureHandler struct {
	catalog ProcedureCatalog
	logger  *slog.Logger
}

func NewProcedureHandler(catalog ProcedureCatalog, logger *slog.Logger) *ProcedureHandler {
	return &ProcedureHandler{catalog: catalog, logger: logger}
}

type procedureResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

func (h *ProcedureHandler) List(w http.ResponseWriter, r *http.Request) {
	procedures, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Error("list procedures failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]procedureResponse, 0, len(procedures))
	for _, p := range procedures {
		items = append(items, procedureResponse{
			ID:        p.ID,
			Name:      p.Name,
			CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ProcedureHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	p, err := h.catalog.Create(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateProcedure) {
			writeError(w, http.StatusConflict, "procedure name already exists")
			return
		}
		h.logger.Error("create procedure failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, procedureResponse{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// Delete removes a catalog entry. Existing appointments keep the procedure
// name; nothing cascades.
func (h *ProcedureHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, storage.ErrProcedureNotFound) {
			writeError(w, http.StatusNotFound, "procedure not found")
			return
		}
		h.logger.Error("delete procedure failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "procedure deleted"})
}
