package httpapi

import (
	"fmt"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/herdsearch/herd-search/internal/usecase"
)

func (h *Handler) ListAreas(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListAreas")
	defer span.End()

	areas, err := h.areaService.ListAreas(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "list areas failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]areaDTO, 0, len(areas))
	for _, a := range areas {
		items = append(items, areaToDTO(ctx, a))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) CreateArea(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateArea")
	defer span.End()

	var req upsertAreaRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	created, err := h.areaService.CreateArea(ctx, req.Name, polygonFromDTO(req.Polygon))
	if err != nil {
		h.logger.WarnContext(ctx, "create area failed", "name", req.Name, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, areaToDTO(ctx, created))
}

func (h *Handler) RenameArea(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RenameArea")
	defer span.End()

	areaID := r.PathValue("areaID")

	var req struct {
		Name string `json:"name" validate:"required,max=100"`
	}
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	renamed, err := h.areaService.RenameArea(ctx, areaID, req.Name)
	if err != nil {
		h.logger.WarnContext(ctx, "rename area failed", "area_id", areaID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, areaToDTO(ctx, renamed))
}

func (h *Handler) DeleteArea(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DeleteArea")
	defer span.End()

	areaID := r.PathValue("areaID")
	if err := h.areaService.DeleteArea(ctx, areaID); err != nil {
		h.logger.WarnContext(ctx, "delete area failed", "area_id", areaID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}
