package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/greenroute/greenroute/internal/api/models"
	"github.com/greenroute/greenroute/internal/api/response"
	"github.com/greenroute/greenroute/internal/dgvi"
	"github.com/greenroute/greenroute/internal/gvi"
)

// DGVIRebuilder runs the per-month greenness rebuild.
type DGVIRebuilder interface {
	Rebuild(ctx context.Context, month string) (*dgvi.RebuildResult, error)
}

// AdminHandler handles internal operations.
type AdminHandler struct {
	rebuilder DGVIRebuilder
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(rebuilder DGVIRebuilder) *AdminHandler {
	return &AdminHandler{rebuilder: rebuilder}
}

// UpdateDGVI handles POST /v1/admin/update-dgvi - recompute the DGVI table
// for a month. The rebuild is idempotent, so rerunning is safe.
func (h *AdminHandler) UpdateDGVI(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Month string `json:"month"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if err := gvi.ValidateMonth(input.Month); err != nil {
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "month", Message: "format YYYY-MM"},
		})
		return
	}

	result, err := h.rebuilder.Rebuild(r.Context(), input.Month)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			response.ServiceUnavailable(w, r, "rebuild cancelled")
			return
		}
		response.InternalError(w, r, "dgvi rebuild failed")
		return
	}

	response.JSON(w, r, http.StatusOK, result)
}
