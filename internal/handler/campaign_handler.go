// internal/handler/campaign_handler.go
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
)

type RunReader interface {
	GetRun(ctx context.Context, id string) (*model.CampaignRun, error)
}

// CampaignHandler serves campaign run status.
type CampaignHandler struct {
	Service RunReader
	Log     zerolog.Logger
}

// GetCampaignHandler returns the run record of a campaign by ID
func (h *CampaignHandler) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}

	run, err := h.Service.GetRun(r.Context(), id)
	if err != nil {
		status := appErrors.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			h.Log.Error().Str("campaign_id", id).Err(err).Msg("failed to fetch campaign run")
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
