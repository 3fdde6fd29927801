// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
)

// CampaignRunner is implemented by service.CampaignService.
type CampaignRunner interface {
	Welcome(ctx context.Context, req *model.WelcomeRequest) (*model.CampaignResponse, error)
	Recall(ctx context.Context, req *model.RecallRequest) (*model.CampaignResponse, error)
	Remind(ctx context.Context, req *model.RemindRequest) (*model.CampaignResponse, error)
}

type CampaignController struct {
	CampaignService CampaignRunner
	Log             zerolog.Logger
}

func (c *CampaignController) Welcome(w http.ResponseWriter, r *http.Request) {
	var body model.WelcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	resp, err := c.CampaignService.Welcome(r.Context(), &body)
	c.respond(w, body.ID, resp, err)
}

func (c *CampaignController) Recall(w http.ResponseWriter, r *http.Request) {
	var body model.RecallRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	resp, err := c.CampaignService.Recall(r.Context(), &body)
	c.respond(w, body.ID, resp, err)
}

func (c *CampaignController) Remind(w http.ResponseWriter, r *http.Request) {
	var body model.RemindRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	resp, err := c.CampaignService.Remind(r.Context(), &body)
	c.respond(w, body.ID, resp, err)
}

func (c *CampaignController) respond(w http.ResponseWriter, id string, resp *model.CampaignResponse, err error) {
	if err != nil {
		status := appErrors.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			c.Log.Error().Str("campaign_id", id).Err(err).Msg("campaign failed")
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
