// internal/handler/stream_handler.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/service"
)

// StreamHandler serves the server-streamed user stats and metadata calls.
type StreamHandler struct {
	Stats    service.UserStats
	Contents service.ContentSource
	Log      zerolog.Logger
}

// QueryUserStats streams one UserRecord per line. A failure after the first
// line is reported as a final error line.
func (h *StreamHandler) QueryUserStats(w http.ResponseWriter, r *http.Request) {
	var req model.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	users, err := h.Stats.Query(r.Context(), req)
	if err != nil {
		h.Log.Warn().Err(err).Msg("user stats query failed")
		writeError(w, appErrors.HTTPStatus(err), err.Error())
		return
	}
	defer users.Close()

	out := newNDJSONWriter(w)
	for users.Next() {
		if err := out.write(users.User()); err != nil {
			return
		}
	}
	if err := users.Err(); err != nil {
		h.Log.Warn().Err(err).Msg("user stats stream failed")
		out.write(map[string]*errorBody{"error": errorOf(err)})
	}
}

type materializeRequest struct {
	ContentIDs []int64 `json:"content_ids"`
}

type contentLine struct {
	Content *model.Content `json:"content,omitempty"`
	Error   *errorBody     `json:"error,omitempty"`
}

// Materialize streams one line per content item; failed items are error
// lines and do not end the stream.
func (h *StreamHandler) Materialize(w http.ResponseWriter, r *http.Request) {
	var req materializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	results, err := h.Contents.Materialize(r.Context(), req.ContentIDs)
	if err != nil {
		writeError(w, appErrors.HTTPStatus(err), err.Error())
		return
	}

	out := newNDJSONWriter(w)
	for res := range results {
		line := contentLine{Content: &res.Content}
		if res.Err != nil {
			line = contentLine{Error: errorOf(res.Err)}
		}
		if err := out.write(line); err != nil {
			return
		}
	}
}
