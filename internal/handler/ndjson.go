// internal/handler/ndjson.go
package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
)

const ndjsonContentType = "application/x-ndjson"

// maxLine bounds one inbound NDJSON line.
const maxLine = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorOf(err error) *errorBody {
	return &errorBody{Code: appErrors.CodeOf(err).String(), Message: err.Error()}
}

// ndjsonWriter writes one JSON value per line and flushes after each.
type ndjsonWriter struct {
	enc *json.Encoder
	rc  *http.ResponseController
}

func newNDJSONWriter(w http.ResponseWriter) *ndjsonWriter {
	w.Header().Set("Content-Type", ndjsonContentType)
	w.WriteHeader(http.StatusOK)
	return &ndjsonWriter{enc: json.NewEncoder(w), rc: http.NewResponseController(w)}
}

func (n *ndjsonWriter) write(v any) error {
	if err := n.enc.Encode(v); err != nil {
		return err
	}
	if err := n.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// requestStream decodes send request envelopes from an NDJSON body. Blank
// lines are skipped; a line that is not a valid envelope becomes a request
// with no message.
type requestStream struct {
	sc *bufio.Scanner
}

func newRequestStream(body io.Reader) *requestStream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &requestStream{sc: sc}
}

func (s *requestStream) Recv(ctx context.Context) (model.SendRequest, error) {
	for s.sc.Scan() {
		line := s.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		req, err := model.UnmarshalSendRequest(line)
		if err != nil {
			return model.SendRequest{}, nil
		}
		return req, nil
	}
	if err := s.sc.Err(); err != nil {
		return model.SendRequest{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.SendRequest{}, err
	}
	return model.SendRequest{}, io.EOF
}
