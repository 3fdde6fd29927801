// internal/service/stream.go
package service

import (
	"context"
	"errors"
	"io"

	"github.com/unclebandit/crm-backend/internal/model"
)

// RequestStream is the inbound side of a dispatch call. Recv returns io.EOF
// once the sender has finished; any other error is a transport failure.
type RequestStream interface {
	Recv(ctx context.Context) (model.SendRequest, error)
}

// ChanStream reads requests from a channel until it is closed.
type ChanStream struct {
	ch <-chan model.SendRequest
}

func NewChanStream(ch <-chan model.SendRequest) *ChanStream {
	return &ChanStream{ch: ch}
}

func (s *ChanStream) Recv(ctx context.Context) (model.SendRequest, error) {
	select {
	case <-ctx.Done():
		return model.SendRequest{}, ctx.Err()
	case req, ok := <-s.ch:
		if !ok {
			return model.SendRequest{}, io.EOF
		}
		return req, nil
	}
}

// AckStream is the outbound side of a dispatch call: one DispatchResult per
// inbound request, in inbound order.
type AckStream struct {
	results <-chan model.DispatchResult
	// err is written before results is closed.
	err error
}

// Recv returns the next result. After the last one it returns io.EOF, or
// the error that terminated the stream.
func (s *AckStream) Recv(ctx context.Context) (model.DispatchResult, error) {
	select {
	case <-ctx.Done():
		return model.DispatchResult{}, ctx.Err()
	case res, ok := <-s.results:
		if !ok {
			if s.err != nil {
				return model.DispatchResult{}, s.err
			}
			return model.DispatchResult{}, io.EOF
		}
		return res, nil
	}
}

func isEOF(err error) bool { return errors.Is(err, io.EOF) }
