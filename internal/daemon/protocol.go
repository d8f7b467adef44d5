package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"

	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/internal/ingest"
	"github.com/tunebook/tunebook/internal/search"
)

// Methods understood by the server.
const (
	MethodInit          = "init"
	MethodIngest        = "ingest"
	MethodSearchTunes   = "searchTunes"
	MethodListTunes     = "listTunes"
	MethodGetTune       = "getTune"
	MethodClear         = "clear"
	MethodGetRecordings = "getRecordings"
	MethodStats         = "stats"
	MethodPing          = "ping"
)

// TypeReady marks the readiness signal a server writes once per connection.
const TypeReady = "ready"

// Request is a call from client to server.
type Request struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response answers the Request with the same ID. A Response with Type
// "ready" carries no ID and answers nothing.
type Response struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type,omitempty"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// NewRequest encodes payload into a request. A nil payload is omitted.
func NewRequest(id, method string, payload any) (Request, error) {
	req := Request{ID: id, Type: method}
	if payload == nil {
		return req, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Request{}, tberrors.ValidationError(fmt.Sprintf("encode %s payload", method), err)
	}
	req.Payload = data
	return req, nil
}

// NewSuccessResponse encodes data into a successful response.
func NewSuccessResponse(id string, data any) Response {
	resp := Response{ID: id, Success: true}
	if data == nil {
		return resp
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return NewErrorResponse(id, tberrors.InternalError("encode response", err))
	}
	resp.Data = raw
	return resp
}

// NewErrorResponse carries err as its "[CODE] message" string.
func NewErrorResponse(id string, err error) Response {
	return Response{ID: id, Success: false, Error: err.Error()}
}

// ReadyResponse is the readiness signal.
func ReadyResponse() Response {
	return Response{Type: TypeReady, Success: true}
}

// IsReady reports whether r is the readiness signal.
func (r Response) IsReady() bool {
	return r.Type == TypeReady
}

// Err rebuilds the remote error of a failed response.
func (r Response) Err() error {
	if r.Success {
		return nil
	}
	return tberrors.ParseRemote(r.Error)
}

// Decode unmarshals the response data into v. Missing or null data
// leaves v untouched.
func (r Response) Decode(v any) error {
	if v == nil || isEmptyJSON(r.Data) {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return tberrors.TransportError("decode response data", err)
	}
	return nil
}

// decodePayload unmarshals a request payload. Missing or null payloads
// leave v at its zero value.
func decodePayload(req Request, v any) error {
	if isEmptyJSON(req.Payload) {
		return nil
	}
	if err := json.Unmarshal(req.Payload, v); err != nil {
		return tberrors.ValidationError(fmt.Sprintf("invalid %s payload", req.Type), err)
	}
	return nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// IngestParams is the payload of an ingest request.
type IngestParams = ingest.Input

// ListParams is the payload of a listTunes request.
type ListParams = search.ListOptions

// SearchParams is the payload of a searchTunes request.
type SearchParams struct {
	Query   string               `json:"query"`
	Options search.SearchOptions `json:"options"`
}

// GetTuneParams is the payload of a getTune request.
type GetTuneParams struct {
	ID string `json:"id"`
}

// RecordingsParams is the payload of a getRecordings request.
type RecordingsParams struct {
	TuneID string `json:"tuneId"`
}

// PingResult answers a ping.
type PingResult struct {
	Pong        bool   `json:"pong"`
	Version     string `json:"version"`
	Initialized bool   `json:"initialized"`
	Uptime      string `json:"uptime"`
}
