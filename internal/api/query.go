package api

import (
	"encoding/json"
	"net/http"

	"github.com/agentpppp/medRec/internal/patient"
)

// RawQueryRequest is the body of POST /api/v1/query.
type RawQueryRequest struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

// handleRawQuery runs an arbitrary statement through the console.
//
// The response is always the console envelope with status 200, whether or
// not the statement succeeded. An empty sql runs patient.DefaultRawQuery.
func (s *Server) handleRawQuery(w http.ResponseWriter, r *http.Request) {
	var req RawQueryRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	sql := req.SQL
	if sql == "" {
		sql = patient.DefaultRawQuery
	}

	s.logger.Info("raw query requested",
		"param_count", len(req.Params),
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	result := s.console.ExecuteRaw(r.Context(), sql, bindParams(req.Params)...)
	writeJSON(w, http.StatusOK, result)
}

// bindParams converts decoded JSON values into values the engine can bind.
// Integral numbers become int64, other numbers float64. Arrays and objects
// are passed on as their JSON text.
func bindParams(params []any) []any {
	out := make([]any, len(params))
	for i, p := range params {
		switch v := p.(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				out[i] = n
			} else if f, err := v.Float64(); err == nil {
				out[i] = f
			} else {
				out[i] = v.String()
			}
		case []any, map[string]any:
			b, err := json.Marshal(v)
			if err != nil {
				out[i] = nil
				continue
			}
			out[i] = string(b)
		default:
			out[i] = v
		}
	}
	return out
}
