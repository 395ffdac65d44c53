package api

import (
	"net/http"
	"strconv"

	"github.com/agentpppp/medRec/internal/audit"
)

// handleListAuditLogs returns paginated console audit entries with optional filters.
//
// Query parameters:
//   - action: filter by action type (raw_query)
//   - failed: "true" to list only failed executions
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeInternalError(w, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action: q.Get("action"),
	}

	if v := q.Get("failed"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.FailedOnly = b
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
