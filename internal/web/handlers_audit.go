package web

import (
	"net/http"

	"github.com/JonMunkholm/qrtrack/internal/core"
)

// handleAuditLog lists audit entries, newest first, with filtering and
// pagination.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	page := parseIntParam(r, "page", 1)
	pageSize := parseIntParam(r, "limit", core.DefaultAuditLimit)
	if pageSize > core.DefaultAuditLimit {
		pageSize = core.DefaultAuditLimit
	}

	entries, err := s.service.Audit.List(r.Context(), core.AuditFilter{
		DatasetID: r.URL.Query().Get("dataset"),
		Action:    core.AuditAction(r.URL.Query().Get("action")),
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":  entries,
		"page":     page,
		"pageSize": pageSize,
	})
}
