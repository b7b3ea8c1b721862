package httpapi

import (
	"net/http"
	"strings"

	"tradeboard.org/internal/audit"
)

type auditLogRequest struct {
	ActionType   string         `json:"actionType"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId"`
	Details      map[string]any `json:"details"`
}

func (a *API) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.appendAuditLog(w, r)
	case http.MethodGet:
		a.listAuditLog(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// appendAuditLog records one audit entry for the authenticated caller. Any
// signed-in user may write; only admins may read the log back.
func (a *API) appendAuditLog(w http.ResponseWriter, r *http.Request) {
	id, ok := a.authenticate(w, r)
	if !ok {
		return
	}

	var req auditLogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ActionType) == "" {
		writeError(w, r, http.StatusBadRequest, "actionType is required")
		return
	}

	a.emitter.Emit(audit.Entry{
		UserID:       id.ID,
		ActionType:   req.ActionType,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Details:      req.Details,
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
	})

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) listAuditLog(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := a.requireAdmin(w, r); !ok {
		return
	}

	q := r.URL.Query()
	page, err := parsePositiveInt(q.Get("page"), 1, 1, 1_000_000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid page: "+err.Error())
		return
	}
	limit, err := parsePositiveInt(q.Get("limit"), 50, 1, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid limit: "+err.Error())
		return
	}
	offset := (page - 1) * limit

	entries, total, err := a.store.ListAuditEntries(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs": entries,
		"pagination": map[string]any{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}
