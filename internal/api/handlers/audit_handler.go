package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labtrack/lims/internal/application/services"
	"github.com/labtrack/lims/internal/domain/entities"
	"github.com/labtrack/lims/internal/domain/repositories"
	"github.com/labtrack/lims/internal/infrastructure/observability"
)

const (
	defaultAuditLimit = 100
	heartbeatInterval = 30 * time.Second
)

// AuditHandler serves the audit trail and its live feed
type AuditHandler struct {
	audit     *services.AuditService
	heartbeat time.Duration
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit, heartbeat: heartbeatInterval}
}

// ListAuditLogs handles GET /api/audit-logs
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultAuditLimit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	query := r.URL.Query()

	entries, err := h.audit.List(r.Context(), repositories.AuditLogFilter{
		Action:       entities.AuditAction(query.Get("action")),
		UserName:     query.Get("user"),
		ResourceType: query.Get("resource_type"),
		Limit:        limit,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// StreamAuditLogs handles GET /api/stream/audit-logs. Each appended entry is sent
// as an "audit_log" event; history is not replayed.
func (h *AuditHandler) StreamAuditLogs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	logger := observability.LoggerFromContext(r.Context())
	ctx := r.Context()

	entries := make(chan *entities.AuditLogEntry, 32)
	done := make(chan struct{})
	unsubscribe, err := h.audit.Subscribe(ctx, func(entry *entities.AuditLogEntry) {
		select {
		case entries <- entry:
		case <-done:
		}
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	defer unsubscribe()
	defer close(done)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sendEvent(w, "connected", map[string]interface{}{"timestamp": time.Now().UTC()})
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("client disconnected from audit stream")
			return
		case <-ticker.C:
			if err := sendEvent(w, "heartbeat", map[string]interface{}{"timestamp": time.Now().UTC()}); err != nil {
				return
			}
			flusher.Flush()
		case entry := <-entries:
			if err := sendEvent(w, "audit_log", entry); err != nil {
				logger.Debug().Err(err).Msg("audit stream write failed")
				return
			}
			flusher.Flush()
		}
	}
}

// sendEvent writes one server-sent event
func sendEvent(w http.ResponseWriter, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
	return err
}
