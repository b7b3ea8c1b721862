package httpapi

import (
	"crypto/subtle"
	"net/http"
	"time"

	"tradeboard.org/internal/obs"
	"tradeboard.org/internal/store/pg"
)

type resendWebhookEnvelope struct {
	Type string `json:"type"`
	Data struct {
		EmailID string   `json:"email_id"`
		To      []string `json:"to"`
		Subject string   `json:"subject"`
	} `json:"data"`
}

// handleResendWebhook ingests delivery events from the mail provider. The
// endpoint is unauthenticated by design; when a shared secret is configured
// callers must echo it back in the webhook secret header.
func (a *API) handleResendWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.webhookSecret != "" {
		got := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(a.webhookSecret)) != 1 {
			writeError(w, r, http.StatusUnauthorized, "invalid webhook secret")
			return
		}
	}

	var env resendWebhookEnvelope
	if err := decodeJSON(w, r, &env); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if env.Type == "" || env.Data.EmailID == "" {
		writeError(w, r, http.StatusBadRequest, "type and data.email_id are required")
		return
	}

	recipient := ""
	if len(env.Data.To) > 0 {
		recipient = env.Data.To[0]
	}

	var err error
	switch env.Type {
	case "email.sent":
		err = a.store.UpsertEmailStatus(r.Context(), env.Data.EmailID, recipient, env.Data.Subject, pg.EmailStatusSent)
	case "email.delivered":
		err = a.store.UpsertEmailStatus(r.Context(), env.Data.EmailID, recipient, env.Data.Subject, pg.EmailStatusDelivered)
	case "email.opened":
		err = a.store.MarkEmailOpened(r.Context(), env.Data.EmailID, time.Now().UTC())
	case "email.bounced", "email.complained", "email.delivery_delayed":
		err = a.store.UpsertEmailStatus(r.Context(), env.Data.EmailID, recipient, env.Data.Subject, pg.EmailStatusFailed)
	default:
		// Unknown event types are acknowledged so the provider does not
		// retry them forever.
		obs.LogRequest(map[string]any{
			"level": "info",
			"msg":   "webhook_event_ignored",
			"type":  env.Type,
		})
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	if err != nil {
		obs.LogError("webhook_store_failed", map[string]any{
			"type":     env.Type,
			"email_id": env.Data.EmailID,
			"error":    err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "failed to record email event")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
