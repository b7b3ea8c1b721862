// Package audit records security-relevant actions in an append-only log.
// Emission is fire-and-forget: observability never blocks or fails the
// primary user action.
package audit

import (
	"context"
	"strings"
	"sync"
	"time"

	"tradeboard.org/internal/ids"
	"tradeboard.org/internal/obs"
)

// Entry is one append-only audit record. Entries are never mutated or
// deleted; only admins may read them back.
type Entry struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	ActionType   string         `json:"action_type"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Appender persists entries.
type Appender interface {
	AppendAuditEntry(ctx context.Context, entry *Entry) error
}

const emitTimeout = 5 * time.Second

// Emitter appends entries asynchronously. Failures are logged and counted,
// never propagated to the caller.
type Emitter struct {
	store Appender
	now   func() time.Time
	wg    sync.WaitGroup
}

// NewEmitter constructs an emitter over the given appender.
func NewEmitter(store Appender) *Emitter {
	return &Emitter{store: store, now: time.Now}
}

// Emit fires an asynchronous append and returns immediately. The entry gets
// an ID and timestamp if the caller left them empty.
func (e *Emitter) Emit(entry Entry) {
	if strings.TrimSpace(entry.ActionType) == "" {
		obs.LogError("audit: entry dropped, action_type is required", nil)
		obs.CountAuditEmitFailure()
		return
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = e.now().UTC()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := e.store.AppendAuditEntry(ctx, &entry); err != nil {
			obs.CountAuditEmitFailure()
			obs.LogError("audit: append failed", map[string]any{
				"action_type": entry.ActionType,
				"user_id":     entry.UserID,
				"error":       err.Error(),
			})
		}
	}()
}

// Wait blocks until all in-flight appends settle. Used on shutdown and in
// tests.
func (e *Emitter) Wait() {
	e.wg.Wait()
}
