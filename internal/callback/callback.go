// Package callback posts task outcome notifications.
//
// Callbacks are best-effort by contract: the task ledger is authoritative
// and a delivery failure is logged, never propagated and never retried.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bkaradeniz/ragline/internal/task"
)

const defaultTimeout = 30 * time.Second

// Notification is the JSON body POSTed to a task's callback URL.
type Notification struct {
	TaskID          string `json:"task_id"`
	TenantID        string `json:"tenant_id"`
	Status          string `json:"status"`
	ChunksProcessed int    `json:"chunks_processed,omitempty"`
	Error           string `json:"error,omitempty"`
	ElapsedMS       int64  `json:"elapsed_ms"`
}

// Notifier delivers outcome notifications over HTTP.
type Notifier struct {
	http *http.Client
}

// NewNotifier creates a Notifier with the contract's 30s delivery timeout.
func NewNotifier() *Notifier {
	return &Notifier{http: &http.Client{Timeout: defaultTimeout}}
}

// Notify POSTs the terminal outcome of rec to its callback URL. A task
// without a callback URL is a no-op.
func (n *Notifier) Notify(ctx context.Context, rec *task.Record) error {
	if rec.CallbackURL == "" {
		return nil
	}

	body := Notification{
		TaskID:          rec.TaskID,
		TenantID:        rec.TenantID,
		Status:          string(rec.Status),
		ChunksProcessed: rec.ChunksProcessed,
		Error:           rec.Error,
		ElapsedMS:       rec.ElapsedMS,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rec.CallbackURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("callback %s: %w", rec.CallbackURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback %s: unexpected status %s", rec.CallbackURL, resp.Status)
	}
	return nil
}
