// Package task models ingestion tasks and their status ledger.
package task

import (
	"fmt"
	"time"
)

// Message is the queue payload describing a document to ingest. It is
// produced by the upload-handling system and consumed by the worker.
type Message struct {
	TaskID           string            `json:"task_id"`
	TenantID         string            `json:"tenant_id"`
	DocumentID       string            `json:"document_id"`
	SourceBucket     string            `json:"source_bucket"`
	SourceKey        string            `json:"source_key"`
	DeclaredFilename string            `json:"declared_filename"`
	DeclaredType     string            `json:"declared_type"`
	DeclaredSize     int64             `json:"declared_size"`
	CallbackURL      string            `json:"callback_url"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Validate checks the fields the worker cannot proceed without.
func (m *Message) Validate() error {
	switch {
	case m.TaskID == "":
		return fmt.Errorf("task message missing task_id")
	case m.TenantID == "":
		return fmt.Errorf("task %s missing tenant_id", m.TaskID)
	case m.DocumentID == "":
		return fmt.Errorf("task %s missing document_id", m.TaskID)
	case m.SourceBucket == "" || m.SourceKey == "":
		return fmt.Errorf("task %s missing source locator", m.TaskID)
	}
	return nil
}

// Record is the ledger entry for one task. The ledger is authoritative;
// the outbound callback is a convenience on top of it.
type Record struct {
	Message

	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	StartedAt       time.Time `json:"started_at,omitzero"`
	FinishedAt      time.Time `json:"finished_at,omitzero"`
	ElapsedMS       int64     `json:"elapsed_ms,omitempty"`
	Error           string    `json:"error,omitempty"`
	ChunksProcessed int       `json:"chunks_processed,omitempty"`
}
