package callback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkaradeniz/ragline/internal/task"
)

func TestNotifyDeliversOutcome(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	rec := &task.Record{
		Message: task.Message{
			TaskID:      "t-1",
			TenantID:    "acme",
			CallbackURL: srv.URL,
		},
		Status:          task.StatusCompleted,
		ChunksProcessed: 12,
		ElapsedMS:       850,
	}

	require.NoError(t, NewNotifier().Notify(context.Background(), rec))
	assert.Equal(t, "t-1", got.TaskID)
	assert.Equal(t, "acme", got.TenantID)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, 12, got.ChunksProcessed)
	assert.Equal(t, int64(850), got.ElapsedMS)
}

func TestNotifyFailedTaskCarriesError(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	rec := &task.Record{
		Message: task.Message{TaskID: "t-2", TenantID: "acme", CallbackURL: srv.URL},
		Status:  task.StatusFailed,
		Error:   "no content: zero chunks produced",
	}

	require.NoError(t, NewNotifier().Notify(context.Background(), rec))
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "no content: zero chunks produced", got.Error)
}

func TestNotifyNoCallbackURL(t *testing.T) {
	rec := &task.Record{Message: task.Message{TaskID: "t-3"}}
	assert.NoError(t, NewNotifier().Notify(context.Background(), rec))
}

func TestNotifyNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	rec := &task.Record{
		Message: task.Message{TaskID: "t-4", CallbackURL: srv.URL},
		Status:  task.StatusCompleted,
	}
	assert.Error(t, NewNotifier().Notify(context.Background(), rec))
}

func TestNotifyUnreachableEndpoint(t *testing.T) {
	rec := &task.Record{
		Message: task.Message{TaskID: "t-5", CallbackURL: "http://127.0.0.1:1/callback"},
		Status:  task.StatusCompleted,
	}
	assert.Error(t, NewNotifier().Notify(context.Background(), rec))
}
