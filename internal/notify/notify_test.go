package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifierPostsText(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Notify(context.Background(), Message{Title: "Bordereau généré", Text: "BDR-2026-05-04-SRVABC123-0001 : 3 convocations"})
	require.NoError(t, err)
	assert.Equal(t, "[info] Bordereau généré\nBDR-2026-05-04-SRVABC123-0001 : 3 convocations", got["text"])
}

func TestWebhookNotifierRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhookNotifier(srv.URL).Notify(context.Background(), Message{Text: "ok"}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestWebhookNotifierReportsClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Notify(context.Background(), Message{Text: "refusé"})
	require.Error(t, err)
}

func TestNewWebhookNotifierDisabled(t *testing.T) {
	n := NewWebhookNotifier("")
	assert.Nil(t, n)
	assert.NoError(t, n.Notify(context.Background(), Message{Text: "x"}))
	assert.Equal(t, "[critique] panne", Format(Message{Text: "panne", Severity: "critical"}))
}
