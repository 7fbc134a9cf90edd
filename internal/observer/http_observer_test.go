package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPCallbackObserver_OnEvent_PostsPayload(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	obs := NewHTTPCallbackObserver(srv.URL)
	waveIndex := 2
	err := obs.OnEvent(t.Context(), Event{
		Type:        EventTypeWaveCompleted,
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		Timestamp:   time.Now(),
		Status:      "running",
		WaveIndex:   &waveIndex,
	})

	require.NoError(t, err)
	assert.Equal(t, "wave.completed", gotBody["event_type"])
	assert.Equal(t, "exec-1", gotBody["execution_id"])
	assert.Equal(t, float64(2), gotBody["wave_index"])
}

func TestHTTPCallbackObserver_OnEvent_SendsConfiguredHeaders(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Api-Key")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	obs := NewHTTPCallbackObserver(srv.URL, WithHTTPHeaders(map[string]string{"X-Api-Key": "secret"}))
	require.NoError(t, obs.OnEvent(t.Context(), Event{Type: EventTypeExecutionStarted}))

	assert.Equal(t, "secret", gotHeader)
}

func TestHTTPCallbackObserver_OnEvent_RetriesOnFailureThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	obs := NewHTTPCallbackObserver(srv.URL, WithHTTPRetry(3, time.Millisecond, 1.0))
	err := obs.OnEvent(t.Context(), Event{Type: EventTypeExecutionCompleted})

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestHTTPCallbackObserver_OnEvent_ReturnsErrorAfterExhaustingRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	obs := NewHTTPCallbackObserver(srv.URL, WithHTTPRetry(1, time.Millisecond, 1.0))
	err := obs.OnEvent(t.Context(), Event{Type: EventTypeExecutionFailed})

	assert.Error(t, err)
}

func TestHTTPCallbackObserver_Name(t *testing.T) {
	obs := NewHTTPCallbackObserver("http://example.invalid")
	assert.Equal(t, "http_callback", obs.Name())
}
