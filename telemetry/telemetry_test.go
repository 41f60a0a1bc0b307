package telemetry

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_FlushShipsBatch(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "carton/1.2.3", r.Header.Get("User-Agent"))
		received <- body
	}))
	defer srv.Close()

	c := newCollector("1.2.3", srv.URL)
	c.enabled = true

	d := 5 * time.Millisecond
	c.recordEvent(Event{EventType: "command", Command: "explain", Duration: &d})
	c.flush()

	select {
	case body := <-received:
		var payload struct {
			Events []Event `json:"events"`
		}
		require.NoError(t, json.Unmarshal(body, &payload))
		require.Len(t, payload.Events, 1)
		assert.Equal(t, "command", payload.Events[0].EventType)
		assert.Equal(t, "explain", payload.Events[0].Command)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch received")
	}
}

func TestCollector_FlushEmptyIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	}))
	defer srv.Close()

	c := newCollector("1.2.3", srv.URL)
	c.enabled = true
	c.flush()
}

func TestRecordFunctions_NoopWhenDisabled(t *testing.T) {
	// The global collector is unset in tests; every record call must be
	// safe to make anyway.
	RecordCommand("query", "sqlite", time.Millisecond, nil)
	RecordCompile("sqlite", 3, time.Millisecond)
	RecordError("compile", io.EOF, nil)
	assert.False(t, IsEnabled())
}
