// Package telemetry provides opt-in usage collection for the carton
// CLI. Events carry command names, provider names, durations, and error
// strings; statement text and parameter values are never recorded.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"
)

// Event is one telemetry record.
type Event struct {
	EventType    string                 `json:"event_type"`
	Command      string                 `json:"command,omitempty"`
	Provider     string                 `json:"provider,omitempty"`
	Duration     *time.Duration         `json:"duration,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	Version      string                 `json:"version"`
	OS           string                 `json:"os"`
	Architecture string                 `json:"architecture"`
}

// Collector batches events and ships them to the telemetry endpoint.
type Collector struct {
	enabled       bool
	endpoint      string
	events        []Event
	mu            sync.Mutex
	httpClient    *http.Client
	version       string
	batchSize     int
	flushInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

var (
	globalCollector *Collector
	once            sync.Once
)

func newCollector(version, endpoint string) *Collector {
	return &Collector{
		endpoint:      endpoint,
		events:        make([]Event, 0, 100),
		httpClient:    &http.Client{Timeout: 5 * time.Second},
		version:       version,
		batchSize:     10,
		flushInterval: 30 * time.Second,
		stopChan:      make(chan struct{}),
	}
}

// Init initializes the global collector. Collection stays off unless
// enabled is true and neither CARTON_TELEMETRY_DISABLED nor the
// --no-telemetry flag is set.
func Init(version string, enabled bool) {
	once.Do(func() {
		globalCollector = newCollector(version, endpointFromEnv())
		globalCollector.enabled = enabled && !disabledByUser()

		if globalCollector.enabled {
			globalCollector.startBackgroundFlush()
		}
	})
}

// RecordCommand records one CLI command execution.
func RecordCommand(command string, provider string, duration time.Duration, err error) {
	if globalCollector == nil || !globalCollector.enabled {
		return
	}

	event := Event{
		EventType:    "command",
		Command:      command,
		Provider:     provider,
		Duration:     &duration,
		Timestamp:    time.Now(),
		Version:      globalCollector.version,
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}
	if err != nil {
		event.Error = err.Error()
	}

	globalCollector.recordEvent(event)
}

// RecordCompile records the shape of a compiled statement: placeholder
// count and compile duration only, never the SQL itself.
func RecordCompile(provider string, placeholders int, duration time.Duration) {
	if globalCollector == nil || !globalCollector.enabled {
		return
	}

	globalCollector.recordEvent(Event{
		EventType: "compile",
		Provider:  provider,
		Duration:  &duration,
		Metadata: map[string]interface{}{
			"placeholders": placeholders,
		},
		Timestamp:    time.Now(),
		Version:      globalCollector.version,
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	})
}

// RecordError records an error event.
func RecordError(errorType string, err error, metadata map[string]interface{}) {
	if globalCollector == nil || !globalCollector.enabled {
		return
	}

	event := Event{
		EventType:    "error",
		Error:        err.Error(),
		Metadata:     metadata,
		Timestamp:    time.Now(),
		Version:      globalCollector.version,
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}
	if event.Metadata == nil {
		event.Metadata = make(map[string]interface{})
	}
	event.Metadata["error_type"] = errorType

	globalCollector.recordEvent(event)
}

func (c *Collector) recordEvent(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, event)
	if len(c.events) >= c.batchSize {
		go c.flush()
	}
}

func (c *Collector) flush() {
	c.mu.Lock()
	if len(c.events) == 0 {
		c.mu.Unlock()
		return
	}
	events := make([]Event, len(c.events))
	copy(events, c.events)
	c.events = c.events[:0]
	c.mu.Unlock()

	c.sendEvents(events)
}

// sendEvents ships one batch. Failures are dropped; telemetry never
// surfaces errors to the caller.
func (c *Collector) sendEvents(events []Event) {
	if len(events) == 0 {
		return
	}

	jsonData, err := json.Marshal(map[string]interface{}{"events": events})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("carton/%s", c.version))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
}

func (c *Collector) startBackgroundFlush() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.flush()
			case <-c.stopChan:
				c.flush()
				return
			}
		}
	}()
}

// Shutdown stops the background flusher and ships remaining events.
func Shutdown() {
	if globalCollector == nil || !globalCollector.enabled {
		return
	}
	close(globalCollector.stopChan)
	globalCollector.wg.Wait()
	globalCollector.flush()
}

// IsEnabled reports whether the global collector is collecting.
func IsEnabled() bool {
	return globalCollector != nil && globalCollector.enabled
}

func disabledByUser() bool {
	if v := os.Getenv("CARTON_TELEMETRY_DISABLED"); v == "1" || v == "true" {
		return true
	}
	for _, arg := range os.Args {
		if arg == "--no-telemetry" {
			return true
		}
	}
	return false
}

func endpointFromEnv() string {
	if endpoint := os.Getenv("CARTON_TELEMETRY_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	return "https://telemetry.carton-db.dev/events"
}
