// Package announce publishes inferred-tool transitions to MQTT so other
// automation (dashboards, safety interlocks) can follow the tool state
// without polling the daemon.
package announce

import (
	"encoding/json"
	"time"
)

// DefaultTopicPrefix is the topic prefix when none is configured; the
// watcher name is appended.
const DefaultTopicPrefix = "pinwatch"

// Publisher publishes tool-state payloads.
type Publisher interface {
	// PublishTool announces the current inferred tool for a watcher.
	// Failures are for the caller to log; they must never be fatal.
	PublishTool(watcher string, tool int) error

	// Close disconnects from the broker.
	Close() error
}

// Payload is the MQTT message payload structure.
type Payload struct {
	Pinwatch PinwatchPayload `json:"pinwatch"`
}

// PinwatchPayload carries one watcher's tool state.
type PinwatchPayload struct {
	Timestamp   string `json:"timestamp"`
	Watcher     string `json:"watcher"`
	CurrentTool int    `json:"current_tool"`
	State       string `json:"state"`
}

// FormatPayload creates the JSON payload for a tool announcement.
func FormatPayload(watcher string, tool int, now time.Time) ([]byte, error) {
	return json.Marshal(Payload{
		Pinwatch: PinwatchPayload{
			Timestamp:   now.UTC().Format(time.RFC3339),
			Watcher:     watcher,
			CurrentTool: tool,
			State:       stateName(tool),
		},
	})
}

func stateName(tool int) string {
	switch {
	case tool >= 0:
		return "mounted"
	case tool == -1:
		return "unmounted"
	default:
		return "unknown"
	}
}
