// Package events defines the notification contract the store publishes
// through, modeled on a notification-sink pattern: store mutations
// become github.com/docker/go-events values written to an injected
// events.Sink, the same shape a bridge component uses to turn its own
// mutations into events.Sink writes.
package events

import (
	"time"

	events "github.com/docker/go-events"
)

// Action identifies which store operation produced an Event.
type Action string

const (
	// ActionAdded is published after ImplementationStore.Add materializes
	// and verifies a new implementation.
	ActionAdded Action = "added"
	// ActionRemoved is published after ImplementationStore.Remove deletes
	// an implementation directory.
	ActionRemoved Action = "removed"
	// ActionVerifyFailed is published when ImplementationStore.Verify (or
	// the verification step inside Add) finds a digest mismatch.
	ActionVerifyFailed Action = "verify_failed"
)

// Event describes one store mutation or verification outcome. It satisfies
// github.com/docker/go-events.Event, which is the empty interface.
type Event struct {
	Action    Action    `json:"action"`
	Digest    string    `json:"digest"`
	StorePath string    `json:"storePath"`
	Timestamp time.Time `json:"timestamp"`
	Err       string    `json:"err,omitempty"`
}

// Sink is the subset of events.Sink the store depends on: something that
// accepts Event values and can be closed. ImplementationStore.Sink accepts
// any events.Sink, so a *notifications-style* eventQueue, a
// events.Channel, or a no-op sink all satisfy the store's needs
// unmodified.
type Sink = events.Sink

// NopSink discards every event. It is the ImplementationStore's default
// when no Sink is configured, mirroring distribution's nilSink used where
// notifications are unconfigured.
type NopSink struct{}

// Write implements events.Sink.
func (NopSink) Write(events.Event) error { return nil }

// Close implements events.Sink.
func (NopSink) Close() error { return nil }

// Published is a convenience constructor used by the store to build an
// Event for a successful Add/Remove.
func Published(action Action, digest, storePath string) Event {
	return Event{Action: action, Digest: digest, StorePath: storePath, Timestamp: time.Now()}
}

// Failed builds a verify-failure Event carrying the triggering error's
// message.
func Failed(action Action, digest, storePath string, err error) Event {
	ev := Published(action, digest, storePath)
	ev.Err = err.Error()
	return ev
}
