// Package notify fans lifecycle events out to supervisors and callers.
//
// Delivery is best-effort and at-most-once: a subscriber that is not
// connected when an event is published never sees it.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrClosed is returned after the bus has been closed.
var ErrClosed = errors.New("notification bus closed")

// EventType names a lifecycle event.
type EventType string

const (
	EventNewHelpRequest     EventType = "new-help-request"
	EventRequestUpdated     EventType = "request-updated"
	EventSupervisorResponse EventType = "supervisor-response"
)

// Channel is a fan-out destination.
type Channel string

// Supervisors receives every lifecycle event.
const Supervisors Channel = "supervisors"

const callerPrefix = "callers/"

// CallerChannel returns the channel for one caller.
func CallerChannel(callerID string) Channel {
	return Channel(callerPrefix + callerID)
}

// CallerID returns the caller id of a caller channel.
func (c Channel) CallerID() (string, bool) {
	if !strings.HasPrefix(string(c), callerPrefix) {
		return "", false
	}
	return strings.TrimPrefix(string(c), callerPrefix), true
}

// Event is one delivered notification.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SupervisorResponse is the payload sent to a caller when their question
// was answered.
type SupervisorResponse struct {
	CallerID  string `json:"callerId"`
	Text      string `json:"text"`
	RequestID string `json:"requestId"`
}

// Publisher sends events to a channel.
type Publisher interface {
	Publish(ctx context.Context, ch Channel, typ EventType, payload any) error
}

// Subscriber delivers events published to a channel until cancel is called
// or ctx ends. The returned channel is closed afterwards.
type Subscriber interface {
	Subscribe(ctx context.Context, ch Channel) (events <-chan Event, cancel func(), err error)
}

// Bus is both ends of a transport.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Channel, EventType, any) error { return nil }
