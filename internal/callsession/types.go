// Package callsession records live calls: who is calling, what was said and
// which help requests the call produced.
package callsession

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no session has the given id.
	ErrNotFound = errors.New("call session not found")
	// ErrSessionEnded is returned when mutating a session that has ended.
	ErrSessionEnded = errors.New("call session ended")
	// ErrInvalidInput is returned for empty caller ids, unknown speakers and
	// empty transcript messages.
	ErrInvalidInput = errors.New("invalid call session input")
)

// Status of a call.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Speaker identifies who produced a transcript line.
type Speaker string

const (
	SpeakerCaller Speaker = "caller"
	SpeakerAI     Speaker = "ai"
)

// Valid reports whether s is a known speaker.
func (s Speaker) Valid() bool {
	return s == SpeakerCaller || s == SpeakerAI
}

// Entry is one transcript line.
type Entry struct {
	Speaker   Speaker   `json:"speaker"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a single call. Transcript timestamps are strictly increasing.
type Session struct {
	ID             string     `json:"sessionId"`
	CallerID       string     `json:"callerId"`
	Status         Status     `json:"status"`
	StartedAt      time.Time  `json:"startTime"`
	EndedAt        *time.Time `json:"endTime,omitempty"`
	Transcript     []Entry    `json:"transcript"`
	HelpRequestIDs []string   `json:"helpRequests"`
}

// Caller is the running profile of a phone number.
type Caller struct {
	ID         string    `json:"callerId"`
	Name       string    `json:"name,omitempty"`
	LastCallAt time.Time `json:"lastCallAt"`
	TotalCalls int       `json:"totalCalls"`
}

// HasHelpRequest reports whether id is already attached.
func (s *Session) HasHelpRequest(id string) bool {
	for _, existing := range s.HelpRequestIDs {
		if existing == id {
			return true
		}
	}
	return false
}

func (s *Session) clone() Session {
	c := *s
	c.Transcript = append([]Entry(nil), s.Transcript...)
	c.HelpRequestIDs = append([]string(nil), s.HelpRequestIDs...)
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return c
}
