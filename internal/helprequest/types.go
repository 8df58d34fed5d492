// Package helprequest owns the lifecycle of escalated questions.
//
// A request starts pending and moves exactly once to resolved (a supervisor
// answered) or unresolved (manually, or because its deadline passed).
package helprequest

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a HelpRequest.
type Status string

const (
	StatusPending    Status = "pending"
	StatusResolved   Status = "resolved"
	StatusUnresolved Status = "unresolved"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusResolved, StatusUnresolved:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusUnresolved
}

var (
	// ErrNotFound is returned when no request has the given id.
	ErrNotFound = errors.New("help request not found")
	// ErrAlreadyResolved is returned when a transition targets a request
	// that is no longer pending.
	ErrAlreadyResolved = errors.New("help request already resolved")
	// ErrInvalidInput is returned for empty questions, caller ids or
	// responses, and unknown status filters.
	ErrInvalidInput = errors.New("invalid help request input")
)

// HelpRequest is an escalated question awaiting a supervisor.
//
// ResolvedAt and SupervisorResponse are set if and only if Status is
// resolved.
type HelpRequest struct {
	ID                 string     `json:"id"`
	Question           string     `json:"question"`
	CallerID           string     `json:"callerId"`
	SessionID          string     `json:"sessionId,omitempty"`
	Status             Status     `json:"status"`
	Confidence         float64    `json:"confidence"`
	SupervisorResponse string     `json:"supervisorResponse,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	ResolvedAt         *time.Time `json:"resolvedAt,omitempty"`
	Deadline           time.Time  `json:"deadline"`
}

// Filter narrows List results. A zero Filter matches everything.
type Filter struct {
	Status Status
}

// Matches reports whether r passes the filter.
func (f Filter) Matches(r *HelpRequest) bool {
	return f.Status == "" || r.Status == f.Status
}
