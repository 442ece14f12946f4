// Package dsr implements the ClinicBoost data-subject-request workflow:
// intake of GDPR requests from patients, legal due-date tracking, and
// dispatch to a per-type processor (data export, erasure, portability,
// rectification). Requests persist in SQLite so a restart never loses a
// pending obligation.
package dsr

import (
	"time"

	"github.com/cockroachdb/errors"
)

// RequestType is the kind of data-subject request, following GDPR
// chapter 3 rights.
type RequestType string

const (
	// TypeAccess is a subject access request (Art. 15).
	TypeAccess RequestType = "access"
	// TypeErasure is a right-to-be-forgotten request (Art. 17).
	TypeErasure RequestType = "erasure"
	// TypePortability is a data portability request (Art. 20).
	TypePortability RequestType = "portability"
	// TypeRectification is a correction request (Art. 16).
	TypeRectification RequestType = "rectification"
)

func (t RequestType) Valid() bool {
	switch t {
	case TypeAccess, TypeErasure, TypePortability, TypeRectification:
		return true
	}
	return false
}

// Status is the workflow state of a request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// transitions holds the allowed state machine edges. Processing failures
// move a request from in_progress back to pending so it can be retried.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusRejected},
	StatusInProgress: {StatusCompleted, StatusRejected, StatusPending},
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the request is closed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

const (
	// ResponseWindow is the GDPR Art. 12(3) deadline: one month from
	// receipt, tracked as 30 days.
	ResponseWindow = 30 * 24 * time.Hour
	// MaxExtension is the Art. 12(3) limit on extending the deadline:
	// two further months, tracked as 60 days.
	MaxExtension = 60 * 24 * time.Hour
)

var (
	ErrNotFound          = errors.New("data subject request not found")
	ErrInvalidType       = errors.New("invalid request type")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRequestClosed     = errors.New("request already closed")
	ErrAlreadyExtended   = errors.New("due date already extended")
	ErrExtensionTooLong  = errors.New("extension exceeds the two month limit")
	ErrNoProcessor       = errors.New("no processor registered for request type")
)

// Request is one data-subject request.
type Request struct {
	ID        string
	PatientID string
	Type      RequestType
	Status    Status
	// Details carries free-form intake notes (which fields to rectify,
	// delivery format, etc).
	Details     string
	ReceivedAt  time.Time
	DueAt       time.Time
	Extended    bool
	CompletedAt *time.Time
	// Outcome records the processor result or rejection reason.
	Outcome string
}

// Overdue reports whether the request is open past its due date.
func (r *Request) Overdue(now time.Time) bool {
	return !r.Status.Terminal() && now.After(r.DueAt)
}
