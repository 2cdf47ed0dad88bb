package domain

import (
	"strings"
	"time"
)

// TicketState enumerates the lifecycle states of a ticket.
type TicketState string

const (
	TicketStateReadyForWork       TicketState = "Ready For Work"
	TicketStateInProgress         TicketState = "In Progress"
	TicketStateReadyForPeerReview TicketState = "Ready For Peer Review"
	TicketStateInPeerReview       TicketState = "In Peer Review"
	TicketStatePeerReviewed       TicketState = "Peer Reviewed"
	TicketStateDone               TicketState = "Done"
)

// TicketStates lists every state in lifecycle order.
var TicketStates = []TicketState{
	TicketStateReadyForWork,
	TicketStateInProgress,
	TicketStateReadyForPeerReview,
	TicketStateInPeerReview,
	TicketStatePeerReviewed,
	TicketStateDone,
}

// Valid reports whether s is one of the six lifecycle states.
func (s TicketState) Valid() bool {
	for _, state := range TicketStates {
		if s == state {
			return true
		}
	}
	return false
}

// ParseTicketState returns the state named by raw.
func ParseTicketState(raw string) (TicketState, bool) {
	state := TicketState(strings.TrimSpace(raw))
	return state, state.Valid()
}

// TicketPriority enumerates triage urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "Low"
	TicketPriorityMedium   TicketPriority = "Medium"
	TicketPriorityHigh     TicketPriority = "High"
	TicketPriorityCritical TicketPriority = "Critical"
)

// TicketPriorities lists valid priorities from least to most urgent.
var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityCritical,
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	for _, priority := range TicketPriorities {
		if p == priority {
			return true
		}
	}
	return false
}

// NormalizePriority maps raw onto a known priority, falling back to Medium.
// Matching is exact: "high" is not "High".
func NormalizePriority(raw string) TicketPriority {
	priority := TicketPriority(raw)
	if priority.Valid() {
		return priority
	}
	return TicketPriorityMedium
}

// Ticket is a tracked unit of work.
type Ticket struct {
	ID            string
	Title         string
	Description   string
	State         TicketState
	CreatedBy     string
	AssignedTo    *string
	Priority      *TicketPriority
	Deadline      *time.Time
	HelpNotes     string
	RelatedSkills []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
