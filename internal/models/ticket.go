package models

import "time"

// TicketState represents the local processing state of a ticket
type TicketState string

const (
	TicketPending  TicketState = "pending"
	TicketComplete TicketState = "complete"
	TicketFailed   TicketState = "failed"
)

// IsTerminal reports whether the ticket state is terminal.
func (s TicketState) IsTerminal() bool {
	return s == TicketComplete || s == TicketFailed
}

// Ticket pairs one (job, keyword) with the provider's in-flight search.
// Exactly one ticket exists per (job, keyword); tickets are owned by
// their job and deleted only by cascading job deletion.
//
// State transitions pending -> {complete|failed} exactly once. Writing
// a terminal state to an already-terminal ticket is a no-op, which
// guards against duplicate resolution from overlapping poll rounds.
type Ticket struct {
	ID       string      `json:"id" badgerhold:"key"`
	JobID    string      `json:"job_id" badgerhold:"index"`
	Keyword  string      `json:"keyword"`
	Handle   string      `json:"handle,omitempty"` // Provider tracking handle, set after start succeeds
	State    TicketState `json:"state"`
	Error    string      `json:"error,omitempty"` // Failure reason for failed tickets
	Attempts int         `json:"attempts"`        // Transient check retries consumed

	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
