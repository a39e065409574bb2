package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique tracking job ID with the "job_" prefix
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewTicketID generates a unique ticket ID with the "tkt_" prefix
// Format: tkt_<uuid>
func NewTicketID() string {
	return "tkt_" + uuid.New().String()
}

// NewResultID generates a unique result ID with the "res_" prefix
// Format: res_<uuid>
func NewResultID() string {
	return "res_" + uuid.New().String()
}
