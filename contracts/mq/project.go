package mq

import "time"

// ProjectCreatedPayload is enqueued in the award transaction and drives the
// best-effort notification to the awarded freelancer.
type ProjectCreatedPayload struct {
	ProjectID    string    `json:"project_id"`
	GigID        string    `json:"gig_id"`
	BidID        string    `json:"bid_id"`
	ClientID     string    `json:"client_id"`
	FreelancerID string    `json:"freelancer_id"`
	Title        string    `json:"title"`
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
	TraceID      string    `json:"trace_id,omitempty"`
}
