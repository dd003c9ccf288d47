package domain

// Event is one row of the append-only audit trail.
type Event struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts" format:"date-time"`
	Type         string `json:"type"`
	Kind         string `json:"kind,omitempty"`
	SubmissionID string `json:"submission_id,omitempty"`
	ActorID      string `json:"actor_id"`
	Payload      string `json:"payload_json"`
}

// Review records a single moderation decision for a submission.
type Review struct {
	ID              string  `json:"id"`
	Kind            Kind    `json:"kind" enum:"project,event"`
	SubmissionID    string  `json:"submission_id"`
	Decision        Status  `json:"decision" enum:"approved,rejected"`
	Comments        *string `json:"comments,omitempty"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	ReviewerID      string  `json:"reviewer_id"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string  `json:"id"`
	ActorID   string  `json:"actor_id"`
	Name      string  `json:"name,omitempty"`
	KeyHash   string  `json:"key_hash"`
	IsAdmin   bool    `json:"is_admin"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	RevokedAt *string `json:"revoked_at,omitempty" format:"date-time"`
}
