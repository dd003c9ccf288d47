package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind selects the submission namespace. Projects and events share one
// shape and one rule set but live in separate tables.
type Kind string

const (
	KindProject Kind = "project"
	KindEvent   Kind = "event"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindProject, KindEvent:
		return Kind(s), nil
	}
	return "", ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", s)}
}

// Actor is a resolved caller identity. A nil *Actor means anonymous.
type Actor struct {
	ID      string `json:"id"`
	IsAdmin bool   `json:"is_admin"`
}

type Submission struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind" enum:"project,event"`
	SubmittedBy string `json:"submitted_by,omitempty"`
	Status      Status `json:"status" enum:"draft,pending,approved,rejected"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location"`

	StartDate        string   `json:"start_date,omitempty"`
	EndDate          string   `json:"end_date,omitempty"`
	Timeline         string   `json:"timeline,omitempty"`
	VolunteersNeeded *int     `json:"volunteers_needed,omitempty"`
	Requirements     []string `json:"requirements,omitempty"`
	Objectives       []string `json:"objectives,omitempty"`

	EventDate            string   `json:"event_date,omitempty"`
	EventTime            string   `json:"event_time,omitempty"`
	RegistrationDeadline string   `json:"registration_deadline,omitempty"`
	MaxAttendees         *int     `json:"max_attendees,omitempty"`
	Agenda               []string `json:"agenda,omitempty"`

	ContactEmail   string `json:"contact_email"`
	ContactPhone   string `json:"contact_phone,omitempty"`
	SubmitterName  string `json:"submitter_name"`
	SubmitterEmail string `json:"submitter_email"`

	AdminComments   *string `json:"admin_comments,omitempty"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	ReviewedBy      *string `json:"reviewed_by,omitempty"`
	ReviewedAt      *string `json:"reviewed_at,omitempty" format:"date-time"`

	SubmittedAt string `json:"submitted_at" format:"date-time"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
	Version     int64  `json:"version"`
}

// SubmissionInput is the caller-supplied payload for a new submission.
// Review metadata and timestamps are not part of it.
type SubmissionInput struct {
	Status      string
	Title       string
	Description string
	Category    string
	Location    string

	StartDate        string
	EndDate          string
	Timeline         string
	VolunteersNeeded *int
	Requirements     []string
	Objectives       []string

	EventDate            string
	EventTime            string
	RegistrationDeadline string
	MaxAttendees         *int
	Agenda               []string

	ContactEmail   string
	ContactPhone   string
	SubmitterName  string
	SubmitterEmail string
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

const dateLayout = "2006-01-02"

// NewSubmission validates in and builds a fresh submission owned by owner.
// Status may be draft or pending; anything else is rejected. The caller
// supplies id and now so the constructor stays deterministic.
func NewSubmission(kind Kind, in SubmissionInput, owner, id string, now time.Time) (Submission, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return Submission{}, err
	}
	status := StatusPending
	if in.Status != "" {
		parsed, err := ParseStatus(in.Status)
		if err != nil {
			return Submission{}, err
		}
		if parsed != StatusDraft && parsed != StatusPending {
			return Submission{}, ValidationError{Field: "status", Reason: "new submissions must be draft or pending"}
		}
		status = parsed
	}

	s := Submission{
		ID:          id,
		Kind:        kind,
		SubmittedBy: owner,
		Status:      status,

		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Location:    strings.TrimSpace(in.Location),

		StartDate:        strings.TrimSpace(in.StartDate),
		EndDate:          strings.TrimSpace(in.EndDate),
		Timeline:         strings.TrimSpace(in.Timeline),
		VolunteersNeeded: in.VolunteersNeeded,
		Requirements:     in.Requirements,
		Objectives:       in.Objectives,

		EventDate:            strings.TrimSpace(in.EventDate),
		EventTime:            strings.TrimSpace(in.EventTime),
		RegistrationDeadline: strings.TrimSpace(in.RegistrationDeadline),
		MaxAttendees:         in.MaxAttendees,
		Agenda:               in.Agenda,

		ContactEmail:   strings.TrimSpace(in.ContactEmail),
		ContactPhone:   strings.TrimSpace(in.ContactPhone),
		SubmitterName:  strings.TrimSpace(in.SubmitterName),
		SubmitterEmail: strings.TrimSpace(in.SubmitterEmail),
	}
	if err := s.Validate(); err != nil {
		return Submission{}, err
	}

	ts := now.UTC().Format(time.RFC3339)
	s.SubmittedAt = ts
	s.CreatedAt = ts
	s.UpdatedAt = ts
	s.Version = 1
	return s, nil
}

// Validate checks structural requirements for the submission's kind. It
// carries no authorization logic.
func (s Submission) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"title", s.Title},
		{"description", s.Description},
		{"category", s.Category},
		{"location", s.Location},
		{"contact_email", s.ContactEmail},
		{"submitter_name", s.SubmitterName},
		{"submitter_email", s.SubmitterEmail},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return ValidationError{Field: r.field, Reason: "is required"}
		}
	}

	switch s.Kind {
	case KindProject:
		if s.StartDate == "" {
			return ValidationError{Field: "start_date", Reason: "is required"}
		}
		if s.EndDate == "" {
			return ValidationError{Field: "end_date", Reason: "is required"}
		}
		if strings.TrimSpace(s.Timeline) == "" {
			return ValidationError{Field: "timeline", Reason: "is required"}
		}
		start, err := parseDate("start_date", s.StartDate)
		if err != nil {
			return err
		}
		end, err := parseDate("end_date", s.EndDate)
		if err != nil {
			return err
		}
		if end.Before(start) {
			return ValidationError{Field: "end_date", Reason: "must not be before start_date"}
		}
	case KindEvent:
		if s.EventDate == "" {
			return ValidationError{Field: "event_date", Reason: "is required"}
		}
		if strings.TrimSpace(s.EventTime) == "" {
			return ValidationError{Field: "event_time", Reason: "is required"}
		}
		date, err := parseDate("event_date", s.EventDate)
		if err != nil {
			return err
		}
		if s.RegistrationDeadline != "" {
			deadline, err := parseDate("registration_deadline", s.RegistrationDeadline)
			if err != nil {
				return err
			}
			if deadline.After(date) {
				return ValidationError{Field: "registration_deadline", Reason: "must not be after event_date"}
			}
		}
	default:
		return ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", s.Kind)}
	}
	return nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, ValidationError{Field: field, Reason: "must be a YYYY-MM-DD date"}
	}
	return t, nil
}
