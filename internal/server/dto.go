package server

import (
	"encoding/json"

	"github.com/mrehmanbee22seecs/wasilah2/internal/domain"
)

// Request payloads

type CreateSubmissionRequest struct {
	ID     *string `json:"id,omitempty"`
	Status *string `json:"status,omitempty" enum:"draft,pending"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location"`

	StartDate        *string  `json:"start_date,omitempty"`
	EndDate          *string  `json:"end_date,omitempty"`
	Timeline         *string  `json:"timeline,omitempty"`
	VolunteersNeeded *int     `json:"volunteers_needed,omitempty"`
	Requirements     []string `json:"requirements,omitempty"`
	Objectives       []string `json:"objectives,omitempty"`

	EventDate            *string  `json:"event_date,omitempty"`
	EventTime            *string  `json:"event_time,omitempty"`
	RegistrationDeadline *string  `json:"registration_deadline,omitempty"`
	MaxAttendees         *int     `json:"max_attendees,omitempty"`
	Agenda               []string `json:"agenda,omitempty"`

	ContactEmail   string  `json:"contact_email"`
	ContactPhone   *string `json:"contact_phone,omitempty"`
	SubmitterName  string  `json:"submitter_name"`
	SubmitterEmail string  `json:"submitter_email"`
}

type UpdateSubmissionRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Location    *string `json:"location,omitempty"`

	StartDate        *string  `json:"start_date,omitempty"`
	EndDate          *string  `json:"end_date,omitempty"`
	Timeline         *string  `json:"timeline,omitempty"`
	VolunteersNeeded *int     `json:"volunteers_needed,omitempty"`
	Requirements     []string `json:"requirements,omitempty"`
	Objectives       []string `json:"objectives,omitempty"`

	EventDate            *string  `json:"event_date,omitempty"`
	EventTime            *string  `json:"event_time,omitempty"`
	RegistrationDeadline *string  `json:"registration_deadline,omitempty"`
	MaxAttendees         *int     `json:"max_attendees,omitempty"`
	Agenda               []string `json:"agenda,omitempty"`

	ContactEmail   *string `json:"contact_email,omitempty"`
	ContactPhone   *string `json:"contact_phone,omitempty"`
	SubmitterName  *string `json:"submitter_name,omitempty"`
	SubmitterEmail *string `json:"submitter_email,omitempty"`

	Status          *string `json:"status,omitempty" enum:"draft,pending,approved,rejected"`
	AdminComments   *string `json:"admin_comments,omitempty"`
	RejectionReason *string `json:"rejection_reason,omitempty"`

	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

type ApproveSubmissionRequest struct {
	Comments *string `json:"comments,omitempty"`
}

type RejectSubmissionRequest struct {
	Reason   string  `json:"reason"`
	Comments *string `json:"comments,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
	Admin   bool   `json:"admin,omitempty"`
}

// Response payloads

type SubmissionResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind" enum:"project,event"`
	SubmittedBy string `json:"submitted_by,omitempty"`
	Status      string `json:"status" enum:"draft,pending,approved,rejected"`

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

type ReviewResponse struct {
	ID              string  `json:"id"`
	Kind            string  `json:"kind" enum:"project,event"`
	SubmissionID    string  `json:"submission_id"`
	Decision        string  `json:"decision" enum:"approved,rejected"`
	Comments        *string `json:"comments,omitempty"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	ReviewerID      string  `json:"reviewer_id"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
}

type EventResponse struct {
	ID           int64          `json:"id"`
	TS           string         `json:"ts" format:"date-time"`
	Type         string         `json:"type"`
	Kind         string         `json:"kind,omitempty"`
	SubmissionID string         `json:"submission_id,omitempty"`
	ActorID      string         `json:"actor_id,omitempty"`
	Payload      map[string]any `json:"payload"`
}

type StatusCountsResponse struct {
	Kind   string         `json:"kind" enum:"project,event"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	Admin   bool   `json:"admin"`
	Source  string `json:"source"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type paginatedSubmissions struct {
	Items      []SubmissionResponse `json:"items"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func submissionResponse(s domain.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:                   s.ID,
		Kind:                 string(s.Kind),
		SubmittedBy:          s.SubmittedBy,
		Status:               string(s.Status),
		Title:                s.Title,
		Description:          s.Description,
		Category:             s.Category,
		Location:             s.Location,
		StartDate:            s.StartDate,
		EndDate:              s.EndDate,
		Timeline:             s.Timeline,
		VolunteersNeeded:     s.VolunteersNeeded,
		Requirements:         s.Requirements,
		Objectives:           s.Objectives,
		EventDate:            s.EventDate,
		EventTime:            s.EventTime,
		RegistrationDeadline: s.RegistrationDeadline,
		MaxAttendees:         s.MaxAttendees,
		Agenda:               s.Agenda,
		ContactEmail:         s.ContactEmail,
		ContactPhone:         s.ContactPhone,
		SubmitterName:        s.SubmitterName,
		SubmitterEmail:       s.SubmitterEmail,
		AdminComments:        s.AdminComments,
		RejectionReason:      s.RejectionReason,
		ReviewedBy:           s.ReviewedBy,
		ReviewedAt:           s.ReviewedAt,
		SubmittedAt:          s.SubmittedAt,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
		Version:              s.Version,
	}
}

func mapSubmissions(items []domain.Submission) []SubmissionResponse {
	res := make([]SubmissionResponse, 0, len(items))
	for _, s := range items {
		res = append(res, submissionResponse(s))
	}
	return res
}

func reviewResponse(rv domain.Review) ReviewResponse {
	return ReviewResponse{
		ID:              rv.ID,
		Kind:            string(rv.Kind),
		SubmissionID:    rv.SubmissionID,
		Decision:        string(rv.Decision),
		Comments:        rv.Comments,
		RejectionReason: rv.RejectionReason,
		ReviewerID:      rv.ReviewerID,
		CreatedAt:       rv.CreatedAt,
	}
}

func mapReviews(items []domain.Review) []ReviewResponse {
	res := make([]ReviewResponse, 0, len(items))
	for _, rv := range items {
		res = append(res, reviewResponse(rv))
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:           e.ID,
		TS:           e.TS,
		Type:         e.Type,
		Kind:         e.Kind,
		SubmissionID: e.SubmissionID,
		ActorID:      e.ActorID,
		Payload:      decodeJSONMap(e.Payload),
	}
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
