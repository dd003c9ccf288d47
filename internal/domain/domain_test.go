package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/mrehmanbee22seecs/wasilah2/internal/domain"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func projectInput() domain.SubmissionInput {
	return domain.SubmissionInput{
		Title:          "Community garden",
		Description:    "Build a shared garden",
		Category:       "environment",
		Location:       "Riverside",
		StartDate:      "2024-04-01",
		EndDate:        "2024-06-01",
		Timeline:       "two months",
		ContactEmail:   "garden@example.org",
		SubmitterName:  "Sana",
		SubmitterEmail: "sana@example.org",
	}
}

func eventInput() domain.SubmissionInput {
	return domain.SubmissionInput{
		Title:                "Cleanup day",
		Description:          "Neighborhood cleanup",
		Category:             "environment",
		Location:             "Old town",
		EventDate:            "2024-05-10",
		EventTime:            "09:00",
		RegistrationDeadline: "2024-05-08",
		ContactEmail:         "cleanup@example.org",
		SubmitterName:        "Omar",
		SubmitterEmail:       "omar@example.org",
	}
}

func TestNewSubmissionDefaults(t *testing.T) {
	s, err := domain.NewSubmission(domain.KindProject, projectInput(), "user-1", "sub-1", testNow)
	if err != nil {
		t.Fatalf("new submission: %v", err)
	}
	if s.Status != domain.StatusPending {
		t.Fatalf("default status = %s, want pending", s.Status)
	}
	if s.SubmittedBy != "user-1" || s.ID != "sub-1" {
		t.Fatalf("identity fields wrong: %+v", s)
	}
	want := "2024-03-01T10:00:00Z"
	if s.SubmittedAt != want || s.CreatedAt != want || s.UpdatedAt != want {
		t.Fatalf("timestamps = %s/%s/%s, want %s", s.SubmittedAt, s.CreatedAt, s.UpdatedAt, want)
	}
	if s.Version != 1 {
		t.Fatalf("version = %d, want 1", s.Version)
	}
	if s.ReviewedAt != nil || s.ReviewedBy != nil {
		t.Fatalf("review stamp set on fresh submission")
	}
}

func TestNewSubmissionExplicitDraft(t *testing.T) {
	in := eventInput()
	in.Status = "draft"
	s, err := domain.NewSubmission(domain.KindEvent, in, "user-2", "sub-2", testNow)
	if err != nil {
		t.Fatalf("new draft: %v", err)
	}
	if s.Status != domain.StatusDraft {
		t.Fatalf("status = %s, want draft", s.Status)
	}
}

func TestNewSubmissionRejectsDecidedStatus(t *testing.T) {
	for _, status := range []string{"approved", "rejected", "published"} {
		in := projectInput()
		in.Status = status
		_, err := domain.NewSubmission(domain.KindProject, in, "user-1", "sub-1", testNow)
		var ve domain.ValidationError
		if !errors.As(err, &ve) || ve.Field != "status" {
			t.Fatalf("status %q: err = %v, want status validation error", status, err)
		}
	}
}

func TestNewSubmissionRequiredFields(t *testing.T) {
	cases := []struct {
		field string
		mut   func(*domain.SubmissionInput)
	}{
		{"title", func(in *domain.SubmissionInput) { in.Title = "  " }},
		{"description", func(in *domain.SubmissionInput) { in.Description = "" }},
		{"category", func(in *domain.SubmissionInput) { in.Category = "" }},
		{"location", func(in *domain.SubmissionInput) { in.Location = "" }},
		{"contact_email", func(in *domain.SubmissionInput) { in.ContactEmail = "" }},
		{"submitter_name", func(in *domain.SubmissionInput) { in.SubmitterName = "" }},
		{"submitter_email", func(in *domain.SubmissionInput) { in.SubmitterEmail = "" }},
		{"timeline", func(in *domain.SubmissionInput) { in.Timeline = "" }},
		{"start_date", func(in *domain.SubmissionInput) { in.StartDate = "" }},
		{"end_date", func(in *domain.SubmissionInput) { in.EndDate = "" }},
	}
	for _, tc := range cases {
		in := projectInput()
		tc.mut(&in)
		_, err := domain.NewSubmission(domain.KindProject, in, "user-1", "sub-1", testNow)
		var ve domain.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: err = %v, want validation error", tc.field, err)
		}
		if ve.Field != tc.field {
			t.Fatalf("%s: error field = %s", tc.field, ve.Field)
		}
	}
}

func TestNewSubmissionDateOrdering(t *testing.T) {
	in := projectInput()
	in.StartDate = "2024-06-01"
	in.EndDate = "2024-04-01"
	_, err := domain.NewSubmission(domain.KindProject, in, "user-1", "sub-1", testNow)
	var ve domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "end_date" {
		t.Fatalf("err = %v, want end_date validation error", err)
	}

	ev := eventInput()
	ev.RegistrationDeadline = "2024-05-12"
	_, err = domain.NewSubmission(domain.KindEvent, ev, "user-1", "sub-1", testNow)
	if !errors.As(err, &ve) || ve.Field != "registration_deadline" {
		t.Fatalf("err = %v, want registration_deadline validation error", err)
	}
}

func TestNewSubmissionBadDateFormat(t *testing.T) {
	in := projectInput()
	in.StartDate = "01/04/2024"
	_, err := domain.NewSubmission(domain.KindProject, in, "user-1", "sub-1", testNow)
	var ve domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "start_date" {
		t.Fatalf("err = %v, want start_date validation error", err)
	}
}

func TestParseKind(t *testing.T) {
	if _, err := domain.ParseKind("project"); err != nil {
		t.Fatalf("project: %v", err)
	}
	if _, err := domain.ParseKind("event"); err != nil {
		t.Fatalf("event: %v", err)
	}
	if _, err := domain.ParseKind("Project"); err == nil {
		t.Fatalf("kind parsing should be case-sensitive")
	}
}

func TestParseStatusCaseSensitive(t *testing.T) {
	for _, s := range []string{"draft", "pending", "approved", "rejected"} {
		if _, err := domain.ParseStatus(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	for _, s := range []string{"Draft", "PENDING", "archived", ""} {
		if _, err := domain.ParseStatus(s); err == nil {
			t.Fatalf("%q should not parse", s)
		}
	}
}
