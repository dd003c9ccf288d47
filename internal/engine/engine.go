package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrehmanbee22seecs/wasilah2/internal/config"
	"github.com/mrehmanbee22seecs/wasilah2/internal/domain"
	"github.com/mrehmanbee22seecs/wasilah2/internal/events"
	"github.com/mrehmanbee22seecs/wasilah2/internal/policy"
	"github.com/mrehmanbee22seecs/wasilah2/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// CreateOptions are parameters for creating a submission.
type CreateOptions struct {
	ID    string
	Input domain.SubmissionInput
}

func (e Engine) CreateSubmission(ctx context.Context, kind domain.Kind, opts CreateOptions, actor *domain.Actor) (domain.Submission, error) {
	owner := ""
	if actor != nil {
		owner = actor.ID
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	s, err := domain.NewSubmission(kind, opts.Input, owner, id, e.now())
	if err != nil {
		return domain.Submission{}, err
	}
	if e.Config != nil && !e.Config.KnownCategory(s.Category) {
		return domain.Submission{}, domain.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", s.Category)}
	}
	if d := policy.Decide(actor, policy.OpCreate, nil, &s); !d.Allowed {
		return domain.Submission{}, policy.PermissionError{Op: policy.OpCreate, Reason: d.Reason}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Submission{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, actor.ID, s.CreatedAt); err != nil {
		return domain.Submission{}, fmt.Errorf("ensure actor: %w", err)
	}
	if err := e.Repo.InsertSubmission(ctx, tx, s); err != nil {
		return domain.Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "submission.created", string(kind), s.ID, actor.ID, events.EventPayload{
		"status": string(s.Status),
		"title":  s.Title,
	}); err != nil {
		return domain.Submission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Submission{}, err
	}
	return s, nil
}

// GetSubmission loads one submission. Rows the caller may not read come
// back as repo.ErrNotFound so callers cannot probe for hidden ids.
func (e Engine) GetSubmission(ctx context.Context, kind domain.Kind, id string, actor *domain.Actor) (domain.Submission, error) {
	s, err := e.Repo.GetSubmission(ctx, kind, id)
	if err != nil {
		return domain.Submission{}, err
	}
	if d := policy.Decide(actor, policy.OpRead, &s, nil); !d.Allowed {
		return domain.Submission{}, repo.ErrNotFound
	}
	return s, nil
}

// ListFilters narrow a submission listing. The caller's visibility is
// applied on top of them.
type ListFilters struct {
	Status          string
	Category        string
	SubmittedBy     string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (e Engine) ListSubmissions(ctx context.Context, kind domain.Kind, f ListFilters, actor *domain.Actor) ([]domain.Submission, error) {
	if _, err := domain.ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if f.Status != "" {
		if _, err := domain.ParseStatus(f.Status); err != nil {
			return nil, err
		}
	}
	rows, err := e.Repo.ListSubmissions(ctx, kind, repo.SubmissionFilters{
		Viewer:          actor,
		Status:          f.Status,
		Category:        f.Category,
		SubmittedBy:     f.SubmittedBy,
		Limit:           f.Limit,
		CursorCreatedAt: f.CursorCreatedAt,
		CursorID:        f.CursorID,
	})
	if err != nil {
		return nil, err
	}
	// The SQL visibility clause narrows the scan; the policy decision is
	// still authoritative for every row returned.
	var res []domain.Submission
	for _, s := range rows {
		if policy.Decide(actor, policy.OpRead, &s, nil).Allowed {
			res = append(res, s)
		}
	}
	return res, nil
}

// UpdatePatch carries field changes for an update. nil leaves a field
// untouched; a pointer to the zero value clears it where the schema
// allows. Status changes run through the transition rules.
type UpdatePatch struct {
	Status *string

	Title       *string
	Description *string
	Category    *string
	Location    *string

	StartDate             *string
	EndDate               *string
	Timeline              *string
	VolunteersNeeded      *int
	ClearVolunteersNeeded bool
	Requirements          *[]string
	Objectives            *[]string

	EventDate            *string
	EventTime            *string
	RegistrationDeadline *string
	MaxAttendees         *int
	ClearMaxAttendees    bool
	Agenda               *[]string

	ContactEmail   *string
	ContactPhone   *string
	SubmitterName  *string
	SubmitterEmail *string

	AdminComments   *string
	RejectionReason *string

	// ExpectedVersion guards against concurrent writers. Zero means the
	// version read at the start of this update.
	ExpectedVersion int64
}

func (p UpdatePatch) touchesReviewMetadata() bool {
	return p.AdminComments != nil || p.RejectionReason != nil
}

func (e Engine) UpdateSubmission(ctx context.Context, kind domain.Kind, id string, patch UpdatePatch, actor *domain.Actor) (domain.Submission, error) {
	current, err := e.Repo.GetSubmission(ctx, kind, id)
	if err != nil {
		return domain.Submission{}, err
	}
	if !policy.Decide(actor, policy.OpRead, &current, nil).Allowed {
		return domain.Submission{}, repo.ErrNotFound
	}
	if patch.touchesReviewMetadata() && (actor == nil || !actor.IsAdmin) {
		return domain.Submission{}, policy.PermissionError{Op: policy.OpUpdate, Reason: policy.ReasonForbidden}
	}

	candidate := applyPatch(current, patch)
	if patch.Status != nil {
		target, err := domain.ParseStatus(*patch.Status)
		if err != nil {
			return domain.Submission{}, err
		}
		if target != current.Status {
			candidate, err = domain.ApplyTransition(candidate, target, actor, e.now())
			if err != nil {
				return domain.Submission{}, err
			}
		}
	}
	if e.requiresRejectionReason() && candidate.Status == domain.StatusRejected && current.Status != domain.StatusRejected {
		if candidate.RejectionReason == nil || strings.TrimSpace(*candidate.RejectionReason) == "" {
			return domain.Submission{}, domain.ValidationError{Field: "rejection_reason", Reason: "is required when rejecting"}
		}
	}
	if err := candidate.Validate(); err != nil {
		return domain.Submission{}, err
	}
	if patch.Category != nil && e.Config != nil && !e.Config.KnownCategory(candidate.Category) {
		return domain.Submission{}, domain.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", candidate.Category)}
	}
	// The update rule is checked against the pre-update status; the
	// transition rules above already vetted any status change.
	if d := policy.Decide(actor, policy.OpUpdate, &current, &candidate); !d.Allowed {
		return domain.Submission{}, policy.PermissionError{Op: policy.OpUpdate, Reason: d.Reason}
	}

	expected := patch.ExpectedVersion
	if expected == 0 {
		expected = current.Version
	}
	candidate.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	candidate.Version = current.Version + 1

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Submission{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateSubmissionIfVersion(ctx, tx, candidate, expected); err != nil {
		return domain.Submission{}, err
	}

	evtType := "submission.updated"
	payload := events.EventPayload{"status": string(candidate.Status)}
	if candidate.Status != current.Status {
		payload["from_status"] = string(current.Status)
		switch candidate.Status {
		case domain.StatusApproved:
			evtType = "submission.approved"
		case domain.StatusRejected:
			evtType = "submission.rejected"
		case domain.StatusPending:
			if current.Status == domain.StatusDraft {
				evtType = "submission.submitted"
			}
		}
	}
	if err := e.Events.Append(ctx, tx, evtType, string(kind), id, actor.ID, payload); err != nil {
		return domain.Submission{}, err
	}
	if candidate.Status != current.Status && (candidate.Status == domain.StatusApproved || candidate.Status == domain.StatusRejected) {
		rv := domain.Review{
			ID:              uuid.NewString(),
			Kind:            kind,
			SubmissionID:    id,
			Decision:        candidate.Status,
			Comments:        candidate.AdminComments,
			RejectionReason: candidate.RejectionReason,
			ReviewerID:      actor.ID,
			CreatedAt:       candidate.UpdatedAt,
		}
		if err := e.Repo.InsertReviewTx(ctx, tx, rv); err != nil {
			return domain.Submission{}, fmt.Errorf("record review: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Submission{}, err
	}
	return candidate, nil
}

// ApproveSubmission moves a pending submission to approved.
func (e Engine) ApproveSubmission(ctx context.Context, kind domain.Kind, id, comments string, actor *domain.Actor) (domain.Submission, error) {
	status := string(domain.StatusApproved)
	patch := UpdatePatch{Status: &status}
	if comments != "" {
		patch.AdminComments = &comments
	}
	return e.UpdateSubmission(ctx, kind, id, patch, actor)
}

// RejectSubmission moves a pending submission to rejected with a reason.
func (e Engine) RejectSubmission(ctx context.Context, kind domain.Kind, id, reason, comments string, actor *domain.Actor) (domain.Submission, error) {
	status := string(domain.StatusRejected)
	patch := UpdatePatch{Status: &status}
	if reason != "" {
		patch.RejectionReason = &reason
	}
	if comments != "" {
		patch.AdminComments = &comments
	}
	return e.UpdateSubmission(ctx, kind, id, patch, actor)
}

// SubmissionReviews returns the moderation history for a submission the
// caller is allowed to read.
func (e Engine) SubmissionReviews(ctx context.Context, kind domain.Kind, id string, actor *domain.Actor) ([]domain.Review, error) {
	s, err := e.Repo.GetSubmission(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !policy.Decide(actor, policy.OpRead, &s, nil).Allowed {
		return nil, repo.ErrNotFound
	}
	return e.Repo.ListReviews(ctx, kind, id)
}

// StatusCounts reports how many submissions sit in each lifecycle state.
// Counts cover hidden rows, so only admins may ask.
func (e Engine) StatusCounts(ctx context.Context, kind domain.Kind, actor *domain.Actor) (map[string]int, error) {
	if actor == nil || !actor.IsAdmin {
		return nil, policy.PermissionError{Op: policy.OpRead, Reason: policy.ReasonForbidden}
	}
	return e.Repo.CountSubmissionsByStatus(ctx, kind)
}

// ListEvents returns audit events, newest first. Admin only.
func (e Engine) ListEvents(ctx context.Context, limit int, cursor int64, evtType, kind, submissionID string, actor *domain.Actor) ([]domain.Event, error) {
	if actor == nil || !actor.IsAdmin {
		return nil, policy.PermissionError{Op: policy.OpRead, Reason: policy.ReasonForbidden}
	}
	if limit <= 0 {
		limit = 50
	}
	return e.Repo.LatestEventsFrom(ctx, limit, cursor, evtType, kind, submissionID)
}

func (e Engine) requiresRejectionReason() bool {
	return e.Config != nil && e.Config.Review.RequireRejectionReason
}

func applyPatch(s domain.Submission, p UpdatePatch) domain.Submission {
	if p.Title != nil {
		s.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		s.Description = strings.TrimSpace(*p.Description)
	}
	if p.Category != nil {
		s.Category = strings.TrimSpace(*p.Category)
	}
	if p.Location != nil {
		s.Location = strings.TrimSpace(*p.Location)
	}
	if p.StartDate != nil {
		s.StartDate = strings.TrimSpace(*p.StartDate)
	}
	if p.EndDate != nil {
		s.EndDate = strings.TrimSpace(*p.EndDate)
	}
	if p.Timeline != nil {
		s.Timeline = strings.TrimSpace(*p.Timeline)
	}
	if p.ClearVolunteersNeeded {
		s.VolunteersNeeded = nil
	} else if p.VolunteersNeeded != nil {
		v := *p.VolunteersNeeded
		s.VolunteersNeeded = &v
	}
	if p.Requirements != nil {
		s.Requirements = *p.Requirements
	}
	if p.Objectives != nil {
		s.Objectives = *p.Objectives
	}
	if p.EventDate != nil {
		s.EventDate = strings.TrimSpace(*p.EventDate)
	}
	if p.EventTime != nil {
		s.EventTime = strings.TrimSpace(*p.EventTime)
	}
	if p.RegistrationDeadline != nil {
		s.RegistrationDeadline = strings.TrimSpace(*p.RegistrationDeadline)
	}
	if p.ClearMaxAttendees {
		s.MaxAttendees = nil
	} else if p.MaxAttendees != nil {
		v := *p.MaxAttendees
		s.MaxAttendees = &v
	}
	if p.Agenda != nil {
		s.Agenda = *p.Agenda
	}
	if p.ContactEmail != nil {
		s.ContactEmail = strings.TrimSpace(*p.ContactEmail)
	}
	if p.ContactPhone != nil {
		s.ContactPhone = strings.TrimSpace(*p.ContactPhone)
	}
	if p.SubmitterName != nil {
		s.SubmitterName = strings.TrimSpace(*p.SubmitterName)
	}
	if p.SubmitterEmail != nil {
		s.SubmitterEmail = strings.TrimSpace(*p.SubmitterEmail)
	}
	if p.AdminComments != nil {
		if *p.AdminComments == "" {
			s.AdminComments = nil
		} else {
			v := *p.AdminComments
			s.AdminComments = &v
		}
	}
	if p.RejectionReason != nil {
		if *p.RejectionReason == "" {
			s.RejectionReason = nil
		} else {
			v := *p.RejectionReason
			s.RejectionReason = &v
		}
	}
	return s
}
