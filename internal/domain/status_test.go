package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/mrehmanbee22seecs/wasilah2/internal/domain"
)

func pendingSubmission(owner string) domain.Submission {
	s, err := domain.NewSubmission(domain.KindProject, projectInput(), owner, "sub-1", testNow)
	if err != nil {
		panic(err)
	}
	return s
}

func withStatus(s domain.Submission, st domain.Status) domain.Submission {
	s.Status = st
	return s
}

func TestTransitionMatrix(t *testing.T) {
	owner := &domain.Actor{ID: "user-1"}
	admin := &domain.Actor{ID: "admin-1", IsAdmin: true}
	stranger := &domain.Actor{ID: "user-2"}
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		from    domain.Status
		to      domain.Status
		actor   *domain.Actor
		invalid bool
		forbid  bool
	}{
		{name: "owner submits draft", from: domain.StatusDraft, to: domain.StatusPending, actor: owner},
		{name: "owner edits draft in place", from: domain.StatusDraft, to: domain.StatusDraft, actor: owner},
		{name: "admin submits draft", from: domain.StatusDraft, to: domain.StatusPending, actor: admin},
		{name: "admin approves pending", from: domain.StatusPending, to: domain.StatusApproved, actor: admin},
		{name: "admin rejects pending", from: domain.StatusPending, to: domain.StatusRejected, actor: admin},
		{name: "admin holds pending", from: domain.StatusPending, to: domain.StatusPending, actor: admin},
		{name: "admin reopens approved", from: domain.StatusApproved, to: domain.StatusPending, actor: admin},
		{name: "admin flips rejected to approved", from: domain.StatusRejected, to: domain.StatusApproved, actor: admin},

		{name: "draft cannot jump to approved", from: domain.StatusDraft, to: domain.StatusApproved, actor: admin, invalid: true},
		{name: "draft cannot jump to rejected", from: domain.StatusDraft, to: domain.StatusRejected, actor: admin, invalid: true},
		{name: "pending cannot fall back to draft", from: domain.StatusPending, to: domain.StatusDraft, actor: admin, invalid: true},

		{name: "owner cannot approve own pending", from: domain.StatusPending, to: domain.StatusApproved, actor: owner, forbid: true},
		{name: "owner cannot reopen approved", from: domain.StatusApproved, to: domain.StatusPending, actor: owner, forbid: true},
		{name: "owner cannot reopen rejected", from: domain.StatusRejected, to: domain.StatusPending, actor: owner, forbid: true},
		{name: "stranger cannot submit draft", from: domain.StatusDraft, to: domain.StatusPending, actor: stranger, forbid: true},
		{name: "anonymous cannot submit draft", from: domain.StatusDraft, to: domain.StatusPending, actor: nil, forbid: true},
	}

	for _, tc := range cases {
		s := withStatus(pendingSubmission("user-1"), tc.from)
		out, err := domain.ApplyTransition(s, tc.to, tc.actor, now)
		switch {
		case tc.invalid:
			var ite domain.InvalidTransitionError
			if !errors.As(err, &ite) {
				t.Fatalf("%s: err = %v, want InvalidTransitionError", tc.name, err)
			}
		case tc.forbid:
			var fte domain.ForbiddenTransitionError
			if !errors.As(err, &fte) {
				t.Fatalf("%s: err = %v, want ForbiddenTransitionError", tc.name, err)
			}
		default:
			if err != nil {
				t.Fatalf("%s: %v", tc.name, err)
			}
			if out.Status != tc.to {
				t.Fatalf("%s: status = %s, want %s", tc.name, out.Status, tc.to)
			}
		}
	}
}

func TestTransitionStampsReview(t *testing.T) {
	admin := &domain.Actor{ID: "admin-1", IsAdmin: true}
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)

	s := pendingSubmission("user-1")
	out, err := domain.ApplyTransition(s, domain.StatusApproved, admin, now)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if out.ReviewedAt == nil || *out.ReviewedAt != "2024-03-02T12:00:00Z" {
		t.Fatalf("reviewed_at = %v", out.ReviewedAt)
	}
	if out.ReviewedBy == nil || *out.ReviewedBy != "admin-1" {
		t.Fatalf("reviewed_by = %v", out.ReviewedBy)
	}

	// reopening keeps the old stamp
	reopened, err := domain.ApplyTransition(out, domain.StatusPending, admin, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.ReviewedAt == nil || *reopened.ReviewedAt != "2024-03-02T12:00:00Z" {
		t.Fatalf("reopen altered reviewed_at: %v", reopened.ReviewedAt)
	}

	// second decision restamps with the later reviewer
	later := &domain.Actor{ID: "admin-2", IsAdmin: true}
	decided, err := domain.ApplyTransition(reopened, domain.StatusRejected, later, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("re-decide: %v", err)
	}
	if decided.ReviewedBy == nil || *decided.ReviewedBy != "admin-2" {
		t.Fatalf("reviewed_by = %v, want admin-2", decided.ReviewedBy)
	}
	if decided.ReviewedAt == nil || *decided.ReviewedAt != "2024-03-02T14:00:00Z" {
		t.Fatalf("reviewed_at = %v", decided.ReviewedAt)
	}
}

func TestTransitionNonDecisionLeavesStamp(t *testing.T) {
	owner := &domain.Actor{ID: "user-1"}
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	s := withStatus(pendingSubmission("user-1"), domain.StatusDraft)
	out, err := domain.ApplyTransition(s, domain.StatusPending, owner, now)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.ReviewedAt != nil || out.ReviewedBy != nil {
		t.Fatalf("owner submit stamped review fields: %+v", out)
	}
}

func TestTransitionUnknownTarget(t *testing.T) {
	admin := &domain.Actor{ID: "admin-1", IsAdmin: true}
	s := pendingSubmission("user-1")
	_, err := domain.ApplyTransition(s, domain.Status("archived"), admin, testNow)
	var ve domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "status" {
		t.Fatalf("err = %v, want status validation error", err)
	}
}
