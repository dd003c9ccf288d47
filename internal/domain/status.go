package domain

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus accepts exactly the four lifecycle states, case-sensitive.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected:
		return Status(s), nil
	}
	return "", ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
}

// InvalidTransitionError means the (from, to) pair exists in no role's
// transition set. No actor, including an admin, can perform it.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

// ForbiddenTransitionError means the transition exists but the acting
// role may not perform it.
type ForbiddenTransitionError struct {
	From Status
	To   Status
}

func (e ForbiddenTransitionError) Error() string {
	return fmt.Sprintf("transition from %s to %s is not permitted for this actor", e.From, e.To)
}

// The full transition rule set, per role. Owners move their own work out
// of draft; admins decide pending submissions and may reopen or override
// decided ones. draft cannot jump straight to a decision for anyone.
var (
	ownerTransitions = map[Status][]Status{
		StatusDraft: {StatusDraft, StatusPending},
	}
	adminTransitions = map[Status][]Status{
		StatusDraft:    {StatusDraft, StatusPending},
		StatusPending:  {StatusPending, StatusApproved, StatusRejected},
		StatusApproved: {StatusDraft, StatusPending, StatusApproved, StatusRejected},
		StatusRejected: {StatusDraft, StatusPending, StatusApproved, StatusRejected},
	}
)

// ApplyTransition moves s to target on behalf of actor. Transitions into
// approved or rejected stamp reviewed_at/reviewed_by; every other
// transition leaves the review stamp untouched.
func ApplyTransition(s Submission, target Status, actor *Actor, now time.Time) (Submission, error) {
	if _, err := ParseStatus(string(target)); err != nil {
		return Submission{}, err
	}
	from := s.Status

	allowed := false
	switch {
	case actor == nil || actor.ID == "":
	case actor.IsAdmin:
		allowed = containsStatus(adminTransitions[from], target)
	case actor.ID == s.SubmittedBy:
		allowed = containsStatus(ownerTransitions[from], target)
	}
	if !allowed {
		if !containsStatus(ownerTransitions[from], target) && !containsStatus(adminTransitions[from], target) {
			return Submission{}, InvalidTransitionError{From: from, To: target}
		}
		return Submission{}, ForbiddenTransitionError{From: from, To: target}
	}

	out := s
	out.Status = target
	if from != target && (target == StatusApproved || target == StatusRejected) {
		ts := now.UTC().Format(time.RFC3339)
		reviewer := actor.ID
		out.ReviewedAt = &ts
		out.ReviewedBy = &reviewer
	}
	return out, nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
