// Package policy holds the access rules for submissions as one pure
// decision function. The rules live here and nowhere else; callers never
// inspect status or ownership themselves.
package policy

import (
	"fmt"

	"github.com/mrehmanbee22seecs/wasilah2/internal/domain"
)

type Operation int

const (
	OpUnspecified Operation = iota
	OpRead
	OpCreate
	OpUpdate
)

func (op Operation) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	}
	return "unspecified"
}

type DenyReason string

const (
	ReasonNotVisible        DenyReason = "not_visible"
	ReasonUnauthenticated   DenyReason = "unauthenticated"
	ReasonOwnershipMismatch DenyReason = "ownership_mismatch"
	ReasonForbidden         DenyReason = "forbidden"
)

type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision { return Decision{Allowed: true} }
func deny(r DenyReason) Decision { return Decision{Reason: r} }

// Decide evaluates the rules for op in order; the first match wins. It is
// total: every combination of anonymous callers, nil records, and
// orphaned ownership yields a decision rather than an error.
//
// Read   : approved rows are public; otherwise owner or admin.
// Create : an authenticated actor may create rows it owns.
// Update : admins always; owners only while the pre-update status is
//          draft. The requested status never loosens this rule.
func Decide(actor *domain.Actor, op Operation, before, candidate *domain.Submission) Decision {
	switch op {
	case OpRead:
		if before == nil {
			return deny(ReasonNotVisible)
		}
		if before.Status == domain.StatusApproved {
			return allow()
		}
		if actor != nil && actor.ID != "" && actor.ID == before.SubmittedBy {
			return allow()
		}
		if actor != nil && actor.IsAdmin {
			return allow()
		}
		return deny(ReasonNotVisible)

	case OpCreate:
		if actor == nil || actor.ID == "" {
			return deny(ReasonUnauthenticated)
		}
		if candidate == nil || candidate.SubmittedBy != actor.ID {
			return deny(ReasonOwnershipMismatch)
		}
		return allow()

	case OpUpdate:
		if actor == nil || actor.ID == "" {
			return deny(ReasonForbidden)
		}
		if actor.IsAdmin {
			return allow()
		}
		if before != nil && actor.ID == before.SubmittedBy && before.Status == domain.StatusDraft {
			return allow()
		}
		return deny(ReasonForbidden)
	}
	return deny(ReasonForbidden)
}

// PermissionError is a policy deny surfaced to a caller.
type PermissionError struct {
	Op     Operation
	Reason DenyReason
}

func (e PermissionError) Error() string {
	return fmt.Sprintf("%s denied: %s", e.Op, e.Reason)
}
