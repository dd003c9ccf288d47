package policy_test

import (
	"testing"

	"github.com/mrehmanbee22seecs/wasilah2/internal/domain"
	"github.com/mrehmanbee22seecs/wasilah2/internal/policy"
)

func submission(owner string, status domain.Status) *domain.Submission {
	return &domain.Submission{
		ID:          "sub-1",
		Kind:        domain.KindProject,
		SubmittedBy: owner,
		Status:      status,
	}
}

func TestDecideRead(t *testing.T) {
	owner := &domain.Actor{ID: "user-1"}
	stranger := &domain.Actor{ID: "user-2"}
	admin := &domain.Actor{ID: "admin-1", IsAdmin: true}

	cases := []struct {
		name   string
		actor  *domain.Actor
		before *domain.Submission
		allow  bool
		reason policy.DenyReason
	}{
		{name: "anonymous reads approved", actor: nil, before: submission("user-1", domain.StatusApproved), allow: true},
		{name: "stranger reads approved", actor: stranger, before: submission("user-1", domain.StatusApproved), allow: true},
		{name: "anonymous denied pending", actor: nil, before: submission("user-1", domain.StatusPending), reason: policy.ReasonNotVisible},
		{name: "anonymous denied draft", actor: nil, before: submission("user-1", domain.StatusDraft), reason: policy.ReasonNotVisible},
		{name: "anonymous denied rejected", actor: nil, before: submission("user-1", domain.StatusRejected), reason: policy.ReasonNotVisible},
		{name: "owner reads own draft", actor: owner, before: submission("user-1", domain.StatusDraft), allow: true},
		{name: "owner reads own pending", actor: owner, before: submission("user-1", domain.StatusPending), allow: true},
		{name: "owner reads own rejected", actor: owner, before: submission("user-1", domain.StatusRejected), allow: true},
		{name: "stranger denied pending", actor: stranger, before: submission("user-1", domain.StatusPending), reason: policy.ReasonNotVisible},
		{name: "admin reads any", actor: admin, before: submission("user-1", domain.StatusDraft), allow: true},
		{name: "admin reads orphaned", actor: admin, before: submission("", domain.StatusPending), allow: true},
		{name: "stranger denied orphaned", actor: stranger, before: submission("", domain.StatusPending), reason: policy.ReasonNotVisible},
		{name: "nil record denied", actor: admin, before: nil, reason: policy.ReasonNotVisible},
	}
	for _, tc := range cases {
		d := policy.Decide(tc.actor, policy.OpRead, tc.before, nil)
		if d.Allowed != tc.allow {
			t.Fatalf("%s: allowed = %v, want %v", tc.name, d.Allowed, tc.allow)
		}
		if !tc.allow && d.Reason != tc.reason {
			t.Fatalf("%s: reason = %s, want %s", tc.name, d.Reason, tc.reason)
		}
	}
}

func TestDecideCreate(t *testing.T) {
	actor := &domain.Actor{ID: "user-1"}

	if d := policy.Decide(nil, policy.OpCreate, nil, submission("user-1", domain.StatusPending)); d.Allowed || d.Reason != policy.ReasonUnauthenticated {
		t.Fatalf("anonymous create: %+v", d)
	}
	if d := policy.Decide(actor, policy.OpCreate, nil, submission("user-2", domain.StatusPending)); d.Allowed || d.Reason != policy.ReasonOwnershipMismatch {
		t.Fatalf("mismatched owner: %+v", d)
	}
	if d := policy.Decide(actor, policy.OpCreate, nil, nil); d.Allowed {
		t.Fatalf("nil candidate allowed")
	}
	if d := policy.Decide(actor, policy.OpCreate, nil, submission("user-1", domain.StatusPending)); !d.Allowed {
		t.Fatalf("own create denied: %+v", d)
	}
}

func TestDecideUpdate(t *testing.T) {
	owner := &domain.Actor{ID: "user-1"}
	stranger := &domain.Actor{ID: "user-2"}
	admin := &domain.Actor{ID: "admin-1", IsAdmin: true}

	cases := []struct {
		name   string
		actor  *domain.Actor
		before *domain.Submission
		allow  bool
	}{
		{name: "owner edits own draft", actor: owner, before: submission("user-1", domain.StatusDraft), allow: true},
		{name: "owner denied on pending", actor: owner, before: submission("user-1", domain.StatusPending)},
		{name: "owner denied on approved", actor: owner, before: submission("user-1", domain.StatusApproved)},
		{name: "owner denied on rejected", actor: owner, before: submission("user-1", domain.StatusRejected)},
		{name: "stranger denied on draft", actor: stranger, before: submission("user-1", domain.StatusDraft)},
		{name: "anonymous denied", actor: nil, before: submission("user-1", domain.StatusDraft)},
		{name: "admin edits any status", actor: admin, before: submission("user-1", domain.StatusRejected), allow: true},
		{name: "admin edits orphaned", actor: admin, before: submission("", domain.StatusPending), allow: true},
		{name: "owner never matches orphaned", actor: owner, before: submission("", domain.StatusDraft)},
	}
	for _, tc := range cases {
		d := policy.Decide(tc.actor, policy.OpUpdate, tc.before, tc.before)
		if d.Allowed != tc.allow {
			t.Fatalf("%s: allowed = %v, want %v", tc.name, d.Allowed, tc.allow)
		}
		if !tc.allow && d.Reason != policy.ReasonForbidden {
			t.Fatalf("%s: reason = %s", tc.name, d.Reason)
		}
	}
}

func TestDecideIsTotal(t *testing.T) {
	actors := []*domain.Actor{nil, {ID: "user-1"}, {ID: "admin-1", IsAdmin: true}, {}}
	records := []*domain.Submission{nil, submission("user-1", domain.StatusDraft), submission("", domain.StatusApproved)}
	ops := []policy.Operation{policy.OpUnspecified, policy.OpRead, policy.OpCreate, policy.OpUpdate, policy.Operation(99)}
	for _, a := range actors {
		for _, r := range records {
			for _, op := range ops {
				d := policy.Decide(a, op, r, r)
				if !d.Allowed && d.Reason == "" {
					t.Fatalf("deny without reason: op=%v actor=%+v", op, a)
				}
			}
		}
	}
}

func TestUnknownOperationDenied(t *testing.T) {
	admin := &domain.Actor{ID: "admin-1", IsAdmin: true}
	d := policy.Decide(admin, policy.OpUnspecified, submission("user-1", domain.StatusApproved), nil)
	if d.Allowed {
		t.Fatalf("unspecified op allowed")
	}
	if d.Reason != policy.ReasonForbidden {
		t.Fatalf("reason = %s", d.Reason)
	}
}
