package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mrehmanbee22seecs/wasilah2/internal/config"
	"github.com/mrehmanbee22seecs/wasilah2/internal/db"
	"github.com/mrehmanbee22seecs/wasilah2/internal/domain"
	"github.com/mrehmanbee22seecs/wasilah2/internal/engine"
	"github.com/mrehmanbee22seecs/wasilah2/internal/migrate"
	"github.com/mrehmanbee22seecs/wasilah2/internal/policy"
	"github.com/mrehmanbee22seecs/wasilah2/internal/repo"
)

var (
	owner    = &domain.Actor{ID: "user-1"}
	stranger = &domain.Actor{ID: "user-2"}
	admin    = &domain.Actor{ID: "admin-1", IsAdmin: true}
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	env := &testEnv{Ctx: context.Background(), now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	eng := engine.New(conn, config.Default("wasilah"))
	eng.Now = func() time.Time { return env.now }
	env.Engine = eng
	return env
}

func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

func projectOptions(title string) engine.CreateOptions {
	return engine.CreateOptions{Input: domain.SubmissionInput{
		Title:          title,
		Description:    "Build a shared garden",
		Category:       "environment",
		Location:       "Riverside",
		StartDate:      "2024-04-01",
		EndDate:        "2024-06-01",
		Timeline:       "two months",
		ContactEmail:   "garden@example.org",
		SubmitterName:  "Sana",
		SubmitterEmail: "sana@example.org",
	}}
}

func eventOptions(title string) engine.CreateOptions {
	return engine.CreateOptions{Input: domain.SubmissionInput{
		Title:          title,
		Description:    "Neighborhood cleanup",
		Category:       "environment",
		Location:       "Old town",
		EventDate:      "2024-05-10",
		EventTime:      "09:00",
		ContactEmail:   "cleanup@example.org",
		SubmitterName:  "Omar",
		SubmitterEmail: "omar@example.org",
	}}
}

func strPtr(s string) *string { return &s }

func TestProjectModerationFlow(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.Engine.CreateSubmission(env.Ctx, domain.KindProject, projectOptions("Community garden"), owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != domain.StatusPending {
		t.Fatalf("status = %s, want pending", created.Status)
	}
	if created.SubmittedBy != "user-1" {
		t.Fatalf("submitted_by = %s", created.SubmittedBy)
	}

	if _, err := env.Engine.GetSubmission(env.Ctx, domain.KindProject, created.ID, owner); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := env.Engine.GetSubmission(env.Ctx, domain.KindProject, created.ID, nil); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("anonymous get: err = %v, want not found", err)
	}
	if _, err := env.Engine.GetSubmission(env.Ctx, domain.KindProject, created.ID, stranger); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("stranger get: err = %v, want not found", err)
	}
	if _, err := env.Engine.GetSubmission(env.Ctx, domain.KindProject, created.ID, admin); err != nil {
		t.Fatalf("admin get: %v", err)
	}

	env.advance(time.Hour)
	approved, err := env.Engine.ApproveSubmission(env.Ctx, domain.KindProject, created.ID, "looks solid", admin)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != domain.StatusApproved {
		t.Fatalf("status = %s, want approved", approved.Status)
	}
	if approved.ReviewedBy == nil || *approved.ReviewedBy != "admin-1" {
		t.Fatalf("reviewed_by = %v", approved.ReviewedBy)
	}
	if approved.ReviewedAt == nil || *approved.ReviewedAt != "2024-03-01T11:00:00Z" {
		t.Fatalf("reviewed_at = %v", approved.ReviewedAt)
	}
	if approved.AdminComments == nil || *approved.AdminComments != "looks solid" {
		t.Fatalf("admin_comments = %v", approved.AdminComments)
	}

	// approval makes the record public
	got, err := env.Engine.GetSubmission(env.Ctx, domain.KindProject, created.ID, nil)
	if err != nil {
		t.Fatalf("anonymous get after approve: %v", err)
	}
	if got.Status != domain.StatusApproved {
		t.Fatalf("status = %s", got.Status)
	}

	reviews, err := env.Engine.SubmissionReviews(env.Ctx, domain.KindProject, created.ID, owner)
	if err != nil {
		t.Fatalf("reviews: %v", err)
	}
	if len(reviews) != 1 || reviews[0].Decision != domain.StatusApproved || reviews[0].ReviewerID != "admin-1" {
		t.Fatalf("reviews = %+v", reviews)
	}
}

func TestDraftEventLifecycle(t *testing.T) {
	env := newTestEnv(t)

	opts := eventOptions("Cleanup day")
	opts.Input.Status = "draft"
	created, err := env.Engine.CreateSubmission(env.Ctx, domain.KindEvent, opts, owner)
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if created.Status != domain.StatusDraft {
		t.Fatalf("status = %s, want draft", created.Status)
	}

	// owner may edit while draft
	edited, err := env.Engine.UpdateSubmission(env.Ctx, domain.KindEvent, created.ID, engine.UpdatePatch{Title: strPtr("Cleanup morning")}, owner)
	if err != nil {
		t.Fatalf("edit draft: %v", err)
	}
	if edited.Title != "Cleanup morning" {
		t.Fatalf("title = %s", edited.Title)
	}

	// owner submits the draft
	submitted, err := env.Engine.UpdateSubmission(env.Ctx, domain.KindEvent, created.ID, engine.UpdatePatch{Status: strPtr("pending")}, owner)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.Status != domain.StatusPending {
		t.Fatalf("status = %s, want pending", submitted.Status)
	}
	if submitted.ReviewedAt != nil {
		t.Fatalf("submit stamped review fields")
	}

	// once pending the owner may no longer edit
	_, err = env.Engine.UpdateSubmission(env.Ctx, domain.KindEvent, created.ID, engine.UpdatePatch{Title: strPtr("Another title")}, owner)
	var pe policy.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("edit after submit: err = %v, want permission error", err)
	}
}

func TestStrangerUpdateDenied(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.Engine.CreateSubmission(env.Ctx, domain.KindProject, projectOptions("Pending project"), owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// a hidden record reads as missing, even for update attempts
	_, err = env.Engine.UpdateSubmission(env.Ctx, domain.KindProject, created.ID, engine.UpdatePatch{Title: strPtr("hijack")}, stranger)
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("stranger update hidden: err = %v, want not found", err)
	}

	if _, err := env.Engine.ApproveSubmission(env.Ctx, domain.KindProject, created.ID, "", admin); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// once public the denial is explicit
	_, err = env.Engine.UpdateSubmission(env.Ctx, domain.KindProject, created.ID, engine.UpdatePatch{Title: strPtr("hijack")}, stranger)
	var pe policy.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("stranger update public: err = %v, want permission error", err)
	}
}

func TestUpdateIdempotence(t *testing.T) {
	env := newTestEnv(t)

	opts := projectOptions("Stable project")
	opts.Input.Status = "draft"
	created, err := env.Engine.CreateSubmission(env.Ctx, domain.KindProject, opts, owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	env.advance(30 * time.Minute)
	same, err := env.Engine.UpdateSubmission(env.Ctx, domain.KindProject, created.ID, engine.UpdatePatch{
		Title:       strPtr(created.Title),
		Description: strPtr(created.Description),
		Category:    strPtr(created.Category),
		Location:    strPtr(created.Location),
	}, owner)
	if err != nil {
		t.Fatalf("idempotent update: %v", err)
	}
	if same.Title != created.Title || same.Description != created.Description || same.Status != created.Status {
		t.Fatalf("fields changed: %+v", same)
	}
	if same.CreatedAt != created.CreatedAt || same.SubmittedAt != created.SubmittedAt {
		t.Fatalf("immutable timestamps changed")
	}
	if same.UpdatedAt != "2024-03-01T10:30:00Z" {
		t.Fatalf("updated_at = %s", same.UpdatedAt)
	}
	if same.Version != created.Version+1 {
		t.Fatalf("version = %d", same.Version)
	}
}

func TestUpdateVersionConflict(t *testing.T) {
	env := newTestEnv(t)

	opts := projectOptions("Contended project")
	opts.Input.Status = "draft"
	created, err := env.Engine.CreateSubmission(env.Ctx, domain.KindProject, opts, owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// two writers loaded version 1; the second write must lose
	if _, err := env.Engine.UpdateSubmission(env.Ctx, domain.KindProject, created.ID, engine.UpdatePatch{
		Title:           strPtr("First writer"),
		ExpectedVersion: created.Version,
	}, owner); err != nil {
		t.Fatalf("first update: %v", err)
	}
	_, err = env.Engine.UpdateSubmission(env.Ctx, domain.KindProject, created.ID, engine.UpdatePatch{
		Title:           strPtr("Second writer"),
		ExpectedVersion: created.Version,
	}, owner)
	if !errors.Is(err, repo.ErrVersionConflict) {
		t.Fatalf("second update: err = %v, want version conflict", err)
	}

	// retry with the fresh version succeeds
	fresh, err := env.Engine.GetSubmission(env.Ctx, domain.KindProject, created.ID, owner)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := env.Engine.UpdateSubmission(env.Ctx, domain.KindProject, created.ID, engine.UpdatePatch{
		Title:           strPtr("Second writer retry"),
		ExpectedVersion: fresh.Version,
	}, owner); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.Engine.CreateSubmission(env.Ctx, domain.KindProject, projectOptions("Risky project"), owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = env.Engine.RejectSubmission(env.Ctx, domain.KindProject, created.ID, "", "", admin)
	var ve domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "rejection_reason" {
		t.Fatalf("reject without reason: err = %v", err)
	}

	rejected, err := env.Engine.RejectSubmission(env.Ctx, domain.KindProject, created.ID, "out of scope", "", admin)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.StatusRejected {
		t.Fatalf("status = %s", rejected.Status)
	}
	if rejected.RejectionReason == nil || *rejected.RejectionReason != "out of scope" {
		t.Fatalf("rejection_reason = %v", rejected.RejectionReason)
	}
	if rejected.ReviewedBy == nil || *rejected.ReviewedBy != "admin-1" {
		t.Fatalf("reviewed_by = %v", rejected.ReviewedBy)
	}
}

func TestDraftCannotJumpToDecision(t *testing.T) {
	env := newTestEnv(t)

	opts := projectOptions("Draft project")
	opts.Input.Status = "draft"
	created, err := env.Engine.CreateSubmission(env.Ctx, domain.KindProject, opts, owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = env.Engine.ApproveSubmission(env.Ctx, domain.KindProject, created.ID, "", admin)
	var ite domain.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("approve draft: err = %v, want invalid transition", err)
	}
}

func TestTerminalStatesLockedForOwner(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.Engine.CreateSubmission(env.Ctx, domain.KindProject, projectOptions("Decided project"), owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.Engine.ApproveSubmission(env.Ctx, domain.KindProject, created.ID, "", admin); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err = env.Engine.UpdateSubmission(env.Ctx, domain.KindProject, created.ID, engine.UpdatePatch{Status: strPtr("pending")}, owner)
	var fte domain.ForbiddenTransitionError
	if !errors.As(err, &fte) {
		t.Fatalf("owner reopen: err = %v, want forbidden transition", err)
	}

	// admin override stays open
	reopened, err := env.Engine.UpdateSubmission(env.Ctx, domain.KindProject, created.ID, engine.UpdatePatch{Status: strPtr("pending")}, admin)
	if err != nil {
		t.Fatalf("admin reopen: %v", err)
	}
	if reopened.Status != domain.StatusPending {
		t.Fatalf("status = %s", reopened.Status)
	}
}

func TestReviewMetadataGuard(t *testing.T) {
	env := newTestEnv(t)

	opts := projectOptions("Guarded project")
	opts.Input.Status = "draft"
	created, err := env.Engine.CreateSubmission(env.Ctx, domain.KindProject, opts, owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = env.Engine.UpdateSubmission(env.Ctx, domain.KindProject, created.ID, engine.UpdatePatch{AdminComments: strPtr("note to self")}, owner)
	var pe policy.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("owner touching admin_comments: err = %v", err)
	}

	updated, err := env.Engine.UpdateSubmission(env.Ctx, domain.KindProject, created.ID, engine.UpdatePatch{AdminComments: strPtr("needs detail")}, admin)
	if err != nil {
		t.Fatalf("admin comment: %v", err)
	}
	if updated.AdminComments == nil || *updated.AdminComments != "needs detail" {
		t.Fatalf("admin_comments = %v", updated.AdminComments)
	}
	if updated.Status != domain.StatusDraft {
		t.Fatalf("comment changed status to %s", updated.Status)
	}
}

func TestAnonymousCreateDenied(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateSubmission(env.Ctx, domain.KindProject, projectOptions("No owner"), nil)
	var pe policy.PermissionError
	if !errors.As(err, &pe) || pe.Reason != policy.ReasonUnauthenticated {
		t.Fatalf("anonymous create: err = %v", err)
	}
}

func TestCreateUnknownCategory(t *testing.T) {
	env := newTestEnv(t)
	opts := projectOptions("Odd category")
	opts.Input.Category = "cryptocurrency"
	_, err := env.Engine.CreateSubmission(env.Ctx, domain.KindProject, opts, owner)
	var ve domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "category" {
		t.Fatalf("err = %v, want category validation error", err)
	}
}

func TestOrphanedSubmissionAdminOnly(t *testing.T) {
	env := newTestEnv(t)

	// an orphaned row: owner account removed upstream
	s, err := domain.NewSubmission(domain.KindProject, projectOptions("Orphaned project").Input, "", "orphan-1", env.now)
	if err != nil {
		t.Fatalf("build orphan: %v", err)
	}
	tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := env.Engine.Repo.InsertSubmission(env.Ctx, tx, s); err != nil {
		t.Fatalf("insert orphan: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if _, err := env.Engine.GetSubmission(env.Ctx, domain.KindProject, "orphan-1", stranger); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("stranger get orphan: err = %v", err)
	}
	if _, err := env.Engine.GetSubmission(env.Ctx, domain.KindProject, "orphan-1", admin); err != nil {
		t.Fatalf("admin get orphan: %v", err)
	}
	if _, err := env.Engine.UpdateSubmission(env.Ctx, domain.KindProject, "orphan-1", engine.UpdatePatch{Title: strPtr("Adopted project")}, admin); err != nil {
		t.Fatalf("admin update orphan: %v", err)
	}
}

func TestListVisibility(t *testing.T) {
	env := newTestEnv(t)

	public, err := env.Engine.CreateSubmission(env.Ctx, domain.KindProject, projectOptions("Public project"), owner)
	if err != nil {
		t.Fatalf("create public: %v", err)
	}
	if _, err := env.Engine.ApproveSubmission(env.Ctx, domain.KindProject, public.ID, "", admin); err != nil {
		t.Fatalf("approve: %v", err)
	}
	mine, err := env.Engine.CreateSubmission(env.Ctx, domain.KindProject, projectOptions("My pending"), owner)
	if err != nil {
		t.Fatalf("create mine: %v", err)
	}
	draftOpts := projectOptions("Their draft")
	draftOpts.Input.Status = "draft"
	theirs, err := env.Engine.CreateSubmission(env.Ctx, domain.KindProject, draftOpts, stranger)
	if err != nil {
		t.Fatalf("create theirs: %v", err)
	}

	ids := func(actor *domain.Actor) map[string]bool {
		t.Helper()
		list, err := env.Engine.ListSubmissions(env.Ctx, domain.KindProject, engine.ListFilters{}, actor)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		out := map[string]bool{}
		for _, s := range list {
			out[s.ID] = true
		}
		return out
	}

	anon := ids(nil)
	if len(anon) != 1 || !anon[public.ID] {
		t.Fatalf("anonymous sees %v", anon)
	}
	ownerView := ids(owner)
	if len(ownerView) != 2 || !ownerView[public.ID] || !ownerView[mine.ID] {
		t.Fatalf("owner sees %v", ownerView)
	}
	strangerView := ids(stranger)
	if len(strangerView) != 2 || !strangerView[public.ID] || !strangerView[theirs.ID] {
		t.Fatalf("stranger sees %v", strangerView)
	}
	adminView := ids(admin)
	if len(adminView) != 3 {
		t.Fatalf("admin sees %v", adminView)
	}

	// status filter still honors visibility
	pendingOnly, err := env.Engine.ListSubmissions(env.Ctx, domain.KindProject, engine.ListFilters{Status: "pending"}, nil)
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(pendingOnly) != 0 {
		t.Fatalf("anonymous pending list = %v", pendingOnly)
	}

	var ve domain.ValidationError
	if _, err := env.Engine.ListSubmissions(env.Ctx, domain.KindProject, engine.ListFilters{Status: "bogus"}, admin); !errors.As(err, &ve) {
		t.Fatalf("bogus status: err = %v", err)
	}
}

func TestStatusCountsAdminOnly(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.Engine.CreateSubmission(env.Ctx, domain.KindProject, projectOptions("One"), owner); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.Engine.StatusCounts(env.Ctx, domain.KindProject, owner); err == nil {
		t.Fatalf("owner counts should be denied")
	}
	counts, err := env.Engine.StatusCounts(env.Ctx, domain.KindProject, admin)
	if err != nil {
		t.Fatalf("admin counts: %v", err)
	}
	if counts["pending"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestAuditTrail(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.Engine.CreateSubmission(env.Ctx, domain.KindEvent, eventOptions("Tracked event"), owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.Engine.ApproveSubmission(env.Ctx, domain.KindEvent, created.ID, "", admin); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := env.Engine.ListEvents(env.Ctx, 10, 0, "", "", "", owner); err == nil {
		t.Fatalf("non-admin event listing should be denied")
	}
	evts, err := env.Engine.ListEvents(env.Ctx, 10, 0, "", "event", created.ID, admin)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(evts) != 2 {
		t.Fatalf("events = %d, want 2", len(evts))
	}
	// newest first
	if evts[0].Type != "submission.approved" || evts[1].Type != "submission.created" {
		t.Fatalf("event types = %s, %s", evts[0].Type, evts[1].Type)
	}
	if evts[0].ActorID != "admin-1" {
		t.Fatalf("approve actor = %s", evts[0].ActorID)
	}
}
