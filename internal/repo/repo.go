package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mrehmanbee22seecs/wasilah2/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
)

func tableFor(kind domain.Kind) string {
	if kind == domain.KindEvent {
		return "event_submissions"
	}
	return "project_submissions"
}

const submissionColumns = `id,submitted_by,status,title,description,category,location,start_date,end_date,timeline,volunteers_needed,requirements_json,objectives_json,event_date,event_time,registration_deadline,max_attendees,agenda_json,contact_email,contact_phone,submitter_name,submitter_email,admin_comments,rejection_reason,reviewed_by,reviewed_at,submitted_at,created_at,updated_at,version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(kind domain.Kind, row rowScanner) (domain.Submission, error) {
	var s domain.Submission
	var (
		submittedBy, startDate, endDate, timeline                sql.NullString
		requirements, objectives, agenda                         sql.NullString
		eventDate, eventTime, registrationDeadline, contactPhone sql.NullString
		adminComments, rejectionReason, reviewedBy, reviewedAt   sql.NullString
		volunteersNeeded, maxAttendees                           sql.NullInt64
	)
	err := row.Scan(&s.ID, &submittedBy, &s.Status, &s.Title, &s.Description, &s.Category, &s.Location,
		&startDate, &endDate, &timeline, &volunteersNeeded, &requirements, &objectives,
		&eventDate, &eventTime, &registrationDeadline, &maxAttendees, &agenda,
		&s.ContactEmail, &contactPhone, &s.SubmitterName, &s.SubmitterEmail,
		&adminComments, &rejectionReason, &reviewedBy, &reviewedAt,
		&s.SubmittedAt, &s.CreatedAt, &s.UpdatedAt, &s.Version)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.Kind = kind
	s.SubmittedBy = submittedBy.String
	s.StartDate = startDate.String
	s.EndDate = endDate.String
	s.Timeline = timeline.String
	s.EventDate = eventDate.String
	s.EventTime = eventTime.String
	s.RegistrationDeadline = registrationDeadline.String
	s.ContactPhone = contactPhone.String
	if volunteersNeeded.Valid {
		v := int(volunteersNeeded.Int64)
		s.VolunteersNeeded = &v
	}
	if maxAttendees.Valid {
		v := int(maxAttendees.Int64)
		s.MaxAttendees = &v
	}
	if s.Requirements, err = decodeStringList(requirements); err != nil {
		return s, fmt.Errorf("decode requirements: %w", err)
	}
	if s.Objectives, err = decodeStringList(objectives); err != nil {
		return s, fmt.Errorf("decode objectives: %w", err)
	}
	if s.Agenda, err = decodeStringList(agenda); err != nil {
		return s, fmt.Errorf("decode agenda: %w", err)
	}
	if adminComments.Valid {
		s.AdminComments = &adminComments.String
	}
	if rejectionReason.Valid {
		s.RejectionReason = &rejectionReason.String
	}
	if reviewedBy.Valid {
		s.ReviewedBy = &reviewedBy.String
	}
	if reviewedAt.Valid {
		s.ReviewedAt = &reviewedAt.String
	}
	return s, nil
}

func decodeStringList(v sql.NullString) ([]string, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(v.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeStringList(v []string) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (r Repo) InsertSubmission(ctx context.Context, tx *sql.Tx, s domain.Submission) error {
	requirements, err := encodeStringList(s.Requirements)
	if err != nil {
		return fmt.Errorf("encode requirements: %w", err)
	}
	objectives, err := encodeStringList(s.Objectives)
	if err != nil {
		return fmt.Errorf("encode objectives: %w", err)
	}
	agenda, err := encodeStringList(s.Agenda)
	if err != nil {
		return fmt.Errorf("encode agenda: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO `+tableFor(s.Kind)+`(`+submissionColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, nullable(s.SubmittedBy), string(s.Status), s.Title, s.Description, s.Category, s.Location,
		nullable(s.StartDate), nullable(s.EndDate), nullable(s.Timeline), nullableIntPtr(s.VolunteersNeeded), requirements, objectives,
		nullable(s.EventDate), nullable(s.EventTime), nullable(s.RegistrationDeadline), nullableIntPtr(s.MaxAttendees), agenda,
		s.ContactEmail, nullable(s.ContactPhone), s.SubmitterName, s.SubmitterEmail,
		nullableStringPtr(s.AdminComments), nullableStringPtr(s.RejectionReason), nullableStringPtr(s.ReviewedBy), nullableStringPtr(s.ReviewedAt),
		s.SubmittedAt, s.CreatedAt, s.UpdatedAt, s.Version)
	return err
}

func (r Repo) GetSubmission(ctx context.Context, kind domain.Kind, id string) (domain.Submission, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM `+tableFor(kind)+` WHERE id=?`, id)
	return scanSubmission(kind, row)
}

func (r Repo) GetSubmissionTx(ctx context.Context, tx *sql.Tx, kind domain.Kind, id string) (domain.Submission, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM `+tableFor(kind)+` WHERE id=?`, id)
	return scanSubmission(kind, row)
}

// UpdateSubmissionIfVersion writes s only while the stored row still carries
// expectedVersion. s.Version must already hold the next version number.
func (r Repo) UpdateSubmissionIfVersion(ctx context.Context, tx *sql.Tx, s domain.Submission, expectedVersion int64) error {
	requirements, err := encodeStringList(s.Requirements)
	if err != nil {
		return fmt.Errorf("encode requirements: %w", err)
	}
	objectives, err := encodeStringList(s.Objectives)
	if err != nil {
		return fmt.Errorf("encode objectives: %w", err)
	}
	agenda, err := encodeStringList(s.Agenda)
	if err != nil {
		return fmt.Errorf("encode agenda: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE `+tableFor(s.Kind)+` SET
status=?, title=?, description=?, category=?, location=?,
start_date=?, end_date=?, timeline=?, volunteers_needed=?, requirements_json=?, objectives_json=?,
event_date=?, event_time=?, registration_deadline=?, max_attendees=?, agenda_json=?,
contact_email=?, contact_phone=?, submitter_name=?, submitter_email=?,
admin_comments=?, rejection_reason=?, reviewed_by=?, reviewed_at=?,
updated_at=?, version=?
WHERE id=? AND version=?`,
		string(s.Status), s.Title, s.Description, s.Category, s.Location,
		nullable(s.StartDate), nullable(s.EndDate), nullable(s.Timeline), nullableIntPtr(s.VolunteersNeeded), requirements, objectives,
		nullable(s.EventDate), nullable(s.EventTime), nullable(s.RegistrationDeadline), nullableIntPtr(s.MaxAttendees), agenda,
		s.ContactEmail, nullable(s.ContactPhone), s.SubmitterName, s.SubmitterEmail,
		nullableStringPtr(s.AdminComments), nullableStringPtr(s.RejectionReason), nullableStringPtr(s.ReviewedBy), nullableStringPtr(s.ReviewedAt),
		s.UpdatedAt, s.Version,
		s.ID, expectedVersion)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM `+tableFor(s.Kind)+` WHERE id=?`, s.ID).Scan(&one)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrVersionConflict
	}
	return nil
}

type SubmissionFilters struct {
	// Viewer scopes rows to what the caller may see. nil means anonymous.
	Viewer          *domain.Actor
	Status          string
	Category        string
	SubmittedBy     string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListSubmissions(ctx context.Context, kind domain.Kind, f SubmissionFilters) ([]domain.Submission, error) {
	var clauses []string
	var args []any
	switch {
	case f.Viewer == nil || f.Viewer.ID == "":
		clauses = append(clauses, "status='approved'")
	case !f.Viewer.IsAdmin:
		clauses = append(clauses, "(status='approved' OR submitted_by=?)")
		args = append(args, f.Viewer.ID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.SubmittedBy != "" {
		clauses = append(clauses, "submitted_by=?")
		args = append(args, f.SubmittedBy)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + submissionColumns + ` FROM ` + tableFor(kind) + ` ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Submission
	for rows.Next() {
		s, err := scanSubmission(kind, rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) CountSubmissionsByStatus(ctx context.Context, kind domain.Kind) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM `+tableFor(kind)+` GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

func (r Repo) EnsureActor(ctx context.Context, tx *sql.Tx, actorID, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO actors(id, created_at) VALUES (?,?)`, actorID, now)
	return err
}

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, kind, submissionID string) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, evtType, kind, submissionID)
}

func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, evtType, kind, submissionID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, kind)
	}
	if submissionID != "" {
		clauses = append(clauses, "submission_id=?")
		args = append(args, submissionID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,kind,submission_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id,ts,type,kind,submission_id,actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`
	return r.queryEvents(ctx, query, cursor, limit)
}

// LatestEventID returns the most recent audit event ID.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var kind, submissionID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &kind, &submissionID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		e.Kind = kind.String
		e.SubmissionID = submissionID.String
		e.Payload = payload.String
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
