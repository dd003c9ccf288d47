package repo

import (
	"context"
	"database/sql"

	"github.com/mrehmanbee22seecs/wasilah2/internal/domain"
)

// InsertReviewTx records a moderation decision inside the caller's
// transaction, alongside the submission update it belongs to.
func (r Repo) InsertReviewTx(ctx context.Context, tx *sql.Tx, rv domain.Review) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO reviews(id, kind, submission_id, decision, comments, rejection_reason, reviewer_id, created_at)
VALUES (?,?,?,?,?,?,?,?)`,
		rv.ID, string(rv.Kind), rv.SubmissionID, string(rv.Decision),
		nullableStringPtr(rv.Comments), nullableStringPtr(rv.RejectionReason), rv.ReviewerID, rv.CreatedAt)
	return err
}

// ListReviews returns the moderation history for a submission, newest first.
func (r Repo) ListReviews(ctx context.Context, kind domain.Kind, submissionID string) ([]domain.Review, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, kind, submission_id, decision, comments, rejection_reason, reviewer_id, created_at
FROM reviews WHERE kind=? AND submission_id=? ORDER BY created_at DESC, id DESC`, string(kind), submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Review
	for rows.Next() {
		var rv domain.Review
		var kindStr, decision string
		var comments, reason sql.NullString
		if err := rows.Scan(&rv.ID, &kindStr, &rv.SubmissionID, &decision, &comments, &reason, &rv.ReviewerID, &rv.CreatedAt); err != nil {
			return nil, err
		}
		rv.Kind = domain.Kind(kindStr)
		rv.Decision = domain.Status(decision)
		if comments.Valid {
			rv.Comments = &comments.String
		}
		if reason.Valid {
			rv.RejectionReason = &reason.String
		}
		res = append(res, rv)
	}
	return res, rows.Err()
}
