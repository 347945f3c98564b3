package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-casebook/internal/model"
)

// SubmissionRepository archives accepted answer sheets.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Insert stores rec. A second insert for the same session is ignored, so
// queue redelivery is harmless.
func (r *SubmissionRepository) Insert(ctx context.Context, rec *model.SubmissionRecord) error {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO exam_submissions (session_id, student_name, answers, submitted_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id) DO NOTHING`,
		rec.SessionID, rec.StudentName, answers, rec.SubmittedAt,
	)
	return err
}

// GetBySession returns the archived sheet of one session.
func (r *SubmissionRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.SubmissionRecord, error) {
	rec := &model.SubmissionRecord{}
	var answers []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, session_id, student_name, answers, submitted_at
		 FROM exam_submissions WHERE session_id = $1`, sessionID,
	).Scan(&rec.ID, &rec.SessionID, &rec.StudentName, &answers, &rec.SubmittedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &rec.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return rec, nil
}

// ListRecent returns the newest archived sheets without their answers.
func (r *SubmissionRepository) ListRecent(ctx context.Context, limit int) ([]model.SubmissionRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, student_name, submitted_at
		 FROM exam_submissions ORDER BY submitted_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SubmissionRecord
	for rows.Next() {
		var rec model.SubmissionRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.StudentName, &rec.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
