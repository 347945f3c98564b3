package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionRecord is an accepted answer sheet as archived in PostgreSQL.
type SubmissionRecord struct {
	ID          int64             `json:"id,omitempty"`
	SessionID   uuid.UUID         `json:"session_id"`
	StudentName string            `json:"student_name"`
	Answers     map[string]string `json:"answers"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// NewSubmissionRecord flattens answers into their string forms.
func NewSubmissionRecord(id uuid.UUID, studentName string, answers map[string]Value, at time.Time) *SubmissionRecord {
	flat := make(map[string]string, len(answers))
	for k, v := range answers {
		flat[k] = v.String()
	}
	return &SubmissionRecord{
		SessionID:   id,
		StudentName: studentName,
		Answers:     flat,
		SubmittedAt: at,
	}
}

// SubmitResult reports one submission attempt to the client.
type SubmitResult struct {
	Accepted  bool   `json:"accepted"`
	Submitted bool   `json:"submitted"`
	Message   string `json:"message,omitempty"`
}
