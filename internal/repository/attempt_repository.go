package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocatalyst/exam-engine/internal/model"
)

// AttemptRepository handles the exam_attempts archive.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// InsertBatch archives attempts in one statement. Attempts already
// archived are skipped.
func (r *AttemptRepository) InsertBatch(ctx context.Context, batch []*model.AttemptRecord) error {
	n := len(batch)
	if n == 0 {
		return nil
	}

	attemptIDs := make([]string, n)
	sessionIDs := make([]string, n)
	subjects := make([]string, n)
	testIDs := make([]string, n)
	scores := make([]float64, n)
	totals := make([]float64, n)
	percentages := make([]float64, n)
	corrects := make([]int32, n)
	wrongs := make([]int32, n)
	unattempted := make([]int32, n)
	timeTaken := make([]int32, n)
	autos := make([]bool, n)
	answers := make([]string, n)
	submittedAts := make([]time.Time, n)

	for i, rec := range batch {
		raw, err := json.Marshal(rec.Answers)
		if err != nil {
			return fmt.Errorf("marshal answers of %s: %w", rec.AttemptID, err)
		}
		attemptIDs[i] = rec.AttemptID
		sessionIDs[i] = rec.SessionID
		subjects[i] = rec.Subject
		testIDs[i] = rec.TestID
		scores[i] = rec.Score
		totals[i] = rec.TotalMarks
		percentages[i] = rec.Percentage
		corrects[i] = int32(rec.CorrectAnswers)
		wrongs[i] = int32(rec.WrongAnswers)
		unattempted[i] = int32(rec.Unattempted)
		timeTaken[i] = int32(rec.TimeTaken)
		autos[i] = rec.AutoSubmitted
		answers[i] = string(raw)
		submittedAts[i] = rec.SubmittedAt
	}

	query := `
		INSERT INTO exam_attempts (
			attempt_id, session_id, subject, test_id,
			score, total_marks, percentage,
			correct_answers, wrong_answers, unattempted, time_taken,
			auto_submitted, answers, submitted_at
		)
		SELECT
			u.attempt_id, u.session_id::uuid, u.subject, u.test_id,
			u.score, u.total_marks, u.percentage,
			u.correct_answers, u.wrong_answers, u.unattempted, u.time_taken,
			u.auto_submitted, u.answers::jsonb, u.submitted_at
		FROM UNNEST(
			$1::text[], $2::text[], $3::text[], $4::text[],
			$5::float8[], $6::float8[], $7::float8[],
			$8::int[], $9::int[], $10::int[], $11::int[],
			$12::bool[], $13::text[], $14::timestamptz[]
		) AS u (
			attempt_id, session_id, subject, test_id,
			score, total_marks, percentage,
			correct_answers, wrong_answers, unattempted, time_taken,
			auto_submitted, answers, submitted_at
		)
		ON CONFLICT (attempt_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		attemptIDs, sessionIDs, subjects, testIDs,
		scores, totals, percentages,
		corrects, wrongs, unattempted, timeTaken,
		autos, answers, submittedAts,
	)
	return err
}

// Insert archives one attempt. It is the fallback when a batch fails.
func (r *AttemptRepository) Insert(ctx context.Context, rec *model.AttemptRecord) error {
	raw, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO exam_attempts (
			attempt_id, session_id, subject, test_id,
			score, total_marks, percentage,
			correct_answers, wrong_answers, unattempted, time_taken,
			auto_submitted, answers, submitted_at
		) VALUES ($1, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14)
		ON CONFLICT (attempt_id) DO NOTHING`,
		rec.AttemptID, rec.SessionID, rec.Subject, rec.TestID,
		rec.Score, rec.TotalMarks, rec.Percentage,
		rec.CorrectAnswers, rec.WrongAnswers, rec.Unattempted, rec.TimeTaken,
		rec.AutoSubmitted, string(raw), rec.SubmittedAt,
	)
	return err
}

// HasAttempt reports whether subject has an archived attempt of testID.
func (r *AttemptRepository) HasAttempt(ctx context.Context, subject, testID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM exam_attempts WHERE subject = $1 AND test_id = $2)`,
		subject, testID,
	).Scan(&exists)
	return exists, err
}
