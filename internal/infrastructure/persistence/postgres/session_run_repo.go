package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/sparke-study/oracle-service/internal/domain/session"
	"github.com/sparke-study/oracle-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION RUN REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SessionRunRepository persists the insight-session run journal.
// Реализует session.Repository поверх таблицы insight_session_runs.
type SessionRunRepository struct {
	conn *Connection
}

// NewSessionRunRepository creates a new SessionRunRepository.
func NewSessionRunRepository(conn *Connection) *SessionRunRepository {
	return &SessionRunRepository{conn: conn}
}

// Save inserts a new run record.
func (r *SessionRunRepository) Save(ctx context.Context, run *session.Run) error {
	timings, err := json.Marshal(run.Timings)
	if err != nil {
		return fmt.Errorf("marshal timings: %w", err)
	}

	query := `
		INSERT INTO insight_session_runs
			(id, subject_id, session_id, document_ids, status, stage, error, timings, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.conn.Exec(ctx, query,
		run.ID,
		run.SubjectID,
		run.SessionID,
		run.DocumentIDs,
		string(run.Status),
		string(run.Stage),
		run.Error,
		timings,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session run: %w", err)
	}
	return nil
}

// UpdateStage records the stage a running session has reached.
func (r *SessionRunRepository) UpdateStage(ctx context.Context, id uuid.UUID, status session.Status, stage session.Stage) error {
	query := `
		UPDATE insight_session_runs
		SET status = $2, stage = $3
		WHERE id = $1
	`
	tag, err := r.conn.Exec(ctx, query, id, string(status), string(stage))
	if err != nil {
		return fmt.Errorf("update session run stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRunNotFound
	}
	return nil
}

// FinishRun stores the terminal state of a run.
func (r *SessionRunRepository) FinishRun(ctx context.Context, run *session.Run) error {
	timings, err := json.Marshal(run.Timings)
	if err != nil {
		return fmt.Errorf("marshal timings: %w", err)
	}

	query := `
		UPDATE insight_session_runs
		SET status = $2, stage = $3, error = $4, timings = $5, finished_at = $6
		WHERE id = $1
	`
	tag, err := r.conn.Exec(ctx, query,
		run.ID,
		string(run.Status),
		string(run.Stage),
		run.Error,
		timings,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("finish session run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRunNotFound
	}
	return nil
}

// LastForSubject returns the most recent run of a subject, nil when the
// subject has never been processed.
func (r *SessionRunRepository) LastForSubject(ctx context.Context, subjectID string) (*session.Run, error) {
	query := `
		SELECT id, subject_id, session_id, document_ids, status, stage, error, timings, started_at, finished_at
		FROM insight_session_runs
		WHERE subject_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`

	var (
		run     session.Run
		status  string
		stage   string
		timings []byte
	)
	err := r.conn.QueryRow(ctx, query, subjectID).Scan(
		&run.ID,
		&run.SubjectID,
		&run.SessionID,
		&run.DocumentIDs,
		&status,
		&stage,
		&run.Error,
		&timings,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query last session run: %w", err)
	}

	run.Status = session.Status(status)
	run.Stage = session.Stage(stage)
	if len(timings) > 0 {
		if err := json.Unmarshal(timings, &run.Timings); err != nil {
			return nil, fmt.Errorf("unmarshal timings: %w", err)
		}
	}
	return &run, nil
}
