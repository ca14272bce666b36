package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type progressRepo struct {
	s *Store
}

const progressColumns = `learner_id, lesson_id, state, status, answered, score_total, created_at, updated_at`

func (r *progressRepo) Load(ctx context.Context, learnerID, lessonID string) (*Progress, error) {
	row := r.s.queryRow(ctx, "SELECT "+progressColumns+" FROM progress WHERE learner_id = ? AND lesson_id = ?",
		learnerID, lessonID)
	p, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *progressRepo) Save(ctx context.Context, p *Progress) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	state := string(p.State)
	if state == "" {
		state = "{}"
	}

	_, err := r.s.exec(ctx, `INSERT INTO progress (`+progressColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (learner_id, lesson_id) DO UPDATE SET
			state = excluded.state,
			status = excluded.status,
			answered = excluded.answered,
			score_total = excluded.score_total,
			updated_at = excluded.updated_at`,
		p.LearnerID, p.LessonID, state, p.Status, p.Answered, p.ScoreTotal,
		toMillis(p.CreatedAt), toMillis(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save progress %s/%s: %w", p.LearnerID, p.LessonID, err)
	}
	return nil
}

func (r *progressRepo) List(ctx context.Context, learnerID string) ([]Progress, error) {
	q := "SELECT " + progressColumns + " FROM progress"
	var args []any
	if learnerID != "" {
		q += " WHERE learner_id = ?"
		args = append(args, learnerID)
	}
	q += " ORDER BY learner_id, lesson_id"

	rows, err := r.s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var out []Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *progressRepo) RecordResponse(ctx context.Context, resp *Response) error {
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = time.Now()
	}
	var score sql.NullFloat64
	if resp.Score != nil {
		score = sql.NullFloat64{Float64: *resp.Score, Valid: true}
	}

	err := r.s.queryRow(ctx, `INSERT INTO responses (learner_id, lesson_id, task_id, task_kind, task_type,
		answer, score, feedback, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		resp.LearnerID, resp.LessonID, resp.TaskID, resp.TaskKind, resp.TaskType,
		resp.Answer, score, resp.Feedback, toMillis(resp.CreatedAt)).Scan(&resp.ID)
	if err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	return nil
}

func (r *progressRepo) Responses(ctx context.Context, learnerID, lessonID string) ([]Response, error) {
	rows, err := r.s.query(ctx, `SELECT id, learner_id, lesson_id, task_id, task_kind, task_type, answer,
		score, feedback, created_at FROM responses WHERE learner_id = ? AND lesson_id = ? ORDER BY id`,
		learnerID, lessonID)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var out []Response
	for rows.Next() {
		var resp Response
		var score sql.NullFloat64
		var created int64
		if err := rows.Scan(&resp.ID, &resp.LearnerID, &resp.LessonID, &resp.TaskID, &resp.TaskKind,
			&resp.TaskType, &resp.Answer, &score, &resp.Feedback, &created); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		if score.Valid {
			v := score.Float64
			resp.Score = &v
		}
		resp.CreatedAt = fromMillis(created)
		out = append(out, resp)
	}
	return out, rows.Err()
}

func (r *progressRepo) Reset(ctx context.Context, learnerID, lessonID string) error {
	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"progress", "history", "responses"} {
		q := r.s.rebind("DELETE FROM " + table + " WHERE learner_id = ? AND lesson_id = ?")
		if _, err := tx.ExecContext(ctx, q, learnerID, lessonID); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func scanProgress(sc scanner) (*Progress, error) {
	var p Progress
	var state string
	var created, updated int64
	err := sc.Scan(&p.LearnerID, &p.LessonID, &state, &p.Status, &p.Answered, &p.ScoreTotal, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan progress: %w", err)
	}
	p.State = []byte(state)
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}
