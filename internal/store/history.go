package store

import (
	"context"
	"fmt"
	"slices"
	"time"
)

type historyRepo struct {
	s *Store
}

func (r *historyRepo) Append(ctx context.Context, e *HistoryEntry) error {
	seq, err := r.s.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	e.Sequence = seq
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	err = r.s.queryRow(ctx, `INSERT INTO history (sequence, learner_id, lesson_id, role, content,
		message_type, created_at) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		e.Sequence, e.LearnerID, e.LessonID, e.Role, e.Content, e.MessageType, toMillis(e.CreatedAt)).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (r *historyRepo) Recent(ctx context.Context, learnerID, lessonID string, limit int) ([]HistoryEntry, error) {
	q := `SELECT id, sequence, learner_id, lesson_id, role, content, message_type, created_at
		FROM history WHERE learner_id = ? AND lesson_id = ? ORDER BY sequence DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.s.query(ctx, q, learnerID, lessonID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var created int64
		if err := rows.Scan(&e.ID, &e.Sequence, &e.LearnerID, &e.LessonID, &e.Role, &e.Content,
			&e.MessageType, &created); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.CreatedAt = fromMillis(created)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; callers want conversation order.
	slices.Reverse(out)
	return out, nil
}
