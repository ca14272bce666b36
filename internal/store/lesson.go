package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type lessonRepo struct {
	s *Store
}

const lessonColumns = `id, topic, title, module_title, knowledge_level, exposition, outline, created_at, updated_at`

func (r *lessonRepo) Upsert(ctx context.Context, l *Lesson) error {
	if l.ID == "" {
		return fmt.Errorf("lesson id is required")
	}
	outline, err := json.Marshal(l.Outline)
	if err != nil {
		return fmt.Errorf("marshal outline: %w", err)
	}

	now := time.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now

	_, err = r.s.exec(ctx, `INSERT INTO lessons (`+lessonColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			topic = excluded.topic,
			title = excluded.title,
			module_title = excluded.module_title,
			knowledge_level = excluded.knowledge_level,
			exposition = excluded.exposition,
			outline = excluded.outline,
			updated_at = excluded.updated_at`,
		l.ID, l.Topic, l.Title, l.ModuleTitle, l.KnowledgeLevel, l.Exposition, string(outline),
		toMillis(l.CreatedAt), toMillis(l.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert lesson %s: %w", l.ID, err)
	}
	return nil
}

func (r *lessonRepo) Get(ctx context.Context, id string) (*Lesson, error) {
	row := r.s.queryRow(ctx, "SELECT "+lessonColumns+" FROM lessons WHERE id = ?", id)
	l, err := scanLesson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lesson %s: %w", id, ErrNotFound)
	}
	return l, err
}

func (r *lessonRepo) List(ctx context.Context) ([]Lesson, error) {
	rows, err := r.s.query(ctx, "SELECT "+lessonColumns+" FROM lessons ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()

	var out []Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func scanLesson(sc scanner) (*Lesson, error) {
	var l Lesson
	var outline string
	var created, updated int64
	err := sc.Scan(&l.ID, &l.Topic, &l.Title, &l.ModuleTitle, &l.KnowledgeLevel, &l.Exposition,
		&outline, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan lesson: %w", err)
	}
	if outline != "" {
		if err := json.Unmarshal([]byte(outline), &l.Outline); err != nil {
			return nil, fmt.Errorf("decode outline of %s: %w", l.ID, err)
		}
	}
	l.CreatedAt = fromMillis(created)
	l.UpdatedAt = fromMillis(updated)
	return &l, nil
}
