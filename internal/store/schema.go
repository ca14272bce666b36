package store

import (
	"context"
	"fmt"
	"strings"
)

// schema is shared by both dialects; {{serial}} expands to the
// auto-increment primary key of the active driver.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS lessons (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		module_title TEXT NOT NULL DEFAULT '',
		knowledge_level TEXT NOT NULL DEFAULT '',
		exposition TEXT NOT NULL DEFAULT '',
		outline TEXT NOT NULL DEFAULT '[]',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS progress (
		learner_id TEXT NOT NULL,
		lesson_id TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT '',
		answered INTEGER NOT NULL DEFAULT 0,
		score_total DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (learner_id, lesson_id)
	)`,
	`CREATE TABLE IF NOT EXISTS history (
		id {{serial}},
		sequence BIGINT NOT NULL,
		learner_id TEXT NOT NULL,
		lesson_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		message_type TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS history_session ON history (learner_id, lesson_id, sequence)`,
	`CREATE TABLE IF NOT EXISTS responses (
		id {{serial}},
		learner_id TEXT NOT NULL,
		lesson_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		task_kind TEXT NOT NULL,
		task_type TEXT NOT NULL DEFAULT '',
		answer TEXT NOT NULL,
		score DOUBLE PRECISION,
		feedback TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS responses_session ON responses (learner_id, lesson_id)`,
	`CREATE TABLE IF NOT EXISTS llm_events (
		id {{serial}},
		sequence BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		provider TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		purpose TEXT NOT NULL DEFAULT '',
		learner_id TEXT NOT NULL DEFAULT '',
		lesson_id TEXT NOT NULL DEFAULT '',
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms BIGINT NOT NULL DEFAULT 0,
		success BOOLEAN NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		request_body TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS llm_events_sequence ON llm_events (sequence)`,
	`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val BIGINT NOT NULL DEFAULT 1
	)`,
	`INSERT INTO global_sequence (id, next_val) VALUES (1, 1) ON CONFLICT (id) DO NOTHING`,
}

func (s *Store) migrate(ctx context.Context) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}
	for _, stmt := range schema {
		stmt = strings.ReplaceAll(stmt, "{{serial}}", serial)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
