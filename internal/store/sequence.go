package store

import (
	"context"
	"fmt"
	"sync"
)

// sequence numbers history entries and LLM events from one counter, so a
// conversation can be lined up against the provider calls it caused. The
// counter row is created by migrate.
type sequence struct {
	mu sync.Mutex
	s  *Store
}

// Next returns the next number. The UPDATE ... RETURNING makes the
// increment atomic across processes sharing the database.
func (q *sequence) Next(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var n int64
	if err := q.s.queryRow(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return n, nil
}
