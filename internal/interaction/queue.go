package interaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrSessionQueueFull is returned when a session already has the
	// maximum number of turns waiting.
	ErrSessionQueueFull = errors.New("session queue full")

	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("queue closed")
)

// TurnHandler handles a single turn. *Service implements it.
type TurnHandler interface {
	HandleTurn(ctx context.Context, turn Turn) (*Reply, error)
}

// Result is the outcome of a queued turn.
type Result struct {
	Turn  Turn
	Reply *Reply
	Err   error
}

type job struct {
	ctx  context.Context
	turn Turn
	done func(Result)
}

// Queue runs turns asynchronously with one worker goroutine per session,
// so turns of a session are handled in the order they were enqueued.
// Idle workers exit after a while and are restarted on demand.
type Queue struct {
	handler   TurnHandler
	logger    *zap.Logger
	queueSize int
	idle      time.Duration

	mu      sync.Mutex
	workers map[string]chan job
	closed  bool
	wg      sync.WaitGroup
}

// NewQueue creates a Queue holding at most queueSize waiting turns per
// session.
func NewQueue(handler TurnHandler, queueSize int, logger *zap.Logger) *Queue {
	if queueSize <= 0 {
		queueSize = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		handler:   handler,
		logger:    logger,
		queueSize: queueSize,
		idle:      time.Minute,
		workers:   make(map[string]chan job),
	}
}

// Enqueue schedules turn. done is called from the session's worker once
// the turn has been handled. Cancelling ctx does not abort a queued turn.
func (q *Queue) Enqueue(ctx context.Context, turn Turn, done func(Result)) error {
	key := sessionKey(turn.LearnerID, turn.LessonID)

	// Sends happen under the lock so an idle worker can retire safely.
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	ch, ok := q.workers[key]
	if !ok {
		ch = make(chan job, q.queueSize)
		q.workers[key] = ch
		q.wg.Add(1)
		go q.work(key, ch)
	}

	select {
	case ch <- job{ctx: context.WithoutCancel(ctx), turn: turn, done: done}:
		return nil
	default:
		q.logger.Warn("session queue full",
			zap.String("learner", turn.LearnerID),
			zap.String("lesson", turn.LessonID),
		)
		return ErrSessionQueueFull
	}
}

// Submit enqueues turn and waits for its result.
func (q *Queue) Submit(ctx context.Context, turn Turn) (*Reply, error) {
	resc := make(chan Result, 1)
	if err := q.Enqueue(ctx, turn, func(r Result) { resc <- r }); err != nil {
		return nil, err
	}
	select {
	case r := <-resc:
		return r.Reply, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting turns and waits for queued ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for key, ch := range q.workers {
		close(ch)
		delete(q.workers, key)
	}
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) work(key string, ch chan job) {
	defer q.wg.Done()

	idle := time.NewTimer(q.idle)
	defer idle.Stop()

	for {
		select {
		case j, ok := <-ch:
			if !ok {
				return
			}
			q.run(j)
			idle.Reset(q.idle)

		case <-idle.C:
			q.mu.Lock()
			if len(ch) == 0 && q.workers[key] == ch {
				delete(q.workers, key)
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			idle.Reset(q.idle)
		}
	}
}

func (q *Queue) run(j job) {
	res := Result{Turn: j.turn}
	func() {
		defer func() {
			if r := recover(); r != nil {
				res.Err = fmt.Errorf("turn panicked: %v", r)
				q.logger.Error("turn panicked", zap.Any("panic", r))
			}
		}()
		res.Reply, res.Err = q.handler.HandleTurn(j.ctx, j.turn)
	}()
	if j.done != nil {
		j.done(res)
	}
}
