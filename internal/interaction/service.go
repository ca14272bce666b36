// Package interaction runs learner turns: it loads session state and
// history from the store, hands the turn to the tutor and persists what
// comes back.
package interaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/abhisek/techtree/internal/llm"
	"github.com/abhisek/techtree/internal/store"
	"github.com/abhisek/techtree/internal/tutor"
)

// Runner runs one classified turn. *tutor.Tutor implements it.
type Runner interface {
	Run(ctx context.Context, in tutor.Input) tutor.Update
}

// Repos are the stores a Service reads and writes.
type Repos struct {
	Lessons  store.LessonRepo
	Progress store.ProgressRepo
	History  store.HistoryRepo
}

// ReposFrom returns the repositories of s.
func ReposFrom(s *store.Store) Repos {
	return Repos{Lessons: s.LessonRepo(), Progress: s.ProgressRepo(), History: s.HistoryRepo()}
}

// Service is the turn controller. Turns for the same learner and lesson
// run one at a time; different sessions run in parallel.
type Service struct {
	runner        Runner
	repos         Repos
	historyWindow int
	logger        *zap.Logger
	locks         *sessionLocks
}

// NewService creates a Service. historyWindow bounds the history handed to
// the tutor; values <= 0 use 10.
func NewService(runner Runner, repos Repos, historyWindow int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if historyWindow <= 0 {
		historyWindow = 10
	}
	return &Service{
		runner:        runner,
		repos:         repos,
		historyWindow: historyWindow,
		logger:        logger,
		locks:         newSessionLocks(),
	}
}

// HandleTurn processes one learner message and returns the reply. Errors
// are returned only for store failures and unknown lessons; tutor
// failures surface in Reply.Error.
func (s *Service) HandleTurn(ctx context.Context, turn Turn) (*Reply, error) {
	if turn.LearnerID == "" || turn.LessonID == "" {
		return nil, ErrInvalidTurn
	}
	unlock := s.locks.lock(sessionKey(turn.LearnerID, turn.LessonID))
	defer unlock()

	ctx = llm.WithSession(ctx, turn.LearnerID, turn.LessonID)
	logger := s.logger.With(zap.String("learner", turn.LearnerID), zap.String("lesson", turn.LessonID))

	lesson, err := s.lesson(ctx, turn.LessonID)
	if err != nil {
		return nil, err
	}
	progress, state, err := s.load(ctx, turn.LearnerID, turn.LessonID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(turn.Message) != "" {
		if err := s.appendHistory(ctx, turn, tutor.RoleUser, turn.Message, userMessageType(turn.Submission, state)); err != nil {
			return nil, err
		}
	}
	entries, err := s.repos.History.Recent(ctx, turn.LearnerID, turn.LessonID, s.historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	state.BeginTurn(turn.Message, toMessages(entries))
	pending := state.ActiveTask()

	u, err := s.dispatch(ctx, state.Input(lesson))
	if err != nil {
		logger.Error("dispatch failed", zap.Error(err))
		state.ErrorMessage = "dispatch failed: " + err.Error()
		state.NewAssistantMessage = msgDispatchFailed
		u = tutor.Update{}
	} else {
		state.Apply(u)
	}

	message := state.EvaluationFeedback
	if message == "" {
		message = state.NewAssistantMessage
	}
	if message == "" {
		message = msgNoReply
	}
	// The provider has been paid for; finish writing even if the caller
	// went away.
	ctx = context.WithoutCancel(ctx)
	msgType := assistantMessageType(pending, u)
	if err := s.appendHistory(ctx, turn, tutor.RoleAssistant, message, msgType); err != nil {
		return nil, err
	}

	if err := s.save(ctx, turn, progress, state, u.Response); err != nil {
		return nil, err
	}

	logger.Info("turn handled",
		zap.String("node", u.Node),
		zap.String("mode", string(state.Mode)),
		zap.String("error", state.ErrorMessage),
	)
	return &Reply{
		Message:     message,
		MessageType: msgType,
		Mode:        state.Mode,
		ActiveTask:  state.ActiveTask(),
		Score:       state.ScoreUpdate,
		Error:       state.ErrorMessage,
	}, nil
}

// dispatch runs the tutor and turns a panic into an error.
func (s *Service) dispatch(ctx context.Context, in tutor.Input) (u tutor.Update, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return s.runner.Run(ctx, in), nil
}

// State returns the persisted state for a session, or a fresh one.
func (s *Service) State(ctx context.Context, learnerID, lessonID string) (*tutor.State, error) {
	_, state, err := s.load(ctx, learnerID, lessonID)
	return state, err
}

// History returns the last limit history entries of a session, oldest
// first. A limit <= 0 returns everything.
func (s *Service) History(ctx context.Context, learnerID, lessonID string, limit int) ([]store.HistoryEntry, error) {
	return s.repos.History.Recent(ctx, learnerID, lessonID, limit)
}

// Reset drops the state, history and responses of one session.
func (s *Service) Reset(ctx context.Context, learnerID, lessonID string) error {
	unlock := s.locks.lock(sessionKey(learnerID, lessonID))
	defer unlock()
	return s.repos.Progress.Reset(ctx, learnerID, lessonID)
}

func (s *Service) lesson(ctx context.Context, id string) (tutor.Lesson, error) {
	rec, err := s.repos.Lessons.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return tutor.Lesson{}, fmt.Errorf("%w: %s", ErrLessonNotFound, id)
	}
	if err != nil {
		return tutor.Lesson{}, fmt.Errorf("load lesson: %w", err)
	}
	return LessonContext(rec), nil
}

func (s *Service) load(ctx context.Context, learnerID, lessonID string) (*store.Progress, *tutor.State, error) {
	p, err := s.repos.Progress.Load(ctx, learnerID, lessonID)
	if err != nil {
		return nil, nil, fmt.Errorf("load progress: %w", err)
	}
	if p == nil {
		return &store.Progress{LearnerID: learnerID, LessonID: lessonID}, tutor.NewState(), nil
	}

	state := tutor.NewState()
	if len(p.State) > 0 {
		if err := json.Unmarshal(p.State, state); err != nil {
			// A record we cannot read would wedge the session; start over.
			s.logger.Warn("discarding unreadable state",
				zap.String("learner", learnerID),
				zap.String("lesson", lessonID),
				zap.Error(err),
			)
			state = tutor.NewState()
		}
	}
	return p, state, nil
}

func (s *Service) save(ctx context.Context, turn Turn, p *store.Progress, state *tutor.State, resp *tutor.Response) error {
	if resp != nil {
		err := s.repos.Progress.RecordResponse(ctx, &store.Response{
			LearnerID: turn.LearnerID,
			LessonID:  turn.LessonID,
			TaskID:    resp.TaskID,
			TaskKind:  string(resp.Kind),
			TaskType:  resp.Type,
			Answer:    resp.Answer,
			Score:     resp.Score,
			Feedback:  resp.Feedback,
			CreatedAt: resp.At,
		})
		if err != nil {
			return err
		}
		if resp.Score != nil {
			p.Answered++
			p.ScoreTotal += *resp.Score
		}
	}

	data, err := json.Marshal(state.Strip())
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	p.State = data
	p.Status = "in_progress"
	return s.repos.Progress.Save(ctx, p)
}

func (s *Service) appendHistory(ctx context.Context, turn Turn, role, content, msgType string) error {
	err := s.repos.History.Append(ctx, &store.HistoryEntry{
		LearnerID:   turn.LearnerID,
		LessonID:    turn.LessonID,
		Role:        role,
		Content:     content,
		MessageType: msgType,
	})
	if err != nil {
		return fmt.Errorf("append %s message: %w", role, err)
	}
	return nil
}

// LessonContext converts a stored lesson into the tutor's lesson context.
func LessonContext(l *store.Lesson) tutor.Lesson {
	return tutor.Lesson{
		ID:             l.ID,
		Topic:          l.Topic,
		Title:          l.Title,
		ModuleTitle:    l.ModuleTitle,
		KnowledgeLevel: l.KnowledgeLevel,
		Exposition:     l.Exposition,
		Outline: lo.Map(l.Outline, func(m store.OutlineModule, _ int) tutor.OutlineModule {
			return tutor.OutlineModule{Title: m.Title, Lessons: m.Lessons}
		}),
	}
}

func toMessages(entries []store.HistoryEntry) []tutor.Message {
	return lo.Map(entries, func(e store.HistoryEntry, _ int) tutor.Message {
		return tutor.Message{Role: e.Role, Content: e.Content, MessageType: e.MessageType}
	})
}

// userMessageType labels the learner's message. Without an explicit
// submission type it follows the active task.
func userMessageType(sub Submission, state *tutor.State) string {
	switch sub {
	case SubmitAnswer:
		return tutor.MessageExerciseResponse
	case SubmitAssessment:
		return tutor.MessageAssessmentResponse
	case SubmitChat:
		return tutor.MessageChat
	}
	switch {
	case state.ActiveExercise != nil:
		return tutor.MessageExerciseResponse
	case state.ActiveAssessment != nil:
		return tutor.MessageAssessmentResponse
	default:
		return tutor.MessageChat
	}
}

func assistantMessageType(pending *tutor.Task, u tutor.Update) string {
	switch {
	case pending != nil && u.Response != nil:
		if pending.Kind == tutor.KindAssessment {
			return tutor.MessageAssessmentFeedback
		}
		return tutor.MessageExerciseFeedback
	case u.Task == tutor.TaskSet && u.NewTask != nil:
		if u.NewTask.Kind == tutor.KindAssessment {
			return tutor.MessageAssessmentPrompt
		}
		return tutor.MessageExercisePrompt
	default:
		return tutor.MessageChat
	}
}
