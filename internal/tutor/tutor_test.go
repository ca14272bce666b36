package tutor

import (
	"errors"
	"strings"
	"testing"

	"github.com/abhisek/techtree/internal/llm"
)

func testLesson() Lesson {
	return Lesson{
		ID:             "go-101",
		Topic:          "Go",
		Title:          "Goroutines",
		ModuleTitle:    "Concurrency",
		KnowledgeLevel: "beginner",
		Exposition:     "A goroutine is a lightweight thread managed by the Go runtime. Start one with the go keyword.",
	}
}

func userInput(msg string, prior ...Message) Input {
	history := append(append([]Message(nil), prior...), Message{Role: RoleUser, Content: msg})
	return Input{Lesson: testLesson(), History: history, Message: msg}
}

func testTask(kind Kind) *Task {
	return &Task{
		ID:           "t1",
		Kind:         kind,
		Type:         "multiple_choice",
		Instructions: "Which keyword starts a goroutine?",
		Question:     "Which keyword starts a goroutine?",
		Body: Choice{
			Options:   []Option{{ID: "A", Text: "defer"}, {ID: "B", Text: "go"}},
			CorrectID: "B",
		},
	}
}

func answerInput(answer string, task *Task) Input {
	in := userInput(answer)
	in.Task = task
	return in
}

func newTestTutor(p llm.Provider) *Tutor {
	return New(p, DefaultConfig(), nil)
}

func wantNodeError(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	var ne *NodeError
	if !errors.As(err, &ne) {
		t.Fatalf("expected *NodeError, got %v", err)
	}
	if ne.Kind != kind {
		t.Errorf("error kind = %s, want %s (%v)", ne.Kind, kind, err)
	}
}

func TestModeForIntent(t *testing.T) {
	tests := []struct {
		label string
		mode  Mode
		ok    bool
	}{
		{"request_exercise", ModeRequestExercise, true},
		{"EXERCISE please", ModeRequestExercise, true},
		{"request_assessment", ModeRequestAssessment, true},
		{"quiz", ModeRequestAssessment, true},
		{"chatting", ModeChatting, true},
		{"submit_answer", ModeChatting, true},
		{"", ModeChatting, false},
		{"dance", ModeChatting, false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			mode, ok := ModeForIntent(tt.label)
			if mode != tt.mode || ok != tt.ok {
				t.Errorf("ModeForIntent(%q) = (%s, %v), want (%s, %v)", tt.label, mode, ok, tt.mode, tt.ok)
			}
		})
	}
}

func TestClassify_ActiveTaskOverride(t *testing.T) {
	for _, kind := range []Kind{KindExercise, KindAssessment} {
		for _, msg := range []string{"", "give me an exercise", "quiz me", "B"} {
			mock := llm.MockText(`{"intent":"request_exercise"}`)
			c := newTestTutor(mock).Classify(t.Context(), answerInput(msg, testTask(kind)))
			if c.Mode != ModeSubmitAnswer {
				t.Errorf("%s/%q: mode = %s, want submit_answer", kind, msg, c.Mode)
			}
			if mock.CallCount() != 0 {
				t.Errorf("%s/%q: provider called %d times", kind, msg, mock.CallCount())
			}
		}
	}
}

func TestClassify_RequestExercise(t *testing.T) {
	mock := llm.MockText(`{"intent":"request_exercise","reasoning":"asked for practice"}`)
	in := userInput("Give me an exercise", Message{Role: RoleAssistant, Content: "Welcome to the lesson."})

	c := newTestTutor(mock).Classify(t.Context(), in)
	if c.Err != nil {
		t.Fatalf("unexpected error: %v", c.Err)
	}
	if c.Mode != ModeRequestExercise {
		t.Errorf("mode = %s, want request_exercise", c.Mode)
	}
	if c.Reasoning != "asked for practice" {
		t.Errorf("reasoning = %q", c.Reasoning)
	}

	user := mock.LastRequest().Messages[0].Content
	for _, want := range []string{"Give me an exercise", "Assistant: Welcome to the lesson.", "Active task: None"} {
		if !strings.Contains(user, want) {
			t.Errorf("prompt missing %q:\n%s", want, user)
		}
	}
	if strings.Contains(user, "User: Give me an exercise") {
		t.Error("current message should not be repeated in history")
	}
}

func TestClassify_Failures(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.Provider
		message  string
		kind     ErrorKind
	}{
		{"empty message", llm.MockText(`{"intent":"chatting"}`), "  ", KindPrecondition},
		{"no provider", nil, "hello", KindConfiguration},
		{"provider error", llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}}), "hello", KindProvider},
		{"rate limited", llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrRateLimit{}}), "hello", KindTransient},
		{"malformed", llm.MockText(`intent: exercise`), "hello", KindContract},
		{"missing intent", llm.MockText(`{"reasoning":"none"}`), "hello", KindContract},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestTutor(tt.provider).Classify(t.Context(), userInput(tt.message))
			if c.Mode != ModeChatting {
				t.Errorf("mode = %s, want chatting", c.Mode)
			}
			wantNodeError(t, c.Err, tt.kind)
		})
	}
}

func TestClassify_UnknownLabel(t *testing.T) {
	c := newTestTutor(llm.MockText(`{"intent":"dance"}`)).Classify(t.Context(), userInput("let's dance"))
	if c.Err != nil {
		t.Fatalf("unrecognized labels are not errors: %v", c.Err)
	}
	if c.Mode != ModeChatting || c.Intent != "dance" {
		t.Errorf("got mode %s intent %q", c.Mode, c.Intent)
	}
}

func TestRoute(t *testing.T) {
	tu := newTestTutor(nil)
	tests := []struct {
		mode Mode
		node string
	}{
		{ModeChatting, "chat"},
		{ModeRequestExercise, "exercise"},
		{ModeRequestAssessment, "assessment"},
		{ModeSubmitAnswer, "evaluate"},
		{ModeAwaitingAnswer, "chat"},
		{Mode("bogus"), "chat"},
	}
	for _, tt := range tests {
		u := tu.Route(tt.mode)(t.Context(), userInput("hi"))
		if u.Node != tt.node {
			t.Errorf("Route(%s) ran %q, want %q", tt.mode, u.Node, tt.node)
		}
	}
}

func TestRun_ClassifierErrorWins(t *testing.T) {
	u := newTestTutor(nil).Run(t.Context(), userInput("hello"))

	var ne *NodeError
	if !errors.As(u.Err, &ne) || ne.Node != "classify" {
		t.Fatalf("err = %v, want classifier error", u.Err)
	}
	if u.AssistantMessage != msgChatNoProvider {
		t.Errorf("message = %q", u.AssistantMessage)
	}
}

func TestRun_OneNodePerTurn(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Text: `{"intent":"request_assessment"}`},
		llm.MockResponse{Text: `{"type":"short_answer","question_text":"What does the go keyword do?"}`},
	)
	u := newTestTutor(mock).Run(t.Context(), userInput("quiz me"))

	if u.Node != "assessment" || u.Mode != ModeAwaitingAnswer {
		t.Fatalf("node %q mode %s", u.Node, u.Mode)
	}
	if mock.CallCount() != 2 {
		t.Errorf("calls = %d, want 2", mock.CallCount())
	}
	if got := llm.PurposeFrom(t.Context()); got != "unknown" {
		t.Errorf("purpose leaked into caller context: %q", got)
	}
}

func TestGenerateExercise(t *testing.T) {
	mock := llm.MockText("Here you go:\n```json\n" + `{"type":"multiple_choice","instructions":"Pick the keyword that starts a goroutine.",
"options":[{"id":"A","text":"go"},{"id":"B","text":"defer"}],"correct_answer_id":"A"}` + "\n```")

	u := newTestTutor(mock).GenerateExercise(t.Context(), userInput("Give me an exercise"))
	if u.Err != nil {
		t.Fatalf("unexpected error: %v", u.Err)
	}
	if u.Mode != ModeAwaitingAnswer || u.Task != TaskSet {
		t.Fatalf("mode %s task change %d", u.Mode, u.Task)
	}
	task := u.NewTask
	if task.Kind != KindExercise || task.ID == "" {
		t.Errorf("task kind %s id %q", task.Kind, task.ID)
	}
	if c, ok := task.Body.(Choice); !ok || c.CorrectID != "A" || len(c.Options) != 2 {
		t.Errorf("body = %#v", task.Body)
	}
	for _, want := range []string{"multiple_choice", "Pick the keyword", "- (A) go"} {
		if !strings.Contains(u.AssistantMessage, want) {
			t.Errorf("confirmation missing %q:\n%s", want, u.AssistantMessage)
		}
	}
	if u.Generated == nil || u.Generated.ID != task.ID {
		t.Errorf("generated = %+v", u.Generated)
	}

	req := mock.LastRequest()
	if !strings.Contains(req.Messages[0].Content, "Syllabus context: Module: Concurrency, Lesson: Goroutines") {
		t.Errorf("prompt missing syllabus context:\n%s", req.Messages[0].Content)
	}

	s := NewState()
	s.SetActive(testTask(KindAssessment))
	s.Apply(u)
	if s.ActiveExercise == nil || s.ActiveAssessment != nil || s.Mode != ModeAwaitingAnswer {
		t.Errorf("state after apply: %+v", s)
	}
}

func TestGenerateAssessment(t *testing.T) {
	mock := llm.MockText(`{"id":"q1","type":"true_false","question_text":"Goroutines share memory.",
"options":[{"id":"true","text":"True"},{"id":"false","text":"False"}],"correct_answer_id":"true"}`)

	u := newTestTutor(mock).GenerateAssessment(t.Context(), userInput("quiz me"))
	if u.Err != nil {
		t.Fatalf("unexpected error: %v", u.Err)
	}
	want := "Okay, here's a question for you:\n\n**Type:** true_false\n**Question:** Goroutines share memory." +
		"\n\n**Options:**\n- (true) True\n- (false) False"
	if u.AssistantMessage != want {
		t.Errorf("confirmation =\n%s\nwant\n%s", u.AssistantMessage, want)
	}
	if u.NewTask.ID != "q1" || u.NewTask.Kind != KindAssessment {
		t.Errorf("task = %+v", u.NewTask)
	}
}

func TestGenerate_Fallbacks(t *testing.T) {
	type generator func(*Tutor) Node
	nodes := map[string]struct {
		gen       generator
		noContent string
		noLLM     string
		failed    string
	}{
		"exercise": {
			gen:       func(tu *Tutor) Node { return tu.GenerateExercise },
			noContent: exerciseNode.noContent, noLLM: exerciseNode.noProvider, failed: exerciseNode.failed,
		},
		"assessment": {
			gen:       func(tu *Tutor) Node { return tu.GenerateAssessment },
			noContent: assessmentNode.noContent, noLLM: assessmentNode.noProvider, failed: assessmentNode.failed,
		},
	}

	for name, n := range nodes {
		tests := []struct {
			name       string
			provider   llm.Provider
			exposition string
			message    string
			kind       ErrorKind
		}{
			{"empty exposition", llm.MockText(`{"type":"short_answer"}`), " ", n.noContent, KindPrecondition},
			{"no provider", nil, "content", n.noLLM, KindConfiguration},
			{"provider error", llm.NewMockProvider(llm.MockResponse{Err: errors.New("boom")}), "content", n.failed, KindProvider},
			{"timeout", llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrTimeout{}}), "content", n.failed, KindProvider},
			{"malformed", llm.MockText(`{"type": "short_answer",`), "content", n.failed, KindContract},
			{"missing type", llm.MockText(`{"instructions":"x","question_text":"y"}`), "content", n.failed, KindContract},
			{"array reply", llm.MockText(`[{"type":"short_answer"}]`), "content", n.failed, KindContract},
		}
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				in := userInput("give me one")
				in.Lesson.Exposition = tt.exposition
				u := n.gen(newTestTutor(tt.provider))(t.Context(), in)

				if u.Mode != ModeChatting || u.Task != TaskClear || u.NewTask != nil {
					t.Errorf("mode %s task change %d", u.Mode, u.Task)
				}
				if u.AssistantMessage != tt.message {
					t.Errorf("message = %q, want %q", u.AssistantMessage, tt.message)
				}
				wantNodeError(t, u.Err, tt.kind)
			})
		}
	}
}

func TestGenerate_EmptyExpositionSkipsProvider(t *testing.T) {
	mock := llm.MockText(`{"type":"short_answer","instructions":"x"}`)
	in := userInput("exercise")
	in.Lesson.Exposition = ""
	newTestTutor(mock).GenerateExercise(t.Context(), in)
	if mock.CallCount() != 0 {
		t.Errorf("provider called %d times", mock.CallCount())
	}
}

func TestGenerateAssessment_RequiresQuestionText(t *testing.T) {
	u := newTestTutor(llm.MockText(`{"type":"short_answer"}`)).GenerateAssessment(t.Context(), userInput("quiz"))
	if !errors.Is(u.Err, ErrInvalidPayload) {
		t.Errorf("err = %v, want ErrInvalidPayload", u.Err)
	}
}

func TestGenerateExercise_TruncatedReply(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: `{"type": "short_answer", "instruc`, StopReason: llm.StopMaxTokens})
	u := newTestTutor(mock).GenerateExercise(t.Context(), userInput("exercise"))

	wantNodeError(t, u.Err, KindContract)
	var truncated *llm.ErrMaxTokensExceeded
	if !errors.As(u.Err, &truncated) {
		t.Fatalf("err = %v, want it to wrap ErrMaxTokensExceeded", u.Err)
	}
	if truncated.Limit != DefaultConfig().TaskMaxTokens {
		t.Errorf("limit = %d", truncated.Limit)
	}
}

func TestGenerate_NoveltyList(t *testing.T) {
	prior := []GeneratedItem{
		{ID: "1", Summary: "first"},
		{ID: "2", Summary: "second"},
		{ID: "3", Summary: "third"},
	}

	mock := llm.MockText(`{"type":"short_answer","instructions":"x"}`)
	in := userInput("exercise")
	in.PriorExercises = prior
	newTestTutor(mock).GenerateExercise(t.Context(), in)
	if user := mock.LastRequest().Messages[0].Content; !strings.Contains(user, "(do not repeat these):\n[]") {
		t.Errorf("default prompt should carry an empty list:\n%s", user)
	}

	cfg := DefaultConfig()
	cfg.NoveltyWindow = 2
	mock = llm.MockText(`{"type":"short_answer","instructions":"x"}`)
	New(mock, cfg, nil).GenerateExercise(t.Context(), in)
	if user := mock.LastRequest().Messages[0].Content; !strings.Contains(user, `["second","third"]`) {
		t.Errorf("prompt missing novelty list:\n%s", user)
	}
}

func TestChat(t *testing.T) {
	mock := llm.MockText("  A goroutine is a function running concurrently.  ")
	in := userInput("What is a goroutine?", Message{Role: RoleUser, Content: "hi"}, Message{Role: RoleAssistant, Content: "Hello!"})

	u := newTestTutor(mock).Chat(t.Context(), in)
	if u.Err != nil {
		t.Fatalf("unexpected error: %v", u.Err)
	}
	if u.AssistantMessage != "A goroutine is a function running concurrently." || u.Mode != ModeChatting {
		t.Errorf("got %q in %s", u.AssistantMessage, u.Mode)
	}

	user := mock.LastRequest().Messages[0].Content
	if !strings.Contains(user, "Conversation so far:\nUser: hi\nAssistant: Hello!\n\nLearner: What is a goroutine?") {
		t.Errorf("unexpected chat prompt:\n%s", user)
	}
	if got := llm.PurposeFrom(t.Context()); got != "unknown" {
		t.Errorf("purpose leaked into caller context: %q", got)
	}
}

func TestChat_Fallbacks(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.Provider
		history  []Message
		message  string
		wantErr  bool
	}{
		{"empty history", llm.MockText("hi"), nil, msgMissedMessage, false},
		{"last entry from assistant", llm.MockText("hi"), []Message{{Role: RoleAssistant, Content: "hello"}}, msgMissedMessage, false},
		{"no provider", nil, []Message{{Role: RoleUser, Content: "hello"}}, msgChatNoProvider, true},
		{"provider error", llm.NewMockProvider(llm.MockResponse{Err: errors.New("boom")}), []Message{{Role: RoleUser, Content: "hello"}}, msgChatFailed, true},
		{"empty reply", llm.MockText("   "), []Message{{Role: RoleUser, Content: "hello"}}, msgChatFailed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{Lesson: testLesson(), History: tt.history, Message: "hello"}
			u := newTestTutor(tt.provider).Chat(t.Context(), in)
			if u.AssistantMessage != tt.message {
				t.Errorf("message = %q, want %q", u.AssistantMessage, tt.message)
			}
			if (u.Err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", u.Err, tt.wantErr)
			}
			if u.Mode != ModeChatting {
				t.Errorf("mode = %s", u.Mode)
			}
		})
	}
}

func TestEvaluate_Correct(t *testing.T) {
	mock := llm.MockText(`{"score":1.0,"is_correct":true,"feedback":"Correct!"}`)
	s := NewState()
	s.SetActive(testTask(KindExercise))
	s.Mode = ModeAwaitingAnswer
	s.BeginTurn("B", []Message{{Role: RoleUser, Content: "B"}})

	tu := newTestTutor(mock)
	u := tu.Run(t.Context(), s.Input(testLesson()))
	s.Apply(u)

	if s.EvaluationFeedback != "Correct!" {
		t.Errorf("feedback = %q", s.EvaluationFeedback)
	}
	if s.ActiveExercise != nil || s.ActiveAssessment != nil || s.Mode != ModeChatting {
		t.Errorf("task should be spent: %+v", s)
	}
	if s.ScoreUpdate == nil || *s.ScoreUpdate != 1.0 {
		t.Errorf("score = %v", s.ScoreUpdate)
	}
	if len(s.Responses) != 1 || s.Responses[0].Answer != "B" || s.Responses[0].Feedback != "Correct!" {
		t.Errorf("responses = %+v", s.Responses)
	}

	user := mock.LastRequest().Messages[0].Content
	for _, want := range []string{"Task type: Exercise", "Options:\n- (A) defer\n- (B) go", "Correct Answer ID: B", "Learner's answer:\nB"} {
		if !strings.Contains(user, want) {
			t.Errorf("evaluation prompt missing %q:\n%s", want, user)
		}
	}
}

func TestEvaluate_SpendsTaskOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.Provider
		message  string
	}{
		{"no provider", nil, msgEvalNoProvider},
		{"provider error", llm.NewMockProvider(llm.MockResponse{Err: errors.New("boom")}), msgEvaluationFailed},
		{"malformed", llm.MockText("great job!"), msgEvaluationFailed},
		{"missing feedback", llm.MockText(`{"score":0.5}`), msgEvaluationFailed},
		{"non-numeric score", llm.MockText(`{"score":"high","feedback":"ok"}`), msgEvaluationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, kind := range []Kind{KindExercise, KindAssessment} {
				s := NewState()
				s.SetActive(testTask(kind))
				u := newTestTutor(tt.provider).Evaluate(t.Context(), answerInput("B", testTask(kind)))
				s.Apply(u)

				if s.ActiveTask() != nil || s.Mode != ModeChatting {
					t.Errorf("%s: task should be spent, mode %s", kind, s.Mode)
				}
				if u.AssistantMessage != tt.message {
					t.Errorf("%s: message = %q", kind, u.AssistantMessage)
				}
				if s.EvaluationFeedback != "" || s.ScoreUpdate != nil {
					t.Errorf("%s: failed evaluation left feedback %q score %v", kind, s.EvaluationFeedback, s.ScoreUpdate)
				}
				if u.Err == nil || u.Response == nil || u.Response.Score != nil {
					t.Errorf("%s: err %v response %+v", kind, u.Err, u.Response)
				}
			}
		})
	}
}

func TestEvaluate_Score(t *testing.T) {
	tests := []struct {
		reply string
		want  float64
	}{
		{`{"score":0.5,"feedback":"Half right."}`, 0.5},
		{`{"score":"0.75","feedback":"Close."}`, 0.75},
		{`{"score":1.7,"feedback":"Great."}`, 1},
		{`{"score":-1,"feedback":"No."}`, 0},
	}
	for _, tt := range tests {
		u := newTestTutor(llm.MockText(tt.reply)).Evaluate(t.Context(), answerInput("go", testTask(KindExercise)))
		if u.Err != nil {
			t.Errorf("%s: %v", tt.reply, u.Err)
			continue
		}
		if *u.Score != tt.want {
			t.Errorf("%s: score = %v, want %v", tt.reply, *u.Score, tt.want)
		}
	}
}

func TestEvaluate_NoActiveTask(t *testing.T) {
	mock := llm.MockText(`{"score":1,"feedback":"x"}`)
	u := newTestTutor(mock).Evaluate(t.Context(), userInput("B"))
	if u.Mode != ModeChatting || u.Task != TaskClear || u.AssistantMessage != msgNoActiveTask {
		t.Errorf("update = %+v", u)
	}
	wantNodeError(t, u.Err, KindPrecondition)
	if mock.CallCount() != 0 {
		t.Error("provider should not be called")
	}
}

func TestEvaluate_EmptyAnswerKeepsTask(t *testing.T) {
	mock := llm.MockText(`{"score":1,"feedback":"x"}`)
	task := testTask(KindAssessment)
	s := NewState()
	s.SetActive(task)
	s.Mode = ModeAwaitingAnswer

	for _, answer := range []string{"", "   "} {
		u := newTestTutor(mock).Evaluate(t.Context(), answerInput(answer, task))
		if u.Mode != ModeAwaitingAnswer || u.Task != TaskKeep || u.AssistantMessage != msgNoAnswer {
			t.Errorf("%q: update = %+v", answer, u)
		}
		if !errors.Is(u.Err, ErrNoAnswer) {
			t.Errorf("%q: err = %v", answer, u.Err)
		}
		s.Apply(u)
	}
	if s.ActiveAssessment == nil || s.ActiveAssessment.ID != task.ID || s.Mode != ModeAwaitingAnswer {
		t.Errorf("task should stay active: %+v", s)
	}
	if s.EmptyAnswers != 2 {
		t.Errorf("empty answers = %d, want 2", s.EmptyAnswers)
	}
	if mock.CallCount() != 0 {
		t.Error("provider should not be called")
	}
}

func TestEvaluate_EmptyAnswerCap(t *testing.T) {
	tests := []struct {
		limit    int
		attempts int
		released bool
	}{
		{3, 2, false},
		{3, 3, true},
		{1, 1, true},
		{0, 10, false},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.MaxEmptyAnswers = tt.limit
		tu := New(nil, cfg, nil)

		s := NewState()
		s.SetActive(testTask(KindExercise))
		s.Mode = ModeAwaitingAnswer
		var last Update
		for range tt.attempts {
			s.BeginTurn("", nil)
			last = tu.Evaluate(t.Context(), s.Input(testLesson()))
			s.Apply(last)
		}

		if released := s.ActiveTask() == nil; released != tt.released {
			t.Errorf("limit %d after %d: released = %v", tt.limit, tt.attempts, released)
		}
		if tt.released {
			if s.Mode != ModeChatting || last.AssistantMessage != msgEmptyAnswerCap || s.EmptyAnswers != 0 {
				t.Errorf("limit %d: mode %s message %q count %d", tt.limit, s.Mode, last.AssistantMessage, s.EmptyAnswers)
			}
			wantNodeError(t, last.Err, KindPrecondition)
		}
	}
}

func TestEvaluate_AnswerResetsEmptyCount(t *testing.T) {
	s := NewState()
	s.SetActive(testTask(KindExercise))
	s.Apply(Update{Mode: ModeAwaitingAnswer, EmptyAnswer: true})
	s.Apply(newTestTutor(llm.MockText(`{"score":0,"feedback":"Not quite."}`)).Evaluate(t.Context(), answerInput("A", s.ActiveTask())))
	if s.EmptyAnswers != 0 {
		t.Errorf("empty answers = %d after a real answer", s.EmptyAnswers)
	}
}

func TestEvaluationPrompt_Variants(t *testing.T) {
	tests := []struct {
		name string
		task *Task
		want []string
	}{
		{
			name: "ordering",
			task: &Task{Kind: KindExercise, Type: "ordering", Instructions: "Order the steps.",
				Body: Ordering{Items: []string{"run", "compile"}, CorrectAnswer: "compile, run"}},
			want: []string{"Instructions/Question: Order the steps.", `Items to Order: ["run","compile"]`, "Correct Answer/Solution: compile, run"},
		},
		{
			name: "free text",
			task: &Task{Kind: KindAssessment, Type: "short_answer", Question: "What is a channel?",
				Body: FreeText{CorrectAnswer: "A typed conduit.", ExpectedFormat: "One sentence."}},
			want: []string{"Task type: Assessment Question", "Instructions/Question: What is a channel?", "Correct Answer/Solution: A typed conduit.\nExpected Format: One sentence."},
		},
		{
			name: "no reference",
			task: &Task{Kind: KindExercise, Type: "explain", Instructions: "Explain goroutines.", Body: FreeText{}},
			want: []string{"Correct answer details:\nN/A"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := llm.MockText(`{"score":1,"feedback":"ok"}`)
			newTestTutor(mock).Evaluate(t.Context(), answerInput("answer", tt.task))
			user := mock.LastRequest().Messages[0].Content
			for _, w := range tt.want {
				if !strings.Contains(user, w) {
					t.Errorf("prompt missing %q:\n%s", w, user)
				}
			}
		})
	}
}

// Every node outcome applied in any order keeps at most one task active.
func TestSingleActiveTask(t *testing.T) {
	replies := []string{
		`{"type":"multiple_choice","instructions":"a","options":[{"id":"A","text":"x"}]}`,
		`{"type":"short_answer","question_text":"b"}`,
		`{"score":1,"feedback":"ok"}`,
		`not json`,
	}
	s := NewState()
	tu := func(reply string) *Tutor { return newTestTutor(llm.MockText(reply)) }
	for i := range 40 {
		reply := replies[i%len(replies)]
		in := s.Input(testLesson())
		in.Message = "answer"
		var u Update
		switch i % 5 {
		case 0:
			u = tu(reply).GenerateExercise(t.Context(), in)
		case 1:
			u = tu(reply).GenerateAssessment(t.Context(), in)
		case 2:
			u = tu(reply).Evaluate(t.Context(), in)
		case 3:
			in.Message = ""
			u = tu(reply).Evaluate(t.Context(), in)
		default:
			u = tu(reply).Chat(t.Context(), userInput("hi"))
		}
		s.Apply(u)
		if s.ActiveExercise != nil && s.ActiveAssessment != nil {
			t.Fatalf("step %d: both task slots set", i)
		}
		if s.Mode == ModeAwaitingAnswer && s.ActiveTask() == nil {
			t.Fatalf("step %d: awaiting an answer with no task", i)
		}
	}
}
