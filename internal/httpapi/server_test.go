package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/abhisek/techtree/internal/interaction"
	"github.com/abhisek/techtree/internal/store"
	"github.com/abhisek/techtree/internal/tutor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type runnerFunc func(ctx context.Context, in tutor.Input) tutor.Update

func (f runnerFunc) Run(ctx context.Context, in tutor.Input) tutor.Update { return f(ctx, in) }

func echoRunner() runnerFunc {
	return func(_ context.Context, in tutor.Input) tutor.Update {
		return tutor.Update{Node: "chat", Mode: tutor.ModeChatting, AssistantMessage: "echo: " + in.Message}
	}
}

type testAPI struct {
	handler http.Handler
	store   *store.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.LessonRepo().Upsert(t.Context(), &store.Lesson{
		ID: "go-101", Topic: "Go", Title: "Goroutines", ModuleTitle: "Concurrency",
		Exposition: "A goroutine is a lightweight thread managed by the Go runtime.",
	}))
	require.NoError(t, st.LessonRepo().Upsert(t.Context(), &store.Lesson{ID: "go-102", Title: "Channels"}))

	svc := interaction.NewService(echoRunner(), interaction.ReposFrom(st), 10, nil)
	queue := interaction.NewQueue(svc, 4, nil)
	t.Cleanup(queue.Close)

	return &testAPI{
		handler: NewHandler(nil, Deps{Lessons: st.LessonRepo(), Sessions: svc, Turns: queue}),
		store:   st,
	}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

const sessionPath = "/api/lessons/go-101/learners/ada"

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
}

func TestLessons(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodGet, "/api/lessons", "")
	require.Equal(t, http.StatusOK, rr.Code)
	lessons := decode[[]store.Lesson](t, rr)
	require.Len(t, lessons, 2)
	assert.Equal(t, "go-101", lessons[0].ID)

	rr = api.do(t, http.MethodGet, "/api/lessons/go-101", "")
	require.Equal(t, http.StatusOK, rr.Code)
	lesson := decode[store.Lesson](t, rr)
	assert.Equal(t, "Goroutines", lesson.Title)
	assert.Equal(t, "Concurrency", lesson.ModuleTitle)

	rr = api.do(t, http.MethodGet, "/api/lessons/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTurn_RoundTrip(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodPost, sessionPath+"/turns", `{"message":"hi","submission_type":"chat"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	reply := decode[interaction.Reply](t, rr)
	assert.Equal(t, "echo: hi", reply.Message)
	assert.Equal(t, tutor.ModeChatting, reply.Mode)
	assert.Nil(t, reply.ActiveTask)

	rr = api.do(t, http.MethodPost, sessionPath+"/turns", `{"message":"again"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(t, http.MethodGet, sessionPath+"/history", "")
	require.Equal(t, http.StatusOK, rr.Code)
	entries := decode[[]store.HistoryEntry](t, rr)
	require.Len(t, entries, 4)
	assert.Equal(t, "hi", entries[0].Content)
	assert.Equal(t, "user", entries[0].Role)
	assert.Equal(t, "echo: again", entries[3].Content)

	rr = api.do(t, http.MethodGet, sessionPath+"/history?limit=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]store.HistoryEntry](t, rr), 1)

	rr = api.do(t, http.MethodGet, sessionPath+"/state", "")
	require.Equal(t, http.StatusOK, rr.Code)
	state := decode[map[string]any](t, rr)
	assert.Equal(t, "chatting", state["interaction_mode"])
}

func TestTurn_BadRequests(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"invalid json", sessionPath + "/turns", `{"message":`, http.StatusBadRequest},
		{"unknown field", sessionPath + "/turns", `{"msg":"hi"}`, http.StatusBadRequest},
		{"trailing content", sessionPath + "/turns", `{"message":"hi"}{"message":"again"}`, http.StatusBadRequest},
		{"bad submission", sessionPath + "/turns", `{"message":"hi","submission_type":"essay"}`, http.StatusBadRequest},
		{"unknown lesson", "/api/lessons/nope/learners/ada/turns", `{"message":"hi"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, rr)["error"])
		})
	}
}

func TestHistory_BadLimit(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, http.MethodGet, sessionPath+"/history?limit=-2", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestState_UnknownLesson(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, http.MethodGet, "/api/lessons/nope/learners/ada/state", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReset(t *testing.T) {
	api := newTestAPI(t)

	require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, sessionPath+"/turns", `{"message":"hi"}`).Code)

	rr := api.do(t, http.MethodDelete, sessionPath, "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	entries, err := api.store.HistoryRepo().Recent(t.Context(), "ada", "go-101", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type fakeTurns struct {
	err error
}

func (f fakeTurns) Submit(context.Context, interaction.Turn) (*interaction.Reply, error) {
	return nil, f.err
}

func (f fakeTurns) Enqueue(context.Context, interaction.Turn, func(interaction.Result)) error {
	return f.err
}

func TestTurn_ErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{interaction.ErrSessionQueueFull, http.StatusTooManyRequests},
		{interaction.ErrQueueClosed, http.StatusServiceUnavailable},
		{interaction.ErrLessonNotFound, http.StatusNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := NewHandler(nil, Deps{Turns: fakeTurns{err: tt.err}})
			req := httptest.NewRequest(http.MethodPost, sessionPath+"/turns", strings.NewReader(`{"message":"hi"}`))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusInternalServerError {
				assert.NotContains(t, rr.Body.String(), "disk on fire")
			}
		})
	}
}

func TestWebSocket(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + sessionPath + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "hello"}))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "error", frame["type"])

	for _, msg := range []string{"one", "two"} {
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "turn", "message": msg, "submission_type": "chat"}))
	}
	for _, want := range []string{"echo: one", "echo: two"} {
		frame = nil
		require.NoError(t, conn.ReadJSON(&frame))
		assert.Equal(t, "reply", frame["type"])
		assert.Equal(t, want, frame["message"])
		assert.Equal(t, "chatting", frame["mode"])
	}

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
}

func TestWebSocket_UnknownLesson(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/lessons/nope/learners/ada/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// doneTurns answers every queued turn with err.
type doneTurns struct {
	fakeTurns
}

func (f doneTurns) Enqueue(_ context.Context, _ interaction.Turn, done func(interaction.Result)) error {
	done(interaction.Result{Err: f.err})
	return nil
}

func TestWebSocket_HidesInternalErrors(t *testing.T) {
	api := newTestAPI(t)
	tests := []struct {
		name  string
		turns Turns
		want  string
	}{
		{"failed turn", doneTurns{fakeTurns{err: errors.New("disk on fire")}}, http.StatusText(http.StatusInternalServerError)},
		{"enqueue refused", fakeTurns{err: errors.New("disk on fire")}, http.StatusText(http.StatusInternalServerError)},
		{"queue full", fakeTurns{err: interaction.ErrSessionQueueFull}, interaction.ErrSessionQueueFull.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(NewHandler(nil, Deps{Lessons: api.store.LessonRepo(), Turns: tt.turns}))
			defer srv.Close()

			url := "ws" + strings.TrimPrefix(srv.URL, "http") + sessionPath + "/ws"
			conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
			require.NoError(t, err)
			defer resp.Body.Close()
			defer conn.Close()
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

			require.NoError(t, conn.WriteJSON(map[string]string{"type": "turn", "message": "hi"}))
			var frame map[string]any
			require.NoError(t, conn.ReadJSON(&frame))
			assert.Equal(t, "error", frame["type"])
			assert.Equal(t, tt.want, frame["error"])
			assert.NotContains(t, frame["error"], "disk on fire")

			require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
		})
	}
}

func TestIsWebSocketOriginAllowed(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://example.com", true},
		{"http://EXAMPLE.com", true},
		{"http://evil.test", false},
		{"::not a url", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://example.com/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, isWebSocketOriginAllowed(r), "origin %q", tt.origin)
	}
}
