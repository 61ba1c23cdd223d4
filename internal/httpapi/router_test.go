package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/kinfolk/internal/ai"
	"github.com/suPer8Hu/kinfolk/internal/chat"
	"github.com/suPer8Hu/kinfolk/internal/genealogy"
	"github.com/suPer8Hu/kinfolk/internal/httpapi/handlers"
	"github.com/suPer8Hu/kinfolk/internal/httpapi/middleware"
	"github.com/suPer8Hu/kinfolk/internal/tools"
	"gorm.io/gorm"
)

type cannedBackend struct{}

func (cannedBackend) Send(context.Context, ai.Config, []ai.Message) ai.Reply {
	return ai.TextReply("Hello from the model.")
}

type fakeModels struct{}

func (fakeModels) Models(context.Context, ai.Config) ([]string, error) {
	return []string{"llama3.1:latest"}, nil
}

func (fakeModels) TestConnection(context.Context, ai.Config) (bool, string) {
	return true, "Connected to Ollama."
}

type countingPublisher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (p *countingPublisher) PublishJob(_ context.Context, jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.ids = append(p.ids, jobID)
	return nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	h      *handlers.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	graphRepo := genealogy.NewRepo(db)
	require.NoError(t, graphRepo.Migrate(context.Background()))
	chatRepo := chat.NewRepo(db)
	require.NoError(t, chatRepo.Migrate(context.Background()))

	graph := genealogy.NewService(graphRepo, zerolog.Nop())
	dispatcher := tools.NewDispatcher(graph, graph.Refresh, zerolog.Nop())
	profiles := map[string]ai.Config{"default": {Provider: ai.ProviderOllama, Model: "llama3.1:latest", APIKey: "k"}}
	orch := chat.NewOrchestrator(chatRepo, cannedBackend{}, dispatcher, profiles, zerolog.Nop())

	h := &handlers.Handler{
		Graph:      graph,
		Chat:       orch,
		Jobs:       chatRepo,
		Tools:      tools.NewRegistry(),
		Dispatcher: dispatcher,
		AI:         fakeModels{},
		Profiles:   []string{"default"},
		Log:        zerolog.Nop(),
	}
	return &testServer{router: NewRouter(h), h: h}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header ...string) (int, envelope) {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

type personJSON struct {
	ID           string  `json:"id"`
	FirstName    string  `json:"first_name"`
	MotherID     *string `json:"mother_id"`
	IsHomePerson bool    `json:"is_home_person"`
}

func TestPeopleLifecycle(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/people", map[string]any{"first_name": "Mae", "last_name": "Ward", "gender": "Female"})
	require.Equal(t, http.StatusOK, code, env.Message)
	mother := decode[personJSON](t, env.Data)

	code, env = s.do(t, http.MethodPost, "/people", map[string]any{"first_name": "Lou", "last_name": "Ward", "mother_id": mother.ID})
	require.Equal(t, http.StatusOK, code, env.Message)
	child := decode[personJSON](t, env.Data)
	require.NotNil(t, child.MotherID)
	assert.Equal(t, mother.ID, *child.MotherID)

	code, env = s.do(t, http.MethodPost, "/people/"+child.ID+"/home", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.True(t, decode[personJSON](t, env.Data).IsHomePerson)

	code, env = s.do(t, http.MethodGet, "/relations", nil)
	require.Equal(t, http.StatusOK, code)
	report := decode[struct {
		HomePersonID string `json:"home_person_id"`
		Ancestry     []struct {
			Relation string `json:"relation"`
		} `json:"ancestry"`
	}](t, env.Data)
	assert.Equal(t, child.ID, report.HomePersonID)
	require.Len(t, report.Ancestry, 2)
	assert.Equal(t, "Mother", report.Ancestry[1].Relation)

	code, env = s.do(t, http.MethodPatch, "/people/"+child.ID, map[string]any{"first_name": "Louis"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "Louis", decode[personJSON](t, env.Data).FirstName)

	code, _ = s.do(t, http.MethodDelete, "/people/"+mother.ID, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodGet, "/people/"+child.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, decode[personJSON](t, env.Data).MotherID)

	code, env = s.do(t, http.MethodGet, "/tree", nil)
	require.Equal(t, http.StatusOK, code)
	tree := decode[struct {
		People []personJSON `json:"people"`
	}](t, env.Data)
	assert.Len(t, tree.People, 1)
}

func TestMarriages(t *testing.T) {
	s := newTestServer(t)
	_, env := s.do(t, http.MethodPost, "/people", map[string]any{"first_name": "A", "last_name": "X"})
	a := decode[personJSON](t, env.Data)
	_, env = s.do(t, http.MethodPost, "/people", map[string]any{"first_name": "B", "last_name": "Y"})
	b := decode[personJSON](t, env.Data)

	code, env := s.do(t, http.MethodPost, "/marriages", map[string]any{"spouse1_id": a.ID, "spouse2_id": a.ID})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 40001, env.Code)

	code, env = s.do(t, http.MethodPost, "/marriages", map[string]any{"spouse1_id": a.ID, "spouse2_id": b.ID, "marriage_date": "1950-06-01"})
	require.Equal(t, http.StatusOK, code, env.Message)
	m := decode[struct {
		ID string `json:"id"`
	}](t, env.Data)

	code, env = s.do(t, http.MethodGet, "/marriages", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, decode[struct {
		Count int `json:"count"`
	}](t, env.Data).Count)

	code, _ = s.do(t, http.MethodDelete, "/marriages/"+m.ID, nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = s.do(t, http.MethodGet, "/marriages/"+m.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 40004, env.Code)
}

func TestErrorEnvelopes(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/people", `{"first_name":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 10001, env.Code)

	code, env = s.do(t, http.MethodPost, "/people", map[string]any{"first_name": "A", "last_name": "B", "gender": "Robot"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 40001, env.Code)
	assert.Equal(t, "invalid gender", env.Message)
	details := decode[map[string]string](t, env.Data)
	assert.Equal(t, "Robot", details["details"])

	code, env = s.do(t, http.MethodGet, "/people/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "person not found", env.Message)
	assert.NotEmpty(t, decode[map[string]string](t, env.Data)["hint"])

	code, env = s.do(t, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 40400, env.Code)

	code, env = s.do(t, http.MethodPut, "/people", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Equal(t, 40500, env.Code)
}

func TestTools(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/tools", nil)
	require.Equal(t, http.StatusOK, code)
	list := decode[struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}](t, env.Data)
	assert.Len(t, list.Tools, 4)

	code, env = s.do(t, http.MethodPost, "/tools/get_people", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "Found 0 people: ", decode[map[string]string](t, env.Data)["result"])

	code, env = s.do(t, http.MethodPost, "/tools/add_person", map[string]any{"first_name": "Zed"})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, strings.HasPrefix(decode[map[string]string](t, env.Data)["result"], "Error executing tool add_person: "))

	code, env = s.do(t, http.MethodPost, "/tools/drop_tables", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Unknown tool: drop_tables", env.Message)
}

type sessionJSON struct {
	SessionID string `json:"session_id"`
}

func TestChatSyncAndFeedback(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/chat/sessions", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	sid := decode[sessionJSON](t, env.Data).SessionID
	require.Len(t, sid, 26)

	code, env = s.do(t, http.MethodPost, "/chat/sessions", map[string]any{"profile": "nope"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodPost, "/chat/messages", map[string]any{"session_id": sid, "message": "   "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 40001, env.Code)

	code, env = s.do(t, http.MethodPost, "/chat/messages", map[string]any{"session_id": sid, "message": "Who is in my tree?"})
	require.Equal(t, http.StatusOK, code, env.Message)
	sent := decode[struct {
		Reply     string `json:"reply"`
		MessageID string `json:"message_id"`
	}](t, env.Data)
	assert.Equal(t, "Hello from the model.", sent.Reply)

	code, env = s.do(t, http.MethodGet, "/chat/sessions/"+sid+"/messages", nil)
	require.Equal(t, http.StatusOK, code)
	page := decode[struct {
		Messages []struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"messages"`
		NextBeforeID uint64 `json:"next_before_id"`
	}](t, env.Data)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "model", page.Messages[0].Role)
	assert.NotZero(t, page.NextBeforeID)

	code, env = s.do(t, http.MethodPost, "/chat/feedback", map[string]any{"session_id": sid, "message_id": sent.MessageID, "rating": 5})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodPost, "/chat/feedback", map[string]any{"session_id": sid, "message_id": sent.MessageID, "rating": -1, "feedback_text": "wrong"})
	require.Equal(t, http.StatusOK, code, env.Message)
	fb := decode[map[string]any](t, env.Data)
	assert.Equal(t, "Who is in my tree?", fb["user_prompt"])

	code, env = s.do(t, http.MethodGet, "/chat/feedback", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[struct {
		Feedback []any `json:"feedback"`
	}](t, env.Data).Feedback, 1)

	code, _ = s.do(t, http.MethodGet, "/chat/sessions/01HZZZZZZZZZZZZZZZZZZZZZZZ/messages", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestChatAsync(t *testing.T) {
	s := newTestServer(t)
	_, env := s.do(t, http.MethodPost, "/chat/sessions", nil)
	sid := decode[sessionJSON](t, env.Data).SessionID
	body := map[string]any{"session_id": sid, "message": "add my grandmother"}

	code, env := s.do(t, http.MethodPost, "/chat/messages/async", body)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, 50301, env.Code)

	pub := &countingPublisher{}
	s.h.Publisher = pub

	code, env = s.do(t, http.MethodPost, "/chat/messages/async", body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, code, env.Message)
	first := decode[map[string]any](t, env.Data)

	code, env = s.do(t, http.MethodPost, "/chat/messages/async", body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, code, env.Message)
	second := decode[map[string]any](t, env.Data)

	assert.Equal(t, first["job_id"], second["job_id"])
	assert.Equal(t, first["message_id"], second["message_id"])
	assert.Equal(t, false, second["created"])
	assert.Len(t, pub.ids, 1)

	// one queued turn per session
	code, env = s.do(t, http.MethodPost, "/chat/messages/async", body, "Idempotency-Key", "k-2")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, 40009, env.Code)
	code, env = s.do(t, http.MethodPost, "/chat/messages", body)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, 40009, env.Code)
	assert.Len(t, pub.ids, 1)

	code, env = s.do(t, http.MethodGet, "/chat/jobs/"+first["job_id"].(string), nil)
	require.Equal(t, http.StatusOK, code)
	job := decode[struct {
		Job struct {
			Status string `json:"status"`
		} `json:"job"`
	}](t, env.Data)
	assert.Equal(t, "queued", job.Job.Status)

	code, env = s.do(t, http.MethodPost, "/chat/messages/async", body, "Idempotency-Key", strings.Repeat("x", 129))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 10003, env.Code)

	code, env = s.do(t, http.MethodGet, "/chat/jobs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 40402, env.Code)
}

func TestChatAsync_PublishFailureFreesSession(t *testing.T) {
	s := newTestServer(t)
	s.h.Publisher = &countingPublisher{err: errors.New("broker gone")}
	_, env := s.do(t, http.MethodPost, "/chat/sessions", nil)
	sid := decode[sessionJSON](t, env.Data).SessionID
	body := map[string]any{"session_id": sid, "message": "hello"}

	code, env := s.do(t, http.MethodPost, "/chat/messages/async", body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, 50002, env.Code)

	code, env = s.do(t, http.MethodPost, "/chat/messages", body)
	require.Equal(t, http.StatusOK, code, env.Message)
}

func TestAIProfiles(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodGet, "/ai/profiles", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(env.Data), `"k"`)
	assert.Contains(t, string(env.Data), `"api_key":"***"`)

	code, env = s.do(t, http.MethodGet, "/ai/profiles/default/models", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"llama3.1:latest"}, decode[struct {
		Models []string `json:"models"`
	}](t, env.Data).Models)

	code, env = s.do(t, http.MethodPost, "/ai/profiles/default/test", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, decode[map[string]any](t, env.Data)["ok"])

	code, _ = s.do(t, http.MethodGet, "/ai/profiles/ghost/models", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRequestIDAndMetrics(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(middleware.RequestIDHeader))

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "kinfolk_http_requests_total")
}
