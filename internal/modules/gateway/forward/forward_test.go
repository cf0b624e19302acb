package forward

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rationable/api/internal/middleware"
	"github.com/rationable/api/internal/modules/content/settings"
	"github.com/rationable/api/internal/modules/geo"
	"github.com/rationable/api/internal/modules/processing/enrich"
	"github.com/rationable/api/internal/modules/processing/llm"
	"github.com/rationable/api/internal/pkg/jwt"
)

type echoLLM struct {
	model string
	last  llm.Request
	err   error
}

func (e *echoLLM) Generate(_ context.Context, req llm.Request) (string, error) {
	e.last = req
	if e.err != nil {
		return "", e.err
	}
	return "reply to " + req.Messages[len(req.Messages)-1].Content, nil
}

func (e *echoLLM) Model() string { return e.model }

type fakeRouter struct {
	gen       *echoLLM
	realtime  bool
	lastModel string
}

func (r *fakeRouter) For(task llm.Task) (llm.Generator, error) {
	if task == llm.TaskRealtime && !r.realtime {
		return nil, llm.ErrNoProvider
	}
	return r.gen, nil
}

func (r *fakeRouter) ForModel(task llm.Task, model string) (llm.Generator, error) {
	r.lastModel = model
	return r.For(task)
}

type fakeQuota struct {
	err   error
	calls int
}

func (q *fakeQuota) ConsumeRealtime(context.Context, string) (settings.Usage, error) {
	q.calls++
	return settings.Usage{Used: int64(q.calls), Limit: 5, Remaining: int64(5 - q.calls)}, q.err
}

type fakeLocator struct{}

func (fakeLocator) Lookup(context.Context, string) (*geo.Location, error) {
	return &geo.Location{City: "Lisbon", Country: "Portugal"}, nil
}

type fixture struct {
	engine *gin.Engine
	router *fakeRouter
	quota  *fakeQuota
	token  string
}

func newFixture(t *testing.T, clients *enrich.Clients) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	v := jwt.NewVerifier("secret")
	token, err := v.Sign("u1", "u1@example.com", time.Hour)
	require.NoError(t, err)

	f := &fixture{router: &fakeRouter{gen: &echoLLM{model: "gpt-test"}, realtime: true}, quota: &fakeQuota{}, token: token}
	f.engine = gin.New()
	NewHandler(f.router, clients, f.quota, fakeLocator{}, nil).
		RegisterRoutes(f.engine.Group("/functions/v1"), middleware.Auth(v))
	return f
}

func (f *fixture) post(path, body string, auth bool) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/functions/v1"+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	f.engine.ServeHTTP(w, req)
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestOpenAIForward(t *testing.T) {
	f := newFixture(t, nil)

	w := f.post("/openai", `{"model":"gpt-4o","temperature":0.2,"messages":[
		{"role":"system","content":"Be brief."},
		{"role":"user","content":"Hi"},
		{"role":"assistant","content":"Hello"},
		{"role":"user","content":"Pick one"}]}`, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"content":"reply to Pick one","model":"gpt-test"}`, w.Body.String())

	last := f.router.gen.last
	assert.Equal(t, "Be brief.", last.System)
	require.Len(t, last.Messages, 3)
	assert.Equal(t, llm.RoleAssistant, last.Messages[1].Role)
	require.NotNil(t, last.Temperature)
	assert.Equal(t, 0.2, *last.Temperature)
	assert.Equal(t, "gpt-4o", f.router.lastModel)

	w = f.post("/openai", `{"messages":[{"role":"system","content":"only system"}]}`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "messages are required", errorOf(t, w))

	f.router.gen.err = &enrich.UpstreamError{Service: "openai", Status: 429}
	w = f.post("/openai", `{"messages":[{"role":"user","content":"x"}]}`, false)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, errorOf(t, w), "429")
}

func TestUnsplashForward(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"results":[{"urls":{"regular":"https://img/1","small":"https://img/1s"},"user":{"name":"Ana"}}]}`)
	}))
	defer srv.Close()
	f := newFixture(t, &enrich.Clients{Unsplash: enrich.NewUnsplash(srv.URL, "key")})

	w := f.post("/unsplash", `{"query":"mountain"}`, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"url":"https://img/1"`)

	w = f.post("/unsplash", `{"query":"  "}`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "query is required", errorOf(t, w))

	w = f.post("/unsplash", `{"query":"fail"}`, false)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestUnconfiguredForwards(t *testing.T) {
	f := newFixture(t, nil)

	w := f.post("/google-search", `{"query":"bikes"}`, false)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "google-search is not configured", errorOf(t, w))

	w = f.post("/google-search", `{"query":"bikes","type":"video"}`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.post("/huggingface-image", `{"prompt":""}`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.post("/huggingface-image", `{"prompt":"a cat"}`, false)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPreflight(t *testing.T) {
	f := newFixture(t, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/functions/v1/openai", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRealtimeSearch(t *testing.T) {
	f := newFixture(t, nil)

	w := f.post("/realtime-search", `{"query":"weather"}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.post("/realtime-search", `{"query":"best cafes"}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, f.router.gen.last.Messages[0].Content, "Lisbon, Portugal")
	assert.Contains(t, w.Body.String(), `"location":"Lisbon, Portugal"`)
	assert.Contains(t, w.Body.String(), `"remaining":4`)

	f.quota.err = settings.ErrDailyLimit
	w = f.post("/realtime-search", `{"query":"best cafes"}`, true)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	f.quota.err = settings.ErrRealtimeDisabled
	w = f.post("/realtime-search", `{"query":"best cafes"}`, true)
	assert.Equal(t, http.StatusForbidden, w.Code)

	f.router.realtime = false
	calls := f.quota.calls
	w = f.post("/realtime-search", `{"query":"best cafes"}`, true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, calls, f.quota.calls)
}
