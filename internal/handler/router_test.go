package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/todoman/internal/metrics"
	"github.com/hitoshi/todoman/internal/middleware"
	"github.com/hitoshi/todoman/internal/model"
)

type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	if id == "valid-session" {
		return &model.Session{ID: id, UserID: 7, ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	return nil, nil
}

type mockDBPinger struct {
	pingErr error
}

func (m *mockDBPinger) PingContext(ctx context.Context) error {
	return m.pingErr
}

func newTestRouter(t *testing.T, deps *RouterDeps) http.Handler {
	t.Helper()

	if deps.SessionFinder == nil {
		deps.SessionFinder = &mockSessionFinder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if deps.RateLimiter == nil {
		deps.RateLimiter = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
		t.Cleanup(deps.RateLimiter.Stop)
	}
	if deps.TaskManager == nil {
		deps.TaskManager = &mockTaskManager{}
	}
	if deps.UserManager == nil {
		deps.UserManager = &mockUserManager{}
	}
	if deps.AuthService == nil {
		deps.AuthService = &mockAuthService{}
	}
	if deps.DB == nil {
		deps.DB = &mockDBPinger{}
	}
	return NewRouter(deps)
}

// withSession は有効なセッションCookieを付与する。
func withSession(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	return req
}

// withCSRF はCSRFのCookieとヘッダーの組を付与する。
func withCSRF(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-csrf"})
	req.Header.Set("X-CSRF-Token", "test-csrf")
	return req
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %q, want status ok", w.Body.String())
	}
}

func TestRouter_HealthDatabaseDown(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		DB: &mockDBPinger{pingErr: errors.New("connection refused")},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestRouter_RootRedirectsToTaskList(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/task/" {
		t.Errorf("Location = %q, want /task/", loc)
	}
}

func TestRouter_TaskPageRedirectsAnonymousToLogin(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/task/", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/user/login" {
		t.Errorf("Location = %q, want /user/login", loc)
	}
}

func TestRouter_TaskPageWithSession(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := withSession(httptest.NewRequest(http.MethodGet, "/task/", nil))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "data-list-id") {
		t.Error("body should contain the task list markup")
	}
}

func TestRouter_TaskSaveRequiresCSRF(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	form := url.Values{"name": {"Buy milk"}}
	req := httptest.NewRequest(http.MethodPost, "/task/save", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, withSession(req))

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 without CSRF token", w.Code)
	}
}

func TestRouter_TaskSaveRequiresSession(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	form := url.Values{"name": {"Buy milk"}}
	req := httptest.NewRequest(http.MethodPost, "/task/save", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, withCSRF(req))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without session", w.Code)
	}

	env := decodeEnvelope(t, w)
	if env.Status != 0 {
		t.Errorf("envelope status = %d, want 0", env.Status)
	}
	if env.Error == nil {
		t.Error("envelope error should be set")
	}
}

func TestRouter_TaskSaveAuthenticated(t *testing.T) {
	manager := &mockTaskManager{}
	router := newTestRouter(t, &RouterDeps{TaskManager: manager})

	form := url.Values{"name": {"Buy milk"}}
	req := httptest.NewRequest(http.MethodPost, "/task/save", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, withCSRF(withSession(req)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if len(manager.insertedTasks) != 1 {
		t.Errorf("inserted tasks = %d, want 1", len(manager.insertedTasks))
	}
}

func TestRouter_LoginPageIsPublic(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/user/login", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<form") {
		t.Error("body should contain the login form")
	}
}

func TestRouter_MetricsRoute(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	collector.RecordTaskCreated()

	router := newTestRouter(t, &RouterDeps{MetricsGatherer: registry})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "todoman_tasks_created_total") {
		t.Error("metrics output should contain todoman counters")
	}
}

func TestRouter_CSRFTokenEndpoint(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/csrf-token", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "token") {
		t.Errorf("body = %q, want token payload", w.Body.String())
	}
}
