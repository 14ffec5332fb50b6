package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dukerupert/habits/internal/auth"
	"github.com/dukerupert/habits/internal/database"
	"github.com/dukerupert/habits/internal/model"
	"github.com/dukerupert/habits/internal/reminder"
)

var msk = time.FixedZone("MSK", 3*60*60)

type testServer struct {
	srv     *Server
	handler http.Handler
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, auth.NewTokens("test-secret"), reminder.LogNotifier{Logger: logger}, msk, logger)
	return &testServer{srv: srv, handler: srv.Router()}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// signup registers and logs in a user, returning the access token.
func (ts *testServer) signup(t *testing.T, email string, chatID *string) string {
	t.Helper()
	body := map[string]any{"email": email, "password": "correct horse"}
	if chatID != nil {
		body["tg_chat_id"] = *chatID
	}
	if rec := ts.do(t, "POST", "/users/register", "", body); rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body)
	}
	rec := ts.do(t, "POST", "/users/login", "", map[string]string{"email": email, "password": "correct horse"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body)
	}
	return decode[auth.TokenPair](t, rec).Access
}

func strPtr(s string) *string { return &s }

func usefulBody() map[string]any {
	return map[string]any{
		"place":       "P",
		"action":      "A",
		"time":        "2025-03-30T15:30:00+03:00",
		"frequency":   "m h * * *",
		"reward":      "R",
		"time_needed": 90,
		"is_public":   true,
	}
}

func TestHealth(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decode[map[string]string](t, rec); got["status"] != "ok" {
		t.Errorf("status = %q, want ok", got["status"])
	}

	rec = ts.do(t, "GET", "/health/detailed", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("detailed status = %d, want 200", rec.Code)
	}
	detailed := decode[map[string]any](t, rec)
	if detailed["database"] != "ok" {
		t.Errorf("database = %v, want ok", detailed["database"])
	}
	if detailed["scheduled_jobs"] != float64(0) {
		t.Errorf("scheduled_jobs = %v, want 0", detailed["scheduled_jobs"])
	}
}

func TestFrequenciesAndWeekdays(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, "GET", "/frequencies", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	freqs := decode[[]map[string]any](t, rec)
	if len(freqs) == 0 || freqs[0]["template"] != "m h * * *" {
		t.Errorf("frequencies = %v, want daily first", freqs)
	}

	rec = ts.do(t, "GET", "/weekdays", "", nil)
	days := decode[[]model.Weekday](t, rec)
	if len(days) != 7 {
		t.Errorf("weekdays = %d, want 7", len(days))
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	ts := setupServer(t)

	for _, path := range []string{"/habits", "/users/me"} {
		if rec := ts.do(t, "GET", path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, rec.Code)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, "POST", "/users/register", "", map[string]string{"email": "nope", "password": "correct horse"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad email status = %d, want 400", rec.Code)
	}
	rec = ts.do(t, "POST", "/users/register", "", map[string]string{"email": "a@example.com", "password": "short"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short password status = %d, want 400", rec.Code)
	}

	ts.signup(t, "a@example.com", nil)
	rec = ts.do(t, "POST", "/users/register", "", map[string]string{"email": "A@example.com", "password": "correct horse"})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}
}

func TestLoginAndRefresh(t *testing.T) {
	ts := setupServer(t)
	ts.signup(t, "a@example.com", nil)

	rec := ts.do(t, "POST", "/users/login", "", map[string]string{"email": "a@example.com", "password": "wrong password"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", rec.Code)
	}

	rec = ts.do(t, "POST", "/users/login", "", map[string]string{"email": "a@example.com", "password": "correct horse"})
	pair := decode[auth.TokenPair](t, rec)

	rec = ts.do(t, "POST", "/users/token/refresh", "", map[string]string{"refresh": pair.Refresh})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body)
	}
	access := decode[map[string]string](t, rec)["access"]
	if rec := ts.do(t, "GET", "/users/me", access, nil); rec.Code != http.StatusOK {
		t.Errorf("me with refreshed token status = %d, want 200", rec.Code)
	}

	rec = ts.do(t, "POST", "/users/token/refresh", "", map[string]string{"refresh": pair.Access})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh with access token status = %d, want 401", rec.Code)
	}
}

func TestUpdateMe(t *testing.T) {
	ts := setupServer(t)
	token := ts.signup(t, "a@example.com", nil)

	rec := ts.do(t, "PATCH", "/users/me", token, map[string]any{"tg_chat_id": "777"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	user := decode[model.User](t, rec)
	if user.TgChatID == nil || *user.TgChatID != "777" {
		t.Errorf("tg_chat_id = %v, want 777", user.TgChatID)
	}

	rec = ts.do(t, "PATCH", "/users/me", token, map[string]any{"tg_chat_id": nil})
	user = decode[model.User](t, rec)
	if user.TgChatID != nil {
		t.Errorf("tg_chat_id = %v, want cleared", *user.TgChatID)
	}
}

func TestCreateHabitEndToEnd(t *testing.T) {
	ts := setupServer(t)
	token := ts.signup(t, "owner@example.com", strPtr("42"))

	rec := ts.do(t, "POST", "/habits", token, usefulBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	h := decode[model.Habit](t, rec)
	if h.Schedule != "30 15 * * *" {
		t.Errorf("schedule = %q, want %q", h.Schedule, "30 15 * * *")
	}
	if h.Frequency == nil || *h.Frequency != "m h * * *" {
		t.Errorf("frequency = %v, want template", h.Frequency)
	}
	if got := ts.srv.Runner().Active(); got != 1 {
		t.Errorf("active jobs = %d, want 1", got)
	}

	jobs, err := ts.srv.Runner().Jobs()
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	if jobs[0].HabitID != h.ID || jobs[0].CronExpr != "30 15 * * *" {
		t.Errorf("job = %+v, want habit %d at 30 15 * * *", jobs[0], h.ID)
	}
}

func TestCreateHabitWithoutChannelSkipsJob(t *testing.T) {
	ts := setupServer(t)
	token := ts.signup(t, "owner@example.com", nil)

	rec := ts.do(t, "POST", "/habits", token, usefulBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if h := decode[model.Habit](t, rec); h.Schedule != "30 15 * * *" {
		t.Errorf("schedule = %q, want it compiled regardless", h.Schedule)
	}
	if got := ts.srv.Runner().Active(); got != 0 {
		t.Errorf("active jobs = %d, want 0", got)
	}
}

func TestCreateHabitValidationErrors(t *testing.T) {
	ts := setupServer(t)
	token := ts.signup(t, "owner@example.com", nil)

	body := usefulBody()
	body["time_needed"] = 121
	rec := ts.do(t, "POST", "/habits", token, body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("time_needed status = %d, want 400", rec.Code)
	}
	if msg := decode[map[string]string](t, rec)["error"]; msg != "time_needed must be under 2 minutes (120 seconds)" {
		t.Errorf("error = %q", msg)
	}

	body = usefulBody()
	delete(body, "reward")
	body["related_habit"] = 404
	if rec := ts.do(t, "POST", "/habits", token, body); rec.Code != http.StatusNotFound {
		t.Errorf("missing related status = %d, want 404", rec.Code)
	}

	body = usefulBody()
	body["action"] = "  "
	if rec := ts.do(t, "POST", "/habits", token, body); rec.Code != http.StatusBadRequest {
		t.Errorf("blank action status = %d, want 400", rec.Code)
	}

	rec = ts.do(t, "GET", "/habits", token, nil)
	if page := decode[model.HabitPage](t, rec); page.Count != 0 {
		t.Errorf("count = %d, want nothing persisted", page.Count)
	}
}

func TestHabitOwnership(t *testing.T) {
	ts := setupServer(t)
	owner := ts.signup(t, "owner@example.com", nil)
	other := ts.signup(t, "other@example.com", nil)

	h := decode[model.Habit](t, ts.do(t, "POST", "/habits", owner, usefulBody()))
	path := "/habits/" + itoa(h.ID)

	if rec := ts.do(t, "GET", path, other, nil); rec.Code != http.StatusForbidden {
		t.Errorf("other GET status = %d, want 403", rec.Code)
	}
	if rec := ts.do(t, "DELETE", path, other, nil); rec.Code != http.StatusForbidden {
		t.Errorf("other DELETE status = %d, want 403", rec.Code)
	}
	if rec := ts.do(t, "GET", "/habits/999", owner, nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing GET status = %d, want 404", rec.Code)
	}
	if rec := ts.do(t, "GET", path, owner, nil); rec.Code != http.StatusOK {
		t.Errorf("owner GET status = %d, want 200", rec.Code)
	}
}

func TestPatchAndPutReschedule(t *testing.T) {
	ts := setupServer(t)
	token := ts.signup(t, "owner@example.com", strPtr("42"))

	h := decode[model.Habit](t, ts.do(t, "POST", "/habits", token, usefulBody()))
	path := "/habits/" + itoa(h.ID)

	rec := ts.do(t, "PATCH", path, token, map[string]any{"frequency": "m h * * w", "days_of_week": []int{5, 1}})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body)
	}
	patched := decode[model.Habit](t, rec)
	if patched.Schedule != "30 15 * * 1,5" {
		t.Errorf("schedule = %q, want %q", patched.Schedule, "30 15 * * 1,5")
	}

	body := usefulBody()
	body["time"] = "2025-03-30T08:05:00+03:00"
	rec = ts.do(t, "PUT", path, token, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body %s", rec.Code, rec.Body)
	}
	if put := decode[model.Habit](t, rec); put.Schedule != "5 8 * * *" {
		t.Errorf("schedule = %q, want %q", put.Schedule, "5 8 * * *")
	}

	jobs, _ := ts.srv.Runner().Jobs()
	if len(jobs) != 1 || jobs[0].CronExpr != "5 8 * * *" {
		t.Errorf("jobs = %+v, want one job at 5 8 * * *", jobs)
	}

	rec = ts.do(t, "PATCH", path, token, map[string]any{"colour": "red"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", rec.Code)
	}
	rec = ts.do(t, "PATCH", path, token, map[string]any{"end_time": "2025-03-30T10:00:00+03:00"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("end_time without multi-per-day status = %d, want 400", rec.Code)
	}
}

func TestDeleteHabitRemovesJob(t *testing.T) {
	ts := setupServer(t)
	token := ts.signup(t, "owner@example.com", strPtr("42"))

	h := decode[model.Habit](t, ts.do(t, "POST", "/habits", token, usefulBody()))
	rec := ts.do(t, "DELETE", "/habits/"+itoa(h.ID), token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := ts.srv.Runner().Active(); got != 0 {
		t.Errorf("active jobs = %d, want 0", got)
	}
	if rec := ts.do(t, "GET", "/habits/"+itoa(h.ID), token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", rec.Code)
	}
}

func TestListPaginationAndPublic(t *testing.T) {
	ts := setupServer(t)
	token := ts.signup(t, "owner@example.com", nil)

	for i := 0; i < 6; i++ {
		body := map[string]any{"place": "home", "action": "rest", "is_pleasant": true, "time_needed": 30, "is_public": i%2 == 0}
		if rec := ts.do(t, "POST", "/habits", token, body); rec.Code != http.StatusCreated {
			t.Fatalf("create %d status = %d, body %s", i, rec.Code, rec.Body)
		}
	}

	page := decode[model.HabitPage](t, ts.do(t, "GET", "/habits", token, nil))
	if page.Count != 6 || len(page.Results) != 5 || page.PageSize != 5 {
		t.Errorf("page = {count %d, results %d, size %d}, want {6 5 5}", page.Count, len(page.Results), page.PageSize)
	}
	page = decode[model.HabitPage](t, ts.do(t, "GET", "/habits?page=2", token, nil))
	if len(page.Results) != 1 {
		t.Errorf("page 2 results = %d, want 1", len(page.Results))
	}

	rec := ts.do(t, "GET", "/habits/public", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("public status = %d", rec.Code)
	}
	public := decode[[]map[string]any](t, rec)
	if len(public) != 3 {
		t.Fatalf("public = %d, want 3", len(public))
	}
	for _, p := range public {
		if len(p) != 3 {
			t.Errorf("public entry = %v, want only action, is_pleasant, time_needed", p)
		}
	}
}

func TestLoginRateLimited(t *testing.T) {
	ts := setupServer(t)

	var last int
	for i := 0; i < authRateLimit+1; i++ {
		last = ts.do(t, "POST", "/users/login", "", map[string]string{"email": "x@example.com", "password": "whatever1"}).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", last)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
