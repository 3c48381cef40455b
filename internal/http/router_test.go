package httpx

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/live"
	"github.com/Richiestixx/SiteRightApp/internal/repository/memory"
	"github.com/Richiestixx/SiteRightApp/internal/service/entry"
	"github.com/Richiestixx/SiteRightApp/internal/service/project"
	"github.com/Richiestixx/SiteRightApp/internal/service/session"
	"github.com/Richiestixx/SiteRightApp/internal/service/subscription"
	"github.com/Richiestixx/SiteRightApp/pkg/config"
	"github.com/Richiestixx/SiteRightApp/pkg/logger"
)

func newTestRouter(t *testing.T) (*Router, *memory.Repository) {
	t.Helper()
	repo := memory.New()
	log := logger.Discard()
	cfg := config.APIConfig{AppID: "app", JWTSecret: "secret", SessionTTL: time.Hour}

	hub := live.NewHub()
	feed := live.NewLocalFeed()
	subs := subscription.New(repo, repo, hub, feed, log)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = subs.Run(ctx) }()

	router := NewRouter(log,
		session.New(repo, log, cfg),
		project.New(repo, subs, log),
		entry.New(repo, subs, log),
		subs,
		NewMemoryRateLimiter(),
		50*time.Millisecond,
		nil,
	)
	t.Cleanup(func() {
		cancel()
		router.Close()
		hub.Close()
	})
	return router, repo
}

func do(t *testing.T, h http.Handler, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func startSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/session", "", map[string]string{})
	if rec.Code != http.StatusOK {
		t.Fatalf("session: %d %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Token string      `json:"token"`
		User  domain.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if payload.Token == "" || !payload.User.Anonymous {
		t.Fatalf("unexpected session payload %s", rec.Body.String())
	}
	return payload.Token
}

func createProject(t *testing.T, h http.Handler, token, name string) domain.Project {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/projects", token, map[string]string{"name": name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project: %d %s", rec.Code, rec.Body.String())
	}
	var proj domain.Project
	if err := json.Unmarshal(rec.Body.Bytes(), &proj); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	return proj
}

func validDraft() domain.LogDraft {
	return domain.LogDraft{
		Notes: "Cabinet door misaligned",
		Media: []domain.MediaRef{{URI: "file:///tmp/a.jpg", Type: domain.MediaPhoto}},
	}
}

func TestProjectsRequireAuth(t *testing.T) {
	router, _ := newTestRouter(t)
	if rec := do(t, router, http.MethodGet, "/projects", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/projects", "not-a-token", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}

func TestSessionResumesIdentity(t *testing.T) {
	router, _ := newTestRouter(t)
	token := startSession(t, router)
	first := do(t, router, http.MethodGet, "/projects", token, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("list: %d", first.Code)
	}
	createProject(t, router, token, "Kitchen")

	rec := do(t, router, http.MethodPost, "/session", "", map[string]string{"token": token})
	var payload struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &payload)
	list := do(t, router, http.MethodGet, "/projects", payload.Token, nil)
	var projects []domain.Project
	_ = json.Unmarshal(list.Body.Bytes(), &projects)
	if len(projects) != 1 || projects[0].Name != "Kitchen" {
		t.Fatalf("resumed session should see the same projects, got %s", list.Body.String())
	}
}

func TestProjectCreateValidation(t *testing.T) {
	router, _ := newTestRouter(t)
	token := startSession(t, router)
	if rec := do(t, router, http.MethodPost, "/projects", token, map[string]string{"name": "   "}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodDelete, "/projects", token, nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestProjectsAreScopedToUser(t *testing.T) {
	router, _ := newTestRouter(t)
	owner := startSession(t, router)
	other := startSession(t, router)
	proj := createProject(t, router, owner, "Bathroom")

	if rec := do(t, router, http.MethodGet, "/projects/"+proj.ID, other, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign project, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/projects/"+proj.ID+"/logs", other, validDraft()); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 creating into foreign project, got %d", rec.Code)
	}
}

func TestCreateLogIdempotentReplay(t *testing.T) {
	router, repo := newTestRouter(t)
	token := startSession(t, router)
	proj := createProject(t, router, token, "Hallway")
	path := "/projects/" + proj.ID + "/logs"

	first := do(t, router, http.MethodPost, path, token, validDraft(), "Idempotency-Key", "k-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", first.Code, first.Body.String())
	}
	writes := repo.WriteCount()
	second := do(t, router, http.MethodPost, path, token, validDraft(), "Idempotency-Key", "k-1")
	if second.Code != http.StatusOK {
		t.Fatalf("replay: %d %s", second.Code, second.Body.String())
	}
	var a, b domain.LogEntry
	_ = json.Unmarshal(first.Body.Bytes(), &a)
	_ = json.Unmarshal(second.Body.Bytes(), &b)
	if a.ID == "" || a.ID != b.ID {
		t.Fatalf("replay returned a different entry: %s vs %s", a.ID, b.ID)
	}
	if repo.WriteCount() != writes {
		t.Fatalf("replay must not write")
	}
	list := do(t, router, http.MethodGet, path, token, nil)
	var entries []domain.LogEntry
	_ = json.Unmarshal(list.Body.Bytes(), &entries)
	if len(entries) != 1 || entries[0].Status != domain.StatusToDo || entries[0].Priority != domain.PriorityMedium {
		t.Fatalf("unexpected entries %s", list.Body.String())
	}
}

func TestCreateLogValidationWritesNothing(t *testing.T) {
	router, repo := newTestRouter(t)
	token := startSession(t, router)
	proj := createProject(t, router, token, "Garage")
	writes := repo.WriteCount()

	noMedia := domain.LogDraft{Notes: "crack"}
	if rec := do(t, router, http.MethodPost, "/projects/"+proj.ID+"/logs", token, noMedia); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if repo.WriteCount() != writes {
		t.Fatalf("validation failure wrote to the store")
	}
}

func TestCompleteAndAppendNotes(t *testing.T) {
	router, _ := newTestRouter(t)
	token := startSession(t, router)
	proj := createProject(t, router, token, "Lounge")
	rec := do(t, router, http.MethodPost, "/projects/"+proj.ID+"/logs", token, validDraft())
	var created domain.LogEntry
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	base := "/projects/" + proj.ID + "/logs/" + created.ID

	notes := do(t, router, http.MethodPost, base+"/notes", token, map[string]string{"text": " extra"})
	if notes.Code != http.StatusOK {
		t.Fatalf("append: %d %s", notes.Code, notes.Body.String())
	}
	stale := created.Version
	conflict := do(t, router, http.MethodPost, base+"/complete", token, map[string]any{"expectedVersion": stale})
	if conflict.Code != http.StatusConflict {
		t.Fatalf("expected 409 for stale version, got %d", conflict.Code)
	}
	done := do(t, router, http.MethodPost, base+"/complete", token, map[string]any{"notes": "fixed"})
	if done.Code != http.StatusOK {
		t.Fatalf("complete: %d %s", done.Code, done.Body.String())
	}
	var completed domain.LogEntry
	_ = json.Unmarshal(done.Body.Bytes(), &completed)
	if completed.Status != domain.StatusCompleted || completed.CompletionNotes != "fixed" || completed.CompletedAt == nil {
		t.Fatalf("unexpected completed entry %+v", completed)
	}
	if !strings.HasSuffix(completed.Notes, " extra") {
		t.Fatalf("appended notes lost: %q", completed.Notes)
	}
	if rec := do(t, router, http.MethodPost, base+"/notes", token, map[string]string{"text": ""}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty append, got %d", rec.Code)
	}
}

func TestEntryWritesCountedByOutcome(t *testing.T) {
	router, _ := newTestRouter(t)
	token := startSession(t, router)
	proj := createProject(t, router, token, "Studio")
	count := func(operation, outcome string) float64 {
		return testutil.ToFloat64(router.entryWrites.WithLabelValues(operation, outcome))
	}
	created, replayed, invalid := count(entryOpCreate, "ok"), count(entryOpCreate, "replayed"), count(entryOpCreate, "invalid")
	completed, missing := count(entryOpComplete, "ok"), count(entryOpComplete, "not_found")

	logs := "/projects/" + proj.ID + "/logs"
	first := do(t, router, http.MethodPost, logs, token, validDraft(), "Idempotency-Key", "studio-1")
	do(t, router, http.MethodPost, logs, token, validDraft(), "Idempotency-Key", "studio-1")
	do(t, router, http.MethodPost, logs, token, domain.LogDraft{Notes: "no media"})
	var entry domain.LogEntry
	_ = json.Unmarshal(first.Body.Bytes(), &entry)
	do(t, router, http.MethodPost, logs+"/"+entry.ID+"/complete", token, map[string]string{})
	do(t, router, http.MethodPost, logs+"/missing/complete", token, map[string]string{})

	if got := count(entryOpCreate, "ok") - created; got != 1 {
		t.Fatalf("expected 1 created write, got %v", got)
	}
	if got := count(entryOpCreate, "replayed") - replayed; got != 1 {
		t.Fatalf("expected 1 replayed write, got %v", got)
	}
	if got := count(entryOpCreate, "invalid") - invalid; got != 1 {
		t.Fatalf("expected 1 invalid write, got %v", got)
	}
	if got := count(entryOpComplete, "ok") - completed; got != 1 {
		t.Fatalf("expected 1 completion, got %v", got)
	}
	if got := count(entryOpComplete, "not_found") - missing; got != 1 {
		t.Fatalf("expected 1 missing completion, got %v", got)
	}
}

func TestReportMarkup(t *testing.T) {
	router, _ := newTestRouter(t)
	token := startSession(t, router)
	proj := createProject(t, router, token, "Main Street")
	do(t, router, http.MethodPost, "/projects/"+proj.ID+"/logs", token, validDraft())

	rec := do(t, router, http.MethodGet, "/projects/"+proj.ID+"/report", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Main Street") || !strings.Contains(body, "Cabinet door misaligned") {
		t.Fatalf("report missing content")
	}
}

func TestSessionRateLimited(t *testing.T) {
	router, _ := newTestRouter(t)
	var last *httptest.ResponseRecorder
	for i := 0; i <= rateLimitSession; i++ {
		last = do(t, router, http.MethodPost, "/session", "", map[string]string{})
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", last.Code)
	}
	if last.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected exhausted rate headers, got %v", last.Header())
	}
}

func sessionFrom(t *testing.T, h http.Handler, remoteAddr, forwardedFor string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader("{}"))
	req.RemoteAddr = remoteAddr
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestSessionLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	router, _ := newTestRouter(t)
	limited := 0
	for i := 0; i < 3*rateLimitSession; i++ {
		if sessionFrom(t, router, "203.0.113.7:5123", fmt.Sprintf("10.0.0.%d", i)) == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 2*rateLimitSession {
		t.Fatalf("expected %d limited requests from one socket, got %d", 2*rateLimitSession, limited)
	}
}

func TestSessionLimitHonoursTrustedProxy(t *testing.T) {
	router, _ := newTestRouter(t)
	if err := router.TrustProxies([]string{"192.0.2.0/24"}); err != nil {
		t.Fatalf("trust proxies: %v", err)
	}
	for i := 0; i < rateLimitSession; i++ {
		if code := sessionFrom(t, router, "192.0.2.10:443", "198.51.100.1, 192.0.2.11"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := sessionFrom(t, router, "192.0.2.10:443", "198.51.100.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected forwarded client to be limited, got %d", code)
	}
	if code := sessionFrom(t, router, "192.0.2.10:443", "198.51.100.2"); code != http.StatusOK {
		t.Fatalf("expected a different forwarded client to pass, got %d", code)
	}
	if err := router.TrustProxies([]string{"not-an-ip"}); err == nil {
		t.Fatal("expected invalid proxy entry to be rejected")
	}
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	router.dbHealth = func(context.Context) error { return io.ErrUnexpectedEOF }
	rec := do(t, router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func readSnapshot(t *testing.T, scanner *bufio.Scanner) live.Envelope {
	t.Helper()
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var env live.Envelope
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &env); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return env
	}
	t.Fatalf("stream ended: %v", scanner.Err())
	return live.Envelope{}
}

func TestLogsStreamDeliversSnapshots(t *testing.T) {
	router, _ := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	token := startSession(t, router)
	proj := createProject(t, router, token, "Loft")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/stream/projects/"+proj.ID+"/logs?access_token="+token, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Fatalf("unexpected stream response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	scanner := bufio.NewScanner(resp.Body)

	initial := readSnapshot(t, scanner)
	if initial.Kind != live.KindSnapshot || string(initial.Items) != "[]" {
		t.Fatalf("unexpected initial snapshot %+v", initial)
	}

	do(t, router, http.MethodPost, "/projects/"+proj.ID+"/logs", token, validDraft())
	next := readSnapshot(t, scanner)
	event := live.Decode[domain.LogEntry]([]byte(mustJSON(t, next)))
	if event.Err != nil || len(event.Items) != 1 || event.Items[0].Notes != "Cabinet door misaligned" {
		t.Fatalf("unexpected snapshot %+v", event)
	}
}

func TestStreamUnknownProject(t *testing.T) {
	router, _ := newTestRouter(t)
	token := startSession(t, router)
	rec := do(t, router, http.MethodGet, "/stream/projects/missing/logs", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}
