package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/report"
	"github.com/Richiestixx/SiteRightApp/internal/service/entry"
	"github.com/Richiestixx/SiteRightApp/internal/service/project"
	"github.com/Richiestixx/SiteRightApp/internal/service/session"
	"github.com/Richiestixx/SiteRightApp/internal/service/subscription"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	session      session.Service
	project      project.Service
	entry        entry.Service
	subscription subscription.Service
	upgrader     websocket.Upgrader
	limiter      RateLimiter
	heartbeat    time.Duration
	dbHealth     func(context.Context) error

	trustedProxies []netip.Prefix

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	entryWrites        *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitSession   = 10
	rateLimitUserWrite = 60
	rateLimitUserRead  = 240
	rateLimitStream    = 30
	healthCheckTimeout = 2 * time.Second
	maxBodyBytes       = 1 << 20
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, sessionSvc session.Service, projectSvc project.Service, entrySvc entry.Service, subscriptionSvc subscription.Service, limiter RateLimiter, heartbeat time.Duration, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:          http.NewServeMux(),
		logger:       logger,
		session:      sessionSvc,
		project:      projectSvc,
		entry:        entrySvc,
		subscription: subscriptionSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:   limiter,
		heartbeat: heartbeat,
		dbHealth:  dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.heartbeat <= 0 {
		r.heartbeat = 15 * time.Second
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/session", r.audit("session", r.withRateLimit("session", rateLimitSession, rateWindowDefault, r.rateLimitKeyIP, r.handleSession)))
	r.mux.HandleFunc("/projects", r.audit("projects", r.handlerAuthRate("projects", rateLimitUserWrite, rateWindowDefault, r.handleProjects)))
	r.mux.HandleFunc("/projects/", r.audit("project", r.handlerAuthRate("project", rateLimitUserRead, rateWindowDefault, r.handleProjectSubroutes)))
	r.mux.HandleFunc("/stream/projects", r.audit("stream_projects", r.handlerAuthRate("stream", rateLimitStream, rateWindowRealtime, r.handleProjectsStream)))
	r.mux.HandleFunc("/stream/projects/", r.audit("stream_logs", r.handlerAuthRate("stream", rateLimitStream, rateWindowRealtime, r.handleLogsStream)))
	r.mux.HandleFunc("/ws", r.audit("ws", r.handlerAuthRate("stream", rateLimitStream, rateWindowRealtime, r.handleWS)))
}

func (r *Router) handleSession(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := decodeBody(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.Token == "" {
		if token, err := bearerToken(req.Header.Get("Authorization")); err == nil {
			payload.Token = token
		}
	}
	sess, err := r.session.Start(req.Context(), payload.Token)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":      sess.User,
		"token":     sess.Token,
		"expiresIn": int64(sess.ExpiresIn.Seconds()),
	})
}

func (r *Router) handleProjects(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for projects", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	switch req.Method {
	case http.MethodGet:
		projects, err := r.project.List(req.Context(), info.Scope())
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, projects)
	case http.MethodPost:
		var payload struct {
			Name string `json:"name"`
		}
		if err := decodeBody(req, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		proj, err := r.project.Create(req.Context(), info.Scope(), payload.Name)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, proj)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleProjectSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(req.URL.Path, "/projects/"), "/")
	parts := strings.Split(trimmed, "/")
	projectID := parts[0]
	if projectID == "" {
		r.notFound(w)
		return
	}
	switch {
	case len(parts) == 1:
		r.handleProject(w, req, projectID)
	case len(parts) == 2 && parts[1] == "logs":
		r.handleLogs(w, req, projectID)
	case len(parts) == 2 && parts[1] == "report":
		r.handleReport(w, req, projectID)
	case len(parts) == 3 && parts[1] == "logs":
		r.handleLog(w, req, projectID, parts[2])
	case len(parts) == 4 && parts[1] == "logs" && parts[3] == "complete":
		r.handleComplete(w, req, projectID, parts[2])
	case len(parts) == 4 && parts[1] == "logs" && parts[3] == "notes":
		r.handleAppendNotes(w, req, projectID, parts[2])
	default:
		r.notFound(w)
	}
}

func (r *Router) handleProject(w http.ResponseWriter, req *http.Request, projectID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	proj, err := r.project.Get(req.Context(), info.Scope(), projectID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (r *Router) handleLogs(w http.ResponseWriter, req *http.Request, projectID string) {
	info, _ := authInfoFromContext(req.Context())
	switch req.Method {
	case http.MethodGet:
		entries, err := r.entry.List(req.Context(), info.Scope(), projectID)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	case http.MethodPost:
		var draft domain.LogDraft
		if err := decodeBody(req, &draft); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, fresh, err := r.entry.Create(req.Context(), info.Scope(), entry.CreateInput{
			ProjectID:      projectID,
			Draft:          draft,
			IdempotencyKey: strings.TrimSpace(req.Header.Get("Idempotency-Key")),
		})
		r.recordEntryWrite(entryOpCreate, err, !fresh)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		status := http.StatusOK
		if fresh {
			status = http.StatusCreated
		}
		writeJSON(w, status, created)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleLog(w http.ResponseWriter, req *http.Request, projectID, logID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	found, err := r.entry.Get(req.Context(), info.Scope(), projectID, logID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (r *Router) handleComplete(w http.ResponseWriter, req *http.Request, projectID, logID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Notes           string `json:"notes"`
		ExpectedVersion *int64 `json:"expectedVersion"`
	}
	if err := decodeBody(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	info, _ := authInfoFromContext(req.Context())
	updated, err := r.entry.MarkComplete(req.Context(), info.Scope(), entry.CompleteInput{
		ProjectID:       projectID,
		LogID:           logID,
		Notes:           payload.Notes,
		ExpectedVersion: payload.ExpectedVersion,
	})
	r.recordEntryWrite(entryOpComplete, err, false)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) handleAppendNotes(w http.ResponseWriter, req *http.Request, projectID, logID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Text string `json:"text"`
	}
	if err := decodeBody(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	info, _ := authInfoFromContext(req.Context())
	updated, err := r.entry.AppendNotes(req.Context(), info.Scope(), projectID, logID, payload.Text)
	r.recordEntryWrite(entryOpNotes, err, false)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) handleReport(w http.ResponseWriter, req *http.Request, projectID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	proj, err := r.project.Get(req.Context(), info.Scope(), projectID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	entries, err := r.entry.List(req.Context(), info.Scope(), projectID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	markup, err := report.Generate(*proj, entries, time.Now())
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="`+strings.TrimSuffix(report.FileName(proj.Name), ".pdf")+`.html"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, markup)
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func decodeBody(req *http.Request, dst any) error {
	if req.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"route", route,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := r.clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID, "app_id", info.AppID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
