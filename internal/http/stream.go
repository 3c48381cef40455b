package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/Richiestixx/SiteRightApp/internal/live"
	"github.com/Richiestixx/SiteRightApp/internal/repository"
)

const wsPingInterval = 30 * time.Second

func (r *Router) handleProjectsStream(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	r.serveSSE(w, req, info.Scope().ProjectsPath())
}

func (r *Router) handleLogsStream(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	trimmed := strings.Trim(strings.TrimPrefix(req.URL.Path, "/stream/projects/"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "logs" {
		r.notFound(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	r.serveSSE(w, req, info.Scope().LogsPath(parts[0]))
}

// serveSSE holds the request open and forwards every snapshot of path until
// the client goes away.
func (r *Router) serveSSE(w http.ResponseWriter, req *http.Request, path repository.Path) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	if err := r.subscription.Check(req.Context(), path); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := live.NewSSEClient(w, flusher, r.logger)
	r.subscription.Attach(req.Context(), path, client)
	defer func() {
		client.Close()
		r.subscription.Detach(path, client)
	}()

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-client.Done():
			return
		case <-ticker.C:
			if err := r.keepAlive(client, time.Now()); err != nil {
				return
			}
		}
	}
}

type heartbeater interface {
	Heartbeat() error
	LastActivity() time.Time
}

// keepAlive pings the stream unless a frame went out within the heartbeat
// interval.
func (r *Router) keepAlive(client heartbeater, now time.Time) error {
	if now.Sub(client.LastActivity()) < r.heartbeat {
		return nil
	}
	return client.Heartbeat()
}

func (r *Router) handleWS(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for websocket", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	var path repository.Path
	switch repository.Collection(req.URL.Query().Get("collection")) {
	case repository.CollectionProjects, "":
		path = info.Scope().ProjectsPath()
	case repository.CollectionLogs:
		projectID := strings.TrimSpace(req.URL.Query().Get("project_id"))
		if projectID == "" {
			writeError(w, http.StatusBadRequest, "project_id query parameter required")
			return
		}
		path = info.Scope().LogsPath(projectID)
	default:
		writeError(w, http.StatusBadRequest, "unknown collection")
		return
	}
	if err := r.subscription.Check(req.Context(), path); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := live.NewClient(conn, r.logger)
	r.subscription.Attach(req.Context(), path, client)

	done := make(chan struct{})
	go func() {
		defer func() {
			close(done)
			r.subscription.Detach(path, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := client.Ping(); err != nil {
					return
				}
			}
		}
	}()
}
