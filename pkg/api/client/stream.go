package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/live"
)

// SubscribeProjects opens the live projects collection.
func (c *Client) SubscribeProjects(ctx context.Context, token string) (live.Stream[domain.Project], error) {
	pipe, release, err := c.openStream(ctx, token, "/stream/projects")
	if err != nil {
		return nil, err
	}
	return live.NewStream[domain.Project](pipe, release), nil
}

// SubscribeLogs opens the live log collection of one project.
func (c *Client) SubscribeLogs(ctx context.Context, token, projectID string) (live.Stream[domain.LogEntry], error) {
	path := fmt.Sprintf("/stream/projects/%s/logs", url.PathEscape(projectID))
	pipe, release, err := c.openStream(ctx, token, path)
	if err != nil {
		return nil, err
	}
	return live.NewStream[domain.LogEntry](pipe, release), nil
}

// openStream connects to an SSE endpoint and pumps its snapshot frames into a
// pipe until the returned release func is called or the connection drops.
func (c *Client) openStream(ctx context.Context, token, path string) (*live.Pipe, func(), error) {
	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel()
		return nil, nil, APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}

	pipe := live.NewPipe()
	go func() {
		defer resp.Body.Close()
		err := readEvents(resp.Body, func(event string, data []byte) {
			if event == "" || event == "snapshot" {
				_ = pipe.Send(data)
			}
		})
		if streamCtx.Err() != nil {
			return
		}
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		_ = pipe.Send(live.ErrorEnvelope(path, fmt.Errorf("stream closed: %w", err)))
	}()
	return pipe, cancel, nil
}

// readEvents parses a text/event-stream body, calling fn once per dispatched
// event. Comment lines are ignored. It returns nil at a clean end of stream.
func readEvents(r io.Reader, fn func(event string, data []byte)) error {
	reader := bufio.NewReader(r)
	var (
		event string
		data  bytes.Buffer
		has   bool
	)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if has {
				fn(event, bytes.Clone(data.Bytes()))
			}
			event, has = "", false
			data.Reset()
		case strings.HasPrefix(line, ":"):
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				event = value
			case "data":
				if has {
					data.WriteByte('\n')
				}
				data.WriteString(value)
				has = true
			}
		}
		if err != nil {
			return nil
		}
	}
}
