package client

import (
	"context"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/live"
)

// Bound is a Client paired with a session token, so callers that act for one
// identity need not thread the token through every call.
type Bound struct {
	client *Client
	token  string
}

// Bind pairs the client with token.
func (c *Client) Bind(token string) Bound {
	return Bound{client: c, token: token}
}

// Token returns the bound session token.
func (b Bound) Token() string { return b.token }

func (b Bound) SubscribeProjects(ctx context.Context) (live.Stream[domain.Project], error) {
	return b.client.SubscribeProjects(ctx, b.token)
}

func (b Bound) SubscribeLogs(ctx context.Context, projectID string) (live.Stream[domain.LogEntry], error) {
	return b.client.SubscribeLogs(ctx, b.token, projectID)
}

func (b Bound) CreateProject(ctx context.Context, name string) (domain.Project, error) {
	return b.client.CreateProject(ctx, b.token, name)
}

func (b Bound) CreateLog(ctx context.Context, projectID string, draft domain.LogDraft, idempotencyKey string) (domain.LogEntry, error) {
	entry, _, err := b.client.CreateLog(ctx, b.token, projectID, draft, idempotencyKey)
	return entry, err
}

func (b Bound) CompleteLog(ctx context.Context, projectID, logID, notes string) (domain.LogEntry, error) {
	return b.client.CompleteLog(ctx, b.token, projectID, logID, CompleteInput{Notes: notes})
}

// AppendNotes satisfies the transcription notes appender.
func (b Bound) AppendNotes(ctx context.Context, projectID, logID, text string) (*domain.LogEntry, error) {
	entry, err := b.client.AppendNotes(ctx, b.token, projectID, logID, text)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
