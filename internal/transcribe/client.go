package transcribe

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	imrocreq "github.com/imroc/req/v3"
	"github.com/sethvargo/go-retry"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/pkg/config"
)

// Prompt is the fixed instruction sent with every video.
const Prompt = "Transcribe the spoken audio in this construction site inspection video. " +
	"Return only the transcription text, without timestamps or commentary."

const videoMimeType = "video/mp4"

var (
	// ErrEmptyResult is returned when the response carries no transcription text.
	ErrEmptyResult = errors.New("transcription returned no text")
	// ErrNotVideo is returned for media that is not a video.
	ErrNotVideo = errors.New("media is not a video")
)

// APIError reports a non-2xx response from the inference endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("transcription api returned status %d: %s", e.StatusCode, e.Body)
}

// Client calls a generateContent style inference endpoint.
type Client struct {
	url            string
	apiKey         string
	includeContext bool
	maxRetries     uint64
	retryDelay     time.Duration
	req            *imrocreq.Client
	logger         *slog.Logger
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.ClientConfig, logger *slog.Logger) *Client {
	timeout := cfg.InferenceTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	retries := cfg.InferenceMaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		url:            cfg.InferenceURL,
		apiKey:         cfg.InferenceAPIKey,
		includeContext: cfg.InferenceIncludeContext,
		maxRetries:     uint64(retries),
		retryDelay:     cfg.InferenceRetryDelay,
		req:            imrocreq.C().SetTimeout(timeout),
		logger:         logger,
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Transcribe reads the video, sends it for transcription and returns the text.
func (c *Client) Transcribe(ctx context.Context, video domain.MediaRef, contextNotes string) (string, error) {
	if video.Type != domain.MediaVideo {
		return "", ErrNotVideo
	}
	raw, err := os.ReadFile(video.LocalPath())
	if err != nil {
		return "", fmt.Errorf("read video: %w", err)
	}
	body := c.buildRequest(base64.StdEncoding.EncodeToString(raw), contextNotes)

	var text string
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewConstant(c.delay()))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var callErr error
		text, callErr = c.call(ctx, body)
		if retryable(callErr) {
			c.logger.Warn("transcription attempt failed", "error", callErr)
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) delay() time.Duration {
	if c.retryDelay <= 0 {
		return time.Second
	}
	return c.retryDelay
}

func (c *Client) buildRequest(encoded, contextNotes string) generateRequest {
	parts := []part{
		{Text: Prompt},
		{InlineData: &inlineData{MimeType: videoMimeType, Data: encoded}},
	}
	if c.includeContext && strings.TrimSpace(contextNotes) != "" {
		parts = append(parts, part{Text: "Existing notes for context: " + contextNotes})
	}
	return generateRequest{Contents: []content{{Role: "user", Parts: parts}}}
}

func (c *Client) call(ctx context.Context, body generateRequest) (string, error) {
	var result generateResponse
	request := c.req.R().
		SetContext(ctx).
		SetBodyJsonMarshal(body).
		SetSuccessResult(&result)
	if c.apiKey != "" {
		request.SetQueryParam("key", c.apiKey)
	}
	response, err := request.Post(c.url)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	if !response.IsSuccessState() {
		return "", &APIError{StatusCode: response.StatusCode, Body: response.String()}
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResult
	}
	text := result.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}

func retryable(err error) bool {
	if err == nil || errors.Is(err, ErrEmptyResult) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}
