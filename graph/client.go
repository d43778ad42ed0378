package graph

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/inboxtools/outlook-mcp/model"
)

// ErrAuth marks credential failures. The client never retries these; the
// auth collaborator owning the TokenSource decides what to do.
var ErrAuth = errors.New("authentication failed")

// TokenSource supplies a valid bearer credential on demand. Refresh logic
// lives behind this interface, outside this package.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token. Useful for tests and for
// environments where a token is injected externally.
type StaticTokenSource string

// Token returns the fixed token.
func (s StaticTokenSource) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty token", ErrAuth)
	}
	return string(s), nil
}

// Client is a thin HTTP client for the upstream mail API. Timeouts belong to
// the embedded http.Client; this layer adds no retries or backoff.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// Batch issues one physical $batch call with the given requests. The caller
// is responsible for respecting MaxBatchSize; the upstream rejects larger
// envelopes.
func (c *Client) Batch(ctx context.Context, requests []BatchRequest) ([]BatchResponse, error) {
	body, err := json.Marshal(batchEnvelope{Requests: requests})
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	respBody, status, err := c.do(ctx, http.MethodPost, "/$batch", body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("batch call failed with status %d: %s", status, respBody)
	}

	var result batchResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	return result.Responses, nil
}

// SearchMailRequest builds the batch item that searches mail for one
// logical entity query.
func SearchMailRequest(id, query string, size int) BatchRequest {
	body, _ := json.Marshal(searchBody{
		Requests: []searchRequest{{
			EntityTypes: []string{"message"},
			Query:       searchQuery{QueryString: query},
			Size:        size,
		}},
	})
	return BatchRequest{
		ID:      id,
		Method:  http.MethodPost,
		URL:     "/search/query",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}
}

// ParseSearchBody decodes a search response body into records. The upstream
// ranking order is preserved.
func ParseSearchBody(body json.RawMessage) ([]model.Record, error) {
	var decoded searchResponseBody
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	records := make([]model.Record, 0)
	for _, v := range decoded.Value {
		for _, hc := range v.HitsContainers {
			for _, hit := range hc.Hits {
				records = append(records, recordFromHit(hit))
			}
		}
	}
	return records, nil
}

// attachmentBody is the upstream attachment wire shape.
type attachmentBody struct {
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	Size         int    `json:"size"`
	ContentBytes string `json:"contentBytes"`
}

// GetAttachment fetches one attachment blob by message and attachment id.
func (c *Client) GetAttachment(ctx context.Context, messageID, attachmentID string) (model.Attachment, error) {
	path := fmt.Sprintf("/me/messages/%s/attachments/%s", messageID, attachmentID)
	body, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return model.Attachment{}, err
	}
	if status == http.StatusNotFound {
		return model.Attachment{}, fmt.Errorf("attachment %s/%s not found", messageID, attachmentID)
	}
	if status < 200 || status >= 300 {
		return model.Attachment{}, fmt.Errorf("attachment fetch failed with status %d: %s", status, body)
	}

	var decoded attachmentBody
	if err := json.Unmarshal(body, &decoded); err != nil {
		return model.Attachment{}, fmt.Errorf("decode attachment: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(decoded.ContentBytes)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("decode attachment content: %w", err)
	}

	return model.Attachment{
		ParentID:    messageID,
		ItemID:      attachmentID,
		Name:        decoded.Name,
		ContentType: decoded.ContentType,
		Size:        decoded.Size,
		Data:        data,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (json.RawMessage, int, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		if errors.Is(err, ErrAuth) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, resp.StatusCode, fmt.Errorf("%w: upstream returned %d", ErrAuth, resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}
	return respBody, resp.StatusCode, nil
}
