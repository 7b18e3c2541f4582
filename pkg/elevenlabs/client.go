// Package elevenlabs is a thin REST client for the ElevenLabs conversational AI
// agents and knowledge base endpoints.
package elevenlabs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	convaiPath     = "/v1/convai"
	apiKeyHeader   = "xi-api-key"
)

// ErrNotConfigured is returned when no API key was supplied.
var ErrNotConfigured = errors.New("elevenlabs api key not configured")

// APIError is a non-2xx answer from the API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300]
	}
	return fmt.Sprintf("elevenlabs %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// IsServerError reports whether err is an upstream 5xx answer.
func IsServerError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Config configures the client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client calls the ElevenLabs API.
type Client struct {
	http       *resty.Client
	configured bool
	logger     *zap.Logger
}

// NewClient constructs a client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")+convaiPath).
		SetHeader(apiKeyHeader, cfg.APIKey).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)
	return &Client{http: httpClient, configured: cfg.APIKey != "", logger: logger}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.configured
}

// ListAgents returns the agents visible to the API key.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var out agentList
	if err := c.do(ctx, http.MethodGet, "/agents", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Agents, nil
}

// GetAgent returns the agent configuration.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*AgentDetail, error) {
	var out AgentDetail
	if err := c.do(ctx, http.MethodGet, "/agents/"+url.PathEscape(agentID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetAgentKnowledgeBase replaces the documents attached to the agent prompt.
func (c *Client) SetAgentKnowledgeBase(ctx context.Context, agentID string, docs []KnowledgeBaseRef) error {
	var body agentPatch
	if docs == nil {
		docs = []KnowledgeBaseRef{}
	}
	body.ConversationConfig.Agent.Prompt.KnowledgeBase = docs
	return c.do(ctx, http.MethodPatch, "/agents/"+url.PathEscape(agentID), nil, body, nil)
}

// ListDocuments pages through the knowledge base. A non-empty search narrows by name.
func (c *Client) ListDocuments(ctx context.Context, search string) ([]Document, error) {
	var docs []Document
	cursor := ""
	for {
		params := url.Values{"page_size": []string{"100"}}
		if search != "" {
			params.Set("search", search)
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var page documentList
		if err := c.do(ctx, http.MethodGet, "/knowledge-base", params, nil, &page); err != nil {
			return nil, err
		}
		docs = append(docs, page.Documents...)
		if !page.HasMore || page.NextCursor == "" {
			return docs, nil
		}
		cursor = page.NextCursor
	}
}

// CreateTextDocument uploads a plain-text document.
func (c *Client) CreateTextDocument(ctx context.Context, name, text string) (*CreatedDocument, error) {
	var out CreatedDocument
	if err := c.do(ctx, http.MethodPost, "/knowledge-base/text", nil, createTextRequest{Text: text, Name: name}, &out); err != nil {
		return nil, err
	}
	if out.Name == "" {
		out.Name = name
	}
	return &out, nil
}

// DeleteDocument removes a document even if agents still reference it.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	params := url.Values{"force": []string{"true"}}
	return c.do(ctx, http.MethodDelete, "/knowledge-base/"+url.PathEscape(documentID), params, nil, nil)
}

// ComputeRAGIndex requests (or returns the existing) retrieval index for a document.
func (c *Client) ComputeRAGIndex(ctx context.Context, documentID, model string) (*RAGIndex, error) {
	var out RAGIndex
	path := "/knowledge-base/" + url.PathEscape(documentID) + "/rag-index"
	if err := c.do(ctx, http.MethodPost, path, nil, ragIndexRequest{Model: model}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRAGIndexes returns the retrieval indexes of a document.
func (c *Client) ListRAGIndexes(ctx context.Context, documentID string) ([]RAGIndex, error) {
	var out ragIndexList
	path := "/knowledge-base/" + url.PathEscape(documentID) + "/rag-index"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Indexes, nil
}

// DeleteRAGIndex removes one retrieval index of a document.
func (c *Client) DeleteRAGIndex(ctx context.Context, documentID, indexID string) error {
	path := "/knowledge-base/" + url.PathEscape(documentID) + "/rag-index/" + url.PathEscape(indexID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, result interface{}) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	req := c.http.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParamsFromValues(params)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("elevenlabs %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode(), Body: resp.String()}
		c.logger.Warn("elevenlabs request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()),
		)
		return apiErr
	}
	return nil
}
