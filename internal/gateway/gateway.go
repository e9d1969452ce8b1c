// Package gateway wraps the dealership backend's contract-template API: one
// fetch and one update call, with a hard save timeout. It owns the two
// request/response shapes and nothing else.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/evdealer/contractedit/internal/htmldoc"
)

var (
	// ErrNotFound means no template id was supplied or the backend has no
	// content for it. Callers must not retry automatically.
	ErrNotFound = errors.New("contract template not found")

	// ErrTimeout means the save did not complete within the save timeout.
	ErrTimeout = errors.New("saving contract template timed out")

	// ErrMalformed rejects a save whose composed document fails the
	// well-formedness check, before any network call.
	ErrMalformed = errors.New("composed document is malformed")

	// ErrEmptyBody rejects a save with no body content before any network
	// call is made.
	ErrEmptyBody = errors.New("contract body is empty")
)

// DefaultSaveTimeout caps how long one save submission may take.
const DefaultSaveTimeout = 30 * time.Second

// Template is a fetched contract template.
type Template struct {
	ID   string
	Name string
	HTML string
}

// SaveRequest carries everything needed to recompose and submit one
// document.
type SaveRequest struct {
	TemplateID string
	Subject    string
	Body       string
	Structure  htmldoc.Structure
}

// SaveResult is the backend's answer to an update. The signing positions and
// page number are pass-through values this subsystem never interprets.
type SaveResult struct {
	Success     bool            `json:"success"`
	DownloadURL string          `json:"downloadUrl,omitempty"`
	PositionA   json.RawMessage `json:"positionA,omitempty"`
	PositionB   json.RawMessage `json:"positionB,omitempty"`
	PageSign    json.RawMessage `json:"pageSign,omitempty"`
	Message     string          `json:"message,omitempty"`
}

// templateResponse is the backend's fetch payload.
type templateResponse struct {
	Success      bool   `json:"success"`
	HTMLTemplate string `json:"htmlTemplate"`
	Name         string `json:"name"`
	Message      string `json:"message,omitempty"`
}

// updateRequest is the backend's update payload.
type updateRequest struct {
	ID       string `json:"id"`
	Subject  string `json:"subject"`
	HTMLFile string `json:"htmlFile"`
}

// Client talks to the dealership backend.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	saveTimeout time.Duration
}

// New creates a Client for the backend at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		saveTimeout: DefaultSaveTimeout,
	}
}

// SetSaveTimeout overrides the save timeout; d <= 0 keeps the default.
func (c *Client) SetSaveTimeout(d time.Duration) {
	if d > 0 {
		c.saveTimeout = d
	}
}

// Load fetches the raw template document for templateID. A missing id, a
// backend failure answer or empty content all map to ErrNotFound.
func (c *Client) Load(ctx context.Context, templateID string) (*Template, error) {
	if templateID == "" {
		return nil, fmt.Errorf("no template id supplied: %w", ErrNotFound)
	}

	url := c.baseURL + "/api/contract-templates/" + templateID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating fetch request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching template %s: %w", templateID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("template %s: %w", templateID, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching template %s: backend returned status %d", templateID, resp.StatusCode)
	}

	var body templateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding template %s: %w", templateID, err)
	}
	if !body.Success || body.HTMLTemplate == "" {
		return nil, fmt.Errorf("template %s has no content: %w", templateID, ErrNotFound)
	}

	return &Template{ID: templateID, Name: body.Name, HTML: body.HTMLTemplate}, nil
}

// Save recomposes the full document from req and submits it, racing the
// backend call against the save timeout. The body must be non-empty and the
// composed document must still be structurally sound.
func (c *Client) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	if req.TemplateID == "" {
		return nil, fmt.Errorf("no template id supplied: %w", ErrNotFound)
	}
	if strings.TrimSpace(req.Body) == "" {
		return nil, ErrEmptyBody
	}

	doc := htmldoc.Compose(req.Body, req.Subject, req.Structure)
	if err := htmldoc.CheckWellFormed(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	payload, err := json.Marshal(updateRequest{
		ID:       req.TemplateID,
		Subject:  req.Subject,
		HTMLFile: doc,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding update request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.saveTimeout)
	defer cancel()

	url := c.baseURL + "/api/contract-templates/" + req.TemplateID
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating update request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("saving template %s: %w", req.TemplateID, ErrTimeout)
		}
		return nil, fmt.Errorf("saving template %s: %w", req.TemplateID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("saving template %s: backend returned status %d", req.TemplateID, resp.StatusCode)
	}

	var result SaveResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding save result: %w", err)
	}
	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "backend rejected the update"
		}
		return nil, fmt.Errorf("saving template %s: %s", req.TemplateID, msg)
	}

	return &result, nil
}
