// Package client talks to the Assessment API on behalf of a candidate.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
)

// DefaultTimeout bounds a single HTTP round trip.
const DefaultTimeout = 15 * time.Second

// APIError is returned for any non-2xx answer of the Assessment API.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("assessment api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("assessment api: %d %s: %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code response.ErrCode) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// envelope mirrors response.Response with the payload left raw.
type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

// Client implements session.API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New returns a client for the API rooted at baseURL, e.g.
// http://localhost:8080/api/v1.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch loads the bootstrap payload of the session behind token.
func (c *Client) Fetch(ctx context.Context, token string) (*model.Bootstrap, error) {
	var b model.Bootstrap
	if err := c.do(ctx, http.MethodGet, c.path(token, ""), nil, &b); err != nil {
		return nil, fmt.Errorf("fetch assessment: %w", err)
	}
	return &b, nil
}

// Start records that the candidate began. The server keeps the first start time.
func (c *Client) Start(ctx context.Context, token string) (*model.StartResult, error) {
	var res model.StartResult
	if err := c.do(ctx, http.MethodPost, c.path(token, "start"), struct{}{}, &res); err != nil {
		return nil, fmt.Errorf("start assessment: %w", err)
	}
	return &res, nil
}

// Save persists one answer.
func (c *Client) Save(ctx context.Context, token, questionID string, r model.Response) error {
	body := struct {
		QuestionID string         `json:"questionId"`
		Response   model.Response `json:"response"`
	}{questionID, r}
	if err := c.do(ctx, http.MethodPost, c.path(token, "save"), body, nil); err != nil {
		return fmt.Errorf("save answer %s: %w", questionID, err)
	}
	return nil
}

// Submit completes the session with answers.
func (c *Client) Submit(ctx context.Context, token string, answers []model.AnswerEntry) (*model.SubmitResult, error) {
	if answers == nil {
		answers = []model.AnswerEntry{}
	}
	body := struct {
		Answers []model.AnswerEntry `json:"answers"`
	}{answers}

	var res model.SubmitResult
	if err := c.do(ctx, http.MethodPost, c.path(token, "submit"), body, &res); err != nil {
		return nil, fmt.Errorf("submit assessment: %w", err)
	}
	return &res, nil
}

func (c *Client) path(token, action string) string {
	p := c.baseURL + "/assessments/" + url.PathEscape(token)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) do(ctx context.Context, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(res.Body).Decode(&env)

	if res.StatusCode/100 != 2 {
		apiErr := &APIError{Status: res.StatusCode}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
