package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harrisonrobin/fieldtask/pkg/model"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultTimeout applies to every call without a per-call override.
const DefaultTimeout = 30 * time.Second

// LoginResult is the body of a successful login.
type LoginResult struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
	Error string     `json:"error,omitempty"`
}

// TaskQuery holds the optional filters of the task list endpoint.
type TaskQuery struct {
	Page     int
	Limit    int
	Status   string
	Priority string
}

func (q TaskQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Priority != "" {
		v.Set("priority", q.Priority)
	}
	return v
}

// LocationReport is one tracking sample as posted to the backend.
type LocationReport struct {
	WorkerID      string    `json:"workerId"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Speed         float64   `json:"speed"`
	LocationName  string    `json:"locationName"`
	Timestamp     time.Time `json:"timestamp"`
	Date          string    `json:"date"`
	TimeFormatted string    `json:"timeFormatted"`
}

type timeoutKey struct{}

// WithTimeout overrides the client's default timeout for calls made with ctx.
func WithTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, timeoutKey{}, d)
}

// Client is the HTTP implementation of the backend gateway.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	tokens  oauth2.TokenSource
	logger  *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithDefaultTimeout sets the timeout used when a call carries no override.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTokenSource attaches bearer tokens to every request when available.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("api")
	return c
}

type response struct {
	status int
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// serverMessage extracts {"message"} or {"error"} from an error body.
func (r *response) serverMessage() string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(r.body, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(r.body))
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, contentType string) (*response, error) {
	timeout := c.timeout
	if d, ok := ctx.Value(timeoutKey{}).(time.Duration); ok && d > 0 {
		timeout = d
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, &AuthError{Message: "could not load session token", Err: err}
		}
		if tok != nil && tok.AccessToken != "" {
			tok.SetAuthHeader(req)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("method", method), zap.String("path", path),
			zap.String("request_id", requestID), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("request done", zap.String("method", method), zap.String("path", path),
		zap.Int("status", resp.StatusCode), zap.String("request_id", requestID),
		zap.Duration("elapsed", time.Since(start)))
	return &response{status: resp.StatusCode, body: b}, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := c.do(ctx, http.MethodPost, "/users/login", nil, body, "application/json")
	if err != nil {
		return LoginResult{}, &NetworkError{Op: "login", Err: err}
	}
	if !resp.ok() {
		return LoginResult{}, &AuthError{Message: "invalid credentials"}
	}

	var result LoginResult
	if err := json.Unmarshal(resp.body, &result); err != nil {
		return LoginResult{}, &AuthError{Message: "unreadable login response", Err: err}
	}
	if result.Error != "" {
		return LoginResult{}, &AuthError{Message: result.Error}
	}
	if result.User.ID == "" {
		return LoginResult{}, &AuthError{Message: "login response has no user id"}
	}
	return result, nil
}

// TasksByUser accepts both a bare array and a {"tasks": [...]} envelope.
func (c *Client) TasksByUser(ctx context.Context, userID string, q TaskQuery) ([]model.Task, error) {
	op := "fetch user tasks"
	resp, err := c.do(ctx, http.MethodGet, "/tasks/user/"+url.PathEscape(userID), q.values(), nil, "")
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	if !resp.ok() {
		return nil, &NetworkError{Op: op, StatusCode: resp.status, Message: resp.serverMessage()}
	}

	trimmed := bytes.TrimSpace(resp.body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []model.Task{}, nil
	}
	if trimmed[0] == '[' {
		var tasks []model.Task
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return nil, &NetworkError{Op: op, Err: fmt.Errorf("failed to decode tasks: %w", err)}
		}
		return tasks, nil
	}
	var envelope struct {
		Tasks []model.Task `json:"tasks"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("failed to decode tasks: %w", err)}
	}
	if envelope.Tasks == nil {
		envelope.Tasks = []model.Task{}
	}
	return envelope.Tasks, nil
}

func (c *Client) getByID(ctx context.Context, resource, path, id string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path+url.PathEscape(id), nil, nil, "")
	if err != nil {
		return &NetworkError{Op: "fetch " + resource, Err: err}
	}
	if !resp.ok() {
		return &NotFoundError{Resource: resource, ID: id, StatusCode: resp.status}
	}
	if err := json.Unmarshal(resp.body, v); err != nil {
		return fmt.Errorf("failed to decode %s '%s': %w", resource, id, err)
	}
	return nil
}

func (c *Client) Order(ctx context.Context, id string) (model.Order, error) {
	var o model.Order
	err := c.getByID(ctx, "order", "/orders/", id, &o)
	return o, err
}

func (c *Client) Asset(ctx context.Context, id string) (model.Asset, error) {
	var a model.Asset
	err := c.getByID(ctx, "asset", "/assets/", id, &a)
	return a, err
}

func (c *Client) Project(ctx context.Context, id string) (model.Project, error) {
	var p model.Project
	err := c.getByID(ctx, "project", "/projects/", id, &p)
	return p, err
}

func (c *Client) update(ctx context.Context, resource, path, id string, p *Payload, v any) error {
	if p == nil {
		p = BuildUpdatePayload(nil)
	}
	body, contentType, err := p.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode %s update: %w", resource, err)
	}
	resp, err := c.do(ctx, http.MethodPut, path+url.PathEscape(id), nil, body, contentType)
	if err != nil {
		return &NetworkError{Op: "update " + resource, Err: err}
	}
	if !resp.ok() {
		return &UpdateError{Resource: resource, ID: id, StatusCode: resp.status, Message: resp.serverMessage()}
	}
	if len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, v); err != nil {
		return fmt.Errorf("failed to decode %s update response: %w", resource, err)
	}
	return nil
}

// UpdateTask sends multipart when the payload has attachments, JSON otherwise.
func (c *Client) UpdateTask(ctx context.Context, id string, p *Payload) (model.Task, error) {
	var t model.Task
	err := c.update(ctx, "task", "/tasks/", id, p, &t)
	return t, err
}

func (c *Client) UpdateOrder(ctx context.Context, id string, p *Payload) (model.Order, error) {
	var o model.Order
	err := c.update(ctx, "order", "/orders/", id, p, &o)
	return o, err
}

func (c *Client) PostLocation(ctx context.Context, report LocationReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, "/tracking/location", nil, body, "application/json")
	if err != nil {
		return &NetworkError{Op: "post location", Err: err}
	}
	if !resp.ok() {
		return &NetworkError{Op: "post location", StatusCode: resp.status, Message: resp.serverMessage()}
	}
	return nil
}
