// Package client is a small typed HTTP client for the shared-tasks API.
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
)

const DefaultBaseURL = "http://localhost:3000/api/v1"

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0 when err did not
// come from the API.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// MessageOf returns the API error message of err, or fallback.
func MessageOf(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New returns an unauthenticated client. A nil hc uses a client with a 30s
// timeout.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// WithToken returns a copy of c that sends token as a bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// ----- auth -----

type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// LoginRequest accepts the identifier under either of its two names.
type LoginRequest struct {
	Identifier string `json:"identifier,omitempty"`
	Login      string `json:"login,omitempty"`
	Password   string `json:"password"`
}

type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/register", req, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/login", req, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/auth/profile", nil, &out)
	return out.User, err
}

func (c *Client) SetDefaultContext(ctx context.Context, value string) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodPatch, "/auth/default-context", map[string]string{"defaultContext": value}, &out)
	return out.User, err
}

// ----- delegations -----

func (c *Client) SearchUsers(ctx context.Context, query string) ([]UserRef, error) {
	var out struct {
		Users []UserRef `json:"users"`
	}
	err := c.do(ctx, http.MethodGet, "/delegations/search-users?query="+url.QueryEscape(query), nil, &out)
	return out.Users, err
}

func (c *Client) CreateDelegation(ctx context.Context, req DelegationRequest) (Delegation, error) {
	var out struct {
		Delegation Delegation `json:"delegation"`
	}
	err := c.do(ctx, http.MethodPost, "/delegations", req, &out)
	return out.Delegation, err
}

func (c *Client) Delegations(ctx context.Context) (DelegationList, error) {
	var out DelegationList
	err := c.do(ctx, http.MethodGet, "/delegations", nil, &out)
	return out, err
}

func (c *Client) AcceptDelegation(ctx context.Context, id string) (Delegation, error) {
	var out struct {
		Delegation Delegation `json:"delegation"`
	}
	err := c.do(ctx, http.MethodPost, "/delegations/"+url.PathEscape(id)+"/accept", nil, &out)
	return out.Delegation, err
}

// UpdateDelegation replaces permissions with PUT; nil fields are left as is.
func (c *Client) UpdateDelegation(ctx context.Context, id string, p PermissionPatch) (Delegation, error) {
	var out struct {
		Delegation Delegation `json:"delegation"`
	}
	err := c.do(ctx, http.MethodPut, "/delegations/"+url.PathEscape(id), p, &out)
	return out.Delegation, err
}

// ----- categories -----

func (c *Client) CreateCategory(ctx context.Context, req CategoryRequest) (Category, error) {
	var out struct {
		Category Category `json:"category"`
	}
	err := c.do(ctx, http.MethodPost, "/categories", req, &out)
	return out.Category, err
}

// ----- tasks -----

func (c *Client) CreateTask(ctx context.Context, req TaskRequest) (Task, error) {
	var out struct {
		Task Task `json:"task"`
	}
	err := c.do(ctx, http.MethodPost, "/tasks", req, &out)
	return out.Task, err
}

func (c *Client) UpdateTask(ctx context.Context, id string, req TaskUpdate) (Task, error) {
	var out struct {
		Task Task `json:"task"`
	}
	err := c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), req, &out)
	return out.Task, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}

// Tasks lists ownerID's tasks; an empty ownerID lists the caller's own.
func (c *Client) Tasks(ctx context.Context, ownerID string) (TaskList, error) {
	path := "/tasks"
	if ownerID != "" {
		path += "?ownerId=" + url.QueryEscape(ownerID)
	}
	var out TaskList
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// ----- activity -----

func (c *Client) Activity(ctx context.Context, limit int) (ActivityPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/activity"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out ActivityPage
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}
