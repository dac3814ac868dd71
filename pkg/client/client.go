// Package client is a Go SDK for the attendance API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIError is a failed envelope returned by the server.
type APIError struct {
	Status  int
	Code    string
	Message string
	Data    json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("attendance api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Rejected reports whether the server refused the request on business grounds, as
// opposed to failing to process it.
func (e *APIError) Rejected() bool {
	return e.Status >= 400 && e.Status < 500
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type Permission struct {
	Allowed      bool     `json:"allowed"`
	Reason       string   `json:"reason"`
	Role         string   `json:"role"`
	AllowedRoles []string `json:"allowedRoles"`
}

type Record struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Date          time.Time  `json:"date"`
	CheckInTime   time.Time  `json:"checkInTime"`
	CheckInPhoto  *string    `json:"checkInPhoto"`
	CheckOutTime  *time.Time `json:"checkOutTime"`
	CheckOutPhoto *string    `json:"checkOutPhoto"`
}

type Status struct {
	Date               string     `json:"date"`
	State              string     `json:"state"`
	HasCheckedInToday  bool       `json:"hasCheckedInToday"`
	HasCheckedOutToday bool       `json:"hasCheckedOutToday"`
	CanCheckIn         bool       `json:"canCheckIn"`
	CanCheckOut        bool       `json:"canCheckOut"`
	Permission         Permission `json:"permission"`
	Record             *Record    `json:"record"`
}

type Result struct {
	Record *Record `json:"record"`
	Role   string  `json:"role"`
	State  string  `json:"state"`
}

type Photo struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

// Client talks to one attendance server with one session token.
type Client struct {
	http *resty.Client
}

type Option func(*resty.Client)

func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

func New(baseURL, token string, opts ...Option) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetHeader("Accept", "application/json").
		SetAuthToken(token).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)

	// Mutations are never retried: a lost response must be resolved with a fresh status read
	rc.AddRetryCondition(func(r *resty.Response, err error) bool {
		if r == nil || r.Request == nil {
			return false
		}
		if !strings.HasSuffix(r.Request.URL, "/attendance/status") {
			return false
		}
		return err != nil || r.StatusCode() >= http.StatusInternalServerError
	})

	for _, o := range opts {
		o(rc)
	}
	return &Client{http: rc}
}

func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.do(c.http.R().SetContext(ctx), http.MethodPost, "/attendance/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CheckIn(ctx context.Context, photoURL string) (*Result, error) {
	var out Result
	req := c.http.R().SetContext(ctx).SetBody(map[string]string{"photoUrl": photoURL})
	if err := c.do(req, http.MethodPost, "/attendance/check-in", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CheckOut(ctx context.Context, photoURL string) (*Result, error) {
	var out Result
	req := c.http.R().SetContext(ctx).SetBody(map[string]string{"photoUrl": photoURL})
	if err := c.do(req, http.MethodPost, "/attendance/check-out", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadPhoto sends an image for kind "checkin" or "checkout" and returns its URL.
func (c *Client) UploadPhoto(ctx context.Context, kind, filename string, r io.Reader) (*Photo, error) {
	var out Photo
	req := c.http.R().SetContext(ctx).
		SetFileReader("photo", filename, r).
		SetFormData(map[string]string{"kind": kind})
	if err := c.do(req, http.MethodPost, "/attendance/photos", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(req *resty.Request, method, path string, out any) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return &APIError{Status: resp.StatusCode(), Code: "bad_response", Message: "response is not a JSON envelope"}
	}
	if !env.Success || resp.IsError() {
		return &APIError{Status: resp.StatusCode(), Code: env.Code, Message: env.Error, Data: env.Data}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// AsAPIError unwraps err to an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	ok := errors.As(err, &ae)
	return ae, ok
}
