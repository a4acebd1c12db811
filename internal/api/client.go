package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

// APIError is a non-2xx response from the calendar backend.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Body)
}

// IsUnauthorized reports whether err is a 401 from the backend, meaning the
// session token is gone or expired and the user must log in again.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Client talks to the remote calendar backend. All calls are bearer
// authenticated through the oauth2 transport; the token comes from the
// session layer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	loc        *time.Location
}

// NewClient builds an authenticated client for the given backend.
// loc is the timezone event timestamps are normalized into on receipt;
// nil means time.Local.
func NewClient(ctx context.Context, baseURL string, timeout time.Duration, token *oauth2.Token, loc *time.Location) *Client {
	if loc == nil {
		loc = time.Local
	}
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	hc.Timeout = timeout
	return &Client{
		baseURL:    baseURL,
		httpClient: hc,
		loc:        loc,
	}
}

// Login exchanges username/password for a bearer token via HTTP Basic auth
// on the backend's /login endpoint.
func Login(ctx context.Context, baseURL, username, password string, timeout time.Duration) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/login", nil)
	if err != nil {
		return nil, fmt.Errorf("create login request: %w", err)
	}
	req.SetBasicAuth(username, password)

	hc := &http.Client{Timeout: timeout}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var lr struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if lr.Token == "" {
		return nil, errors.New("login response contained no token")
	}

	return &oauth2.Token{AccessToken: lr.Token, TokenType: "Bearer"}, nil
}

// Events fetches all events in [from, to) and decodes them into domain
// events. A single malformed record fails the whole fetch with a
// DecodeError so bad data never reaches the layout core.
func (c *Client) Events(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(isoMillis))
	q.Set("to", to.UTC().Format(isoMillis))

	data, err := c.doRequest(ctx, http.MethodGet, "/userEvents?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var records []eventRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}

	events := make([]model.Event, 0, len(records))
	for i, rec := range records {
		ev, err := decodeEvent(i, rec, c.loc)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// CreateEvent submits a new event and returns the created record.
func (c *Client) CreateEvent(ctx context.Context, in model.EventInput) (model.Event, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/createEvent", encodePayload(in))
	if err != nil {
		return model.Event{}, err
	}
	return c.decodeSingle(data)
}

// UpdateEvent replaces the event with the given identifier.
func (c *Client) UpdateEvent(ctx context.Context, id string, in model.EventInput) (model.Event, error) {
	data, err := c.doRequest(ctx, http.MethodPut, "/editEvent/"+url.PathEscape(id), encodePayload(in))
	if err != nil {
		return model.Event{}, err
	}
	return c.decodeSingle(data)
}

// DeleteEvent removes the event with the given identifier.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/deleteEvent/"+url.PathEscape(id), nil)
	return err
}

func (c *Client) decodeSingle(data []byte) (model.Event, error) {
	var rec eventRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return decodeEvent(0, rec, c.loc)
}

// doRequest performs one backend call. Every request carries a fresh
// X-Request-ID so backend logs can be correlated with ours.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	appLog.Debug("backend request", "method", method, "path", path, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Body: string(respBody)}
		appLog.Error("backend error response", apiErr,
			"method", method, "path", path, "status", resp.StatusCode, "request_id", requestID)
		return nil, apiErr
	}

	return respBody, nil
}
