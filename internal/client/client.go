// Package client talks to the keycal HTTP API and implements the store
// contracts over it, so a session can run against a remote server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"keycal/internal/model"
	"keycal/internal/store"
	"keycal/internal/web"
)

var (
	_ store.EventStore     = (*Client)(nil)
	_ store.IndicatorStore = (*Client)(nil)
)

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Type   string
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Type, e.Detail)
}

// Unwrap maps statuses onto the store sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return store.ErrNotFound
	case http.StatusBadRequest:
		return store.ErrInvalid
	}
	return nil
}

// Client is an authenticated API client. The user is the token's
// subject; userID arguments of the store methods are ignored.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
	loc   *time.Location
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLocation sets the zone calendar days are decoded in.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.loc = loc }
}

// New builds a client for baseURL. token may be empty against a server in
// demo mode.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q: scheme and host are required", baseURL)
	}
	c := &Client{
		base:  u,
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.base
	u.Path += path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload map[string]string
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Type, apiErr.Detail = payload["type"], payload["detail"]
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) ListEvents(ctx context.Context, _ string, r model.DateRange) ([]model.Event, error) {
	q := url.Values{}
	if !r.Start.IsZero() {
		q.Set("startDate", r.Start.In(c.loc).Format(time.DateOnly))
	}
	if !r.End.IsZero() {
		q.Set("endDate", r.End.In(c.loc).Format(time.DateOnly))
	}
	var raw []web.EventJSON
	if err := c.do(ctx, http.MethodGet, "/api/events", q, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(raw))
	for _, j := range raw {
		e, err := j.Event(c.loc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// GetEvent has no dedicated route; it scans the unbounded listing.
func (c *Client) GetEvent(ctx context.Context, userID, id string) (model.Event, error) {
	events, err := c.ListEvents(ctx, userID, model.DateRange{})
	if err != nil {
		return model.Event{}, err
	}
	for _, e := range events {
		if e.ID == id {
			return e, nil
		}
	}
	return model.Event{}, store.ErrNotFound
}

func (c *Client) CreateEvent(ctx context.Context, _ string, d model.EventDraft) (model.Event, error) {
	return c.eventCall(ctx, http.MethodPost, "/api/events", web.NewEventRequest(d))
}

func (c *Client) UpdateEvent(ctx context.Context, _ string, id string, p model.EventPatch) (model.Event, error) {
	return c.eventCall(ctx, http.MethodPatch, "/api/events/"+url.PathEscape(id), web.NewEventPatchRequest(p))
}

func (c *Client) DeleteEvent(ctx context.Context, _ string, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/events/"+url.PathEscape(id), nil, nil, nil)
}

// Move asks the server to apply a drag of deltaY pixels, optionally onto
// another day. It returns the updated event and the previous snapshot.
func (c *Client) Move(ctx context.Context, id string, date time.Time, deltaY float64) (model.Event, model.Event, error) {
	req := web.MoveRequest{DeltaY: deltaY}
	if !date.IsZero() {
		req.Date = date.Format(time.DateOnly)
	}
	var resp web.MoveResponse
	if err := c.do(ctx, http.MethodPost, "/api/events/"+url.PathEscape(id)+"/move", nil, req, &resp); err != nil {
		return model.Event{}, model.Event{}, err
	}
	updated, err := resp.Event.Event(c.loc)
	if err != nil {
		return model.Event{}, model.Event{}, err
	}
	prev, err := resp.Previous.Event(c.loc)
	return updated, prev, err
}

func (c *Client) eventCall(ctx context.Context, method, path string, in any) (model.Event, error) {
	var j web.EventJSON
	if err := c.do(ctx, method, path, nil, in, &j); err != nil {
		return model.Event{}, err
	}
	return j.Event(c.loc)
}

func (c *Client) ListIndicators(ctx context.Context, _ string) ([]model.Indicator, error) {
	progress, err := c.Progress(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	out := make([]model.Indicator, 0, len(progress))
	for _, p := range progress {
		out = append(out, p.Indicator)
	}
	return out, nil
}

// Progress returns the server-computed progress for the week containing
// ref, or the current week when ref is zero.
func (c *Client) Progress(ctx context.Context, ref time.Time) ([]model.IndicatorProgress, error) {
	q := url.Values{}
	if !ref.IsZero() {
		q.Set("date", ref.In(c.loc).Format(time.DateOnly))
	}
	var raw []web.IndicatorJSON
	if err := c.do(ctx, http.MethodGet, "/api/indicators", q, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]model.IndicatorProgress, 0, len(raw))
	for _, j := range raw {
		p := model.IndicatorProgress{
			Indicator:       j.Indicator(),
			ActualHours:     j.ActualHours,
			ActualFrequency: j.ActualFrequency,
		}
		if j.WeekStart != "" {
			p.WeekStart, _ = time.ParseInLocation(time.DateOnly, j.WeekStart, c.loc)
			p.WeekEnd, _ = time.ParseInLocation(time.DateOnly, j.WeekEnd, c.loc)
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Client) CreateIndicator(ctx context.Context, _ string, d model.IndicatorDraft) (model.Indicator, error) {
	var j web.IndicatorJSON
	if err := c.do(ctx, http.MethodPost, "/api/indicators", nil, web.NewIndicatorRequest(d), &j); err != nil {
		return model.Indicator{}, err
	}
	return j.Indicator(), nil
}

func (c *Client) UpdateIndicator(ctx context.Context, _ string, id string, p model.IndicatorPatch) (model.Indicator, error) {
	var j web.IndicatorJSON
	if err := c.do(ctx, http.MethodPatch, "/api/indicators/"+url.PathEscape(id), nil, web.NewIndicatorPatchRequest(p), &j); err != nil {
		return model.Indicator{}, err
	}
	return j.Indicator(), nil
}

func (c *Client) DeleteIndicator(ctx context.Context, _ string, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/indicators/"+url.PathEscape(id), nil, nil, nil)
}

// Feed downloads the iCalendar export.
func (c *Client) Feed(ctx context.Context) ([]byte, error) {
	u := *c.base
	u.Path += "/api/calendar.ics"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Type: "feed", Detail: resp.Status}
	}
	return io.ReadAll(resp.Body)
}
