// Package upstream implements the ProviderClient and TokenRefresher ports
// against the data provider's REST and OAuth endpoints.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/microcosm-cc/bluemonday"

	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProviderClient = (*Client)(nil)

// Client calls the provider's read API. The transport stack is:
//  1. httpcache (ETag-based conditional request caching)
//  2. net/http with a hard request timeout
//
// Message previews arrive as provider-rendered HTML snippets; they are
// stripped to plain text before entering the mirror.
type Client struct {
	http      *http.Client
	baseURL   string
	sanitizer *bluemonday.Policy
}

// NewClient creates a provider API client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		http: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   15 * time.Second,
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		http:      httpClient,
		baseURL:   strings.TrimRight(baseURL, "/"),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// messagePayload is the provider's wire representation of a mail message.
type messagePayload struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Preview    string    `json:"preview"`
	Priority   string    `json:"priority"`
	Unread     bool      `json:"unread"`
	ReceivedAt time.Time `json:"received_at"`
}

// eventPayload is the provider's wire representation of a calendar entry.
type eventPayload struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Location  string    `json:"location"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Attendees []string  `json:"attendees"`
}

// FetchUnreadMessages retrieves the user's most recent unread messages.
func (c *Client) FetchUnreadMessages(ctx context.Context, accessToken string, maxResults int) ([]model.Message, error) {
	var payload struct {
		Messages []messagePayload `json:"messages"`
	}
	if err := c.get(ctx, accessToken, "/v1/messages/unread", maxResults, &payload); err != nil {
		return nil, err
	}

	msgs := make([]model.Message, 0, len(payload.Messages))
	for _, m := range payload.Messages {
		priority := model.Priority(m.Priority)
		switch priority {
		case model.PriorityHigh, model.PriorityMedium, model.PriorityLow:
		default:
			priority = model.PriorityMedium
		}

		msgs = append(msgs, model.Message{
			UpstreamID: m.ID,
			Sender:     m.From,
			Subject:    m.Subject,
			Preview:    strings.TrimSpace(c.sanitizer.Sanitize(m.Preview)),
			Priority:   priority,
			Unread:     m.Unread,
			ReceivedAt: m.ReceivedAt.UTC(),
		})
	}
	return msgs, nil
}

// FetchUpcomingEvents retrieves the user's next calendar events.
func (c *Client) FetchUpcomingEvents(ctx context.Context, accessToken string, maxResults int) ([]model.CalendarEvent, error) {
	var payload struct {
		Events []eventPayload `json:"events"`
	}
	if err := c.get(ctx, accessToken, "/v1/calendar/events/upcoming", maxResults, &payload); err != nil {
		return nil, err
	}

	events := make([]model.CalendarEvent, 0, len(payload.Events))
	for _, e := range payload.Events {
		events = append(events, model.CalendarEvent{
			UpstreamID: e.ID,
			Title:      e.Title,
			Location:   e.Location,
			StartsAt:   e.StartsAt.UTC(),
			EndsAt:     e.EndsAt.UTC(),
			Attendees:  e.Attendees,
		})
	}
	return events, nil
}

// get performs an authenticated GET and decodes the JSON body into out.
// Authentication rejections map to ErrAuthExpired; everything else that goes
// wrong maps to ErrUpstreamUnavailable.
func (c *Client) get(ctx context.Context, accessToken, path string, maxResults int, out any) error {
	u := c.baseURL + path + "?" + url.Values{"max_results": {strconv.Itoa(maxResults)}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", driven.ErrUpstreamUnavailable, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned %d", driven.ErrAuthExpired, path, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: %s returned %d", driven.ErrUpstreamUnavailable, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", driven.ErrUpstreamUnavailable, path, err)
	}
	return nil
}
