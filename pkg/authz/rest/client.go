// Package rest implements authz.Lookup against a PostgREST-style HTTP API.
//
// The backing store exposes two tables: app_users (registered profiles,
// with an is_admin flag) and collaborators (the two-person allow-list,
// joined to app_users). Filters are passed as eq. query parameters, and
// responses are JSON arrays of rows.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iamrohanmehra/task-twin-betax/pkg/authz"
)

const defaultTracerName = "tasktwin/authz/rest"

// Client queries the authorization store over HTTP.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	tracer       trace.Tracer
	includeEmail bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
// Default: http.Client with a 30s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(cl *Client) {
		cl.apiKey = key
	}
}

// WithTracerName overrides the tracer name.
func WithTracerName(name string) Option {
	return func(cl *Client) {
		if name != "" {
			cl.tracer = otel.Tracer(name)
		}
	}
}

// WithIncludeEmail includes the queried email as a span attribute.
// Emails are PII, so this is disabled by default.
func WithIncludeEmail(include bool) Option {
	return func(cl *Client) {
		cl.includeEmail = include
	}
}

// New creates a Client for the store rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tracer:     otel.Tracer(defaultTracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsUserAuthorized reports whether email is an admin or a registered
// collaborator. Transport errors are returned, never folded into false.
func (c *Client) IsUserAuthorized(ctx context.Context, email string) (ok bool, err error) {
	ctx, span := c.startSpan(ctx, "authz.is_user_authorized", email)
	defer func() { c.endSpan(span, err) }()

	// Admin short-circuit, then the collaborator allow-list.
	var admins []authz.Profile
	if err = c.getRows(ctx, "app_users", url.Values{
		"email":    {"eq." + email},
		"is_admin": {"eq.true"},
	}, &admins); err != nil {
		return false, err
	}
	if len(admins) > 0 {
		return true, nil
	}

	var collabs []collaboratorRow
	if err = c.getRows(ctx, "collaborators", url.Values{
		"user.email": {"eq." + email},
	}, &collabs); err != nil {
		return false, err
	}

	for _, row := range collabs {
		if row.User != nil && row.User.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// LookupProfile returns the app profile for email, or (nil, nil) if the
// email is unregistered.
func (c *Client) LookupProfile(ctx context.Context, email string) (p *authz.Profile, err error) {
	ctx, span := c.startSpan(ctx, "authz.lookup_profile", email)
	defer func() { c.endSpan(span, err) }()

	var rows []authz.Profile
	if err = c.getRows(ctx, "app_users", url.Values{
		"email": {"eq." + email},
	}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

type collaboratorRow struct {
	ID       string         `json:"id"`
	UserID   string         `json:"user_id"`
	Position int            `json:"position"`
	User     *authz.Profile `json:"user"`
}

func (c *Client) getRows(ctx context.Context, table string, filters url.Values, out any) error {
	u := c.baseURL + "/" + table
	if len(filters) > 0 {
		u += "?" + filters.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("rest: build request for %s: %w", table, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rest: query %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("rest: query %s: status %d: %s", table, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rest: decode %s response: %w", table, err)
	}
	return nil
}

func (c *Client) startSpan(ctx context.Context, name, email string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	if c.includeEmail {
		span.SetAttributes(attribute.String("authz.email", email))
	}
	return ctx, span
}

func (c *Client) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
