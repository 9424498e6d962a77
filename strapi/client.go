// Package strapi is the content client for a Strapi headless CMS. It issues
// REST requests against the collection endpoints, decodes either record shape
// through package content, and collapses every failure into an empty result
// plus a logged diagnostic.
package strapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eringen/cmsblog/content"
)

// DefaultOrigin is used when no backend origin is configured.
const DefaultOrigin = "http://localhost:1337"

const maxBodyBytes = 10 << 20

// Collection endpoints.
const (
	pathHero            = "/api/hero"
	pathPosts           = "/api/blog-posts"
	pathCategories      = "/api/categories"
	pathTags            = "/api/tags"
	pathSubscribers     = "/api/subscribers"
	pathContactMessages = "/api/contact-messages"
	pathHealth          = "/_health"
)

// Failure taxonomy. Operations never return these; they are logged.
var (
	ErrTransport = errors.New("strapi: transport error")
	ErrStatus    = errors.New("strapi: unexpected status")
	ErrDecode    = errors.New("strapi: malformed response")
	ErrOrigin    = errors.New("strapi: invalid origin")
)

// API is the read and write surface the site uses.
type API interface {
	FetchHero(ctx context.Context) *content.Hero
	FetchFeaturedPost(ctx context.Context) *content.Post
	FetchRecentPosts(ctx context.Context, limit int) []content.Post
	FetchAllPosts(ctx context.Context, page, pageSize int) ([]content.Post, *content.Pagination)
	FetchPostBySlug(ctx context.Context, slug string) *content.Post
	FetchCategories(ctx context.Context) []content.Category
	FetchCategoriesWithCount(ctx context.Context) []content.Category
	FetchPostsByCategory(ctx context.Context, slug string) (*content.Category, []content.Post)
	FetchPostsByTag(ctx context.Context, slug string) (*content.Tag, []content.Post)
	SubmitSubscription(ctx context.Context, email string) bool
	SubmitContactMessage(ctx context.Context, msg content.ContactMessage) bool
	Ping(ctx context.Context) error
}

var _ API = (*Client)(nil)

// Client talks to one Strapi origin. It is safe for concurrent use.
type Client struct {
	origin  string
	token   string
	http    *http.Client
	log     *slog.Logger
	decoder content.Decoder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sends token as a bearer API token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
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

// New returns a client for origin. An empty origin falls back to DefaultOrigin.
func New(origin string, opts ...Option) (*Client, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		origin = DefaultOrigin
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrOrigin, origin)
	}
	origin = strings.TrimRight(origin, "/")

	c := &Client{
		origin:  origin,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     slog.Default(),
		decoder: content.NewDecoder(origin),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "strapi")
	return c, nil
}

// Origin returns the backend origin without a trailing slash.
func (c *Client) Origin() string { return c.origin }

// Images returns the resolver bound to the backend origin.
func (c *Client) Images() content.ImageResolver { return c.decoder.Images }

type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta struct {
		Pagination *content.Pagination `json:"pagination"`
	} `json:"meta"`
}

// records decodes the data member as a list. A single object is returned as
// a one-element list and null as an empty one.
func (e envelope) records() ([]content.Record, error) {
	var raw any
	if len(e.Data) == 0 {
		return []content.Record{}, nil
	}
	if err := json.Unmarshal(e.Data, &raw); err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrDecode, err)
	}
	switch v := raw.(type) {
	case nil:
		return []content.Record{}, nil
	case []any:
		out := make([]content.Record, 0, len(v))
		for _, item := range v {
			rec, ok := content.AsRecord(item)
			if !ok {
				return nil, fmt.Errorf("%w: list item is %T", ErrDecode, item)
			}
			out = append(out, rec)
		}
		return out, nil
	default:
		rec, ok := content.AsRecord(v)
		if !ok {
			return nil, fmt.Errorf("%w: data is %T", ErrDecode, v)
		}
		return []content.Record{rec}, nil
	}
}

func (c *Client) get(ctx context.Context, path string, q *Query) (envelope, error) {
	endpoint := c.origin + path
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var env envelope
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return env, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	buf, err := json.Marshal(map[string]any{"data": payload})
	if err != nil {
		return fmt.Errorf("%w: encode body: %v", ErrDecode, err)
	}
	body, err := c.do(ctx, http.MethodPost, c.origin+path, buf)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: create response: %v", ErrDecode, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	c.log.DebugContext(ctx, "request", "method", method, "url", endpoint,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	return body, nil
}

func (c *Client) fail(ctx context.Context, op string, err error) {
	if errors.Is(err, context.Canceled) {
		c.log.DebugContext(ctx, "request canceled", "op", op)
		return
	}
	c.log.ErrorContext(ctx, "content request failed", "op", op, "err", err)
}

// Ping reports whether the backend answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, c.origin+pathHealth, nil)
	return err
}
