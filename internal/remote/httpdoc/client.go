// Package httpdoc is a remote.Client over a JSON document HTTP API.
//
// Successful query responses are cached in memory per query. When the
// origin cannot be reached the cached response is returned with
// ReadMeta.FromCache set, which is the signal the connectivity classifier
// reads.
package httpdoc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roach88/tillsync/internal/logger"
	"github.com/roach88/tillsync/internal/remote"
)

// Options configures a Client.
type Options struct {
	Timeout    time.Duration
	Token      string
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// StatusError is a non-2xx response from the origin.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// Client talks to the document API rooted at a base URL.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
	log   *logger.Logger

	mu    sync.RWMutex
	cache map[string][]remote.Document
}

var _ remote.Client = (*Client)(nil)

// New creates a Client. baseURL must be absolute.
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing remote url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("remote url %q must be absolute", baseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		base:  u,
		http:  hc,
		token: opts.Token,
		log:   logger.OrNop(opts.Logger).Named("httpdoc"),
		cache: make(map[string][]remote.Document),
	}, nil
}

type queryResponse struct {
	Documents []remote.Document `json:"documents"`
}

// Query fetches GET {base}/v1/{collection}?field=value.
func (c *Client) Query(ctx context.Context, q remote.Query) ([]remote.Document, remote.ReadMeta, error) {
	target := c.collectionURL(q.Collection)
	values := url.Values{}
	for k, v := range q.Where {
		values.Set(k, v)
	}
	target.RawQuery = values.Encode()
	key := cacheKey(q)

	docs, err := c.fetch(ctx, target.String())
	if err == nil {
		c.mu.Lock()
		c.cache[key] = docs
		c.mu.Unlock()
		return docs, remote.ReadMeta{}, nil
	}
	if ctx.Err() != nil || !isUnreachable(err) {
		return nil, remote.ReadMeta{}, err
	}

	c.mu.RLock()
	cached, ok := c.cache[key]
	c.mu.RUnlock()
	if !ok {
		return nil, remote.ReadMeta{FromCache: true}, fmt.Errorf("%w: %v", remote.ErrOffline, err)
	}
	c.log.Debug(ctx, "serving query from cache")
	return cached, remote.ReadMeta{FromCache: true}, nil
}

// Put upserts one document with PUT {base}/v1/{collection}/{id}.
func (c *Client) Put(ctx context.Context, collection, id string, body any) error {
	if id == "" {
		return errors.New("put: empty document id")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", collection, id, err)
	}
	target := c.collectionURL(collection)
	target.Path += "/" + url.PathEscape(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(req, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) fetch(ctx context.Context, target string) ([]remote.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, statusError(req, resp)
	}
	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", target, err)
	}
	if out.Documents == nil {
		out.Documents = []remote.Document{}
	}
	return out.Documents, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

func (c *Client) collectionURL(collection string) *url.URL {
	u := *c.base
	u.Path = c.base.Path + "/v1/" + url.PathEscape(collection)
	return &u
}

func statusError(req *http.Request, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		Method: req.Method,
		URL:    req.URL.String(),
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}

// isUnreachable reports whether err means the origin could not serve the
// request at all: transport failures and gateway-class statuses.
func isUnreachable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusBadGateway ||
			se.Status == http.StatusServiceUnavailable ||
			se.Status == http.StatusGatewayTimeout
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

func cacheKey(q remote.Query) string {
	keys := make([]string, 0, len(q.Where))
	for k := range q.Where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(q.Collection)
	for _, k := range keys {
		b.WriteString("|" + k + "=" + q.Where[k])
	}
	return b.String()
}
