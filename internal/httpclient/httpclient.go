// Package httpclient is the single chokepoint for every outbound request the
// crawler makes (spec.md §4.5): rate limiting, disk caching with conditional
// GET, an SSL fallback policy scoped to an explicit host allowlist, and
// bounded retries. Nothing else in this module is allowed to call
// net/http.Client directly.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const userAgent = "BESS-Forensic-Crawler/1.0 (Research/Transparency)"
const connectTimeout = 10 * time.Second
const readTimeout = 30 * time.Second
const maxRetries = 3
const maxTotalAttemptTime = 2 * time.Minute

// risMarkers are the body substrings that must appear for an HTTPS→HTTP
// downgrade response to be accepted (spec.md §4.5).
var risMarkers = []string{"sitzung", "gremium", "tagesordnung", "sessionnet", "ratsinformationssystem", "vorlage"}

// defaultHostDelays seeds per-host rate overrides beyond the 1 req/s default
// (spec.md §4.5); extended at runtime from robots.txt crawl-delay directives
// via SetHostDelay.
var defaultHostDelays = map[string]time.Duration{
	"geobasis-bb.de": 10 * time.Second,
}

// Counters tracks the process-wide SSL/fallback counters named in spec.md §4.5.
type Counters struct {
	mu                  sync.Mutex
	SSLErrorsTotal      int
	SSLFallbackUsed     int
	HTTPFallbackUsed    int
}

func (c *Counters) incr(field *int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*field++
}

// Result is what one Get call returns: the body (possibly served from
// cache), the response metadata needed for conditional re-requests, and
// which policy branch produced it (for diagnostics logging).
type Result struct {
	Body            []byte
	StatusCode      int
	ETag            string
	LastModified    string
	FromCache       bool
	SSLFallbackUsed bool
	HTTPFallbackUsed bool
}

// Cache is the disk-backed conditional-GET store (spec.md §6: body + sidecar
// .meta.json under CRAWL_CACHE_BASE/http/). Implementations must tolerate
// concurrent writers with last-write-wins, per spec.md §5.
type Cache interface {
	Get(url string) (body []byte, etag, lastModified string, ok bool)
	Put(url string, body []byte, etag, lastModified string)
}

// RobotsChecker reports whether a URL is allowed by its host's robots.txt,
// failing open (allowed=true) when robots.txt could not be fetched.
type RobotsChecker interface {
	Allowed(ctx context.Context, rawURL string) (allowed bool, fetchFailed bool)
}

// Client is the rate-limited, cached, SSL-policy-aware GET chokepoint.
type Client struct {
	HTTP              *http.Client
	InsecureHTTP      *http.Client
	Cache             Cache
	Robots            RobotsChecker
	Counters          *Counters
	InsecureAllowlist map[string]bool
	AllowHTTPFallback bool

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
	delaysMu  sync.Mutex
	delays    map[string]time.Duration

	globalSem chan struct{}
	hostSemMu sync.Mutex
	hostSems  map[string]chan struct{}
	perHostCap int
}

// NewClient wires a Client with the default timeouts, a global semaphore of
// size globalConcurrency, and a per-host semaphore of size perHostConcurrency
// created lazily per host (spec.md §4.5 "two semaphores").
func NewClient(cache Cache, robots RobotsChecker, counters *Counters, globalConcurrency, perHostConcurrency int, insecureAllowlist []string, allowHTTPFallback bool) *Client {
	allow := make(map[string]bool, len(insecureAllowlist))
	for _, h := range insecureAllowlist {
		allow[h] = true
	}
	allow["ssl.ratsinfo-online.net"] = true

	delays := make(map[string]time.Duration, len(defaultHostDelays))
	for h, d := range defaultHostDelays {
		delays[h] = d
	}

	return &Client{
		HTTP:              &http.Client{Timeout: connectTimeout + readTimeout},
		InsecureHTTP:       insecureHTTPClient(),
		Cache:             cache,
		Robots:            robots,
		Counters:          counters,
		InsecureAllowlist: allow,
		AllowHTTPFallback: allowHTTPFallback,
		limiters:          make(map[string]*rate.Limiter),
		delays:            delays,
		globalSem:         make(chan struct{}, globalConcurrency),
		hostSems:          make(map[string]chan struct{}),
		perHostCap:        perHostConcurrency,
	}
}

// SetHostDelay overrides a host's rate-limiter interval, used to seed
// delays discovered from a host's robots.txt Crawl-delay directive.
func (c *Client) SetHostDelay(host string, delay time.Duration) {
	c.delaysMu.Lock()
	defer c.delaysMu.Unlock()
	c.delays[host] = delay
	c.limiterMu.Lock()
	defer c.limiterMu.Unlock()
	delete(c.limiters, host)
}

func (c *Client) limiterFor(host string) *rate.Limiter {
	c.limiterMu.Lock()
	defer c.limiterMu.Unlock()
	if l, ok := c.limiters[host]; ok {
		return l
	}
	c.delaysMu.Lock()
	interval, ok := c.delays[host]
	c.delaysMu.Unlock()
	if !ok {
		interval = time.Second
	}
	l := rate.NewLimiter(rate.Every(interval), 1)
	c.limiters[host] = l
	return l
}

func (c *Client) hostSemaphore(host string) chan struct{} {
	c.hostSemMu.Lock()
	defer c.hostSemMu.Unlock()
	if s, ok := c.hostSems[host]; ok {
		return s
	}
	s := make(chan struct{}, c.perHostCap)
	c.hostSems[host] = s
	return s
}

// Get performs the full policy chain for one GET: robots check, rate limit,
// concurrency gating, conditional cache reuse, retries, and SSL fallback.
// It never returns a raw transport error to the caller — every failure mode
// named in spec.md §7 is translated to a typed *Error.
func (c *Client) Get(ctx context.Context, rawURL string) (*Result, *Error) {
	host := hostOf(rawURL)

	if c.Robots != nil {
		allowed, fetchFailed := c.Robots.Allowed(ctx, rawURL)
		if !allowed && !fetchFailed {
			return nil, &Error{Kind: ErrRobotsDisallow, URL: rawURL}
		}
	}

	if err := c.limiterFor(host).Wait(ctx); err != nil {
		return nil, &Error{Kind: ErrNetwork, URL: rawURL, Cause: err}
	}

	sem := c.hostSemaphore(host)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, &Error{Kind: ErrNetwork, URL: rawURL, Cause: ctx.Err()}
	}
	select {
	case c.globalSem <- struct{}{}:
	case <-ctx.Done():
		<-sem
		return nil, &Error{Kind: ErrNetwork, URL: rawURL, Cause: ctx.Err()}
	}
	defer func() { <-sem; <-c.globalSem }()

	etag, lastModified := "", ""
	if c.Cache != nil {
		if body, cachedETag, cachedLastMod, ok := c.Cache.Get(rawURL); ok {
			etag, lastModified = cachedETag, cachedLastMod
			result, status, err := c.doConditional(ctx, rawURL, etag, lastModified)
			if err != nil {
				return nil, err
			}
			if status == http.StatusNotModified {
				return &Result{Body: body, StatusCode: status, ETag: etag, LastModified: lastModified, FromCache: true}, nil
			}
			return c.finish(rawURL, result)
		}
	}

	result, err := c.doWithRetries(ctx, rawURL, host)
	if err != nil {
		return nil, err
	}
	return c.finish(rawURL, result)
}

func (c *Client) finish(rawURL string, result *Result) (*Result, *Error) {
	if c.Cache != nil && result.StatusCode == http.StatusOK {
		c.Cache.Put(rawURL, result.Body, result.ETag, result.LastModified)
	}
	return result, nil
}

// doConditional issues a conditional GET using cached validators.
func (c *Client) doConditional(ctx context.Context, rawURL, etag, lastModified string) (*Result, int, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, &Error{Kind: ErrInvalidURL, URL: rawURL, Cause: err}
	}
	req.Header.Set("User-Agent", userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, httpErr := c.HTTP.Do(req)
	if httpErr != nil {
		return nil, 0, &Error{Kind: ErrNetwork, URL: rawURL, Cause: httpErr}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, resp.StatusCode, nil
	}
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, 0, &Error{Kind: ErrNetwork, URL: rawURL, Cause: readErr}
	}
	return &Result{
		Body:         body,
		StatusCode:   resp.StatusCode,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, resp.StatusCode, nil
}

// doWithRetries implements spec.md §4.5's retry + SSL-fallback policy: up to
// maxRetries attempts with exponential backoff on 5xx/network errors, 4xx
// terminal except 408/429, capped to maxTotalAttemptTime overall.
func (c *Client) doWithRetries(ctx context.Context, rawURL, host string) (*Result, *Error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxTotalAttemptTime
	bounded := backoff.WithContext(bo, ctx)

	var result *Result
	var terminal *Error

	operation := func() error {
		r, sslErr, transportErr := c.attempt(ctx, rawURL, host, false)
		if sslErr {
			fallback, fbErr := c.trySSLFallback(ctx, rawURL, host)
			if fbErr != nil {
				terminal = fbErr
				return backoff.Permanent(fbErr)
			}
			result = fallback
			return nil
		}
		if transportErr != nil {
			if transportErr.Kind == ErrHTTP4xx {
				terminal = transportErr
				return backoff.Permanent(transportErr)
			}
			return transportErr
		}
		result = r
		return nil
	}

	if err := backoff.Retry(limitedAttempts(operation, maxRetries), bounded); err != nil {
		if terminal != nil {
			return nil, terminal
		}
		return nil, &Error{Kind: ErrNetwork, URL: rawURL, Cause: err}
	}
	return result, nil
}

// limitedAttempts caps the number of operation invocations backoff.Retry
// makes, on top of its own elapsed-time cap, matching spec.md §4.5's
// "up to 3 attempts".
func limitedAttempts(op backoff.Operation, max int) backoff.Operation {
	attempts := 0
	return func() error {
		attempts++
		if attempts > max {
			return backoff.Permanent(fmt.Errorf("exceeded %d attempts", max))
		}
		return op()
	}
}

// attempt performs one plain HTTPS GET. sslErr is true iff the failure looks
// like a TLS handshake/verification failure, signalling the caller to try
// the fallback ladder instead of a bare retry.
func (c *Client) attempt(ctx context.Context, rawURL, host string, insecure bool) (*Result, bool, *Error) {
	client := c.HTTP
	if insecure {
		client = c.InsecureHTTP
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, &Error{Kind: ErrInvalidURL, URL: rawURL, Cause: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, httpErr := client.Do(req)
	if httpErr != nil {
		if isSSLError(httpErr) {
			if !insecure {
				c.Counters.incr(&c.Counters.SSLErrorsTotal)
			}
			return nil, true, &Error{Kind: ErrSSL, URL: rawURL, Cause: httpErr}
		}
		return nil, false, &Error{Kind: ErrNetwork, URL: rawURL, Cause: httpErr}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, false, &Error{Kind: ErrNetwork, URL: rawURL, Cause: readErr}
	}

	if resp.StatusCode >= 500 {
		return nil, false, &Error{Kind: ErrHTTP5xx, URL: rawURL, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode == 408 || resp.StatusCode == 429 {
		return nil, false, &Error{Kind: ErrHTTP5xx, URL: rawURL, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode >= 400 {
		return nil, false, &Error{Kind: ErrHTTP4xx, URL: rawURL, StatusCode: resp.StatusCode}
	}

	return &Result{
		Body:         body,
		StatusCode:   resp.StatusCode,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, false, nil
}

// trySSLFallback implements spec.md §4.5's two-step SSL fallback ladder:
// verify=false retry (if the host is allowlisted), then an HTTPS→HTTP
// downgrade gated on marker-bearing, 200-status bodies. The downgrade is
// tried for any https URL when AllowHTTPFallback is set, not only for RIS
// pages; the RIS-marker body check is its only RIS gate.
func (c *Client) trySSLFallback(ctx context.Context, rawURL, host string) (*Result, *Error) {
	if c.InsecureAllowlist[host] {
		r, sslErr, err := c.attempt(ctx, rawURL, host, true)
		if !sslErr && err == nil {
			c.Counters.incr(&c.Counters.SSLFallbackUsed)
			r.SSLFallbackUsed = true
			return r, nil
		}
	}

	if c.AllowHTTPFallback && strings.HasPrefix(rawURL, "https://") {
		httpURL := "http://" + strings.TrimPrefix(rawURL, "https://")
		r, _, err := c.attempt(ctx, httpURL, host, false)
		if err == nil && r.StatusCode == http.StatusOK && containsRISMarker(r.Body) {
			c.Counters.incr(&c.Counters.HTTPFallbackUsed)
			r.HTTPFallbackUsed = true
			return r, nil
		}
	}

	return nil, &Error{Kind: ErrSSL, URL: rawURL}
}

func containsRISMarker(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, marker := range risMarkers {
		if bytes.Contains(lower, []byte(marker)) {
			return true
		}
	}
	return false
}

func isSSLError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "certificate") || strings.Contains(msg, "tls") || strings.Contains(msg, "x509")
}

const pdfMaxSizeFastBytes = 25 * 1024 * 1024

// HeadPDFGuard issues a HEAD request and reports whether a subsequent GET
// should be skipped for being oversized (spec.md §4.5: "HEAD before GET;
// skip (fast mode) if Content-Length > 25 MB"). deep mode never skips on
// size — operators running deep mode have already opted into the slower,
// more complete crawl.
func (c *Client) HeadPDFGuard(ctx context.Context, rawURL string, mode modeLike) (skip bool, contentLength int64, err *Error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if reqErr != nil {
		return false, 0, &Error{Kind: ErrInvalidURL, URL: rawURL, Cause: reqErr}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, httpErr := c.HTTP.Do(req)
	if httpErr != nil {
		return false, 0, &Error{Kind: ErrNetwork, URL: rawURL, Cause: httpErr}
	}
	defer resp.Body.Close()

	contentLength = resp.ContentLength
	if mode.IsFast() && contentLength > pdfMaxSizeFastBytes {
		return true, contentLength, nil
	}
	return false, contentLength, nil
}

// modeLike decouples this package from internal/types so the HTTP client has
// no dependency on the domain model — callers pass types.CrawlMode, which
// satisfies this interface via IsFast below.
type modeLike interface {
	IsFast() bool
}

func hostOf(rawURL string) string {
	withoutScheme := rawURL
	if idx := strings.Index(rawURL, "://"); idx >= 0 {
		withoutScheme = rawURL[idx+3:]
	}
	if idx := strings.IndexAny(withoutScheme, "/?#"); idx >= 0 {
		withoutScheme = withoutScheme[:idx]
	}
	return withoutScheme
}
