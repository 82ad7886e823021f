package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/time/rate"
)

// DefaultUserAgent is sent when the caller does not configure one. Several
// province sites reject requests without a browser-like agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultTimeout is the per-request network timeout.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 10 << 20

// Fetcher retrieves a page and returns its markup decoded to UTF-8.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// TransportError reports a failed fetch: connection failure, timeout or a
// non-2xx status. StatusCode is zero when no response was received.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPFetcher fetches pages over HTTP and resolves their character encoding.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher with the given timeout and User-Agent.
// Zero values select DefaultTimeout and DefaultUserAgent.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch issues one GET. It never retries.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &TransportError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", &TransportError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &TransportError{URL: url, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	markup, err := Decode(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", &TransportError{URL: url, Err: err}
	}
	return markup, nil
}

// Decode converts a response body to UTF-8. A declared GBK-family charset
// wins; otherwise the encoding is sniffed from BOM, <meta> and content, and
// UTF-8 is kept when the guess is uncertain and the bytes are valid UTF-8.
func Decode(body []byte, contentType string) (string, error) {
	if isGBKFamily(declaredCharset(contentType)) {
		return decodeGB18030(body)
	}

	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if !certain && utf8.Valid(body) {
		return string(body), nil
	}
	if name == "utf-8" {
		return string(body), nil
	}
	if isGBKFamily(name) {
		return decodeGB18030(body)
	}

	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s body: %w", name, err)
	}
	return string(out), nil
}

func decodeGB18030(body []byte) (string, error) {
	out, err := simplifiedchinese.GB18030.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("failed to decode gb18030 body: %w", err)
	}
	return string(out), nil
}

func declaredCharset(contentType string) string {
	for part := range strings.SplitSeq(contentType, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.EqualFold(k, "charset") {
			return strings.ToLower(strings.Trim(v, `"' `))
		}
	}
	return ""
}

func isGBKFamily(name string) bool {
	switch strings.ToLower(name) {
	case "gbk", "gb2312", "gb18030", "x-gbk", "cp936":
		return true
	}
	return false
}

// PacedFetcher spaces requests made through it at least one interval
// apart. One is built per adapter run, so the pacing applies per site.
type PacedFetcher struct {
	next    Fetcher
	limiter *rate.Limiter
}

// NewPacedFetcher wraps next. A non-positive interval disables pacing and
// returns next unchanged.
func NewPacedFetcher(next Fetcher, interval time.Duration) Fetcher {
	if interval <= 0 {
		return next
	}
	return &PacedFetcher{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Fetch waits for the limiter, then delegates.
func (p *PacedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", &TransportError{URL: url, Err: err}
	}
	return p.next.Fetch(ctx, url)
}
