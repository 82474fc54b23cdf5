// Package fetch provides the HTTP transport for retrieving raw course listings.
// It returns the response body decoded as text and never interprets the payload.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/jonathan/course-crawler/internal/types"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; CourseCrawler/1.0)"

// DefaultBaseURL is the course listing endpoint.
const DefaultBaseURL = "https://onepiece.nchu.edu.tw/cofsys/plsql/json_for_course"

// CareerParam is the query parameter carrying the career code.
const CareerParam = "p_career"

// Result holds the decoded body of one fetch.
type Result struct {
	URL         string
	Body        string
	ContentType string
	StatusCode  int
	Duration    time.Duration
}

// Error represents a transport failure: the request could not be made, or the
// server answered with a non-success status.
type Error struct {
	URL        string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

func (o *Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// URL performs a GET request and returns the body decoded as text.
// On a non-success status the Result is returned together with an *Error.
func URL(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	// Validate URL
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{
			URL:     urlStr,
			Message: "invalid URL",
			Cause:   err,
		}
	}

	return do(ctx, opts.httpClient(), urlStr, opts)
}

func do(ctx context.Context, client *http.Client, urlStr string, opts *Options) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "failed to create request",
			Cause:   err,
		}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "HTTP request failed",
			Cause:   err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{
			URL:        urlStr,
			Message:    "failed to read response body",
			StatusCode: resp.StatusCode,
			Cause:      err,
		}
	}

	contentType := resp.Header.Get("Content-Type")
	result := &Result{
		URL:         urlStr,
		Body:        decodeBody(bodyBytes, contentType),
		ContentType: contentType,
		StatusCode:  resp.StatusCode,
		Duration:    time.Since(start),
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, &Error{
			URL:        urlStr,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	return result, nil
}

// decodeBody converts body to a UTF-8 string using the charset declared in contentType.
// Missing, unknown or UTF-8 charsets leave the bytes as they are.
func decodeBody(body []byte, contentType string) string {
	if contentType == "" {
		return string(body)
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil || params["charset"] == "" {
		return string(body)
	}
	enc, err := htmlindex.Get(params["charset"])
	if err != nil {
		return string(body)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return string(body)
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

// Client fetches course listings for one endpoint.
type Client struct {
	baseURL *url.URL
	options *Options
}

// NewClient creates a Client for baseURL. A nil opts uses DefaultOptions.
func NewClient(baseURL string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &Error{
			URL:     baseURL,
			Message: "invalid base URL",
			Cause:   err,
		}
	}
	// Share one http.Client across fetches
	shared := *opts
	shared.HTTPClient = opts.httpClient()
	return &Client{
		baseURL: parsed,
		options: &shared,
	}, nil
}

// CareerURL returns the listing URL for career.
func (c *Client) CareerURL(career types.Career) string {
	u := *c.baseURL
	q := u.Query()
	q.Set(CareerParam, career.Code())
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch retrieves the raw listing for career.
// A non-success status yields both the Result and an *Error.
func (c *Client) Fetch(ctx context.Context, career types.Career) (*Result, error) {
	return URL(ctx, c.CareerURL(career), c.options)
}
