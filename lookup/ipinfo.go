package lookup

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/imnitish-dev/ipenrich/details"
)

const (
	DefaultIPInfoURL     = "https://ipinfo.io"
	DefaultLookupTimeout = 10 * time.Second
)

type ipinfoOptions struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// IPInfoOption configures NewIPInfo.
type IPInfoOption func(*ipinfoOptions)

// WithBaseURL points the client at another API host, e.g. a test server.
func WithBaseURL(baseURL string) IPInfoOption {
	return func(o *ipinfoOptions) { o.baseURL = baseURL }
}

// WithTimeout bounds each request.
func WithTimeout(timeout time.Duration) IPInfoOption {
	return func(o *ipinfoOptions) { o.timeout = timeout }
}

// WithHTTPClient makes resty use client.
func WithHTTPClient(client *http.Client) IPInfoOption {
	return func(o *ipinfoOptions) { o.httpClient = client }
}

// IPInfo queries the ipinfo.io API. Every FetchDetails call issues exactly
// one request; failures are not retried.
type IPInfo struct {
	client *resty.Client
}

// NewIPInfo returns a handler authenticated with token.
func NewIPInfo(token string, opts ...IPInfoOption) *IPInfo {
	o := ipinfoOptions{
		baseURL: DefaultIPInfoURL,
		timeout: DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var client *resty.Client
	if o.httpClient != nil {
		client = resty.NewWithClient(o.httpClient)
	} else {
		client = resty.New()
	}
	client.
		SetBaseURL(o.baseURL).
		SetTimeout(o.timeout).
		SetAuthToken(token).
		SetHeader("Accept", "application/json")

	return &IPInfo{client: client}
}

// NewIPInfoFactory returns a Factory building IPInfo handlers with opts.
func NewIPInfoFactory(opts ...IPInfoOption) Factory {
	return func(token string) (Handler, error) {
		return NewIPInfo(token, opts...), nil
	}
}

// FetchDetails issues GET /<ip> and decodes the body into an ordered record.
func (c *IPInfo) FetchDetails(ctx context.Context, ip string) (*details.Record, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get("/" + url.PathEscape(ip))
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &APIError{
			StatusCode: resp.StatusCode(),
			Message:    apiErrorMessage(resp.Body()),
		}
	}
	return details.DecodeRecord(resp.Body())
}

// apiErrorMessage extracts the message of an ipinfo error body:
// {"status": 404, "error": {"title": "...", "message": "..."}}.
func apiErrorMessage(body []byte) string {
	rec, err := details.DecodeRecord(body)
	if err != nil {
		return ""
	}
	if msg := rec.String("error", "message"); msg != "" {
		return msg
	}
	if title := rec.String("error", "title"); title != "" {
		return title
	}
	return rec.String("error")
}
