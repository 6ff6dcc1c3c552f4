package briteverify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/samvad-hq/briteverify-go/pkg/httpclient"
)

// Defaults used by New when no option overrides them.
const (
	DefaultV1BaseURL = "https://bpi.briteverify.com/api/v1"
	DefaultV3BaseURL = "https://bulk-api.briteverify.com/api/v3"
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "briteverify-go"

	maxBodySummary = 256
)

// RetryPolicy configures retries of throttled (429) responses.
type RetryPolicy = httpclient.RetryPolicy

// Client talks to the BriteVerify v1 (single) and v3 (bulk) APIs. It holds
// only immutable configuration and is safe for concurrent use.
type Client struct {
	apiKey    string
	v1        string
	v3        string
	http      httpclient.Client
	observer  Observer
	log       Logger
	pageLimit int
}

type options struct {
	v1BaseURL string
	v3BaseURL string
	http      httpclient.Client
	timeout   time.Duration
	retry     RetryPolicy
	userAgent string
	observer  Observer
	log       Logger
}

// Option customizes a Client.
type Option func(*options)

// WithV1BaseURL overrides the single-verification API base.
func WithV1BaseURL(u string) Option { return func(o *options) { o.v1BaseURL = u } }

// WithV3BaseURL overrides the bulk API base.
func WithV3BaseURL(u string) Option { return func(o *options) { o.v3BaseURL = u } }

// WithHTTPClient replaces the transport. Timeout, retry and user agent
// options are ignored when set.
func WithHTTPClient(c httpclient.Client) Option { return func(o *options) { o.http = c } }

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithRetry enables retries of 429 responses honoring Retry-After.
func WithRetry(p RetryPolicy) Option { return func(o *options) { o.retry = p } }

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option { return func(o *options) { o.userAgent = ua } }

// WithObserver receives the start and outcome of every request.
func WithObserver(obs Observer) Option { return func(o *options) { o.observer = obs } }

// WithLogger sets the logger used for client diagnostics. Nil is silent.
func WithLogger(l Logger) Option { return func(o *options) { o.log = l } }

// New builds a client. It performs no network calls.
func New(apiKey string, opts ...Option) (*Client, error) {
	key, err := normalizeAPIKey(apiKey)
	if err != nil {
		return nil, err
	}
	o := options{
		v1BaseURL: DefaultV1BaseURL,
		v3BaseURL: DefaultV3BaseURL,
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	v1, err := normalizeBaseURL("v1_base_url", o.v1BaseURL)
	if err != nil {
		return nil, err
	}
	v3, err := normalizeBaseURL("v3_base_url", o.v3BaseURL)
	if err != nil {
		return nil, err
	}
	transport := o.http
	if transport == nil {
		transport = httpclient.NewRestyClient(o.timeout,
			httpclient.WithRetry(o.retry),
			httpclient.WithUserAgent(o.userAgent),
		)
	}
	observer := o.observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Client{
		apiKey:    key,
		v1:        v1,
		v3:        v3,
		http:      transport,
		observer:  observer,
		log:       ensureLogger(o.log),
		pageLimit: 4,
	}, nil
}

func normalizeAPIKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if len(key) >= len("apikey:") && strings.EqualFold(key[:len("apikey:")], "apikey:") {
		key = strings.TrimSpace(key[len("apikey:"):])
	}
	if key == "" {
		return "", ErrMissingAPIKey
	}
	if strings.IndexFunc(key, unicode.IsControl) >= 0 {
		return "", ErrInvalidAPIKey
	}
	return key, nil
}

func normalizeBaseURL(field, raw string) (string, error) {
	v := strings.TrimRight(strings.TrimSpace(raw), "/")
	u, err := url.Parse(v)
	if err != nil {
		return "", &ValidationError{Field: field, Reason: "unparsable url", Err: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &ValidationError{Field: field, Reason: fmt.Sprintf("expected an absolute http(s) url, got %q", raw)}
	}
	return v, nil
}

func (c *Client) v1URL(parts ...string) string { return joinURL(c.v1, parts) }
func (c *Client) v3URL(parts ...string) string { return joinURL(c.v3, parts) }

func joinURL(base string, parts []string) string {
	var b strings.Builder
	b.WriteString(base)
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}

// call describes one request and how its response is interpreted.
type call struct {
	operation string
	method    string
	url       string
	query     url.Values
	body      any
	accept    []int
	// jobID turns a 404, or a 400 saying the list is missing, into a
	// *NotFoundError.
	jobID string
}

func (c *Client) call(ctx context.Context, cl call, out any) error {
	info := RequestInfo{
		ID:        uuid.NewString(),
		Operation: cl.operation,
		Method:    cl.method,
		URL:       cl.url,
		StartedAt: time.Now(),
	}
	c.observer.RequestStarted(ctx, info)

	resp, err := c.http.Do(ctx, httpclient.Request{
		Method: cl.method,
		URL:    cl.url,
		Headers: map[string]string{
			"Authorization": "ApiKey: " + c.apiKey,
			"Accept":        "application/json",
		},
		Query: cl.query,
		Body:  cl.body,
	})
	outcome := RequestOutcome{Duration: time.Since(info.StartedAt)}
	if err != nil {
		outcome.Err = &TransportError{Operation: cl.operation, Err: err}
		c.observer.RequestFinished(ctx, info, outcome)
		return outcome.Err
	}
	outcome.StatusCode = resp.StatusCode()

	if !slices.Contains(cl.accept, resp.StatusCode()) {
		outcome.Err = c.statusError(cl, resp)
		c.observer.RequestFinished(ctx, info, outcome)
		return outcome.Err
	}
	if out != nil && len(bytes.TrimSpace(resp.Body())) > 0 {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			outcome.Err = fmt.Errorf("briteverify: %s: decode response: %w", cl.operation, err)
		}
	}
	c.observer.RequestFinished(ctx, info, outcome)
	return outcome.Err
}

func (c *Client) statusError(cl call, resp httpclient.Response) error {
	remote := parseRemoteError(resp.Body())
	if cl.jobID != "" && (resp.StatusCode() == http.StatusNotFound ||
		resp.StatusCode() == http.StatusBadRequest && remote.reportsMissingList()) {
		return &NotFoundError{JobID: cl.jobID, Remote: remote}
	}
	herr := &HTTPError{
		Operation:  cl.operation,
		StatusCode: resp.StatusCode(),
		Remote:     remote,
	}
	if remote == nil {
		herr.Body = summarizeBody(resp)
	}
	return herr
}

func parseRemoteError(body []byte) *ListError {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil
	}
	var le ListError
	if err := json.Unmarshal(body, &le); err != nil {
		return nil
	}
	if le.Status == "" && le.Message == "" {
		// v1 errors use {"error": "..."}.
		var generic struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &generic); err != nil || blank(generic.Error) {
			return nil
		}
		le.Message = strings.TrimSpace(generic.Error)
	}
	return &le
}

// summarizeBody shortens a non-JSON body. HTML error pages (load balancers,
// maintenance pages) are reduced to their title and first heading.
func summarizeBody(resp httpclient.Response) string {
	body := bytes.TrimSpace(resp.Body())
	if len(body) == 0 {
		return ""
	}
	ct := strings.ToLower(resp.Header().Get("Content-Type"))
	if strings.Contains(ct, "html") || bytes.HasPrefix(body, []byte("<")) {
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			title := collapseSpace(doc.Find("title").First().Text())
			heading := collapseSpace(doc.Find("h1").First().Text())
			switch {
			case title != "" && heading != "" && !strings.EqualFold(title, heading):
				return truncate(title + " - " + heading)
			case title != "":
				return truncate(title)
			case heading != "":
				return truncate(heading)
			}
			if text := collapseSpace(doc.Find("body").Text()); text != "" {
				return truncate(text)
			}
		}
	}
	return truncate(collapseSpace(string(body)))
}

func collapseSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxBodySummary {
		return s
	}
	return string(r[:maxBodySummary]) + "..."
}
