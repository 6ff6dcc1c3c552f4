package briteverify

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/samvad-hq/briteverify-go/pkg/httpclient"
)

type fakeResponse struct {
	status int
	body   string
	header http.Header
}

func (r fakeResponse) Body() []byte    { return []byte(r.body) }
func (r fakeResponse) StatusCode() int { return r.status }
func (r fakeResponse) Header() http.Header {
	if r.header == nil {
		return http.Header{}
	}
	return r.header
}

// fakeTransport records requests and answers them from a handler.
type fakeTransport struct {
	mu       sync.Mutex
	requests []httpclient.Request
	handle   func(req httpclient.Request) (int, string)
	err      error
}

func (f *fakeTransport) Get(ctx context.Context, url string, headers map[string]string) (httpclient.Response, error) {
	return f.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: url, Headers: headers})
}

func (f *fakeTransport) Do(_ context.Context, req httpclient.Request) (httpclient.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	handle, err := f.handle, f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return fakeResponse{status: http.StatusOK, body: "{}"}, nil
	}
	status, body := handle(req)
	return fakeResponse{status: status, body: body}, nil
}

func (f *fakeTransport) calls() []httpclient.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]httpclient.Request(nil), f.requests...)
}

func newTestClient(t *testing.T, tr *fakeTransport, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithHTTPClient(tr),
		WithV1BaseURL("https://bv.test/api/v1"),
		WithV3BaseURL("https://bv.test/api/v3"),
	}, opts...)
	c, err := New("test-key", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) InfoObj(string, string, interface{})  {}
func (l *recordingLogger) DebugObj(string, string, interface{}) {}
func (l *recordingLogger) ErrorObj(string, string, interface{}) {}
func (l *recordingLogger) WarnObj(msg string, _ string, _ interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

const (
	listJSONTemplate = `{"id":"%s","state":"%s","total_verified":0,"total_verified_emails":0,"total_verified_phones":0,"page_count":%s,"progress":0,"created_at":"08-10-2021 04:03 pm","expiration_date":null,"results_path":null}`
)
