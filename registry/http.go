// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package registry

import (
	"context"
	"io"
	"net/http"
	"net/http/httputil"

	"github.com/juju/errors"
	"gopkg.in/httprequest.v1"
)

const (
	// JSON is the media type of registry requests and responses.
	JSON = "application/json"

	// UserAgent identifies charmkit to the registry.
	UserAgent = "charmkit"
)

// Logger is the logging interface used by the registry client.
type Logger interface {
	Errorf(string, ...any)
	Debugf(string, ...any)
	Tracef(string, ...any)
	IsTraceEnabled() bool
}

// Transport performs HTTP requests. *http.Client satisfies it.
type Transport interface {
	Do(*http.Request) (*http.Response, error)
}

// APIRequester wraps a Transport, turning unsuccessful responses into
// errors. A 404 becomes a not found error.
type APIRequester struct {
	transport Transport
	logger    Logger
}

// NewAPIRequester returns an APIRequester sending requests through
// transport.
func NewAPIRequester(transport Transport, logger Logger) *APIRequester {
	return &APIRequester{
		transport: transport,
		logger:    logger,
	}
}

// Do implements Transport.
func (t *APIRequester) Do(req *http.Request) (*http.Response, error) {
	t.trace(req.Method+" request", func() ([]byte, error) {
		return httputil.DumpRequest(req, true)
	})
	resp, err := t.transport.Do(req)
	if err != nil {
		return nil, errors.Trace(err)
	}
	t.trace(req.Method+" response", func() ([]byte, error) {
		return httputil.DumpResponse(resp, true)
	})

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	return nil, t.statusError(req, resp)
}

// statusError describes an unsuccessful response.
func (t *APIRequester) statusError(req *http.Request, resp *http.Response) error {
	target := req.URL.String()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFoundf("%q", target)
	case resp.StatusCode >= http.StatusInternalServerError:
		return errors.Errorf("server error %q", target)
	}

	var body ErrorResponse
	if resp.Header.Get("Content-Type") == JSON {
		_ = httprequest.UnmarshalJSONResponse(resp, &body)
	}
	if body.Message == "" {
		return errors.Errorf("unexpected status %d from registry %q", resp.StatusCode, target)
	}
	t.logger.Errorf("registry request %q failed: %s", target, body.Message)
	return errors.Errorf("registry request %q failed: %s", target, body.Message)
}

func (t *APIRequester) trace(what string, dump func() ([]byte, error)) {
	if !t.logger.IsTraceEnabled() {
		return
	}
	data, err := dump()
	if err != nil {
		t.logger.Tracef("%s: cannot dump: %v", what, err)
		return
	}
	t.logger.Tracef("%s %s", what, data)
}

// RESTClient fetches JSON documents.
type RESTClient interface {
	// Get decodes the JSON document at url into result.
	Get(ctx context.Context, url string, result interface{}) error
}

// HTTPRESTClient is a RESTClient talking HTTP.
type HTTPRESTClient struct {
	transport Transport
	headers   http.Header
}

// NewHTTPRESTClient returns a client sending requests through transport,
// with headers added to every request.
func NewHTTPRESTClient(transport Transport, headers http.Header) *HTTPRESTClient {
	return &HTTPRESTClient{
		transport: transport,
		headers:   headers,
	}
}

// Get implements RESTClient.
func (c *HTTPRESTClient) Get(ctx context.Context, url string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Annotate(err, "can not make new request")
	}
	req.Header = c.headers.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.Header.Set("Accept", JSON)
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.transport.Do(req)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httprequest.UnmarshalJSONResponse(resp, result); err != nil {
		return errors.Annotate(err, "registry client get")
	}
	return nil
}
