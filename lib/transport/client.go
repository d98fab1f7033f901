/*
Copyright 2024 Golava, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package transport sends the requests of one authentication attempt.
// It owns the attempt's cookie jar, its anti-forgery token store and the
// two-step continuity token, so independent attempts never share wire
// state. The client reports non-success responses as values, not errors:
// deciding whether a 409 is a protocol step or a failure belongs to the
// caller.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/golava/golava-applepie"
	"github.com/golava/golava-applepie/lib/csrf"
	"github.com/golava/golava-applepie/lib/defaults"
)

const (
	// HeaderSessionID carries the two-step session id during a
	// multi-factor challenge.
	HeaderSessionID = "X-Apple-Id-Session-Id"

	// HeaderScnt carries the two-step request counter during a
	// multi-factor challenge.
	HeaderScnt = "scnt"
)

// TwoStepToken is the continuity pair issued with a two-step challenge.
// While set on a client it accompanies every outgoing request.
type TwoStepToken struct {
	// SessionID is the X-Apple-Id-Session-Id header value.
	SessionID string
	// Scnt is the scnt header value.
	Scnt string
}

// Request describes one outgoing call.
type Request struct {
	// Method is the HTTP method.
	Method string
	// URL is the absolute target URL.
	URL string
	// Headers are caller supplied headers. They are merged last and win
	// over every header the transport sets on its own.
	Headers http.Header
	// Kind declares how the body is serialized.
	Kind ContentKind
	// Body is the payload for KindJSON requests.
	Body any
	// Form is the payload for KindForm requests.
	Form url.Values
}

// Config holds transport construction parameters. There is no global
// pipeline state, every knob is set here.
type Config struct {
	// UserAgent overrides the product identifier sent with requests.
	UserAgent string
	// ExtraHeaders are added to every request before the caller's own
	// headers are merged.
	ExtraHeaders map[string]string
	// Insecure skips TLS certificate verification. Test use only.
	Insecure bool
	// CertPool overrides the root CA pool.
	CertPool *x509.CertPool
	// Timeout is the end-to-end deadline for a single request.
	Timeout time.Duration
	// HTTPClient overrides the underlying HTTP client. Its Jar is
	// ignored, cookie handling stays with the transport.
	HTTPClient *http.Client
	// Clock is used for cookie expiry decisions.
	Clock clockwork.Clock
	// Logger emits transport debug logs.
	Logger *slog.Logger
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.UserAgent == "" {
		c.UserAgent = applepie.UserAgent
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.HTTPRequestTimeout
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs:            c.CertPool,
					InsecureSkipVerify: c.Insecure,
				},
				IdleConnTimeout: defaults.HTTPIdleTimeout,
			},
			Timeout: c.Timeout,
		}
	}
	// The transport feeds the jar from successful responses only, a jar
	// on the HTTP client would absorb cookies from failures too.
	c.HTTPClient.Jar = nil
	return nil
}

// Client sends requests on behalf of one authentication attempt.
type Client struct {
	cfg     Config
	log     *slog.Logger
	jar     *Jar
	tokens  *csrf.Store
	twoStep *TwoStepToken
}

// NewClient returns a client with an empty jar and token store.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	jar, err := NewJar(cfg.Clock)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &Client{
		cfg:    cfg,
		log:    cfg.Logger.With(applepie.ComponentKey, applepie.ComponentTransport),
		jar:    jar,
		tokens: csrf.NewStore(),
	}, nil
}

// Jar returns the client's cookie jar.
func (c *Client) Jar() *Jar {
	return c.jar
}

// CSRF returns the client's anti-forgery token store.
func (c *Client) CSRF() *csrf.Store {
	return c.tokens
}

// SetTwoStepToken installs or clears the two-step continuity token.
func (c *Client) SetTwoStepToken(tok *TwoStepToken) {
	c.twoStep = tok
}

// TwoStepToken returns the installed continuity token, if any.
func (c *Client) TwoStepToken() *TwoStepToken {
	return c.twoStep
}

// Do sends req and returns its classified response. When target is
// non-nil and the response is successful JSON, the body is decoded into
// target. Non-success responses are returned with a nil error, the
// caller decides what they mean; only transport level failures (bad
// request construction, network errors, undecodable success bodies)
// return a non-nil error.
func (c *Client) Do(ctx context.Context, req *Request, target any) (*Response, error) {
	httpReq, class, err := c.buildRequest(ctx, req, target)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	httpResp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	defer httpResp.Body.Close()

	resp, err := readResponse(httpResp)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	c.log.DebugContext(ctx, "Completed request.",
		"method", req.Method,
		"url", req.URL,
		"status", resp.StatusCode,
		"kind", resp.Kind.String(),
	)

	if !resp.OK() {
		// Failed responses never touch the jar or the token store. A
		// structured error payload is still worth parsing for the
		// caller's status judgment.
		if resp.Kind == KindJSON {
			var details ErrorDetails
			if err := json.Unmarshal(resp.Body, &details); err == nil && !details.IsZero() {
				resp.Details = &details
			}
		}
		return resp, nil
	}

	c.jar.SetCookies(httpReq.URL, httpResp.Cookies())
	if tok, ok := csrf.FromHeaders(class, resp.Headers); ok {
		c.tokens.Put(tok)
	}
	if target != nil && resp.Kind == KindJSON {
		if err := json.Unmarshal(resp.Body, target); err != nil {
			return nil, trace.BadParameter("decoding %v response from %v: %v", resp.Kind, req.URL, err)
		}
	}
	return resp, nil
}

// buildRequest assembles the outgoing request and resolves the
// anti-forgery class of the expected response payload.
func (c *Client) buildRequest(ctx context.Context, req *Request, target any) (*http.Request, csrf.Class, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, csrf.ClassUndefined, trace.Wrap(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, csrf.ClassUndefined, trace.Wrap(err)
	}

	h := httpReq.Header
	h.Set("User-Agent", c.cfg.UserAgent)
	h.Set("Connection", "keep-alive")
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))
	httpReq.ContentLength = int64(len(body))

	for _, cookie := range c.jar.Cookies(httpReq.URL) {
		httpReq.AddCookie(cookie)
	}
	if c.twoStep != nil {
		h.Set(HeaderSessionID, c.twoStep.SessionID)
		h.Set(HeaderScnt, c.twoStep.Scnt)
	}
	class := csrf.ClassOf(target)
	if tok, ok := c.tokens.Get(class); ok {
		tok.SetHeaders(h)
	}
	for name, value := range c.cfg.ExtraHeaders {
		h.Set(name, value)
	}
	// Caller headers merge last and override everything above.
	for name, values := range req.Headers {
		h.Del(name)
		for _, v := range values {
			h.Add(name, v)
		}
	}
	return httpReq, class, nil
}

// encodeBody serializes the request payload per its declared kind. Kinds
// with no request-side serialization produce an empty body.
func encodeBody(req *Request) (body []byte, contentType string, err error) {
	switch req.Kind {
	case KindJSON:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", trace.Wrap(err)
		}
		// No charset parameter: the provider rejects bodies that
		// declare an encoding it did not ask for.
		return data, "application/json", nil
	case KindForm:
		return []byte(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	case KindNone:
		return nil, "", nil
	default:
		return []byte{}, "", nil
	}
}

// readResponse drains and classifies an HTTP response.
func readResponse(httpResp *http.Response) (*Response, error) {
	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Kind:       classifyMediaType(httpResp.Header.Get("Content-Type")),
		Body:       raw,
	}
	if resp.Kind != KindBinary {
		resp.Text = string(raw)
	}
	return resp, nil
}
