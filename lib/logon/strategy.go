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

package logon

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gravitational/trace"

	"github.com/golava/golava-applepie"
	"github.com/golava/golava-applepie/lib/transport"
)

// Transport is the wire dependency of the logon flow. *transport.Client
// satisfies it, tests substitute fakes.
type Transport interface {
	// Do sends one request, see transport.Client.Do.
	Do(ctx context.Context, req *transport.Request, target any) (*transport.Response, error)
	// SetTwoStepToken installs or clears the two-step continuity token
	// attached to subsequent requests.
	SetTwoStepToken(tok *transport.TwoStepToken)
}

// Strategy performs the provider specific steps of the logon protocol.
// The flow owns the state machine, the strategy owns the wire calls, so
// an alternate identity provider substitutes the strategy without
// touching the state machine.
type Strategy interface {
	// FetchAuthToken retrieves the pre-logon service key.
	FetchAuthToken(ctx context.Context) (AuthToken, error)
	// SignIn posts credentials. The raw response is returned for any
	// status, the flow judges 403 and 409 itself.
	SignIn(ctx context.Context, token AuthToken, creds Credentials) (*transport.Response, error)
	// EnumerateTwoStep fetches the authentication progress descriptor
	// during a challenge.
	EnumerateTwoStep(ctx context.Context, token AuthToken) (*LogonAuth, error)
	// SendCode asks the provider to deliver a code to device.
	SendCode(ctx context.Context, token AuthToken, device TrustedDevice) error
	// VerifyCode submits a code for device. Like SignIn it returns the
	// raw response, the flow decides whether a failure is recoverable.
	VerifyCode(ctx context.Context, token AuthToken, device TrustedDevice, code string) (*transport.Response, error)
	// FetchSession retrieves the session after a completed logon.
	FetchSession(ctx context.Context) (*Session, error)
}

// WebStrategy drives the standard web identity provider endpoints.
type WebStrategy struct {
	// Transport sends the requests.
	Transport Transport
	// Endpoints is the resolved URL table.
	Endpoints Endpoints
	// Logger emits strategy debug logs.
	Logger *slog.Logger
}

// NewWebStrategy returns a strategy over transport and endpoints.
func NewWebStrategy(tport Transport, endpoints Endpoints, logger *slog.Logger) (*WebStrategy, error) {
	if tport == nil {
		return nil, trace.BadParameter("missing transport")
	}
	if err := endpoints.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebStrategy{
		Transport: tport,
		Endpoints: endpoints,
		Logger:    logger.With(applepie.ComponentKey, applepie.Component(applepie.ComponentLogon, "strategy")),
	}, nil
}

// authHeaders returns the protocol headers every identity provider call
// carries.
func authHeaders(token AuthToken) http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/json, text/javascript")
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set(HeaderWidgetKey, token.ServiceKey)
	return h
}

func (s *WebStrategy) FetchAuthToken(ctx context.Context) (AuthToken, error) {
	var token AuthToken
	resp, err := s.Transport.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    s.Endpoints.ServiceKeyURL,
	}, &token)
	if err != nil {
		return AuthToken{}, trace.Wrap(err)
	}
	if !resp.OK() {
		return AuthToken{}, trace.Wrap(resp.Err(), "fetching service key")
	}
	return token, nil
}

func (s *WebStrategy) SignIn(ctx context.Context, token AuthToken, creds Credentials) (*transport.Response, error) {
	s.Logger.DebugContext(ctx, "Signing in.", "credentials", creds)
	resp, err := s.Transport.Do(ctx, &transport.Request{
		Method:  http.MethodPost,
		URL:     s.Endpoints.SignInURL,
		Headers: authHeaders(token),
		Kind:    transport.KindJSON,
		Body: signInRequest{
			AccountName: creds.Username,
			Password:    creds.Password,
			RememberMe:  true,
		},
	}, nil)
	return resp, trace.Wrap(err)
}

func (s *WebStrategy) EnumerateTwoStep(ctx context.Context, token AuthToken) (*LogonAuth, error) {
	var auth LogonAuth
	resp, err := s.Transport.Do(ctx, &transport.Request{
		Method:  http.MethodGet,
		URL:     s.Endpoints.TwoStepAuthURL,
		Headers: authHeaders(token),
	}, &auth)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if !resp.OK() {
		return nil, trace.Wrap(resp.Err(), "enumerating trusted devices")
	}
	return &auth, nil
}

func (s *WebStrategy) SendCode(ctx context.Context, token AuthToken, device TrustedDevice) error {
	s.Logger.DebugContext(ctx, "Requesting verification code.", "device", device.ID)
	resp, err := s.Transport.Do(ctx, &transport.Request{
		Method:  http.MethodPut,
		URL:     s.Endpoints.SecurityCodeURL(device.ID),
		Headers: authHeaders(token),
	}, nil)
	if err != nil {
		return trace.Wrap(err)
	}
	if !resp.OK() {
		return trace.Wrap(resp.Err(), "requesting verification code for device %v", device.ID)
	}
	return nil
}

func (s *WebStrategy) VerifyCode(ctx context.Context, token AuthToken, device TrustedDevice, code string) (*transport.Response, error) {
	resp, err := s.Transport.Do(ctx, &transport.Request{
		Method:  http.MethodPost,
		URL:     s.Endpoints.SecurityCodeURL(device.ID),
		Headers: authHeaders(token),
		Kind:    transport.KindJSON,
		Body:    verifyCodeRequest{Code: code},
	}, nil)
	return resp, trace.Wrap(err)
}

func (s *WebStrategy) FetchSession(ctx context.Context) (*Session, error) {
	var session Session
	resp, err := s.Transport.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		URL:    s.Endpoints.SessionURL,
	}, &session)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if !resp.OK() {
		return nil, trace.Wrap(resp.Err(), "fetching session")
	}
	return &session, nil
}

// signInRequest is the credential logon payload.
type signInRequest struct {
	AccountName string `json:"accountName"`
	Password    string `json:"password"`
	RememberMe  bool   `json:"rememberMe"`
}

// verifyCodeRequest is the code submission payload.
type verifyCodeRequest struct {
	Code string `json:"code"`
}
