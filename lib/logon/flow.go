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

// Package logon drives the authentication state machine against a web
// identity provider: credential logon, the two-step challenge over
// trusted devices, and session acquisition.
//
// Error policy, per entry point: Logon absorbs every failure into a
// terminal state and never returns an error, so its caller always ends
// up with a resolvable state; the cause stays readable via Flow.Err.
// RequestCode propagates every failure. SubmitCode absorbs exactly one
// failure, the wrong-code service error, and propagates the rest. The
// asymmetry is deliberate: credential logon is the outermost entry
// point and its callers branch on state, while the two-step calls run
// inside an interactive loop whose caller needs the error to decide
// whether to re-prompt.
package logon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gravitational/trace"

	"github.com/golava/golava-applepie"
	"github.com/golava/golava-applepie/lib/transport"
)

// ErrInvalidCredentials is recorded on the flow when the provider
// rejects the supplied credentials.
var ErrInvalidCredentials = &trace.AccessDeniedError{Message: "invalid account credentials"}

// FlowConfig holds flow construction parameters.
type FlowConfig struct {
	// Transport sends the flow's requests and owns its cookie and
	// token state. Required.
	Transport Transport
	// Endpoints overrides the URL table. Ignored when Strategy is set.
	Endpoints Endpoints
	// Strategy overrides the provider steps. Defaults to the web
	// strategy over Transport and Endpoints.
	Strategy Strategy
	// Logger emits flow logs.
	Logger *slog.Logger
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *FlowConfig) CheckAndSetDefaults() error {
	if c.Transport == nil {
		return trace.BadParameter("missing Transport")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Strategy == nil {
		strategy, err := NewWebStrategy(c.Transport, c.Endpoints, c.Logger)
		if err != nil {
			return trace.Wrap(err)
		}
		c.Strategy = strategy
	}
	return nil
}

// Flow is one authentication attempt. It holds the attempt's
// accumulated tokens and artifacts as named fields and is mutated by
// its own methods only. A flow is not safe for concurrent use and is
// not reused across independent logons.
type Flow struct {
	cfg FlowConfig
	log *slog.Logger

	state         State
	authToken     *AuthToken
	logonAuth     *LogonAuth
	pendingDevice *TrustedDevice
	session       *Session
	err           error
}

// NewFlow returns a flow in the unauthenticated state.
func NewFlow(cfg FlowConfig) (*Flow, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Flow{
		cfg: cfg,
		log: cfg.Logger.With(
			applepie.ComponentKey, applepie.ComponentLogon,
			"attempt", uuid.NewString(),
		),
		state: StateUnauthenticated,
	}, nil
}

// State returns the flow's current state.
func (f *Flow) State() State {
	return f.state
}

// Session returns the session once the flow reached StateSuccess.
func (f *Flow) Session() *Session {
	return f.session
}

// LogonAuth returns the latest authentication progress descriptor.
func (f *Flow) LogonAuth() *LogonAuth {
	return f.logonAuth
}

// TrustedDevices returns the devices eligible for code delivery in the
// latest descriptor.
func (f *Flow) TrustedDevices() []TrustedDevice {
	if f.logonAuth == nil {
		return nil
	}
	return f.logonAuth.TrustedDevices
}

// Err returns the failure absorbed by the last Logon call, if any.
func (f *Flow) Err() error {
	return f.err
}

// Logon authenticates with credentials and returns the resulting state.
// It never returns an error: every failure resolves to a terminal state
// and the cause is kept on the flow.
func (f *Flow) Logon(ctx context.Context, creds Credentials) State {
	f.err = nil
	state, err := f.logon(ctx, creds)
	if err != nil {
		f.err = err
		f.log.WarnContext(ctx, "Logon did not reach a session.",
			"state", state.String(),
			"error", err,
		)
	}
	f.state = state
	return f.state
}

func (f *Flow) logon(ctx context.Context, creds Credentials) (State, error) {
	token, err := f.ensureAuthToken(ctx)
	if err != nil {
		return StateFailedUnexpected, trace.Wrap(err)
	}

	resp, err := f.cfg.Strategy.SignIn(ctx, token, creds)
	if err != nil {
		return StateFailedUnexpected, trace.Wrap(err)
	}
	switch {
	case resp.OK():
		// The account has no challenge requirement, the session is
		// ready to fetch.
		return f.completeSession(ctx)
	case resp.StatusCode == http.StatusForbidden:
		return StateFailedInvalidCredentials, trace.Wrap(ErrInvalidCredentials)
	case resp.StatusCode == http.StatusConflict:
		return f.beginTwoStep(ctx, token, resp)
	default:
		return StateFailedUnexpected, trace.Wrap(resp.Err())
	}
}

// beginTwoStep handles the 409 challenge response. Its body is
// meaningful despite the non-success status: it carries the LogonAuth
// descriptor, and its headers carry the continuity token for every
// request until the challenge completes.
func (f *Flow) beginTwoStep(ctx context.Context, token AuthToken, resp *transport.Response) (State, error) {
	var auth LogonAuth
	if err := json.Unmarshal(resp.Body, &auth); err != nil {
		return StateFailedUnexpected, trace.BadParameter("decoding two-step challenge payload: %v", err)
	}
	if auth.AuthType != AuthTypeHSA {
		return StateFailedUnexpected, trace.BadParameter("two-step challenge declares auth type %q, expected %q", auth.AuthType, AuthTypeHSA)
	}
	sessionID := resp.Headers.Get(transport.HeaderSessionID)
	scnt := resp.Headers.Get(transport.HeaderScnt)
	if sessionID == "" || scnt == "" {
		return StateFailedUnexpected, trace.BadParameter("two-step challenge response is missing continuity headers")
	}
	f.cfg.Transport.SetTwoStepToken(&transport.TwoStepToken{
		SessionID: sessionID,
		Scnt:      scnt,
	})

	fresh, err := f.cfg.Strategy.EnumerateTwoStep(ctx, token)
	if err != nil {
		return StateFailedUnexpected, trace.Wrap(err)
	}
	f.logonAuth = fresh
	if fresh.TwoStepRequired {
		f.log.InfoContext(ctx, "Two-step verification required.",
			"trusted_devices", len(fresh.TrustedDevices),
		)
		return StateTwoStepSelectDevice, nil
	}
	return f.completeSession(ctx)
}

// RequestCode asks the provider to deliver a verification code to
// device and remembers it as the pending device. Failures propagate.
func (f *Flow) RequestCode(ctx context.Context, device TrustedDevice) error {
	token, err := f.ensureAuthToken(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	if err := f.cfg.Strategy.SendCode(ctx, token, device); err != nil {
		return trace.Wrap(err)
	}
	f.pendingDevice = &device
	f.state = StateTwoStepCode
	return nil
}

// SubmitCode verifies a code against the pending device. A wrong code
// keeps the flow in StateTwoStepCode and returns nil so the caller can
// retry; every other failure propagates. Submitting without a pending
// device recomputes the state from the latest descriptor instead of
// calling the provider.
func (f *Flow) SubmitCode(ctx context.Context, code string) error {
	if f.pendingDevice == nil {
		if len(f.TrustedDevices()) > 0 {
			f.state = StateTwoStepSelectDevice
		} else {
			f.state = StateFailedNoTrustedDevice
		}
		return nil
	}

	token, err := f.ensureAuthToken(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	resp, err := f.cfg.Strategy.VerifyCode(ctx, token, *f.pendingDevice, code)
	if err != nil {
		return trace.Wrap(err)
	}
	if !resp.OK() {
		if resp.StatusCode == http.StatusBadRequest && resp.HasServiceError(CodeIncorrectVerification) {
			f.log.InfoContext(ctx, "Incorrect verification code, waiting for retry.")
			return nil
		}
		return trace.Wrap(resp.Err(), "verifying two-step code")
	}

	state, err := f.completeSession(ctx)
	if err != nil {
		return trace.Wrap(err)
	}
	f.pendingDevice = nil
	f.state = state
	return nil
}

// ensureAuthToken returns the cached service key, fetching it on first
// use. A token without a service key is unusable and fatal.
func (f *Flow) ensureAuthToken(ctx context.Context) (AuthToken, error) {
	if f.authToken != nil {
		return *f.authToken, nil
	}
	token, err := f.cfg.Strategy.FetchAuthToken(ctx)
	if err != nil {
		return AuthToken{}, trace.Wrap(err)
	}
	if token.ServiceKey == "" {
		return AuthToken{}, trace.BadParameter("service key response carries no key")
	}
	f.authToken = &token
	return token, nil
}

func (f *Flow) completeSession(ctx context.Context) (State, error) {
	session, err := f.cfg.Strategy.FetchSession(ctx)
	if err != nil {
		return StateFailedUnexpected, trace.Wrap(err)
	}
	f.session = session
	f.log.InfoContext(ctx, "Authentication complete.",
		"user", session.User.Email,
		"team", session.Provider.Name,
	)
	return StateSuccess, nil
}
