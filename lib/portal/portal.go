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

// Package portal is the thin client for the developer portal API. It
// consumes the authenticated transport: the cookies acquired by the
// logon flow carry the session, and every payload type declares its
// anti-forgery class so the transport correlates tokens per class.
package portal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gravitational/trace"

	"github.com/golava/golava-applepie"
	"github.com/golava/golava-applepie/lib/csrf"
	"github.com/golava/golava-applepie/lib/defaults"
	"github.com/golava/golava-applepie/lib/transport"
)

// Doer sends portal requests. *transport.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req *transport.Request, target any) (*transport.Response, error)
}

// Config holds portal client construction parameters.
type Config struct {
	// Transport is the authenticated transport. Required.
	Transport Doer
	// TeamID scopes every call to one developer team. Required.
	TeamID string
	// BaseURL overrides the portal services base URL.
	BaseURL string
	// Platform selects the provisioning platform, defaults to "ios".
	Platform string
	// Logger emits portal logs.
	Logger *slog.Logger
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Transport == nil {
		return trace.BadParameter("missing Transport")
	}
	if c.TeamID == "" {
		return trace.BadParameter("missing TeamID")
	}
	if c.BaseURL == "" {
		c.BaseURL = fmt.Sprintf("https://%s/services-account/QH65B2/account", defaults.DeveloperHost)
	}
	if c.Platform == "" {
		c.Platform = "ios"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Client calls the developer portal on behalf of one team.
type Client struct {
	cfg Config
	log *slog.Logger
}

// NewClient returns a portal client over an authenticated transport.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Client{
		cfg: cfg,
		log: cfg.Logger.With(applepie.ComponentKey, applepie.ComponentPortal),
	}, nil
}

// Device is a device registered with the team.
type Device struct {
	// ID is the portal's device id.
	ID string `json:"deviceId"`
	// Name is the user assigned device name.
	Name string `json:"name"`
	// UDID is the hardware identifier.
	UDID string `json:"deviceNumber"`
	// Platform is the device platform label.
	Platform string `json:"devicePlatform"`
	// Status is "c" for enabled devices and "r" for disabled ones.
	Status string `json:"status"`
}

// Team is one developer team the account belongs to.
type Team struct {
	// ID is the team identifier used by every team scoped call.
	ID string `json:"teamId"`
	// Name is the team display name.
	Name string `json:"name"`
	// Type is the program type label.
	Type string `json:"type"`
	// Status reports whether the membership is active.
	Status string `json:"status"`
}

// CertRequest is a submitted certificate signing request.
type CertRequest struct {
	// ID is the portal's request id.
	ID string `json:"certRequestId"`
	// Name is the certificate display name.
	Name string `json:"name"`
	// Status is the human readable request status.
	Status string `json:"statusString"`
	// TypeID identifies the certificate type.
	TypeID string `json:"certificateTypeDisplayId"`
	// Expires is the certificate expiry as reported by the portal.
	Expires string `json:"expirationDateString"`
}

type devicesResponse struct {
	Devices []Device `json:"devices"`
	Total   int      `json:"totalRecords"`
}

func (*devicesResponse) CSRFClass() csrf.Class { return csrf.ClassDevices }

type deviceResponse struct {
	Device Device `json:"device"`
}

func (*deviceResponse) CSRFClass() csrf.Class { return csrf.ClassDevices }

type teamsResponse struct {
	Teams []Team `json:"teams"`
}

func (*teamsResponse) CSRFClass() csrf.Class { return csrf.ClassTeams }

type certRequestsResponse struct {
	CertRequests []CertRequest `json:"certRequests"`
	Total        int           `json:"totalRecords"`
}

func (*certRequestsResponse) CSRFClass() csrf.Class { return csrf.ClassCertificates }

type certRequestResponse struct {
	CertRequest CertRequest `json:"certRequest"`
}

func (*certRequestResponse) CSRFClass() csrf.Class { return csrf.ClassCertificates }

// teamForm returns the base form every team scoped call posts.
func (c *Client) teamForm() url.Values {
	return url.Values{"teamId": []string{c.cfg.TeamID}}
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, c.cfg.Platform, path)
}

// post sends one form encoded portal call and decodes its payload.
func (c *Client) post(ctx context.Context, endpoint string, form url.Values, target any) error {
	resp, err := c.cfg.Transport.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    endpoint,
		Kind:   transport.KindForm,
		Form:   form,
	}, target)
	if err != nil {
		return trace.Wrap(err)
	}
	if !resp.OK() {
		return trace.Wrap(resp.Err(), "calling %v", endpoint)
	}
	return nil
}

// ListDevices returns the team's registered devices.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	form := c.teamForm()
	form.Set("pageSize", strconv.Itoa(500))
	form.Set("pageNumber", strconv.Itoa(1))

	var payload devicesResponse
	if err := c.post(ctx, c.endpoint("device/listDevices.action"), form, &payload); err != nil {
		return nil, trace.Wrap(err)
	}
	return payload.Devices, nil
}

// RegisterDevice registers a device by UDID and returns its portal
// record.
func (c *Client) RegisterDevice(ctx context.Context, name, udid string) (*Device, error) {
	if name == "" || udid == "" {
		return nil, trace.BadParameter("device name and UDID are required")
	}
	form := c.teamForm()
	form.Set("name", name)
	form.Set("deviceNumber", udid)

	var payload deviceResponse
	if err := c.post(ctx, c.endpoint("device/addDevice.action"), form, &payload); err != nil {
		return nil, trace.Wrap(err)
	}
	c.log.InfoContext(ctx, "Registered device.", "name", name, "udid", udid)
	return &payload.Device, nil
}

// ListTeams returns the teams the authenticated account belongs to.
// The call is account scoped, not team scoped.
func (c *Client) ListTeams(ctx context.Context) ([]Team, error) {
	var payload teamsResponse
	if err := c.post(ctx, c.endpoint("getTeams.action"), url.Values{}, &payload); err != nil {
		return nil, trace.Wrap(err)
	}
	return payload.Teams, nil
}

// ListCertRequests returns the team's certificate requests.
func (c *Client) ListCertRequests(ctx context.Context) ([]CertRequest, error) {
	form := c.teamForm()
	form.Set("pageSize", strconv.Itoa(500))
	form.Set("pageNumber", strconv.Itoa(1))

	var payload certRequestsResponse
	if err := c.post(ctx, c.endpoint("certificate/listCertRequests.action"), form, &payload); err != nil {
		return nil, trace.Wrap(err)
	}
	return payload.CertRequests, nil
}

// SubmitCertRequest submits a PEM encoded certificate signing request
// for the given certificate type.
func (c *Client) SubmitCertRequest(ctx context.Context, typeID, csrPEM string) (*CertRequest, error) {
	if csrPEM == "" {
		return nil, trace.BadParameter("missing certificate signing request")
	}
	form := c.teamForm()
	form.Set("type", typeID)
	form.Set("csrContent", csrPEM)

	var payload certRequestResponse
	if err := c.post(ctx, c.endpoint("certificate/submitCertificateRequest.action"), form, &payload); err != nil {
		return nil, trace.Wrap(err)
	}
	c.log.InfoContext(ctx, "Submitted certificate request.", "type", typeID)
	return &payload.CertRequest, nil
}
