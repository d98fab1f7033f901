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
	"log/slog"
)

const (
	// HeaderWidgetKey carries the pre-logon service key on every
	// request to the identity provider.
	HeaderWidgetKey = "X-Apple-Widget-Key"

	// AuthTypeHSA is the auth type the provider declares when a
	// two-step challenge over trusted devices is in progress. Any
	// other type during a challenge is a protocol violation.
	AuthTypeHSA = "hsa"

	// CodeIncorrectVerification is the service error code for a wrong
	// two-step verification code. It is the one recoverable failure of
	// code submission.
	CodeIncorrectVerification = "-21669"
)

// Credentials is the login identity. The password never appears in logs,
// the type logs itself with the secret masked.
type Credentials struct {
	// Username is the account name.
	Username string
	// Password is the account secret.
	Password string
}

// LogValue masks the password when credentials end up in a log record.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("password", "******"),
	)
}

// AuthToken is the pre-logon service key. It is fetched at most once per
// flow and accompanies every subsequent identity provider request.
type AuthToken struct {
	// ServiceKey is the widget key value for the service key header.
	ServiceKey string `json:"authServiceKey"`
	// ServiceURL is the base URL the provider reported for itself.
	ServiceURL string `json:"authServiceUrl"`
}

// TrustedDevice is a device registered to receive a one-time
// verification code.
type TrustedDevice struct {
	// ID identifies the device to the provider.
	ID string `json:"id"`
	// Name is the user visible device name.
	Name string `json:"name"`
	// Type is the provider's device type label.
	Type string `json:"type,omitempty"`
	// ObfuscatedNumber is the partially masked phone number for SMS
	// capable devices.
	ObfuscatedNumber string `json:"obfuscatedNumber,omitempty"`
}

// LogonAuth is the server's authentication progress descriptor.
type LogonAuth struct {
	// AuthType declares the kind of challenge in progress.
	AuthType string `json:"authType"`
	// TwoStepRequired reports whether a challenge must be completed
	// before a session can be issued.
	TwoStepRequired bool `json:"hsaChallengeRequired"`
	// TrustedDevices lists the devices eligible to receive a code.
	TrustedDevices []TrustedDevice `json:"trustedDevices"`
}

// SessionUser identifies the authenticated account.
type SessionUser struct {
	// ID is the provider's account id.
	ID string `json:"id"`
	// Email is the account email.
	Email string `json:"emailAddress"`
	// FullName is the account display name.
	FullName string `json:"fullName,omitempty"`
}

// SessionProvider identifies the developer team the session acts for.
type SessionProvider struct {
	// ID is the team's numeric provider id.
	ID int64 `json:"providerId"`
	// Name is the team name.
	Name string `json:"name"`
}

// Session is the terminal artifact of a successful logon.
type Session struct {
	// User is the authenticated account.
	User SessionUser `json:"user"`
	// Provider is the active developer team.
	Provider SessionProvider `json:"provider"`
}
