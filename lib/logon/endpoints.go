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
	"fmt"
	"net/url"
	"strings"

	"github.com/gravitational/trace"

	"github.com/golava/golava-applepie/lib/defaults"
)

// deviceIDPlaceholder marks the device id slot in the security code URL.
const deviceIDPlaceholder = "{deviceId}"

// Endpoints is the URL table the web strategy drives. It is
// configuration data: every field can be overridden, unset fields fall
// back to the standard hosts.
type Endpoints struct {
	// ServiceKeyURL serves the pre-logon service key.
	ServiceKeyURL string
	// SignInURL terminates credential logon.
	SignInURL string
	// TwoStepAuthURL enumerates authentication progress during a
	// challenge.
	TwoStepAuthURL string
	// SecurityCodePattern is the code send/verify endpoint with a
	// {deviceId} placeholder. PUT sends a code, POST verifies one.
	SecurityCodePattern string
	// SessionURL serves the authenticated session.
	SessionURL string
}

// CheckAndSetDefaults fills unset endpoints with the standard hosts and
// validates the security code pattern.
func (e *Endpoints) CheckAndSetDefaults() error {
	if e.ServiceKeyURL == "" {
		e.ServiceKeyURL = fmt.Sprintf("https://%s/olympus/v1/app/config?hostname=%s", defaults.PortalHost, defaults.PortalHost)
	}
	if e.SignInURL == "" {
		e.SignInURL = fmt.Sprintf("https://%s/appleauth/auth/signin", defaults.AuthHost)
	}
	if e.TwoStepAuthURL == "" {
		e.TwoStepAuthURL = fmt.Sprintf("https://%s/appleauth/auth", defaults.AuthHost)
	}
	if e.SecurityCodePattern == "" {
		e.SecurityCodePattern = fmt.Sprintf("https://%s/appleauth/auth/verify/device/%s/securitycode", defaults.AuthHost, deviceIDPlaceholder)
	}
	if e.SessionURL == "" {
		e.SessionURL = fmt.Sprintf("https://%s/olympus/v1/session", defaults.PortalHost)
	}
	if !strings.Contains(e.SecurityCodePattern, deviceIDPlaceholder) {
		return trace.BadParameter("security code pattern %q is missing the %s placeholder", e.SecurityCodePattern, deviceIDPlaceholder)
	}
	return nil
}

// SecurityCodeURL resolves the code send/verify endpoint for a device.
func (e Endpoints) SecurityCodeURL(deviceID string) string {
	return strings.Replace(e.SecurityCodePattern, deviceIDPlaceholder, url.PathEscape(deviceID), 1)
}
