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

// State is the authentication progress of one flow.
type State int

const (
	// StateUnauthenticated is the initial state before any logon call.
	StateUnauthenticated State = iota

	// StateTwoStepSelectDevice means a challenge was issued and the
	// caller must pick one of the trusted devices.
	StateTwoStepSelectDevice

	// StateTwoStepCode means a code was sent to the chosen device and
	// the caller must submit it.
	StateTwoStepCode

	// StateSuccess is terminal, the flow holds a session.
	StateSuccess

	// StateFailedInvalidCredentials is terminal, the provider rejected
	// the credentials and the user must resupply them.
	StateFailedInvalidCredentials

	// StateFailedUnexpected is terminal, the flow hit a failure outside
	// the protocol's expected shapes. The cause is kept on the flow.
	StateFailedUnexpected

	// StateFailedNoTrustedDevice is terminal, a code was submitted but
	// the account lists no device that could have received one.
	StateFailedNoTrustedDevice
)

// String returns the state name used in logs and CLI output.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateTwoStepSelectDevice:
		return "two-step:select-device"
	case StateTwoStepCode:
		return "two-step:code"
	case StateSuccess:
		return "success"
	case StateFailedInvalidCredentials:
		return "failed:invalid-credentials"
	case StateFailedUnexpected:
		return "failed:unexpected"
	case StateFailedNoTrustedDevice:
		return "failed:no-trusted-device"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateFailedInvalidCredentials, StateFailedUnexpected, StateFailedNoTrustedDevice:
		return true
	}
	return false
}
