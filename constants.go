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

// Package applepie holds constants shared by every part of the library.
package applepie

import "strings"

// Version is the release version of the library. It is embedded in the
// User-Agent of every outgoing request.
const Version = "0.4.1"

// UserAgent is the fixed product identifier sent with every request.
const UserAgent = "applepie/" + Version

const (
	// ComponentKey is the log attribute name carrying a component label.
	ComponentKey = "component"

	// ComponentTransport is the HTTP transport layer.
	ComponentTransport = "transport"

	// ComponentLogon is the authentication state machine.
	ComponentLogon = "logon"

	// ComponentPortal is the developer portal API client.
	ComponentPortal = "portal"

	// ComponentStore is the on-disk client store.
	ComponentStore = "store"

	// ComponentCLI is the command line tool.
	ComponentCLI = "cli"
)

// Component builds a component label from parts, e.g.
// Component(ComponentLogon, "strategy") == "logon:strategy".
func Component(parts ...string) string {
	return strings.Join(parts, ":")
}
