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

// Package defaults contains default constants set in various parts of
// the library.
package defaults

import (
	"os"
	"time"
)

const (
	// AuthHost is the identity provider host terminating credential logon
	// and two-step verification.
	AuthHost = "idmsa.apple.com"

	// PortalHost serves the app-config (service key) and session endpoints.
	PortalHost = "appstoreconnect.apple.com"

	// DeveloperHost serves the provisioning portal API (devices, teams,
	// certificate requests).
	DeveloperHost = "developer.apple.com"
)

const (
	// HTTPRequestTimeout is the end-to-end deadline applied to a single
	// request when the transport config does not set one.
	HTTPRequestTimeout = 30 * time.Second

	// HTTPIdleTimeout is how long idle keep-alive connections are retained.
	HTTPIdleTimeout = 30 * time.Second
)

const (
	// ProfileDir is the directory under $HOME holding the client store.
	ProfileDir = ".applepie"

	// DirPerms is the mode for directories created by the client store.
	DirPerms os.FileMode = 0700

	// FilePerms is the mode for files written by the client store. Cookie
	// files carry live session material and must not be group readable.
	FilePerms os.FileMode = 0600
)
