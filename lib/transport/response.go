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

package transport

import (
	"net/http"
	"strings"

	"github.com/gravitational/trace"
)

// Response is the classified result of one request. Non-success
// responses are still fully populated, the status judgment is the
// caller's.
type Response struct {
	// StatusCode is the HTTP status.
	StatusCode int
	// Headers are the response headers.
	Headers http.Header
	// Kind is the classified content kind.
	Kind ContentKind
	// Body is the raw response body.
	Body []byte
	// Text is the body as text for every kind but binary.
	Text string
	// Details is the structured error payload parsed from a
	// non-success JSON body, if the body carried one.
	Details *ErrorDetails
}

// OK reports whether the response carries a success status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// HasServiceError reports whether the structured error payload carries
// a service error with the given code.
func (r *Response) HasServiceError(code string) bool {
	if r.Details == nil {
		return false
	}
	for _, se := range r.Details.ServiceErrors {
		if se.Code == code {
			return true
		}
	}
	return false
}

// Err converts a non-success response into a typed error. Successful
// responses convert to nil.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	if r.Details != nil {
		if msg := r.Details.UserMessage(); msg != "" {
			switch r.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return trace.AccessDenied("%s", msg)
			default:
				return trace.BadParameter("%s", msg)
			}
		}
	}
	snippet := r.Text
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return trace.BadParameter("request failed with status %v: %q", r.StatusCode, snippet)
}

// ServiceError is one structured failure reported by the provider.
type ServiceError struct {
	// Code identifies the failure, e.g. "-21669" for a wrong
	// verification code.
	Code string `json:"code"`
	// Title is a short failure summary.
	Title string `json:"title,omitempty"`
	// Message is the user facing failure text.
	Message string `json:"message"`
}

// ValidationError is one field level failure reported by the provider.
type ValidationError struct {
	// Code identifies the failed validation.
	Code string `json:"code"`
	// Message is the user facing failure text.
	Message string `json:"message"`
}

// ErrorDetails is the structured failure payload of a non-success JSON
// body.
type ErrorDetails struct {
	// ServiceErrors are the request level failures.
	ServiceErrors []ServiceError `json:"serviceErrors,omitempty"`
	// ValidationErrors are the field level failures.
	ValidationErrors []ValidationError `json:"validationErrors,omitempty"`
	// Message is a bare failure string some endpoints return instead
	// of the error lists.
	Message string `json:"message,omitempty"`
}

// IsZero reports whether the payload carries no failure information.
func (d *ErrorDetails) IsZero() bool {
	return len(d.ServiceErrors) == 0 && len(d.ValidationErrors) == 0 && d.Message == ""
}

// UserMessage flattens the payload into one user facing string.
func (d *ErrorDetails) UserMessage() string {
	var parts []string
	for _, se := range d.ServiceErrors {
		if se.Message != "" {
			parts = append(parts, se.Message)
		}
	}
	for _, ve := range d.ValidationErrors {
		if ve.Message != "" {
			parts = append(parts, ve.Message)
		}
	}
	if len(parts) == 0 && d.Message != "" {
		parts = append(parts, d.Message)
	}
	return strings.Join(parts, "; ")
}
