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

import "mime"

// ContentKind classifies the payload of a request or a response.
type ContentKind int

const (
	// KindNone marks an absent or unclassified payload.
	KindNone ContentKind = iota
	// KindText is a plain text payload.
	KindText
	// KindHTML is an HTML payload.
	KindHTML
	// KindJSON is a JSON payload.
	KindJSON
	// KindBinary is a raw byte payload.
	KindBinary
	// KindForm is a form-url-encoded payload. It only appears on
	// requests, responses are never classified as form.
	KindForm
)

// String returns a human readable kind name for logs.
func (k ContentKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindHTML:
		return "html"
	case KindJSON:
		return "json"
	case KindBinary:
		return "binary"
	case KindForm:
		return "form"
	default:
		return "none"
	}
}

// classifyMediaType maps a response Content-Type header to a content kind.
// Parameters such as charset are ignored, only the media type counts.
func classifyMediaType(contentType string) ContentKind {
	if contentType == "" {
		return KindNone
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return KindNone
	}
	switch mediaType {
	case "text/plain":
		return KindText
	case "text/html":
		return KindHTML
	case "application/json", "text/javascript":
		return KindJSON
	case "application/octet-stream":
		return KindBinary
	default:
		return KindNone
	}
}
