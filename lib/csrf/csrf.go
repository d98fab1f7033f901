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

// Package csrf tracks the anti-forgery tokens the identity provider hands
// out with successful responses. A token is only valid for requests whose
// expected response payload carries the same content class, so the store
// keys tokens by class and never serves a token across classes.
package csrf

import "net/http"

const (
	// HeaderName is the header carrying the anti-forgery token value.
	HeaderName = "csrf"

	// TimestampHeaderName is the header carrying the token issue timestamp.
	// The timestamp is an opaque server string and is echoed verbatim.
	TimestampHeaderName = "csrf_ts"
)

// Class tags a response content kind for anti-forgery correlation.
type Class string

const (
	// ClassUndefined marks payloads that take no part in token
	// correlation. Tokens are neither attached nor captured for it.
	ClassUndefined Class = ""

	// ClassDevices covers device listing and registration payloads.
	ClassDevices Class = "devices"

	// ClassCertificates covers certificate request payloads.
	ClassCertificates Class = "certificates"

	// ClassTeams covers team membership payloads.
	ClassTeams Class = "teams"
)

// Classifier is implemented by response payload types that participate in
// anti-forgery correlation. A container payload inherits the class of its
// element type by delegating to it, which resolves the class at build time
// without any runtime type inspection.
type Classifier interface {
	CSRFClass() Class
}

// ClassOf returns the class declared by target, or ClassUndefined when
// target declares none.
func ClassOf(target any) Class {
	if c, ok := target.(Classifier); ok {
		return c.CSRFClass()
	}
	return ClassUndefined
}

// Token is one anti-forgery token scoped to a content class.
type Token struct {
	// Class scopes the token to one response content class.
	Class Class
	// Value is the token value from the csrf header.
	Value string
	// Timestamp is the opaque issue timestamp from the csrf_ts header.
	Timestamp string
}

// IsZero reports whether the token carries no value.
func (t Token) IsZero() bool {
	return t.Value == "" && t.Timestamp == ""
}

// SetHeaders writes the token pair onto an outgoing request header.
func (t Token) SetHeaders(h http.Header) {
	h.Set(HeaderName, t.Value)
	h.Set(TimestampHeaderName, t.Timestamp)
}

// FromHeaders builds a token for class from a response header. It returns
// false unless both the value and the timestamp headers are present.
func FromHeaders(class Class, h http.Header) (Token, bool) {
	value := h.Get(HeaderName)
	ts := h.Get(TimestampHeaderName)
	if value == "" || ts == "" {
		return Token{}, false
	}
	return Token{Class: class, Value: value, Timestamp: ts}, true
}

// Store holds at most one token per class; a later Put for the same class
// replaces the earlier token. State is scoped to a single authentication
// attempt and is not safe for concurrent use, matching the attempt's own
// contract.
type Store struct {
	tokens map[Class]Token
}

// NewStore returns an empty token store.
func NewStore() *Store {
	return &Store{tokens: make(map[Class]Token)}
}

// Put stores tok under its class, replacing any earlier token for that
// class. Tokens for ClassUndefined are dropped.
func (s *Store) Put(tok Token) {
	if tok.Class == ClassUndefined {
		return
	}
	s.tokens[tok.Class] = tok
}

// Get returns the token stored for class, if any. ClassUndefined never
// has a token.
func (s *Store) Get(class Class) (Token, bool) {
	tok, ok := s.tokens[class]
	return tok, ok
}
