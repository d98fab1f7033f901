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

// Package apikey mints the short lived bearer tokens for the provider's
// key based API, the non-interactive alternative to a web session.
package apikey

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
)

const (
	// defaultTTL is the token lifetime when the config sets none.
	defaultTTL = 10 * time.Minute

	// maxTTL is the longest lifetime the provider accepts.
	maxTTL = 20 * time.Minute

	// refreshMargin is how close to expiry a cached token is still
	// handed out. Past it a fresh token is minted.
	refreshMargin = 30 * time.Second

	// defaultAudience is the provider's API audience claim.
	defaultAudience = "appstoreconnect-v1"
)

// Config holds signer construction parameters.
type Config struct {
	// KeyID is the provider issued key id, sent as the kid header.
	KeyID string
	// IssuerID identifies the key's owning team, sent as the iss
	// claim.
	IssuerID string
	// PrivateKeyPEM is the PKCS#8 encoded ES256 signing key.
	PrivateKeyPEM []byte
	// TTL is the token lifetime, capped at the provider maximum.
	TTL time.Duration
	// Audience overrides the aud claim.
	Audience string
	// Clock drives issue and expiry times.
	Clock clockwork.Clock
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.KeyID == "" {
		return trace.BadParameter("missing KeyID")
	}
	if c.IssuerID == "" {
		return trace.BadParameter("missing IssuerID")
	}
	if len(c.PrivateKeyPEM) == 0 {
		return trace.BadParameter("missing PrivateKeyPEM")
	}
	if c.TTL == 0 {
		c.TTL = defaultTTL
	}
	if c.TTL > maxTTL {
		return trace.BadParameter("TTL %v exceeds the provider maximum %v", c.TTL, maxTTL)
	}
	if c.Audience == "" {
		c.Audience = defaultAudience
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Signer mints bearer tokens for one API key and caches the latest one
// until it nears expiry. A signer follows the per-attempt concurrency
// contract of the rest of the library, it is not safe for concurrent
// use.
type Signer struct {
	cfg Config
	key *ecdsa.PrivateKey

	cached  string
	expires time.Time
}

// NewSigner parses the signing key and returns a signer for it.
func NewSigner(cfg Config) (*Signer, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	key, err := parseECPrivateKey(cfg.PrivateKeyPEM)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &Signer{cfg: cfg, key: key}, nil
}

// Token returns a bearer token valid for at least the refresh margin,
// minting a new one when the cached token is gone or nearly expired.
func (s *Signer) Token() (string, error) {
	now := s.cfg.Clock.Now()
	if s.cached != "" && now.Add(refreshMargin).Before(s.expires) {
		return s.cached, nil
	}

	expires := now.Add(s.cfg.TTL)
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": s.cfg.IssuerID,
		"iat": now.Unix(),
		"exp": expires.Unix(),
		"aud": s.cfg.Audience,
	})
	token.Header["kid"] = s.cfg.KeyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", trace.Wrap(err)
	}
	s.cached = signed
	s.expires = expires
	return signed, nil
}

// parseECPrivateKey reads a PKCS#8 or SEC 1 encoded ES256 key.
func parseECPrivateKey(keyPEM []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, trace.BadParameter("signing key is not PEM encoded")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, trace.BadParameter("signing key is not an EC key")
		}
		return ecKey, nil
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, trace.BadParameter("parsing signing key: %v", err)
	}
	return key, nil
}
