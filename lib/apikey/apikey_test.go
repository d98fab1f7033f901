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

package apikey

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func testKeyPEM(t *testing.T) ([]byte, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), key
}

func TestTokenClaims(t *testing.T) {
	keyPEM, key := testKeyPEM(t)
	clock := clockwork.NewFakeClock()
	signer, err := NewSigner(Config{
		KeyID:         "KEY1",
		IssuerID:      "issuer-1",
		PrivateKeyPEM: keyPEM,
		Clock:         clock,
	})
	require.NoError(t, err)

	signed, err := signer.Token()
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, func(tok *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}), jwt.WithTimeFunc(clock.Now))
	require.NoError(t, err)
	require.Equal(t, "KEY1", parsed.Header["kid"])

	claims := parsed.Claims.(jwt.MapClaims)
	require.Equal(t, "issuer-1", claims["iss"])
	require.Equal(t, defaultAudience, claims["aud"])
	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	require.Equal(t, clock.Now().Add(defaultTTL).Unix(), exp.Unix())
}

func TestTokenCaching(t *testing.T) {
	keyPEM, _ := testKeyPEM(t)
	clock := clockwork.NewFakeClock()
	signer, err := NewSigner(Config{
		KeyID:         "KEY1",
		IssuerID:      "issuer-1",
		PrivateKeyPEM: keyPEM,
		Clock:         clock,
	})
	require.NoError(t, err)

	first, err := signer.Token()
	require.NoError(t, err)

	// Well before expiry the cached token is reused.
	clock.Advance(time.Minute)
	again, err := signer.Token()
	require.NoError(t, err)
	require.Equal(t, first, again)

	// Near expiry a fresh token is minted.
	clock.Advance(defaultTTL - time.Minute)
	fresh, err := signer.Token()
	require.NoError(t, err)
	require.NotEqual(t, first, fresh)
}

func TestConfigValidation(t *testing.T) {
	keyPEM, _ := testKeyPEM(t)

	_, err := NewSigner(Config{IssuerID: "i", PrivateKeyPEM: keyPEM})
	require.Error(t, err)

	_, err = NewSigner(Config{
		KeyID:         "KEY1",
		IssuerID:      "i",
		PrivateKeyPEM: keyPEM,
		TTL:           time.Hour,
	})
	require.Error(t, err)

	_, err = NewSigner(Config{KeyID: "KEY1", IssuerID: "i", PrivateKeyPEM: []byte("junk")})
	require.Error(t, err)
}
