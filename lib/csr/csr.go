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

// Package csr generates the certificate signing requests the portal's
// certificate endpoints consume.
package csr

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"

	"github.com/gravitational/trace"
)

// keyBits is the RSA key size the portal expects for signing requests.
const keyBits = 2048

// Bundle is a generated signing request with its private key. The key
// never leaves the caller's machine, only the request is submitted.
type Bundle struct {
	// PrivateKeyPEM is the PKCS#1 encoded RSA private key.
	PrivateKeyPEM []byte
	// RequestPEM is the PEM encoded certificate signing request.
	RequestPEM []byte
}

// New generates a fresh RSA key and a signing request naming the
// account that will submit it.
func New(commonName, email string) (*Bundle, error) {
	if commonName == "" {
		return nil, trace.BadParameter("missing common name")
	}
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	template := &x509.CertificateRequest{
		Subject: pkix.Name{
			CommonName: commonName,
		},
		SignatureAlgorithm: x509.SHA256WithRSA,
	}
	if email != "" {
		template.EmailAddresses = []string{email}
	}
	der, err := x509.CreateCertificateRequest(rand.Reader, template, key)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &Bundle{
		PrivateKeyPEM: pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		}),
		RequestPEM: pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE REQUEST",
			Bytes: der,
		}),
	}, nil
}
