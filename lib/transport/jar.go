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
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"golang.org/x/net/publicsuffix"
)

// Jar stores the cookies of one authentication attempt. Cookie matching
// is delegated to the standard cookie jar, the custom part is that the
// transport only feeds it from successful responses and that absorbed
// cookies can be exported for the client store and restored later.
//
// A Jar belongs to a single client and inherits its no-concurrent-use
// contract.
type Jar struct {
	jar   *cookiejar.Jar
	clock clockwork.Clock

	// absorbed keeps the last cookie absorbed per (host, name) so the
	// jar contents can be enumerated, which the standard jar does not
	// allow.
	absorbed map[string]map[string]*http.Cookie
}

// NewJar returns an empty cookie jar using clock for expiry decisions.
func NewJar(clock clockwork.Clock) (*Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Jar{
		jar:      jar,
		clock:    clock,
		absorbed: make(map[string]map[string]*http.Cookie),
	}, nil
}

// Cookies returns the cookies to send with a request to u.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// SetCookies absorbs cookies set by a response from u. The transport
// calls this only for successful responses, failed responses never
// reach the jar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	j.jar.SetCookies(u, cookies)
	host := u.Hostname()
	byName := j.absorbed[host]
	if byName == nil {
		byName = make(map[string]*http.Cookie)
		j.absorbed[host] = byName
	}
	for _, c := range cookies {
		byName[c.Name] = c
	}
}

// PersistedCookie is one jar entry in its on-disk shape.
type PersistedCookie struct {
	// Host is the request authority the cookie was absorbed from.
	Host string `json:"host"`
	// Name is the cookie name.
	Name string `json:"name"`
	// Value is the cookie value.
	Value string `json:"value"`
	// Domain is the cookie domain attribute, if any.
	Domain string `json:"domain,omitempty"`
	// Path is the cookie path attribute, if any.
	Path string `json:"path,omitempty"`
	// Secure marks cookies restricted to HTTPS.
	Secure bool `json:"secure,omitempty"`
	// HTTPOnly marks cookies hidden from scripts.
	HTTPOnly bool `json:"http_only,omitempty"`
	// Expires is the cookie expiry, zero for session cookies.
	Expires time.Time `json:"expires,omitempty"`
}

// Export returns the absorbed cookies that are still live. Entries that
// expired before the jar's clock are pruned from the result, session
// cookies (no expiry) are kept.
func (j *Jar) Export() []PersistedCookie {
	now := j.clock.Now()
	var out []PersistedCookie
	for host, byName := range j.absorbed {
		for _, c := range byName {
			if !c.Expires.IsZero() && c.Expires.Before(now) {
				continue
			}
			out = append(out, PersistedCookie{
				Host:     host,
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Secure:   c.Secure,
				HTTPOnly: c.HttpOnly,
				Expires:  c.Expires,
			})
		}
	}
	return out
}

// Restore loads previously exported cookies into the jar. Expired
// entries are dropped on the way in.
func (j *Jar) Restore(entries []PersistedCookie) error {
	now := j.clock.Now()
	byHost := make(map[string][]*http.Cookie)
	for _, e := range entries {
		if e.Host == "" || e.Name == "" {
			return trace.BadParameter("cookie entry is missing host or name")
		}
		if !e.Expires.IsZero() && e.Expires.Before(now) {
			continue
		}
		byHost[e.Host] = append(byHost[e.Host], &http.Cookie{
			Name:     e.Name,
			Value:    e.Value,
			Domain:   e.Domain,
			Path:     e.Path,
			Secure:   e.Secure,
			HttpOnly: e.HTTPOnly,
			Expires:  e.Expires,
		})
	}
	for host, cookies := range byHost {
		u := &url.URL{Scheme: "https", Host: host, Path: "/"}
		j.SetCookies(u, cookies)
	}
	return nil
}
