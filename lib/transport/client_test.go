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
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/golava/golava-applepie/lib/csrf"
)

type deviceListPayload struct {
	Devices []string `json:"devices"`
}

func (*deviceListPayload) CSRFClass() csrf.Class { return csrf.ClassDevices }

type teamListPayload struct {
	Teams []string `json:"teams"`
}

func (*teamListPayload) CSRFClass() csrf.Class { return csrf.ClassTeams }

func newTestClient(t *testing.T) *Client {
	t.Helper()
	clt, err := NewClient(Config{})
	require.NoError(t, err)
	return clt
}

func TestDoHeaderDefaultsAndCallerOverride(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	clt := newTestClient(t)
	headers := make(http.Header)
	headers.Set("User-Agent", "custom-agent")
	headers.Set("X-Requested-With", "XMLHttpRequest")
	_, err := clt.Do(context.Background(), &Request{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Headers: headers,
	}, nil)
	require.NoError(t, err)

	// Caller headers win over transport defaults.
	require.Equal(t, "custom-agent", got.Get("User-Agent"))
	require.Equal(t, "XMLHttpRequest", got.Get("X-Requested-With"))
}

func TestDoBodyKinds(t *testing.T) {
	type recorded struct {
		contentType   string
		contentLength int64
		body          string
	}
	var got recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		got = recorded{
			contentType:   r.Header.Get("Content-Type"),
			contentLength: r.ContentLength,
			body:          string(buf[:n]),
		}
	}))
	defer srv.Close()

	clt := newTestClient(t)
	ctx := context.Background()

	t.Run("json", func(t *testing.T) {
		_, err := clt.Do(ctx, &Request{
			Method: http.MethodPost,
			URL:    srv.URL,
			Kind:   KindJSON,
			Body:   map[string]string{"accountName": "dev@example.com"},
		}, nil)
		require.NoError(t, err)
		// No charset parameter on the media type.
		require.Equal(t, "application/json", got.contentType)
		require.Equal(t, int64(len(got.body)), got.contentLength)
		require.JSONEq(t, `{"accountName":"dev@example.com"}`, got.body)
	})

	t.Run("form", func(t *testing.T) {
		_, err := clt.Do(ctx, &Request{
			Method: http.MethodPost,
			URL:    srv.URL,
			Kind:   KindForm,
			Form:   url.Values{"teamId": []string{"ABC123"}},
		}, nil)
		require.NoError(t, err)
		require.Equal(t, "application/x-www-form-urlencoded", got.contentType)
		require.Equal(t, "teamId=ABC123", got.body)
	})

	t.Run("none", func(t *testing.T) {
		_, err := clt.Do(ctx, &Request{
			Method: http.MethodGet,
			URL:    srv.URL,
		}, nil)
		require.NoError(t, err)
		require.Empty(t, got.body)
		require.Zero(t, got.contentLength)
	})

	t.Run("other kinds send an empty body", func(t *testing.T) {
		_, err := clt.Do(ctx, &Request{
			Method: http.MethodPost,
			URL:    srv.URL,
			Kind:   KindBinary,
		}, nil)
		require.NoError(t, err)
		require.Empty(t, got.body)
		require.Zero(t, got.contentLength)
	})
}

func TestResponseClassification(t *testing.T) {
	tests := []struct {
		contentType string
		want        ContentKind
		wantText    bool
	}{
		{contentType: "text/plain; charset=utf-8", want: KindText, wantText: true},
		{contentType: "text/html", want: KindHTML, wantText: true},
		{contentType: "application/json", want: KindJSON, wantText: true},
		{contentType: "text/javascript", want: KindJSON, wantText: true},
		{contentType: "application/octet-stream", want: KindBinary},
		{contentType: "application/xml", want: KindNone, wantText: true},
		{contentType: "", want: KindNone, wantText: true},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.Write([]byte("{}"))
			}))
			defer srv.Close()

			clt := newTestClient(t)
			resp, err := clt.Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL}, nil)
			require.NoError(t, err)
			require.Equal(t, tt.want, resp.Kind)
			require.Equal(t, []byte("{}"), resp.Body)
			if tt.wantText {
				require.Equal(t, "{}", resp.Text)
			} else {
				require.Empty(t, resp.Text)
			}
		})
	}
}

func TestCookiesPersistOnlyFromSuccess(t *testing.T) {
	var status int
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1", Path: "/"})
		w.WriteHeader(status)
	}))
	defer srv.Close()

	clt := newTestClient(t)
	ctx := context.Background()
	req := &Request{Method: http.MethodGet, URL: srv.URL}

	// A failed response never mutates the jar.
	status = http.StatusInternalServerError
	resp, err := clt.Do(ctx, req, nil)
	require.NoError(t, err)
	require.False(t, resp.OK())

	_, err = clt.Do(ctx, req, nil)
	require.NoError(t, err)
	require.Empty(t, gotCookie)

	// A successful response does, and the cookie rides the next
	// request to the same host.
	status = http.StatusOK
	_, err = clt.Do(ctx, req, nil)
	require.NoError(t, err)

	_, err = clt.Do(ctx, req, nil)
	require.NoError(t, err)
	require.Equal(t, "session=s1", gotCookie)
}

func TestCSRFCaptureAndClassIsolation(t *testing.T) {
	var gotCSRF, gotTS string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCSRF = r.Header.Get(csrf.HeaderName)
		gotTS = r.Header.Get(csrf.TimestampHeaderName)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(csrf.HeaderName, "tok-devices")
		w.Header().Set(csrf.TimestampHeaderName, "1700000000")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	clt := newTestClient(t)
	ctx := context.Background()

	// First devices request has no token yet; the response stores one
	// under the devices class.
	_, err := clt.Do(ctx, &Request{Method: http.MethodGet, URL: srv.URL}, &deviceListPayload{})
	require.NoError(t, err)
	require.Empty(t, gotCSRF)

	tok, ok := clt.CSRF().Get(csrf.ClassDevices)
	require.True(t, ok)
	require.Equal(t, "tok-devices", tok.Value)

	// The second devices request carries the stored pair.
	_, err = clt.Do(ctx, &Request{Method: http.MethodGet, URL: srv.URL}, &deviceListPayload{})
	require.NoError(t, err)
	require.Equal(t, "tok-devices", gotCSRF)
	require.Equal(t, "1700000000", gotTS)

	// A request expecting another class never sees the devices token.
	clt2 := newTestClient(t)
	clt2.CSRF().Put(csrf.Token{Class: csrf.ClassDevices, Value: "tok-devices", Timestamp: "1"})
	_, err = clt2.Do(ctx, &Request{Method: http.MethodGet, URL: srv.URL}, &teamListPayload{})
	require.NoError(t, err)
	require.Empty(t, gotCSRF)
}

func TestCSRFNotCapturedFromFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(csrf.HeaderName, "tok")
		w.Header().Set(csrf.TimestampHeaderName, "1")
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	clt := newTestClient(t)
	resp, err := clt.Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL}, &deviceListPayload{})
	require.NoError(t, err)
	require.False(t, resp.OK())

	_, ok := clt.CSRF().Get(csrf.ClassDevices)
	require.False(t, ok)
}

func TestTwoStepTokenAttached(t *testing.T) {
	var gotSession, gotScnt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = r.Header.Get(HeaderSessionID)
		gotScnt = r.Header.Get(HeaderScnt)
	}))
	defer srv.Close()

	clt := newTestClient(t)
	ctx := context.Background()
	req := &Request{Method: http.MethodGet, URL: srv.URL}

	_, err := clt.Do(ctx, req, nil)
	require.NoError(t, err)
	require.Empty(t, gotSession)

	clt.SetTwoStepToken(&TwoStepToken{SessionID: "sid", Scnt: "scnt-1"})
	_, err = clt.Do(ctx, req, nil)
	require.NoError(t, err)
	require.Equal(t, "sid", gotSession)
	require.Equal(t, "scnt-1", gotScnt)
}

func TestErrorDetailsParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"serviceErrors":[{"code":"-21669","message":"Incorrect verification code."}]}`))
	}))
	defer srv.Close()

	clt := newTestClient(t)
	resp, err := clt.Do(context.Background(), &Request{Method: http.MethodPost, URL: srv.URL}, nil)
	require.NoError(t, err)
	require.False(t, resp.OK())
	require.NotNil(t, resp.Details)
	require.True(t, resp.HasServiceError("-21669"))
	require.False(t, resp.HasServiceError("-1"))
	require.ErrorContains(t, resp.Err(), "Incorrect verification code.")
}

func TestDecodeIntoTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"devices":["iPhone","iPad"]}`))
	}))
	defer srv.Close()

	clt := newTestClient(t)
	var payload deviceListPayload
	resp, err := clt.Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL}, &payload)
	require.NoError(t, err)
	require.True(t, resp.OK())
	require.Equal(t, []string{"iPhone", "iPad"}, payload.Devices)
}
