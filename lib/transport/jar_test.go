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
	"net/url"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestJarExportRestore(t *testing.T) {
	clock := clockwork.NewFakeClock()
	jar, err := NewJar(clock)
	require.NoError(t, err)

	u := &url.URL{Scheme: "https", Host: "idmsa.example.com", Path: "/"}
	jar.SetCookies(u, []*http.Cookie{
		{Name: "session", Value: "s1", Path: "/"},
		{Name: "remember", Value: "r1", Path: "/", Expires: clock.Now().Add(time.Hour)},
	})

	exported := jar.Export()
	require.Len(t, exported, 2)

	restored, err := NewJar(clock)
	require.NoError(t, err)
	require.NoError(t, restored.Restore(exported))

	cookies := restored.Cookies(u)
	require.Len(t, cookies, 2)
}

func TestJarExportPrunesExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	jar, err := NewJar(clock)
	require.NoError(t, err)

	u := &url.URL{Scheme: "https", Host: "idmsa.example.com", Path: "/"}
	jar.SetCookies(u, []*http.Cookie{
		{Name: "short", Value: "v", Path: "/", Expires: clock.Now().Add(time.Minute)},
		{Name: "long", Value: "v", Path: "/", Expires: clock.Now().Add(time.Hour)},
	})

	clock.Advance(30 * time.Minute)
	exported := jar.Export()
	require.Len(t, exported, 1)
	require.Equal(t, "long", exported[0].Name)
}

func TestJarRestoreValidatesEntries(t *testing.T) {
	jar, err := NewJar(clockwork.NewFakeClock())
	require.NoError(t, err)

	err = jar.Restore([]PersistedCookie{{Name: "orphan"}})
	require.Error(t, err)
}
