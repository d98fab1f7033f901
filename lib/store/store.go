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

// Package store persists a profile and the exported session cookies
// between CLI invocations. It lives outside the authentication core,
// the logon flow never touches it; the CLI wires the two together.
package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gravitational/trace"
	"gopkg.in/yaml.v3"

	"github.com/golava/golava-applepie/lib/defaults"
	"github.com/golava/golava-applepie/lib/transport"
)

const (
	profileFile = "profile.yaml"
	cookiesFile = "cookies.json"
)

// Profile is the saved identity of the last login.
type Profile struct {
	// Username is the account name logins default to.
	Username string `yaml:"username"`
	// TeamID is the developer team portal calls act for.
	TeamID string `yaml:"team_id,omitempty"`
	// TeamName is the display name of the selected team.
	TeamName string `yaml:"team_name,omitempty"`
}

// Check validates the profile before it is saved.
func (p *Profile) Check() error {
	if p.Username == "" {
		return trace.BadParameter("profile is missing a username")
	}
	return nil
}

// Store persists the profile and the session cookies.
type Store interface {
	// SaveProfile writes the profile.
	SaveProfile(p *Profile) error
	// ReadProfile returns the saved profile or a NotFound error.
	ReadProfile() (*Profile, error)
	// SaveCookies writes the exported cookie jar.
	SaveCookies(cookies []transport.PersistedCookie) error
	// ReadCookies returns the saved cookies, empty when none exist.
	ReadCookies() ([]transport.PersistedCookie, error)
	// Clear removes everything, used by logout.
	Clear() error
}

// FSStore keeps the profile and cookies under a directory, by default
// ~/.applepie.
type FSStore struct {
	// Dir is the store directory.
	Dir string
}

// NewFSStore returns a store rooted at dir, or at the default profile
// directory under $HOME when dir is empty.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, trace.Wrap(err)
		}
		dir = filepath.Join(home, defaults.ProfileDir)
	}
	if err := os.MkdirAll(dir, defaults.DirPerms); err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	return &FSStore{Dir: dir}, nil
}

func (s *FSStore) SaveProfile(p *Profile) error {
	if err := p.Check(); err != nil {
		return trace.Wrap(err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return trace.Wrap(err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, profileFile), data, defaults.FilePerms); err != nil {
		return trace.ConvertSystemError(err)
	}
	return nil
}

func (s *FSStore) ReadProfile() (*Profile, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, profileFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, trace.NotFound("no saved profile")
		}
		return nil, trace.ConvertSystemError(err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, trace.Wrap(err)
	}
	return &p, nil
}

func (s *FSStore) SaveCookies(cookies []transport.PersistedCookie) error {
	data, err := json.Marshal(cookies)
	if err != nil {
		return trace.Wrap(err)
	}
	// Cookies carry live session material, keep them owner readable
	// only.
	if err := os.WriteFile(filepath.Join(s.Dir, cookiesFile), data, defaults.FilePerms); err != nil {
		return trace.ConvertSystemError(err)
	}
	return nil
}

func (s *FSStore) ReadCookies() ([]transport.PersistedCookie, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, cookiesFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, trace.ConvertSystemError(err)
	}
	var cookies []transport.PersistedCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, trace.Wrap(err)
	}
	return cookies, nil
}

func (s *FSStore) Clear() error {
	for _, name := range []string{profileFile, cookiesFile} {
		if err := os.Remove(filepath.Join(s.Dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return trace.ConvertSystemError(err)
		}
	}
	return nil
}

// MemStore keeps everything in memory, used by tests.
type MemStore struct {
	profile *Profile
	cookies []transport.PersistedCookie
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) SaveProfile(p *Profile) error {
	if err := p.Check(); err != nil {
		return trace.Wrap(err)
	}
	copied := *p
	s.profile = &copied
	return nil
}

func (s *MemStore) ReadProfile() (*Profile, error) {
	if s.profile == nil {
		return nil, trace.NotFound("no saved profile")
	}
	copied := *s.profile
	return &copied, nil
}

func (s *MemStore) SaveCookies(cookies []transport.PersistedCookie) error {
	s.cookies = append([]transport.PersistedCookie(nil), cookies...)
	return nil
}

func (s *MemStore) ReadCookies() ([]transport.PersistedCookie, error) {
	return append([]transport.PersistedCookie(nil), s.cookies...), nil
}

func (s *MemStore) Clear() error {
	s.profile = nil
	s.cookies = nil
	return nil
}
