/*
LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package gauth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/ausocean/utils/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// tokenServer issues access-1 for the code "good-code" and rejects others.
func tokenServer(t *testing.T) *httptest.Server {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("could not parse form: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		io.WriteString(w, `{"access_token":"access-1","refresh_token":"refresh-1","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(s.Close)
	return s
}

func testConfig(s *httptest.Server) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/oauth2callback",
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   s.URL + "/auth",
			TokenURL:  s.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func TestAuthenticatorExchange(t *testing.T) {
	ctx := context.Background()
	s := tokenServer(t)
	store := &FileStore{Name: filepath.Join(t.TempDir(), "token.json")}
	a := NewAuthenticator(testConfig(s), store, (*logging.TestLogger)(t))

	require.NoError(t, a.Load(ctx), "missing token should not be an error")
	assert.False(t, a.Authorised())
	_, err := a.TokenSource()
	assert.ErrorIs(t, err, ErrNoToken)

	assert.ErrorIs(t, a.Exchange(ctx, ""), ErrNoCode)
	assert.Error(t, a.Exchange(ctx, "bad-code"))
	assert.False(t, a.Authorised())

	require.NoError(t, a.Exchange(ctx, "good-code"))
	ts, err := a.TokenSource()
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)

	saved, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", saved.RefreshToken)

	// A fresh authenticator picks the token up from the store.
	b := NewAuthenticator(testConfig(s), store, (*logging.TestLogger)(t))
	require.NoError(t, b.Load(ctx))
	assert.True(t, b.Authorised())
}

func TestAuthCodeURL(t *testing.T) {
	a := NewAuthenticator(testConfig(tokenServer(t)), nil, (*logging.TestLogger)(t))

	u, err := url.Parse(a.AuthCodeURL("xyz"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "client", q.Get("client_id"))
}

type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) { return f() }

func TestSmartTokenSourceNotifies(t *testing.T) {
	access := "access-1"
	src := tokenSourceFunc(func() (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: access}, nil
	})

	var notified []string
	notify := func(tok *oauth2.Token) error {
		notified = append(notified, tok.AccessToken)
		return errors.New("store unavailable")
	}
	s := NewSmartTokenSource(src, &oauth2.Token{AccessToken: "access-1"}, notify, (*logging.TestLogger)(t))

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Empty(t, notified, "unchanged token should not notify")

	access = "access-2"
	tok, err = s.Token()
	require.NoError(t, err, "notify errors should not fail Token")
	assert.Equal(t, "access-2", tok.AccessToken)
	assert.Equal(t, []string{"access-2"}, notified)
}
