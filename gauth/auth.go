/*
DESCRIPTION
  auth.go provides an Authenticator which performs the Google OAuth2
  authorisation code exchange and holds the resulting token for API clients.

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
	"fmt"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const saveTimeout = 30 * time.Second

// ErrNoCode is returned by Exchange when the authorisation code is empty.
var ErrNoCode = errors.New("authorisation code is required")

// NewConfig returns an OAuth2 config for Google's endpoints.
func NewConfig(clientID, clientSecret, redirectURL string, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// Authenticator holds the token of a single authorised account.
type Authenticator struct {
	cfg   *oauth2.Config
	store TokenStore
	log   logging.Logger

	mu sync.Mutex
	ts oauth2.TokenSource
}

// NewAuthenticator returns an Authenticator using cfg, persisting tokens to
// store. If store is nil tokens are held in memory only.
func NewAuthenticator(cfg *oauth2.Config, store TokenStore, log logging.Logger) *Authenticator {
	return &Authenticator{cfg: cfg, store: store, log: log}
}

// Load restores a previously saved token. A missing token is not an error;
// the account simply remains unauthorised until Exchange is called.
func (a *Authenticator) Load(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	tok, err := a.store.Load(ctx)
	if errors.Is(err, ErrNoToken) {
		a.log.Info("no stored token, authorisation required")
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not load token: %w", err)
	}
	a.install(ctx, tok)
	a.log.Info("loaded stored token", "expiry", tok.Expiry)
	return nil
}

// AuthCodeURL returns the consent page URL, requesting offline access so a
// refresh token is issued.
func (a *Authenticator) AuthCodeURL(state string) string {
	return a.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange converts an authorisation code into a token, which is installed
// and persisted. The token is usable even if persisting it fails.
func (a *Authenticator) Exchange(ctx context.Context, code string) error {
	if code == "" {
		return ErrNoCode
	}
	tok, err := a.cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("could not exchange code: %w", err)
	}
	a.install(ctx, tok)

	err = a.save(tok)
	if err != nil {
		return fmt.Errorf("could not save token: %w", err)
	}
	a.log.Info("authorisation complete", "expiry", tok.Expiry)
	return nil
}

// TokenSource returns the source of the current token, or ErrNoToken if the
// account has not been authorised.
func (a *Authenticator) TokenSource() (oauth2.TokenSource, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ts == nil {
		return nil, ErrNoToken
	}
	return a.ts, nil
}

// Authorised reports whether a token is available.
func (a *Authenticator) Authorised() bool {
	_, err := a.TokenSource()
	return err == nil
}

// install makes tok current. Refreshes use the HTTP client carried by ctx,
// if any, but are not bound to its deadline.
func (a *Authenticator) install(ctx context.Context, tok *oauth2.Token) {
	rctx := context.Background()
	if c := ctx.Value(oauth2.HTTPClient); c != nil {
		rctx = context.WithValue(rctx, oauth2.HTTPClient, c)
	}
	ts := NewSmartTokenSource(a.cfg.TokenSource(rctx, tok), tok, a.save, a.log)

	a.mu.Lock()
	a.ts = ts
	a.mu.Unlock()
}

func (a *Authenticator) save(tok *oauth2.Token) error {
	if a.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	return a.store.Save(ctx, tok)
}
