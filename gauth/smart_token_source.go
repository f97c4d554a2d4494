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
	"sync"

	"github.com/ausocean/utils/logging"
	"golang.org/x/oauth2"
)

// tokenNotifyFunc is a callback function signature for notifying when a token
// event happens.
type tokenNotifyFunc func(*oauth2.Token) error

// SmartTokenSource implements the TokenSource interface, with an additional
// callback function which is called when the underlying token is refreshed.
// It is safe for concurrent use.
type SmartTokenSource struct {
	// Token source used to get a refreshed token.
	src oauth2.TokenSource

	// Called when the token is refreshed.
	notify tokenNotifyFunc

	log logging.Logger

	mu   sync.Mutex
	curr *oauth2.Token // Most recent known token.
}

// NewSmartTokenSource returns a SmartTokenSource wrapping src, which should
// start from tok. notify is called whenever the access token changes; its
// errors are logged but do not fail Token.
func NewSmartTokenSource(src oauth2.TokenSource, tok *oauth2.Token, notify tokenNotifyFunc, log logging.Logger) *SmartTokenSource {
	return &SmartTokenSource{src: src, notify: notify, log: log, curr: tok}
}

// Token returns a token with a valid access token, calling the notify
// callback if the token was refreshed.
func (s *SmartTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curr != nil && s.curr.AccessToken == tok.AccessToken {
		return s.curr, nil
	}
	s.curr = tok
	if s.notify != nil {
		err = s.notify(tok)
		if err != nil {
			// The refreshed token is still usable, it just won't survive a restart.
			s.log.Warning("could not persist refreshed token", "error", err)
		}
	}
	return tok, nil
}
