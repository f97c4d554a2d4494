/*
DESCRIPTION
  Authorisation routes for the channel account using OAuth2.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This file is part of Ocean Upload. Ocean Upload is free software: you can
  redistribute it and/or modify it under the terms of the GNU
  General Public License as published by the Free Software
  Foundation, either version 3 of the License, or (at your option)
  any later version.

  Ocean Upload is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see <http://www.gnu.org/licenses/>.
*/

package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ausocean/oceanupload/gauth"
)

const (
	stateCookie = "oauthstate"
	stateMaxAge = 10 * time.Minute
)

// loginHandler starts the OAuth2 flow, redirecting to Google's consent page
// with a state value that is also held in a signed cookie.
func (svc *service) loginHandler(c *fiber.Ctx) error {
	state := uuid.NewString()
	encoded, err := svc.cookies.Encode(stateCookie, state)
	if err != nil {
		return svc.logAndReturnError(c, fmt.Sprintf("could not encode state: %v", err))
	}
	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(stateMaxAge.Seconds()),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(svc.auth.AuthCodeURL(state), fiber.StatusFound)
}

// callbackHandler handles callbacks from Google's OAuth2 flow, exchanging
// the code for a token and redirecting home. The state is checked against
// the login cookie when the provider returns one.
func (svc *service) callbackHandler(c *fiber.Ctx) error {
	if e := c.Query("error"); e != "" {
		return svc.logAndReturnError(c, fmt.Sprintf("authorisation denied: %s", e), withStatus(fiber.StatusBadRequest))
	}

	if state := c.Query("state"); state != "" {
		var want string
		err := svc.cookies.Decode(stateCookie, c.Cookies(stateCookie), &want)
		if err != nil || want != state {
			return svc.logAndReturnError(c, "invalid oauth state", withStatus(fiber.StatusBadRequest))
		}
		c.ClearCookie(stateCookie)
	}

	err := svc.auth.Exchange(c.UserContext(), c.Query("code"))
	if errors.Is(err, gauth.ErrNoCode) {
		return svc.logAndReturnError(c, err.Error(), withStatus(fiber.StatusBadRequest))
	} else if err != nil {
		return svc.logAndReturnError(c, fmt.Sprintf("error handling callback: %v", err))
	}

	return c.Redirect("/", fiber.StatusFound)
}

// logAndReturnError logs the passed message as an error and returns a response to the client.
// The response code defaults to internal server error (500) and the error defaults to the status text.
func (svc *service) logAndReturnError(c *fiber.Ctx, message string, opts ...loggingErrorOption) error {
	c.Status(fiber.StatusInternalServerError)
	kv := make(map[string]string)
	kv["details"] = message
	for i, opt := range opts {
		err := opt(c, kv)
		if err != nil {
			svc.log.Error("error applying option", "index", i, "error", err)
		}
	}
	kv["error"] = http.StatusText(c.Response().StatusCode())
	if c.Response().StatusCode() >= fiber.StatusInternalServerError {
		svc.log.Error(message, "path", c.Path())
	} else {
		svc.log.Warning(message, "path", c.Path())
	}
	return c.JSON(kv)
}

// withStatus sets the status of the response.
func withStatus(status int) loggingErrorOption {
	return func(c *fiber.Ctx, m map[string]string) error {
		c.Status(status)
		return nil
	}
}

type loggingErrorOption func(c *fiber.Ctx, m map[string]string) error
