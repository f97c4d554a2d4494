/*
DESCRIPTION
  strategy.go provides the download strategies used by the Fetcher.

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

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/cenkalti/backoff/v5"

	"github.com/ausocean/oceanupload/platform"
	"github.com/ausocean/oceanupload/source"
)

// HTTP download defaults.
const (
	DefaultRetries = 3
	DefaultTimeout = 5 * time.Minute
)

// PlatformStream downloads the best combined stream of a streaming platform
// video. It is not retried; the Fetcher falls back to the next strategy.
type PlatformStream struct {
	p platform.Platform
}

// NewPlatformStream returns a strategy streaming videos from p.
func NewPlatformStream(p platform.Platform) *PlatformStream {
	return &PlatformStream{p: p}
}

// Name implements Strategy.
func (s *PlatformStream) Name() string { return s.p.Name() + "-stream" }

// Match implements Strategy.
func (s *PlatformStream) Match(u *url.URL) bool { return s.p.Match(u) }

// Download implements Strategy.
func (s *PlatformStream) Download(ctx context.Context, rawURL string, dst Sink) error {
	r, _, err := s.p.Open(ctx, rawURL)
	if err != nil {
		return err
	}
	defer r.Close()

	_, err = io.Copy(dst, r)
	if err != nil {
		return fmt.Errorf("could not copy stream: %w", err)
	}
	return nil
}

// HTTPGet downloads any URL with a plain GET, retrying failed attempts.
type HTTPGet struct {
	client  *http.Client
	log     logging.Logger
	retries uint
	timeout time.Duration
	elapsed time.Duration
	backoff func() backoff.BackOff
}

// HTTPOption is a functional option for HTTPGet.
type HTTPOption func(*HTTPGet)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPGet) { h.client = c }
}

// WithRetries sets the number of retries; n+1 attempts are made in total.
func WithRetries(n uint) HTTPOption {
	return func(h *HTTPGet) { h.retries = n }
}

// WithTimeout sets the wall-clock limit of a single attempt.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPGet) { h.timeout = d }
}

// WithBackOff sets the delay policy between attempts.
func WithBackOff(f func() backoff.BackOff) HTTPOption {
	return func(h *HTTPGet) { h.backoff = f }
}

// WithMaxElapsedTime caps the total time spent across attempts. Zero, the
// default, leaves the attempt count as the only bound.
func WithMaxElapsedTime(d time.Duration) HTTPOption {
	return func(h *HTTPGet) { h.elapsed = d }
}

// NewHTTPGet returns an HTTPGet strategy.
func NewHTTPGet(log logging.Logger, opts ...HTTPOption) *HTTPGet {
	h := &HTTPGet{
		client:  http.DefaultClient,
		log:     log,
		retries: DefaultRetries,
		timeout: DefaultTimeout,
		backoff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements Strategy.
func (h *HTTPGet) Name() string { return "http" }

// Match implements Strategy.
func (h *HTTPGet) Match(u *url.URL) bool { return u.Scheme == "http" || u.Scheme == "https" }

// Download implements Strategy. A warning is logged for every failed attempt
// that is followed by another; the final failure is returned instead.
func (h *HTTPGet) Download(ctx context.Context, rawURL string, dst Sink) error {
	attempts := h.retries + 1
	attempt := uint(0)
	_, err := backoff.Retry(ctx,
		func() (struct{}, error) {
			attempt++
			if attempt > 1 {
				err := dst.Reset()
				if err != nil {
					return struct{}{}, backoff.Permanent(err)
				}
			}
			err := h.get(ctx, rawURL, dst)
			if errors.Is(err, errLimitReached) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		},
		backoff.WithBackOff(h.backoff()),
		backoff.WithMaxTries(attempts),
		backoff.WithMaxElapsedTime(h.elapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			h.log.Warning("download attempt failed", "attempt", attempt, "of", attempts, "retryIn", next, "url", rawURL, "error", err)
		}),
	)
	return err
}

// get performs a single bounded download attempt.
func (h *HTTPGet) get(ctx context.Context, rawURL string, dst io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("could not create request: %w", err))
	}
	req.Header.Set("User-Agent", source.UserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not get video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	_, err = io.Copy(dst, resp.Body)
	if err != nil {
		return fmt.Errorf("could not write video: %w", err)
	}
	return nil
}
