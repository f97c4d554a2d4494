/*
DESCRIPTION
  source.go provides classification and pre-download validation of video
  source locators.

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

// Package source classifies and validates the locations videos are read from.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/cenkalti/backoff/v5"

	"github.com/ausocean/oceanupload/artifact"
	"github.com/ausocean/oceanupload/platform"
)

// UserAgent is sent with every probe and download so that hosts which
// reject unknown clients still serve us.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Defaults.
const (
	DefaultRetries      = 3
	DefaultProbeTimeout = 10 * time.Second
)

// Validation failure reasons.
const (
	ReasonRequired     = "URL is required"
	ReasonBadStatus    = "Invalid video URL"
	ReasonNotVideo     = "URL does not point to a video file"
	ReasonSizeExceeded = "Video size exceeds 128MB limit"
)

var errSizeExceeded = errors.New("video size exceeds 128MB limit")

// Kind distinguishes the two forms of Locator.
type Kind int

const (
	LocalFile Kind = iota
	RemoteURL
)

func (k Kind) String() string {
	switch k {
	case LocalFile:
		return "local"
	case RemoteURL:
		return "remote"
	default:
		return "unknown"
	}
}

// Locator references the bytes of a video, either on local disk or at a
// remote URL. Locators are immutable.
type Locator struct {
	kind Kind
	ref  string
}

// Local returns a Locator for a file on local disk.
func Local(path string) Locator { return Locator{kind: LocalFile, ref: path} }

// Remote returns a Locator for a remote URL.
func Remote(u string) Locator { return Locator{kind: RemoteURL, ref: strings.TrimSpace(u)} }

// Kind returns the kind of the locator.
func (l Locator) Kind() Kind { return l.kind }

// Path returns the local path, or the empty string for remote locators.
func (l Locator) Path() string {
	if l.kind != LocalFile {
		return ""
	}
	return l.ref
}

// URL returns the remote URL, or the empty string for local locators.
func (l Locator) URL() string {
	if l.kind != RemoteURL {
		return ""
	}
	return l.ref
}

func (l Locator) String() string { return l.kind.String() + ":" + l.ref }

// Outcome is the result of validating a locator.
type Outcome struct {
	Valid  bool
	Reason string
}

func valid() Outcome                { return Outcome{Valid: true} }
func invalid(reason string) Outcome { return Outcome{Reason: reason} }

// Resolver validates locators before anything is downloaded.
type Resolver struct {
	client    *http.Client
	platforms []platform.Platform
	log       logging.Logger
	maxSize   int64
	retries   uint
	backoff   func() backoff.BackOff
	timeout   time.Duration
	elapsed   time.Duration
}

// Option is a functional option for a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the client used for generic URL probes.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithPlatforms sets the streaming platforms that are recognised.
func WithPlatforms(p ...platform.Platform) Option {
	return func(r *Resolver) { r.platforms = p }
}

// WithMaxSize overrides the artifact.MaxFileSize ceiling.
func WithMaxSize(n int64) Option {
	return func(r *Resolver) { r.maxSize = n }
}

// WithRetries sets the number of platform probe retries. The probe is
// attempted n+1 times in total.
func WithRetries(n uint) Option {
	return func(r *Resolver) { r.retries = n }
}

// WithBackOff sets the delay policy between platform probe attempts.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(r *Resolver) { r.backoff = f }
}

// WithMaxElapsedTime caps the total time spent probing a platform. Zero,
// the default, leaves the retry count as the only bound.
func WithMaxElapsedTime(d time.Duration) Option {
	return func(r *Resolver) { r.elapsed = d }
}

// NewResolver returns a Resolver with the provided options applied.
func NewResolver(log logging.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		client:  http.DefaultClient,
		log:     log,
		maxSize: artifact.MaxFileSize,
		retries: DefaultRetries,
		backoff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		timeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Platform returns the platform recognising u, or nil.
func (r *Resolver) Platform(u *url.URL) platform.Platform {
	for _, p := range r.platforms {
		if p.Match(u) {
			return p
		}
	}
	return nil
}

// Resolve validates the locator string, which is expected to be a URL.
// Only network calls are made; nothing is written to disk.
func (r *Resolver) Resolve(ctx context.Context, locator string) Outcome {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return invalid(ReasonRequired)
	}

	u, err := url.Parse(locator)
	if err != nil {
		return invalid(fmt.Sprintf("Invalid URL: %v", err))
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid(fmt.Sprintf("Invalid URL: unsupported URL %q", locator))
	}

	if p := r.Platform(u); p != nil {
		return r.probePlatform(ctx, p, locator)
	}
	return r.probeURL(ctx, locator)
}

// probePlatform checks a streaming platform video has a combined format
// under the size ceiling, retrying transient failures.
func (r *Resolver) probePlatform(ctx context.Context, p platform.Platform, locator string) Outcome {
	attempt := 0
	_, err := backoff.Retry(ctx,
		func() (*platform.Format, error) {
			attempt++
			f, err := p.Probe(ctx, locator)
			if errors.Is(err, platform.ErrNoFormat) {
				return nil, backoff.Permanent(err)
			}
			if err != nil {
				return nil, err
			}
			if f.ContentLength > r.maxSize {
				return nil, backoff.Permanent(errSizeExceeded)
			}
			return f, nil
		},
		backoff.WithBackOff(r.backoff()),
		backoff.WithMaxTries(r.retries+1),
		backoff.WithMaxElapsedTime(r.elapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.log.Warning("platform probe attempt failed", "platform", p.Name(), "attempt", attempt, "retryIn", next, "error", err)
		}),
	)
	if err != nil {
		return invalid(fmt.Sprintf("YouTube video validation failed: %v", err))
	}
	return valid()
}

// probeURL issues a HEAD request to check a generic URL points to a video
// within the size ceiling. A missing Content-Length is accepted.
func (r *Resolver) probeURL(ctx context.Context, locator string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, locator, nil)
	if err != nil {
		return invalid(fmt.Sprintf("Invalid URL: %v", err))
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return invalid(fmt.Sprintf("URL validation failed: %v", err))
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return invalid(ReasonBadStatus)
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), "video/") {
		return invalid(ReasonNotVideo)
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err == nil && n > r.maxSize {
			return invalid(ReasonSizeExceeded)
		}
	}
	return valid()
}
