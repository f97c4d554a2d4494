/*
DESCRIPTION
  fetch.go provides retrieval of remote videos into transient artifacts.

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

// Package fetch downloads remote videos into artifacts using an ordered list
// of download strategies.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/oceanupload/artifact"
	"github.com/ausocean/oceanupload/source"
)

// Exported errors.
var (
	ErrNotRemote    = errors.New("locator is not a remote URL")
	ErrNoStrategies = errors.New("no download strategy matches URL")
)

// Strategy is one way of downloading a URL.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Match reports whether the strategy can attempt u.
	Match(u *url.URL) bool

	// Download writes the video at rawURL to dst, which is empty on entry.
	Download(ctx context.Context, rawURL string, dst Sink) error
}

// Sink receives downloaded bytes. Reset discards everything written so far
// so a failed attempt can be retried from the start.
type Sink interface {
	io.Writer
	Reset() error
}

// Fetcher downloads remote locators into artifacts created by a store.
type Fetcher struct {
	store      *artifact.Store
	strategies []Strategy
	log        logging.Logger
}

// New returns a Fetcher that tries strategies in order.
func New(store *artifact.Store, log logging.Logger, strategies ...Strategy) *Fetcher {
	return &Fetcher{store: store, strategies: strategies, log: log}
}

// Fetch downloads loc into a new artifact. Matching strategies are tried in
// order and the first to succeed wins; if all fail the last error is
// returned. The artifact is returned even on failure whenever it was
// created, and it is the caller's responsibility to release it. If a
// strategy panics the artifact is released before the panic propagates.
func (f *Fetcher) Fetch(ctx context.Context, loc source.Locator) (*artifact.Artifact, error) {
	if loc.Kind() != source.RemoteURL {
		return nil, ErrNotRemote
	}
	u, err := url.Parse(loc.URL())
	if err != nil {
		return nil, fmt.Errorf("could not parse URL: %w", err)
	}

	a, err := f.store.New("")
	if err != nil {
		return nil, err
	}
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := f.store.Release(a)
		if err != nil {
			f.log.Error("could not release artifact after panic", "path", a.Path, "error", err)
		}
		panic(r)
	}()

	var lastErr error = ErrNoStrategies
	for _, s := range f.strategies {
		if !s.Match(u) {
			continue
		}
		err = f.attempt(ctx, s, loc.URL(), a)
		if err == nil {
			f.log.Debug("fetched video", "strategy", s.Name(), "path", a.Path)
			return a, nil
		}
		f.log.Warning("download strategy failed", "strategy", s.Name(), "url", loc.URL(), "error", err)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return a, lastErr
}

// attempt runs one strategy into a truncated artifact file, writing no more
// than one byte past the size ceiling so oversized sources are rejected by
// verification without filling the disk.
func (f *Fetcher) attempt(ctx context.Context, s Strategy, rawURL string, a *artifact.Artifact) error {
	file, err := os.Create(a.Path)
	if err != nil {
		return fmt.Errorf("could not create artifact file: %w", err)
	}
	defer file.Close()
	limit := f.store.MaxSize() + 1
	sink := &fileSink{f: file, limit: limit, n: limit}

	err = s.Download(ctx, rawURL, sink)
	if errors.Is(err, errLimitReached) {
		err = nil
	}
	cerr := file.Close()
	if err != nil {
		return err
	}
	if cerr != nil {
		return fmt.Errorf("could not close artifact file: %w", cerr)
	}
	return nil
}

var errLimitReached = errors.New("size limit reached")

// fileSink is a Sink accepting at most limit bytes, failing with
// errLimitReached once they are consumed.
type fileSink struct {
	f     *os.File
	limit int64
	n     int64 // Bytes remaining.
}

func (s *fileSink) Write(p []byte) (int, error) {
	if s.n <= 0 {
		return 0, errLimitReached
	}
	truncated := false
	if int64(len(p)) > s.n {
		p = p[:s.n]
		truncated = true
	}
	n, err := s.f.Write(p)
	s.n -= int64(n)
	if err == nil && truncated {
		err = errLimitReached
	}
	return n, err
}

func (s *fileSink) Reset() error {
	err := s.f.Truncate(0)
	if err != nil {
		return fmt.Errorf("could not truncate artifact file: %w", err)
	}
	_, err = s.f.Seek(0, io.SeekStart)
	if err != nil {
		return fmt.Errorf("could not rewind artifact file: %w", err)
	}
	s.n = s.limit
	return nil
}
