/*
DESCRIPTION
  artifact.go provides management of the transient video files created while
  a request is being processed.

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

// Package artifact owns the temporary local copies of videos that are
// awaiting upload. Every artifact created by a Store must be released by
// its owner before the owning request completes.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/google/uuid"
)

// MaxFileSize is the largest video we will accept, in bytes.
const MaxFileSize = 128 * 1024 * 1024

// Artifact naming.
const (
	namePrefix = "temp-"
	defaultExt = ".mp4"
)

// Exported errors.
var (
	ErrSizeExceeded  = errors.New("video exceeds 128MB limit")
	ErrEmptyArtifact = errors.New("downloaded file is empty")
)

// Artifact is a local file holding video bytes.
type Artifact struct {
	Path      string
	Size      int64
	CreatedAt time.Time

	// Owned artifacts were created by the Store and are deleted on release.
	// Unowned artifacts belong to the caller and are never deleted.
	Owned bool
}

// Store creates, verifies and releases artifacts within a working directory.
type Store struct {
	dir     string
	maxSize int64
	log     logging.Logger
}

// Option is a functional option for a Store.
type Option func(*Store)

// WithMaxSize overrides the MaxFileSize ceiling.
func WithMaxSize(n int64) Option {
	return func(s *Store) { s.maxSize = n }
}

// NewStore returns a Store rooted at dir. The directory is not created until
// the first call to New.
func NewStore(dir string, log logging.Logger, opts ...Option) *Store {
	s := &Store{dir: dir, maxSize: MaxFileSize, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the working directory of the store.
func (s *Store) Dir() string { return s.dir }

// MaxSize returns the size ceiling enforced by Verify.
func (s *Store) MaxSize() int64 { return s.maxSize }

// New returns a new owned artifact with a unique path inside the working
// directory, creating the directory if needed. The file itself is not
// created.
func (s *Store) New(ext string) (*Artifact, error) {
	err := os.MkdirAll(s.dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("could not create working directory: %w", err)
	}
	if ext == "" {
		ext = defaultExt
	}
	now := time.Now()
	name := fmt.Sprintf("%s%d-%s%s", namePrefix, now.UnixMilli(), uuid.NewString(), ext)
	return &Artifact{Path: filepath.Join(s.dir, name), CreatedAt: now, Owned: true}, nil
}

// Adopt wraps a caller-supplied file as an unowned artifact.
func (s *Store) Adopt(path string) *Artifact {
	return &Artifact{Path: path, CreatedAt: time.Now()}
}

// Verify checks the size of the file on disk. An artifact larger than the
// ceiling fails with ErrSizeExceeded and an empty one with ErrEmptyArtifact.
// Owned artifacts that fail verification are deleted before returning.
func (s *Store) Verify(a *Artifact) (*Artifact, error) {
	fi, err := os.Stat(a.Path)
	if err != nil {
		return nil, fmt.Errorf("could not stat artifact: %w", err)
	}

	switch {
	case fi.Size() > s.maxSize:
		err = ErrSizeExceeded
	case fi.Size() == 0:
		err = ErrEmptyArtifact
	default:
		a.Size = fi.Size()
		return a, nil
	}

	if rerr := s.Release(a); rerr != nil {
		s.log.Error("could not delete rejected artifact", "path", a.Path, "error", rerr)
	}
	return nil, err
}

// Release deletes an owned artifact. It is a no-op if the file is already
// gone or the artifact is not owned by the store.
func (s *Store) Release(a *Artifact) error {
	if a == nil || !a.Owned {
		return nil
	}
	err := os.Remove(a.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("could not remove artifact: %w", err)
	}
	if err == nil {
		s.log.Debug("released artifact", "path", a.Path)
	}
	return nil
}

// Sweep removes artifacts in the working directory that were last modified
// more than olderThan ago, returning the number removed. These are left
// behind only if the process died mid-request.
func (s *Store) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("could not read working directory: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	var n int
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), namePrefix) {
			continue
		}
		fi, err := e.Info()
		if err != nil || fi.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		err = os.Remove(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warning("could not sweep stale artifact", "path", path, "error", err)
			continue
		}
		n++
	}
	return n, nil
}
