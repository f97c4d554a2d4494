/*
DESCRIPTION
  pipeline.go provides the ingestion pipeline which takes a video from a
  local file or remote URL through to a published YouTube video.

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

// Package pipeline composes source validation, fetching, verification and
// publishing into a single request, guaranteeing that any transient file it
// creates is removed however the request ends.
package pipeline

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/oceanupload/artifact"
	"github.com/ausocean/oceanupload/metadata"
	"github.com/ausocean/oceanupload/source"
	"github.com/ausocean/oceanupload/youtube"
)

// DefaultTitle is used when neither the request nor its source provide one.
const DefaultTitle = "Untitled video"

// State is a stage of a pipeline run.
type State int

// Pipeline states.
const (
	Idle State = iota
	Validating
	Resolving
	Fetching
	Verifying
	Publishing
	Done
	Failed
)

var stateNames = [...]string{
	Idle:       "idle",
	Validating: "validating",
	Resolving:  "resolving",
	Fetching:   "fetching",
	Verifying:  "verifying",
	Publishing: "publishing",
	Done:       "done",
	Failed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Resolver validates remote locators before anything is downloaded.
type Resolver interface {
	Resolve(ctx context.Context, locator string) source.Outcome
}

// Fetcher downloads remote locators into artifacts. It may return an
// artifact alongside an error, which must still be released.
type Fetcher interface {
	Fetch(ctx context.Context, loc source.Locator) (*artifact.Artifact, error)
}

// Store verifies and releases artifacts.
type Store interface {
	Adopt(path string) *artifact.Artifact
	Verify(a *artifact.Artifact) (*artifact.Artifact, error)
	Release(a *artifact.Artifact) error
}

// Publisher uploads a verified file.
type Publisher interface {
	Publish(ctx context.Context, path string, md metadata.Metadata, opts ...youtube.VideoUploadOption) (*youtube.Result, error)
}

// Request is a single ingestion request. If both VideoURL and LocalPath are
// set, VideoURL is used.
type Request struct {
	Title     string
	VideoURL  string
	LocalPath string // Caller owned; never deleted by the pipeline.
	FileName  string // Original name of the file at LocalPath, if known.
}

// Result is the outcome of a successful run.
type Result struct {
	VideoID  string            `json:"videoId"`
	Metadata metadata.Metadata `json:"metadata"`
}

// Pipeline runs ingestion requests. It holds no per-request state and is
// safe for concurrent use if its collaborators are.
type Pipeline struct {
	resolver  Resolver
	fetcher   Fetcher
	store     Store
	publisher Publisher
	gen       metadata.Generator
	log       logging.Logger
}

// New returns a Pipeline. gen may be nil, in which case fallback metadata
// is always used.
func New(r Resolver, f Fetcher, s Store, p Publisher, gen metadata.Generator, log logging.Logger) *Pipeline {
	return &Pipeline{resolver: r, fetcher: f, store: s, publisher: p, gen: gen, log: log}
}

// Run takes req through validation, fetching, verification and publishing.
// Any error returned is an *Error matching one of the Err* kinds. Artifacts
// created by the run are released exactly once before Run returns, even if
// a collaborator panics.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	var (
		state State
		owned *artifact.Artifact
	)
	enter := func(next State) {
		p.log.Debug("pipeline state", "from", state.String(), "to", next.String())
		state = next
	}
	fail := func(kind error, detail string, err error) (*Result, error) {
		e := newError(kind, state, detail, err)
		enter(Failed)
		p.log.Warning("pipeline failed", "stage", e.Stage.String(), "error", e)
		return nil, e
	}
	defer func() {
		if owned == nil {
			return
		}
		err := p.store.Release(owned)
		if err != nil {
			p.log.Error("could not release artifact", "path", owned.Path, "error", err)
		}
	}()

	enter(Validating)
	videoURL := strings.TrimSpace(req.VideoURL)
	if videoURL == "" && req.LocalPath == "" {
		return fail(ErrMissingInput, "Please provide either a video file or URL", nil)
	}

	var loc source.Locator
	if videoURL != "" {
		o := p.resolver.Resolve(ctx, videoURL)
		if !o.Valid {
			return fail(ErrInvalidSource, o.Reason, nil)
		}
		loc = source.Remote(videoURL)
	} else {
		loc = source.Local(req.LocalPath)
	}

	md := metadata.Generate(ctx, p.gen, title(req, videoURL), p.log)

	var (
		a   *artifact.Artifact
		err error
	)
	if loc.Kind() == source.RemoteURL {
		enter(Fetching)
		a, err = p.fetcher.Fetch(ctx, loc)
		if a != nil && a.Owned {
			owned = a
		}
		if err != nil {
			return fail(ErrFetchFailed, "", err)
		}
	} else {
		enter(Resolving)
		a = p.store.Adopt(loc.Path())
	}

	enter(Verifying)
	a, err = p.store.Verify(a)
	switch {
	case errors.Is(err, artifact.ErrSizeExceeded):
		return fail(ErrSizeExceeded, "", err)
	case errors.Is(err, artifact.ErrEmptyArtifact):
		return fail(ErrEmptyArtifact, "", err)
	case err != nil && loc.Kind() == source.RemoteURL:
		return fail(ErrFetchFailed, "", err)
	case err != nil:
		return fail(ErrUnavailable, "", err)
	}

	enter(Publishing)
	res, err := p.publisher.Publish(ctx, a.Path, md)
	if err != nil {
		return fail(ErrUploadFailed, "", err)
	}

	enter(Done)
	p.log.Info("published video", "id", res.VideoID, "source", loc.String(), "size", a.Size)
	return &Result{VideoID: res.VideoID, Metadata: md}, nil
}

// title picks the title for req: the requested one, else the uploaded file
// name, else the last path segment of the URL, else DefaultTitle.
func title(req Request, videoURL string) string {
	if t := strings.TrimSpace(req.Title); t != "" {
		return t
	}
	if videoURL == "" && req.FileName != "" {
		return strings.TrimSuffix(req.FileName, path.Ext(req.FileName))
	}
	if u, err := url.Parse(videoURL); err == nil && videoURL != "" {
		seg := path.Base(u.Path)
		if seg != "." && seg != "/" {
			return strings.TrimSuffix(seg, path.Ext(seg))
		}
	}
	return DefaultTitle
}
