/*
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

package pipeline

import "errors"

// Failure kinds. Every error returned by Run matches exactly one of these
// with errors.Is.
var (
	ErrMissingInput  = errors.New("missing video")
	ErrInvalidSource = errors.New("invalid video URL")
	ErrFetchFailed   = errors.New("download failed")
	ErrUnavailable   = errors.New("video file unavailable")
	ErrSizeExceeded  = errors.New("video exceeds size limit")
	ErrEmptyArtifact = errors.New("downloaded video is empty")
	ErrUploadFailed  = errors.New("upload failed")
)

// Response titles.
const (
	titleMissingInput  = "Missing video"
	titleInvalidSource = "Invalid video URL"
	titleFailed        = "Upload failed"
)

// Error is a pipeline failure.
type Error struct {
	Kind   error  // One of the Err* kinds.
	Stage  State  // Stage at which the pipeline failed.
	Detail string // Human readable cause.
	Err    error  // Underlying error, if any.
}

func newError(kind error, stage State, detail string, err error) *Error {
	if detail == "" && err != nil {
		detail = err.Error()
	}
	return &Error{Kind: kind, Stage: stage, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// IsInputError reports whether err was caused by the caller's request rather
// than by the pipeline or its collaborators.
func IsInputError(err error) bool {
	return errors.Is(err, ErrMissingInput) || errors.Is(err, ErrInvalidSource)
}

// Describe returns a short title for err suitable for a response, and
// details holding its cause.
func Describe(err error) (title, details string) {
	var e *Error
	if !errors.As(err, &e) {
		return titleFailed, err.Error()
	}
	switch e.Kind {
	case ErrMissingInput:
		return titleMissingInput, e.Detail
	case ErrInvalidSource:
		return titleInvalidSource, e.Detail
	case ErrUploadFailed:
		return titleFailed, e.Detail
	}
	if e.Detail == "" {
		return titleFailed, e.Kind.Error()
	}
	return titleFailed, e.Kind.Error() + ": " + e.Detail
}
