/*
DESCRIPTION
  metadata.go provides generation of video titles, descriptions and tags.

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

// Package metadata derives publishing metadata for a video from its title.
package metadata

import (
	"context"

	"github.com/ausocean/utils/logging"
)

// Metadata is the publishing information attached to an uploaded video.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Generator derives metadata from a video title.
type Generator interface {
	Generate(ctx context.Context, title string) (Metadata, error)
}

// Fallback returns the metadata used when no generator is available or
// generation fails.
func Fallback(title string) Metadata {
	return Metadata{
		Title:       title,
		Description: "Uploaded video: " + title,
		Tags:        []string{},
	}
}

// Generate asks g for metadata, returning the Fallback if g is nil or fails.
// Generation errors are logged and never returned.
func Generate(ctx context.Context, g Generator, title string, log logging.Logger) Metadata {
	if g == nil {
		return Fallback(title)
	}
	md, err := g.Generate(ctx, title)
	if err != nil {
		log.Warning("metadata generation failed, using fallback", "title", title, "error", err)
		return Fallback(title)
	}
	if md.Tags == nil {
		md.Tags = []string{}
	}
	return md
}
