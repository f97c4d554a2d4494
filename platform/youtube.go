/*
DESCRIPTION
  youtube.go provides probing and streaming of videos hosted on YouTube.

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

// Package platform recognises and reads from video streaming platforms.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	ytdl "github.com/kkdai/youtube/v2"
)

// ErrNoFormat is returned when a video has no combined audio and video format.
var ErrNoFormat = errors.New("no suitable video format found")

// Format describes a downloadable rendition of a platform video.
type Format struct {
	Itag          int
	MimeType      string
	QualityLabel  string
	Width         int
	Height        int
	Bitrate       int
	ContentLength int64 // Zero if the platform did not declare it.
}

// Platform is a streaming platform from which videos can be read.
type Platform interface {
	// Name returns a short human readable platform name.
	Name() string

	// Match reports whether u refers to a video on this platform.
	Match(u *url.URL) bool

	// Probe returns the best combined audio and video format for the video
	// at rawURL without transferring it.
	Probe(ctx context.Context, rawURL string) (*Format, error)

	// Open returns a stream of the best format and its declared length.
	Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error)
}

// videoClient is the subset of the YouTube client we use.
type videoClient interface {
	GetVideoContext(ctx context.Context, url string) (*ytdl.Video, error)
	GetStreamContext(ctx context.Context, video *ytdl.Video, format *ytdl.Format) (io.ReadCloser, int64, error)
}

// Host suffixes that identify YouTube URLs.
var youtubeHosts = []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}

// YouTube implements Platform for youtube.com.
type YouTube struct {
	client videoClient
}

// NewYouTube returns a YouTube platform that makes requests using hc. If hc
// is nil, http.DefaultClient is used.
func NewYouTube(hc *http.Client) *YouTube {
	return &YouTube{client: &ytdl.Client{HTTPClient: hc}}
}

// Name implements Platform.
func (y *YouTube) Name() string { return "youtube" }

// Match implements Platform.
func (y *YouTube) Match(u *url.URL) bool {
	if u == nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, h := range youtubeHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			_, err := ytdl.ExtractVideoID(u.String())
			return err == nil
		}
	}
	return false
}

// Probe implements Platform.
func (y *YouTube) Probe(ctx context.Context, rawURL string) (*Format, error) {
	_, f, err := y.best(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return toFormat(f), nil
}

// Open implements Platform.
func (y *YouTube) Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	v, f, err := y.best(ctx, rawURL)
	if err != nil {
		return nil, 0, err
	}
	r, n, err := y.client.GetStreamContext(ctx, v, f)
	if err != nil {
		return nil, 0, fmt.Errorf("could not open stream: %w", err)
	}
	return r, n, nil
}

func (y *YouTube) best(ctx context.Context, rawURL string) (*ytdl.Video, *ytdl.Format, error) {
	v, err := y.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("could not get video info: %w", err)
	}
	f := bestCombined(v.Formats)
	if f == nil {
		return nil, nil, ErrNoFormat
	}
	return v, f, nil
}

// bestCombined returns the highest quality format carrying both audio and
// video, preferring height then bitrate, or nil if there is none.
func bestCombined(formats ytdl.FormatList) *ytdl.Format {
	var best *ytdl.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || !strings.HasPrefix(f.MimeType, "video/") {
			continue
		}
		if best == nil || f.Height > best.Height || (f.Height == best.Height && f.Bitrate > best.Bitrate) {
			best = f
		}
	}
	return best
}

func toFormat(f *ytdl.Format) *Format {
	return &Format{
		Itag:          f.ItagNo,
		MimeType:      f.MimeType,
		QualityLabel:  f.QualityLabel,
		Width:         f.Width,
		Height:        f.Height,
		Bitrate:       f.Bitrate,
		ContentLength: f.ContentLength,
	}
}
