/*
DESCRIPTION
  service.go provides the YouTube Data API backed VideoService.

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

package youtube

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Scopes are the OAuth2 scopes needed to upload and inspect videos.
var Scopes = []string{youtube.YoutubeUploadScope, youtube.YoutubeReadonlyScope}

// VideoService is the subset of the YouTube Data API used by an Uploader.
type VideoService interface {
	// Insert uploads media as a new video described by video.
	Insert(ctx context.Context, video *youtube.Video, media io.Reader) (*youtube.Video, error)

	// Get returns the video with the given ID.
	Get(ctx context.Context, id string) (*youtube.Video, error)
}

// TokenProvider supplies credentials for the channel account.
type TokenProvider interface {
	TokenSource() (oauth2.TokenSource, error)
}

// APIService is a VideoService calling the YouTube Data API with
// credentials obtained from a TokenProvider at call time.
type APIService struct {
	tokens TokenProvider
	opts   []option.ClientOption
}

// NewAPIService returns an APIService. Additional client options, such as
// option.WithEndpoint, are passed to the underlying service.
func NewAPIService(tokens TokenProvider, opts ...option.ClientOption) *APIService {
	return &APIService{tokens: tokens, opts: opts}
}

// service returns an authorised YouTube service, failing if no credentials
// are available.
func (s *APIService) service(ctx context.Context) (*youtube.Service, error) {
	ts, err := s.tokens.TokenSource()
	if err != nil {
		return nil, fmt.Errorf("could not get youtube credentials: %w", err)
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}, s.opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create youtube service: %w", err)
	}
	return svc, nil
}

// Insert implements VideoService.
func (s *APIService) Insert(ctx context.Context, video *youtube.Video, media io.Reader) (*youtube.Video, error) {
	svc, err := s.service(ctx)
	if err != nil {
		return nil, err
	}
	return youtube.NewVideosService(svc).Insert([]string{"snippet", "status"}, video).Media(media).Context(ctx).Do()
}

// Get implements VideoService.
func (s *APIService) Get(ctx context.Context, id string) (*youtube.Video, error) {
	svc, err := s.service(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := youtube.NewVideosService(svc).List([]string{"snippet", "status"}).Id(id).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, ErrVideoNotFound
	}
	return resp.Items[0], nil
}
