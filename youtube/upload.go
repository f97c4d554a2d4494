/*
DESCRIPTION
  upload.go provides functionality for uploading videos to YouTube.

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

// Package youtube publishes local video files to YouTube.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ausocean/utils/logging"
	"google.golang.org/api/youtube/v3"

	"github.com/ausocean/oceanupload/metadata"
)

// Exported errors.
var (
	ErrUnknownStatus = errors.New("unknown video status")
	ErrVideoNotFound = errors.New("video not found")
)

// Upload defaults.
const (
	// Science & Technology category ID.
	scienceAndTechnologyCategoryID = "28"

	DefaultCategory = scienceAndTechnologyCategoryID
	DefaultPrivacy  = "private"
)

// VideoUploadOption is a functional option type for configuring YouTube video uploads.
type VideoUploadOption func(*youtube.Video) error

// WithTitle sets the title of the video being uploaded.
// It returns an error if the title is empty.
func WithTitle(title string) VideoUploadOption {
	return func(video *youtube.Video) error {
		if title == "" {
			return fmt.Errorf("title cannot be empty")
		}
		video.Snippet.Title = title
		return nil
	}
}

// WithDescription sets the description of the video being uploaded.
func WithDescription(description string) VideoUploadOption {
	return func(video *youtube.Video) error {
		video.Snippet.Description = description
		return nil
	}
}

// WithCategory sets the category of the video being uploaded.
// It accepts either a category ID or a category name, for example "28" or
// "Science & Technology". It returns an error if the category is not found.
func WithCategory(category string) VideoUploadOption {
	return func(video *youtube.Video) error {
		id := sanitiseCategory(category)
		if id == "" {
			return fmt.Errorf("invalid category ID or name: %s", category)
		}
		video.Snippet.CategoryId = id
		return nil
	}
}

// WithPrivacy sets the privacy status of the video being uploaded.
// It accepts "public", "unlisted", or "private" as valid privacy statuses.
func WithPrivacy(privacy string) VideoUploadOption {
	return func(video *youtube.Video) error {
		if !validPrivacy(privacy) {
			return fmt.Errorf("invalid privacy status: %s", privacy)
		}
		video.Status.PrivacyStatus = privacy
		return nil
	}
}

// WithTags sets the tags for the video being uploaded. An empty list leaves
// the video untagged; the API rejects an empty tag string.
func WithTags(tags []string) VideoUploadOption {
	return func(video *youtube.Video) error {
		if len(tags) == 0 {
			video.Snippet.Tags = nil
			return nil
		}
		video.Snippet.Tags = tags
		return nil
	}
}

// CheckOptions reports the first error from applying opts to a blank
// video, so configured options can be rejected before any upload.
func CheckOptions(opts ...VideoUploadOption) error {
	return apply(blankVideo(), opts...)
}

func blankVideo() *youtube.Video {
	return &youtube.Video{Snippet: &youtube.VideoSnippet{}, Status: &youtube.VideoStatus{}}
}

func apply(video *youtube.Video, opts ...VideoUploadOption) error {
	for _, opt := range opts {
		err := opt(video)
		if err != nil {
			return fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return nil
}

// Upload status constants.
const (
	UploadStatusUploaded  = "uploaded"
	UploadStatusProcessed = "processed"
	UploadStatusFailed    = "failed"
	UploadStatusRejected  = "rejected"
	UploadStatusDeleted   = "deleted"
)

// Result is the outcome of a successful publish.
type Result struct {
	VideoID string `json:"videoId"`
}

// Uploader publishes videos through a VideoService.
type Uploader struct {
	svc  VideoService
	log  logging.Logger
	opts []VideoUploadOption
}

// NewUploader returns an Uploader. opts are applied to every upload before
// the per-call options.
func NewUploader(svc VideoService, log logging.Logger, opts ...VideoUploadOption) *Uploader {
	return &Uploader{svc: svc, log: log, opts: opts}
}

// Publish uploads the file at path with the given metadata in a single
// insert call. The video is private unless an option says otherwise.
// Failures are returned immediately without retry.
func (u *Uploader) Publish(ctx context.Context, path string, md metadata.Metadata, opts ...VideoUploadOption) (*Result, error) {
	title := md.Title
	if title == "" {
		title = "Uploaded at " + time.Now().Format("2006-01-02 15:04:05")
	}

	upload := blankVideo()
	all := []VideoUploadOption{
		WithTitle(title),
		WithCategory(DefaultCategory),
		WithPrivacy(DefaultPrivacy),
		WithDescription(md.Description),
		WithTags(md.Tags),
	}
	all = append(append(all, u.opts...), opts...)
	err := apply(upload, all...)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open video: %w", err)
	}
	defer f.Close()

	u.log.Info("uploading video", "title", upload.Snippet.Title, "privacy", upload.Status.PrivacyStatus)
	vid, err := u.svc.Insert(ctx, upload, f)
	if err != nil {
		return nil, fmt.Errorf("failed to insert video: %w", err)
	}
	if vid == nil || vid.Id == "" {
		return nil, errors.New("insert response has no video ID")
	}
	u.log.Info("uploaded video", "id", vid.Id)
	return &Result{VideoID: vid.Id}, nil
}

// Status checks the status for the video with the associated videoID.
// The returned status will be one of:
//   - UploadStatusUploaded
//   - UploadStatusProcessed
//   - UploadStatusFailed
//   - UploadStatusRejected
//   - UploadStatusDeleted
func (u *Uploader) Status(ctx context.Context, videoID string) (string, error) {
	vid, err := u.svc.Get(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("failed to get video status: %w", err)
	}
	if vid.Status == nil {
		return "", ErrUnknownStatus
	}

	switch vid.Status.UploadStatus {
	case "processed":
		return UploadStatusProcessed, nil
	case "failed":
		return UploadStatusFailed, nil
	case "rejected":
		return UploadStatusRejected, nil
	case "deleted":
		return UploadStatusDeleted, nil
	case "uploaded":
		return UploadStatusUploaded, nil
	default:
		return "", ErrUnknownStatus
	}
}

// categories maps YouTube category IDs to their names.
var categories = map[string]string{
	"1":  "Film & Animation",
	"2":  "Autos & Vehicles",
	"10": "Music",
	"15": "Pets & Animals",
	"17": "Sports",
	"18": "Short Movies",
	"19": "Travel & Events",
	"20": "Gaming",
	"21": "Videoblogging",
	"22": "People & Blogs",
	"23": "Comedy",
	"24": "Entertainment",
	"25": "News & Politics",
	"26": "Howto & Style",
	"27": "Education",
	"28": "Science & Technology",
	"29": "Nonprofits & Activism",
	"30": "Movies",
	"31": "Anime/Animation",
	"32": "Action/Adventure",
	"33": "Classics",
	"35": "Documentary",
	"36": "Drama",
	"37": "Family",
	"38": "Foreign",
	"39": "Horror",
	"40": "Sci-Fi/Fantasy",
	"41": "Thriller",
	"42": "Shorts",
	"43": "Shows",
	"44": "Trailers",
}

// sanitiseCategory checks if the given category ID or name is valid,
// and returns its ID if valid.
func sanitiseCategory(cat string) string {
	if _, ok := categories[cat]; ok {
		return cat
	}
	for id, name := range categories {
		if name == cat {
			return id
		}
	}
	return ""
}

func validPrivacy(privacy string) bool {
	switch privacy {
	case "public", "unlisted", "private":
		return true
	}
	return false
}
