/*
DESCRIPTION
  upload.go provides the video upload and status routes.

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

package main

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ausocean/oceanupload/gauth"
	"github.com/ausocean/oceanupload/pipeline"
	"github.com/ausocean/oceanupload/youtube"
)

// uploadHandler handles multipart upload requests carrying either a video
// file part or a videoUrl field, plus an optional title.
func (svc *service) uploadHandler(c *fiber.Ctx) error {
	req := pipeline.Request{
		Title:    c.FormValue("title"),
		VideoURL: strings.TrimSpace(c.FormValue("videoUrl")),
	}

	// Uploaded files are only needed if there is no URL, which takes precedence.
	if fh := formFile(c, "video"); fh != nil && req.VideoURL == "" {
		a, err := svc.store.New(filepath.Ext(fh.Filename))
		if err != nil {
			return svc.logAndReturnError(c, fmt.Sprintf("could not create upload file: %v", err))
		}
		defer func() {
			err := svc.store.Release(a)
			if err != nil {
				svc.log.Error("could not clean up uploaded file", "path", a.Path, "error", err)
			}
		}()

		err = c.SaveFile(fh, a.Path)
		if err != nil {
			return svc.logAndReturnError(c, fmt.Sprintf("could not save uploaded file: %v", err))
		}
		req.LocalPath = a.Path
		req.FileName = fh.Filename
	}

	res, err := svc.pipeline.Run(c.UserContext(), req)
	if err != nil {
		title, details := pipeline.Describe(err)
		status := fiber.StatusInternalServerError
		if pipeline.IsInputError(err) {
			status = fiber.StatusBadRequest
		}
		svc.log.Warning("upload failed", "error", err)
		return c.Status(status).JSON(fiber.Map{"error": title, "details": details})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"videoId":  res.VideoID,
		"metadata": res.Metadata,
	})
}

// formFile returns the first file in the named multipart part, or nil if
// the request has none.
func formFile(c *fiber.Ctx, name string) *multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}
	files := form.File[name]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

// statusHandler handles requests for the processing status of a published
// video.
func (svc *service) statusHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	status, err := svc.videos.Status(c.UserContext(), id)
	switch {
	case errors.Is(err, youtube.ErrVideoNotFound):
		return svc.logAndReturnError(c, fmt.Sprintf("video %s not found", id), withStatus(fiber.StatusNotFound))
	case errors.Is(err, gauth.ErrNoToken):
		return svc.logAndReturnError(c, "not authorised, visit /auth/login", withStatus(fiber.StatusUnauthorized))
	case err != nil:
		return svc.logAndReturnError(c, fmt.Sprintf("could not get video status: %v", err))
	}
	return c.JSON(fiber.Map{"videoId": id, "status": status})
}
