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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/gorilla/securecookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/ausocean/oceanupload/artifact"
	"github.com/ausocean/oceanupload/fetch"
	"github.com/ausocean/oceanupload/gauth"
	"github.com/ausocean/oceanupload/metadata"
	"github.com/ausocean/oceanupload/pipeline"
	"github.com/ausocean/oceanupload/source"
	"github.com/ausocean/oceanupload/youtube"
)

const testTimeout = 5000 // ms

type fakePublisher struct {
	err     error
	content string
}

func (p *fakePublisher) Publish(ctx context.Context, path string, md metadata.Metadata, opts ...youtube.VideoUploadOption) (*youtube.Result, error) {
	if p.err != nil {
		return nil, p.err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p.content = string(b)
	return &youtube.Result{VideoID: "abc123"}, nil
}

type fakeStatuser map[string]error

func (f fakeStatuser) Status(ctx context.Context, id string) (string, error) {
	if err, ok := f[id]; ok {
		return "", err
	}
	return youtube.UploadStatusProcessed, nil
}

type fakeAuth struct {
	codes []string
}

func (a *fakeAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (a *fakeAuth) Exchange(ctx context.Context, code string) error {
	if code == "" {
		return gauth.ErrNoCode
	}
	a.codes = append(a.codes, code)
	return nil
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestService(t *testing.T, pub *fakePublisher) *service {
	log := (*logging.TestLogger)(t)
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("no network in tests")
	})}
	store := artifact.NewStore(filepath.Join(t.TempDir(), "uploads"), log)
	resolver := source.NewResolver(log, source.WithHTTPClient(client))
	fetcher := fetch.New(store, log, fetch.NewHTTPGet(log, fetch.WithHTTPClient(client)))
	return &service{
		log:      log,
		pipeline: pipeline.New(resolver, fetcher, store, pub, nil, log),
		store:    store,
		videos:   fakeStatuser{"gone": youtube.ErrVideoNotFound, "noauth": gauth.ErrNoToken},
		auth:     &fakeAuth{},
		cookies:  securecookie.New(securecookie.GenerateRandomKey(32), nil),
	}
}

// uploadRequest builds a multipart upload request. A file part is added if
// content is not empty.
func uploadRequest(t *testing.T, fields map[string]string, filename, content string) *http.Request {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if content != "" {
		part, err := w.CreateFormFile("video", filename)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	defer resp.Body.Close()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func uploadDirEmpty(t *testing.T, svc *service) {
	entries, err := os.ReadDir(svc.store.Dir())
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "upload directory should be empty")
}

func TestUploadFile(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(t, pub)
	app := newApp(svc)

	resp, err := app.Test(uploadRequest(t, map[string]string{"title": "My Video"}, "dive.mp4", "file bytes"), testTimeout)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode(t, resp)
	assert.Equal(t, true, got["success"])
	assert.Equal(t, "abc123", got["videoId"])
	md, ok := got["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "My Video", md["title"])
	assert.Equal(t, "Uploaded video: My Video", md["description"])
	assert.Equal(t, []any{}, md["tags"])

	assert.Equal(t, "file bytes", pub.content)
	uploadDirEmpty(t, svc)
}

func TestUploadFileDefaultTitle(t *testing.T) {
	svc := newTestService(t, &fakePublisher{})
	app := newApp(svc)

	resp, err := app.Test(uploadRequest(t, nil, "kelp-forest.mov", "file bytes"), testTimeout)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	md := decode(t, resp)["metadata"].(map[string]any)
	assert.Equal(t, "kelp-forest", md["title"])
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name        string
		pub         *fakePublisher
		fields      map[string]string
		content     string
		wantStatus  int
		wantError   string
		wantDetails string
	}{
		{
			name:        "missing input",
			pub:         &fakePublisher{},
			fields:      map[string]string{"title": "My Video"},
			wantStatus:  http.StatusBadRequest,
			wantError:   "Missing video",
			wantDetails: "Please provide either a video file or URL",
		},
		{
			name:        "invalid url",
			pub:         &fakePublisher{},
			fields:      map[string]string{"title": "My Video", "videoUrl": "ftp://example.com/v.mp4"},
			wantStatus:  http.StatusBadRequest,
			wantError:   "Invalid video URL",
			wantDetails: "Invalid URL",
		},
		{
			name:        "unreachable url",
			pub:         &fakePublisher{},
			fields:      map[string]string{"videoUrl": "https://example.com/v.mp4"},
			wantStatus:  http.StatusBadRequest,
			wantError:   "Invalid video URL",
			wantDetails: "URL validation failed",
		},
		{
			name:        "publish failure",
			pub:         &fakePublisher{err: errors.New("quota exceeded")},
			fields:      map[string]string{"title": "My Video"},
			content:     "file bytes",
			wantStatus:  http.StatusInternalServerError,
			wantError:   "Upload failed",
			wantDetails: "quota exceeded",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			svc := newTestService(t, test.pub)
			app := newApp(svc)

			resp, err := app.Test(uploadRequest(t, test.fields, "v.mp4", test.content), testTimeout)
			require.NoError(t, err)
			assert.Equal(t, test.wantStatus, resp.StatusCode)
			got := decode(t, resp)
			assert.Equal(t, test.wantError, got["error"])
			assert.Contains(t, got["details"], test.wantDetails)
			uploadDirEmpty(t, svc)
		})
	}
}

func TestStatusHandler(t *testing.T) {
	app := newApp(newTestService(t, &fakePublisher{}))

	tests := []struct {
		id         string
		wantStatus int
	}{
		{id: "abc123", wantStatus: http.StatusOK},
		{id: "gone", wantStatus: http.StatusNotFound},
		{id: "noauth", wantStatus: http.StatusUnauthorized},
	}
	for _, test := range tests {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/videos/"+test.id+"/status", nil), testTimeout)
		require.NoError(t, err)
		assert.Equal(t, test.wantStatus, resp.StatusCode, test.id)
		got := decode(t, resp)
		if test.wantStatus == http.StatusOK {
			assert.Equal(t, youtube.UploadStatusProcessed, got["status"])
		} else {
			assert.NotEmpty(t, got["error"])
		}
	}
}

func TestVersionHandler(t *testing.T) {
	app := newApp(newTestService(t, &fakePublisher{}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/version", nil), testTimeout)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, projectID+" "+version, string(body))
}

func TestOAuthFlow(t *testing.T) {
	svc := newTestService(t, &fakePublisher{})
	auth := svc.auth.(*fakeAuth)
	app := newApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/auth/login", nil), testTimeout)
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == stateCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "login should set the state cookie")

	t.Run("forged state", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/oauth2callback?code=abc&state=forged", nil)
		req.AddCookie(cookie)
		resp, err := app.Test(req, testTimeout)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Empty(t, auth.codes)
	})

	t.Run("missing code", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/oauth2callback", nil), testTimeout)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/oauth2callback?code=abc&state="+url.QueryEscape(state), nil)
		req.AddCookie(cookie)
		resp, err := app.Test(req, testTimeout)
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"))
		assert.Equal(t, []string{"abc"}, auth.codes)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("OCEANUPLOAD_SECRETS", "")
	t.Setenv("PORT", "8099")
	t.Setenv("GOOGLE_CLIENT_ID", "env-id")
	for _, k := range []string{"GOOGLE_CLIENT_SECRET", "REDIRECT_URL", "OPENAI_API_KEY", "UPLOAD_DIR", "YOUTUBE_CATEGORY", "YOUTUBE_PRIVACY"} {
		t.Setenv(k, "")
	}

	cfg, err := loadConfig(context.Background(), flag.NewFlagSet("test", flag.ContinueOnError), []string{"-upload-dir", "/tmp/vids"})
	require.NoError(t, err)
	assert.Equal(t, 8099, cfg.port)
	assert.Equal(t, "env-id", cfg.clientID)
	assert.Equal(t, "/tmp/vids", cfg.uploadDir)
	assert.Equal(t, "http://localhost:3000/oauth2callback", cfg.redirectURL)

	secrets := filepath.Join(t.TempDir(), "secrets.txt")
	require.NoError(t, os.WriteFile(secrets, []byte("googleClientSecret:from-secrets\nopenaiApiKey:sk-test\ncookieKey:00ff\n"), 0o600))
	t.Setenv("OCEANUPLOAD_SECRETS", secrets)

	cfg, err = loadConfig(context.Background(), flag.NewFlagSet("test", flag.ContinueOnError), nil)
	require.NoError(t, err)
	assert.Equal(t, "env-id", cfg.clientID, "flags and environment take precedence")
	assert.Equal(t, "from-secrets", cfg.clientSecret)
	assert.Equal(t, "sk-test", cfg.openAIKey)
	assert.Equal(t, []byte{0x00, 0xff}, cfg.cookieKey)

	assert.Equal(t, youtube.DefaultCategory, cfg.category)
	assert.Equal(t, youtube.DefaultPrivacy, cfg.privacy)

	_, err = (&config{logLevel: "chatty"}).level()
	assert.Error(t, err)
}

func TestLoadConfigUploadOptions(t *testing.T) {
	t.Setenv("OCEANUPLOAD_SECRETS", "")
	t.Setenv("YOUTUBE_CATEGORY", "")
	t.Setenv("YOUTUBE_PRIVACY", "")

	cfg, err := loadConfig(context.Background(), flag.NewFlagSet("test", flag.ContinueOnError), []string{"-category", "Education", "-privacy", "unlisted"})
	require.NoError(t, err)

	svc := &fakeVideoService{}
	u := youtube.NewUploader(svc, (*logging.TestLogger)(t), cfg.uploadOptions()...)
	path := filepath.Join(t.TempDir(), "v.mp4")
	require.NoError(t, os.WriteFile(path, []byte("v"), 0o644))
	_, err = u.Publish(context.Background(), path, metadata.Fallback("My Video"))
	require.NoError(t, err)
	assert.Equal(t, "27", svc.video.Snippet.CategoryId)
	assert.Equal(t, "unlisted", svc.video.Status.PrivacyStatus)

	_, err = loadConfig(context.Background(), flag.NewFlagSet("test", flag.ContinueOnError), []string{"-privacy", "secret"})
	assert.ErrorContains(t, err, "invalid privacy status")
}

// fakeVideoService records the last inserted video.
type fakeVideoService struct {
	video *ytapi.Video
}

func (s *fakeVideoService) Insert(ctx context.Context, video *ytapi.Video, media io.Reader) (*ytapi.Video, error) {
	s.video = video
	return &ytapi.Video{Id: "abc123"}, nil
}

func (s *fakeVideoService) Get(ctx context.Context, id string) (*ytapi.Video, error) {
	return nil, youtube.ErrVideoNotFound
}

func TestJanitor(t *testing.T) {
	log := (*logging.TestLogger)(t)
	store := artifact.NewStore(t.TempDir(), log)
	a, err := store.New("")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(a.Path, []byte("stale"), 0o644))
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(a.Path, old, old))

	c, err := startJanitor(store, log)
	require.NoError(t, err)
	<-c.Stop().Done()
	assert.NoFileExists(t, a.Path, "startup sweep should remove stale artifacts")
	assert.True(t, strings.HasPrefix(filepath.Base(a.Path), "temp-"))
}
