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
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/oceanupload/gauth"
	"github.com/ausocean/oceanupload/youtube"
)

// Secret keys read from the <PROJECTID>_SECRETS file or bucket object.
const (
	secretClientID     = "googleClientId"
	secretClientSecret = "googleClientSecret"
	secretOpenAIKey    = "openaiApiKey"
	secretCookieKey    = "cookieKey"
)

// config holds the service configuration.
type config struct {
	port         int
	clientID     string
	clientSecret string
	redirectURL  string
	openAIKey    string
	openAIModel  string
	category     string
	privacy      string
	uploadDir    string
	publicDir    string
	tokenStore   string
	cookieKey    []byte
	logFile      string
	logLevel     string
}

// loadConfig parses flags, whose defaults come from the environment, and
// fills any remaining blanks from the secrets store if one is configured.
func loadConfig(ctx context.Context, fs *flag.FlagSet, args []string) (*config, error) {
	cfg := &config{}
	fs.IntVar(&cfg.port, "port", envInt("PORT", 3000), "Port we listen on.")
	fs.StringVar(&cfg.clientID, "client-id", os.Getenv("GOOGLE_CLIENT_ID"), "Google OAuth2 client ID.")
	fs.StringVar(&cfg.clientSecret, "client-secret", os.Getenv("GOOGLE_CLIENT_SECRET"), "Google OAuth2 client secret.")
	fs.StringVar(&cfg.redirectURL, "redirect-url", envString("REDIRECT_URL", "http://localhost:3000/oauth2callback"), "OAuth2 redirect URL.")
	fs.StringVar(&cfg.openAIKey, "openai-key", os.Getenv("OPENAI_API_KEY"), "OpenAI API key; fallback metadata is used if empty.")
	fs.StringVar(&cfg.openAIModel, "openai-model", os.Getenv("OPENAI_MODEL"), "OpenAI chat model.")
	fs.StringVar(&cfg.category, "category", envString("YOUTUBE_CATEGORY", youtube.DefaultCategory), "YouTube category ID or name for published videos.")
	fs.StringVar(&cfg.privacy, "privacy", envString("YOUTUBE_PRIVACY", youtube.DefaultPrivacy), "Privacy status for published videos: private, unlisted or public.")
	fs.StringVar(&cfg.uploadDir, "upload-dir", envString("UPLOAD_DIR", "uploads"), "Working directory for transient video files.")
	fs.StringVar(&cfg.publicDir, "public", envString("PUBLIC_DIR", "public"), "Directory of static files.")
	fs.StringVar(&cfg.tokenStore, "token-store", envString("TOKEN_STORE", "youtube-token.json"), "Token file path or gs://<bucket>/<object>.")
	fs.StringVar(&cfg.logFile, "logfile", os.Getenv("LOG_FILE"), "Rotating log file; logs go to stderr if empty.")
	fs.StringVar(&cfg.logLevel, "loglevel", envString("LOG_LEVEL", "info"), "Log level: debug, info, warning or error.")
	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	err = youtube.CheckOptions(cfg.uploadOptions()...)
	if err != nil {
		return nil, fmt.Errorf("invalid upload options: %w", err)
	}

	secrets, err := gauth.GetSecrets(ctx, projectID, nil)
	switch {
	case errors.Is(err, gauth.ErrNoSecrets):
	case err != nil:
		return nil, fmt.Errorf("could not get secrets: %w", err)
	default:
		setDefault(&cfg.clientID, secrets[secretClientID])
		setDefault(&cfg.clientSecret, secrets[secretClientSecret])
		setDefault(&cfg.openAIKey, secrets[secretOpenAIKey])
		if v := secrets[secretCookieKey]; v != "" {
			cfg.cookieKey, err = hex.DecodeString(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", secretCookieKey, err)
			}
		}
	}
	return cfg, nil
}

// uploadOptions returns the options applied to every published video.
func (cfg *config) uploadOptions() []youtube.VideoUploadOption {
	return []youtube.VideoUploadOption{youtube.WithCategory(cfg.category), youtube.WithPrivacy(cfg.privacy)}
}

// level returns the logging level named by cfg.logLevel.
func (cfg *config) level() (int8, error) {
	switch strings.ToLower(cfg.logLevel) {
	case "debug":
		return logging.Debug, nil
	case "info", "":
		return logging.Info, nil
	case "warning", "warn":
		return logging.Warning, nil
	case "error":
		return logging.Error, nil
	}
	return 0, fmt.Errorf("unknown log level %q", cfg.logLevel)
}

func setDefault(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
