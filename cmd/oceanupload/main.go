/*
DESCRIPTION
  Ocean Upload is a web service which publishes videos, uploaded directly or
  fetched from a URL, to YouTube with generated metadata.

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

// Ocean Upload is a web service publishing videos to YouTube.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gorilla/securecookie"
	"github.com/openai/openai-go/v3/option"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/oceanupload/artifact"
	"github.com/ausocean/oceanupload/fetch"
	"github.com/ausocean/oceanupload/gauth"
	"github.com/ausocean/oceanupload/metadata"
	"github.com/ausocean/oceanupload/pipeline"
	"github.com/ausocean/oceanupload/platform"
	"github.com/ausocean/oceanupload/source"
	"github.com/ausocean/oceanupload/youtube"
)

// Project constants.
const (
	projectID = "oceanupload"
	version   = "v0.1.0"
)

// Logging configuration.
const (
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logSuppress  = true
)

// Misc constants.
const (
	sweepSchedule   = "@every 10m"
	staleAge        = time.Hour
	shutdownTimeout = 30 * time.Second
	bodyLimit       = artifact.MaxFileSize + 1<<20 // Room for the other form fields.
)

// videoStatuser reports the processing status of published videos.
type videoStatuser interface {
	Status(ctx context.Context, videoID string) (string, error)
}

// authoriser performs the OAuth2 handshake for the channel account.
type authoriser interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) error
}

// service defines the properties of our web service.
type service struct {
	log       logging.Logger
	pipeline  *pipeline.Pipeline
	store     *artifact.Store
	videos    videoStatuser
	auth      authoriser
	cookies   *securecookie.SecureCookie
	publicDir string
}

func registerRoutes(app *fiber.App, svc *service) {
	app.Post("/upload", svc.uploadHandler)

	app.Get("/auth/login", svc.loginHandler)
	app.Get("/oauth2callback", svc.callbackHandler)

	v1 := app.Group("/api/v1")
	v1.Get("/videos/:id/status", svc.statusHandler)
	v1.Get("/version", svc.versionHandler)

	if svc.publicDir != "" {
		app.Static("/", svc.publicDir)
	}
}

// newApp returns the fiber app serving svc.
func newApp(svc *service) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:    bodyLimit,
		ErrorHandler: svc.errorHandler,
	})

	// Recover from panics.
	app.Use(recover.New())

	// CORS middleware.
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))

	app.Use(func(c *fiber.Ctx) error {
		svc.log.Debug("request", "method", c.Method(), "path", c.Path())
		return c.Next()
	})

	registerRoutes(app, svc)
	return app
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}
	level, err := cfg.level()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	var w io.Writer = os.Stderr
	if cfg.logFile != "" {
		fileLog := &lumberjack.Logger{
			Filename:   cfg.logFile,
			MaxSize:    logMaxSize,
			MaxBackups: logMaxBackup,
			MaxAge:     logMaxAge,
		}
		defer fileLog.Close()
		w = fileLog
	}
	log := logging.New(level, w, logSuppress)

	err = run(ctx, cfg, log)
	if err != nil {
		log.Fatal("service failed", "error", err)
	}
	log.Info("shut down")
}

// run sets up the service and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config, log logging.Logger) error {
	svc, err := setup(ctx, cfg, log)
	if err != nil {
		return err
	}

	janitor, err := startJanitor(svc.store, log)
	if err != nil {
		return err
	}

	app := newApp(svc)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.port)
		log.Info("starting web server", "addr", addr, "version", version)
		return app.Listen(addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		<-janitor.Stop().Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
	return g.Wait()
}

// setup constructs the service and its collaborators. Clients are built
// once here and shared by every request.
func setup(ctx context.Context, cfg *config, log logging.Logger) (*service, error) {
	if cfg.clientID == "" || cfg.clientSecret == "" {
		log.Warning("google client credentials not configured, uploads will fail until configured")
	}

	tokens, err := gauth.NewTokenStore(cfg.tokenStore)
	if err != nil {
		return nil, fmt.Errorf("could not create token store: %w", err)
	}
	auth := gauth.NewAuthenticator(gauth.NewConfig(cfg.clientID, cfg.clientSecret, cfg.redirectURL, youtube.Scopes...), tokens, log)
	err = auth.Load(ctx)
	if err != nil {
		log.Warning("could not load stored token", "error", err)
	}

	var gen metadata.Generator
	if cfg.openAIKey != "" {
		gen = metadata.NewOpenAI(cfg.openAIModel, option.WithAPIKey(cfg.openAIKey))
	} else {
		log.Warning("openai key not configured, using fallback metadata")
	}

	key := cfg.cookieKey
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
		if key == nil {
			return nil, errors.New("could not generate cookie key")
		}
	}

	client := &http.Client{}
	yt := platform.NewYouTube(client)
	store := artifact.NewStore(cfg.uploadDir, log)
	resolver := source.NewResolver(log, source.WithHTTPClient(client), source.WithPlatforms(yt))
	fetcher := fetch.New(store, log, fetch.NewPlatformStream(yt), fetch.NewHTTPGet(log, fetch.WithHTTPClient(client)))
	uploader := youtube.NewUploader(youtube.NewAPIService(auth), log, cfg.uploadOptions()...)

	return &service{
		log:       log,
		pipeline:  pipeline.New(resolver, fetcher, store, uploader, gen, log),
		store:     store,
		videos:    uploader,
		auth:      auth,
		cookies:   securecookie.New(key, nil),
		publicDir: cfg.publicDir,
	}, nil
}

// startJanitor sweeps stale artifacts left behind by crashed requests, once
// now and then periodically.
func startJanitor(store *artifact.Store, log logging.Logger) (*cron.Cron, error) {
	sweep := func() {
		n, err := store.Sweep(staleAge)
		if err != nil {
			log.Error("could not sweep stale artifacts", "error", err)
			return
		}
		if n > 0 {
			log.Info("swept stale artifacts", "count", n)
		}
	}
	sweep()

	c := cron.New()
	_, err := c.AddFunc(sweepSchedule, sweep)
	if err != nil {
		return nil, fmt.Errorf("could not schedule janitor: %w", err)
	}
	c.Start()
	return c, nil
}

// versionHandler handles requests for the service version.
func (svc *service) versionHandler(c *fiber.Ctx) error {
	return c.SendString(projectID + " " + version)
}

// errorHandler reports errors not handled by a route, such as oversized
// request bodies, as JSON.
func (svc *service) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	if code >= fiber.StatusInternalServerError {
		svc.log.Error("server error", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   http.StatusText(code),
		"details": err.Error(),
	})
}
