package server

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"screenrec/internal/auth"
	"screenrec/internal/capture"
	"screenrec/internal/config"
	"screenrec/internal/database"
	"screenrec/internal/events"
	"screenrec/internal/recorder"
	"screenrec/internal/recordings"
)

type FiberServer struct {
	*fiber.App
	cfg *config.Config
	log *logrus.Entry

	db      database.Service
	history *recordings.Service
	manager *recorder.Manager
	keys    *auth.Service
	jwt     *auth.JWTService
	ffmpeg  *recorder.FFmpegService
	hub     *events.Hub

	capturer capture.ScreenCapturer
	devices  func() (*capture.DeviceList, error)
}

// New builds the server on the real capture and encoder backends.
func New(cfg *config.Config, db database.Service, log *logrus.Entry) (*FiberServer, error) {
	return newServer(cfg, db, recorder.DefaultCapabilities(cfg.Recording.FFmpegPath), log)
}

func newServer(cfg *config.Config, db database.Service, caps recorder.Capabilities, log *logrus.Entry) (*FiberServer, error) {
	keys, err := auth.NewService(cfg.Auth.APIKey)
	if err != nil {
		return nil, errors.Wrap(err, "prepare api key")
	}

	app := fiber.New(fiber.Config{
		ServerHeader: "screenrec",
		AppName:      "screenrec",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	})

	s := &FiberServer{
		App: app,
		cfg: cfg,
		log: log,

		keys:   keys,
		jwt:    auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		ffmpeg: recorder.NewFFmpegService(cfg.Recording.FFmpegPath),
		hub:    events.NewHub(log.WithField("component", "events")),

		capturer: caps.Capturer,
		devices:  capture.ListDevices,
	}
	s.db = db
	s.history = recordings.NewService(db.GetDatabase(), cfg.Recording.RecordingsDir,
		log.WithField("component", "recordings"))
	s.manager = recorder.NewManager(caps, log.WithField("component", "recorder"), s.onRecordingDone)

	s.applyMiddleware()
	return s, nil
}

func (s *FiberServer) applyMiddleware() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(s.cfg.Security.CORSOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.App.Use(limiter.New(limiter.Config{
		Max:        s.cfg.Security.RateLimit,
		Expiration: s.cfg.Security.RateWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))
}

// Shutdown closes the listener, then drains the active recording so
// its capture temps still get assembled. The caller owns the database
// connection.
func (s *FiberServer) Shutdown(ctx context.Context) error {
	if err := s.App.ShutdownWithContext(ctx); err != nil {
		s.log.WithError(err).Warn("http listener did not stop cleanly")
	}
	return s.manager.Shutdown(ctx)
}
