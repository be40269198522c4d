package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"screenrec/internal/auth"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Get("/", s.bannerHandler)
	s.App.Get("/health", s.healthHandler)

	authHandler := auth.NewHandler(s.keys, s.jwt)
	s.App.Post("/auth/token", authHandler.IssueToken)

	// Recording control and history. The group is open when no API
	// key is configured.
	api := s.App.Group("/api", auth.Middleware(s.keys, s.jwt))
	api.Post("/recording/start", s.startRecording)
	api.Post("/recording/stop", s.stopRecording)
	api.Get("/recording/status", s.recordingStatus)

	api.Get("/recordings", s.listRecordings)
	api.Get("/recordings/:name/download", s.downloadRecording)
	api.Delete("/recordings/:name", s.deleteRecording)
	api.Post("/recordings/sweep", s.sweepRecordings)

	api.Get("/devices", s.listAudioDevices)
	api.Get("/encoder", s.encoderInfo)

	// WebSocket event stream for recording lifecycle notifications.
	go s.hub.Run()
	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws", websocket.New(s.hub.ServeWS))
}

func (s *FiberServer) bannerHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "screenrec",
		"message": "screen recording service",
	})
}

// healthHandler reports database reachability plus the host stats
// that gate recordings: free disk on the recordings volume and memory.
func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	resp := fiber.Map{
		"database":  s.db.Health(),
		"recording": s.manager.Status().Recording,
	}

	if du, err := disk.Usage(s.cfg.Recording.RecordingsDir); err == nil {
		resp["disk"] = fiber.Map{
			"free_mb":      du.Free / (1 << 20),
			"total_mb":     du.Total / (1 << 20),
			"used_percent": du.UsedPercent,
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp["memory"] = fiber.Map{
			"available_mb": vm.Available / (1 << 20),
			"total_mb":     vm.Total / (1 << 20),
			"used_percent": vm.UsedPercent,
		}
	}
	return c.JSON(resp)
}

func (s *FiberServer) listAudioDevices(c *fiber.Ctx) error {
	list, err := s.devices()
	if err != nil {
		s.log.WithError(err).Error("device enumeration failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to enumerate audio devices",
		})
	}
	return c.JSON(list)
}

func (s *FiberServer) encoderInfo(c *fiber.Ctx) error {
	return c.JSON(s.ffmpeg.Probe(c.Context()))
}
