package server

import (
	"blogwatch/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// ServerConfig holds the collaborators of the ops server
type ServerConfig struct {
	// Store is read for the tracked posts listing
	Store *store.Store
}

// Server returns the ops HTTP app: health, metrics and a view of the dedup
// state. There is no product API surface, the poller does not need one.
func Server(config *ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(requestid.New())
	app.Use(compress.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/tracked", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 100)
		tracked, err := config.Store.Tracked(c.Context(), limit)
		if err != nil {
			log.Errorf("Error listing tracked posts: %s", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list tracked posts",
			})
		}
		return c.JSON(fiber.Map{
			"count":   len(tracked),
			"tracked": tracked,
		})
	})

	return app
}
