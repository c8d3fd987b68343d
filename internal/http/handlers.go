package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"homewatt/internal/metrics"
	"homewatt/internal/service"
)

func Register(app *fiber.App, svcs *service.Services) {
	g := app.Group("/power")

	g.Post("/", func(c *fiber.Ctx) error {
		start := time.Now()
		var req service.IngestRequest
		if err := c.BodyParser(&req); err != nil {
			metrics.ObserveIngest(metrics.ResultError, time.Since(start))
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		sample, err := svcs.Telemetry.Ingest(&req)
		if err != nil {
			var verr *service.ValidationError
			if errors.As(err, &verr) {
				metrics.ObserveIngest(metrics.ResultInvalid, time.Since(start))
				return c.Status(400).JSON(fiber.Map{"error": verr.Error()})
			}
			metrics.ObserveIngest(metrics.ResultError, time.Since(start))
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		metrics.ObserveIngest(metrics.ResultSuccess, time.Since(start))
		return c.JSON(fiber.Map{"success": true, "data": sample})
	})

	g.Get("/", func(c *fiber.Ctx) error {
		sample, err := svcs.Telemetry.Current()
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(sample)
	})

	g.Get("/history", func(c *fiber.Ctx) error {
		hours := c.QueryInt("hours", 24)
		limit := c.QueryInt("limit", 100)
		entries, err := svcs.Telemetry.History(hours, limit)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"success": true, "count": len(entries), "data": entries})
	})

	g.Get("/aggregated", func(c *fiber.Ctx) error {
		days := c.QueryInt("days", 7)
		interval := c.Query("interval", "hour")
		buckets, err := svcs.Telemetry.Aggregated(days, interval)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"success": true, "data": buckets})
	})
}
