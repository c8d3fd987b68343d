package main

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"homewatt/internal/config"
	"homewatt/internal/database"
	httpHandlers "homewatt/internal/http"
	"homewatt/internal/metrics"
	"homewatt/internal/repository"
	"homewatt/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()

	metrics.Init()
	metrics.Serve(config.MetricsAddr(), log.Logger)

	svcs := service.New(db, config.IngestStrict())
	if days := config.RetentionDays(); days > 0 {
		go pruneLoop(svcs.Repos, days)
	}

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	httpHandlers.Register(app, svcs)

	addr := config.APIAddr()
	log.Info().Str("addr", addr).Bool("strict", config.IngestStrict()).Msg("api listening")
	log.Fatal().Err(app.Listen(addr)).Msg("server exit")
}

// pruneLoop drops samples older than the retention window once a day.
func pruneLoop(repos *repository.Repos, days int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().AddDate(0, 0, -days)
		n, err := repos.DeleteSamplesBefore(cutoff)
		if err != nil {
			log.Error().Err(err).Msg("retention prune failed")
			continue
		}
		if n > 0 {
			log.Info().Int64("rows", n).Time("cutoff", cutoff).Msg("pruned old samples")
		}
	}
}
