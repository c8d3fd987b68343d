package main

import (
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"homewatt/internal/alert"
	"homewatt/internal/config"
	"homewatt/internal/metrics"
	"homewatt/internal/publish"
	"homewatt/internal/simulation"
)

// seedDevice places the demo home's starting layout.
type seedDevice struct {
	kind string
	x, y float64
	on   bool
}

var demoHome = []seedDevice{
	{"light", 120, 80, true},
	{"fan", 200, 80, true},
	{"tv", 320, 140, false},
	{"fridge", 60, 220, false},
	{"oven", 140, 220, false},
	{"mirror", 260, 40, false},
	{"chimney", 180, 240, false},
	{"washingmachine", 300, 240, false},
	{"table", 220, 160, false},
	{"sofa", 340, 100, false},
	{"bed", 60, 60, false},
}

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	metrics.Init()
	metrics.Serve(config.MetricsAddr(), log.Logger)

	engine := simulation.New(simulation.Config{
		TariffRate:      config.TariffRate(),
		DutyCyclePeriod: config.DutyCyclePeriod(),
		FlushInterval:   config.FlushInterval(),
		FixtureCount:    config.FixtureCount(),
		Store:           simulation.NewFileStore(config.StatePath()),
		Logger:          log.Logger,
	})
	engine.Load()

	if len(engine.Devices()) == 0 {
		log.Info().Msg("no saved state, seeding demo home")
		for _, d := range demoHome {
			if _, err := engine.AddDevice(d.kind, d.x, d.y, d.on); err != nil {
				log.Warn().Err(err).Str("kind", d.kind).Msg("seed failed")
			}
		}
		engine.ToggleFixture(0)
	}

	opts := mqtt.NewClientOptions().AddBroker(config.MQTTBroker())
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)
	broker := publish.NewMQTTBroker(client)

	updates := publish.NewUpdatePublisher(broker, config.UpdatesTopic(), log.Logger)
	engine.OnMetricsUpdate(updates.OnSnapshot)
	engine.OnMetricsUpdate(func(s simulation.Snapshot) {
		metrics.SetSnapshot(s.Power, s.EnergyWh, s.Cost, s.PeakW)
	})

	var notifier alert.Notifier = &alert.LogNotifier{Log: log.Logger}
	if config.UseCloudAlerts() {
		sns, err := newSNSNotifier()
		if err != nil {
			log.Warn().Err(err).Msg("cloud alerts unavailable, falling back to log")
		} else {
			notifier = sns
		}
	}
	watcher := alert.NewWatcher(alert.Thresholds{
		DailyCost:  config.AlertDailyCost(),
		PowerWatts: config.AlertPowerWatts(),
	}, notifier, log.Logger)
	engine.OnMetricsUpdate(watcher.OnSnapshot)

	var sink publish.FlushSink
	if config.FlushTransport() == "mqtt" {
		sink = publish.NewMQTTSink(broker, config.FlushTopic(), log.Logger)
	} else {
		sink = publish.NewHTTPSink(config.IngestURL(), log.Logger)
	}
	engine.OnFlushDue(func(s simulation.Snapshot) {
		metrics.IncFlush()
		sink.Flush(s)
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(config.TickInterval())
	defer ticker.Stop()

	log.Info().
		Int("devices", len(engine.Devices())).
		Str("transport", config.FlushTransport()).
		Msg("simulator running; Ctrl+C to stop")

	for {
		select {
		case <-ticker.C:
			engine.Tick()
			randomActivity(engine)
		case <-stop:
			engine.Save()
			log.Info().Msg("simulator stopped")
			return
		}
	}
}

// randomActivity occasionally flips a switchable device so the demo
// produces a varied load curve.
func randomActivity(engine *simulation.Engine) {
	if rand.Intn(30) != 0 {
		return
	}
	devices := engine.Devices()
	if len(devices) == 0 {
		return
	}
	d := devices[rand.Intn(len(devices))]
	if err := engine.ToggleDevice(d.ID); err != nil {
		log.Warn().Err(err).Int("id", d.ID).Msg("toggle failed")
	}
}
