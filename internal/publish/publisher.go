package publish

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"homewatt/internal/simulation"
)

// Broker is the slice of the MQTT client the publishers need.
type Broker interface {
	Publish(topic string, payload []byte) error
}

// MQTTBroker adapts a paho client to the Broker interface.
type MQTTBroker struct {
	client mqtt.Client
}

func NewMQTTBroker(client mqtt.Client) *MQTTBroker {
	return &MQTTBroker{client: client}
}

func (b *MQTTBroker) Publish(topic string, payload []byte) error {
	token := b.client.Publish(topic, 0, false, payload)
	token.Wait()
	return token.Error()
}

// updateEnvelope mirrors the dashboard message format: a typed wrapper
// around the metrics snapshot.
type updateEnvelope struct {
	Type    string              `json:"type"`
	Payload simulation.Snapshot `json:"payload"`
}

// UpdatePublisher streams every snapshot to the live-updates topic for
// dashboards. Publish failures are logged and dropped; the next tick
// carries fresher numbers anyway.
type UpdatePublisher struct {
	broker Broker
	topic  string
	log    zerolog.Logger
}

func NewUpdatePublisher(broker Broker, topic string, log zerolog.Logger) *UpdatePublisher {
	return &UpdatePublisher{broker: broker, topic: topic, log: log}
}

func (p *UpdatePublisher) OnSnapshot(snap simulation.Snapshot) {
	payload, err := json.Marshal(updateEnvelope{Type: "POWER_UPDATE", Payload: snap})
	if err != nil {
		p.log.Error().Err(err).Msg("snapshot marshal failed")
		return
	}
	if err := p.broker.Publish(p.topic, payload); err != nil {
		p.log.Warn().Err(err).Str("topic", p.topic).Msg("update publish failed")
	}
}

// FlushSink delivers a due flush to the backend.
type FlushSink interface {
	Flush(snap simulation.Snapshot)
}

// HTTPSink posts flushes to the ingest endpoint. Delivery is fire and
// forget with at most one request in flight; a flush arriving while the
// previous one is still posting is skipped, since the next one carries
// the running totals regardless.
type HTTPSink struct {
	url      string
	client   *http.Client
	log      zerolog.Logger
	inFlight atomic.Bool
}

func NewHTTPSink(url string, log zerolog.Logger) *HTTPSink {
	return &HTTPSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

func (s *HTTPSink) Flush(snap simulation.Snapshot) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Debug().Msg("flush already in flight, skipping")
		return
	}
	go func() {
		defer s.inFlight.Store(false)
		if err := s.post(snap); err != nil {
			s.log.Warn().Err(err).Str("url", s.url).Msg("flush post failed")
		}
	}()
}

func (s *HTTPSink) post(snap simulation.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ingest returned %s", resp.Status)
	}
	return nil
}

// MQTTSink publishes flushes to the flush topic for the ingestor to
// pick up.
type MQTTSink struct {
	broker Broker
	topic  string
	log    zerolog.Logger
}

func NewMQTTSink(broker Broker, topic string, log zerolog.Logger) *MQTTSink {
	return &MQTTSink{broker: broker, topic: topic, log: log}
}

func (s *MQTTSink) Flush(snap simulation.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		s.log.Error().Err(err).Msg("flush marshal failed")
		return
	}
	if err := s.broker.Publish(s.topic, payload); err != nil {
		s.log.Warn().Err(err).Str("topic", s.topic).Msg("flush publish failed")
	}
}
