package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"smart_ventilation/internal/logger"
	"smart_ventilation/internal/service"
)

// Topic layout: devices publish telemetry on ventilation/<device_id>/telemetry
// with a DirectReport body; committed fan updates are republished on
// updatesTopic for any broker-side observers.
const (
	telemetryTopicFilter = "ventilation/+/telemetry"
	updatesTopic         = "ventilation/updates"
	qosAtMostOnce        = 0
)

// Consumer subscribes to device telemetry topics and feeds the payloads
// to the coordinator. MQTT is just one more producer; bad payloads are
// dropped the same way a malformed webhook body is.
type Consumer struct {
	client paho.Client
	ingest service.Ingest
	log    *logger.Logger
}

func NewConsumer(client paho.Client, ingest service.Ingest, log *logger.Logger) *Consumer {
	return &Consumer{client: client, ingest: ingest, log: log}
}

// Subscribe starts consuming telemetry. Messages are handled on paho's
// callback goroutines; each one runs a full ingest transaction.
func (c *Consumer) Subscribe(ctx context.Context) error {
	token := c.client.Subscribe(telemetryTopicFilter, qosAtMostOnce, func(_ paho.Client, m paho.Message) {
		c.handle(ctx, m)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %q: %w", telemetryTopicFilter, token.Error())
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, m paho.Message) {
	var report service.DirectReport
	if err := json.Unmarshal(m.Payload(), &report); err != nil {
		if c.log != nil {
			c.log.Infow("mqtt_payload_dropped", "topic", m.Topic(), "err", err)
		}
		return
	}
	if report.DeviceID == "" {
		report.DeviceID = deviceIDFromTopic(m.Topic())
	}

	if _, err := c.ingest.IngestDirect(ctx, report); err != nil && c.log != nil {
		c.log.Infow("mqtt_ingest_dropped", "topic", m.Topic(), "err", err)
	}
}

// deviceIDFromTopic extracts <device_id> from ventilation/<device_id>/telemetry.
func deviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}

// Publisher republishes committed fan updates onto the broker. It is a
// notifier sink: publish failures are logged, never retried, and never
// reach the ingest transaction.
type Publisher struct {
	client paho.Client
	log    *logger.Logger
}

func NewPublisher(client paho.Client, log *logger.Logger) *Publisher {
	return &Publisher{client: client, log: log}
}

// Publish sends one update with at-most-once semantics.
func (p *Publisher) Publish(v any) {
	body, err := json.Marshal(v)
	if err != nil {
		return
	}
	token := p.client.Publish(updatesTopic, qosAtMostOnce, false, body)
	if token.Wait() && token.Error() != nil && p.log != nil {
		p.log.Infow("mqtt_publish_failed", "topic", updatesTopic, "err", token.Error())
	}
}
