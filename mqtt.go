package main

import (
	"context"
	"encoding/json"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"i4.energy/across/atlink/link"
	"i4.energy/across/atlink/modem"
)

// Bridge connects the modem to an MQTT broker: inbound SMS requests on
// the send topic, outbound registration and signal reports on the report
// topic.
type Bridge struct {
	client mqtt.Client
	logger *slog.Logger
	config MQTTConfig
}

// StartBridge connects to the broker and subscribes to the send topic.
// Returns nil when no broker is configured. Connection failures are
// logged, not fatal; the client reconnects on its own.
func StartBridge(ctx context.Context, config MQTTConfig, m *modem.Modem, logger *slog.Logger) *Bridge {
	if config.Broker == "" {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Info("MQTT connected, subscribing", "topic", config.SendTopic)
		if token := c.Subscribe(config.SendTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var req struct {
				To      string `json:"to"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(msg.Payload(), &req); err != nil {
				logger.Warn("MQTT bad payload", "error", err)
				return
			}
			if req.To == "" || req.Message == "" {
				logger.Warn("MQTT payload missing to/message")
				return
			}
			if err := m.SendSMS(ctx, req.To, req.Message); err != nil {
				logger.Error("Failed to send SMS", "error", err, "to", req.To)
			}
		}); token.Wait() && token.Error() != nil {
			logger.Error("MQTT subscribe failed", "error", token.Error())
		}
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Error("MQTT connect failed", "error", token.Error())
	}
	return &Bridge{client: client, logger: logger, config: config}
}

// PublishReport forwards one modem report to the report topic.
func (b *Bridge) PublishReport(report link.Report) {
	payload, err := json.Marshal(struct {
		Type   string   `json:"type"`
		Fields []string `json:"fields"`
		Line   string   `json:"line"`
	}{report.Type, report.Fields, report.Line})
	if err != nil {
		return
	}
	b.client.Publish(b.config.ReportTopic, 0, false, payload)
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	b.client.Disconnect(500)
}
