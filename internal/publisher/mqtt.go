package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/esl-callbacks/internal/logger"
)

// MQTTPublisher wraps a Paho MQTT client.
type MQTTPublisher struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
}

// MQTTOptions configures the MQTT publisher.
type MQTTOptions struct {
	Broker   string
	ClientID string
	QoS      byte
	// Timeout bounds each publish acknowledgement. Zero means 10 seconds.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewMQTTPublisher creates and connects an MQTT publisher.
func NewMQTTPublisher(opts MQTTOptions) (*MQTTPublisher, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(60 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("mqtt connection lost", "broker", opts.Broker, "error", err)
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info("mqtt connected", "broker", opts.Broker)
		})

	client := mqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connecting to MQTT broker %s: timed out after %s", opts.Broker, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", opts.Broker, err)
	}

	return &MQTTPublisher{
		client:  client,
		qos:     opts.QoS,
		timeout: timeout,
	}, nil
}

func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("publishing to %s: timed out after %s", topic, p.timeout)
	}
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
