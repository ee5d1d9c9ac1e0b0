package ingest

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/itemhistory/internal/config"
	"github.com/tejusbharadwaj/itemhistory/internal/models"
)

const connectTimeout = 10 * time.Second

// MQTTSource subscribes to item state topics on an MQTT broker.
type MQTTSource struct {
	client mqtt.Client
	topic  string
	qos    byte
	logger *logrus.Entry
}

func NewMQTTSource(cfg config.MQTTConfig, logger *logrus.Logger) *MQTTSource {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	return &MQTTSource{
		client: mqtt.NewClient(opts),
		topic:  cfg.Topic,
		qos:    byte(cfg.QoS),
		logger: logger.WithFields(logrus.Fields{"component": "mqtt", "broker": cfg.Broker}),
	}
}

// Run connects, subscribes and forwards decoded updates to out until ctx is
// done.
func (s *MQTTSource) Run(ctx context.Context, out chan<- models.StateUpdate) error {
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect: timed out after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	token = s.client.Subscribe(s.topic, s.qos, s.handler(ctx, out))
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", s.topic, err)
	}
	s.logger.WithField("topic", s.topic).Info("subscribed")

	<-ctx.Done()
	return nil
}

func (s *MQTTSource) handler(ctx context.Context, out chan<- models.StateUpdate) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		u, err := DecodeTopicPayload(s.topic, msg.Topic(), msg.Payload(), time.Now().UTC())
		if err != nil {
			Updates.WithLabelValues("malformed").Inc()
			s.logger.WithField("topic", msg.Topic()).WithError(err).Warn("dropping message")
			return
		}
		select {
		case out <- u:
		case <-ctx.Done():
		}
	}
}

func (s *MQTTSource) Close() error {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	return nil
}
