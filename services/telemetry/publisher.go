// Package telemetry mirrors alerts and fused output onto an MQTT broker so
// a ground station can follow the run live.
//
// Topics:
//
//	<prefix>/alerts/<source>   one JSON alert per message
//	<prefix>/fused/rate        JSON AxisRecord
//	<prefix>/fused/position    JSON AxisRecord
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/sirupsen/logrus"

	"sensor-fdir/models"
	"sensor-fdir/services/alerts"
	"sensor-fdir/utils"
)

const (
	contentTypeJSON = "application/json"
	publishTimeout  = 2 * time.Second
	keepAliveSecs   = 30
)

// Publisher is an alerts.Sink and a fused-output sink backed by a paho
// MQTT v5 client. Publishes are QoS 0; a broker outage loses messages but
// never blocks the caller for longer than the publish timeout.
type Publisher struct {
	client       *paho.Client
	prefix       string
	publishFused bool
	log          *logrus.Entry

	sent   atomic.Uint64
	failed atomic.Uint64
}

// Dial connects to cfg.Broker and returns a ready Publisher.
func Dial(ctx context.Context, cfg utils.TelemetryConfig, log *logrus.Entry) (*Publisher, error) {
	if log == nil {
		log = utils.DiscardLogger()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("dial broker %s: %w", cfg.Broker, err)
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: cfg.ClientID,
		Conn:     conn,
	})
	if _, err := client.Connect(ctx, &paho.Connect{
		ClientID:   cfg.ClientID,
		KeepAlive:  keepAliveSecs,
		CleanStart: true,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect broker %s: %w", cfg.Broker, err)
	}

	p := &Publisher{
		client:       client,
		prefix:       cfg.TopicPrefix,
		publishFused: cfg.PublishFused,
		log:          log.WithField("component", "telemetry"),
	}
	p.log.WithField("broker", cfg.Broker).Info("telemetry connected")
	return p, nil
}

// AlertTopic is where alerts from source are published.
func (p *Publisher) AlertTopic(source string) string {
	return p.prefix + "/alerts/" + source
}

// FusedTopic is where fused records of class are published.
func (p *Publisher) FusedTopic(class models.SensorClass) string {
	return p.prefix + "/fused/" + class.String()
}

// Raise publishes a. Failures are logged, not re-raised, so a dead broker
// cannot feed the alert stream back into itself.
func (p *Publisher) Raise(a alerts.Alert) {
	if err := p.publishJSON(p.AlertTopic(a.Source), a); err != nil {
		p.log.WithError(err).Warn("alert publish failed")
	}
}

func (p *Publisher) AppendRate(rec models.AxisRecord) error {
	if !p.publishFused {
		return nil
	}
	return p.publishJSON(p.FusedTopic(models.ClassRate), rec)
}

func (p *Publisher) AppendPosition(rec models.AxisRecord) error {
	if !p.publishFused {
		return nil
	}
	return p.publishJSON(p.FusedTopic(models.ClassPosition), rec)
}

func (p *Publisher) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	_, err = p.client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     0,
		Payload: payload,
		Properties: &paho.PublishProperties{
			ContentType: contentTypeJSON,
		},
	})
	if err != nil {
		p.failed.Add(1)
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.sent.Add(1)
	return nil
}

// Stats returns the number of messages sent and failed.
func (p *Publisher) Stats() (sent, failed uint64) {
	return p.sent.Load(), p.failed.Load()
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	sent, failed := p.Stats()
	p.log.WithFields(logrus.Fields{"sent": sent, "failed": failed}).Info("telemetry disconnecting")
	return p.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}
