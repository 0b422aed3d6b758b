package notify

import (
	"cldpip/config"
	"cldpip/log"
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	qosExactlyOnce byte = 2
	changeTopic         = "ipchange"
)

var ErrTimeout = errors.New("mqtt operation timed out")

// publishFunc is the part of mqtt.Client the notifier needs.
type publishFunc func(topic string, payload []byte) error

type mqttNotifier struct {
	topic   string
	timeout time.Duration
	client  mqtt.Client
	publish publishFunc
}

func (n *mqttNotifier) Notify(ctx context.Context, old, new netip.Addr) error {
	topic := n.topic + "/" + changeTopic
	ctx = log.SWith(ctx, "topic", topic)

	payload, err := json.Marshal(Message{Old: old, New: new})
	if err != nil {
		log.S(ctx).Errorw("failed encoding message", zap.Error(err), log.Internal)
		return fmt.Errorf("failed encoding message: %w", err)
	}

	log.S(ctx).Debugw("publishing address change", log.Addr("old", old), log.Addr("new", new))

	if err := n.publish(topic, payload); err != nil {
		log.S(ctx).Warnw("failed publishing address change", zap.Error(err))
		return fmt.Errorf("failed publishing to %s: %w", topic, err)
	}

	return nil
}

func (n *mqttNotifier) connect() error {
	if n.client.IsConnectionOpen() {
		return nil
	}

	return wait(n.client.Connect(), n.timeout)
}

func (n *mqttNotifier) publishMQTT(topic string, payload []byte) error {
	if err := n.connect(); err != nil {
		return fmt.Errorf("failed connecting to broker: %w", err)
	}

	return wait(n.client.Publish(topic, qosExactlyOnce, false, payload), n.timeout)
}

func wait(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return ErrTimeout
	}
	return token.Error()
}

func newMQTT(ctx context.Context, c config.Notifier) (Interface, error) {
	ctx = log.SWith(ctx, "type", "mqtt", "broker", c.Broker)

	if c.Broker == "" {
		log.S(ctx).Errorw("missing broker")
		return nil, fmt.Errorf("mqtt notifier needs a broker")
	}

	timeout := c.Timeout.Or(config.DefaultNotifyTimeout)

	opts := mqtt.NewClientOptions().
		AddBroker(c.Broker).
		SetClientID(c.ClientID).
		SetKeepAlive(5 * time.Second).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true)

	if c.Username != "" {
		opts.SetUsername(c.Username)
		opts.SetPassword(c.Password)
	}

	n := &mqttNotifier{
		topic:   strings.TrimSuffix(c.Topic, "/"),
		timeout: timeout,
		client:  mqtt.NewClient(opts),
	}
	n.publish = n.publishMQTT

	log.S(ctx).Infow("mqtt notifier ready", "topic", n.topic+"/"+changeTopic)

	return n, nil
}
