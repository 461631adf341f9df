// Copyright 2026 SmartBin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package mqtt

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// QosAtMostOnce represents "QoS 0: At most once delivery".
	QosAtMostOnce byte = 0
	// QosAtLeastOnce represents "QoS 1: At least once delivery".
	QosAtLeastOnce byte = 1
	// QosExactlyOnce represents "QoS 2: Exactly once delivery".
	QosExactlyOnce byte = 2
	// QosDefault is used for all messages published by the worker.
	QosDefault = QosAtLeastOnce

	subscriptionQueueSize = 32
)

var (
	// SubscriptionClosedError is returned by NextMsg after the subscription
	// has been closed.
	SubscriptionClosedError = errors.New("subscription closed")
	// PublishTimeoutError is returned when a message was not delivered
	// within the publish timeout.
	PublishTimeoutError = errors.New("publish timeout")
)

// Config of the MQTT connection.
type Config struct {
	Host     string
	Port     int
	UserName string
	Password string
	ClientID string
	// Maximum time Publish waits for delivery
	PublishTimeout time.Duration
	// Topic & payload of the last will message
	WillTopic   string
	WillPayload string
}

// Service contains the API exposed by the MQTT service.
type Service interface {
	// Close the service
	Close() error
	// IsConnected returns true when there is a connection to the broker.
	IsConnected() bool
	// Publish a JSON encoded message into a topic.
	Publish(ctx context.Context, msg interface{}, topic string, qos byte, retained bool) error
	// Subscribe to a topic
	Subscribe(ctx context.Context, topic string, qos byte) (Subscription, error)
}

// Subscription for a single topic
type Subscription interface {
	// Unsubscribe.
	Close() error
	// NextMsg blocks until the next message has been received.
	NextMsg(ctx context.Context, result interface{}) error
}

// NewService instantiates a new MQTT service.
// The connection to the broker is established in the background and
// restored automatically when lost.
func NewService(config Config, log zerolog.Logger) (Service, error) {
	log = log.With().Str("component", "mqtt").Logger()
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	s := &service{
		Config: config,
		log:    log,
	}
	opts := mqttapi.NewClientOptions().
		AddBroker("tcp://" + addr).
		SetClientID(config.ClientID)
	if config.UserName != "" {
		opts.SetUsername(config.UserName)
		opts.SetPassword(config.Password)
	}
	if config.WillTopic != "" {
		opts.SetWill(config.WillTopic, config.WillPayload, QosDefault, true)
	}
	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(2 * time.Second)
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetDefaultPublishHandler(func(c mqttapi.Client, m mqttapi.Message) {
		// Ignore messages when no subscription match
	})
	opts.SetOnConnectHandler(func(c mqttapi.Client) {
		log.Info().Str("broker", addr).Msg("Connected to MQTT")
		connectedGauge.Set(1)
		s.resubscribe()
	})
	opts.SetConnectionLostHandler(func(c mqttapi.Client, err error) {
		log.Warn().Err(err).Msg("Lost connection to MQTT")
		connectedGauge.Set(0)
	})
	s.client = mqttapi.NewClient(opts)

	log.Debug().Str("broker", addr).Msg("Connecting to MQTT...")
	s.client.Connect()
	return s, nil
}

type service struct {
	Config
	log    zerolog.Logger
	client mqttapi.Client

	mutex         sync.Mutex
	subscriptions []*subscription
}

// Close the service
func (s *service) Close() error {
	s.mutex.Lock()
	subs := s.subscriptions
	s.subscriptions = nil
	s.mutex.Unlock()
	for _, sub := range subs {
		sub.closeQueue()
	}
	s.client.Disconnect(250)
	connectedGauge.Set(0)
	return nil
}

// IsConnected returns true when there is a connection to the broker.
func (s *service) IsConnected() bool {
	return s.client.IsConnectionOpen()
}

// Publish a JSON encoded message into a topic.
// Publish waits at most the configured publish timeout for delivery.
func (s *service) Publish(ctx context.Context, msg interface{}, topic string, qos byte, retained bool) error {
	encodedMsg, err := json.Marshal(msg)
	if err != nil {
		return errors.WithStack(err)
	}
	publishTotal.WithLabelValues(topic).Inc()
	token := s.client.Publish(topic, qos, retained, encodedMsg)
	if err := waitToken(ctx, token, s.PublishTimeout); err != nil {
		publishErrorsTotal.WithLabelValues(topic).Inc()
		return errors.Wrapf(err, "failed to publish to '%s'", topic)
	}
	return nil
}

// Subscribe to a topic
// The subscription is restored after a reconnect.
func (s *service) Subscribe(ctx context.Context, topic string, qos byte) (Subscription, error) {
	sub := &subscription{
		service: s,
		topic:   topic,
		qos:     qos,
		queue:   make(chan []byte, subscriptionQueueSize),
	}
	s.mutex.Lock()
	s.subscriptions = append(s.subscriptions, sub)
	s.mutex.Unlock()
	if s.client.IsConnectionOpen() {
		if err := sub.subscribe(ctx); err != nil {
			s.remove(sub)
			return nil, err
		}
	}
	return sub, nil
}

// resubscribe restores all subscriptions after (re)connecting.
func (s *service) resubscribe() {
	s.mutex.Lock()
	subs := append([]*subscription(nil), s.subscriptions...)
	s.mutex.Unlock()
	for _, sub := range subs {
		if err := sub.subscribe(context.Background()); err != nil {
			s.log.Error().Err(err).Str("topic", sub.topic).Msg("Failed to subscribe")
		}
	}
}

func (s *service) remove(sub *subscription) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for i, x := range s.subscriptions {
		if x == sub {
			s.subscriptions = append(s.subscriptions[:i], s.subscriptions[i+1:]...)
			return
		}
	}
}

type subscription struct {
	service *service
	topic   string
	qos     byte

	mutex  sync.Mutex
	queue  chan []byte
	closed bool
}

func (s *subscription) subscribe(ctx context.Context) error {
	token := s.service.client.Subscribe(s.topic, s.qos, s.messageHandler)
	if err := waitToken(ctx, token, s.service.PublishTimeout); err != nil {
		return errors.Wrapf(err, "failed to subscribe to '%s'", s.topic)
	}
	return nil
}

// Put message in queue, dropping it when the queue is full.
func (s *subscription) messageHandler(c mqttapi.Client, msg mqttapi.Message) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- msg.Payload():
	default:
		s.service.log.Warn().Str("topic", s.topic).Msg("Subscription queue full, dropping message")
	}
}

func (s *subscription) closeQueue() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
}

// Unsubscribe.
func (s *subscription) Close() error {
	s.closeQueue()
	s.service.remove(s)
	if s.service.client.IsConnectionOpen() {
		token := s.service.client.Unsubscribe(s.topic)
		if err := waitToken(context.Background(), token, s.service.PublishTimeout); err != nil {
			return errors.Wrapf(err, "failed to unsubscribe from '%s'", s.topic)
		}
	}
	return nil
}

// NextMsg blocks until the next message has been received.
func (s *subscription) NextMsg(ctx context.Context, result interface{}) error {
	select {
	case encodedMsg, ok := <-s.queue:
		if !ok {
			return errors.WithStack(SubscriptionClosedError)
		}
		if err := json.Unmarshal(encodedMsg, result); err != nil {
			return errors.WithStack(err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitToken waits until the given token completes, the timeout expires
// or the context is canceled.
func waitToken(ctx context.Context, token mqttapi.Token, timeout time.Duration) error {
	var timeoutC <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timeoutC = t.C
	}
	select {
	case <-token.Done():
		return token.Error()
	case <-timeoutC:
		return errors.WithStack(PublishTimeoutError)
	case <-ctx.Done():
		return ctx.Err()
	}
}
