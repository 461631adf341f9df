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

package publish

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/mqtt"
)

// SystemStatus is the status published on the system status topic.
type SystemStatus string

const (
	StatusReady    SystemStatus = "ready"
	StatusAlert    SystemStatus = "alert"
	StatusError    SystemStatus = "error"
	StatusShutdown SystemStatus = "shutdown"
)

// Topics relative to the topic prefix
const (
	TopicDetection    = "detection"
	TopicBinStatus    = "bins/status"
	TopicSystemStatus = "system/status"
	TopicLogs         = "logs"
	TopicCommand      = "command"
)

// Publisher publishes worker events.
// Publishing never fails the caller; failures are logged and counted.
type Publisher interface {
	// PublishDetection publishes the summary of a processed item.
	PublishDetection(ctx context.Context, summary model.Summary)
	// PublishBinStatus publishes the fill levels of all bins.
	PublishBinStatus(ctx context.Context, levels model.BinLevels)
	// PublishSystemStatus publishes a change in system status.
	PublishSystemStatus(ctx context.Context, status SystemStatus, message string)
}

type header struct {
	DeviceID  string `json:"device_id"`
	Timestamp string `json:"timestamp"`
}

// DetectionMessage is the payload of the detection topic.
type DetectionMessage struct {
	header
	Count       int                    `json:"count"`
	Objects     []model.DetectedObject `json:"objects"`
	Destination model.Bin              `json:"destination"`
	Confidence  float64                `json:"confidence"`
}

// BinStatusMessage is the payload of the bins/status topic.
type BinStatusMessage struct {
	header
	Bins map[string]float64 `json:"bins"`
}

// SystemStatusMessage is the payload of the system/status topic.
type SystemStatusMessage struct {
	header
	Status  SystemStatus `json:"status"`
	Message string       `json:"message"`
}

// CommandMessage is the payload of the command topic.
type CommandMessage struct {
	Command string `json:"command"`
	Bin     string `json:"bin,omitempty"`
}

// Topic joins the given prefix & topic.
func Topic(prefix, topic string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return topic
	}
	return prefix + "/" + topic
}

type mqttPublisher struct {
	log      zerolog.Logger
	svc      mqtt.Service
	deviceID string
	prefix   string
	now      func() time.Time
}

// NewMQTTPublisher creates a publisher on top of the given MQTT service.
func NewMQTTPublisher(svc mqtt.Service, deviceID, topicPrefix string, log zerolog.Logger) Publisher {
	return &mqttPublisher{
		log:      log.With().Str("component", "publisher").Logger(),
		svc:      svc,
		deviceID: deviceID,
		prefix:   topicPrefix,
		now:      time.Now,
	}
}

func (p *mqttPublisher) header(ts time.Time) header {
	return header{
		DeviceID:  p.deviceID,
		Timestamp: ts.UTC().Format(time.RFC3339),
	}
}

// PublishDetection publishes the summary of a processed item.
func (p *mqttPublisher) PublishDetection(ctx context.Context, summary model.Summary) {
	ts := summary.Timestamp
	if ts.IsZero() {
		ts = p.now()
	}
	objects := summary.Objects
	if objects == nil {
		objects = []model.DetectedObject{}
	}
	p.publish(ctx, TopicDetection, DetectionMessage{
		header:      p.header(ts),
		Count:       summary.Count,
		Objects:     objects,
		Destination: summary.Destination,
		Confidence:  summary.Confidence,
	}, false)
}

// PublishBinStatus publishes the fill levels of all bins.
func (p *mqttPublisher) PublishBinStatus(ctx context.Context, levels model.BinLevels) {
	bins := make(map[string]float64, len(levels))
	for b, l := range levels {
		bins[b.String()] = l
	}
	p.publish(ctx, TopicBinStatus, BinStatusMessage{
		header: p.header(p.now()),
		Bins:   bins,
	}, true)
}

// PublishSystemStatus publishes a change in system status.
func (p *mqttPublisher) PublishSystemStatus(ctx context.Context, status SystemStatus, message string) {
	p.publish(ctx, TopicSystemStatus, SystemStatusMessage{
		header:  p.header(p.now()),
		Status:  status,
		Message: message,
	}, status != StatusAlert)
}

func (p *mqttPublisher) publish(ctx context.Context, topic string, msg interface{}, retained bool) {
	topic = Topic(p.prefix, topic)
	if err := p.svc.Publish(ctx, msg, topic, mqtt.QosDefault, retained); err != nil {
		p.log.Warn().Err(err).Str("topic", topic).Msg("Publish failed")
		return
	}
	p.log.Debug().Str("topic", topic).Msg("Published")
}

// NewNopPublisher creates a publisher that only logs.
// It is used when MQTT is disabled.
func NewNopPublisher(log zerolog.Logger) Publisher {
	return nopPublisher{log: log.With().Str("component", "publisher").Logger()}
}

type nopPublisher struct {
	log zerolog.Logger
}

func (p nopPublisher) PublishDetection(ctx context.Context, summary model.Summary) {
	p.log.Debug().Str("destination", summary.Destination.String()).Msg("Detection")
}

func (p nopPublisher) PublishBinStatus(ctx context.Context, levels model.BinLevels) {
	p.log.Debug().Interface("levels", levels).Msg("Bin status")
}

func (p nopPublisher) PublishSystemStatus(ctx context.Context, status SystemStatus, message string) {
	p.log.Debug().Str("status", string(status)).Str("message", message).Msg("System status")
}
