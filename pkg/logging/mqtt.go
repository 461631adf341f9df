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

package logging

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/smartbin/BinWorker/pkg/mqtt"
)

// MQTTWriter forwards log lines to an MQTT topic.
type MQTTWriter interface {
	io.Writer
	Enable(enable bool)
	SetDestination(topic, deviceID string, mqttService mqtt.Service)
}

type mqttLogger struct {
	mutex       sync.Mutex
	queue       chan []byte
	topic       string
	deviceID    string
	mqttService mqtt.Service
	enable      bool
}

const (
	mqttQueueSize = 512
)

// NewMQTTWriter creates a new MQTT output for logs.
// Lines are queued; when the queue is full the oldest lines are dropped.
// The MQTT sender is closed when the given context is canceled.
func NewMQTTWriter(ctx context.Context) MQTTWriter {
	l := &mqttLogger{
		queue: make(chan []byte, mqttQueueSize),
	}
	go l.run(ctx)
	return l
}

func (l *mqttLogger) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	l.mutex.Lock()
	enabled := l.enable
	l.mutex.Unlock()
	if !enabled {
		return len(p), nil
	}
	// zerolog reuses its buffer
	msg := append([]byte(nil), p...)
	for attempt := 0; attempt < 10; attempt++ {
		select {
		case l.queue <- msg:
			return len(p), nil
		default:
			// Queue full; Take 1 out and try again
			select {
			case <-l.queue:
			default:
			}
		}
	}
	// Ignore errors
	return len(p), nil
}

func (l *mqttLogger) Enable(enable bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.enable = enable
}

func (l *mqttLogger) SetDestination(topic, deviceID string, mqttService mqtt.Service) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.topic = topic
	l.deviceID = deviceID
	l.mqttService = mqttService
}

type logMsg struct {
	DeviceID  string `json:"device_id"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

func (l *mqttLogger) run(ctx context.Context) {
	for {
		l.mutex.Lock()
		mqttService := l.mqttService
		topic := l.topic
		deviceID := l.deviceID
		enabled := l.enable
		l.mutex.Unlock()

		if enabled && topic != "" && mqttService != nil && mqttService.IsConnected() {
			select {
			case msg := <-l.queue:
				mqttService.Publish(ctx, logMsg{
					DeviceID:  deviceID,
					Timestamp: time.Now().UTC().Format(time.RFC3339),
					Message:   strings.TrimSpace(string(msg)),
				}, topic, mqtt.QosAtMostOnce, false)
			case <-ctx.Done():
				return
			}
		} else {
			select {
			case <-time.After(time.Second):
				// Continue
			case <-ctx.Done():
				return
			}
		}
	}
}
