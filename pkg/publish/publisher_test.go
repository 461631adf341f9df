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
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/mqtt"
)

type published struct {
	Topic    string
	Payload  map[string]interface{}
	Retained bool
}

type fakeService struct {
	mutex    sync.Mutex
	messages []published
	fail     bool
}

func (s *fakeService) Close() error      { return nil }
func (s *fakeService) IsConnected() bool { return !s.fail }

func (s *fakeService) Publish(ctx context.Context, msg interface{}, topic string, qos byte, retained bool) error {
	if s.fail {
		return errors.WithStack(mqtt.PublishTimeoutError)
	}
	encoded, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.messages = append(s.messages, published{Topic: topic, Payload: payload, Retained: retained})
	return nil
}

func (s *fakeService) Subscribe(ctx context.Context, topic string, qos byte) (mqtt.Subscription, error) {
	return nil, errors.New("not supported")
}

func newTestPublisher(svc mqtt.Service) *mqttPublisher {
	p := NewMQTTPublisher(svc, "bin-1", "smartbin/", zerolog.Nop()).(*mqttPublisher)
	p.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	return p
}

func TestPublishSystemStatus(t *testing.T) {
	svc := &fakeService{}
	p := newTestPublisher(svc)
	p.PublishSystemStatus(context.Background(), StatusReady, "System online")

	if len(svc.messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(svc.messages))
	}
	m := svc.messages[0]
	if m.Topic != "smartbin/system/status" {
		t.Errorf("Unexpected topic %s", m.Topic)
	}
	if m.Payload["device_id"] != "bin-1" {
		t.Errorf("Unexpected device_id %v", m.Payload["device_id"])
	}
	if m.Payload["timestamp"] != "2026-03-04T05:06:07Z" {
		t.Errorf("Unexpected timestamp %v", m.Payload["timestamp"])
	}
	if m.Payload["status"] != "ready" || m.Payload["message"] != "System online" {
		t.Errorf("Unexpected payload %v", m.Payload)
	}
	if !m.Retained {
		t.Error("Expected retained status message")
	}
}

func TestPublishDetection(t *testing.T) {
	svc := &fakeService{}
	p := newTestPublisher(svc)
	p.PublishDetection(context.Background(), model.Summary{
		Destination: model.DestinationNone,
	})
	p.PublishDetection(context.Background(), model.Summary{
		Count:       1,
		Objects:     []model.DetectedObject{{Class: "banana", Confidence: 0.9}},
		Destination: model.BinWet,
		Confidence:  0.9,
		Timestamp:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	if len(svc.messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(svc.messages))
	}
	empty := svc.messages[0].Payload
	if objs, ok := empty["objects"].([]interface{}); !ok || len(objs) != 0 {
		t.Errorf("Expected empty objects list, got %v", empty["objects"])
	}
	if empty["destination"] != "none" || empty["count"] != float64(0) {
		t.Errorf("Unexpected payload %v", empty)
	}
	m := svc.messages[1]
	if m.Topic != "smartbin/detection" {
		t.Errorf("Unexpected topic %s", m.Topic)
	}
	if m.Payload["destination"] != "wet" || m.Payload["confidence"] != 0.9 {
		t.Errorf("Unexpected payload %v", m.Payload)
	}
	if m.Payload["timestamp"] != "2026-01-01T00:00:00Z" {
		t.Errorf("Expected summary timestamp, got %v", m.Payload["timestamp"])
	}
}

func TestPublishBinStatus(t *testing.T) {
	svc := &fakeService{}
	p := newTestPublisher(svc)
	p.PublishBinStatus(context.Background(), model.BinLevels{model.BinDry: 12.5, model.BinWet: 90})

	m := svc.messages[0]
	if m.Topic != "smartbin/bins/status" {
		t.Errorf("Unexpected topic %s", m.Topic)
	}
	bins, ok := m.Payload["bins"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected bins object, got %v", m.Payload["bins"])
	}
	if bins["dry"] != 12.5 || bins["wet"] != float64(90) {
		t.Errorf("Unexpected bins %v", bins)
	}
}

func TestPublishFailureDoesNotPanic(t *testing.T) {
	svc := &fakeService{fail: true}
	p := newTestPublisher(svc)
	p.PublishSystemStatus(context.Background(), StatusError, "boom")
	if len(svc.messages) != 0 {
		t.Errorf("Expected no messages, got %d", len(svc.messages))
	}
}

func TestTopic(t *testing.T) {
	if x := Topic("", "logs"); x != "logs" {
		t.Errorf("Unexpected topic %s", x)
	}
	if x := Topic("a/b/", "logs"); x != "a/b/logs" {
		t.Errorf("Unexpected topic %s", x)
	}
}
