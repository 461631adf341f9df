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

package devices

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/pkg/service/bridge"
	"github.com/smartbin/BinWorker/pkg/service/util"
)

func newTestUltrasonic(t *testing.T) (*UltrasonicSensor, *bridge.VirtualBridge) {
	clock := util.NewSteppingClock(time.Unix(1000, 0), time.Microsecond)
	b := bridge.NewVirtualBridge(bridge.Options{StatusLEDPin: 5, ErrorLEDPin: 6}, clock)
	s, err := NewUltrasonicSensor("dry", b, UltrasonicConfig{
		TriggerPin:     23,
		EchoPin:        24,
		Depth:          30,
		EchoTimeout:    100 * time.Millisecond,
		SampleInterval: 50 * time.Millisecond,
		MinDistance:    2,
		MaxDistance:    400,
	}, clock, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewUltrasonicSensor failed: %s", err)
	}
	return s, b
}

func TestMeasureDistance(t *testing.T) {
	s, b := newTestUltrasonic(t)
	b.SimulateDistance(23, 24, 50)
	d, err := s.MeasureDistance(context.Background(), 3)
	if err != nil {
		t.Fatalf("MeasureDistance failed: %s", err)
	}
	if math.Abs(d-50) > 0.1 {
		t.Errorf("Expected ~50cm, got %v", d)
	}
	if v, _ := b.OutputValue(23); v {
		t.Error("Expected trigger low after measurement")
	}
}

func TestValidDistanceBand(t *testing.T) {
	s, _ := newTestUltrasonic(t)
	tests := []struct {
		distance float64
		valid    bool
	}{
		{0, false},
		{2, false},
		{2.01, true},
		{200, true},
		{399.99, true},
		{400, false},
		{450, false},
	}
	for _, test := range tests {
		if v := s.isValid(test.distance); v != test.valid {
			t.Errorf("isValid(%v): expected %v, got %v", test.distance, test.valid, v)
		}
	}
}

func TestMeasureDistanceIgnoresInvalidSamples(t *testing.T) {
	s, b := newTestUltrasonic(t)
	b.SimulateDistances(23, 24, 50, 1, 60, 450)
	d, err := s.MeasureDistance(context.Background(), 4)
	if err != nil {
		t.Fatalf("MeasureDistance failed: %s", err)
	}
	if math.Abs(d-55) > 0.1 {
		t.Errorf("Expected mean of valid samples ~55cm, got %v", d)
	}
}

func TestMeasureDistanceDiagnosis(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(b *bridge.VirtualBridge)
		diagnosis Diagnosis
	}{
		{"missing echo", func(b *bridge.VirtualBridge) { b.SimulateMissingEcho(23, 24) }, DiagnosisZeroPulse},
		{"stuck echo", func(b *bridge.VirtualBridge) { b.SimulateStuckEcho(23, 24) }, DiagnosisTimeoutPulse},
		{"too close", func(b *bridge.VirtualBridge) { b.SimulateDistance(23, 24, 1) }, DiagnosisOutOfRange},
		{"too far", func(b *bridge.VirtualBridge) { b.SimulateDistance(23, 24, 450) }, DiagnosisOutOfRange},
	}
	for _, test := range tests {
		s, b := newTestUltrasonic(t)
		test.setup(b)
		_, err := s.MeasureDistance(context.Background(), 2)
		nvm, ok := AsNoValidMeasurement(err)
		if !ok {
			t.Errorf("%s: expected NoValidMeasurementError, got %v", test.name, err)
			continue
		}
		if nvm.Diagnosis != test.diagnosis {
			t.Errorf("%s: expected diagnosis %s, got %s", test.name, test.diagnosis, nvm.Diagnosis)
		}
		if nvm.TriggerPin != 23 || nvm.EchoPin != 24 {
			t.Errorf("%s: unexpected pins in error: %d/%d", test.name, nvm.TriggerPin, nvm.EchoPin)
		}
		if nvm.Diagnosis == DiagnosisTimeoutPulse && nvm.LastPulse < 100*time.Millisecond {
			t.Errorf("%s: expected timeout pulse >= 100ms, got %s", test.name, nvm.LastPulse)
		}
	}
}

func TestFillLevel(t *testing.T) {
	s, b := newTestUltrasonic(t)
	b.SimulateDistance(23, 24, 6)
	fill, err := s.FillLevel(context.Background(), 3)
	if err != nil {
		t.Fatalf("FillLevel failed: %s", err)
	}
	if math.Abs(fill-80) > 0.5 {
		t.Errorf("Expected ~80%%, got %v", fill)
	}
	full, err := s.IsFull(context.Background(), 1, 75)
	if err != nil || !full {
		t.Errorf("Expected full bin, got %v (%v)", full, err)
	}

	b.SimulateMissingEcho(23, 24)
	fill, err = s.FillLevel(context.Background(), 1)
	if fill != 0 || err == nil {
		t.Errorf("Expected 0%% with error, got %v (%v)", fill, err)
	}
	full, err = s.IsFull(context.Background(), 1, 0)
	if err != nil || full {
		t.Errorf("Expected sensor without valid measurement not to be full, got %v (%v)", full, err)
	}
}

func TestFillPercent(t *testing.T) {
	tests := []struct {
		depth, distance, expected float64
	}{
		{30, 30, 0},
		{30, 15, 50},
		{30, 0, 100},
		{30, 45, 0},
		{30, -5, 100},
		{0, 10, 0},
	}
	for _, test := range tests {
		if v := FillPercent(test.depth, test.distance); v != test.expected {
			t.Errorf("FillPercent(%v, %v): expected %v, got %v", test.depth, test.distance, test.expected, v)
		}
	}
}

func TestDistanceForPulse(t *testing.T) {
	if d := DistanceForPulse(time.Millisecond); d != 17.15 {
		t.Errorf("Expected 17.15, got %v", d)
	}
	if d := DistanceForPulse(0); d != 0 {
		t.Errorf("Expected 0, got %v", d)
	}
}

func TestMeasureDistanceCanceled(t *testing.T) {
	s, b := newTestUltrasonic(t)
	b.SimulateDistance(23, 24, 50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.MeasureDistance(ctx, 3); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
