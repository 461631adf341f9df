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
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/pkg/service/bridge"
)

func newTestIR(t *testing.T) (*IRSensor, *bridge.VirtualBridge) {
	b := bridge.NewVirtualBridge(bridge.Options{StatusLEDPin: 5, ErrorLEDPin: 6}, nil)
	s, err := NewIRSensor(b, IRConfig{Pin: 4, Debounce: 2 * time.Second, PollInterval: time.Millisecond}, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewIRSensor failed: %s", err)
	}
	return s, b
}

func TestIRPresence(t *testing.T) {
	s, b := newTestIR(t)
	if present, _ := s.IsObjectPresent(); present {
		t.Error("Expected no object with line pulled high")
	}
	b.SetInputLevel(4, false)
	if present, _ := s.IsObjectPresent(); !present {
		t.Error("Expected object with line low")
	}
}

func TestIRDebounce(t *testing.T) {
	s, _ := newTestIR(t)
	start := time.Unix(1000, 0)
	steps := []struct {
		present  bool
		offset   time.Duration
		expected bool
	}{
		{false, 0, false},
		{true, 100 * time.Millisecond, true},    // first arrival
		{true, 200 * time.Millisecond, false},   // still present
		{false, 300 * time.Millisecond, false},  // gone
		{true, 1 * time.Second, false},          // within debounce
		{false, 1500 * time.Millisecond, false}, // gone
		{true, 2100 * time.Millisecond, true},   // after debounce
		{true, 2200 * time.Millisecond, false},  // no new edge
	}
	for i, step := range steps {
		if v := s.handleLevel(step.present, start.Add(step.offset)); v != step.expected {
			t.Errorf("Step %d: expected %v, got %v", i, step.expected, v)
		}
	}
}

func TestIRWaitForObject(t *testing.T) {
	s, b := newTestIR(t)
	ok, err := s.WaitForObject(context.Background(), 150*time.Millisecond)
	if err != nil || ok {
		t.Errorf("Expected timeout, got %v (%v)", ok, err)
	}
	b.SetInputLevel(4, false)
	ok, err = s.WaitForObject(context.Background(), time.Second)
	if err != nil || !ok {
		t.Errorf("Expected object, got %v (%v)", ok, err)
	}
}

func TestIRRun(t *testing.T) {
	s, b := newTestIR(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	detected := make(chan struct{}, 4)
	done := make(chan error)
	go func() {
		done <- s.Run(ctx, func(context.Context) { detected <- struct{}{} })
	}()
	time.Sleep(10 * time.Millisecond)
	b.SetInputLevel(4, false)
	select {
	case <-detected:
	case <-time.After(time.Second):
		t.Fatal("Expected trigger")
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Expected nil error from Run, got %s", err)
	}
}
