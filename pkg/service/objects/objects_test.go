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

package objects

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/service/devices"
)

type fakeLevelSensor struct {
	level float64
	err   error
}

func (s *fakeLevelSensor) FillLevel(ctx context.Context, samples int) (float64, error) {
	return s.level, s.err
}

type recordingSink struct {
	mutex  sync.Mutex
	levels []model.BinLevels
	full   []model.Bin
}

func (s *recordingSink) BinLevels(ctx context.Context, levels model.BinLevels) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.levels = append(s.levels, levels)
}

func (s *recordingSink) BinFull(ctx context.Context, bin model.Bin, level float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.full = append(s.full, bin)
}

func TestFillLevels(t *testing.T) {
	m := NewBinMonitor(map[model.Bin]LevelSensor{
		model.BinDry: &fakeLevelSensor{level: 42.123},
		model.BinWet: &fakeLevelSensor{err: &devices.NoValidMeasurementError{Diagnosis: devices.DiagnosisZeroPulse}},
	}, 3, zerolog.Nop())
	levels, err := m.FillLevels(context.Background())
	if err != nil {
		t.Fatalf("FillLevels failed: %s", err)
	}
	expected := model.BinLevels{model.BinDry: 42.12, model.BinWet: 0}
	if !reflect.DeepEqual(levels, expected) {
		t.Errorf("Expected %v, got %v", expected, levels)
	}
	if last, _ := m.LastLevels(); !reflect.DeepEqual(last, expected) {
		t.Errorf("Expected last levels %v, got %v", expected, last)
	}
	if bins := m.Bins(); !reflect.DeepEqual(bins, []model.Bin{model.BinDry, model.BinWet}) {
		t.Errorf("Unexpected bins %v", bins)
	}
}

func TestFillLevelsError(t *testing.T) {
	m := NewBinMonitor(map[model.Bin]LevelSensor{
		model.BinDry: &fakeLevelSensor{err: errors.New("gpio failure")},
	}, 3, zerolog.Nop())
	if _, err := m.FillLevels(context.Background()); err == nil {
		t.Error("Expected error")
	}
}

func TestFullBins(t *testing.T) {
	levels := model.BinLevels{
		model.BinWet:        80,
		model.BinDry:        95,
		model.BinElectronic: 79.99,
		model.BinUnknown:    0,
	}
	full := FullBins(levels, 80)
	expected := []model.Bin{model.BinDry, model.BinWet}
	if !reflect.DeepEqual(full, expected) {
		t.Errorf("Expected %v, got %v", expected, full)
	}
	if full := FullBins(levels, 100); len(full) != 0 {
		t.Errorf("Expected no full bins, got %v", full)
	}
}

func TestBinMonitorRun(t *testing.T) {
	m := NewBinMonitor(map[model.Bin]LevelSensor{
		model.BinDry: &fakeLevelSensor{level: 90},
		model.BinWet: &fakeLevelSensor{level: 10},
	}, 1, zerolog.Nop())
	sink := &recordingSink{}
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()
	if err := m.Run(ctx, 10*time.Millisecond, time.Second, 80, sink); err != nil {
		t.Fatalf("Run failed: %s", err)
	}
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	if len(sink.levels) < 2 {
		t.Errorf("Expected at least 2 rounds, got %d", len(sink.levels))
	}
	if len(sink.full) != len(sink.levels) {
		t.Errorf("Expected one full alert per round, got %d alerts for %d rounds", len(sink.full), len(sink.levels))
	}
	for _, b := range sink.full {
		if b != model.BinDry {
			t.Errorf("Unexpected full bin %s", b)
		}
	}
}

type fakeServo struct {
	mutex    sync.Mutex
	angles   []float64
	closed   bool
	failOpen bool
}

func (s *fakeServo) SetAngle(ctx context.Context, angle float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.failOpen && angle != 0 {
		return errors.New("servo stuck")
	}
	s.angles = append(s.angles, angle)
	return nil
}

func (s *fakeServo) Release(ctx context.Context) error { return nil }

func (s *fakeServo) Close(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
	return nil
}

func (s *fakeServo) last() float64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if len(s.angles) == 0 {
		return -1
	}
	return s.angles[len(s.angles)-1]
}

func newTestDoors() (*DoorController, map[model.Bin]*fakeServo) {
	fakes := make(map[model.Bin]*fakeServo)
	servos := make(map[model.Bin]devices.Servo)
	for _, b := range model.AllBins {
		f := &fakeServo{}
		fakes[b] = f
		servos[b] = f
	}
	return NewDoorController(servos, 90, 0, zerolog.Nop()), fakes
}

func TestRotateToBin(t *testing.T) {
	ctx := context.Background()
	d, fakes := newTestDoors()
	if err := d.RotateToBin(ctx, model.BinWet); err != nil {
		t.Fatalf("RotateToBin failed: %s", err)
	}
	if a := fakes[model.BinWet].last(); a != 90 {
		t.Errorf("Expected wet door open, got %v", a)
	}
	if err := d.RotateToBin(ctx, model.BinDry); err != nil {
		t.Fatalf("RotateToBin failed: %s", err)
	}
	if a := fakes[model.BinWet].last(); a != 0 {
		t.Errorf("Expected wet door closed, got %v", a)
	}
	if a := fakes[model.BinDry].last(); a != 90 {
		t.Errorf("Expected dry door open, got %v", a)
	}
	if a := fakes[model.BinElectronic].last(); a != 0 {
		t.Errorf("Expected electronic door closed, got %v", a)
	}
	angles := d.Angles()
	if angles[model.BinDry] != 90 || angles[model.BinWet] != 0 {
		t.Errorf("Unexpected angles %v", angles)
	}
}

func TestRotateToUnknownBin(t *testing.T) {
	d, fakes := newTestDoors()
	for _, b := range []model.Bin{"glass", model.DestinationNone} {
		err := d.RotateToBin(context.Background(), b)
		if !model.IsUnknownBin(err) {
			t.Errorf("Expected UnknownBinError for '%s', got %v", b, err)
		}
	}
	for b, f := range fakes {
		if len(f.angles) != 0 {
			t.Errorf("Expected no servo moves for %s", b)
		}
	}
}

func TestDropFailedOpenClosesDoors(t *testing.T) {
	d, fakes := newTestDoors()
	fakes[model.BinWet].failOpen = true
	if err := d.Drop(context.Background(), model.BinWet, time.Millisecond); err == nil {
		t.Fatal("Expected Drop to fail")
	}
	for _, b := range model.AllBins {
		if a := fakes[b].last(); a != 0 {
			t.Errorf("Expected %s door closed after failed drop, got %v", b, a)
		}
	}
}

func TestDropAndClose(t *testing.T) {
	ctx := context.Background()
	d, fakes := newTestDoors()
	if err := d.Drop(ctx, model.BinElectronic, time.Millisecond); err != nil {
		t.Fatalf("Drop failed: %s", err)
	}
	e := fakes[model.BinElectronic]
	if !reflect.DeepEqual(e.angles, []float64{90, 0}) {
		t.Errorf("Expected open then close, got %v", e.angles)
	}
	for _, b := range model.AllBins {
		if a := fakes[b].last(); a != 0 {
			t.Errorf("Expected %s door closed after drop, got %v", b, a)
		}
	}
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close failed: %s", err)
	}
	for b, f := range fakes {
		if !f.closed {
			t.Errorf("Expected servo of %s closed", b)
		}
	}
}

type fakePresenceSensor struct {
	triggers int
}

func (s *fakePresenceSensor) Run(ctx context.Context, onDetect func(context.Context)) error {
	for i := 0; i < s.triggers; i++ {
		onDetect(ctx)
	}
	return nil
}

func TestTrigger(t *testing.T) {
	calls := 0
	tr := NewTrigger(&fakePresenceSensor{triggers: 3}, func(ctx context.Context) error {
		calls++
		if calls == 2 {
			return errors.New("failed")
		}
		return nil
	}, zerolog.Nop())
	if err := tr.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %s", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 handler calls, got %d", calls)
	}
}
