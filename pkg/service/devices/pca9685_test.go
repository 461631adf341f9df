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

func TestPCA9685Prescale(t *testing.T) {
	// 25MHz / 4096 / (50 * 0.9) - 1 = 134.6
	if p := pca9685Prescale(50); p != 135 {
		t.Errorf("Expected prescale 135, got %d", p)
	}
}

func TestPCA9685Servo(t *testing.T) {
	ctx := context.Background()
	b := bridge.NewVirtualBridge(bridge.Options{StatusLEDPin: 5, ErrorLEDPin: 6}, nil)
	bus, _ := b.I2CBus()
	pwm, err := NewPCA9685(bus, 0x40, 50)
	if err != nil {
		t.Fatalf("NewPCA9685 failed: %s", err)
	}
	if err := pwm.Configure(ctx); err != nil {
		t.Fatalf("Configure failed: %s", err)
	}
	if v := b.I2CRegister(0x40, pca9685PRESCALEReg); v != 135 {
		t.Errorf("Expected prescale register 135, got %d", v)
	}
	if v := b.I2CRegister(0x40, pca9685MODE1Reg); v != 0x01 {
		t.Errorf("Expected MODE1 awake (0x01), got 0x%02x", v)
	}

	cfg := testServoConfig
	cfg.Settle = time.Millisecond
	s, err := NewPCA9685Servo("electronic", pwm, 3, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPCA9685Servo failed: %s", err)
	}
	if err := s.SetAngle(ctx, 90); err != nil {
		t.Fatalf("SetAngle failed: %s", err)
	}
	on, off, enabled, err := pwm.GetPWM(ctx, 3)
	if err != nil {
		t.Fatalf("GetPWM failed: %s", err)
	}
	if on != 0 || off != 307 || !enabled {
		t.Errorf("Unexpected PWM state on=%d off=%d enabled=%v", on, off, enabled)
	}
	if err := s.Release(ctx); err != nil {
		t.Fatalf("Release failed: %s", err)
	}
	if _, off, enabled, _ := pwm.GetPWM(ctx, 3); enabled || off != 307 {
		t.Errorf("Expected disabled output keeping off value, got off=%d enabled=%v", off, enabled)
	}

	if _, err := NewPCA9685Servo("x", pwm, 17, cfg, zerolog.Nop()); err == nil {
		t.Error("Expected error for output 17")
	}
	if _, err := NewPCA9685(bus, 0x40, 5000); err == nil {
		t.Error("Expected error for frequency out of range")
	}
}
