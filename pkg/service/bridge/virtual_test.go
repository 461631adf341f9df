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

package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/smartbin/BinWorker/pkg/service/util"
)

func newTestBridge() (*VirtualBridge, *util.SteppingClock) {
	clock := util.NewSteppingClock(time.Unix(1000, 0), time.Microsecond)
	return NewVirtualBridge(Options{StatusLEDPin: 5, ErrorLEDPin: 6}, clock), clock
}

func TestVirtualInputFollowsPull(t *testing.T) {
	b, _ := newTestBridge()
	in, err := b.Input(4, true, PullUp)
	if err != nil {
		t.Fatalf("Input failed: %s", err)
	}
	if v, _ := in.Read(); v {
		t.Error("Expected inactive input with pull-up and active low")
	}
	b.SetInputLevel(4, false)
	if v, _ := in.Read(); !v {
		t.Error("Expected active input after pulling low")
	}
}

func TestVirtualPinConflicts(t *testing.T) {
	b, _ := newTestBridge()
	if _, err := b.Input(5, false, PullNone); err == nil {
		t.Error("Expected error using LED pin as input")
	}
	if _, err := b.Output(28, false, false); err == nil {
		t.Error("Expected error for pin out of range")
	}
}

func TestVirtualLEDs(t *testing.T) {
	b, _ := newTestBridge()
	if err := b.SetGreenLED(true); err != nil {
		t.Fatalf("SetGreenLED failed: %s", err)
	}
	if v, _ := b.OutputValue(5); !v {
		t.Error("Expected green LED on")
	}
	if err := b.BlinkRedLED(time.Millisecond); err != nil {
		t.Fatalf("BlinkRedLED failed: %s", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %s", err)
	}
	if v, _ := b.OutputValue(5); v {
		t.Error("Expected green LED off after close")
	}
	if v, _ := b.OutputValue(6); v {
		t.Error("Expected red LED off after close")
	}
	if err := b.BlinkGreenLED(0); err == nil {
		t.Error("Expected error for zero blink delay")
	}
}

func TestVirtualEcho(t *testing.T) {
	b, clock := newTestBridge()
	trig, _ := b.Output(23, false, false)
	echo, _ := b.Input(24, false, PullNone)
	b.SimulateDistance(23, 24, 34.3) // 2ms pulse

	if v, _ := echo.Read(); v {
		t.Fatal("Expected echo low before trigger")
	}
	trig.Write(true)
	trig.Write(false)
	if v, _ := echo.Read(); v {
		t.Error("Expected echo low within latency")
	}
	clock.Advance(virtualEchoLatency)
	if v, _ := echo.Read(); !v {
		t.Error("Expected echo high after latency")
	}
	clock.Advance(2 * time.Millisecond)
	if v, _ := echo.Read(); v {
		t.Error("Expected echo low after pulse")
	}

	b.SimulateStuckEcho(23, 24)
	if v, _ := echo.Read(); !v {
		t.Error("Expected stuck echo to read high")
	}
	b.SimulateMissingEcho(23, 24)
	if v, _ := echo.Read(); v {
		t.Error("Expected missing echo to read low")
	}
}

func TestVirtualI2C(t *testing.T) {
	b, _ := newTestBridge()
	bus, _ := b.I2CBus()
	err := bus.Execute(context.Background(), 0x40, func(ctx context.Context, dev I2CDevice) error {
		return dev.WriteByteReg(0x06, 0xAB)
	})
	if err != nil {
		t.Fatalf("Execute failed: %s", err)
	}
	if v := b.I2CRegister(0x40, 0x06); v != 0xAB {
		t.Errorf("Expected 0xAB, got 0x%02x", v)
	}
}

func TestVirtualPWM(t *testing.T) {
	b, _ := newTestBridge()
	p, _ := b.PWM(18)
	if err := p.SetPulse(1500*time.Microsecond, 20*time.Millisecond); err != nil {
		t.Fatalf("SetPulse failed: %s", err)
	}
	if w, _, running := b.PWMPulse(18); w != 1500*time.Microsecond || !running {
		t.Errorf("Unexpected pulse %s (running=%v)", w, running)
	}
	if err := p.SetPulse(30*time.Millisecond, 20*time.Millisecond); err == nil {
		t.Error("Expected error for pulse longer than period")
	}
	p.Halt()
	if _, _, running := b.PWMPulse(18); running {
		t.Error("Expected PWM halted")
	}
}
