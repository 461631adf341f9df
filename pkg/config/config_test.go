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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/smartbin/BinWorker/model"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default config is invalid: %s", err)
	}
	if c.IR.Debounce != 2*time.Second {
		t.Errorf("Expected debounce of 2s, got %s", c.IR.Debounce)
	}
	if c.Ultrasonic.EchoTimeout != 100*time.Millisecond {
		t.Errorf("Expected echo timeout of 100ms, got %s", c.Ultrasonic.EchoTimeout)
	}
	if c.MQTT.ClientID != c.DeviceID {
		t.Errorf("Expected client ID to default to device ID, got '%s'", c.MQTT.ClientID)
	}
}

func TestDefaultPinTable(t *testing.T) {
	c := Default()
	expected := map[model.Bin][3]model.Pin{
		model.BinDry:        {17, 23, 24},
		model.BinWet:        {27, 25, 8},
		model.BinElectronic: {22, 7, 1},
		model.BinUnknown:    {10, 12, 16},
	}
	for b, pins := range expected {
		bc, found := c.Bin(b)
		if !found {
			t.Fatalf("Bin %s not found", b)
		}
		if bc.ServoPin != pins[0] || bc.TriggerPin != pins[1] || bc.EchoPin != pins[2] {
			t.Errorf("Bin %s: expected %v, got servo=%d trig=%d echo=%d", b, pins, bc.ServoPin, bc.TriggerPin, bc.EchoPin)
		}
	}
	if c.IR.Pin != 4 || c.LEDs.StatusPin != 5 || c.LEDs.ErrorPin != 6 {
		t.Errorf("Unexpected IR/LED pins: %d %d %d", c.IR.Pin, c.LEDs.StatusPin, c.LEDs.ErrorPin)
	}
	if l := len(c.PinAssignments()); l != 15 {
		t.Errorf("Expected 15 pin assignments, got %d", l)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]func(c *Config){
		"pin out of range": func(c *Config) { c.IR.Pin = 28 },
		"duplicate pin":    func(c *Config) { c.LEDs.ErrorPin = c.LEDs.StatusPin },
		"missing bin":      func(c *Config) { delete(c.Bins, "wet") },
		"zero depth": func(c *Config) {
			bc := c.Bins["dry"]
			bc.Depth = 0
			c.Bins["dry"] = bc
		},
		"threshold":              func(c *Config) { c.Monitor.FullThreshold = 101 },
		"confidence":             func(c *Config) { c.Detector.ConfidenceThreshold = 1.5 },
		"pulse range":            func(c *Config) { c.Servo.MinPulse = c.Servo.MaxPulse },
		"interval":               func(c *Config) { c.Monitor.Interval = 0 },
		"error backoff zero":     func(c *Config) { c.Monitor.ErrorBackoff = 0 },
		"error backoff negative": func(c *Config) { c.Monitor.ErrorBackoff = -time.Second },
		"debounce":               func(c *Config) { c.IR.Debounce = -time.Second },
		"drop delay":             func(c *Config) { c.Pipeline.DropDelay = -time.Second },
		"sample interval":        func(c *Config) { c.Ultrasonic.SampleInterval = -time.Millisecond },
		"publish timeout":        func(c *Config) { c.MQTT.PublishTimeout = 0 },
		"bridge":                 func(c *Config) { c.Bridge = "arduino" },
		"remote no url":          func(c *Config) { c.Detector.Type = DetectorRemote },
		"class map":              func(c *Config) { c.Detector.ClassMap = map[string]string{"bottle": "glass"} },
		"samples":                func(c *Config) { c.Ultrasonic.Samples = 0 },
		"camera source":          func(c *Config) { c.Camera.Source = "webcam" },
		"pca9685 channels": func(c *Config) {
			c.Servo.Driver = ServoDriverPCA9685
			c.Bins["dry"] = BinConfig{TriggerPin: 23, EchoPin: 24, Depth: 30}
		},
	}
	for name, modify := range tests {
		c := Default()
		bins := make(map[string]BinConfig)
		for k, v := range c.Bins {
			bins[k] = v
		}
		c.Bins = bins
		modify(&c)
		err := c.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", name)
		} else if !model.IsValidation(err) {
			t.Errorf("%s: expected ValidationError cause, got %s", name, err)
		}
	}
}

func TestPCA9685ExcludesServoPins(t *testing.T) {
	c := Default()
	c.Servo.Driver = ServoDriverPCA9685
	for _, a := range c.PinAssignments() {
		if a.Name == "servo.dry" {
			t.Errorf("Servo pins must not be assigned with the pca9685 driver")
		}
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Expected valid config, got %s", err)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smartbin.yaml")
	content := "device_id: bin-7\nmqtt:\n  host: broker.local\n  port: 1884\nmonitor:\n  interval: 5s\nbins:\n  dry:\n    depth: 45\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SMARTBIN_MQTT_PORT", "1885")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--mqtt-host=cli.local", "--no-mqtt"}); err != nil {
		t.Fatal(err)
	}
	c, err := Load(fs, path)
	if err != nil {
		t.Fatalf("Load failed: %s", err)
	}
	if c.DeviceID != "bin-7" {
		t.Errorf("Expected device ID from file, got '%s'", c.DeviceID)
	}
	if c.MQTT.Host != "cli.local" {
		t.Errorf("Expected mqtt host from flag, got '%s'", c.MQTT.Host)
	}
	if c.MQTT.Port != 1885 {
		t.Errorf("Expected mqtt port from env, got %d", c.MQTT.Port)
	}
	if c.MQTT.Enabled {
		t.Errorf("Expected mqtt disabled by --no-mqtt")
	}
	if c.Monitor.Interval != 5*time.Second {
		t.Errorf("Expected interval 5s, got %s", c.Monitor.Interval)
	}
	if bc, _ := c.Bin(model.BinDry); bc.Depth != 45 || bc.TriggerPin != 23 {
		t.Errorf("Expected merged dry bin config, got %+v", bc)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(nil, filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	c := Default()
	c.DeviceID = "roundtrip"
	c.Pipeline.DropDelay = 1500 * time.Millisecond
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := c.WriteFile(path); err != nil {
		t.Fatalf("WriteFile failed: %s", err)
	}
	loaded, err := Load(nil, path)
	if err != nil {
		t.Fatalf("Load failed: %s", err)
	}
	if loaded.DeviceID != "roundtrip" {
		t.Errorf("Expected device ID 'roundtrip', got '%s'", loaded.DeviceID)
	}
	if loaded.Pipeline.DropDelay != 1500*time.Millisecond {
		t.Errorf("Expected drop delay 1.5s, got %s", loaded.Pipeline.DropDelay)
	}
}
