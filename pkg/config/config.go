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
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/smartbin/BinWorker/model"
)

const (
	BridgeAuto    = "auto"
	BridgeRPI     = "rpi"
	BridgePeriph  = "periph"
	BridgeVirtual = "virtual"

	ServoDriverSoftPWM = "softpwm"
	ServoDriverPCA9685 = "pca9685"
	ServoDriverPeriph  = "periph"

	DetectorHeuristic = "heuristic"
	DetectorRemote    = "remote"

	CameraAuto = "auto"
	CameraUSB  = "usb"
	CameraCSI  = "csi"
	CameraFile = "file"
	CameraNone = "none"
)

// Config holds the complete configuration of the worker.
type Config struct {
	// Identifier of this bin in published messages
	DeviceID string `mapstructure:"device_id" yaml:"device_id"`
	// Log level (debug|info|warn|error)
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	// Hardware bridge (auto|rpi|periph|virtual)
	Bridge string `mapstructure:"bridge" yaml:"bridge"`

	LEDs       LEDConfig            `mapstructure:"leds" yaml:"leds"`
	IR         IRConfig             `mapstructure:"ir" yaml:"ir"`
	Servo      ServoConfig          `mapstructure:"servo" yaml:"servo"`
	Bins       map[string]BinConfig `mapstructure:"bins" yaml:"bins"`
	Ultrasonic UltrasonicConfig     `mapstructure:"ultrasonic" yaml:"ultrasonic"`
	Monitor    MonitorConfig        `mapstructure:"monitor" yaml:"monitor"`
	Pipeline   PipelineConfig       `mapstructure:"pipeline" yaml:"pipeline"`
	Detector   DetectorConfig       `mapstructure:"detector" yaml:"detector"`
	Camera     CameraConfig         `mapstructure:"camera" yaml:"camera"`
	MQTT       MQTTConfig           `mapstructure:"mqtt" yaml:"mqtt"`
	Server     ServerConfig         `mapstructure:"server" yaml:"server"`
	History    HistoryConfig        `mapstructure:"history" yaml:"history"`
}

// LEDConfig holds the pins of the status LEDs.
type LEDConfig struct {
	StatusPin model.Pin `mapstructure:"status_pin" yaml:"status_pin"`
	ErrorPin  model.Pin `mapstructure:"error_pin" yaml:"error_pin"`
}

// IRConfig configures the IR proximity sensor at the intake.
type IRConfig struct {
	Pin          model.Pin     `mapstructure:"pin" yaml:"pin"`
	Debounce     time.Duration `mapstructure:"debounce" yaml:"debounce"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// ServoConfig configures the door servos.
type ServoConfig struct {
	// Driver used to generate servo pulses (softpwm|pca9685|periph)
	Driver      string        `mapstructure:"driver" yaml:"driver"`
	MinPulse    time.Duration `mapstructure:"min_pulse" yaml:"min_pulse"`
	MaxPulse    time.Duration `mapstructure:"max_pulse" yaml:"max_pulse"`
	MaxAngle    float64       `mapstructure:"max_angle" yaml:"max_angle"`
	Frequency   float64       `mapstructure:"frequency" yaml:"frequency"`
	OpenAngle   float64       `mapstructure:"open_angle" yaml:"open_angle"`
	ClosedAngle float64       `mapstructure:"closed_angle" yaml:"closed_angle"`
	// Time the servo gets to reach its position before pulses stop
	Settle time.Duration `mapstructure:"settle" yaml:"settle"`
	// I2C address of the PCA9685 board
	PCA9685Address int `mapstructure:"pca9685_address" yaml:"pca9685_address"`
}

// BinConfig holds the per-bin hardware assignment.
type BinConfig struct {
	ServoPin model.Pin `mapstructure:"servo_pin" yaml:"servo_pin"`
	// PCA9685 channel (1..16), used with the pca9685 servo driver
	ServoChannel int       `mapstructure:"servo_channel" yaml:"servo_channel"`
	TriggerPin   model.Pin `mapstructure:"trigger_pin" yaml:"trigger_pin"`
	EchoPin      model.Pin `mapstructure:"echo_pin" yaml:"echo_pin"`
	// Depth of the bin in cm, measured from the sensor
	Depth float64 `mapstructure:"depth" yaml:"depth"`
}

// UltrasonicConfig configures the HC-SR04 measurements.
type UltrasonicConfig struct {
	Samples        int           `mapstructure:"samples" yaml:"samples"`
	EchoTimeout    time.Duration `mapstructure:"echo_timeout" yaml:"echo_timeout"`
	SampleInterval time.Duration `mapstructure:"sample_interval" yaml:"sample_interval"`
	MinDistance    float64       `mapstructure:"min_distance" yaml:"min_distance"`
	MaxDistance    float64       `mapstructure:"max_distance" yaml:"max_distance"`
}

// MonitorConfig configures the bin fill monitor.
type MonitorConfig struct {
	Interval      time.Duration `mapstructure:"interval" yaml:"interval"`
	FullThreshold float64       `mapstructure:"full_threshold" yaml:"full_threshold"`
	ErrorBackoff  time.Duration `mapstructure:"error_backoff" yaml:"error_backoff"`
}

// PipelineConfig configures the waste processing pipeline.
type PipelineConfig struct {
	// Time the door stays open for the item to drop
	DropDelay time.Duration `mapstructure:"drop_delay" yaml:"drop_delay"`
	// Time the error LED stays on after a processing error
	ErrorLEDDuration time.Duration `mapstructure:"error_led_duration" yaml:"error_led_duration"`
	// Time the status LED is on at startup
	ReadyBlink time.Duration `mapstructure:"ready_blink" yaml:"ready_blink"`
}

// DetectorConfig selects and configures the waste classifier.
type DetectorConfig struct {
	Type                string            `mapstructure:"type" yaml:"type"`
	ConfidenceThreshold float64           `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	RemoteURL           string            `mapstructure:"remote_url" yaml:"remote_url"`
	RemoteTimeout       time.Duration     `mapstructure:"remote_timeout" yaml:"remote_timeout"`
	ClassMap            map[string]string `mapstructure:"class_map" yaml:"class_map"`
}

// CameraConfig configures frame capture.
type CameraConfig struct {
	Source     string `mapstructure:"source" yaml:"source"`
	Index      int    `mapstructure:"index" yaml:"index"`
	MaxIndex   int    `mapstructure:"max_index" yaml:"max_index"`
	Width      int    `mapstructure:"width" yaml:"width"`
	Height     int    `mapstructure:"height" yaml:"height"`
	USBCommand string `mapstructure:"usb_command" yaml:"usb_command"`
	CSICommand string `mapstructure:"csi_command" yaml:"csi_command"`
	File       string `mapstructure:"file" yaml:"file"`
	Preprocess bool   `mapstructure:"preprocess" yaml:"preprocess"`
	// Number of capture attempts when probing a source
	ProbeAttempts int `mapstructure:"probe_attempts" yaml:"probe_attempts"`
}

// MQTTConfig configures the MQTT publisher.
type MQTTConfig struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           int           `mapstructure:"port" yaml:"port"`
	ClientID       string        `mapstructure:"client_id" yaml:"client_id"`
	UserName       string        `mapstructure:"username" yaml:"username"`
	Password       string        `mapstructure:"password" yaml:"password"`
	TopicPrefix    string        `mapstructure:"topic_prefix" yaml:"topic_prefix"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout" yaml:"publish_timeout"`
	ForwardLogs    bool          `mapstructure:"forward_logs" yaml:"forward_logs"`
}

// ServerConfig configures the HTTP, GRPC & SSH servers.
type ServerConfig struct {
	Host       string `mapstructure:"host" yaml:"host"`
	HTTPPort   int    `mapstructure:"http_port" yaml:"http_port"`
	GRPCPort   int    `mapstructure:"grpc_port" yaml:"grpc_port"`
	SSHPort    int    `mapstructure:"ssh_port" yaml:"ssh_port"`
	SSHHostKey string `mapstructure:"ssh_host_key" yaml:"ssh_host_key"`
}

// HistoryConfig configures the local detection history.
type HistoryConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Path      string        `mapstructure:"path" yaml:"path"`
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`
}

// Bin returns the configuration of the given bin.
func (c Config) Bin(b model.Bin) (BinConfig, bool) {
	bc, found := c.Bins[string(b)]
	return bc, found
}

// PinAssignments returns all GPIO pins used by the configuration.
func (c Config) PinAssignments() []model.PinAssignment {
	result := []model.PinAssignment{
		{Name: "led.status", Pin: c.LEDs.StatusPin},
		{Name: "led.error", Pin: c.LEDs.ErrorPin},
		{Name: "ir", Pin: c.IR.Pin},
	}
	for _, b := range model.AllBins {
		bc, found := c.Bin(b)
		if !found {
			continue
		}
		if c.Servo.Driver != ServoDriverPCA9685 {
			result = append(result, model.PinAssignment{Name: fmt.Sprintf("servo.%s", b), Pin: bc.ServoPin})
		}
		result = append(result,
			model.PinAssignment{Name: fmt.Sprintf("ultrasonic.%s.trigger", b), Pin: bc.TriggerPin},
			model.PinAssignment{Name: fmt.Sprintf("ultrasonic.%s.echo", b), Pin: bc.EchoPin},
		)
	}
	return result
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (c Config) Validate() error {
	switch c.Bridge {
	case BridgeAuto, BridgeRPI, BridgePeriph, BridgeVirtual:
	default:
		return errors.Wrapf(model.ValidationError, "invalid bridge '%s'", c.Bridge)
	}
	for _, b := range model.AllBins {
		bc, found := c.Bin(b)
		if !found {
			return errors.Wrapf(model.ValidationError, "missing configuration for bin '%s'", b)
		}
		if bc.Depth <= 0 {
			return errors.Wrapf(model.ValidationError, "depth of bin '%s' must be positive, got %v", b, bc.Depth)
		}
		if c.Servo.Driver == ServoDriverPCA9685 && (bc.ServoChannel < 1 || bc.ServoChannel > 16) {
			return errors.Wrapf(model.ValidationError, "servo channel of bin '%s' must be in 1..16, got %d", b, bc.ServoChannel)
		}
	}
	for name := range c.Bins {
		if _, err := model.ParseBin(name); err != nil {
			return errors.Wrapf(model.ValidationError, "bins: %s", err.Error())
		}
	}
	if err := model.ValidatePinAssignments(c.PinAssignments()); err != nil {
		return err
	}
	switch c.Servo.Driver {
	case ServoDriverSoftPWM, ServoDriverPCA9685, ServoDriverPeriph:
	default:
		return errors.Wrapf(model.ValidationError, "invalid servo driver '%s'", c.Servo.Driver)
	}
	if c.Servo.MinPulse <= 0 || c.Servo.MinPulse >= c.Servo.MaxPulse {
		return errors.Wrapf(model.ValidationError, "servo pulse range invalid (%s..%s)", c.Servo.MinPulse, c.Servo.MaxPulse)
	}
	if c.Servo.Frequency <= 0 || c.Servo.MaxAngle <= 0 {
		return errors.Wrap(model.ValidationError, "servo frequency and max angle must be positive")
	}
	if time.Duration(float64(time.Second)/c.Servo.Frequency) <= c.Servo.MaxPulse {
		return errors.Wrapf(model.ValidationError, "servo max pulse %s does not fit in period at %vHz", c.Servo.MaxPulse, c.Servo.Frequency)
	}
	for _, a := range []float64{c.Servo.OpenAngle, c.Servo.ClosedAngle} {
		if a < 0 || a > c.Servo.MaxAngle {
			return errors.Wrapf(model.ValidationError, "servo angle %v out of range [0..%v]", a, c.Servo.MaxAngle)
		}
	}
	if c.Ultrasonic.Samples < 1 {
		return errors.Wrap(model.ValidationError, "ultrasonic samples must be at least 1")
	}
	if c.Ultrasonic.EchoTimeout <= 0 {
		return errors.Wrap(model.ValidationError, "ultrasonic echo timeout must be positive")
	}
	if c.Ultrasonic.MinDistance < 0 || c.Ultrasonic.MinDistance >= c.Ultrasonic.MaxDistance {
		return errors.Wrap(model.ValidationError, "ultrasonic distance band invalid")
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"monitor.interval", c.Monitor.Interval},
		{"monitor.error_backoff", c.Monitor.ErrorBackoff},
		{"ir.poll_interval", c.IR.PollInterval},
		{"ir.debounce", c.IR.Debounce},
		{"ultrasonic.sample_interval", c.Ultrasonic.SampleInterval},
		{"pipeline.drop_delay", c.Pipeline.DropDelay},
		{"pipeline.error_led_duration", c.Pipeline.ErrorLEDDuration},
		{"pipeline.ready_blink", c.Pipeline.ReadyBlink},
		{"mqtt.publish_timeout", c.MQTT.PublishTimeout},
	} {
		if d.value <= 0 {
			return errors.Wrapf(model.ValidationError, "%s must be positive, got %s", d.name, d.value)
		}
	}
	if c.Monitor.FullThreshold < 0 || c.Monitor.FullThreshold > 100 {
		return errors.Wrapf(model.ValidationError, "full threshold %v out of range [0..100]", c.Monitor.FullThreshold)
	}
	switch c.Detector.Type {
	case DetectorHeuristic:
	case DetectorRemote:
		if c.Detector.RemoteURL == "" {
			return errors.Wrap(model.ValidationError, "remote detector requires remote_url")
		}
	default:
		return errors.Wrapf(model.ValidationError, "invalid detector type '%s'", c.Detector.Type)
	}
	if c.Detector.ConfidenceThreshold < 0 || c.Detector.ConfidenceThreshold > 1 {
		return errors.Wrapf(model.ValidationError, "confidence threshold %v out of range [0..1]", c.Detector.ConfidenceThreshold)
	}
	for class, bin := range c.Detector.ClassMap {
		if _, err := model.ParseBin(bin); err != nil {
			return errors.Wrapf(model.ValidationError, "class_map[%s]: %s", class, err.Error())
		}
	}
	switch c.Camera.Source {
	case CameraAuto, CameraUSB, CameraCSI, CameraNone:
	case CameraFile:
		if c.Camera.File == "" {
			return errors.Wrap(model.ValidationError, "file camera requires camera.file")
		}
	default:
		return errors.Wrapf(model.ValidationError, "invalid camera source '%s'", c.Camera.Source)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return errors.Wrap(model.ValidationError, "camera resolution must be positive")
	}
	if c.MQTT.Enabled && c.MQTT.Host == "" {
		return errors.Wrap(model.ValidationError, "mqtt host is empty")
	}
	return nil
}
