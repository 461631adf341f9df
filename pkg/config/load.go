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
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	configName = "smartbin"
	envPrefix  = "SMARTBIN"
)

// defaults returns the default value of every configuration key.
// Keys unknown here are not picked up from the environment.
func defaults() map[string]interface{} {
	return map[string]interface{}{
		"device_id": "smartbin-001",
		"log_level": "info",
		"bridge":    BridgeAuto,

		"leds.status_pin": 5,
		"leds.error_pin":  6,

		"ir.pin":           4,
		"ir.debounce":      2 * time.Second,
		"ir.poll_interval": 50 * time.Millisecond,

		"servo.driver":          ServoDriverSoftPWM,
		"servo.min_pulse":       500 * time.Microsecond,
		"servo.max_pulse":       2500 * time.Microsecond,
		"servo.max_angle":       180.0,
		"servo.frequency":       50.0,
		"servo.open_angle":      90.0,
		"servo.closed_angle":    0.0,
		"servo.settle":          500 * time.Millisecond,
		"servo.pca9685_address": 0x40,

		"bins.dry.servo_pin":            17,
		"bins.dry.servo_channel":        1,
		"bins.dry.trigger_pin":          23,
		"bins.dry.echo_pin":             24,
		"bins.dry.depth":                30.0,
		"bins.wet.servo_pin":            27,
		"bins.wet.servo_channel":        2,
		"bins.wet.trigger_pin":          25,
		"bins.wet.echo_pin":             8,
		"bins.wet.depth":                30.0,
		"bins.electronic.servo_pin":     22,
		"bins.electronic.servo_channel": 3,
		"bins.electronic.trigger_pin":   7,
		"bins.electronic.echo_pin":      1,
		"bins.electronic.depth":         30.0,
		"bins.unknown.servo_pin":        10,
		"bins.unknown.servo_channel":    4,
		"bins.unknown.trigger_pin":      12,
		"bins.unknown.echo_pin":         16,
		"bins.unknown.depth":            30.0,

		"ultrasonic.samples":         3,
		"ultrasonic.echo_timeout":    100 * time.Millisecond,
		"ultrasonic.sample_interval": 50 * time.Millisecond,
		"ultrasonic.min_distance":    2.0,
		"ultrasonic.max_distance":    400.0,

		"monitor.interval":       30 * time.Second,
		"monitor.full_threshold": 80.0,
		"monitor.error_backoff":  10 * time.Second,

		"pipeline.drop_delay":         2 * time.Second,
		"pipeline.error_led_duration": time.Second,
		"pipeline.ready_blink":        500 * time.Millisecond,

		"detector.type":                 DetectorHeuristic,
		"detector.confidence_threshold": 0.4,
		"detector.remote_url":           "",
		"detector.remote_timeout":       5 * time.Second,
		"detector.class_map":            map[string]string{},

		"camera.source":         CameraAuto,
		"camera.index":          0,
		"camera.max_index":      20,
		"camera.width":          640,
		"camera.height":         480,
		"camera.usb_command":    "fswebcam -q -d /dev/video{index} -r {width}x{height} --no-banner --jpeg 90 -",
		"camera.csi_command":    "rpicam-still -n -t 1 --width {width} --height {height} -e jpg -o -",
		"camera.file":           "",
		"camera.preprocess":     true,
		"camera.probe_attempts": 5,

		"mqtt.enabled":         true,
		"mqtt.host":            "localhost",
		"mqtt.port":            1883,
		"mqtt.client_id":       "",
		"mqtt.username":        "",
		"mqtt.password":        "",
		"mqtt.topic_prefix":    "smartbin",
		"mqtt.publish_timeout": 2 * time.Second,
		"mqtt.forward_logs":    false,

		"server.host":         "0.0.0.0",
		"server.http_port":    8080,
		"server.grpc_port":    7129,
		"server.ssh_port":     7122,
		"server.ssh_host_key": ".ssh/smartbin_ed25519",

		"history.enabled":   true,
		"history.path":      "smartbin.db",
		"history.retention": 30 * 24 * time.Hour,
	}
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":    "log_level",
	"device-id":    "device_id",
	"bridge":       "bridge",
	"servo-driver": "servo.driver",
	"detector":     "detector.type",
	"detector-url": "detector.remote_url",
	"camera":       "camera.source",
	"camera-file":  "camera.file",
	"mqtt-host":    "mqtt.host",
	"mqtt-port":    "mqtt.port",
	"no-mqtt":      "",
	"http-port":    "server.http_port",
	"grpc-port":    "server.grpc_port",
	"ssh-port":     "server.ssh_port",
	"history-path": "history.path",
}

// RegisterFlags adds the configuration flags to the given flag set.
func RegisterFlags(fs *pflag.FlagSet) {
	d := defaults()
	fs.String("log-level", d["log_level"].(string), "Log level (debug|info|warn|error)")
	fs.String("device-id", d["device_id"].(string), "Identifier of this bin")
	fs.String("bridge", d["bridge"].(string), "Hardware bridge (auto|rpi|periph|virtual)")
	fs.String("servo-driver", d["servo.driver"].(string), "Servo driver (softpwm|pca9685|periph)")
	fs.String("detector", d["detector.type"].(string), "Waste detector (heuristic|remote)")
	fs.String("detector-url", "", "URL of the remote inference endpoint")
	fs.String("camera", d["camera.source"].(string), "Camera source (auto|usb|csi|file|none)")
	fs.String("camera-file", "", "Image served by the file camera source")
	fs.String("mqtt-host", d["mqtt.host"].(string), "Host of the MQTT broker")
	fs.Int("mqtt-port", d["mqtt.port"].(int), "Port of the MQTT broker")
	fs.Bool("no-mqtt", false, "Disable MQTT publishing")
	fs.Int("http-port", d["server.http_port"].(int), "Port of the HTTP server")
	fs.Int("grpc-port", d["server.grpc_port"].(int), "Port of the GRPC server")
	fs.Int("ssh-port", d["server.ssh_port"].(int), "Port of the SSH dashboard (0 disables)")
	fs.String("history-path", d["history.path"].(string), "Path of the SQLite history database (empty disables)")
}

// newViper creates a viper instance with all defaults set.
func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	return v
}

// Load the configuration from defaults, the config file, environment
// variables & the given flags (in increasing order of precedence).
// If configFile is empty, smartbin.yaml is searched in the default locations.
// The returned configuration is validated.
func Load(fs *pflag.FlagSet, configFile string) (Config, error) {
	v := newViper()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath("/etc/smartbin")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "smartbin"))
		}
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return Config{}, errors.Wrap(err, "failed to read config file")
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil || key == "" {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, errors.Wrapf(err, "failed to bind flag '%s'", name)
			}
		}
		if noMQTT, err := fs.GetBool("no-mqtt"); err == nil && noMQTT {
			v.Set("mqtt.enabled", false)
		}
	}

	c, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Default returns the default configuration, ignoring config files,
// environment & flags.
func Default() Config {
	c, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return c
}

func decode(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode configuration")
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = c.DeviceID
	}
	return c, nil
}

// Marshal returns the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	encoded, err := yaml.Marshal(yamlConfig(c))
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode configuration")
	}
	return encoded, nil
}

// WriteFile writes the configuration as YAML to the given path.
func (c Config) WriteFile(path string) error {
	encoded, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, encoded, 0644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
