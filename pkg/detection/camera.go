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

package detection

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // Decoder for fswebcam & rpicam-still output
	_ "image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/config"
	"github.com/smartbin/BinWorker/pkg/service/util"
)

var (
	// ErrNoCamera is returned by Capture when no working camera was found.
	ErrNoCamera = errors.New("no camera available")

	// Path of the video device with given index
	videoDevicePath = func(index int) string {
		return fmt.Sprintf("/dev/video%d", index)
	}
	// Delay between capture attempts while probing a camera
	probeInterval = 200 * time.Millisecond
)

// Camera captures frames.
type Camera interface {
	// Name of the camera (e.g. usb:0, csi, file:x.jpg)
	Name() string
	// Capture a single frame.
	Capture(ctx context.Context) (*Frame, error)
	// Close releases the camera.
	Close() error
}

// OpenCamera probes the camera sources selected by the given configuration
// and returns the first one that yields a frame.
// When no source works, a camera is returned whose Capture always fails
// with ErrNoCamera.
func OpenCamera(ctx context.Context, cfg config.CameraConfig, log zerolog.Logger) (Camera, error) {
	log = log.With().Str("component", "camera").Logger()
	candidates, err := cameraCandidates(cfg)
	if err != nil {
		return nil, err
	}
	attempts := cfg.ProbeAttempts
	if attempts < 1 {
		attempts = 1
	}
	for _, cam := range candidates {
		if err := probe(ctx, cam, attempts); err != nil {
			log.Debug().Err(err).Str("camera", cam.Name()).Msg("Camera probe failed")
			cam.Close()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		log.Info().Str("camera", cam.Name()).Msg("Camera opened")
		return cam, nil
	}
	if cfg.Source != config.CameraNone {
		log.Warn().Str("source", cfg.Source).Msg("No working camera found")
	}
	return noCamera{}, nil
}

// cameraCandidates returns the cameras to probe, in order.
func cameraCandidates(cfg config.CameraConfig) ([]Camera, error) {
	var result []Camera
	addUSB := func() error {
		indices := []int{cfg.Index}
		for i := 0; i <= cfg.MaxIndex; i++ {
			if i == cfg.Index {
				continue
			}
			if _, err := os.Stat(videoDevicePath(i)); err == nil {
				indices = append(indices, i)
			}
		}
		for _, idx := range indices {
			cam, err := NewCommandCamera("usb:"+strconv.Itoa(idx), cfg.USBCommand, cfg, idx)
			if err != nil {
				return err
			}
			result = append(result, cam)
		}
		return nil
	}
	addCSI := func() error {
		cam, err := NewCommandCamera("csi", cfg.CSICommand, cfg, cfg.Index)
		if err != nil {
			return err
		}
		result = append(result, cam)
		return nil
	}

	switch cfg.Source {
	case config.CameraNone:
		return nil, nil
	case config.CameraFile:
		return []Camera{NewFileCamera(cfg.File)}, nil
	case config.CameraUSB:
		if err := addUSB(); err != nil {
			return nil, err
		}
	case config.CameraCSI:
		if err := addCSI(); err != nil {
			return nil, err
		}
	case config.CameraAuto, "":
		if err := addUSB(); err != nil {
			return nil, err
		}
		if err := addCSI(); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Wrapf(model.ValidationError, "invalid camera source '%s'", cfg.Source)
	}
	return result, nil
}

// probe tries to capture a frame up to the given number of attempts.
func probe(ctx context.Context, cam Camera, attempts int) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := util.Sleep(ctx, probeInterval); err != nil {
				return err
			}
		}
		if _, err := cam.Capture(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// commandCamera captures frames by running an external command that writes
// an encoded image to its standard output.
type commandCamera struct {
	name string
	args []string
}

// NewCommandCamera creates a camera from the given command line template.
// The template may contain {index}, {width} & {height} placeholders.
func NewCommandCamera(name, template string, cfg config.CameraConfig, index int) (Camera, error) {
	args, err := shlex.Split(template)
	if err != nil {
		return nil, errors.Wrapf(model.ValidationError, "invalid camera command '%s': %s", template, err)
	}
	if len(args) == 0 {
		return nil, errors.Wrapf(model.ValidationError, "empty camera command for %s", name)
	}
	r := strings.NewReplacer(
		"{index}", strconv.Itoa(index),
		"{width}", strconv.Itoa(cfg.Width),
		"{height}", strconv.Itoa(cfg.Height),
	)
	for i, a := range args {
		args[i] = r.Replace(a)
	}
	return &commandCamera{name: name, args: args}, nil
}

func (c *commandCamera) Name() string { return c.name }

// Capture runs the command and decodes its output.
func (c *commandCamera) Capture(ctx context.Context) (*Frame, error) {
	captureTotal.WithLabelValues(c.name).Inc()
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.args[0], c.args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		captureErrorsTotal.WithLabelValues(c.name).Inc()
		return nil, errors.Wrapf(err, "%s failed: %s", c.args[0], strings.TrimSpace(stderr.String()))
	}
	img, _, err := image.Decode(&stdout)
	if err != nil {
		captureErrorsTotal.WithLabelValues(c.name).Inc()
		return nil, errors.Wrapf(err, "failed to decode output of %s", c.args[0])
	}
	return &Frame{Image: img, Time: time.Now(), Source: c.name}, nil
}

func (c *commandCamera) Close() error { return nil }

// fileCamera serves a still image from disk.
type fileCamera struct {
	path string
}

// NewFileCamera creates a camera that reads the image at the given path
// on every capture.
func NewFileCamera(path string) Camera {
	return &fileCamera{path: path}
}

func (c *fileCamera) Name() string { return "file:" + c.path }

// Capture reads & decodes the file.
func (c *fileCamera) Capture(ctx context.Context) (*Frame, error) {
	captureTotal.WithLabelValues(c.Name()).Inc()
	f, err := os.Open(c.path)
	if err != nil {
		captureErrorsTotal.WithLabelValues(c.Name()).Inc()
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		captureErrorsTotal.WithLabelValues(c.Name()).Inc()
		return nil, errors.Wrapf(err, "failed to decode %s", c.path)
	}
	return &Frame{Image: img, Time: time.Now(), Source: c.Name()}, nil
}

func (c *fileCamera) Close() error { return nil }

type noCamera struct{}

func (noCamera) Name() string { return "none" }

func (noCamera) Capture(context.Context) (*Frame, error) {
	return nil, ErrNoCamera
}

func (noCamera) Close() error { return nil }
