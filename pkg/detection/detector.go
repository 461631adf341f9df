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
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/config"
)

// Detector classifies camera frames into waste categories.
type Detector interface {
	// Name of the detector
	Name() string
	// Detect returns the objects found in the given frame.
	Detect(ctx context.Context, frame *Frame) ([]model.Detection, error)
	// Summary aggregates the given detections into a routing decision.
	Summary(detections []model.Detection) model.Summary
}

// New creates the detector selected by the given configuration.
func New(cfg config.DetectorConfig, log zerolog.Logger) (Detector, error) {
	log = log.With().Str("component", "detector").Logger()
	switch cfg.Type {
	case config.DetectorHeuristic, "":
		return NewHeuristicDetector(cfg.ConfidenceThreshold, log), nil
	case config.DetectorRemote:
		return NewRemoteDetector(cfg, log)
	default:
		return nil, errors.Wrapf(model.ValidationError, "invalid detector type '%s'", cfg.Type)
	}
}

// Run runs the detector on the given frame, records
// metrics and returns the detections & summary.
func Run(ctx context.Context, d Detector, frame *Frame) ([]model.Detection, model.Summary, error) {
	start := time.Now()
	detections, err := d.Detect(ctx, frame)
	detectDuration.WithLabelValues(d.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		detectErrorsTotal.WithLabelValues(d.Name()).Inc()
		return nil, model.Summary{}, err
	}
	return detections, d.Summary(detections), nil
}

// MapClass maps a detector class onto a bin.
// Classes are looked up (case insensitive) in the given class map first;
// a class that names a bin maps to that bin; anything else is unknown.
func MapClass(class string, classMap map[string]string) model.Bin {
	key := strings.ToLower(strings.TrimSpace(class))
	for k, v := range classMap {
		if strings.ToLower(k) == key {
			if b, err := model.ParseBin(v); err == nil {
				return b
			}
		}
	}
	if b, err := model.ParseBin(key); err == nil {
		return b
	}
	return model.BinUnknown
}
