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

package service

import (
	"time"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/environment"
)

// Counters of the processing pipeline.
type Counters struct {
	// Triggers received
	Triggers int `json:"triggers"`
	// Triggers ignored while processing
	Ignored int `json:"ignored"`
	// Items processed (including frames without objects)
	Processed int `json:"processed"`
	// Processing runs without camera frame
	NoFrame int `json:"no_frame"`
	// Failed processing runs
	Errors int `json:"errors"`
}

// Status is the current state of the worker.
type Status struct {
	DeviceID      string                `json:"device_id"`
	Platform      string                `json:"platform"`
	StartedAt     time.Time             `json:"started_at"`
	Uptime        time.Duration         `json:"uptime_ns"`
	Running       bool                  `json:"running"`
	Processing    bool                  `json:"processing"`
	Camera        string                `json:"camera"`
	Detector      string                `json:"detector"`
	LastDetection *model.Summary        `json:"last_detection,omitempty"`
	BinLevels     model.BinLevels       `json:"bin_levels"`
	LevelsUpdated time.Time             `json:"levels_updated,omitempty"`
	FullBins      []model.Bin           `json:"full_bins"`
	FullThreshold float64               `json:"full_threshold"`
	DoorAngles    map[model.Bin]float64 `json:"door_angles"`
	Counters      Counters              `json:"counters"`
}

// Status returns the current state of the worker.
func (s *service) Status() Status {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	levels := make(model.BinLevels, len(s.lastLevels))
	for k, v := range s.lastLevels {
		levels[k] = v
	}
	var last *model.Summary
	if s.lastDetection != nil {
		x := *s.lastDetection
		last = &x
	}
	return Status{
		DeviceID:      s.cfg.DeviceID,
		Platform:      environment.Platform().String(),
		StartedAt:     s.startedAt,
		Uptime:        time.Since(s.startedAt),
		Running:       s.running.Load(),
		Processing:    s.processing.Load(),
		Camera:        s.Camera.Name(),
		Detector:      s.Detector.Name(),
		LastDetection: last,
		BinLevels:     levels,
		LevelsUpdated: s.levelsTime,
		FullBins:      append([]model.Bin{}, s.fullBins...),
		FullThreshold: s.cfg.Monitor.FullThreshold,
		DoorAngles:    s.Doors.Angles(),
		Counters:      s.counters,
	}
}
