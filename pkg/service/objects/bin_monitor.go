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
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/service/devices"
	"github.com/smartbin/BinWorker/pkg/service/util"
)

// LevelSensor measures the fill level of a single bin.
type LevelSensor interface {
	// FillLevel measures the fill level in percent (0-100).
	FillLevel(ctx context.Context, samples int) (float64, error)
}

// LevelSink receives the results of the bin monitor.
type LevelSink interface {
	// BinLevels is called with the levels of all bins after every round.
	BinLevels(ctx context.Context, levels model.BinLevels)
	// BinFull is called for every bin at or above the full threshold.
	BinFull(ctx context.Context, bin model.Bin, level float64)
}

// BinMonitor monitors the fill level of multiple bins.
type BinMonitor struct {
	log     zerolog.Logger
	sensors map[model.Bin]LevelSensor
	samples int

	mutex      sync.Mutex
	lastLevels model.BinLevels
	lastTime   time.Time
}

// NewBinMonitor creates a monitor for the given sensors.
func NewBinMonitor(sensors map[model.Bin]LevelSensor, samples int, log zerolog.Logger) *BinMonitor {
	return &BinMonitor{
		log:     log,
		sensors: sensors,
		samples: samples,
	}
}

// Bins returns the monitored bins in physical order.
func (m *BinMonitor) Bins() []model.Bin {
	var result []model.Bin
	for _, b := range model.AllBins {
		if _, found := m.sensors[b]; found {
			result = append(result, b)
		}
	}
	return result
}

// FillLevels measures the fill level of all bins.
// A sensor without valid measurement reports 0%.
func (m *BinMonitor) FillLevels(ctx context.Context) (model.BinLevels, error) {
	levels := make(model.BinLevels, len(m.sensors))
	for _, b := range m.Bins() {
		level, err := m.sensors[b].FillLevel(ctx, m.samples)
		if err != nil {
			nvm, ok := devices.AsNoValidMeasurement(err)
			if !ok {
				return nil, err
			}
			binSensorInvalidTotal.WithLabelValues(b.String()).Inc()
			m.log.Warn().
				Str("bin", b.String()).
				Str("diagnosis", string(nvm.Diagnosis)).
				Str("remediation", nvm.Diagnosis.Remediation()).
				Msg(nvm.Error())
			level = 0
		}
		levels[b] = model.Round2(level)
		binFillLevelGauge.WithLabelValues(b.String()).Set(level)
	}

	m.mutex.Lock()
	m.lastLevels = levels
	m.lastTime = time.Now()
	m.mutex.Unlock()
	return levels, nil
}

// LastLevels returns the result of the last FillLevels call.
func (m *BinMonitor) LastLevels() (model.BinLevels, time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	result := make(model.BinLevels, len(m.lastLevels))
	for k, v := range m.lastLevels {
		result[k] = v
	}
	return result, m.lastTime
}

// FullBins returns the bins with a level at or above the given threshold,
// sorted by name.
func FullBins(levels model.BinLevels, threshold float64) []model.Bin {
	var result []model.Bin
	for b, level := range levels {
		if level >= threshold {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Run measures all bins with the given interval until the context is canceled.
// Levels and full bins are reported to the given sink.
// On failure the monitor waits errorBackoff before the next round.
func (m *BinMonitor) Run(ctx context.Context, interval, errorBackoff time.Duration, threshold float64, sink LevelSink) error {
	defer m.log.Debug().Msg("BinMonitor.Run terminated")
	for {
		delay := interval
		levels, err := m.FillLevels(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			binMonitorErrorsTotal.Inc()
			m.log.Error().Err(err).Msg("Bin monitoring error")
			delay = errorBackoff
		} else {
			sink.BinLevels(ctx, levels)
			full := FullBins(levels, threshold)
			for _, b := range m.Bins() {
				binFullGauge.WithLabelValues(b.String()).Set(0)
			}
			for _, b := range full {
				binFullGauge.WithLabelValues(b.String()).Set(1)
				m.log.Warn().Str("bin", b.String()).Float64("level", levels[b]).Msg("Bin is full")
				sink.BinFull(ctx, b, levels[b])
			}
		}
		if err := util.Sleep(ctx, delay); err != nil {
			return nil
		}
	}
}
