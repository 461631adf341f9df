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
	"sync"
	"time"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/service/devices"
	"github.com/smartbin/BinWorker/pkg/service/util"
)

const (
	positionOpen   = "open"
	positionClosed = "closed"
)

// DoorController operates the doors of all bins, one servo per bin.
// Only one door operation runs at a time.
type DoorController struct {
	log         zerolog.Logger
	servos      map[model.Bin]devices.Servo
	openAngle   float64
	closedAngle float64
	sem         *semaphore.Weighted
	mutex       sync.Mutex
	angles      map[model.Bin]float64
}

// NewDoorController creates a controller for the given servos.
func NewDoorController(servos map[model.Bin]devices.Servo, openAngle, closedAngle float64, log zerolog.Logger) *DoorController {
	return &DoorController{
		log:         log,
		servos:      servos,
		openAngle:   openAngle,
		closedAngle: closedAngle,
		sem:         semaphore.NewWeighted(1),
		angles:      make(map[model.Bin]float64),
	}
}

// RotateToBin opens the door of the given bin and closes all other doors.
func (d *DoorController) RotateToBin(ctx context.Context, bin model.Bin) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.sem.Release(1)
	return d.rotateToBin(ctx, bin)
}

// Reset closes all doors.
func (d *DoorController) Reset(ctx context.Context) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.sem.Release(1)
	return d.reset(ctx)
}

// Drop opens the door of the given bin, waits for the item to drop
// and closes all doors again.
// The doors are closed even when the wait is canceled.
func (d *DoorController) Drop(ctx context.Context, bin model.Bin, dropDelay time.Duration) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.sem.Release(1)

	if err := d.rotateToBin(ctx, bin); err != nil {
		if model.IsUnknownBin(err) {
			return err
		}
		if rerr := d.reset(context.WithoutCancel(ctx)); rerr != nil {
			d.log.Warn().Err(rerr).Str("bin", bin.String()).Msg("Failed to close doors after failed rotate")
		}
		return err
	}
	util.Sleep(ctx, dropDelay)
	return d.reset(context.WithoutCancel(ctx))
}

// Angles returns the last commanded angle of every door.
func (d *DoorController) Angles() map[model.Bin]float64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	result := make(map[model.Bin]float64, len(d.angles))
	for k, v := range d.angles {
		result[k] = v
	}
	return result
}

// Close closes all doors and releases the servos.
func (d *DoorController) Close(ctx context.Context) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.sem.Release(1)

	var ae aerr.AggregateError
	if err := d.reset(ctx); err != nil {
		ae.Add(err)
	}
	for _, b := range model.AllBins {
		if s, found := d.servos[b]; found {
			if err := s.Close(ctx); err != nil {
				ae.Add(errors.Wrapf(err, "close servo of bin '%s'", b))
			}
		}
	}
	return ae.AsError()
}

func (d *DoorController) rotateToBin(ctx context.Context, bin model.Bin) error {
	if err := bin.Validate(); err != nil {
		return err
	}
	target, found := d.servos[bin]
	if !found {
		return errors.Wrapf(model.UnknownBinError, "no door for bin '%s'", bin)
	}
	angles := d.Angles()
	for _, b := range model.AllBins {
		if b == bin {
			continue
		}
		s, found := d.servos[b]
		if !found {
			continue
		}
		// Doors with unknown state are closed as well.
		if angle, known := angles[b]; !known || angle != d.closedAngle {
			if err := d.move(ctx, b, s, d.closedAngle, positionClosed); err != nil {
				return err
			}
		}
	}
	d.log.Info().Str("bin", bin.String()).Msg("Opening door")
	return d.move(ctx, bin, target, d.openAngle, positionOpen)
}

func (d *DoorController) reset(ctx context.Context) error {
	var ae aerr.AggregateError
	for _, b := range model.AllBins {
		if s, found := d.servos[b]; found {
			if err := d.move(ctx, b, s, d.closedAngle, positionClosed); err != nil {
				ae.Add(err)
			}
		}
	}
	d.log.Debug().Msg("All doors closed")
	return ae.AsError()
}

func (d *DoorController) move(ctx context.Context, bin model.Bin, s devices.Servo, angle float64, position string) error {
	if err := s.SetAngle(ctx, angle); err != nil {
		return errors.Wrapf(err, "move door of bin '%s' to %s", bin, position)
	}
	if err := s.Release(ctx); err != nil {
		d.log.Debug().Err(err).Str("bin", bin.String()).Msg("Release servo failed")
	}
	d.mutex.Lock()
	d.angles[bin] = angle
	d.mutex.Unlock()
	doorMovesTotal.WithLabelValues(bin.String(), position).Inc()
	doorAngleGauge.WithLabelValues(bin.String()).Set(angle)
	return nil
}
