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
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/config"
	"github.com/smartbin/BinWorker/pkg/detection"
	"github.com/smartbin/BinWorker/pkg/mqtt"
	"github.com/smartbin/BinWorker/pkg/publish"
	"github.com/smartbin/BinWorker/pkg/service/bridge"
	"github.com/smartbin/BinWorker/pkg/service/objects"
	"github.com/smartbin/BinWorker/pkg/service/util"
)

var (
	// ErrBusy is returned when a trigger arrives while an item is being
	// processed.
	ErrBusy = errors.New("already processing")

	shutdownTimeout = 10 * time.Second
	pruneInterval   = time.Hour
	blinkDelay      = 100 * time.Millisecond
)

// Service is the smart bin worker.
type Service interface {
	// Run the worker until the given context is canceled, then shut down.
	Run(ctx context.Context) error
	// Trigger processing of an item at the intake.
	// Returns ErrBusy when an item is being processed.
	Trigger(ctx context.Context) error
	// Process captures, classifies & sorts a single item.
	Process(ctx context.Context) error
	// OpenBin opens the door of the given bin, waits for the drop delay
	// and closes all doors.
	OpenBin(ctx context.Context, bin model.Bin) error
	// Status returns the current state of the worker.
	Status() Status
	// FillLevels returns the last measured fill levels.
	FillLevels(ctx context.Context) (model.BinLevels, time.Time, error)
	// RecentDetections returns the last limit detections, newest first.
	RecentDetections(ctx context.Context, limit int) ([]model.Summary, error)
	// Subscribe to worker events. Call the returned function to unsubscribe.
	Subscribe(cb func(Event)) func()
	// RecentEvents returns the most recent events, oldest first.
	RecentEvents() []Event
}

// Doors opens & closes the bin doors.
type Doors interface {
	RotateToBin(ctx context.Context, bin model.Bin) error
	Reset(ctx context.Context) error
	Drop(ctx context.Context, bin model.Bin, dropDelay time.Duration) error
	Angles() map[model.Bin]float64
	Close(ctx context.Context) error
}

// Monitor measures the fill levels of the bins.
type Monitor interface {
	Bins() []model.Bin
	Run(ctx context.Context, interval, errorBackoff time.Duration, threshold float64, sink objects.LevelSink) error
}

// History records detections, levels & events.
type History interface {
	RecordDetection(ctx context.Context, summary model.Summary) error
	RecordBinLevels(ctx context.Context, levels model.BinLevels) error
	RecordEvent(ctx context.Context, kind, message string) error
	RecentDetections(ctx context.Context, limit int) ([]model.Summary, error)
	LatestBinLevels(ctx context.Context) (model.BinLevels, time.Time, error)
	RunPruner(ctx context.Context, retention, interval time.Duration) error
}

// Closer releases hardware resources.
type Closer interface {
	Close(ctx context.Context) error
}

// Dependencies of the service.
type Dependencies struct {
	Log       zerolog.Logger
	Bridge    bridge.API
	Monitor   Monitor
	Doors     Doors
	Presence  objects.PresenceSensor
	Camera    detection.Camera
	Detector  detection.Detector
	Publisher publish.Publisher
	// Optional
	History History
	// Optional subscription on the MQTT command topic
	Commands mqtt.Subscription
	// Optional; closed (doors first) during shutdown instead of Doors
	Hardware Closer
	// Optional; defaults to a new hub
	Events *EventHub
}

type service struct {
	Dependencies
	cfg config.Config
	log zerolog.Logger

	processing atomic.Bool
	running    atomic.Bool
	startedAt  time.Time

	mutex         sync.Mutex
	lastDetection *model.Summary
	lastLevels    model.BinLevels
	levelsTime    time.Time
	fullBins      []model.Bin
	counters      Counters
}

// NewService creates a Service instance and returns it.
func NewService(cfg config.Config, deps Dependencies) (Service, error) {
	if deps.Bridge == nil || deps.Doors == nil || deps.Camera == nil || deps.Detector == nil || deps.Publisher == nil {
		return nil, errors.Wrap(model.ValidationError, "missing service dependency")
	}
	if deps.Events == nil {
		deps.Events = NewEventHub()
	}
	return &service{
		Dependencies: deps,
		cfg:          cfg,
		log:          deps.Log.With().Str("component", "service").Logger(),
		startedAt:    time.Now(),
	}, nil
}

// Run the worker until the given context is canceled.
func (s *service) Run(ctx context.Context) error {
	log := s.log
	s.mutex.Lock()
	s.startedAt = time.Now()
	s.mutex.Unlock()
	s.running.Store(true)
	defer s.running.Store(false)

	if err := s.Bridge.BlinkGreenLED(blinkDelay); err != nil {
		log.Warn().Err(err).Msg("Failed to blink status LED")
	}
	if err := s.Doors.Reset(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to close doors")
	}
	log.Info().Str("device_id", s.cfg.DeviceID).Msg("System online")
	s.Publisher.PublishSystemStatus(ctx, publish.StatusReady, "System online")
	s.recordEvent(ctx, EventStatus, "System online")
	util.Sleep(ctx, s.cfg.Pipeline.ReadyBlink)
	s.setLED(s.Bridge.SetGreenLED, false)

	g, lctx := errgroup.WithContext(ctx)
	if s.Monitor != nil {
		g.Go(func() error {
			return s.Monitor.Run(lctx, s.cfg.Monitor.Interval, s.cfg.Monitor.ErrorBackoff, s.cfg.Monitor.FullThreshold, s)
		})
	}
	if s.Presence != nil {
		trigger := objects.NewTrigger(s.Presence, s.Trigger, s.log.With().Str("component", "trigger").Logger())
		g.Go(func() error {
			return util.UntilCanceled(lctx, log, "trigger loop", trigger.Run)
		})
	}
	if s.History != nil && s.cfg.History.Retention > 0 {
		g.Go(func() error {
			return s.History.RunPruner(lctx, s.cfg.History.Retention, pruneInterval)
		})
	}
	if s.Commands != nil {
		g.Go(func() error {
			defer s.Commands.Close()
			return util.UntilCanceled(lctx, log, "command loop", s.runCommands)
		})
	}
	err := g.Wait()
	s.shutdown()
	if err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "worker failed")
	}
	return nil
}

// shutdown closes all doors and releases the hardware.
func (s *service) shutdown() {
	log := s.log
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info().Msg("System shutting down")
	s.Publisher.PublishSystemStatus(ctx, publish.StatusShutdown, "System shutting down")
	s.recordEvent(ctx, EventStatus, "System shutting down")
	if s.Hardware != nil {
		if err := s.Hardware.Close(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to close hardware")
		}
	} else if err := s.Doors.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to close doors")
	}
	if err := s.Camera.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close camera")
	}
	s.setLED(s.Bridge.SetGreenLED, false)
	s.setLED(s.Bridge.SetRedLED, false)
	if err := s.Bridge.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close bridge")
	}
	log.Info().Msg("Shutdown complete")
}

// Trigger processing of an item at the intake.
func (s *service) Trigger(ctx context.Context) error {
	triggersTotal.Inc()
	s.addCounter(func(c *Counters) { c.Triggers++ })
	err := s.Process(ctx)
	if errors.Is(err, ErrBusy) {
		triggersIgnoredTotal.Inc()
		s.addCounter(func(c *Counters) { c.Ignored++ })
		s.log.Info().Msg("Already processing, ignoring trigger")
	}
	return err
}

// Process captures, classifies & sorts a single item.
func (s *service) Process(ctx context.Context) error {
	if !s.processing.CompareAndSwap(false, true) {
		return errors.WithStack(ErrBusy)
	}
	defer s.processing.Store(false)
	processingGauge.Set(1)
	defer processingGauge.Set(0)
	start := time.Now()
	defer func() {
		processDuration.Observe(time.Since(start).Seconds())
	}()

	log := s.log
	log.Info().Msg("Object detected, processing...")
	s.Events.Publish(Event{Kind: EventTrigger, Message: "Object detected"})
	s.setLED(s.Bridge.SetGreenLED, true)
	defer s.setLED(s.Bridge.SetGreenLED, false)

	frame, err := s.Camera.Capture(ctx)
	if err != nil {
		noFrameTotal.Inc()
		s.addCounter(func(c *Counters) { c.NoFrame++ })
		log.Error().Err(err).Msg("Failed to capture frame")
		s.Events.Publish(Event{Kind: EventError, Message: "Failed to capture frame"})
		return errors.Wrap(err, "failed to capture frame")
	}
	if s.cfg.Camera.Preprocess {
		frame.Image = detection.Preprocess(frame.Image, s.cfg.Camera.Width, s.cfg.Camera.Height)
	}

	detections, summary, err := detection.Run(ctx, s.Detector, frame)
	if err != nil {
		return s.fail(ctx, errors.Wrap(err, "detection failed"))
	}
	log.Info().
		Int("count", summary.Count).
		Str("destination", summary.Destination.String()).
		Float64("confidence", summary.Confidence).
		Int("detections", len(detections)).
		Msg("Detection summary")
	s.Publisher.PublishDetection(ctx, summary)
	if s.History != nil {
		if err := s.History.RecordDetection(ctx, summary); err != nil {
			historyErrorsTotal.Inc()
			log.Warn().Err(err).Msg("Failed to record detection")
		}
	}
	s.mutex.Lock()
	s.lastDetection = &summary
	s.mutex.Unlock()
	s.Events.Publish(Event{Kind: EventDetection, Message: fmt.Sprintf("Detected %d object(s), destination %s", summary.Count, summary.Destination), Summary: &summary})

	if !summary.HasDestination() {
		log.Info().Msg("No objects detected")
		processedTotal.WithLabelValues(model.DestinationNone.String()).Inc()
		s.addCounter(func(c *Counters) { c.Processed++ })
		return nil
	}
	if err := s.Doors.Drop(ctx, summary.Destination, s.cfg.Pipeline.DropDelay); err != nil {
		return s.fail(ctx, errors.Wrapf(err, "failed to sort item into %s bin", summary.Destination))
	}
	processedTotal.WithLabelValues(summary.Destination.String()).Inc()
	s.addCounter(func(c *Counters) { c.Processed++ })
	log.Info().Str("destination", summary.Destination.String()).Msg("Item sorted")
	return nil
}

// fail reports a processing error: error LED, error status & event.
func (s *service) fail(ctx context.Context, err error) error {
	processErrorsTotal.Inc()
	s.addCounter(func(c *Counters) { c.Errors++ })
	s.log.Error().Err(err).Msg("Error processing waste")
	if berr := s.Bridge.BlinkRedLED(blinkDelay); berr != nil {
		s.log.Warn().Err(berr).Msg("Failed to flash error LED")
	}
	s.Publisher.PublishSystemStatus(ctx, publish.StatusError, err.Error())
	s.recordEvent(ctx, EventError, err.Error())
	util.Sleep(ctx, s.cfg.Pipeline.ErrorLEDDuration)
	s.setLED(s.Bridge.SetRedLED, false)
	return err
}

func (s *service) setLED(set func(bool) error, on bool) {
	if err := set(on); err != nil {
		s.log.Warn().Err(err).Bool("on", on).Msg("Failed to set LED")
	}
}

// OpenBin opens the door of the given bin for the drop delay.
func (s *service) OpenBin(ctx context.Context, bin model.Bin) error {
	if err := bin.Validate(); err != nil {
		return err
	}
	s.log.Info().Str("bin", bin.String()).Msg("Opening bin door")
	s.Events.Publish(Event{Kind: EventDoor, Message: fmt.Sprintf("Opening %s bin door", bin)})
	if err := s.Doors.Drop(ctx, bin, s.cfg.Pipeline.DropDelay); err != nil {
		return errors.Wrapf(err, "failed to open %s bin", bin)
	}
	return nil
}

// BinLevels is called by the bin monitor after every round.
func (s *service) BinLevels(ctx context.Context, levels model.BinLevels) {
	s.mutex.Lock()
	s.lastLevels = levels
	s.levelsTime = time.Now()
	s.fullBins = objects.FullBins(levels, s.cfg.Monitor.FullThreshold)
	s.mutex.Unlock()

	s.Publisher.PublishBinStatus(ctx, levels)
	if s.History != nil {
		if err := s.History.RecordBinLevels(ctx, levels); err != nil {
			historyErrorsTotal.Inc()
			s.log.Warn().Err(err).Msg("Failed to record bin levels")
		}
	}
	s.Events.Publish(Event{Kind: EventLevels, Message: "Bin levels updated", Levels: levels})
}

// BinFull is called by the bin monitor for every full bin.
func (s *service) BinFull(ctx context.Context, bin model.Bin, level float64) {
	alertsTotal.WithLabelValues(bin.String()).Inc()
	msg := fmt.Sprintf("%s bin is full", bin)
	s.Publisher.PublishSystemStatus(ctx, publish.StatusAlert, msg)
	s.recordEvent(ctx, EventAlert, msg)
}

// recordEvent publishes an event on the hub and records it in the history.
func (s *service) recordEvent(ctx context.Context, kind EventKind, msg string) {
	s.Events.Publish(Event{Kind: kind, Message: msg})
	if s.History != nil {
		if err := s.History.RecordEvent(ctx, string(kind), msg); err != nil {
			historyErrorsTotal.Inc()
			s.log.Warn().Err(err).Msg("Failed to record event")
		}
	}
}

// runCommands handles messages on the MQTT command topic.
// A closed subscription parks the loop until the context is canceled.
func (s *service) runCommands(ctx context.Context) error {
	for {
		var msg publish.CommandMessage
		if err := s.Commands.NextMsg(ctx, &msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, mqtt.SubscriptionClosedError) {
				s.log.Warn().Msg("Command subscription closed")
				<-ctx.Done()
				return nil
			}
			s.log.Warn().Err(err).Msg("Invalid command message")
			continue
		}
		s.handleCommand(ctx, msg)
	}
}

func (s *service) handleCommand(ctx context.Context, msg publish.CommandMessage) {
	log := s.log.With().Str("command", msg.Command).Logger()
	var err error
	switch msg.Command {
	case "trigger":
		err = s.Trigger(ctx)
	case "open":
		err = s.OpenBin(ctx, model.Bin(msg.Bin))
	case "reset":
		err = s.Doors.Reset(ctx)
	default:
		log.Warn().Msg("Unknown command")
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("Command failed")
	}
}

// FillLevels returns the last measured fill levels, falling back to the
// history before the first measurement.
func (s *service) FillLevels(ctx context.Context) (model.BinLevels, time.Time, error) {
	s.mutex.Lock()
	levels, ts := s.lastLevels, s.levelsTime
	s.mutex.Unlock()
	if levels == nil && s.History != nil {
		return s.History.LatestBinLevels(ctx)
	}
	result := make(model.BinLevels, len(levels))
	for k, v := range levels {
		result[k] = v
	}
	return result, ts, nil
}

// RecentDetections returns the last limit detections, newest first.
func (s *service) RecentDetections(ctx context.Context, limit int) ([]model.Summary, error) {
	if s.History != nil {
		return s.History.RecentDetections(ctx, limit)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.lastDetection == nil || limit < 1 {
		return []model.Summary{}, nil
	}
	return []model.Summary{*s.lastDetection}, nil
}

// Subscribe to worker events.
func (s *service) Subscribe(cb func(Event)) func() {
	return s.Events.Subscribe(cb)
}

// RecentEvents returns the most recent events.
func (s *service) RecentEvents() []Event {
	return s.Events.Recent()
}

func (s *service) addCounter(f func(c *Counters)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	f(&s.counters)
}
