//    Copyright 2026 SmartBin Authors
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smartbin/BinWorker/pkg/detection"
	"github.com/smartbin/BinWorker/pkg/history"
	"github.com/smartbin/BinWorker/pkg/logging"
	"github.com/smartbin/BinWorker/pkg/mqtt"
	"github.com/smartbin/BinWorker/pkg/publish"
	"github.com/smartbin/BinWorker/pkg/server"
	"github.com/smartbin/BinWorker/pkg/service"
	"github.com/smartbin/BinWorker/pkg/service/worker"
	"github.com/smartbin/BinWorker/pkg/ui"
)

var (
	cmdRun = &cobra.Command{
		Use:   "run",
		Short: "Run the smart bin worker",
		Run:   cmdRunRun,
	}
)

func init() {
	cmdMain.AddCommand(cmdRun)
}

func cmdRunRun(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	mqttLog := logging.NewMQTTWriter(cmd.Context())
	logger := logging.NewLogger(cfg.LogLevel, mqttLog)
	ctx, cancel := newCommandContext(logger)
	defer cancel()

	fmt.Printf("Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)

	br := newBridge(cfg, logger)
	hw, err := worker.Build(ctx, cfg, worker.Dependencies{
		Log:    logger,
		Bridge: br,
	})
	if err != nil {
		br.Close()
		Exitf("Failed to initialize hardware: %v\n", err)
	}

	camera, err := detection.OpenCamera(ctx, cfg.Camera, logger)
	if err != nil {
		Exitf("Failed to open camera: %v\n", err)
	}
	detector, err := detection.New(cfg.Detector, logger)
	if err != nil {
		Exitf("Failed to initialize detector: %v\n", err)
	}

	deps := service.Dependencies{
		Log:       logger,
		Bridge:    br,
		Monitor:   hw.Monitor,
		Doors:     hw.Doors,
		Presence:  hw.IR,
		Camera:    camera,
		Detector:  detector,
		Publisher: publish.NewNopPublisher(logger),
		Hardware:  hw,
	}

	if cfg.MQTT.Enabled {
		will, err := json.Marshal(publish.SystemStatusMessage{
			Status:  publish.StatusShutdown,
			Message: "Connection lost",
		})
		if err != nil {
			Exitf("Failed to encode MQTT will message: %v\n", err)
		}
		mqttSvc, err := mqtt.NewService(mqtt.Config{
			Host:           cfg.MQTT.Host,
			Port:           cfg.MQTT.Port,
			UserName:       cfg.MQTT.UserName,
			Password:       cfg.MQTT.Password,
			ClientID:       cfg.MQTT.ClientID,
			PublishTimeout: cfg.MQTT.PublishTimeout,
			WillTopic:      publish.Topic(cfg.MQTT.TopicPrefix, publish.TopicSystemStatus),
			WillPayload:    string(will),
		}, logger)
		if err != nil {
			Exitf("Failed to initialize MQTT: %v\n", err)
		}
		defer mqttSvc.Close()
		deps.Publisher = publish.NewMQTTPublisher(mqttSvc, cfg.DeviceID, cfg.MQTT.TopicPrefix, logger)
		if cfg.MQTT.ForwardLogs {
			mqttLog.SetDestination(publish.Topic(cfg.MQTT.TopicPrefix, publish.TopicLogs), cfg.DeviceID, mqttSvc)
			mqttLog.Enable(true)
		}
		commands, err := mqttSvc.Subscribe(ctx, publish.Topic(cfg.MQTT.TopicPrefix, publish.TopicCommand), mqtt.QosDefault)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to subscribe to command topic")
		} else {
			deps.Commands = commands
		}
	}

	if cfg.History.Enabled && cfg.History.Path != "" {
		store, err := history.Open(ctx, cfg.History.Path, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to open history, continuing without")
		} else {
			defer store.Close()
			deps.History = store
		}
	}

	svc, err := service.NewService(cfg, deps)
	if err != nil {
		Exitf("Failed to initialize Service: %v\n", err)
	}

	srv, err := server.New(server.Config{
		Host:       cfg.Server.Host,
		HTTPPort:   cfg.Server.HTTPPort,
		GRPCPort:   cfg.Server.GRPCPort,
		SSHPort:    cfg.Server.SSHPort,
		SSHHostKey: cfg.Server.SSHHostKey,
	}, logger, ui.New(logger, svc), svc)
	if err != nil {
		Exitf("Failed to initialize Server: %v\n", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx) })
	if err := g.Wait(); err != nil {
		Exitf("Service run failed: %v\n", err)
	}
	// Give the MQTT writer a moment to flush the last log lines
	if cfg.MQTT.Enabled && cfg.MQTT.ForwardLogs {
		time.Sleep(100 * time.Millisecond)
	}
}
