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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/service/worker"
)

var (
	cmdServo = &cobra.Command{
		Use:   "servo <bin>",
		Short: "Open the door of a bin, wait and close all doors",
		Args:  cobra.ExactArgs(1),
		Run:   cmdServoRun,
	}
	servoOptions struct {
		delay time.Duration
	}
)

func init() {
	cmdMain.AddCommand(cmdServo)
	cmdServo.Flags().DurationVar(&servoOptions.delay, "delay", 0, "Time the door stays open (0 uses the configured drop delay)")
}

func cmdServoRun(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	log := newToolLogger(cfg)
	ctx, cancel := newCommandContext(log)
	defer cancel()

	bin, err := model.ParseBin(args[0])
	if err != nil {
		Exitf("Invalid bin: %v\n", err)
	}
	delay := servoOptions.delay
	if delay <= 0 {
		delay = cfg.Pipeline.DropDelay
	}

	br := newBridge(cfg, log)
	defer br.Close()
	hw := worker.NewHardware(log)
	if err := hw.BuildDoors(ctx, cfg, worker.Dependencies{Log: log, Bridge: br}); err != nil {
		Exitf("Failed to initialize doors: %v\n", err)
	}
	defer hw.Close(ctx)

	if err := hw.Doors.Drop(ctx, bin, delay); err != nil {
		Exitf("Door test failed: %v\n", err)
	}
	fmt.Printf("Opened %s bin for %s, doors closed\n", bin, delay)
}
