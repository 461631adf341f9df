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
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/service/devices"
	"github.com/smartbin/BinWorker/pkg/service/worker"
)

var (
	cmdMeasure = &cobra.Command{
		Use:   "measure",
		Short: "Measure the fill level of the bins and diagnose the ultrasonic sensors",
		Run:   cmdMeasureRun,
	}
	measureOptions struct {
		bin     string
		samples int
	}
)

func init() {
	cmdMain.AddCommand(cmdMeasure)
	f := cmdMeasure.Flags()
	f.StringVar(&measureOptions.bin, "bin", "", "Measure only this bin")
	f.IntVar(&measureOptions.samples, "samples", 0, "Number of samples per measurement (0 uses the configured value)")
}

func cmdMeasureRun(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	log := newToolLogger(cfg)
	ctx, cancel := newCommandContext(log)
	defer cancel()

	var only model.Bin
	if measureOptions.bin != "" {
		b, err := model.ParseBin(measureOptions.bin)
		if err != nil {
			Exitf("Invalid bin: %v\n", err)
		}
		only = b
	}
	samples := measureOptions.samples
	if samples <= 0 {
		samples = cfg.Ultrasonic.Samples
	}

	br := newBridge(cfg, log)
	defer br.Close()
	deps := worker.Dependencies{Log: log, Bridge: br}
	hw := worker.NewHardware(log)
	if err := hw.BuildSensors(cfg, deps); err != nil {
		Exitf("Failed to initialize sensors: %v\n", err)
	}
	defer hw.Close(ctx)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("BIN", "TRIG", "ECHO", "DISTANCE", "FILL", "DIAGNOSIS")
	for _, b := range model.AllBins {
		s, found := hw.Sensors[b]
		if !found || (only != "" && b != only) {
			continue
		}
		sc := s.Config()
		trig, echo := strconv.Itoa(int(sc.TriggerPin)), strconv.Itoa(int(sc.EchoPin))
		distance, err := s.MeasureDistance(ctx, samples)
		if err != nil {
			if nvm, ok := devices.AsNoValidMeasurement(err); ok {
				t.Row(b.String(), trig, echo, fmt.Sprintf("%.1fcm?", nvm.LastDistance), "-",
					fmt.Sprintf("%s: %s", nvm.Diagnosis.Cause(), nvm.Diagnosis.Remediation()))
			} else {
				t.Row(b.String(), trig, echo, "-", "-", err.Error())
			}
			continue
		}
		fill := devices.FillPercent(sc.Depth, distance)
		diagnosis := "ok"
		if fill >= cfg.Monitor.FullThreshold {
			diagnosis = "full"
		}
		t.Row(b.String(), trig, echo, fmt.Sprintf("%.1fcm", distance), fmt.Sprintf("%.0f%%", fill), diagnosis)
	}
	fmt.Println(t)
}
