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
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/smartbin/BinWorker/pkg/detection"
)

var (
	cmdClassify = &cobra.Command{
		Use:   "classify <image>",
		Short: "Classify the waste in an image file using the configured detector",
		Args:  cobra.ExactArgs(1),
		Run:   cmdClassifyRun,
	}
)

func init() {
	cmdMain.AddCommand(cmdClassify)
}

func cmdClassifyRun(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	log := newToolLogger(cfg)
	ctx, cancel := newCommandContext(log)
	defer cancel()

	detector, err := detection.New(cfg.Detector, log)
	if err != nil {
		Exitf("Failed to initialize detector: %v\n", err)
	}
	frame, err := detection.NewFileCamera(args[0]).Capture(ctx)
	if err != nil {
		Exitf("Failed to read image: %v\n", err)
	}
	if cfg.Camera.Preprocess {
		frame.Image = detection.Preprocess(frame.Image, cfg.Camera.Width, cfg.Camera.Height)
	}
	if detector.Name() == "heuristic" {
		f := detection.ExtractFeatures(frame)
		log.Debug().
			Float64("saturation", f.MeanSaturation).
			Float64("value", f.MeanValue).
			Float64("edge_density", f.EdgeDensity).
			Msg("Image features")
	}
	detections, summary, err := detection.Run(ctx, detector, frame)
	if err != nil {
		Exitf("Detection failed: %v\n", err)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("CLASS", "BIN", "CONFIDENCE")
	for _, d := range detections {
		t.Row(d.Class, d.Bin.String(), fmt.Sprintf("%.2f", d.Confidence))
	}
	fmt.Println(t)
	encoded, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		Exitf("Failed to encode summary: %v\n", err)
	}
	os.Stdout.Write(append(encoded, '\n'))
}
