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
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/model"
)

const (
	heuristicWidth  = 160
	heuristicHeight = 120

	cannyLow  = 80
	cannyHigh = 160
)

// Features are the image statistics the heuristic classifier works on.
type Features struct {
	// Mean HSV saturation (0..255)
	MeanSaturation float64
	// Mean HSV value (0..255)
	MeanValue float64
	// Standard deviation of HSV value
	StdDevValue float64
	// Fraction of pixels on a Canny edge (0..1)
	EdgeDensity float64
}

// Classify maps the features onto a bin & confidence.
func (f Features) Classify() (model.Bin, float64) {
	switch {
	case f.EdgeDensity > 0.12 && f.MeanValue > 80 && f.MeanValue < 200:
		return model.BinElectronic, 0.70
	case f.MeanSaturation > 80 && f.MeanValue > 90:
		return model.BinWet, 0.65
	default:
		return model.BinDry, 0.60
	}
}

// ExtractFeatures computes the features of the given frame after scaling
// it down to 160x120.
func ExtractFeatures(frame *Frame) Features {
	img := Resize(frame.Image, heuristicWidth, heuristicHeight)
	n := heuristicWidth * heuristicHeight
	gray := make([]uint8, n)
	var sumS, sumV, sumV2 float64
	for y := 0; y < heuristicHeight; y++ {
		for x := 0; x < heuristicWidth; x++ {
			o := img.PixOffset(x, y)
			r, g, b := img.Pix[o], img.Pix[o+1], img.Pix[o+2]
			v := max(r, g, b)
			mn := min(r, g, b)
			var s float64
			if v > 0 {
				s = math.Round(float64(v-mn) * 255 / float64(v))
			}
			sumS += s
			sumV += float64(v)
			sumV2 += float64(v) * float64(v)
			gray[y*heuristicWidth+x] = uint8(math.Round(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)))
		}
	}
	meanV := sumV / float64(n)
	edges := canny(gray, heuristicWidth, heuristicHeight, cannyLow, cannyHigh)
	edgeCount := 0
	for _, e := range edges {
		if e {
			edgeCount++
		}
	}
	return Features{
		MeanSaturation: sumS / float64(n),
		MeanValue:      meanV,
		StdDevValue:    math.Sqrt(math.Max(0, sumV2/float64(n)-meanV*meanV)),
		EdgeDensity:    float64(edgeCount) / float64(n),
	}
}

type heuristicDetector struct {
	summarizer
	log zerolog.Logger
}

// NewHeuristicDetector creates a detector that classifies a frame from
// color & edge statistics. It always yields a single whole-frame detection.
func NewHeuristicDetector(threshold float64, log zerolog.Logger) Detector {
	return &heuristicDetector{
		summarizer: summarizer{threshold: threshold, now: time.Now},
		log:        log,
	}
}

func (d *heuristicDetector) Name() string { return "heuristic" }

// Detect classifies the given frame.
func (d *heuristicDetector) Detect(ctx context.Context, frame *Frame) ([]model.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := ExtractFeatures(frame)
	bin, confidence := f.Classify()
	d.log.Debug().
		Float64("saturation", f.MeanSaturation).
		Float64("value", f.MeanValue).
		Float64("value_stddev", f.StdDevValue).
		Float64("edge_density", f.EdgeDensity).
		Str("bin", bin.String()).
		Msg("Heuristic classification")
	w, h := frame.Size()
	return []model.Detection{{
		Class:      bin.String(),
		Bin:        bin,
		Confidence: confidence,
		BBox:       []int{0, 0, w, h},
	}}, nil
}

// canny returns the edge map of the given grayscale image.
// Gradients use 3x3 Sobel kernels with replicated borders and L1 magnitude.
func canny(gray []uint8, w, h int, low, high int) []bool {
	px := func(x, y int) int {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return int(gray[y*w+x])
	}
	mag := make([]int, w*h)
	gxs := make([]int, w*h)
	gys := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := (px(x+1, y-1) + 2*px(x+1, y) + px(x+1, y+1)) -
				(px(x-1, y-1) + 2*px(x-1, y) + px(x-1, y+1))
			gy := (px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1)) -
				(px(x-1, y-1) + 2*px(x, y-1) + px(x+1, y-1))
			i := y*w + x
			gxs[i], gys[i] = gx, gy
			mag[i] = abs(gx) + abs(gy)
		}
	}
	at := func(x, y int) int {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	// Non-maximum suppression
	const tan22_5 = 0.41421356
	const tan67_5 = 2.41421356
	strong := make([]bool, w*h)
	weak := make([]bool, w*h)
	var stack []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			ax, ay := float64(abs(gxs[i])), float64(abs(gys[i]))
			var a, b int
			switch {
			case ay <= ax*tan22_5:
				a, b = at(x-1, y), at(x+1, y)
			case ay >= ax*tan67_5:
				a, b = at(x, y-1), at(x, y+1)
			case (gxs[i] < 0) == (gys[i] < 0):
				a, b = at(x-1, y-1), at(x+1, y+1)
			default:
				a, b = at(x+1, y-1), at(x-1, y+1)
			}
			if m > a && m >= b {
				if m > high {
					strong[i] = true
					stack = append(stack, i)
				} else {
					weak[i] = true
				}
			}
		}
	}

	// Hysteresis: promote weak pixels connected to strong ones
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if weak[j] && !strong[j] {
					strong[j] = true
					stack = append(stack, j)
				}
			}
		}
	}
	return strong
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
