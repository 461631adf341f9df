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
	"time"

	"github.com/smartbin/BinWorker/model"
)

// Summarize aggregates the given detections into a routing decision.
// The best detection (highest confidence) selects the destination.
// When its confidence is below the given threshold, the item goes to the
// dry bin.
func Summarize(detections []model.Detection, threshold float64, now time.Time) model.Summary {
	result := model.Summary{
		Count:       len(detections),
		Objects:     make([]model.DetectedObject, 0, len(detections)),
		Destination: model.DestinationNone,
		Timestamp:   now,
	}
	if len(detections) == 0 {
		return result
	}
	best := detections[0]
	for _, d := range detections {
		result.Objects = append(result.Objects, model.DetectedObject{
			Class:      d.Class,
			Confidence: model.Round2(d.Confidence),
		})
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	result.Destination = best.Bin
	if best.Confidence < threshold || best.Bin.Validate() != nil {
		result.Destination = model.BinDry
	}
	result.Confidence = model.Round2(best.Confidence)
	return result
}

// summarizer implements Detector.Summary.
type summarizer struct {
	threshold float64
	now       func() time.Time
}

// Summary aggregates the given detections.
func (s summarizer) Summary(detections []model.Detection) model.Summary {
	result := Summarize(detections, s.threshold, s.now())
	if result.HasDestination() {
		detectionsTotal.WithLabelValues(result.Destination.String()).Inc()
	}
	return result
}
