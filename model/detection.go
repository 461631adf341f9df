package model

import (
	"math"
	"time"
)

// Detection is a single classified object in a camera frame.
type Detection struct {
	// Class of the detected object, as produced by the detector.
	Class string `json:"class"`
	// Bin the class maps to.
	Bin Bin `json:"bin"`
	// Confidence in range 0..1
	Confidence float64 `json:"confidence"`
	// Bounding box [x1,y1,x2,y2] in frame pixels, nil for whole-frame detections.
	BBox []int `json:"bbox"`
}

// DetectedObject is an entry in the objects list of a Summary.
type DetectedObject struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Summary aggregates the detections of a single frame into a routing decision.
type Summary struct {
	Count       int              `json:"count"`
	Objects     []DetectedObject `json:"objects"`
	Destination Bin              `json:"destination"`
	Confidence  float64          `json:"confidence,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// HasDestination returns true when the summary routes to a bin.
func (s Summary) HasDestination() bool {
	return s.Destination != DestinationNone && s.Destination != ""
}

// Round2 rounds the given value to 2 decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
