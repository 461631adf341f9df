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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/config"
)

const (
	jpegQuality      = 90
	maxResponseBytes = 1 << 20
)

// remoteDetection is a single entry in the response of the inference
// endpoint.
type remoteDetection struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

// remoteResponse is the wrapped form of the inference endpoint response.
type remoteResponse struct {
	Detections []remoteDetection `json:"detections"`
}

type remoteDetector struct {
	summarizer
	log      zerolog.Logger
	url      string
	classMap map[string]string
	client   *http.Client
}

// NewRemoteDetector creates a detector that posts JPEG encoded frames to an
// HTTP inference endpoint.
// The endpoint responds with a JSON list of {class, confidence, bbox}
// objects, or an object with such a list in its "detections" field.
func NewRemoteDetector(cfg config.DetectorConfig, log zerolog.Logger) (Detector, error) {
	if cfg.RemoteURL == "" {
		return nil, errors.Wrap(model.ValidationError, "remote detector requires an URL")
	}
	timeout := cfg.RemoteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &remoteDetector{
		summarizer: summarizer{threshold: cfg.ConfidenceThreshold, now: time.Now},
		log:        log,
		url:        cfg.RemoteURL,
		classMap:   cfg.ClassMap,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (d *remoteDetector) Name() string { return "remote" }

// Detect posts the frame to the inference endpoint.
func (d *remoteDetector) Detect(ctx context.Context, frame *Frame) ([]model.Detection, error) {
	var body bytes.Buffer
	if err := jpeg.Encode(&body, frame.Image, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, errors.Wrap(err, "failed to encode frame")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, &body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "inference request to %s failed", d.url)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read inference response")
	}
	if resp.StatusCode/100 != 2 {
		return nil, errors.WithStack(fmt.Errorf("inference endpoint returned %s: %s", resp.Status, bytes.TrimSpace(raw)))
	}
	list, err := parseRemoteResponse(raw)
	if err != nil {
		return nil, err
	}
	result := make([]model.Detection, 0, len(list))
	for _, rd := range list {
		result = append(result, model.Detection{
			Class:      rd.Class,
			Bin:        MapClass(rd.Class, d.classMap),
			Confidence: rd.Confidence,
			BBox:       pixelBox(rd.BBox),
		})
	}
	d.log.Debug().Int("count", len(result)).Msg("Remote classification")
	return result, nil
}

// pixelBox rounds a bounding box to whole pixels.
func pixelBox(box []float64) []int {
	if box == nil {
		return nil
	}
	result := make([]int, len(box))
	for i, v := range box {
		result[i] = int(math.Round(v))
	}
	return result
}

// parseRemoteResponse decodes a bare list or a wrapped response.
func parseRemoteResponse(raw []byte) ([]remoteDetection, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []remoteDetection
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, errors.Wrap(err, "invalid inference response")
		}
		return list, nil
	}
	var wrapped remoteResponse
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, errors.Wrap(err, "invalid inference response")
	}
	return wrapped.Detections, nil
}
