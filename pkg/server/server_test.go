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

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/service"
)

type fakeService struct {
	running    bool
	triggerErr error
	opened     []model.Bin
	limit      int
	levels     model.BinLevels
}

func (f *fakeService) Run(ctx context.Context) error     { return nil }
func (f *fakeService) Trigger(ctx context.Context) error { return f.triggerErr }
func (f *fakeService) Process(ctx context.Context) error { return nil }
func (f *fakeService) OpenBin(ctx context.Context, bin model.Bin) error {
	f.opened = append(f.opened, bin)
	return nil
}
func (f *fakeService) Status() service.Status {
	return service.Status{DeviceID: "bin-1", Running: f.running, FullThreshold: 80, FullBins: []model.Bin{model.BinDry}}
}
func (f *fakeService) FillLevels(ctx context.Context) (model.BinLevels, time.Time, error) {
	return f.levels, time.Now(), nil
}
func (f *fakeService) RecentDetections(ctx context.Context, limit int) ([]model.Summary, error) {
	f.limit = limit
	return []model.Summary{{Count: 1, Destination: model.BinWet, Confidence: 0.9}}, nil
}
func (f *fakeService) Subscribe(cb func(service.Event)) func() { return func() {} }
func (f *fakeService) RecentEvents() []service.Event {
	return []service.Event{{Kind: service.EventStatus, Message: "System online"}}
}

func newTestServer(t *testing.T, svc *fakeService) *Server {
	s, err := New(Config{}, zerolog.Nop(), nil, svc)
	if err != nil {
		t.Fatalf("New failed: %s", err)
	}
	return s
}

func do(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeService{})
	rec := do(s, http.MethodGet, "/health")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "OK" {
		t.Errorf("Unexpected health response %d '%s'", rec.Code, rec.Body.String())
	}
}

func TestPprof(t *testing.T) {
	s := newTestServer(t, &fakeService{})
	for _, path := range []string{"/debug/pprof/", "/debug/pprof/cmdline", "/debug/pprof/symbol", "/debug/pprof/heap"} {
		if rec := do(s, http.MethodGet, path); rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, &fakeService{running: true})
	rec := do(s, http.MethodGet, "/api/v1/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var st service.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("Failed to decode status: %s", err)
	}
	if st.DeviceID != "bin-1" || !st.Running {
		t.Errorf("Unexpected status %+v", st)
	}
}

func TestBins(t *testing.T) {
	s := newTestServer(t, &fakeService{levels: model.BinLevels{model.BinDry: 91.5}})
	rec := do(s, http.MethodGet, "/api/v1/bins")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp BinsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode bins: %s", err)
	}
	if resp.Bins[model.BinDry] != 91.5 || resp.FullThreshold != 80 || len(resp.FullBins) != 1 {
		t.Errorf("Unexpected bins %+v", resp)
	}

	// No measurements yet
	s = newTestServer(t, &fakeService{})
	rec = do(s, http.MethodGet, "/api/v1/bins")
	if !strings.Contains(rec.Body.String(), `"bins":{}`) {
		t.Errorf("Expected empty bins object, got %s", rec.Body.String())
	}
}

func TestDetections(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc)
	rec := do(s, http.MethodGet, "/api/v1/detections")
	if rec.Code != http.StatusOK || svc.limit != defaultDetectionLimit {
		t.Errorf("Unexpected response %d with limit %d", rec.Code, svc.limit)
	}
	var list []model.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Errorf("Unexpected detections %s (%v)", rec.Body.String(), err)
	}
	if rec := do(s, http.MethodGet, "/api/v1/detections?limit=5"); rec.Code != http.StatusOK || svc.limit != 5 {
		t.Errorf("Unexpected response %d with limit %d", rec.Code, svc.limit)
	}
	if rec := do(s, http.MethodGet, "/api/v1/detections?limit=100000"); rec.Code != http.StatusOK || svc.limit != maxDetectionLimit {
		t.Errorf("Unexpected response %d with limit %d", rec.Code, svc.limit)
	}
	if rec := do(s, http.MethodGet, "/api/v1/detections?limit=abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestTrigger(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc)
	if rec := do(s, http.MethodPost, "/api/v1/trigger"); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	svc.triggerErr = errors.WithStack(service.ErrBusy)
	if rec := do(s, http.MethodPost, "/api/v1/trigger"); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", rec.Code)
	}
	svc.triggerErr = errors.New("servo stuck")
	if rec := do(s, http.MethodPost, "/api/v1/trigger"); rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/api/v1/trigger"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestOpenBin(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc)
	if rec := do(s, http.MethodPost, "/api/v1/bins/wet/open"); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec := do(s, http.MethodPost, "/api/v1/bins/glass/open"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
	if len(svc.opened) != 1 || svc.opened[0] != model.BinWet {
		t.Errorf("Unexpected opened bins %v", svc.opened)
	}
}

func TestEvents(t *testing.T) {
	s := newTestServer(t, &fakeService{})
	rec := do(s, http.MethodGet, "/api/v1/events")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "System online") {
		t.Errorf("Unexpected events response %d %s", rec.Code, rec.Body.String())
	}
}

func TestGRPCHealth(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc)
	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{})
		if err != nil {
			t.Fatalf("Check failed: %s", err)
		}
		return resp.GetStatus()
	}
	s.updateHealth()
	if st := check(); st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Expected NOT_SERVING, got %s", st)
	}
	svc.running = true
	s.updateHealth()
	if st := check(); st != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING, got %s", st)
	}
}
