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

package ui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/service"
)

type fakeWorker struct {
	mutex     sync.Mutex
	status    service.Status
	events    []service.Event
	triggered int
}

func (w *fakeWorker) Status() service.Status {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.status
}

func (w *fakeWorker) Trigger(ctx context.Context) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.triggered++
	return nil
}

func (w *fakeWorker) Subscribe(cb func(service.Event)) func() { return func() {} }

func (w *fakeWorker) RecentEvents() []service.Event { return w.events }

func newTestRoot() (Root, *fakeWorker) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	w := &fakeWorker{
		status: service.Status{
			DeviceID:      "bin-7",
			Running:       true,
			StartedAt:     now.Add(-90 * time.Minute),
			BinLevels:     model.BinLevels{model.BinDry: 85, model.BinWet: 12},
			FullThreshold: 80,
		},
		events: []service.Event{
			{Time: now, Kind: service.EventStatus, Message: "System online"},
		},
	}
	r := newRoot(w, make(chan service.Event), 100, 40)
	r.now = func() time.Time { return now }
	return r, w
}

func update(t *testing.T, r Root, msg tea.Msg) (Root, tea.Cmd) {
	m, cmd := r.Update(msg)
	root, ok := m.(Root)
	if !ok {
		t.Fatalf("Expected Root model, got %T", m)
	}
	return root, cmd
}

func TestDashboardView(t *testing.T) {
	r, _ := newTestRoot()
	view := r.View()
	for _, expected := range []string{"bin-7", "up 1 hour", "dry", "85%", "12%", "n/a", "System online", "no detections yet"} {
		if !strings.Contains(view, expected) {
			t.Errorf("Expected view to contain '%s', got\n%s", expected, view)
		}
	}
}

func TestDashboardEvents(t *testing.T) {
	r, w := newTestRoot()
	w.status.LastDetection = &model.Summary{Count: 1, Destination: model.BinWet, Confidence: 0.65}
	r, cmd := update(t, r, eventMsg(service.Event{Time: time.Now(), Kind: service.EventAlert, Message: "dry bin is full"}))
	if cmd == nil {
		t.Error("Expected command to wait for next event")
	}
	view := r.View()
	if !strings.Contains(view, "dry bin is full") {
		t.Errorf("Expected event in view, got\n%s", view)
	}
	r, _ = update(t, r, eventMsg(service.Event{Time: time.Now(), Kind: service.EventDetection, Message: "Detected 1 object(s)"}))
	if view := r.View(); !strings.Contains(view, "last: wet (1 objects, 0.65)") {
		t.Errorf("Expected last detection in view, got\n%s", view)
	}
}

func TestDashboardKeys(t *testing.T) {
	r, w := newTestRoot()
	r, cmd := update(t, r, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	if cmd == nil {
		t.Fatal("Expected trigger command")
	}
	msg := cmd()
	if w.triggered != 1 {
		t.Errorf("Expected 1 trigger, got %d", w.triggered)
	}
	r, _ = update(t, r, msg)
	if !strings.Contains(r.View(), "Trigger completed") {
		t.Errorf("Expected trigger result in view, got\n%s", r.View())
	}

	_, cmd = update(t, r, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected quit message")
	}
}

func TestRenderBar(t *testing.T) {
	if bar := renderBar(50, 80); strings.Count(bar, "█") != barWidth/2 {
		t.Errorf("Expected half filled bar, got '%s'", bar)
	}
	if bar := renderBar(150, 80); strings.Count(bar, "█") != barWidth {
		t.Errorf("Expected full bar, got '%s'", bar)
	}
	if bar := renderBar(-5, 80); strings.Count(bar, "░") != barWidth {
		t.Errorf("Expected empty bar, got '%s'", bar)
	}
}
