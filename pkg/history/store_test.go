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

package history

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/model"
)

func openTestStore(t *testing.T) *Store {
	s, err := Open(context.Background(), MemoryPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %s", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDetections(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, dest := range []model.Bin{model.BinDry, model.BinWet, model.DestinationNone} {
		summary := model.Summary{
			Count:       1,
			Objects:     []model.DetectedObject{{Class: dest.String(), Confidence: 0.5}},
			Destination: dest,
			Confidence:  0.5,
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		}
		if dest == model.DestinationNone {
			summary = model.Summary{Destination: dest, Timestamp: summary.Timestamp}
		}
		if err := s.RecordDetection(ctx, summary); err != nil {
			t.Fatalf("RecordDetection failed: %s", err)
		}
	}

	recent, err := s.RecentDetections(ctx, 2)
	if err != nil {
		t.Fatalf("RecentDetections failed: %s", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 detections, got %d", len(recent))
	}
	if recent[0].Destination != model.DestinationNone || recent[1].Destination != model.BinWet {
		t.Errorf("Unexpected order: %s, %s", recent[0].Destination, recent[1].Destination)
	}
	if len(recent[0].Objects) != 0 || recent[0].Objects == nil {
		t.Errorf("Expected empty objects, got %v", recent[0].Objects)
	}
	if len(recent[1].Objects) != 1 || recent[1].Objects[0].Class != "wet" {
		t.Errorf("Unexpected objects %v", recent[1].Objects)
	}
	if !recent[1].Timestamp.Equal(base.Add(time.Minute)) {
		t.Errorf("Unexpected timestamp %s", recent[1].Timestamp)
	}
}

func TestBinLevels(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	levels, _, err := s.LatestBinLevels(ctx)
	if err != nil {
		t.Fatalf("LatestBinLevels failed: %s", err)
	}
	if len(levels) != 0 {
		t.Errorf("Expected no levels, got %v", levels)
	}

	if err := s.RecordBinLevels(ctx, model.BinLevels{model.BinDry: 10, model.BinWet: 20}); err != nil {
		t.Fatalf("RecordBinLevels failed: %s", err)
	}
	if err := s.RecordBinLevels(ctx, model.BinLevels{model.BinDry: 15}); err != nil {
		t.Fatalf("RecordBinLevels failed: %s", err)
	}
	levels, latest, err := s.LatestBinLevels(ctx)
	if err != nil {
		t.Fatalf("LatestBinLevels failed: %s", err)
	}
	if levels[model.BinDry] != 15 || levels[model.BinWet] != 20 || len(levels) != 2 {
		t.Errorf("Unexpected levels %v", levels)
	}
	if latest.IsZero() {
		t.Error("Expected latest time")
	}
}

func TestEventsAndPrune(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now.Add(-48 * time.Hour) }
	if err := s.RecordEvent(ctx, "error", "old"); err != nil {
		t.Fatalf("RecordEvent failed: %s", err)
	}
	if err := s.RecordBinLevels(ctx, model.BinLevels{model.BinDry: 1}); err != nil {
		t.Fatalf("RecordBinLevels failed: %s", err)
	}
	s.now = func() time.Time { return now }
	if err := s.RecordEvent(ctx, "ready", "new"); err != nil {
		t.Fatalf("RecordEvent failed: %s", err)
	}

	n, err := s.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %s", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 pruned records, got %d", n)
	}
	events, err := s.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("RecentEvents failed: %s", err)
	}
	if len(events) != 1 || events[0].Kind != "ready" || events[0].Message != "new" {
		t.Errorf("Unexpected events %v", events)
	}
}
