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

package service

import (
	"sync"
	"time"

	"github.com/mattn/go-pubsub"

	"github.com/smartbin/BinWorker/model"
)

// EventKind identifies the type of an Event.
type EventKind string

const (
	EventStatus    EventKind = "status"
	EventTrigger   EventKind = "trigger"
	EventDetection EventKind = "detection"
	EventLevels    EventKind = "levels"
	EventAlert     EventKind = "alert"
	EventError     EventKind = "error"
	EventDoor      EventKind = "door"
)

const (
	recentEventCount = 100
)

// Event is something that happened in the worker, shown on dashboards.
type Event struct {
	Time    time.Time       `json:"time"`
	Kind    EventKind       `json:"kind"`
	Message string          `json:"message"`
	Summary *model.Summary  `json:"summary,omitempty"`
	Levels  model.BinLevels `json:"levels,omitempty"`
}

// EventHub distributes events to subscribers and keeps the most recent ones.
type EventHub struct {
	ps     *pubsub.PubSub
	mutex  sync.Mutex
	recent []Event
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{
		ps: pubsub.New(),
	}
}

// Publish an event to all subscribers.
func (h *EventHub) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	h.mutex.Lock()
	h.recent = append(h.recent, e)
	if len(h.recent) > recentEventCount {
		h.recent = h.recent[len(h.recent)-recentEventCount:]
	}
	h.mutex.Unlock()
	h.ps.Pub(e)
}

// Subscribe calls the given callback for every published event until the
// returned function is called.
func (h *EventHub) Subscribe(cb func(Event)) func() {
	wcb := func(e Event) {
		cb(e)
	}
	h.ps.Sub(wcb)
	return func() {
		h.ps.Leave(wcb)
	}
}

// Recent returns the most recent events, oldest first.
func (h *EventHub) Recent() []Event {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return append([]Event(nil), h.recent...)
}
