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

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/pkg/service"
)

const (
	eventBufferSize = 64
	defaultWidth    = 80
	defaultHeight   = 24
)

// Worker is the part of the service shown on the dashboard.
type Worker interface {
	Status() service.Status
	Trigger(ctx context.Context) error
	Subscribe(cb func(service.Event)) func()
	RecentEvents() []service.Event
}

// Dashboard serves the worker dashboard over SSH sessions.
type Dashboard struct {
	log    zerolog.Logger
	worker Worker
}

// New creates a dashboard for the given worker.
func New(log zerolog.Logger, worker Worker) *Dashboard {
	return &Dashboard{
		log:    log.With().Str("component", "ui").Logger(),
		worker: worker,
	}
}

// Handler creates a dashboard model for a new SSH session.
// The model receives worker events until the session ends.
func (d *Dashboard) Handler(s ssh.Session) (tea.Model, []tea.ProgramOption) {
	width, height := defaultWidth, defaultHeight
	if pty, _, ok := s.Pty(); ok {
		width, height = pty.Window.Width, pty.Window.Height
	}
	d.log.Info().Str("user", s.User()).Str("remote", s.RemoteAddr().String()).Msg("Dashboard session started")

	events := make(chan service.Event, eventBufferSize)
	unsubscribe := d.worker.Subscribe(func(e service.Event) {
		select {
		case events <- e:
		default:
			// Slow session, drop event
		}
	})
	go func() {
		<-s.Context().Done()
		unsubscribe()
		d.log.Info().Str("user", s.User()).Msg("Dashboard session ended")
	}()

	return newRoot(d.worker, events, width, height), []tea.ProgramOption{tea.WithAltScreen()}
}
