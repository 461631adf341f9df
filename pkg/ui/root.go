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
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/service"
)

const (
	barWidth    = 24
	maxLogLines = 200
	headerLines = 2
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	fullStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Root is the dashboard model.
type Root struct {
	worker  Worker
	events  <-chan service.Event
	width   int
	height  int
	loadAvg string
	now     func() time.Time

	status   service.Status
	lines    []string
	viewPort viewport.Model
	message  string
}

var _ tea.Model = Root{}

func newRoot(worker Worker, events <-chan service.Event, width, height int) Root {
	r := Root{
		worker: worker,
		events: events,
		width:  width,
		height: height,
		now:    time.Now,
		status: worker.Status(),
	}
	for _, e := range worker.RecentEvents() {
		r.lines = append(r.lines, formatEvent(e))
	}
	r.viewPort = viewport.New(width, r.logHeight())
	r.viewPort.SetContent(strings.Join(r.lines, "\n"))
	r.viewPort.GotoBottom()
	return r
}

// Init is the first function that will be called. It returns an optional
// initial command. To not perform an initial command return nil.
func (r Root) Init() tea.Cmd {
	return tea.Batch(
		doReloadCPULoadAvg(),
		doReloadStatus(r.worker),
		waitForEvent(r.events),
	)
}

// Update is called when a message is received. Use it to inspect messages
// and, in response, update the model and/or send a command.
func (r Root) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case loadAvgMsg:
		r.loadAvg = string(msg)
		return r, doReloadCPULoadAvg()
	case statusMsg:
		r.status = service.Status(msg)
		return r, doReloadStatus(r.worker)
	case eventMsg:
		r = r.appendLine(formatEvent(service.Event(msg)))
		if msg.Kind == service.EventLevels || msg.Kind == service.EventDetection {
			r.status = r.worker.Status()
		}
		return r, waitForEvent(r.events)
	case triggerResultMsg:
		if msg.err != nil {
			r.message = errStyle.Render("Trigger failed: " + msg.err.Error())
		} else {
			r.message = "Trigger completed"
		}
		return r, nil
	case tea.WindowSizeMsg:
		r.height = msg.Height
		r.width = msg.Width
		r.viewPort.Width = msg.Width
		r.viewPort.Height = r.logHeight()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return r, tea.Quit
		case "t":
			r.message = "Triggering..."
			return r, doTrigger(r.worker)
		}
	}

	// Handle keyboard and mouse events in the viewport
	var cmd tea.Cmd
	r.viewPort, cmd = r.viewPort.Update(msg)
	cmds = append(cmds, cmd)

	return r, tea.Batch(cmds...)
}

// View renders the dashboard.
func (r Root) View() string {
	parts := []string{
		r.headerView(),
		boxStyle.Render(r.binsView()),
		r.detectionView(),
		r.viewPort.View(),
		dimStyle.Render("t - Trigger   q - Disconnect") + "  " + r.message,
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (r Root) headerView() string {
	st := r.status
	uptime := "stopped"
	if st.Running {
		uptime = "up " + strings.TrimSpace(humanize.RelTime(st.StartedAt, r.now(), "", ""))
	}
	title := titleStyle.Render("SmartBin " + st.DeviceID)
	info := dimStyle.Render(fmt.Sprintf("  %s  %s  load %s", st.Platform, uptime, r.loadAvg))
	return lipgloss.JoinHorizontal(lipgloss.Top, title, info)
}

func (r Root) binsView() string {
	st := r.status
	lines := make([]string, 0, len(model.AllBins))
	for _, bin := range model.AllBins {
		level, found := st.BinLevels[bin]
		if !found {
			lines = append(lines, fmt.Sprintf("%-11s %s", bin, dimStyle.Render("n/a")))
			continue
		}
		lines = append(lines, fmt.Sprintf("%-11s %s %3.0f%%", bin, renderBar(level, st.FullThreshold), level))
	}
	return strings.Join(lines, "\n")
}

func (r Root) detectionView() string {
	st := r.status
	counters := fmt.Sprintf("triggers %d  processed %d  ignored %d  errors %d",
		st.Counters.Triggers, st.Counters.Processed, st.Counters.Ignored, st.Counters.Errors)
	last := "no detections yet"
	if d := st.LastDetection; d != nil {
		last = fmt.Sprintf("last: %s (%d objects, %.2f) %s", d.Destination, d.Count, d.Confidence, humanize.Time(d.Timestamp))
	}
	return last + "\n" + dimStyle.Render(counters)
}

func (r Root) logHeight() int {
	// Header, 4 bins in a box, detection & footer
	h := r.height - (headerLines + len(model.AllBins) + 2 + 2 + 1)
	if h < 3 {
		return 3
	}
	return h
}

func (r Root) appendLine(line string) Root {
	r.lines = append(r.lines, line)
	if len(r.lines) > maxLogLines {
		r.lines = r.lines[len(r.lines)-maxLogLines:]
	}
	r.viewPort.SetContent(strings.Join(r.lines, "\n"))
	r.viewPort.GotoBottom()
	return r
}

// renderBar renders a fill level bar, red at or above the threshold.
func renderBar(level, threshold float64) string {
	n := int(level / 100 * barWidth)
	if n < 0 {
		n = 0
	} else if n > barWidth {
		n = barWidth
	}
	bar := strings.Repeat("█", n) + strings.Repeat("░", barWidth-n)
	if threshold > 0 && level >= threshold {
		return fullStyle.Render(bar)
	}
	return barStyle.Render(bar)
}

func formatEvent(e service.Event) string {
	line := fmt.Sprintf("%s %-9s %s", e.Time.Local().Format("15:04:05"), e.Kind, e.Message)
	switch e.Kind {
	case service.EventError, service.EventAlert:
		return errStyle.Render(line)
	}
	return line
}

type loadAvgMsg string

func doReloadCPULoadAvg() tea.Cmd {
	return tea.Tick(time.Second*2, func(t time.Time) tea.Msg {
		content, err := os.ReadFile("/proc/loadavg")
		if err != nil {
			return loadAvgMsg("n/a")
		}
		fields := strings.Fields(string(content))
		if len(fields) > 3 {
			fields = fields[:3]
		}
		return loadAvgMsg(strings.Join(fields, " "))
	})
}

type statusMsg service.Status

func doReloadStatus(worker Worker) tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return statusMsg(worker.Status())
	})
}

type eventMsg service.Event

func waitForEvent(events <-chan service.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}

type triggerResultMsg struct {
	err error
}

func doTrigger(worker Worker) tea.Cmd {
	return func() tea.Msg {
		return triggerResultMsg{err: worker.Trigger(context.Background())}
	}
}
