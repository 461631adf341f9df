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

package util

import (
	"sync"
	"time"
)

// SteppingClock is a deterministic Clock for simulations.
// Every call to Now advances the time by Step, Sleep advances
// the time by the given duration without blocking.
type SteppingClock struct {
	mutex sync.Mutex
	now   time.Time
	Step  time.Duration
}

// NewSteppingClock returns a clock starting at the given time.
func NewSteppingClock(start time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{now: start, Step: step}
}

// Now returns the current time, then advances it by Step.
func (c *SteppingClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	result := c.now
	c.now = c.now.Add(c.Step)
	return result
}

// Sleep advances the clock by d.
func (c *SteppingClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// Advance the clock by d.
func (c *SteppingClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}
