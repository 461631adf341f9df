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
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	minRetryDelay = time.Millisecond * 10
	maxRetryDelay = time.Second * 5
)

// UntilCanceled continues to call the given callback
// until the given context is canceled.
// Failing callbacks are logged and retried with an increasing delay.
func UntilCanceled(ctx context.Context, log zerolog.Logger, description string, cb func(context.Context) error) error {
	delay := minRetryDelay
	for {
		if ctx.Err() != nil {
			// Context canceled
			return nil
		}
		if err := cb(ctx); err != nil {
			log.Warn().Err(err).Msgf("%s failed", description)
			delay = time.Duration(float64(delay) * 1.5)
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		} else {
			delay = minRetryDelay
		}
		if err := Sleep(ctx, delay); err != nil {
			log.Info().Msgf("Stopping %s; context canceled", description)
			return nil
		}
	}
}

// Sleep waits for the given duration or until the context is canceled.
// Returns the context error when canceled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
