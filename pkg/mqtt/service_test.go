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

package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(completed bool, err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if completed {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return false }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

func TestWaitToken(t *testing.T) {
	ctx := context.Background()
	if err := waitToken(ctx, newFakeToken(true, nil), time.Second); err != nil {
		t.Errorf("Expected success, got %v", err)
	}
	brokerErr := errors.New("not authorized")
	if err := waitToken(ctx, newFakeToken(true, brokerErr), time.Second); err != brokerErr {
		t.Errorf("Expected broker error, got %v", err)
	}
	if err := waitToken(ctx, newFakeToken(false, nil), 5*time.Millisecond); !errors.Is(err, PublishTimeoutError) {
		t.Errorf("Expected publish timeout, got %v", err)
	}
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := waitToken(cctx, newFakeToken(false, nil), 0); err != context.Canceled {
		t.Errorf("Expected context canceled, got %v", err)
	}
}

func TestSubscriptionNextMsg(t *testing.T) {
	sub := &subscription{
		service: &service{log: zerolog.Nop()},
		topic:   "smartbin/command",
		queue:   make(chan []byte, 2),
	}
	sub.queue <- []byte(`{"command":"open","bin":"wet"}`)
	sub.queue <- []byte(`not json`)

	var msg struct {
		Command string `json:"command"`
		Bin     string `json:"bin"`
	}
	ctx := context.Background()
	if err := sub.NextMsg(ctx, &msg); err != nil {
		t.Fatalf("NextMsg failed: %s", err)
	}
	if msg.Command != "open" || msg.Bin != "wet" {
		t.Errorf("Unexpected message %+v", msg)
	}
	if err := sub.NextMsg(ctx, &msg); err == nil {
		t.Error("Expected decode error")
	}

	tctx, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
	defer cancel()
	if err := sub.NextMsg(tctx, &msg); err != context.DeadlineExceeded {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}

	sub.closeQueue()
	sub.closeQueue()
	if err := sub.NextMsg(ctx, &msg); !errors.Is(err, SubscriptionClosedError) {
		t.Errorf("Expected subscription closed, got %v", err)
	}
}
