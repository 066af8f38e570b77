// Copyright 2025 Tom Barlow
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

package host

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internallog "github.com/tombee/tether/internal/log"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
		return Message{}
	}
}

func TestBroadcasterDelivers(t *testing.T) {
	b := NewBroadcaster(internallog.Discard())
	a, cancelA := b.Subscribe()
	defer cancelA()
	c, cancelC := b.Subscribe()
	defer cancelC()

	b.Emit("worker-port-ready", uint16(5003))

	for _, ch := range []<-chan Message{a, c} {
		msg := receive(t, ch)
		assert.Equal(t, "worker-port-ready", msg.Event)
		assert.JSONEq(t, "5003", string(msg.Data))
	}
}

func TestBroadcasterReplaysLatest(t *testing.T) {
	b := NewBroadcaster(internallog.Discard())
	b.Emit("worker-port-ready", uint16(5000))
	b.Emit("other", "x")
	b.Emit("worker-port-ready", uint16(5004))

	ch, cancel := b.Subscribe()
	defer cancel()

	first := receive(t, ch)
	assert.Equal(t, "worker-port-ready", first.Event)
	assert.JSONEq(t, "5004", string(first.Data))

	second := receive(t, ch)
	assert.Equal(t, "other", second.Event)

	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %+v", msg)
	default:
	}
}

func TestBroadcasterCancelAndClose(t *testing.T) {
	b := NewBroadcaster(internallog.Discard())
	ch, cancel := b.Subscribe()
	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)

	other, otherCancel := b.Subscribe()
	b.Close()
	_, ok = <-other
	assert.False(t, ok)
	otherCancel()

	// Emit and Subscribe after Close are harmless.
	b.Emit("worker-port-ready", uint16(1))
	late, _ := b.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestBroadcasterSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(internallog.Discard())
	_, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			b.Emit("tick", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full subscriber")
	}
}

func TestBroadcasterBadPayload(t *testing.T) {
	b := NewBroadcaster(internallog.Discard())
	b.Emit("bad", make(chan int))

	ch, cancel := b.Subscribe()
	defer cancel()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %+v", msg)
	default:
	}
}
