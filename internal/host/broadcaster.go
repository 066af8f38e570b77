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
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is one event delivered to subscribers.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// subscriberBuffer bounds how far a subscriber may fall behind before
// messages to it are dropped.
const subscriberBuffer = 16

// Broadcaster fans events out to every subscriber. The latest message
// of each event is replayed to new subscribers, so a client that
// connects after the port was announced still learns it.
type Broadcaster struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[chan Message]struct{}
	last   map[string]Message
	order  []string
	closed bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		logger: logger,
		subs:   make(map[chan Message]struct{}),
		last:   make(map[string]Message),
	}
}

// Emit implements supervisor.Emitter.
func (b *Broadcaster) Emit(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		b.logger.Error("failed to encode event", slog.String("event", event), slog.Any("error", err))
		return
	}
	msg := Message{Event: event, Data: raw}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	if _, seen := b.last[event]; !seen {
		b.order = append(b.order, event)
	}
	b.last[event] = msg

	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
			b.logger.Warn("dropping event for slow subscriber", slog.String("event", event))
		}
	}
}

// Subscribe registers a subscriber. The returned channel is closed by
// cancel or by Close.
func (b *Broadcaster) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	for _, event := range b.order {
		ch <- b.last[event]
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close ends every subscription. Later Emits are dropped.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
