/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package extevent captures timestamped hardware edges on up to four channels.

Events are pushed from edge handlers into a fixed capacity queue and drained by
consumers with Fetch. When the queue is full the oldest queued event is dropped
and counted, so the producer never blocks.
*/
package extevent

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tickclock/tickclock/timebase"
)

// Infinite makes Fetch wait until an event arrives
const Infinite time.Duration = -1

// DefaultCapacity is the queue size used when none is given
const DefaultCapacity = 16

// Capture is a bounded queue of external events
type Capture struct {
	enabled atomic.Uint32
	dropped atomic.Uint64

	mu     sync.Mutex
	buf    []Event
	head   int
	count  int
	nextID uint32

	ready chan struct{}
}

// NewCapture creates a queue holding up to capacity events, with all channels disabled
func NewCapture(capacity int) *Capture {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Capture{
		buf:   make([]Event, capacity),
		ready: make(chan struct{}, 1),
	}
}

// SetChannels sets enabled channels. Queued events of disabled channels are kept.
func (c *Capture) SetChannels(ch Channels) {
	c.enabled.Store(uint32(ch & AllChannels))
}

// Channels returns enabled channels
func (c *Capture) Channels() Channels {
	return Channels(c.enabled.Load())
}

// Enabled reports whether events on ch are captured
func (c *Capture) Enabled(ch Channels) bool {
	return ch.Single() && c.Channels().Has(ch)
}

// Push queues an event stamped with utc. It never blocks or allocates.
// It returns false if ch is not a single enabled channel.
func (c *Capture) Push(ch Channels, utc timebase.UtcTime) bool {
	if !c.Enabled(ch) {
		return false
	}
	c.mu.Lock()
	if c.count == len(c.buf) {
		c.head = (c.head + 1) % len(c.buf)
		c.count--
		c.dropped.Add(1)
	}
	c.buf[(c.head+c.count)%len(c.buf)] = Event{UTC: utc, Channel: ch, ID: c.nextID}
	c.nextID++
	c.count++
	c.mu.Unlock()
	c.signal()
	return true
}

func (c *Capture) signal() {
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

func (c *Capture) pop() (Event, bool) {
	c.mu.Lock()
	if c.count == 0 {
		c.mu.Unlock()
		return Event{}, false
	}
	ev := c.buf[c.head]
	c.head = (c.head + 1) % len(c.buf)
	c.count--
	more := c.count > 0
	c.mu.Unlock()
	// pass the wakeup on to the next consumer
	if more {
		c.signal()
	}
	return ev, true
}

// Fetch returns the oldest queued event, waiting up to timeout for one to arrive.
// Zero timeout polls, Infinite waits forever.
func (c *Capture) Fetch(timeout time.Duration) (Event, bool) {
	if ev, ok := c.pop(); ok {
		return ev, true
	}
	if timeout == 0 {
		return Event{}, false
	}
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	for {
		select {
		case <-c.ready:
			if ev, ok := c.pop(); ok {
				return ev, true
			}
		case <-expired:
			return c.pop()
		}
	}
}

// FetchContext returns the oldest queued event, waiting until one arrives or ctx is done
func (c *Capture) FetchContext(ctx context.Context) (Event, error) {
	for {
		if ev, ok := c.pop(); ok {
			return ev, nil
		}
		select {
		case <-c.ready:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Len returns number of queued events
func (c *Capture) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Cap returns queue capacity
func (c *Capture) Cap() int {
	return len(c.buf)
}

// Dropped returns how many events were discarded because the queue was full
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}
