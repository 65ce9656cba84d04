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

package monotonic

import (
	"math/bits"
	"sync/atomic"
	"time"
)

// TickSource is a free-running hardware counter.
// Ticks must be callable from any context and return within a few instructions.
type TickSource interface {
	// Ticks returns the raw counter value, wrapping at 2^Width
	Ticks() uint64
	// Frequency returns counter frequency in Hz
	Frequency() uint64
	// Width returns counter width in bits, 1..64
	Width() uint
}

func widthMask(width uint) uint64 {
	if width >= 64 || width == 0 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

// ManualTicks is a TickSource driven by the caller, used for simulation and tests
type ManualTicks struct {
	value atomic.Uint64
	freq  uint64
	width uint
}

// NewManualTicks returns ManualTicks starting at 0
func NewManualTicks(freq uint64, width uint) *ManualTicks {
	return &ManualTicks{freq: freq, width: width}
}

// Ticks returns current counter value
func (m *ManualTicks) Ticks() uint64 {
	return m.value.Load()
}

// Frequency returns counter frequency
func (m *ManualTicks) Frequency() uint64 {
	return m.freq
}

// Width returns counter width
func (m *ManualTicks) Width() uint {
	return m.width
}

// Set sets raw counter value, masked to counter width
func (m *ManualTicks) Set(v uint64) {
	m.value.Store(v & widthMask(m.width))
}

// Advance moves the counter forward by d, wrapping at counter width
func (m *ManualTicks) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	hi, lo := bits.Mul64(uint64(d.Nanoseconds()), m.freq)
	ticks, _ := bits.Div64(hi, lo, uint64(time.Second))
	for {
		old := m.value.Load()
		if m.value.CompareAndSwap(old, (old+ticks)&widthMask(m.width)) {
			return
		}
	}
}

// RuntimeTicks exposes the Go runtime monotonic clock as a nanosecond counter
// truncated to the given width
type RuntimeTicks struct {
	start time.Time
	width uint
}

// NewRuntimeTicks returns RuntimeTicks counting from now
func NewRuntimeTicks(width uint) *RuntimeTicks {
	return &RuntimeTicks{start: time.Now(), width: width}
}

// Ticks returns nanoseconds since creation, masked to counter width
func (r *RuntimeTicks) Ticks() uint64 {
	return uint64(time.Since(r.start).Nanoseconds()) & widthMask(r.width)
}

// Frequency returns 1GHz
func (r *RuntimeTicks) Frequency() uint64 {
	return uint64(time.Second)
}

// Width returns counter width
func (r *RuntimeTicks) Width() uint {
	return r.width
}
