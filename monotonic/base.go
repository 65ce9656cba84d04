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
Package monotonic turns a free-running hardware tick counter into a 64-bit
microsecond monotonic time base.

The counter may be narrower than 64 bits. Overflow is detected by comparing
successive raw samples: a sample numerically smaller than the previous one is
assumed to be exactly one overflow. The counter therefore has to be sampled at
least once per overflow period (see Base.OverflowPeriod); Base.Run does that
when nothing else samples often enough. Missing an entire overflow period is
not detected and silently loses one period of time.
*/
package monotonic

import (
	"context"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tickclock/tickclock/timebase"
)

const (
	minServiceInterval = time.Millisecond
	maxServiceInterval = time.Second
)

// Base is the monotonic time base. All state is guarded by the critical section
// it was created with.
type Base struct {
	src  TickSource
	cs   sync.Locker
	once sync.Once

	mask        uint64
	width       uint
	freq        uint64
	initialized bool
	initTicks   uint64
	lastRaw     uint64
	carry       uint64
	lastMicros  uint64
}

// NewBase creates a time base over src. cs is the critical section shared with
// everything that samples the base; nil means a private mutex.
func NewBase(src TickSource, cs sync.Locker) *Base {
	if cs == nil {
		cs = &sync.Mutex{}
	}
	width := src.Width()
	if width == 0 || width > 64 {
		width = 64
	}
	freq := src.Frequency()
	if freq == 0 {
		freq = uint64(time.Second / time.Microsecond)
	}
	return &Base{
		src:   src,
		cs:    cs,
		mask:  widthMask(width),
		width: width,
		freq:  freq,
	}
}

// Init starts counting. Only the first call has any effect.
func (b *Base) Init() {
	b.once.Do(func() {
		b.cs.Lock()
		raw := b.src.Ticks() & b.mask
		b.initTicks = raw
		b.lastRaw = raw
		b.initialized = true
		b.cs.Unlock()
		log.Debugf("monotonic base started: width %d bits, %d Hz, overflow every %v", b.width, b.freq, b.OverflowPeriod())
	})
}

// SampleFromCriticalSection returns microseconds since Init.
// The caller must hold the critical section. It does not block or allocate.
// Before Init it returns 0.
func (b *Base) SampleFromCriticalSection() timebase.MonotonicTime {
	if !b.initialized {
		return 0
	}
	raw := b.src.Ticks() & b.mask
	if raw < b.lastRaw {
		b.carry++
	}
	b.lastRaw = raw

	var ticks uint64
	if b.width < 64 {
		ticks = b.carry<<b.width | raw
	} else {
		ticks = raw
	}
	ticks -= b.initTicks

	us := ticks/b.freq*uint64(time.Second/time.Microsecond) +
		ticks%b.freq*uint64(time.Second/time.Microsecond)/b.freq
	if us < b.lastMicros {
		us = b.lastMicros
	}
	b.lastMicros = us
	return timebase.MonotonicTime(us)
}

// Monotonic returns microseconds since Init. Safe for concurrent use.
func (b *Base) Monotonic() timebase.MonotonicTime {
	b.cs.Lock()
	defer b.cs.Unlock()
	return b.SampleFromCriticalSection()
}

// Overflows returns how many times the raw counter wrapped since Init
func (b *Base) Overflows() uint64 {
	b.cs.Lock()
	defer b.cs.Unlock()
	return b.carry
}

// OverflowPeriod returns how long the raw counter takes to wrap.
// Zero means it never wraps in practice.
func (b *Base) OverflowPeriod() time.Duration {
	if b.width >= 64 {
		return 0
	}
	secs := float64(b.mask) / float64(b.freq)
	if secs*float64(time.Second) >= math.MaxInt64 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// ServiceInterval returns how often Run samples the counter, zero if it doesn't need to
func (b *Base) ServiceInterval() time.Duration {
	p := b.OverflowPeriod()
	if p == 0 {
		return 0
	}
	i := p / 4
	if i < minServiceInterval {
		i = minServiceInterval
	}
	if i > maxServiceInterval {
		i = maxServiceInterval
	}
	return i
}

// Run samples the counter often enough to never miss an overflow, until ctx is done
func (b *Base) Run(ctx context.Context) error {
	b.Init()
	interval := b.ServiceInterval()
	if interval == 0 {
		<-ctx.Done()
		return nil
	}
	log.Debugf("servicing tick counter every %v", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.Monotonic()
		}
	}
}
