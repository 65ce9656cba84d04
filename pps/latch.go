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
Package pps implements the "next PPS" latch used for phase calibration, and
sources of pulse-per-second edges.

A target UTC is armed with Latch.Arm. On the next pulse the latch compares the
target against the UTC the clock had at the monotonic instant of the pulse and
feeds the difference back to the clock as a correction. Only one target can be
pending: arming again replaces it. The latch disarms itself after firing.
*/
package pps

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tickclock/tickclock/timebase"
)

// Corrector is the clock the latch feeds corrections to.
// CorrectAt must read the UTC at m, call offset with it and apply the result as a
// correction rebased at m, all atomically with respect to other corrections.
// It returns the applied correction.
type Corrector interface {
	CorrectAt(m timebase.MonotonicTime, offset func(observed timebase.UtcTime) time.Duration) time.Duration
}

// PulseHandler receives PPS edges. It is called from the source goroutine and must return quickly.
type PulseHandler interface {
	HandlePPS()
}

// Latch holds a single pending PPS target
type Latch struct {
	mu     sync.Mutex
	target timebase.UtcTime
	armed  bool
	fired  atomic.Uint64
}

// Arm sets UTC the next pulse should be stamped with, replacing any pending target.
// Zero disarms.
func (l *Latch) Arm(t timebase.UtcTime) {
	l.mu.Lock()
	l.target = t
	l.armed = !t.IsZero()
	l.mu.Unlock()
}

// Armed returns pending target
func (l *Latch) Armed() (timebase.UtcTime, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target, l.armed
}

func (l *Latch) take() (timebase.UtcTime, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.armed {
		return 0, false
	}
	l.armed = false
	return l.target, true
}

// Fire consumes the pending target for a pulse observed at monotonic instant m
// and corrects c by target minus the UTC c had at m.
// It returns the applied correction, and false if nothing was armed.
func (l *Latch) Fire(m timebase.MonotonicTime, c Corrector) (time.Duration, bool) {
	target, ok := l.take()
	if !ok {
		return 0, false
	}
	offset := c.CorrectAt(m, func(observed timebase.UtcTime) time.Duration {
		return target.Sub(observed)
	})
	l.fired.Add(1)
	return offset, true
}

// Fired returns how many pulses consumed a target
func (l *Latch) Fired() uint64 {
	return l.fired.Load()
}
