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

package clock

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tickclock/tickclock/extevent"
	"github.com/tickclock/tickclock/monotonic"
	"github.com/tickclock/tickclock/pps"
	"github.com/tickclock/tickclock/servo"
	"github.com/tickclock/tickclock/timebase"
)

var (
	_ pps.Corrector        = (*Engine)(nil)
	_ pps.PulseHandler     = (*Engine)(nil)
	_ extevent.EdgeHandler = (*Engine)(nil)
	_ AdjustableClock      = (*Engine)(nil)
)

// Status is a consistent snapshot of the engine
type Status struct {
	Monotonic            timebase.MonotonicTime
	UTC                  timebase.UtcTime
	State                servo.State
	RateCorrectionPPM    float64
	FilteredRateErrorPPM float64
	JumpCount            uint32
	Locked               bool
	SyncError            time.Duration
	Overflows            uint64
	PPSTarget            timebase.UtcTime
	PPSArmed             bool
	PPSFired             uint64
	EventChannels        extevent.Channels
	EventsQueued         int
	EventsDropped        uint64
}

// adjustment describes an applied correction, for logging outside the critical section
type adjustment struct {
	offset time.Duration
	state  servo.State
	utc    timebase.UtcTime
	rate   float64
	jumps  uint32
}

// Engine is the UTC sync engine
type Engine struct {
	cs     sync.Locker
	base   *monotonic.Base
	params atomic.Pointer[servo.SyncParams]
	latch  pps.Latch
	events *extevent.Capture

	// guarded by cs
	utcBase  timebase.UtcTime
	monoBase timebase.MonotonicTime
	state    servo.State
	rs       servo.RateServo
}

// NewEngine creates an engine counting ticks of src.
// cs is the critical section guarding all engine state, nil means a private mutex.
// eventCapacity is the size of the external event queue.
func NewEngine(src monotonic.TickSource, cs sync.Locker, eventCapacity int) *Engine {
	if cs == nil {
		cs = &sync.Mutex{}
	}
	e := &Engine{
		cs:     cs,
		base:   monotonic.NewBase(src, cs),
		events: extevent.NewCapture(eventCapacity),
	}
	e.params.Store(servo.DefaultSyncParams())
	return e
}

// Init starts the monotonic time base. Only the first call has any effect.
func (e *Engine) Init() {
	e.base.Init()
}

// Run services the tick counter until ctx is done
func (e *Engine) Run(ctx context.Context) error {
	return e.base.Run(ctx)
}

// MonotonicFromCriticalSection samples the monotonic time base. The caller must hold the critical section.
func (e *Engine) MonotonicFromCriticalSection() timebase.MonotonicTime {
	return e.base.SampleFromCriticalSection()
}

// Monotonic returns monotonic time
func (e *Engine) Monotonic() timebase.MonotonicTime {
	return e.base.Monotonic()
}

// utcAtLocked evaluates the mapping at m. Zero if UTC is not set.
func (e *Engine) utcAtLocked(m timebase.MonotonicTime) timebase.UtcTime {
	if e.utcBase.IsZero() {
		return 0
	}
	elapsed := int64(m) - int64(e.monoBase)
	corr := int64(math.Round(float64(elapsed) * e.rs.RatePPM() / 1e6))
	return e.utcBase.Add(time.Duration(elapsed+corr) * time.Microsecond)
}

// UtcFromCriticalSection returns current UTC, zero if not set.
// The caller must hold the critical section. It does not block or allocate.
func (e *Engine) UtcFromCriticalSection() timebase.UtcTime {
	return e.utcAtLocked(e.base.SampleFromCriticalSection())
}

// Utc returns current UTC, zero if not set
func (e *Engine) Utc() timebase.UtcTime {
	e.cs.Lock()
	defer e.cs.Unlock()
	return e.UtcFromCriticalSection()
}

// UtcAt returns UTC at monotonic instant m, for instance one latched by capture hardware
func (e *Engine) UtcAt(m timebase.MonotonicTime) timebase.UtcTime {
	e.cs.Lock()
	defer e.cs.Unlock()
	return e.utcAtLocked(m)
}

// nonZero keeps an established UTC from reading as unset
func nonZero(u timebase.UtcTime) timebase.UtcTime {
	if u.IsZero() {
		return 1
	}
	return u
}

// adjustLocked applies offset d at monotonic instant m
func (e *Engine) adjustLocked(d time.Duration, m timebase.MonotonicTime, p *servo.SyncParams) adjustment {
	d = d.Truncate(time.Microsecond)
	if m < e.monoBase {
		m = e.monoBase
	}
	e.rs.Clamp(p)
	if e.utcBase.IsZero() {
		// unset UTC reads as zero, the first correction is its initial value
		e.utcBase = nonZero(timebase.UtcTime(0).Add(d))
		e.monoBase = m
		return adjustment{offset: d, state: servo.StateInit, utc: e.utcBase, rate: e.rs.RatePPM(), jumps: e.rs.Jumps()}
	}
	now := e.utcAtLocked(m)
	e.state = e.rs.Sample(d, m.Duration(), p)
	if e.state == servo.StateJump {
		now = now.Add(d)
	}
	// rebase so the new rate applies from m on
	e.utcBase = nonZero(now)
	e.monoBase = m
	return adjustment{offset: d, state: e.state, utc: e.utcBase, rate: e.rs.RatePPM(), jumps: e.rs.Jumps()}
}

func logAdjustment(a adjustment) {
	switch a.state {
	case servo.StateInit:
		log.Infof("UTC initialized to %s", a.utc)
	case servo.StateJump:
		log.Warningf("UTC jumped by %v to %s, jump count %d", a.offset, a.utc, a.jumps)
	default:
		log.Debugf("UTC offset %v, rate correction %.3f ppm, state %s", a.offset, a.rate, a.state)
	}
}

// AdjustUtc applies a correction: d is the amount UTC is currently behind the reference
func (e *Engine) AdjustUtc(d time.Duration) {
	p := e.params.Load()
	e.cs.Lock()
	a := e.adjustLocked(d, e.base.SampleFromCriticalSection(), p)
	e.cs.Unlock()
	logAdjustment(a)
}

// AdjustUtcAt applies a correction measured at monotonic instant m
func (e *Engine) AdjustUtcAt(d time.Duration, m timebase.MonotonicTime) {
	p := e.params.Load()
	e.cs.Lock()
	a := e.adjustLocked(d, m, p)
	e.cs.Unlock()
	logAdjustment(a)
}

// CorrectAt computes a correction from the UTC observed at m and applies it at m,
// atomically with respect to other corrections
func (e *Engine) CorrectAt(m timebase.MonotonicTime, offset func(observed timebase.UtcTime) time.Duration) time.Duration {
	p := e.params.Load()
	e.cs.Lock()
	a := e.adjustLocked(offset(e.utcAtLocked(m)), m, p)
	e.cs.Unlock()
	logAdjustment(a)
	return a.offset
}

// SetUtc sets UTC outright. If UTC was already set this counts as a jump.
// Zero is ignored.
func (e *Engine) SetUtc(t timebase.UtcTime) {
	if t.IsZero() {
		log.Warning("ignoring attempt to set UTC to zero")
		return
	}
	e.cs.Lock()
	m := e.base.SampleFromCriticalSection()
	a := adjustment{utc: t, state: servo.StateInit}
	if !e.utcBase.IsZero() {
		a.offset = t.Sub(e.utcAtLocked(m))
		e.rs.Jump(a.offset, m.Duration())
		e.state = servo.StateJump
		a.state = e.state
	}
	e.utcBase = t
	e.monoBase = m
	a.rate = e.rs.RatePPM()
	a.jumps = e.rs.Jumps()
	e.cs.Unlock()
	logAdjustment(a)
}

// RateCorrectionPPM returns current rate correction
func (e *Engine) RateCorrectionPPM() float64 {
	e.cs.Lock()
	defer e.cs.Unlock()
	return e.rs.RatePPM()
}

// JumpCount returns how many corrections were applied as steps
func (e *Engine) JumpCount() uint32 {
	e.cs.Lock()
	defer e.cs.Unlock()
	return e.rs.Jumps()
}

// IsLocked reports whether rate and offset errors are within lock thresholds
func (e *Engine) IsLocked() bool {
	e.cs.Lock()
	defer e.cs.Unlock()
	return e.rs.Locked()
}

// SyncError returns the last offset error
func (e *Engine) SyncError() time.Duration {
	e.cs.Lock()
	defer e.cs.Unlock()
	return e.rs.LastOffset()
}

// SyncParams returns a copy of the sync params in use
func (e *Engine) SyncParams() servo.SyncParams {
	return *e.params.Load()
}

// SetSyncParams replaces sync params. They take effect on the next correction.
func (e *Engine) SetSyncParams(p servo.SyncParams) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid sync params: %w", err)
	}
	e.params.Store(&p)
	log.Infof("sync params updated: %+v", p)
	return nil
}

// SetUtcNextPPS arms the PPS latch: the next pulse is expected to happen at UTC t
func (e *Engine) SetUtcNextPPS(t timebase.UtcTime) {
	e.latch.Arm(t)
}

// HandlePPS is called on a PPS edge
func (e *Engine) HandlePPS() {
	e.HandlePPSAt(e.base.Monotonic())
}

// HandlePPSAt is called for a PPS edge latched at monotonic instant m
func (e *Engine) HandlePPSAt(m timebase.MonotonicTime) {
	e.latch.Fire(m, e)
}

// SetExternalEventChannels enables capture on channels ch, disabling the rest.
// Events already queued are kept.
func (e *Engine) SetExternalEventChannels(ch extevent.Channels) {
	e.events.SetChannels(ch)
	log.Infof("external event channels: %s", ch)
}

// FetchExternalEvent waits up to timeout for an external event.
// Zero timeout polls, extevent.Infinite waits forever.
func (e *Engine) FetchExternalEvent(timeout time.Duration) (extevent.Event, bool) {
	return e.events.Fetch(timeout)
}

// FetchExternalEventContext waits for an external event until ctx is done
func (e *Engine) FetchExternalEventContext(ctx context.Context) (extevent.Event, error) {
	return e.events.FetchContext(ctx)
}

// HandleExternalEdge is called on an edge of channel ch
func (e *Engine) HandleExternalEdge(ch extevent.Channels) {
	if !e.events.Enabled(ch) {
		return
	}
	e.events.Push(ch, e.Utc())
}

// HandleExternalEdgeAt is called for an edge of channel ch latched at monotonic instant m
func (e *Engine) HandleExternalEdgeAt(ch extevent.Channels, m timebase.MonotonicTime) {
	if !e.events.Enabled(ch) {
		return
	}
	e.events.Push(ch, e.UtcAt(m))
}

// Status returns a snapshot of the engine
func (e *Engine) Status() *Status {
	e.cs.Lock()
	m := e.base.SampleFromCriticalSection()
	s := &Status{
		Monotonic:            m,
		UTC:                  e.utcAtLocked(m),
		State:                e.state,
		RateCorrectionPPM:    e.rs.RatePPM(),
		FilteredRateErrorPPM: e.rs.FilteredRateErrorPPM(),
		JumpCount:            e.rs.Jumps(),
		Locked:               e.rs.Locked(),
		SyncError:            e.rs.LastOffset(),
	}
	e.cs.Unlock()
	s.Overflows = e.base.Overflows()
	s.PPSTarget, s.PPSArmed = e.latch.Armed()
	s.PPSFired = e.latch.Fired()
	s.EventChannels = e.events.Channels()
	s.EventsQueued = e.events.Len()
	s.EventsDropped = e.events.Dropped()
	return s
}
