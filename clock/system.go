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
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tickclock/tickclock/extevent"
	"github.com/tickclock/tickclock/monotonic"
	"github.com/tickclock/tickclock/timebase"
)

// SystemClock is the clock ordinary consumers read
type SystemClock interface {
	Monotonic() timebase.MonotonicTime
	Utc() timebase.UtcTime
}

// AdjustableClock is the clock as seen by the time sync protocol, the only party allowed to correct it
type AdjustableClock interface {
	SystemClock
	AdjustUtc(d time.Duration)
}

// ErrRegistered is returned when the process-wide engine is already in place
var ErrRegistered = errors.New("process clock is already set")

var (
	sharedMu sync.Mutex
	shared   *Engine
)

// Register installs e as the process-wide engine and initializes it.
// It fails once an engine is in place, including one created by Instance.
func Register(e *Engine) error {
	if e == nil {
		return errors.New("nil engine")
	}
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil {
		return ErrRegistered
	}
	e.Init()
	shared = e
	return nil
}

// defaultEngine counts CLOCK_MONOTONIC_RAW where available, the runtime monotonic clock elsewhere
func defaultEngine() *Engine {
	var src monotonic.TickSource
	raw, err := monotonic.NewRawClockTicks(64)
	if err != nil {
		log.Debugf("falling back to runtime clock: %v", err)
		src = monotonic.NewRuntimeTicks(64)
	} else {
		src = raw
	}
	return NewEngine(src, nil, extevent.DefaultCapacity)
}

// Shared returns the process-wide engine, creating and initializing it on first use
func Shared() *Engine {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		shared = defaultEngine()
		shared.Init()
	}
	return shared
}

// Instance returns the process-wide clock for reading
func Instance() SystemClock {
	return Shared()
}

// SyncInstance returns the process-wide clock for the time sync protocol
func SyncInstance() AdjustableClock {
	return Shared()
}
