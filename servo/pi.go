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

package servo

import (
	"math"
	"time"

	"golang.org/x/exp/constraints"
)

// minSampleInterval floors the time between corrections used to derive rate error
const minSampleInterval = time.Millisecond

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs[T constraints.Signed | constraints.Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// lowpass is a first order low-pass filter with corner frequency fc in Hz, applied over dt seconds
func lowpass(prev, sample, fc, dt float64) float64 {
	if fc <= 0 {
		return sample
	}
	tau := 1 / (2 * math.Pi * fc)
	return (dt*sample + tau*prev) / (dt + tau)
}

// RateServo is a PI servo steering a relative rate correction from offset errors.
// Large errors are not fed to the loop, they are reported as StateJump for the caller to step.
// It is not safe for concurrent use.
type RateServo struct {
	ratePPM              float64
	filteredRateErrorPPM float64
	lastOffset           time.Duration
	prevAt               time.Duration
	hasPrev              bool
	locked               bool
	jumps                uint32
}

// NewRateServo creates servo with zero rate correction
func NewRateServo() *RateServo {
	return &RateServo{}
}

// Sample feeds offset error measured at monotonic instant at
func (s *RateServo) Sample(offset time.Duration, at time.Duration, p *SyncParams) State {
	if abs(offset) >= p.MinJump {
		s.Jump(offset, at)
		return StateJump
	}
	s.lastOffset = offset

	offsetUsec := float64(offset) / float64(time.Microsecond)
	var dt, rateErrorPPM float64
	if s.hasPrev {
		elapsed := at - s.prevAt
		if elapsed < minSampleInterval {
			elapsed = minSampleInterval
		}
		dt = elapsed.Seconds()
		// usec of error per second is PPM
		rateErrorPPM = offsetUsec / dt
		s.filteredRateErrorPPM = lowpass(s.filteredRateErrorPPM, rateErrorPPM, p.RateErrorCornerFreq, dt)
	}
	s.prevAt = at
	s.hasPrev = true

	pTerm := p.OffsetP * offsetUsec
	iTerm := p.RateI * s.filteredRateErrorPPM * dt
	s.ratePPM = clamp(s.ratePPM+pTerm+iTerm, -p.MaxRateCorrectionPPM, p.MaxRateCorrectionPPM)

	s.locked = abs(s.filteredRateErrorPPM) < p.LockThresRatePPM && abs(s.lastOffset) < p.LockThresOffset
	if s.locked {
		return StateLocked
	}
	return StateTracking
}

// Jump records offset applied to the clock as a step at monotonic instant at.
// It resets the rate error filter and drops the lock.
func (s *RateServo) Jump(offset time.Duration, at time.Duration) {
	s.lastOffset = offset
	s.jumps++
	s.filteredRateErrorPPM = 0
	s.locked = false
	// the step itself is a valid reference for the rate error of the next correction
	s.prevAt = at
	s.hasPrev = true
}

// Clamp re-applies the rate clamp, used when params change
func (s *RateServo) Clamp(p *SyncParams) {
	s.ratePPM = clamp(s.ratePPM, -p.MaxRateCorrectionPPM, p.MaxRateCorrectionPPM)
}

// RatePPM returns current rate correction. Positive makes UTC run faster than the counter
func (s *RateServo) RatePPM() float64 {
	return s.ratePPM
}

// FilteredRateErrorPPM returns low-pass filtered rate error
func (s *RateServo) FilteredRateErrorPPM() float64 {
	return s.filteredRateErrorPPM
}

// LastOffset returns the last offset error fed to servo
func (s *RateServo) LastOffset() time.Duration {
	return s.lastOffset
}

// Locked reports whether both rate and offset error are within thresholds
func (s *RateServo) Locked() bool {
	return s.locked
}

// Jumps returns how many corrections were too large for the loop
func (s *RateServo) Jumps() uint32 {
	return s.jumps
}
