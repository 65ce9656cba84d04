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
	"fmt"
	"math"
	"time"
)

// State is the outcome of feeding one correction to the servo
type State uint8

// All the states of servo
const (
	StateInit     State = 0
	StateJump     State = 1
	StateTracking State = 2
	StateLocked   State = 3
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateJump:
		return "JUMP"
	case StateTracking:
		return "TRACKING"
	case StateLocked:
		return "LOCKED"
	}
	return "UNSUPPORTED"
}

// SyncParams are the UTC servo tunables. A value is never modified after it's published to the engine.
type SyncParams struct {
	OffsetP              float64       `yaml:"offset_p"`                // PPM of rate change per usec of offset error
	RateI                float64       `yaml:"rate_i"`                  // PPM of rate change per PPM of rate error per second
	RateErrorCornerFreq  float64       `yaml:"rate_error_corner_freq"`  // Hz, low-pass cutoff for rate error
	MaxRateCorrectionPPM float64       `yaml:"max_rate_correction_ppm"` // rate correction clamp
	LockThresRatePPM     float64       `yaml:"lock_thres_rate_ppm"`     // filtered rate error must stay below to be locked
	LockThresOffset      time.Duration `yaml:"lock_thres_offset"`       // last offset error must stay below to be locked
	MinJump              time.Duration `yaml:"min_jump"`                // min error to jump rather than change rate
}

// DefaultSyncParams returns default servo tunables
func DefaultSyncParams() *SyncParams {
	return &SyncParams{
		OffsetP:              0.01,
		RateI:                0.02,
		RateErrorCornerFreq:  0.01,
		MaxRateCorrectionPPM: 300,
		LockThresRatePPM:     2,
		LockThresOffset:      4 * time.Millisecond,
		MinJump:              10 * time.Millisecond,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate SyncParams are sane
func (p *SyncParams) Validate() error {
	if !finite(p.OffsetP) || p.OffsetP < 0 {
		return fmt.Errorf("offset_p must be 0 or positive")
	}
	if !finite(p.RateI) || p.RateI < 0 {
		return fmt.Errorf("rate_i must be 0 or positive")
	}
	if !finite(p.RateErrorCornerFreq) || p.RateErrorCornerFreq < 0 {
		return fmt.Errorf("rate_error_corner_freq must be 0 or positive")
	}
	if !finite(p.MaxRateCorrectionPPM) || p.MaxRateCorrectionPPM <= 0 || p.MaxRateCorrectionPPM >= 1e6 {
		return fmt.Errorf("max_rate_correction_ppm must be within (0, 1000000)")
	}
	if !finite(p.LockThresRatePPM) || p.LockThresRatePPM <= 0 {
		return fmt.Errorf("lock_thres_rate_ppm must be greater than zero")
	}
	if p.LockThresOffset <= 0 {
		return fmt.Errorf("lock_thres_offset must be greater than zero")
	}
	if p.MinJump <= 0 {
		return fmt.Errorf("min_jump must be greater than zero")
	}
	return nil
}
