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

package stats

import (
	"github.com/tickclock/tickclock/clock"
)

// Status is the engine status as reported over HTTP
type Status struct {
	MonotonicUS          uint64  `json:"monotonic_us"`
	UTCUS                uint64  `json:"utc_us"`
	UTC                  string  `json:"utc"`
	State                string  `json:"state"`
	Locked               bool    `json:"locked"`
	RateCorrectionPPM    float64 `json:"rate_correction_ppm"`
	FilteredRateErrorPPM float64 `json:"filtered_rate_error_ppm"`
	JumpCount            uint32  `json:"jump_count"`
	SyncErrorUS          int64   `json:"sync_error_us"`
	Overflows            uint64  `json:"overflows"`
	PPSArmed             bool    `json:"pps_armed"`
	PPSFired             uint64  `json:"pps_fired"`
	EventChannels        string  `json:"event_channels"`
	EventsQueued         int     `json:"events_queued"`
	EventsDropped        uint64  `json:"events_dropped"`
	QualityUS            float64 `json:"quality_us"`
	Eligible             bool    `json:"eligible"`
}

// NewStatus converts engine status snapshot
func NewStatus(s *clock.Status) *Status {
	return &Status{
		MonotonicUS:          uint64(s.Monotonic),
		UTCUS:                uint64(s.UTC),
		UTC:                  s.UTC.String(),
		State:                s.State.String(),
		Locked:               s.Locked,
		RateCorrectionPPM:    s.RateCorrectionPPM,
		FilteredRateErrorPPM: s.FilteredRateErrorPPM,
		JumpCount:            s.JumpCount,
		SyncErrorUS:          s.SyncError.Microseconds(),
		Overflows:            s.Overflows,
		PPSArmed:             s.PPSArmed,
		PPSFired:             s.PPSFired,
		EventChannels:        s.EventChannels.String(),
		EventsQueued:         s.EventsQueued,
		EventsDropped:        s.EventsDropped,
	}
}

// Counters returns status as flat counters
func (s *Status) Counters() map[string]int64 {
	b2i := func(b bool) int64 {
		if b {
			return 1
		}
		return 0
	}
	return map[string]int64{
		"utc.set":                   b2i(s.UTCUS != 0),
		"utc.locked":                b2i(s.Locked),
		"utc.jump_count":            int64(s.JumpCount),
		"utc.sync_error_us":         s.SyncErrorUS,
		"utc.rate_correction_ppb":   int64(s.RateCorrectionPPM * 1000),
		"utc.filtered_rate_err_ppb": int64(s.FilteredRateErrorPPM * 1000),
		"monotonic.overflows":       int64(s.Overflows),
		"pps.armed":                 b2i(s.PPSArmed),
		"pps.fired":                 int64(s.PPSFired),
		"events.queued":             int64(s.EventsQueued),
		"events.dropped":            int64(s.EventsDropped),
		"quality.us":                int64(s.QualityUS),
		"quality.eligible":          b2i(s.Eligible),
	}
}
