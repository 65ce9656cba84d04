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
Package timebase holds the time representations shared by the clock packages.

Both monotonic and UTC instants are unsigned microsecond counters. A zero UtcTime
means UTC has not been established yet.
*/
package timebase

import (
	"math"
	"time"
)

// MonotonicTime is the number of microseconds since the time base was initialized
type MonotonicTime uint64

// UtcTime is the number of microseconds since the Unix epoch, zero means unknown
type UtcTime uint64

// Duration returns m as time elapsed since initialization
func (m MonotonicTime) Duration() time.Duration {
	return time.Duration(m) * time.Microsecond
}

// Sub returns m-o as a signed duration
func (m MonotonicTime) Sub(o MonotonicTime) time.Duration {
	return time.Duration(int64(m-o)) * time.Microsecond
}

// Add returns m shifted by d, truncated to microseconds
func (m MonotonicTime) Add(d time.Duration) MonotonicTime {
	return MonotonicTime(int64(m) + d.Microseconds())
}

// IsZero reports whether UTC is not set
func (u UtcTime) IsZero() bool {
	return u == 0
}

// Time converts u to time.Time. Zero UtcTime maps to the zero time.Time
func (u UtcTime) Time() time.Time {
	if u == 0 {
		return time.Time{}
	}
	return time.UnixMicro(int64(u)).UTC()
}

// Sub returns u-o as a signed duration
func (u UtcTime) Sub(o UtcTime) time.Duration {
	return time.Duration(int64(u-o)) * time.Microsecond
}

// Add returns u shifted by d, truncated to microseconds.
// The result never wraps below the epoch: it is pinned to 1us which still counts as set.
func (u UtcTime) Add(d time.Duration) UtcTime {
	us := d.Microseconds()
	if us < 0 && uint64(-us) >= uint64(u) {
		return 1
	}
	if us > 0 && uint64(us) > math.MaxUint64-uint64(u) {
		return math.MaxUint64
	}
	return UtcTime(int64(u) + us)
}

func (u UtcTime) String() string {
	if u == 0 {
		return "unset"
	}
	return u.Time().Format(time.RFC3339Nano)
}

// UtcFromTime converts t to UtcTime
func UtcFromTime(t time.Time) UtcTime {
	us := t.UnixMicro()
	if us <= 0 {
		return 0
	}
	return UtcTime(us)
}
