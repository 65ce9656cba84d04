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
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// RawClockTicks reads CLOCK_MONOTONIC_RAW, which is not slewed by the kernel,
// as a nanosecond counter truncated to the given width
type RawClockTicks struct {
	width uint
}

// NewRawClockTicks checks CLOCK_MONOTONIC_RAW is readable and returns RawClockTicks
func NewRawClockTicks(width uint) (*RawClockTicks, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		return nil, fmt.Errorf("reading CLOCK_MONOTONIC_RAW: %w", err)
	}
	return &RawClockTicks{width: width}, nil
}

// Ticks returns raw clock nanoseconds masked to counter width
func (r *RawClockTicks) Ticks() uint64 {
	var ts unix.Timespec
	// checked in NewRawClockTicks
	_ = unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts)
	return uint64(ts.Nano()) & widthMask(r.width)
}

// Frequency returns 1GHz
func (r *RawClockTicks) Frequency() uint64 {
	return uint64(time.Second)
}

// Width returns counter width
func (r *RawClockTicks) Width() uint {
	return r.width
}
