//go:build linux

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
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// ppbToTimexPPM converts PPB to the timex frequency unit, ppm with a 16-bit fractional part
const ppbToTimexPPM = 65.536

// from usr/include/linux/timex.h
const (
	staUnsync = 0x0040
	timeError = 5
)

// HostStatus is the kernel's view of the host realtime clock discipline
type HostStatus struct {
	FrequencyPPB float64
	MaxError     time.Duration
	EstError     time.Duration
	Synchronized bool
}

// ReadHostStatus reads realtime clock discipline state through CLOCK_ADJTIME without modifying it
func ReadHostStatus() (*HostStatus, error) {
	tx := &unix.Timex{}
	state, err := unix.ClockAdjtime(unix.CLOCK_REALTIME, tx)
	if err != nil {
		return nil, fmt.Errorf("reading realtime clock status: %w", err)
	}
	return &HostStatus{
		FrequencyPPB: float64(tx.Freq) / ppbToTimexPPM,
		MaxError:     time.Duration(tx.Maxerror) * time.Microsecond,
		EstError:     time.Duration(tx.Esterror) * time.Microsecond,
		Synchronized: state != timeError && tx.Status&staUnsync == 0,
	}, nil
}
