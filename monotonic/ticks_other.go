//go:build !linux

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
	"runtime"
)

// RawClockTicks is only available on linux
type RawClockTicks struct {
	RuntimeTicks
}

// NewRawClockTicks is not supported on this platform
func NewRawClockTicks(_ uint) (*RawClockTicks, error) {
	return nil, fmt.Errorf("CLOCK_MONOTONIC_RAW is not supported on %s", runtime.GOOS)
}
