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

package clock

import (
	"errors"
	"time"
)

// HostStatus is the kernel's view of the host realtime clock discipline
type HostStatus struct {
	FrequencyPPB float64
	MaxError     time.Duration
	EstError     time.Duration
	Synchronized bool
}

// ReadHostStatus is only supported on linux
func ReadHostStatus() (*HostStatus, error) {
	return nil, errors.New("host clock status is not supported on this platform")
}
