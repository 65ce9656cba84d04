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

package quality

import (
	"container/ring"
	"sync"
)

// DataPoint is one observation of the sync engine
type DataPoint struct {
	SyncErrorUS float64
	RatePPM     float64
	Locked      bool
}

// History keeps the last N data points, guarded by mutex
type History struct {
	sync.Mutex

	points *ring.Ring
	count  int
}

// NewHistory creates history of given size
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{points: ring.New(size)}
}

// Push adds a data point, overwriting the oldest one when full
func (h *History) Push(dp *DataPoint) {
	h.Lock()
	defer h.Unlock()
	h.points.Value = dp
	h.points = h.points.Next()
	if h.count < h.points.Len() {
		h.count++
	}
}

// Take returns up to n most recent data points, most recent first
func (h *History) Take(n int) []*DataPoint {
	h.Lock()
	defer h.Unlock()
	if n > h.count {
		n = h.count
	}
	result := make([]*DataPoint, 0, n)
	r := h.points.Prev()
	for j := 0; j < n; j++ {
		result = append(result, r.Value.(*DataPoint))
		r = r.Prev()
	}
	return result
}

// Len returns how many data points are stored
func (h *History) Len() int {
	h.Lock()
	defer h.Unlock()
	return h.count
}
