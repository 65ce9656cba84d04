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

package pps

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tickclock/tickclock/timebase"
)

// fixedClock pretends its UTC at every instant is base plus the monotonic time
type fixedClock struct {
	base    timebase.UtcTime
	applied []time.Duration
	at      []timebase.MonotonicTime
}

func (c *fixedClock) CorrectAt(m timebase.MonotonicTime, offset func(timebase.UtcTime) time.Duration) time.Duration {
	var observed timebase.UtcTime
	if !c.base.IsZero() {
		observed = c.base.Add(m.Duration())
	}
	d := offset(observed)
	c.applied = append(c.applied, d)
	c.at = append(c.at, m)
	return d
}

func TestLatchNotArmed(t *testing.T) {
	var l Latch
	c := &fixedClock{base: 1_000_000}
	_, ok := l.Armed()
	require.False(t, ok)
	_, fired := l.Fire(5, c)
	require.False(t, fired)
	require.Empty(t, c.applied)
	require.Equal(t, uint64(0), l.Fired())
}

func TestLatchFire(t *testing.T) {
	var l Latch
	c := &fixedClock{base: 10_000_000}
	l.Arm(12_000_000)
	target, ok := l.Armed()
	require.True(t, ok)
	require.Equal(t, timebase.UtcTime(12_000_000), target)

	// observed at m=500000 is 10.5s, target 12s
	d, fired := l.Fire(500_000, c)
	require.True(t, fired)
	require.Equal(t, 1500*time.Millisecond, d)
	require.Equal(t, []timebase.MonotonicTime{500_000}, c.at)
	require.Equal(t, uint64(1), l.Fired())

	// disarmed after firing
	_, ok = l.Armed()
	require.False(t, ok)
	_, fired = l.Fire(1_500_000, c)
	require.False(t, fired)
	require.Len(t, c.applied, 1)
}

func TestLatchFireUnsetClock(t *testing.T) {
	var l Latch
	c := &fixedClock{}
	l.Arm(3_000_000)
	d, fired := l.Fire(42, c)
	require.True(t, fired)
	require.Equal(t, 3*time.Second, d)
}

func TestLatchLastWriteWins(t *testing.T) {
	var l Latch
	c := &fixedClock{base: 1_000_000}
	l.Arm(5_000_000)
	l.Arm(7_000_000)
	d, fired := l.Fire(0, c)
	require.True(t, fired)
	require.Equal(t, 6*time.Second, d)
}

func TestLatchArmZeroDisarms(t *testing.T) {
	var l Latch
	l.Arm(5_000_000)
	l.Arm(0)
	_, ok := l.Armed()
	require.False(t, ok)
}

func TestLatchSingleFireConcurrent(t *testing.T) {
	var l Latch
	var mu sync.Mutex
	c := &fixedClock{base: 1}
	l.Arm(2_000_000)
	var wg sync.WaitGroup
	fires := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			if _, ok := l.Fire(0, c); ok {
				fires++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, fires)
	require.Equal(t, uint64(1), l.Fired())
}
