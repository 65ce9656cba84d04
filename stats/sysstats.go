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
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats reports health of the daemon process itself: whether it keeps up
// servicing the tick counter depends on it not being starved or stuck in GC
type ProcessStats struct {
	started time.Time
	proc    *process.Process
	prev    *runtime.MemStats
}

// perSecond is the growth of a cumulative counter over interval, zero if it went back
func perSecond(cur, prev uint64, interval time.Duration) uint64 {
	if prev > cur {
		return 0
	}
	secs := uint64(interval / time.Second)
	if secs == 0 {
		secs = 1
	}
	return (cur - prev) / secs
}

// Collect returns process and runtime counters, keys prefixed with "daemon."
func (s *ProcessStats) Collect(interval time.Duration) (map[string]uint64, error) {
	if s.proc == nil {
		proc, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return nil, err
		}
		s.proc = proc
		s.started = time.Now()
		if created, err := proc.CreateTime(); err == nil {
			s.started = time.UnixMilli(created)
		}
	}
	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)

	c := map[string]uint64{
		"daemon.uptime_s":    uint64(time.Since(s.started).Seconds()),
		"daemon.goroutines":  uint64(runtime.NumGoroutine()),
		"daemon.heap_bytes":  m.HeapAlloc,
		"daemon.gc_count":    uint64(m.NumGC),
		"daemon.gc_pause_ns": m.PauseTotalNs,
	}
	if pct, err := s.proc.Percent(0); err == nil {
		c["daemon.cpu_pct_x100"] = uint64(pct * 100)
	}
	if mem, err := s.proc.MemoryInfo(); err == nil {
		c["daemon.rss_bytes"] = mem.RSS
	}
	if n, err := s.proc.NumFDs(); err == nil {
		c["daemon.fds"] = uint64(n)
	}
	if n, err := s.proc.NumThreads(); err == nil {
		c["daemon.threads"] = uint64(n)
	}
	if s.prev != nil {
		c["daemon.gc_pause_ns_per_s"] = perSecond(m.PauseTotalNs, s.prev.PauseTotalNs, interval)
		c["daemon.mallocs_per_s"] = perSecond(m.Mallocs, s.prev.Mallocs, interval)
	}
	s.prev = m
	return c, nil
}
