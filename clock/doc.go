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
Package clock implements the UTC sync engine over a monotonic tick counter.

Engine maps monotonic time to UTC with an offset and a rate correction:

	utc = utc_base + (mono - mono_base) * (1 + rate_ppm/1e6)

Corrections arrive through AdjustUtc as residual offsets. Small ones steer the
rate correction through a PI loop, big ones (at least SyncParams.MinJump) step
UTC directly and are counted as jumps. UTC reads as zero until the first
correction, which initializes it.

All engine state is guarded by a single critical section, a sync.Locker given
at construction and shared with the monotonic base. Methods with the
FromCriticalSection suffix expect the caller to hold it, everything else takes
it.

Instance and SyncInstance expose a process-wide engine through the SystemClock
and AdjustableClock interfaces.
*/
package clock
