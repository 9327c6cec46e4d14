// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package gateway

import "time"

// DefaultThrottle is the minimum spacing between bus transactions.
const DefaultThrottle = 25 * time.Millisecond

// Throttle enforces a minimum gap between the end of one bus transaction
// and the start of the next. It is not safe for concurrent use; the gateway
// only touches it while holding the bus lock.
type Throttle struct {
	interval time.Duration
	now      func() time.Time
	sleep    func(time.Duration)
	last     time.Time
}

// NewThrottle creates a throttle. A nil now or sleep uses the wall clock.
func NewThrottle(interval time.Duration, now func() time.Time, sleep func(time.Duration)) *Throttle {
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Throttle{interval: interval, now: now, sleep: sleep}
}

// Wait blocks until interval has passed since the last Done.
func (t *Throttle) Wait() {
	if t.last.IsZero() {
		return
	}
	if elapsed := t.now().Sub(t.last); elapsed < t.interval {
		t.sleep(t.interval - elapsed)
	}
}

// Done records the end of a transaction.
func (t *Throttle) Done() {
	t.last = t.now()
}
