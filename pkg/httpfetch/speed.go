// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpfetch

import (
	"fmt"
	"sync"
	"time"
)

// speedWindow is the sliding window over which throughput is computed.
const speedWindow = 2 * time.Second

type speedSample struct {
	at    time.Time
	total uint64
}

// SpeedCalculator computes download speed from cumulative byte samples
// over a sliding window. One instance is shared across all in-flight
// downloads so the displayed speed reflects global throughput.
type SpeedCalculator struct {
	start time.Time

	mu      sync.Mutex
	samples []speedSample
}

// NewSpeedCalculator creates a speed calculator; the clock starts now.
func NewSpeedCalculator() *SpeedCalculator {
	return &SpeedCalculator{
		start:   time.Now(),
		samples: make([]speedSample, 0, 100),
	}
}

// AddSample records the current cumulative byte count.
func (s *SpeedCalculator) AddSample(totalBytes uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	// Drop samples that fell out of the window.
	i := 0
	for i < len(s.samples) && now.Sub(s.samples[i].at) >= speedWindow {
		i++
	}
	if i > 0 {
		s.samples = append(s.samples[:0], s.samples[i:]...)
	}

	s.samples = append(s.samples, speedSample{at: now, total: totalBytes})
}

// Speed returns the current throughput in bytes per second.
func (s *SpeedCalculator) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.samples) < 2 {
		return 0
	}

	first := s.samples[0]
	last := s.samples[len(s.samples)-1]

	elapsed := last.at.Sub(first.at).Seconds()
	if elapsed == 0 {
		return 0
	}

	var transferred uint64
	if last.total > first.total {
		transferred = last.total - first.total
	}
	return float64(transferred) / elapsed
}

// Format renders the current speed as a human string ("1.2 MB/s").
func (s *SpeedCalculator) Format() string {
	bps := s.Speed()

	switch {
	case bps < 1024:
		return fmt.Sprintf("%.1f B/s", bps)
	case bps < 1024*1024:
		return fmt.Sprintf("%.1f KB/s", bps/1024)
	case bps < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB/s", bps/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB/s", bps/(1024*1024*1024))
	}
}

// Elapsed returns the time since the calculator was created.
func (s *SpeedCalculator) Elapsed() time.Duration {
	return time.Since(s.start)
}
