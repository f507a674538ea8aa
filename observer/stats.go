// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observer

import (
	"time"
)

const (
	WaitBuckets    = 251
	WaitBucketSize = 100 * time.Millisecond
)

// Histogram counts wait durations in fixed buckets.
type Histogram struct {
	Buckets [WaitBuckets]uint64 `json:"b"`
	Count   uint64              `json:"c"`
	Sum     float64             `json:"s"` // milliseconds
}

func (h *Histogram) Add(d time.Duration) {
	if d < 0 {
		d = 0
	}
	idx := int(d / WaitBucketSize)
	if idx >= WaitBuckets {
		idx = WaitBuckets - 1
	}
	h.Buckets[idx]++
	h.Count++
	h.Sum += float64(d.Milliseconds())
}

func (h *Histogram) Merge(other *Histogram) {
	if other == nil {
		return
	}
	for i := 0; i < WaitBuckets; i++ {
		h.Buckets[i] += other.Buckets[i]
	}
	h.Count += other.Count
	h.Sum += other.Sum
}

// Mean is the average recorded duration.
func (h *Histogram) Mean() time.Duration {
	if h.Count == 0 {
		return 0
	}
	return time.Duration(h.Sum/float64(h.Count)) * time.Millisecond
}

// Quantile returns the upper edge of the bucket holding the q-th quantile.
func (h *Histogram) Quantile(q float64) time.Duration {
	if h.Count == 0 {
		return 0
	}
	target := uint64(q * float64(h.Count))
	if target >= h.Count {
		target = h.Count - 1
	}
	var seen uint64
	for i, n := range h.Buckets {
		seen += n
		if seen > target {
			return time.Duration(i+1) * WaitBucketSize
		}
	}
	return WaitBuckets * WaitBucketSize
}

// WaitStats records how long each phase boundary took to appear.
type WaitStats struct {
	Phases map[Phase]*Histogram
}

func NewWaitStats() *WaitStats {
	return &WaitStats{Phases: make(map[Phase]*Histogram)}
}

func (s *WaitStats) Record(p Phase, d time.Duration) {
	h, ok := s.Phases[p]
	if !ok {
		h = &Histogram{}
		s.Phases[p] = h
	}
	h.Add(d)
}

func (s *WaitStats) Merge(other *WaitStats) {
	if other == nil {
		return
	}
	for p, h := range other.Phases {
		mine, ok := s.Phases[p]
		if !ok {
			mine = &Histogram{}
			s.Phases[p] = mine
		}
		mine.Merge(h)
	}
}
