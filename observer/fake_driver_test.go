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
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// fakeWheel is an in-memory wheel page whose phase follows the wall clock.
type fakeWheel struct {
	opts     Options
	phases   Budgets
	start    time.Time
	outcomes []Outcome
	// history entries present before the first round.
	initialHistory int

	mu sync.Mutex
	// pinned freezes the page in one phase of round 0 when set.
	pinned    Phase
	countdown string
	header    string
	emphasis  map[Outcome]string
	disable   map[Outcome]string
	noButtons bool

	reads atomic.Int64
}

func newFakeWheel(opts Options, outcomes ...Outcome) *fakeWheel {
	if len(outcomes) == 0 {
		outcomes = []Outcome{OutcomeCT}
	}
	return &fakeWheel{
		opts:           opts,
		phases:         opts.Budgets,
		start:          time.Now(),
		outcomes:       outcomes,
		initialHistory: 3,
		emphasis:       make(map[Outcome]string),
		disable:        make(map[Outcome]string),
	}
}

func pinnedWheel(opts Options, p Phase, o Outcome) *fakeWheel {
	w := newFakeWheel(opts, o)
	w.pinned = p
	return w
}

// state returns the phase, round number and time spent in the phase.
func (w *fakeWheel) state() (Phase, int, time.Duration) {
	w.mu.Lock()
	pinned := w.pinned
	w.mu.Unlock()
	if pinned != PhaseUnknown {
		return pinned, 0, 0
	}
	b := w.phases
	cycle := b.Cycle()
	elapsed := time.Since(w.start)
	round := int(elapsed / cycle)
	within := elapsed % cycle
	switch {
	case within < b.Betting:
		return PhaseBetting, round, within
	case within < b.Betting+b.Rolling:
		return PhaseRolling, round, within - b.Betting
	default:
		return PhaseAnnouncing, round, within - b.Betting - b.Rolling
	}
}

func (w *fakeWheel) outcome(round int) Outcome {
	return w.outcomes[round%len(w.outcomes)]
}

func (w *fakeWheel) set(f func(w *fakeWheel)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f(w)
}

type fakeElement int

const (
	elNone fakeElement = iota
	elHeader
	elCountdown
	elButton
	elHistory
)

func (w *fakeWheel) classify(ref ElementRef) (fakeElement, int) {
	s := w.opts.Selectors
	if len(ref.Steps) == 2 && ref.Steps[0].Selector == s.CentralText && ref.Steps[1].Selector == "div" {
		switch ref.Steps[1].Index {
		case 0:
			return elHeader, 0
		case -1, 1:
			return elCountdown, 0
		}
	}
	if len(ref.Steps) == 2 && ref.Steps[0].Selector == s.BetOptions && ref.Steps[1].Selector == s.Button {
		return elButton, ref.Steps[0].Index
	}
	if len(ref.Steps) == 1 && ref.Steps[0].Selector == s.HistoryEntry {
		return elHistory, ref.Steps[0].Index
	}
	return elNone, 0
}

func (w *fakeWheel) historyLen(p Phase, round int) int {
	n := w.initialHistory + round
	if p == PhaseAnnouncing {
		n++
	}
	return n
}

func (w *fakeWheel) Count(ctx context.Context, ref ElementRef) (int, error) {
	w.reads.Add(1)
	el, _ := w.classify(ref)
	switch el {
	case elHistory:
		p, round, _ := w.state()
		return w.historyLen(p, round), nil
	case elButton:
		return len(w.opts.Controls), nil
	case elHeader, elCountdown:
		return 2, nil
	}
	return 0, nil
}

func (w *fakeWheel) Text(ctx context.Context, ref ElementRef) (string, error) {
	w.reads.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, _, within := w.state()
	el, _ := w.classify(ref)
	switch el {
	case elHeader:
		w.mu.Lock()
		header := w.header
		w.mu.Unlock()
		if header != "" {
			return header, nil
		}
		if p == PhaseAnnouncing {
			return "Winner", nil
		}
		return "Rolling in", nil
	case elCountdown:
		w.mu.Lock()
		override := w.countdown
		w.mu.Unlock()
		if override == "-" {
			return "", ErrNoElement
		}
		if override != "" {
			return override, nil
		}
		if p != PhaseBetting {
			return "0.00", nil
		}
		// The sentinel shows during the first half of betting.
		if within < w.phases.Betting/2 {
			return "13.50", nil
		}
		return "6.25", nil
	}
	return "", ErrNoElement
}

func (w *fakeWheel) Attribute(ctx context.Context, ref ElementRef, name string) (string, bool, error) {
	w.reads.Add(1)
	p, round, _ := w.state()
	el, idx := w.classify(ref)
	switch el {
	case elButton:
		if w.noButtons || idx < 0 || idx >= len(w.opts.Controls) {
			return "", false, ErrNoElement
		}
		if name != w.opts.Selectors.DisableAttribute {
			return "", false, nil
		}
		w.mu.Lock()
		override, ok := w.disable[w.opts.Controls[idx]]
		w.mu.Unlock()
		if ok {
			if override == "" {
				return "", false, nil
			}
			return override, true, nil
		}
		return fmt.Sprint(p != PhaseBetting), true, nil
	case elHistory:
		n := w.historyLen(p, round)
		if n == 0 {
			return "", false, ErrNoElement
		}
		if name != "class" {
			return "", false, nil
		}
		// The newest entry is the round being announced, or the previous one.
		last := round
		if p != PhaseAnnouncing {
			last = round - 1
		}
		if last < 0 {
			return "coin-bonus", true, nil
		}
		return "coin-" + string(w.outcome(last)) + " previous-rolls-coin", true, nil
	}
	return "", false, ErrNoElement
}

func (w *fakeWheel) ComputedStyle(ctx context.Context, ref ElementRef, name string) (string, error) {
	w.reads.Add(1)
	p, round, _ := w.state()
	el, idx := w.classify(ref)
	if el != elButton || w.noButtons || idx < 0 || idx >= len(w.opts.Controls) {
		return "", ErrNoElement
	}
	c := w.opts.Controls[idx]
	w.mu.Lock()
	override, ok := w.emphasis[c]
	w.mu.Unlock()
	if ok {
		return override, nil
	}
	switch p {
	case PhaseBetting:
		return "1", nil
	case PhaseAnnouncing:
		if w.outcome(round) == c {
			return "1", nil
		}
	}
	return "0.5", nil
}

func (w *fakeWheel) WaitAttached(ctx context.Context, selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		if p, _, _ := w.state(); selector == w.opts.Selectors.HistoryMove && p == PhaseAnnouncing {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (w *fakeWheel) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// testOptions shrinks the budgets so a full cycle takes well under a second.
func testOptions() Options {
	opts := DefaultOptions()
	opts.Budgets = Budgets{
		Betting:    120 * time.Millisecond,
		Rolling:    80 * time.Millisecond,
		Announcing: 80 * time.Millisecond,
	}
	opts.PollInterval = time.Millisecond
	opts.SettleMargin = 10 * time.Millisecond
	return opts
}
