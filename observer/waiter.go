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
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

var errPollTimeout = errors.New("poll timeout")

// headerWait bounds how long the betting header may lag behind the countdown.
const headerWait = time.Second

// Poll calls cond immediately and then every interval until it reports true.
// It gives up after timeout, and cond's context carries that same deadline, so a
// slow read cannot stretch the wait past it.
func Poll(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) (bool, error)) error {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		ok, err := cond(pctx)
		if err == nil && ok {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if pctx.Err() != nil {
			return errPollTimeout
		}
		if err != nil {
			return err
		}
		wait := interval
		if remaining := time.Until(deadlineOf(pctx)); remaining < wait {
			wait = remaining
		}
		if wait <= 0 {
			// Yield so a zero interval still lets other goroutines run.
			wait = time.Microsecond
		}
		timer.Reset(wait)
		select {
		case <-pctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errPollTimeout
		case <-timer.C:
		}
	}
}

func deadlineOf(ctx context.Context) time.Time {
	d, _ := ctx.Deadline()
	return d
}

// PhaseWaiter detects phase boundaries on the wheel page.
type PhaseWaiter struct {
	probe *Probe
	d     Driver
	opts  Options
	log   *zap.Logger
	stats *WaitStats

	header    ElementRef
	countdown ElementRef

	current Phase
}

func NewPhaseWaiter(d Driver, opts Options, logger *zap.Logger) *PhaseWaiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.clone()
	central := Locate(opts.Selectors.CentralText).Find("div")
	return &PhaseWaiter{
		probe:     NewProbe(d),
		d:         d,
		opts:      opts,
		log:       logger,
		stats:     NewWaitStats(),
		header:    central.First(),
		countdown: central.Last(),
	}
}

// Current is the last confirmed phase, or PhaseUnknown while a wait is in progress.
func (w *PhaseWaiter) Current() Phase { return w.current }

// Stats returns the wait durations recorded so far.
func (w *PhaseWaiter) Stats() *WaitStats { return w.stats }

// AwaitBettingStart waits for the countdown to show the betting sentinel, which only
// appears right after betting opens. Any point of the cycle may be the starting
// point, so the budget is a full cycle.
func (w *PhaseWaiter) AwaitBettingStart(ctx context.Context) error {
	w.current = PhaseUnknown
	start := time.Now()
	budget := w.opts.Budgets.Cycle()
	prefix := w.opts.Sentinels.BettingPrefix

	last, err := w.pollCountdown(ctx, budget, func(s string) bool {
		return strings.HasPrefix(s, prefix)
	})
	if err != nil {
		return w.fail(PhaseBetting, budget, last, err)
	}

	if label := w.opts.Sentinels.HeaderLabel; label != "" {
		var header string
		err := Poll(ctx, w.opts.PollInterval, headerWait, func(ctx context.Context) (bool, error) {
			v, err := w.probe.Read(ctx, w.header, Text())
			if errors.Is(err, ErrProbeUnavailable) {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			header = strings.TrimSpace(v.Raw)
			return strings.Contains(v.Raw, label), nil
		})
		if errors.Is(err, errPollTimeout) {
			return &StateAssertionError{
				Phase:    PhaseBetting,
				Control:  "header",
				Field:    "text",
				Expected: fmt.Sprintf("contains %q", label),
				Observed: fmt.Sprintf("%q", header),
			}
		}
		if err != nil {
			return fmt.Errorf("reading header: %w", err)
		}
	}
	w.confirm(PhaseBetting, time.Since(start))
	return nil
}

// AwaitRollingStart waits for the countdown to reach its terminal value.
func (w *PhaseWaiter) AwaitRollingStart(ctx context.Context) error {
	w.current = PhaseUnknown
	start := time.Now()
	budget := w.opts.Budgets.Betting
	want := w.opts.Sentinels.RollingValue

	last, err := w.pollCountdown(ctx, budget, func(s string) bool {
		return s == want
	})
	if err != nil {
		return w.fail(PhaseRolling, budget, last, err)
	}
	w.confirm(PhaseRolling, time.Since(start))
	return nil
}

// AwaitAnnouncementStart waits for the rolled result to move into the history,
// then lets the reveal animation settle before anything is read.
func (w *PhaseWaiter) AwaitAnnouncementStart(ctx context.Context) error {
	w.current = PhaseUnknown
	start := time.Now()
	budget := w.opts.Budgets.Rolling

	if err := w.d.WaitAttached(ctx, w.opts.Selectors.HistoryMove, budget); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = errPollTimeout
		}
		return w.fail(PhaseAnnouncing, budget, "", err)
	}
	waited := time.Since(start)
	if err := w.d.Sleep(ctx, w.opts.SettleMargin); err != nil {
		return fmt.Errorf("settling after %s: %w", PhaseAnnouncing, err)
	}
	w.confirm(PhaseAnnouncing, waited)
	return nil
}

func (w *PhaseWaiter) pollCountdown(ctx context.Context, budget time.Duration, match func(string) bool) (string, error) {
	var last string
	err := Poll(ctx, w.opts.PollInterval, budget, func(ctx context.Context) (bool, error) {
		v, err := w.probe.Read(ctx, w.countdown, Text())
		if errors.Is(err, ErrProbeUnavailable) {
			// The countdown is re-rendered between phases.
			return false, nil
		}
		if err != nil {
			return false, err
		}
		last = strings.TrimSpace(v.Raw)
		return match(last), nil
	})
	return last, err
}

func (w *PhaseWaiter) fail(p Phase, budget time.Duration, last string, err error) error {
	if errors.Is(err, errPollTimeout) {
		w.log.Warn("phase boundary not observed",
			zap.Stringer("phase", p),
			zap.Duration("budget", budget),
			zap.String("lastObserved", last))
		return &PhaseTimeoutError{Phase: p, Budget: budget, LastObserved: last}
	}
	return fmt.Errorf("waiting for %s: %w", p, err)
}

func (w *PhaseWaiter) confirm(p Phase, waited time.Duration) {
	w.current = p
	w.stats.Record(p, waited)
	w.log.Debug("phase confirmed", zap.Stringer("phase", p), zap.Duration("waited", waited))
}
