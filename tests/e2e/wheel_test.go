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

package e2e

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ttbt-io/wheelcheck/browser"
	"github.com/ttbt-io/wheelcheck/observer"
	"github.com/ttbt-io/wheelcheck/wheelsim"
	"go.uber.org/zap/zaptest"
)

func always(o observer.Outcome) wheelsim.Picker {
	return func() observer.Outcome { return o }
}

func openWheel(t *testing.T, pick wheelsim.Picker, timeout time.Duration) context.Context {
	t.Helper()
	baseURL := startSimulator(t, pick)
	ctx := newTab(t, timeout)
	if err := browser.GoTo(ctx, baseURL+"/", 5*time.Second); err != nil {
		t.Fatalf("Failed to open wheel: %v", err)
	}
	if err := chromedp.Run(ctx, browser.NoTransitions()); err != nil {
		t.Fatalf("Failed to disable transitions: %v", err)
	}
	return ctx
}

func newObserver(t *testing.T) *observer.Observer {
	t.Helper()
	obs, err := observer.New(browser.Driver{}, shortOptions(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("observer.New: %v", err)
	}
	return obs
}

func TestObserverFollowsWheel(t *testing.T) {
	if *withChromeDP == "" {
		t.Skip("--with-chromedp not set")
	}
	ctx := openWheel(t, always(observer.OutcomeT), 60*time.Second)
	obs := newObserver(t)

	reports, err := obs.Run(ctx, 2)
	if err != nil {
		browser.SaveScreenshot(ctx, t.TempDir(), "failed-run", zaptest.NewLogger(t))
		t.Fatalf("Run: %v", err)
	}
	VerifyTranscript(t, Transcript(reports, true), "two_cycles.golden")

	for _, p := range []observer.Phase{observer.PhaseBetting, observer.PhaseRolling, observer.PhaseAnnouncing} {
		if h := obs.Stats().Phases[p]; h == nil || h.Count == 0 {
			t.Errorf("no wait recorded for %s", p)
		}
	}
}

func TestObserverResolvesAnnouncedOutcome(t *testing.T) {
	if *withChromeDP == "" {
		t.Skip("--with-chromedp not set")
	}
	ctx := openWheel(t, always(observer.OutcomeBonus), 30*time.Second)
	obs := newObserver(t)

	if _, err := obs.Resolver.ResolveCurrentOutcome(ctx); !errors.Is(err, observer.ErrUnresolvedOutcome) {
		t.Errorf("ResolveCurrentOutcome before announcing = %v, want ErrUnresolvedOutcome", err)
	}
	for _, await := range []func(context.Context) error{
		obs.Waiter.AwaitBettingStart,
		obs.Waiter.AwaitRollingStart,
		obs.Waiter.AwaitAnnouncementStart,
	} {
		if err := await(ctx); err != nil {
			t.Fatalf("waiting: %v", err)
		}
	}
	got, err := obs.Resolver.ResolveCurrentOutcome(ctx)
	if err != nil {
		t.Fatalf("ResolveCurrentOutcome: %v", err)
	}
	if got != observer.OutcomeBonus {
		t.Errorf("ResolveCurrentOutcome = %q, want bonus", got)
	}
	if err := obs.Verifier.AssertState(ctx, observer.PhaseAnnouncing, got); err != nil {
		t.Errorf("AssertState(ANNOUNCING, bonus): %v", err)
	}
}

func TestVerifierCatchesDimmedControl(t *testing.T) {
	if *withChromeDP == "" {
		t.Skip("--with-chromedp not set")
	}
	ctx := openWheel(t, always(observer.OutcomeCT), 30*time.Second)
	obs := newObserver(t)

	if err := obs.Waiter.AwaitBettingStart(ctx); err != nil {
		t.Fatalf("AwaitBettingStart: %v", err)
	}
	if err := chromedp.Run(ctx, chromedp.Evaluate(`document.querySelector('.bet-bonus button').style.opacity = '0.3'`, nil)); err != nil {
		t.Fatalf("dimming bonus: %v", err)
	}

	err := obs.Verifier.AssertState(ctx, observer.PhaseBetting, "")
	var mismatch *observer.StateAssertionError
	if !errors.As(err, &mismatch) {
		t.Fatalf("AssertState = %v, want a StateAssertionError", err)
	}
	if mismatch.Control != "bonus" || mismatch.Field != "emphasis" {
		t.Errorf("mismatch on %s.%s, want bonus.emphasis", mismatch.Control, mismatch.Field)
	}
}

func TestDriverReadsPage(t *testing.T) {
	if *withChromeDP == "" {
		t.Skip("--with-chromedp not set")
	}
	ctx := openWheel(t, always(observer.OutcomeT), 30*time.Second)
	opts := shortOptions()
	d := browser.Driver{}
	p := observer.NewProbe(d)

	if err := d.WaitAttached(ctx, `#bets button[disable]`, 5*time.Second); err != nil {
		t.Fatalf("WaitAttached: %v", err)
	}
	n, err := p.Count(ctx, observer.Locate(opts.Selectors.BetOptions))
	if err != nil || n != 3 {
		t.Errorf("Count(bet options) = %d, %v; want 3", n, err)
	}

	button := observer.Locate(opts.Selectors.BetOptions).Nth(1).Find(opts.Selectors.Button)
	if v, err := p.Read(ctx, button, observer.Text()); err != nil || v.Raw != "Bonus" {
		t.Errorf("Read(text) = %+v, %v; want Bonus", v, err)
	}
	if v, err := p.Read(ctx, button, observer.Attribute("data-missing")); err != nil || v.Present {
		t.Errorf("Read(missing attribute) = %+v, %v; want absent", v, err)
	}
	if v, err := p.Read(ctx, button, observer.Style("opacity")); err != nil || (v.Raw != "1" && v.Raw != "0.5") {
		t.Errorf("Read(opacity) = %+v, %v", v, err)
	}

	missing := observer.Locate(opts.Selectors.BetOptions).Nth(7).Find(opts.Selectors.Button)
	if _, err := p.Read(ctx, missing, observer.Text()); !errors.Is(err, observer.ErrProbeUnavailable) {
		t.Errorf("Read(missing element) = %v, want ErrProbeUnavailable", err)
	}
	if n, err := p.Count(ctx, missing); err != nil || n != 0 {
		t.Errorf("Count(missing) = %d, %v; want 0", n, err)
	}

	err = d.WaitAttached(ctx, `.never-rendered`, 200*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitAttached(.never-rendered) = %v, want DeadlineExceeded", err)
	}
}
