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
	"time"

	"go.uber.org/zap"
)

// Observation is one confirmed phase boundary.
type Observation struct {
	Phase  Phase
	Waited time.Duration
}

// CycleReport describes one full BETTING → ROLLING → ANNOUNCING cycle.
type CycleReport struct {
	Observations []Observation
	Outcome      Outcome
}

// Phases returns the observed phases in order.
func (r CycleReport) Phases() []Phase {
	phases := make([]Phase, len(r.Observations))
	for i, o := range r.Observations {
		phases[i] = o.Phase
	}
	return phases
}

// Observer drives the phase cycle and verifies the controls after each boundary.
// An Observer owns its UI session and must not be shared between goroutines.
type Observer struct {
	Waiter   *PhaseWaiter
	Resolver *WinnerResolver
	Verifier *StateVerifier

	log *zap.Logger
}

// New validates opts and assembles an Observer on top of d.
func New(d Driver, opts Options, logger *zap.Logger) (*Observer, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	waiter := NewPhaseWaiter(d, opts, logger.Named("waiter"))
	return &Observer{
		Waiter:   waiter,
		Resolver: NewWinnerResolver(waiter, logger.Named("resolver")),
		Verifier: NewStateVerifier(d, opts, logger.Named("verifier")),
		log:      logger,
	}, nil
}

// Stats returns the recorded phase wait durations.
func (o *Observer) Stats() *WaitStats { return o.Waiter.Stats() }

// RunCycle waits for betting to open and follows the wheel through one full cycle,
// asserting the controls at every phase.
func (o *Observer) RunCycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport

	steps := []struct {
		phase Phase
		await func(context.Context) error
	}{
		{PhaseBetting, o.Waiter.AwaitBettingStart},
		{PhaseRolling, o.Waiter.AwaitRollingStart},
		{PhaseAnnouncing, o.Waiter.AwaitAnnouncementStart},
	}
	for _, step := range steps {
		start := time.Now()
		if err := step.await(ctx); err != nil {
			return report, err
		}
		report.Observations = append(report.Observations, Observation{Phase: step.phase, Waited: time.Since(start)})

		var outcome Outcome
		if step.phase == PhaseAnnouncing {
			var err error
			if outcome, err = o.Resolver.ResolveCurrentOutcome(ctx); err != nil {
				return report, err
			}
			report.Outcome = outcome
		}
		if err := o.Verifier.AssertState(ctx, step.phase, outcome); err != nil {
			return report, err
		}
	}
	o.log.Debug("cycle verified", zap.String("outcome", string(report.Outcome)))
	return report, nil
}

// Run verifies n consecutive cycles, then confirms that betting opens again with the
// controls re-enabled. On failure the rendered control states are logged.
func (o *Observer) Run(ctx context.Context, n int) ([]CycleReport, error) {
	reports, err := o.run(ctx, n)
	if err != nil && ctx.Err() == nil {
		o.logControls(ctx)
	}
	return reports, err
}

func (o *Observer) run(ctx context.Context, n int) ([]CycleReport, error) {
	reports := make([]CycleReport, 0, n)
	for i := 0; i < n; i++ {
		r, err := o.RunCycle(ctx)
		if err != nil {
			return reports, fmt.Errorf("cycle %d: %w", i+1, err)
		}
		reports = append(reports, r)
	}
	if err := o.Waiter.AwaitBettingStart(ctx); err != nil {
		return reports, fmt.Errorf("closing betting phase: %w", err)
	}
	if err := o.Verifier.AssertState(ctx, PhaseBetting, ""); err != nil {
		return reports, fmt.Errorf("closing betting phase: %w", err)
	}
	return reports, nil
}

func (o *Observer) logControls(ctx context.Context) {
	states, err := o.Verifier.Observe(ctx)
	if err != nil {
		o.log.Warn("reading controls", zap.Error(err))
		return
	}
	for _, c := range o.Verifier.opts.Controls {
		st := states[c]
		o.log.Info("control state",
			zap.String("control", string(c)),
			zap.Bool("enabled", st.Enabled),
			zap.Float64("emphasis", st.Emphasis))
	}
}
