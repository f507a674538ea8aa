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

// Package wheelsim serves a simulated wheel game page whose markup and timing
// follow the live game closely enough for the observer to run against it.
package wheelsim

import (
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ttbt-io/wheelcheck/observer"
	"go.uber.org/zap"
)

// HistorySize is the number of past rounds shown on the page.
const HistorySize = 10

// Durations are the real lengths of the simulated phases.
type Durations struct {
	Betting    time.Duration `yaml:"betting"`
	Rolling    time.Duration `yaml:"rolling"`
	Announcing time.Duration `yaml:"announcing"`
}

// DefaultDurations match the live game.
func DefaultDurations() Durations {
	return Durations{
		Betting:    15 * time.Second,
		Rolling:    6 * time.Second,
		Announcing: 3 * time.Second,
	}
}

func (d Durations) of(p observer.Phase) time.Duration {
	switch p {
	case observer.PhaseBetting:
		return d.Betting
	case observer.PhaseRolling:
		return d.Rolling
	case observer.PhaseAnnouncing:
		return d.Announcing
	}
	return 0
}

// Round is a finished round.
type Round struct {
	ID      string           `json:"id"`
	Outcome observer.Outcome `json:"outcome"`
	At      time.Time        `json:"at"`
}

// State is what the page needs to render one phase.
type State struct {
	Phase       string             `json:"phase"`
	RoundID     string             `json:"roundId"`
	Outcome     observer.Outcome   `json:"outcome,omitempty"`
	RemainingMS int64              `json:"remainingMs"`
	History     []observer.Outcome `json:"history"`
}

// Picker chooses the outcome of a round.
type Picker func() observer.Outcome

// WeightedPicker draws ct and t seven times as often as bonus, like a wheel of
// fifteen slots.
func WeightedPicker(r *rand.Rand) Picker {
	return func() observer.Outcome {
		switch n := r.IntN(15); {
		case n == 0:
			return observer.OutcomeBonus
		case n <= 7:
			return observer.OutcomeCT
		default:
			return observer.OutcomeT
		}
	}
}

// Engine advances the phases on a timer and publishes every transition.
type Engine struct {
	durations Durations
	pick      Picker
	store     *RoundStore
	log       *zap.Logger

	mu        sync.Mutex
	phase     observer.Phase
	roundID   string
	outcome   observer.Outcome
	phaseEnds time.Time
	history   []Round
	subs      []func(State)
	started   bool
	stopped   bool

	stop chan struct{}
	done chan struct{}
}

// NewEngine restores the round history from store, if any. A nil pick uses
// WeightedPicker.
func NewEngine(d Durations, pick Picker, store *RoundStore, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pick == nil {
		pick = WeightedPicker(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	}
	e := &Engine{
		durations: d,
		pick:      pick,
		store:     store,
		log:       logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if store != nil {
		rounds, err := store.Load()
		if err != nil {
			return nil, err
		}
		e.history = rounds
	}
	return e, nil
}

// Subscribe registers fn to be called with the state of every new phase. fn runs
// on the engine goroutine and must not block.
func (e *Engine) Subscribe(fn func(State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, fn)
}

// Start runs the engine until Stop, beginning with a fresh betting phase.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.stopped {
		return
	}
	e.started = true
	go e.run()
}

// Stop halts the engine and waits for it to exit. It is safe to call twice,
// and on an engine that was never started.
func (e *Engine) Stop() {
	e.mu.Lock()
	started := e.started
	if !e.stopped {
		e.stopped = true
		close(e.stop)
	}
	e.mu.Unlock()
	if started {
		<-e.done
	}
}

func (e *Engine) run() {
	defer close(e.done)
	timer := time.NewTimer(e.enter(observer.PhaseBetting))
	defer timer.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-timer.C:
			e.mu.Lock()
			next := e.phase.Next()
			e.mu.Unlock()
			timer.Reset(e.enter(next))
		}
	}
}

// enter switches to phase p, notifies subscribers and returns how long p lasts.
func (e *Engine) enter(p observer.Phase) time.Duration {
	d := e.durations.of(p)

	e.mu.Lock()
	e.phase = p
	e.phaseEnds = time.Now().Add(d)
	var finished []Round
	switch p {
	case observer.PhaseBetting:
		e.roundID = uuid.NewString()
		e.outcome = ""
	case observer.PhaseRolling:
		e.outcome = e.pick()
	case observer.PhaseAnnouncing:
		e.history = append(e.history, Round{ID: e.roundID, Outcome: e.outcome, At: time.Now().UTC()})
		if n := len(e.history); n > HistorySize {
			e.history = append([]Round(nil), e.history[n-HistorySize:]...)
		}
		finished = append([]Round(nil), e.history...)
	}
	state := e.snapshotLocked()
	subs := slices.Clone(e.subs)
	e.mu.Unlock()

	e.log.Debug("Phase started",
		zap.Stringer("phase", p),
		zap.String("round", state.RoundID),
		zap.Duration("duration", d),
	)
	if finished != nil && e.store != nil {
		if err := e.store.Save(finished); err != nil {
			e.log.Error("Saving round history", zap.Error(err))
		}
	}
	for _, fn := range subs {
		fn(state)
	}
	return d
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() State {
	s := State{
		Phase:   e.phase.String(),
		RoundID: e.roundID,
		History: make([]observer.Outcome, len(e.history)),
	}
	if e.phase == observer.PhaseAnnouncing {
		s.Outcome = e.outcome
	}
	if !e.phaseEnds.IsZero() {
		s.RemainingMS = max(0, time.Until(e.phaseEnds).Milliseconds())
	}
	for i, r := range e.history {
		s.History[i] = r.Outcome
	}
	return s
}

// History returns the finished rounds, oldest first.
func (e *Engine) History() []Round {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Round(nil), e.history...)
}
