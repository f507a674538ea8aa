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

// Package observer synchronizes with a live wheel game UI and verifies that the
// betting controls match the current phase.
package observer

import "fmt"

// Phase is one of the mutually exclusive states of the wheel cycle.
type Phase int

const (
	// PhaseUnknown means no phase boundary has been confirmed yet.
	PhaseUnknown Phase = iota
	PhaseBetting
	PhaseRolling
	PhaseAnnouncing
)

func (p Phase) String() string {
	switch p {
	case PhaseBetting:
		return "BETTING"
	case PhaseRolling:
		return "ROLLING"
	case PhaseAnnouncing:
		return "ANNOUNCING"
	}
	return "UNKNOWN"
}

// Next returns the phase that follows p in the cycle.
func (p Phase) Next() Phase {
	switch p {
	case PhaseBetting:
		return PhaseRolling
	case PhaseRolling:
		return PhaseAnnouncing
	case PhaseAnnouncing:
		return PhaseBetting
	}
	return PhaseUnknown
}

// Outcome identifies the winning option of a round.
type Outcome string

// Betting options
const (
	OutcomeCT    Outcome = "ct"
	OutcomeBonus Outcome = "bonus"
	OutcomeT     Outcome = "t"
)

// Outcomes lists every valid outcome in the order the buttons are rendered.
var Outcomes = []Outcome{OutcomeCT, OutcomeBonus, OutcomeT}

// ParseOutcome validates an outcome identifier.
func ParseOutcome(s string) (Outcome, error) {
	for _, o := range Outcomes {
		if string(o) == s {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}

// Emphasis levels rendered on the bet buttons.
const (
	EmphasisFull   = 1.0
	EmphasisDimmed = 0.5
)

// ControlState is the rendered state of a single bet button.
type ControlState struct {
	Enabled  bool
	Emphasis float64
}

// ExpectedState returns the state every control must show for the given phase.
// The outcome is only consulted during PhaseAnnouncing.
func ExpectedState(phase Phase, outcome Outcome, controls []Outcome) (map[Outcome]ControlState, error) {
	states := make(map[Outcome]ControlState, len(controls))
	switch phase {
	case PhaseBetting:
		for _, c := range controls {
			states[c] = ControlState{Enabled: true, Emphasis: EmphasisFull}
		}
	case PhaseRolling:
		for _, c := range controls {
			states[c] = ControlState{Enabled: false, Emphasis: EmphasisDimmed}
		}
	case PhaseAnnouncing:
		if outcome == "" {
			return nil, ErrMissingOutcome
		}
		for _, c := range controls {
			emphasis := EmphasisDimmed
			if c == outcome {
				emphasis = EmphasisFull
			}
			states[c] = ControlState{Enabled: false, Emphasis: emphasis}
		}
	default:
		return nil, fmt.Errorf("no expected state for phase %s", phase)
	}
	return states, nil
}
