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
	"math"
	"strconv"

	"go.uber.org/zap"
)

// Float comparisons allow for the rounding in a literal tolerance like 0.2.
const toleranceSlack = 1e-9

// WithinTolerance reports whether observed is at most tol away from expected.
func WithinTolerance(observed, expected, tol float64) bool {
	return math.Abs(observed-expected) <= tol+toleranceSlack
}

// StateVerifier checks the bet buttons against the state the phase demands.
type StateVerifier struct {
	probe *Probe
	opts  Options
	log   *zap.Logger
}

func NewStateVerifier(d Driver, opts Options, logger *zap.Logger) *StateVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateVerifier{probe: NewProbe(d), opts: opts.clone(), log: logger}
}

// Button returns the reference of the i-th bet button.
func (v *StateVerifier) Button(i int) ElementRef {
	return Locate(v.opts.Selectors.BetOptions).Nth(i).Find(v.opts.Selectors.Button)
}

// Observe reads the rendered state of every control.
func (v *StateVerifier) Observe(ctx context.Context) (map[Outcome]ControlState, error) {
	states := make(map[Outcome]ControlState, len(v.opts.Controls))
	for i, c := range v.opts.Controls {
		st, _, err := v.read(ctx, PhaseUnknown, c, v.Button(i))
		if err != nil {
			return nil, err
		}
		states[c] = st
	}
	return states, nil
}

// AssertState fails on the first control whose enabled flag differs from the
// expected one, or whose emphasis is further than the tolerance from it.
func (v *StateVerifier) AssertState(ctx context.Context, phase Phase, outcome Outcome) error {
	expected, err := ExpectedState(phase, outcome, v.opts.Controls)
	if err != nil {
		return err
	}
	for i, c := range v.opts.Controls {
		want := expected[c]
		got, rawDisable, err := v.read(ctx, phase, c, v.Button(i))
		if err != nil {
			return err
		}
		if got.Enabled != want.Enabled {
			return &StateAssertionError{
				Phase:    phase,
				Control:  string(c),
				Field:    "enabled",
				Expected: fmt.Sprintf("disable=%q", strconv.FormatBool(!want.Enabled)),
				Observed: rawDisable,
			}
		}
		if !WithinTolerance(got.Emphasis, want.Emphasis, v.opts.EmphasisTolerance) {
			return &StateAssertionError{
				Phase:    phase,
				Control:  string(c),
				Field:    "emphasis",
				Expected: fmt.Sprintf("%g±%g", want.Emphasis, v.opts.EmphasisTolerance),
				Observed: strconv.FormatFloat(got.Emphasis, 'g', -1, 64),
			}
		}
	}
	v.log.Debug("state verified", zap.Stringer("phase", phase), zap.String("outcome", string(outcome)))
	return nil
}

// read returns the control state along with a description of the raw disable
// attribute for error reports.
func (v *StateVerifier) read(ctx context.Context, phase Phase, c Outcome, ref ElementRef) (ControlState, string, error) {
	attr, err := v.probe.Read(ctx, ref, Attribute(v.opts.Selectors.DisableAttribute))
	if err != nil {
		return ControlState{}, "", err
	}
	style, err := v.probe.Read(ctx, ref, Style(v.opts.Selectors.EmphasisProperty))
	if err != nil {
		return ControlState{}, "", err
	}

	raw := "<missing>"
	var enabled bool
	if attr.Present {
		raw = fmt.Sprintf("disable=%q", attr.Raw)
		enabled = attr.Raw == "false"
	}
	if !attr.Present || (attr.Raw != "false" && attr.Raw != "true") {
		// Neither value can be trusted as enabled or disabled.
		return ControlState{}, raw, &StateAssertionError{
			Phase:    phase,
			Control:  string(c),
			Field:    "enabled",
			Expected: `disable="true" or disable="false"`,
			Observed: raw,
		}
	}

	emphasis, err := style.Float()
	if err != nil {
		return ControlState{}, raw, &StateAssertionError{
			Phase:    phase,
			Control:  string(c),
			Field:    "emphasis",
			Expected: "a number",
			Observed: fmt.Sprintf("%q", style.Raw),
		}
	}
	return ControlState{Enabled: enabled, Emphasis: emphasis}, raw, nil
}
