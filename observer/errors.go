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
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoElement is returned by a Driver when a referenced element does not exist.
	ErrNoElement = errors.New("no such element")

	ErrProbeUnavailable  = errors.New("probe unavailable")
	ErrPhaseTimeout      = errors.New("phase timeout")
	ErrUnresolvedOutcome = errors.New("unresolved outcome")
	ErrStateMismatch     = errors.New("state assertion failure")

	// ErrMissingOutcome is returned when the announcing state is requested without a winner.
	ErrMissingOutcome = errors.New("announcing state requires an outcome")
)

// ProbeUnavailableError reports a read against an element that is not in the page.
type ProbeUnavailableError struct {
	Ref  ElementRef
	Kind ProbeKind
	Err  error
}

func (e *ProbeUnavailableError) Error() string {
	return fmt.Sprintf("probe unavailable: %s of %s: %v", e.Kind, e.Ref, e.Err)
}

func (e *ProbeUnavailableError) Is(target error) bool { return target == ErrProbeUnavailable }

func (e *ProbeUnavailableError) Unwrap() error { return e.Err }

// PhaseTimeoutError reports that a phase boundary was not observed within its budget.
type PhaseTimeoutError struct {
	Phase  Phase
	Budget time.Duration
	// LastObserved is the last value read while waiting, if any.
	LastObserved string
}

func (e *PhaseTimeoutError) Error() string {
	if e.LastObserved != "" {
		return fmt.Sprintf("timeout after %s waiting for %s (last observed %q)", e.Budget, e.Phase, e.LastObserved)
	}
	return fmt.Sprintf("timeout after %s waiting for %s", e.Budget, e.Phase)
}

func (e *PhaseTimeoutError) Is(target error) bool { return target == ErrPhaseTimeout }

// UnresolvedOutcomeError reports that no winner could be read from the history.
type UnresolvedOutcomeError struct {
	Reason string
	Raw    string
}

func (e *UnresolvedOutcomeError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("unresolved outcome: %s (raw %q)", e.Reason, e.Raw)
	}
	return "unresolved outcome: " + e.Reason
}

func (e *UnresolvedOutcomeError) Is(target error) bool { return target == ErrUnresolvedOutcome }

// StateAssertionError reports a control whose observed state disagrees with the phase.
type StateAssertionError struct {
	Phase    Phase
	Control  string
	Field    string
	Expected string
	Observed string
}

func (e *StateAssertionError) Error() string {
	return fmt.Sprintf("%s: control %s: %s = %s, want %s", e.Phase, e.Control, e.Field, e.Observed, e.Expected)
}

func (e *StateAssertionError) Is(target error) bool { return target == ErrStateMismatch }
