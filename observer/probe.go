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
	"strconv"
	"strings"
	"time"
)

// Driver is the narrow view of the browser the observer needs. Implementations
// report a missing element with ErrNoElement.
type Driver interface {
	Count(ctx context.Context, ref ElementRef) (int, error)
	Text(ctx context.Context, ref ElementRef) (string, error)
	Attribute(ctx context.Context, ref ElementRef, name string) (value string, present bool, err error)
	ComputedStyle(ctx context.Context, ref ElementRef, name string) (string, error)
	WaitAttached(ctx context.Context, selector string, timeout time.Duration) error
	Sleep(ctx context.Context, d time.Duration) error
}

// Step is one level of an ElementRef: the Index-th match of Selector within the
// element selected by the previous step. Negative indexes count from the end.
type Step struct {
	Selector string `json:"sel"`
	Index    int    `json:"nth"`
}

// ElementRef addresses an element by a chain of scoped selectors.
type ElementRef struct {
	Steps []Step
}

// Locate selects the first element matching selector.
func Locate(selector string) ElementRef {
	return ElementRef{Steps: []Step{{Selector: selector}}}
}

// Find scopes a new selector inside the referenced element.
func (r ElementRef) Find(selector string) ElementRef {
	steps := make([]Step, len(r.Steps), len(r.Steps)+1)
	copy(steps, r.Steps)
	return ElementRef{Steps: append(steps, Step{Selector: selector})}
}

// Nth re-indexes the final step. -1 is the last match.
func (r ElementRef) Nth(i int) ElementRef {
	if len(r.Steps) == 0 {
		return r
	}
	steps := append([]Step(nil), r.Steps...)
	steps[len(steps)-1].Index = i
	return ElementRef{Steps: steps}
}

func (r ElementRef) First() ElementRef { return r.Nth(0) }
func (r ElementRef) Last() ElementRef  { return r.Nth(-1) }

func (r ElementRef) String() string {
	parts := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		parts[i] = fmt.Sprintf("%s[%d]", s.Selector, s.Index)
	}
	return strings.Join(parts, " >> ")
}

type probeKindType int

const (
	kindText probeKindType = iota
	kindAttribute
	kindStyle
)

// ProbeKind selects what a probe reads from an element.
type ProbeKind struct {
	kind probeKindType
	Name string
}

func Text() ProbeKind                { return ProbeKind{kind: kindText} }
func Attribute(name string) ProbeKind { return ProbeKind{kind: kindAttribute, Name: name} }
func Style(name string) ProbeKind     { return ProbeKind{kind: kindStyle, Name: name} }

func (k ProbeKind) String() string {
	switch k.kind {
	case kindAttribute:
		return "attribute " + k.Name
	case kindStyle:
		return "style " + k.Name
	}
	return "text"
}

// Scalar is a single value read from the page. Present is false only for an
// attribute the element does not carry.
type Scalar struct {
	Raw     string
	Present bool
}

// Float parses the value as a number, as computed styles are reported.
func (s Scalar) Float() (float64, error) {
	if !s.Present {
		return 0, errors.New("value not present")
	}
	return strconv.ParseFloat(strings.TrimSpace(s.Raw), 64)
}

// Probe performs single, unretried reads through a Driver.
type Probe struct {
	d Driver
}

func NewProbe(d Driver) *Probe {
	return &Probe{d: d}
}

// Read returns the current value of kind on ref.
func (p *Probe) Read(ctx context.Context, ref ElementRef, kind ProbeKind) (Scalar, error) {
	var (
		v       string
		present = true
		err     error
	)
	switch kind.kind {
	case kindText:
		v, err = p.d.Text(ctx, ref)
	case kindAttribute:
		v, present, err = p.d.Attribute(ctx, ref, kind.Name)
	case kindStyle:
		v, err = p.d.ComputedStyle(ctx, ref, kind.Name)
	default:
		return Scalar{}, fmt.Errorf("unknown probe kind %d", kind.kind)
	}
	if errors.Is(err, ErrNoElement) {
		return Scalar{}, &ProbeUnavailableError{Ref: ref, Kind: kind, Err: err}
	}
	if err != nil {
		return Scalar{}, fmt.Errorf("read %s of %s: %w", kind, ref, err)
	}
	return Scalar{Raw: v, Present: present}, nil
}

// Count returns how many elements match the final step of ref.
func (p *Probe) Count(ctx context.Context, ref ElementRef) (int, error) {
	n, err := p.d.Count(ctx, ref)
	if errors.Is(err, ErrNoElement) {
		// A missing scope means nothing can match inside it.
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", ref, err)
	}
	return n, nil
}
