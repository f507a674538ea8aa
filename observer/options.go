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
	"slices"
	"time"
)

// Budgets are the longest each phase is promised to last. They bound waits and are
// never slept for.
type Budgets struct {
	Betting    time.Duration `yaml:"betting"`
	Rolling    time.Duration `yaml:"rolling"`
	Announcing time.Duration `yaml:"announcing"`
}

// Cycle is the worst case wait for any phase boundary: one full cycle.
func (b Budgets) Cycle() time.Duration {
	return b.Betting + b.Rolling + b.Announcing
}

// Selectors address the observable parts of the wheel page.
type Selectors struct {
	CentralText      string `yaml:"centralText"`
	BetOptions       string `yaml:"betOptions"`
	Button           string `yaml:"button"`
	HistoryEntry     string `yaml:"historyEntry"`
	HistoryMove      string `yaml:"historyMove"`
	DisableAttribute string `yaml:"disableAttribute"`
	EmphasisProperty string `yaml:"emphasisProperty"`
}

// Sentinels are the observable values that mark phase boundaries.
type Sentinels struct {
	// BettingPrefix is the countdown prefix shown right after betting opens.
	BettingPrefix string `yaml:"bettingPrefix"`
	// HeaderLabel must appear in the header while the countdown runs.
	HeaderLabel string `yaml:"headerLabel"`
	// RollingValue is the countdown's terminal value.
	RollingValue string `yaml:"rollingValue"`
}

// Options configures an Observer. It is copied on construction and never mutated.
type Options struct {
	Budgets           Budgets       `yaml:"budgets"`
	EmphasisTolerance float64       `yaml:"emphasisTolerance"`
	PollInterval      time.Duration `yaml:"pollInterval"`
	SettleMargin      time.Duration `yaml:"settleMargin"`
	Selectors         Selectors     `yaml:"selectors"`
	Sentinels         Sentinels     `yaml:"sentinels"`
	// Controls lists the outcome each bet button stands for, in document order.
	Controls []Outcome `yaml:"controls"`
}

// DefaultOptions matches the production wheel.
func DefaultOptions() Options {
	return Options{
		Budgets: Budgets{
			Betting:    15 * time.Second,
			Rolling:    6 * time.Second,
			Announcing: 3 * time.Second,
		},
		EmphasisTolerance: 0.2,
		PollInterval:      5 * time.Millisecond,
		SettleMargin:      time.Second,
		Selectors: Selectors{
			CentralText:      `div[class^="text-center"]`,
			BetOptions:       `div[class^="bet-buttons"] > div`,
			Button:           `button`,
			HistoryEntry:     `div[class="previous-rolls-item"] > div`,
			HistoryMove:      `[class*="previous-rolls-move"]`,
			DisableAttribute: "disable",
			EmphasisProperty: "opacity",
		},
		Sentinels: Sentinels{
			BettingPrefix: "13.",
			HeaderLabel:   "Rolling",
			RollingValue:  "0.00",
		},
		Controls: slices.Clone(Outcomes),
	}
}

// Validate reports the first unusable setting.
func (o Options) Validate() error {
	if o.Budgets.Betting <= 0 || o.Budgets.Rolling <= 0 || o.Budgets.Announcing <= 0 {
		return fmt.Errorf("budgets must be positive: %+v", o.Budgets)
	}
	if o.EmphasisTolerance <= 0 || o.EmphasisTolerance >= EmphasisFull-EmphasisDimmed {
		return fmt.Errorf("emphasis tolerance %v must be in (0, %v)", o.EmphasisTolerance, EmphasisFull-EmphasisDimmed)
	}
	if o.PollInterval < 0 || o.SettleMargin < 0 {
		return errors.New("poll interval and settle margin must not be negative")
	}
	if len(o.Controls) == 0 {
		return errors.New("at least one control is required")
	}
	seen := make(map[Outcome]bool)
	for _, c := range o.Controls {
		if _, err := ParseOutcome(string(c)); err != nil {
			return err
		}
		if seen[c] {
			return fmt.Errorf("duplicate control %q", c)
		}
		seen[c] = true
	}
	s := o.Selectors
	for name, v := range map[string]string{
		"centralText":      s.CentralText,
		"betOptions":       s.BetOptions,
		"button":           s.Button,
		"historyEntry":     s.HistoryEntry,
		"historyMove":      s.HistoryMove,
		"disableAttribute": s.DisableAttribute,
		"emphasisProperty": s.EmphasisProperty,
	} {
		if v == "" {
			return fmt.Errorf("selector %s is empty", name)
		}
	}
	if o.Sentinels.BettingPrefix == "" || o.Sentinels.RollingValue == "" {
		return errors.New("countdown sentinels must be set")
	}
	return nil
}

func (o Options) clone() Options {
	o.Controls = slices.Clone(o.Controls)
	return o
}
