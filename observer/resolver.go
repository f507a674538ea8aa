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
	"strings"

	"go.uber.org/zap"
)

// DecodeOutcomeToken extracts the outcome from a history entry's class list. The
// outcome is the second dash-separated part of the first class, e.g. "coin-ct move".
func DecodeOutcomeToken(raw string) (Outcome, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return "", &UnresolvedOutcomeError{Reason: "empty class token", Raw: raw}
	}
	parts := strings.Split(fields[0], "-")
	if len(parts) < 2 || parts[1] == "" {
		return "", &UnresolvedOutcomeError{Reason: "class token has no outcome segment", Raw: raw}
	}
	o, err := ParseOutcome(parts[1])
	if err != nil {
		return "", &UnresolvedOutcomeError{Reason: err.Error(), Raw: raw}
	}
	return o, nil
}

// WinnerResolver reads the declared outcome of the round being announced.
//
// It always reads the most recent history entry. The history list is not a fixed
// length, so a fixed position would point at different rounds over time.
type WinnerResolver struct {
	probe  *Probe
	waiter *PhaseWaiter
	latest ElementRef
	log    *zap.Logger
}

func NewWinnerResolver(waiter *PhaseWaiter, logger *zap.Logger) *WinnerResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WinnerResolver{
		probe:  waiter.probe,
		waiter: waiter,
		latest: Locate(waiter.opts.Selectors.HistoryEntry).Last(),
		log:    logger,
	}
}

// ResolveCurrentOutcome returns the winner of the round being announced. It refuses
// to answer unless ANNOUNCING has been confirmed, since the newest history entry
// belongs to the previous round until then.
func (r *WinnerResolver) ResolveCurrentOutcome(ctx context.Context) (Outcome, error) {
	if p := r.waiter.Current(); p != PhaseAnnouncing {
		return "", &UnresolvedOutcomeError{Reason: fmt.Sprintf("phase is %s, not %s", p, PhaseAnnouncing)}
	}
	n, err := r.probe.Count(ctx, r.latest)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", &UnresolvedOutcomeError{Reason: "result history is empty"}
	}
	v, err := r.probe.Read(ctx, r.latest, Attribute("class"))
	if err != nil {
		return "", err
	}
	o, err := DecodeOutcomeToken(v.Raw)
	if err != nil {
		return "", err
	}
	r.log.Debug("outcome resolved", zap.String("outcome", string(o)), zap.Int("history", n))
	return o, nil
}
