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

// Package browser implements the observer's Driver on top of chromedp.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ttbt-io/wheelcheck/observer"
)

// resolveJS walks the steps of an ElementRef. Every step after the first is scoped
// to the element the previous step selected. It returns {ok: false} when a scope is
// missing, otherwise evaluates the body with `el` (possibly null) and `matches`
// (all candidates of the final step) in scope.
const resolveJS = `(function(steps) {
	let scope = document, el = null, matches = [];
	for (let i = 0; i < steps.length; i++) {
		if (!scope) return {ok: false};
		matches = Array.from(scope.querySelectorAll(steps[i].sel));
		const n = steps[i].nth < 0 ? matches.length + steps[i].nth : steps[i].nth;
		el = (n >= 0 && n < matches.length) ? matches[n] : null;
		scope = el;
	}
	%s
})(%s)`

type evalResult struct {
	OK      bool   `json:"ok"`
	Present bool   `json:"present"`
	Value   string `json:"value"`
	Count   int    `json:"count"`
}

// Driver reads the page of the chromedp context it is called with.
type Driver struct{}

var _ observer.Driver = Driver{}

func (Driver) eval(ctx context.Context, ref observer.ElementRef, body string) (evalResult, error) {
	steps, err := json.Marshal(ref.Steps)
	if err != nil {
		return evalResult{}, err
	}
	var res evalResult
	if err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(resolveJS, body, steps), &res)); err != nil {
		return evalResult{}, fmt.Errorf("evaluate %s: %w", ref, err)
	}
	if !res.OK {
		return evalResult{}, observer.ErrNoElement
	}
	return res, nil
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (d Driver) Count(ctx context.Context, ref observer.ElementRef) (int, error) {
	res, err := d.eval(ctx, ref, `return {ok: true, count: matches.length};`)
	return res.Count, err
}

func (d Driver) Text(ctx context.Context, ref observer.ElementRef) (string, error) {
	res, err := d.eval(ctx, ref, `if (!el) return {ok: false};
	return {ok: true, present: true, value: el.textContent || ''};`)
	return res.Value, err
}

func (d Driver) Attribute(ctx context.Context, ref observer.ElementRef, name string) (string, bool, error) {
	res, err := d.eval(ctx, ref, fmt.Sprintf(`if (!el) return {ok: false};
	if (!el.hasAttribute(%[1]s)) return {ok: true, present: false};
	return {ok: true, present: true, value: el.getAttribute(%[1]s)};`, quote(name)))
	return res.Value, res.Present, err
}

func (d Driver) ComputedStyle(ctx context.Context, ref observer.ElementRef, name string) (string, error) {
	res, err := d.eval(ctx, ref, fmt.Sprintf(`if (!el) return {ok: false};
	return {ok: true, present: true, value: window.getComputedStyle(el).getPropertyValue(%s)};`, quote(name)))
	return res.Value, err
}

// WaitAttached re-checks on every DOM mutation until selector matches. On timeout
// the error matches context.DeadlineExceeded.
func (Driver) WaitAttached(ctx context.Context, selector string, timeout time.Duration) error {
	err := chromedp.Run(ctx, chromedp.Poll(
		fmt.Sprintf(`document.querySelector(%s) !== null`, quote(selector)),
		nil,
		chromedp.WithPollingMutation(),
		chromedp.WithPollingTimeout(timeout),
	))
	if errors.Is(err, chromedp.ErrPollingTimeout) {
		return fmt.Errorf("%s not attached after %s: %w", selector, timeout, context.DeadlineExceeded)
	}
	return err
}

func (Driver) Sleep(ctx context.Context, d time.Duration) error {
	return chromedp.Run(ctx, chromedp.Sleep(d))
}
