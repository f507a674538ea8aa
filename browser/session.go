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

package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// NewSession returns a chromedp context with its own tab. With an empty remoteURL
// a local headless Chrome is started.
func NewSession(parent context.Context, remoteURL string, logger *zap.Logger) (context.Context, context.CancelFunc) {
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if remoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(parent, remoteURL)
	} else {
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(parent, chromedp.DefaultExecAllocatorOptions[:]...)
	}
	sugar := logger.Sugar()
	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(sugar.Errorf),
		chromedp.WithLogf(sugar.Debugf),
	)
	return ctx, func() {
		cancel()
		cancelAlloc()
	}
}

// LogConsole reports page console errors and uncaught exceptions. onError, if not
// nil, is called for each of them.
func LogConsole(ctx context.Context, logger *zap.Logger, onError func(msg string)) {
	chromedp.ListenTarget(ctx, func(ev any) {
		var msg string
		switch ev := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			if ev.Type != runtime.APITypeError {
				return
			}
			args := make([]string, len(ev.Args))
			for i, arg := range ev.Args {
				args[i] = string(arg.Value)
			}
			msg = strings.Join(args, " ")
			logger.Warn("JS console error", zap.String("message", msg))
		case *runtime.EventExceptionThrown:
			msg = ev.ExceptionDetails.Text
			logger.Warn("JS exception", zap.String("message", msg))
		default:
			return
		}
		if onError != nil {
			onError(msg)
		}
	})
}

// GoTo navigates to url and waits until the page's network has been idle, or
// until idleTimeout passes, whichever is first.
func GoTo(ctx context.Context, url string, idleTimeout time.Duration) error {
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan *page.EventLifecycleEvent, 64)
	chromedp.ListenTarget(lctx, func(ev any) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
			select {
			case events <- e:
			default:
			}
		}
	})

	var loaderID cdp.LoaderID
	err := chromedp.Run(ctx,
		page.Enable(),
		page.SetLifecycleEventsEnabled(true),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, id, errText, _, err := page.Navigate(url).Do(ctx)
			if err != nil {
				return err
			}
			if errText != "" {
				return fmt.Errorf("navigate to %s: %s", url, errText)
			}
			loaderID = id
			return nil
		}),
	)
	if err != nil {
		return err
	}

	timeout := time.NewTimer(idleTimeout)
	defer timeout.Stop()
	for {
		select {
		case e := <-events:
			if e.LoaderID == loaderID {
				return nil
			}
		case <-timeout.C:
			// Long-lived connections can keep the page from ever going idle.
			return chromedp.Run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SaveScreenshot writes a full-page PNG of the current tab to dir/name.png and
// returns its path.
func SaveScreenshot(ctx context.Context, dir, name string, logger *zap.Logger) (string, error) {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("screenshot dir: %w", err)
	}
	path := filepath.Join(dir, name+".png")
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	logger.Info("Saved screenshot", zap.String("path", path))
	return path, nil
}

const noTransitionsJS = `(() => {
	const style = document.createElement('style');
	style.textContent = '*,*::before,*::after{transition:none!important;animation:none!important;}';
	document.head.appendChild(style);
	return true;
})()`

// NoTransitions removes CSS transitions and animations from the page so the
// computed opacity of a control is its final value.
func NoTransitions() chromedp.Action {
	return chromedp.Evaluate(noTransitionsJS, nil)
}
