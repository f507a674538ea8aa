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

package e2e

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ttbt-io/wheelcheck/observer"
	"github.com/ttbt-io/wheelcheck/wheelsim"
	"go.uber.org/zap/zaptest"
)

var (
	withChromeDP = flag.String("with-chromedp", "", "The url of the remote debugging port")
	simHost      = flag.String("sim-host", "localhost", "Host name under which the browser reaches the simulator")
)

func TestMain(m *testing.M) {
	flag.Parse()
	exitCode := m.Run()
	os.Exit(exitCode)
}

// shortDurations keep a full cycle under ten seconds.
var shortDurations = wheelsim.Durations{
	Betting:    4 * time.Second,
	Rolling:    2 * time.Second,
	Announcing: 2 * time.Second,
}

// shortOptions are observer options matching shortDurations.
func shortOptions() observer.Options {
	opts := observer.DefaultOptions()
	opts.Budgets = observer.Budgets{
		Betting:    shortDurations.Betting + 500*time.Millisecond,
		Rolling:    shortDurations.Rolling + 500*time.Millisecond,
		Announcing: shortDurations.Announcing + 500*time.Millisecond,
	}
	opts.Sentinels.BettingPrefix = "3."
	opts.SettleMargin = 300 * time.Millisecond
	return opts
}

func startSimulator(t *testing.T, pick wheelsim.Picker) string {
	l, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	server, err := wheelsim.StartServer(wheelsim.Options{
		Listener:  l,
		Storage:   storage.New(t.TempDir(), nil),
		Durations: shortDurations,
		Pick:      pick,
		Logger:    zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("Failed to start simulator: %v", err)
	}
	t.Cleanup(func() {
		sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(sdCtx)
	})

	_, port, _ := net.SplitHostPort(l.Addr().String())
	if err := waitForServer(fmt.Sprintf("http://localhost:%s/", port), 5*time.Second); err != nil {
		t.Fatalf("Simulator failed to start: %v", err)
	}
	return fmt.Sprintf("http://%s:%s", *simHost, port)
}

func waitForServer(url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	for {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for server at %s", url)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// newTab opens a tab in the remote browser. Any console error or uncaught
// exception on the page fails the test.
func newTab(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := chromedp.NewRemoteAllocator(t.Context(), *withChromeDP)
	t.Cleanup(cancel)
	ctx, cancel = chromedp.NewContext(ctx,
		chromedp.WithErrorf(log.Printf),
		chromedp.WithLogf(log.Printf),
	)
	t.Cleanup(cancel)
	ctx, cancel = context.WithTimeout(ctx, timeout)
	t.Cleanup(cancel)

	chromedp.ListenTarget(ctx, func(ev any) {
		switch ev := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			if ev.Type == runtime.APITypeError {
				args := make([]string, len(ev.Args))
				for i, arg := range ev.Args {
					args[i] = string(arg.Value)
				}
				t.Errorf("JS CONSOLE ERROR: %s", strings.Join(args, " "))
			}
		case *runtime.EventExceptionThrown:
			t.Errorf("JS EXCEPTION: %s", ev.ExceptionDetails.Text)
		}
	})
	return ctx
}
