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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/ttbt-io/wheelcheck/browser"
	"github.com/ttbt-io/wheelcheck/observer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// cycleTimeout bounds one cycle of a watch run when --timeout is not set.
const cycleTimeout = 60 * time.Second

var (
	baseURL        string
	pagePath       string
	chromeURL      string
	cycles         int
	sessions       int
	watchTimeout   time.Duration
	screenshotDir  string
	navigateIdle   time.Duration
	keepAnimations bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Observe wheel cycles and verify the bet controls",
	Long: `watch opens the wheel page in one tab per session, waits for each phase to
begin and checks the bet controls after every transition. It runs --cycles full
cycles and then confirms that the next betting phase opens correctly.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&baseURL, "base-url", os.Getenv("BASE_URL"), "Base URL of the wheel site (env BASE_URL)")
	f.StringVar(&pagePath, "path", "/", "Path of the wheel page")
	f.StringVar(&chromeURL, "chrome-url", os.Getenv("CHROME_URL"), "DevTools websocket URL of a running Chrome; a local headless one is started when empty (env CHROME_URL)")
	f.IntVar(&cycles, "cycles", 1, "Number of full cycles to verify")
	f.IntVar(&sessions, "sessions", 1, "Number of independent tabs to watch concurrently")
	f.DurationVar(&watchTimeout, "timeout", 0, "Overall time limit (default 60s per cycle)")
	f.StringVar(&screenshotDir, "screenshots", "", "Directory for a screenshot of every failed session")
	f.DurationVar(&navigateIdle, "navigate-idle", 10*time.Second, "Longest wait for the page's network to go idle after loading")
	f.BoolVar(&keepAnimations, "keep-animations", false, "Leave CSS transitions on while reading control styles")
}

func runWatch(cmd *cobra.Command, args []string) error {
	// godotenv has run by now, so empty flags fall back to the environment again.
	if baseURL == "" {
		baseURL = os.Getenv("BASE_URL")
	}
	if chromeURL == "" {
		chromeURL = os.Getenv("CHROME_URL")
	}
	if baseURL == "" {
		return errors.New("--base-url or BASE_URL is required")
	}
	if cycles < 1 || sessions < 1 {
		return errors.New("--cycles and --sessions must be at least 1")
	}
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	timeout := watchTimeout
	if timeout <= 0 {
		timeout = time.Duration(cycles+1) * cycleTimeout
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	url := strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(pagePath, "/")
	logger.Info("Watching wheel",
		zap.String("url", url),
		zap.Int("cycles", cycles),
		zap.Int("sessions", sessions),
		zap.Duration("timeout", timeout),
	)

	var (
		mu    sync.Mutex
		stats = observer.NewWaitStats()
	)
	g, gctx := errgroup.WithContext(ctx)
	for range sessions {
		id := uuid.NewString()
		g.Go(func() error {
			s, err := watchSession(gctx, id, url, cfg.Observer)
			if s != nil {
				mu.Lock()
				stats.Merge(s)
				mu.Unlock()
			}
			if err != nil {
				return fmt.Errorf("session %s: %w", id, err)
			}
			return nil
		})
	}
	err = g.Wait()
	logStats(stats)
	if err != nil {
		return err
	}
	logger.Info("All sessions passed", zap.Int("sessions", sessions), zap.Int("cycles", cycles))
	return nil
}

// watchSession runs the observer in a tab of its own. The returned stats are set
// even when err is not.
func watchSession(ctx context.Context, id, url string, opts observer.Options) (*observer.WaitStats, error) {
	log := logger.With(zap.String("session", id))

	tabCtx, cancel := browser.NewSession(ctx, chromeURL, log.Named("chromedp"))
	defer cancel()
	browser.LogConsole(tabCtx, log, nil)

	if err := browser.GoTo(tabCtx, url, navigateIdle); err != nil {
		return nil, fmt.Errorf("opening %s: %w", url, err)
	}
	if !keepAnimations {
		if err := chromedp.Run(tabCtx, browser.NoTransitions()); err != nil {
			return nil, fmt.Errorf("disabling transitions: %w", err)
		}
	}

	obs, err := observer.New(browser.Driver{}, opts, log)
	if err != nil {
		return nil, err
	}
	reports, err := obs.Run(tabCtx, cycles)
	for i, r := range reports {
		log.Info("Cycle verified", zap.Int("cycle", i+1), zap.String("outcome", string(r.Outcome)))
	}
	if err != nil {
		log.Error("Verification failed", zap.Error(err))
		if screenshotDir != "" && tabCtx.Err() == nil {
			if _, serr := browser.SaveScreenshot(tabCtx, screenshotDir, id, log); serr != nil {
				log.Warn("Screenshot failed", zap.Error(serr))
			}
		}
	}
	return obs.Stats(), err
}

func logStats(stats *observer.WaitStats) {
	for _, p := range []observer.Phase{observer.PhaseBetting, observer.PhaseRolling, observer.PhaseAnnouncing} {
		h, ok := stats.Phases[p]
		if !ok {
			continue
		}
		logger.Info("Phase wait",
			zap.Stringer("phase", p),
			zap.Uint64("count", h.Count),
			zap.Duration("mean", h.Mean()),
			zap.Duration("p95", h.Quantile(0.95)),
		)
	}
}
