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

// Command screenshots captures the simulated wheel page once per phase, for
// comparing against the live page's markup.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/ttbt-io/wheelcheck/browser"
	"github.com/ttbt-io/wheelcheck/observer"
	"github.com/ttbt-io/wheelcheck/wheelsim"
	"go.uber.org/zap"
)

var (
	chromeURL = flag.String("chrome-url", "", "The url of the remote debugging port")
	outputDir = flag.String("output-dir", "/screenshots", "Directory to save screenshots")
	host      = flag.String("host", "localhost", "Host name under which the browser reaches the simulator")
)

var durations = wheelsim.Durations{
	Betting:    4 * time.Second,
	Rolling:    2 * time.Second,
	Announcing: 2 * time.Second,
}

func main() {
	flag.Parse()

	if *chromeURL == "" {
		log.Fatal("--chrome-url must be set")
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	dataDir, err := os.MkdirTemp("", "wheelsim")
	if err != nil {
		logger.Fatal("Failed to create data dir", zap.Error(err))
	}
	defer os.RemoveAll(dataDir)

	l, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		logger.Fatal("Failed to listen", zap.Error(err))
	}
	server, err := wheelsim.StartServer(wheelsim.Options{
		Listener:  l,
		Storage:   storage.New(dataDir, nil),
		Durations: durations,
		Logger:    logger.Named("wheelsim"),
	})
	if err != nil {
		logger.Fatal("Failed to start simulator", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()
	_, port, _ := net.SplitHostPort(l.Addr().String())
	baseURL := fmt.Sprintf("http://%s:%s/", *host, port)

	ctx, cancel := browser.NewSession(context.Background(), *chromeURL, logger.Named("chromedp"))
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	if err := capture(ctx, baseURL, logger); err != nil {
		logger.Error("Failed to generate screenshots", zap.Error(err))
		return
	}
	logger.Info("Screenshots generated successfully.")
}

func capture(ctx context.Context, baseURL string, logger *zap.Logger) error {
	if err := browser.GoTo(ctx, baseURL, 5*time.Second); err != nil {
		return err
	}

	opts := observer.DefaultOptions()
	opts.Budgets = observer.Budgets{
		Betting:    durations.Betting + time.Second,
		Rolling:    durations.Rolling + time.Second,
		Announcing: durations.Announcing + time.Second,
	}
	opts.Sentinels.BettingPrefix = "3."
	opts.SettleMargin = 300 * time.Millisecond
	waiter := observer.NewPhaseWaiter(browser.Driver{}, opts, logger.Named("waiter"))

	steps := []struct {
		name  string
		await func(context.Context) error
	}{
		{"betting", waiter.AwaitBettingStart},
		{"rolling", waiter.AwaitRollingStart},
		{"announcing", waiter.AwaitAnnouncementStart},
	}
	for _, s := range steps {
		if err := s.await(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		if _, err := browser.SaveScreenshot(ctx, *outputDir, "wheel-"+s.name, logger); err != nil {
			return err
		}
	}
	return nil
}
