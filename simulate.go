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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/spf13/cobra"
	"github.com/ttbt-io/wheelcheck/wheelsim"
	"go.uber.org/zap"
)

var (
	simAddr    string
	simDataDir string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Serve a simulated wheel page to watch locally",
	Long: `simulate serves a wheel page that cycles through betting, rolling and
announcing with the phase lengths from the simulator section of --config.`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simAddr, "addr", ":8080", "The TCP address to listen to")
	simulateCmd.Flags().StringVar(&simDataDir, "data-dir", "data", "Directory for the round history")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	store := storage.New(simDataDir, nil)
	store.EnableCompression(true)

	server, err := wheelsim.StartServer(wheelsim.Options{
		Addr:      simAddr,
		DataDir:   simDataDir,
		Storage:   store,
		Durations: cfg.Simulator,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	logger.Info("Simulator started", zap.String("url", server.URL()))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down simulator")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
