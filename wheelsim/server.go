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

package wheelsim

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
	"go.uber.org/zap"
)

//go:embed page.html
var pageHTML []byte

//go:embed wheel.js
var wheelJS []byte

// Options represent server options.
type Options struct {
	Addr      string
	Listener  net.Listener
	DataDir   string
	Storage   *storage.Storage
	Durations Durations
	Pick      Picker
	Logger    *zap.Logger
}

// Server represents the running simulator.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	engine     *Engine
	hub        *Hub
	log        *zap.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

// StartServer starts the engine and serves the wheel page until Shutdown.
func StartServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Durations == (Durations{}) {
		opts.Durations = DefaultDurations()
	}
	if opts.Durations.Betting <= 0 || opts.Durations.Rolling <= 0 || opts.Durations.Announcing <= 0 {
		return nil, fmt.Errorf("phase durations must be positive: %+v", opts.Durations)
	}
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	if opts.Storage == nil {
		opts.Storage = storage.New(opts.DataDir, nil)
	}

	engine, err := NewEngine(opts.Durations, opts.Pick, NewRoundStore(opts.Storage), opts.Logger.Named("engine"))
	if err != nil {
		return nil, err
	}
	hub := newHub(engine.Snapshot, opts.Logger.Named("hub"))
	engine.Subscribe(hub.Publish)

	ln := opts.Listener
	if ln == nil {
		if ln, err = net.Listen("tcp", opts.Addr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		httpServer: &http.Server{
			Handler:           newHandler(engine, hub, opts.Logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: ln,
		engine:   engine,
		hub:      hub,
		log:      opts.Logger,
	}

	go hub.run()
	engine.Start()
	s.log.Info("Simulator listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, net.ErrClosed) && err != http.ErrServerClosed {
			s.log.Error("Server error", zap.Error(err))
		}
	}()
	return s, nil
}

// URL is the base URL of the wheel page.
func (s *Server) URL() string {
	return "http://" + s.listener.Addr().String()
}

// Engine returns the running engine.
func (s *Server) Engine() *Engine {
	return s.engine
}

// Shutdown stops the engine, disconnects every page and stops serving. Only the
// first call has any effect.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.engine.Stop()
		s.hub.shutdown()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.shutdownErr = fmt.Errorf("http: %w", err)
		}
	})
	return s.shutdownErr
}

func newHandler(engine *Engine, hub *Hub, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write(pageHTML)
	})
	mux.HandleFunc("GET /wheel.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write(wheelJS)
	})
	mux.HandleFunc("GET /ws", hub.serveWS)
	mux.HandleFunc("GET /api/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, engine.Snapshot())
	})
	mux.HandleFunc("GET /api/history", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, engine.History())
	})

	var handler http.Handler = mux
	handler = contentTypeMiddleware(handler)
	handler = cacheControlMiddleware(handler)
	handler = securityMiddleware(handler)
	handler = loggingMiddleware(logger, handler)
	return handler
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v)
}

// cacheControlMiddleware keeps the page and its state from being cached.
func cacheControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "private, no-cache, no-transform")
		next.ServeHTTP(w, r)
	})
}

// securityMiddleware adds HTTP security headers to responses.
func securityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; connect-src 'self'")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// contentTypeMiddleware ensures that files are served with the correct MIME type.
func contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		case strings.HasSuffix(r.URL.Path, ".js"):
			w.Header().Set("Content-Type", "application/javascript")
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs the method and URL path of every incoming HTTP request.
func loggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("Received request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}
