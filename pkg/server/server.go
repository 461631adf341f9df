// Copyright 2026 SmartBin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package server

import (
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/smartbin/BinWorker/pkg/service"
)

var (
	healthInterval  = time.Second
	shutdownTimeout = 5 * time.Second
)

// Config for the servers.
type Config struct {
	// Host interface to listen on
	Host string
	// Port to listen on for HTTP requests
	HTTPPort int
	// Port to listen on for SSH requests (0 disables SSH)
	SSHPort int
	// Path of the SSH host key, created when missing
	SSHHostKey string
	// Port to listen on for GRPC requests
	GRPCPort int
}

// Server runs the HTTP, GRPC & SSH servers for the service.
type Server struct {
	Config
	log     zerolog.Logger
	ui      UI
	service service.Service
	health  *health.Server
	router  *echo.Echo
}

// UI provides a Bubble Tea model for every SSH session.
type UI interface {
	Handler(s ssh.Session) (tea.Model, []tea.ProgramOption)
}

// New configures a new Server.
func New(cfg Config, log zerolog.Logger, ui UI, svc service.Service) (*Server, error) {
	if svc == nil {
		return nil, errors.New("service is required")
	}
	s := &Server{
		Config:  cfg,
		log:     log.With().Str("component", "server").Logger(),
		ui:      ui,
		service: svc,
		health:  health.NewServer(),
	}
	s.router = s.newRouter()
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) newRouter() *echo.Echo {
	r := echo.New()
	r.HideBanner = true
	r.HidePort = true
	r.GET("/health", healthHandler)
	r.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	debug := r.Group("/debug/pprof")
	debug.GET("/cmdline", echo.WrapHandler(http.HandlerFunc(pprof.Cmdline)))
	debug.GET("/profile", echo.WrapHandler(http.HandlerFunc(pprof.Profile)))
	debug.GET("/symbol", echo.WrapHandler(http.HandlerFunc(pprof.Symbol)))
	debug.POST("/symbol", echo.WrapHandler(http.HandlerFunc(pprof.Symbol)))
	debug.GET("/trace", echo.WrapHandler(http.HandlerFunc(pprof.Trace)))
	debug.GET("/*", echo.WrapHandler(http.HandlerFunc(pprof.Index)))
	api := r.Group("/api/v1")
	api.GET("/status", s.handleStatus)
	api.GET("/bins", s.handleBins)
	api.POST("/bins/:bin/open", s.handleOpenBin)
	api.GET("/detections", s.handleDetections)
	api.GET("/events", s.handleEvents)
	api.POST("/trigger", s.handleTrigger)
	return r
}

// Run the server until the given context is canceled.
func (s *Server) Run(ctx context.Context) error {
	log := s.log

	// Prepare HTTP listener
	httpAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.HTTPPort))
	httpLis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on address %s", httpAddr)
	}
	httpSrv := http.Server{
		Handler: s.router,
	}

	// Prepare GRPC listener
	grpcAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.GRPCPort))
	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		httpLis.Close()
		return errors.Wrapf(err, "failed to listen on address %s", grpcAddr)
	}

	// Prepare GRPC server
	recoveryOpts := []grpc_recovery.Option{
		grpc_recovery.WithRecoveryHandler(func(p interface{}) error {
			log.Error().Interface("panic", p).Msg("GRPC handler panicked")
			return status.Errorf(codes.Internal, "internal error")
		}),
	}
	grpcSrv := grpc.NewServer(
		grpc_middleware.WithStreamServerChain(
			grpc_prometheus.StreamServerInterceptor,
			grpc_recovery.StreamServerInterceptor(recoveryOpts...),
		),
		grpc_middleware.WithUnaryServerChain(
			grpc_prometheus.UnaryServerInterceptor,
			grpc_recovery.UnaryServerInterceptor(recoveryOpts...),
		),
	)
	healthpb.RegisterHealthServer(grpcSrv, s.health)
	// Register reflection service on gRPC server.
	reflection.Register(grpcSrv)
	grpc_prometheus.Register(grpcSrv)

	// Prepare SSH server
	var sshServer *ssh.Server
	sshAddr := net.JoinHostPort(s.Host, strconv.Itoa(s.SSHPort))
	if s.SSHPort > 0 && s.ui != nil {
		sshServer, err = wish.NewServer(
			wish.WithAddress(sshAddr),
			// Creates an ED25519 keypair when the path does not exist yet.
			wish.WithHostKeyPath(s.SSHHostKey),
			// The last item in the chain is the first to be called.
			wish.WithMiddleware(
				bubbletea.Middleware(s.ui.Handler),
				activeterm.Middleware(),
				logging.Middleware(),
			),
		)
		if err != nil {
			httpLis.Close()
			grpcLis.Close()
			return errors.Wrap(err, "could not create SSH server")
		}
	}

	// Serve apis
	log.Debug().Str("address", httpAddr).Msg("Serving HTTP")
	go func() {
		if err := httpSrv.Serve(httpLis); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to serve HTTP server")
		}
		log.Debug().Str("address", httpAddr).Msg("Done Serving HTTP")
	}()
	log.Debug().Str("address", grpcAddr).Msg("Serving GRPC")
	go func() {
		if err := grpcSrv.Serve(grpcLis); err != nil {
			log.Error().Err(err).Msg("failed to serve GRPC server")
		}
		log.Debug().Str("address", grpcAddr).Msg("Done Serving GRPC")
	}()
	// Serve UI
	if sshServer != nil {
		log.Debug().Str("address", sshAddr).Msg("Serving SSH")
		go func() {
			if err := sshServer.ListenAndServe(); err != nil && err != ssh.ErrServerClosed {
				log.Error().Err(err).Msg("failed to serve SSH server")
			}
			log.Debug().Str("address", sshAddr).Msg("Done Serving SSH")
		}()
	}

	// Keep health in sync with the worker until context closed
	s.runHealth(ctx)

	log.Info().Msg("Closing servers")
	s.health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
	if sshServer != nil {
		sshServer.Shutdown(shutdownCtx)
	}
	return nil
}

// runHealth reports SERVING on the GRPC health service while the worker runs.
func (s *Server) runHealth(ctx context.Context) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		s.updateHealth()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) updateHealth() {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if s.service.Status().Running {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
}
