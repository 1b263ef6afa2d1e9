package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/appforge/appforge/engine/infra/server/routes"
	"github.com/appforge/appforge/pkg/config"
	"github.com/appforge/appforge/pkg/logger"
	"github.com/appforge/appforge/pkg/version"
)

const (
	httpReadTimeout       = 15 * time.Second
	httpIdleTimeout       = 60 * time.Second
	serverShutdownTimeout = 5 * time.Second
	hostAny               = "0.0.0.0"
	hostLoopback          = "127.0.0.1"
)

type Server struct {
	config       *config.Config
	serverConfig *config.ServerConfig
	state        *State
	router       *gin.Engine
	ctx          context.Context
	cancel       context.CancelFunc
	httpServer   *http.Server
}

func NewServer(ctx context.Context, state *State) (*Server, error) {
	if err := state.validate(); err != nil {
		return nil, err
	}
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("configuration missing from context; attach one with config.ContextWithConfig")
	}
	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		config:       cfg,
		serverConfig: &cfg.Server,
		state:        state,
		ctx:          serverCtx,
		cancel:       cancel,
	}, nil
}

func (s *Server) buildRouter() error {
	if s.config.Runtime.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(logger.FromContext(s.ctx)))
	if s.serverConfig.CORSEnabled {
		r.Use(CORSMiddleware(s.serverConfig.CORS))
	}
	if err := RegisterRoutes(r, s.state); err != nil {
		return err
	}
	s.router = r
	return nil
}

// Run builds the router, starts the HTTP server and blocks until the
// context is canceled or a termination signal arrives.
func (s *Server) Run() error {
	defer s.cancel()
	if err := s.buildRouter(); err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}
	srv := s.createHTTPServer()
	s.httpServer = srv
	s.logStartupBanner()
	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	return s.waitForShutdown(srv, errChan)
}

func (s *Server) createHTTPServer() *http.Server {
	addr := net.JoinHostPort(s.serverConfig.Host, strconv.Itoa(s.serverConfig.Port))
	return &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: httpReadTimeout,
		// WriteTimeout stays unset: generation streams outlive any fixed
		// per-response deadline.
		IdleTimeout: httpIdleTimeout,
	}
}

func (s *Server) waitForShutdown(srv *http.Server, errChan <-chan error) error {
	log := logger.FromContext(s.ctx)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case err := <-errChan:
		return fmt.Errorf("server failed to start: %w", err)
	case <-quit:
		log.Debug("Received shutdown signal, initiating graceful shutdown")
	case <-s.ctx.Done():
		log.Debug("Server context canceled, initiating graceful shutdown")
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer shutdownCancel()
	stopped := s.state.Backends.StopAll(shutdownCtx)
	if len(stopped) > 0 {
		log.Info("Stopped project backends", "count", len(stopped))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("Server shutdown completed successfully")
	return nil
}

// Shutdown cancels the server context, releasing Run.
func (s *Server) Shutdown() {
	s.cancel()
}

func (s *Server) logStartupBanner() {
	log := logger.FromContext(s.ctx)
	fh := friendlyHost(s.serverConfig.Host)
	httpURL := fmt.Sprintf("http://%s:%d", fh, s.serverConfig.Port)
	ver := version.Get().Version
	lines := []string{
		fmt.Sprintf("AppForge %s", ver),
		fmt.Sprintf("  API      > %s%s", httpURL, routes.Base()),
		fmt.Sprintf("  Health   > %s%s", httpURL, routes.HealthVersioned()),
		fmt.Sprintf("  Preview  > %s%s/:project", httpURL, routes.Preview()),
	}
	log.Info("\n" + strings.Join(lines, "\n"))
}

func friendlyHost(h string) string {
	if h == hostAny || h == "::" || h == "" {
		return hostLoopback
	}
	return h
}
