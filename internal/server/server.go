package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/daikw/improv/internal/game"
	"github.com/daikw/improv/internal/settings"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

// Options wires the HTTP surface
type Options struct {
	Manager *game.Manager

	// Settings are the values the process started with
	Settings *settings.Settings

	// SettingsPath is where PUT /settings writes; empty uses the project file
	SettingsPath string

	// Registry is exposed on /metrics; nil exposes the default gatherer
	Registry *prometheus.Registry
}

// Server is the JSON API over a session manager
type Server struct {
	manager      *game.Manager
	settingsPath string
	gatherer     prometheus.Gatherer
	engine       *gin.Engine
	settings     *settings.Settings
}

// New builds the server and its routes
func New(opts Options) *Server {
	s := &Server{
		manager:      opts.Manager,
		settings:     opts.Settings,
		settingsPath: opts.SettingsPath,
		gatherer:     prometheus.DefaultGatherer,
	}
	if s.settings == nil {
		s.settings = settings.Default()
	}
	if opts.Registry != nil {
		s.gatherer = opts.Registry
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	r.GET("/personalities", s.listPersonalities)
	r.GET("/settings", s.getSettings)
	r.PUT("/settings", s.putSettings)

	sessions := r.Group("/sessions")
	sessions.POST("", s.createSession)
	sessions.GET("", s.listSessions)
	sessions.GET("/:id", s.getSession)
	sessions.DELETE("/:id", s.deleteSession)
	sessions.POST("/:id/start", s.startGame)
	sessions.POST("/:id/turns", s.submitTurn)
	sessions.POST("/:id/edit-cast", s.editCast)
	sessions.POST("/:id/new-game", s.newGame)
	sessions.PUT("/:id/images", s.setImages)
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
