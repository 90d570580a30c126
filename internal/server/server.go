package server

import (
	"context"
	"errors"
	stdlog "log"
	"net"
	"net/http"

	"FormRelay/internal/config"
	"FormRelay/internal/handlers/contact"
	"FormRelay/internal/handlers/health"
	"FormRelay/internal/logger"
	"FormRelay/internal/middleware"
	"FormRelay/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ContactPath is where the landing page posts the form.
const ContactPath = "/api/contacto"

type Server struct {
	config   config.Config
	services *services.Services
	log      zerolog.Logger
	server   *http.Server
}

func New(cfg config.Config, svc *services.Services, log zerolog.Logger) *Server {
	s := &Server{
		config:   cfg,
		services: svc,
		log:      log,
	}
	s.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.createHandler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorLog:     stdlog.New(&logger.JSONLogger{Logger: log.With().Str("component", "http").Logger()}, "", 0),
	}
	return s
}

func (s *Server) createHandler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(s.log))
	r.Use(middleware.AccessLog(s.log))

	r.GET("/health", health.Handler(s.services.Relay.Configured()))
	contactHandler := contact.Handler(s.services.Relay, s.config.MaxBodyBytes)
	r.Any(ContactPath, contactHandler)
	// Any only covers gin's built-in verbs; the rest land here and still
	// need the relay's 405.
	r.NoRoute(func(c *gin.Context) {
		if c.Request.URL.Path == ContactPath {
			contactHandler(c)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r
}

// Handler exposes the routed handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe blocks until the server stops. A clean Shutdown is not an error.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("serving")
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown lets in-flight submissions finish until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
