// Package web serves the browser form that collects invoice data and
// streams the rendered PDF back as a download.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/merchantsons/invoicegen/internal/invoice"
	"github.com/merchantsons/invoicegen/internal/logging"
	"github.com/merchantsons/invoicegen/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// SessionCookie names the cookie carrying the session id
const SessionCookie = "invoicegen_session"

// multipartOverhead is allowed on top of the logo limit for the other form fields
const multipartOverhead = 1 << 20

// Renderer turns a validated request into PDF bytes
type Renderer interface {
	Render(req invoice.Request) ([]byte, error)
}

// Config holds the dependencies of the web server
type Config struct {
	Renderer    Renderer
	Sessions    *session.Store
	Logger      *zap.Logger
	MaxLogoSize int64
	// Now supplies the default invoice date; time.Now when nil.
	Now func() time.Time
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

// Server is the invoice form HTTP server
type Server struct {
	renderer      Renderer
	sessions      *session.Store
	logger        *zap.Logger
	maxLogoSize   int64
	now           func() time.Time
	secureCookies bool
	engine        *gin.Engine
}

// NewServer creates the server and registers its routes
func NewServer(cfg Config) (*Server, error) {
	if cfg.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.MaxLogoSize <= 0 {
		return nil, errors.New("max logo size must be positive")
	}

	s := &Server{
		renderer:      cfg.Renderer,
		sessions:      cfg.Sessions,
		logger:        cfg.Logger,
		maxLogoSize:   cfg.MaxLogoSize,
		now:           cfg.Now,
		secureCookies: cfg.SecureCookies,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	engine := gin.New()
	engine.Use(logging.GinMiddleware(s.logger), logging.Recovery(s.logger))
	engine.SetHTMLTemplate(tmpl)
	engine.MaxMultipartMemory = cfg.MaxLogoSize + multipartOverhead

	s.engine = engine
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	form := s.engine.Group("/", s.limitBody(), s.withSession())
	form.GET("/", s.handleIndex)
	form.POST("/items", s.handleAddItem)
	form.POST("/items/clear", s.handleClearItems)
	form.POST("/logo", s.handleUploadLogo)
	form.POST("/logo/clear", s.handleClearLogo)
	form.POST("/invoice", s.handleGenerate)
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("invoice form listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// limitBody caps request bodies at the logo limit plus room for the form fields
func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxLogoSize+multipartOverhead)
		c.Next()
	}
}

const sessionKey = "session"

// withSession loads or creates the browser's session and refreshes its cookie
func (s *Server) withSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(SessionCookie)
		sess, created := s.sessions.Get(id)
		if created {
			logging.FromGin(c).Debug("session created", zap.String("session_id", sess.ID))
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, sess.ID, 0, "/", "", s.secureCookies, true)
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}
