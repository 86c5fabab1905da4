package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/merchantsons/invoicegen/internal/config"
	"github.com/merchantsons/invoicegen/internal/logging"
	"github.com/merchantsons/invoicegen/internal/mcp"
	"github.com/merchantsons/invoicegen/internal/pdf"
	"github.com/merchantsons/invoicegen/internal/render"
	"github.com/merchantsons/invoicegen/internal/session"
	"github.com/merchantsons/invoicegen/internal/web"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// loggingConfig picks the log destination for the run mode. In stdio mode
// stdout carries the MCP protocol, so logs go to stderr.
func loggingConfig(cfg *config.Config) *logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = cfg.LogLevel
	lc.Format = cfg.LogFormat
	if cfg.IsStdioMode() {
		lc.Output = "stderr"
	}
	return lc
}

// run wires the components for the configured mode and blocks until ctx is
// cancelled or the server stops.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	renderer := render.NewRenderer(render.Config{
		Creator: cfg.ServerName + " " + cfg.Version,
		Logger:  logger.Named("render"),
	})

	if cfg.IsServerMode() {
		if !cfg.IsDebug() {
			gin.SetMode(gin.ReleaseMode)
		}
		server, err := web.NewServer(web.Config{
			Renderer:    renderer,
			Sessions:    session.NewStore(cfg.SessionTTL),
			Logger:      logger.Named("web"),
			MaxLogoSize: cfg.MaxLogoSize,
		})
		if err != nil {
			return fmt.Errorf("failed to create web server: %w", err)
		}
		return server.Run(ctx, cfg.Address())
	}

	pdfService, err := pdf.NewService(cfg.MaxFileSize, cfg.OutputDirectory)
	if err != nil {
		return fmt.Errorf("failed to create PDF service: %w", err)
	}
	server, err := mcp.NewServer(cfg, pdfService, renderer, logger.Named("mcp"))
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server.Run(ctx)
}

func main() {
	cfg, err := config.LoadFromFlags()
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion(os.Stdout)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	logger, err := logging.New(loggingConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Debug("starting", zap.Stringer("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	logger.Info("server stopped successfully")
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "invoicegen\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
