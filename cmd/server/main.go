// Package main is the entry point for the github-graphql-mcp server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jamesprial/github-graphql-mcp/internal/audit"
	"github.com/jamesprial/github-graphql-mcp/internal/auth"
	"github.com/jamesprial/github-graphql-mcp/internal/config"
	"github.com/jamesprial/github-graphql-mcp/internal/graphql"
	"github.com/jamesprial/github-graphql-mcp/internal/logging"
	"github.com/jamesprial/github-graphql-mcp/internal/metrics"
	"github.com/jamesprial/github-graphql-mcp/internal/tools"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

const (
	serverName    = "github-graphql"
	serverVersion = "0.1.0"
)

// Exit statuses.
const (
	exitOK = iota
	exitFailure
	exitUsage
)

type options struct {
	ConfigPath string `short:"c" long:"config" env:"GITHUB_MCP_CONFIG_PATH" description:"Path to a YAML config file"`
	EnvFile    string `long:"env-file" default:".env" description:"Dotenv file loaded before reading the environment"`
	Transport  string `short:"t" long:"transport" choice:"stdio" choice:"http" description:"MCP transport (overrides config)"`
	LogLevel   string `long:"log-level" description:"Log level (overrides config)"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return exitOK
		}
		return exitUsage
	}

	envErr := loadDotEnv(opts.EnvFile)

	cfg, cfgErr := loadConfig(opts.ConfigPath)
	config.ApplyEnvOverrides(cfg)
	if opts.Transport != "" {
		cfg.Server.Transport = opts.Transport
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log configuration: %v\n", err)
		return exitFailure
	}
	if envErr != nil {
		logger.Warnf("could not load env file %q: %v", opts.EnvFile, envErr)
	}
	if cfgErr != nil {
		logger.Warnf("could not load config from %q (%v), using defaults", opts.ConfigPath, cfgErr)
	}

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingToken) {
			logger.Error("FATAL: cannot start server, GITHUB_TOKEN is not set")
		} else {
			logger.Errorf("FATAL: invalid configuration: %v", err)
		}
		return exitFailure
	}
	logger.WithFields(logrus.Fields{
		"endpoint":     cfg.GitHub.URL,
		"token_prefix": config.TokenPrefix(cfg.GitHub.Token),
		"transport":    cfg.Server.Transport,
	}).Info("configured GitHub GraphQL relay")

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		go serveMetrics(cfg.Metrics.Addr, m, logger)
	}

	var auditLog *audit.Logger
	if cfg.Audit.Enabled {
		f, err := os.OpenFile(cfg.Audit.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			logger.Warnf("could not open audit log %q: %v, audit logging disabled", cfg.Audit.LogPath, err)
		} else {
			auditLog = audit.NewLogger(f)
			defer f.Close()
		}
	}

	relay, err := graphql.NewRelay(cfg.GitHub, graphql.WithLogger(logger), graphql.WithMetrics(m))
	if err != nil {
		logger.Errorf("FATAL: %v", err)
		return exitFailure
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)
	names := tools.RegisterAll(mcpServer, graphql.GraphQLTools(relay, auditLog, logger))
	logger.WithField("tools", names).Info("GitHub GraphQL MCP server initialized")

	switch cfg.Server.Transport {
	case config.TransportHTTP:
		err = serveHTTP(cfg, mcpServer, logger)
	default:
		err = serveStdio(mcpServer, logger)
	}
	if err != nil {
		logger.Errorf("error running server: %v", err)
		return exitFailure
	}
	logger.Info("server stopped")
	return exitOK
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// loadConfig reads the YAML config at path. An empty path yields
// DefaultConfig; a failed read also yields DefaultConfig plus the error so
// the caller can log it once logging is configured.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return config.DefaultConfig(), err
	}
	return cfg, nil
}

func serveStdio(mcpServer *server.MCPServer, logger *logrus.Logger) error {
	logger.Info("serving MCP over stdio")
	errLog := stdlog.New(logger.WriterLevel(logrus.ErrorLevel), "", 0)
	return server.ServeStdio(mcpServer, server.WithErrorLogger(errLog))
}

func serveHTTP(cfg *config.Config, mcpServer *server.MCPServer, logger *logrus.Logger) error {
	tokenBefore := cfg.Server.AuthToken
	token, err := config.EnsureAuthToken(cfg)
	if err != nil {
		logger.Warnf("could not generate auth token: %v, running without authentication", err)
	} else if tokenBefore == "" {
		logger.Warnf("generated auth token (set GITHUB_MCP_AUTH_TOKEN to persist): %s", token)
	}

	httpHandler := server.NewStreamableHTTPServer(mcpServer)
	wrapped := auth.NewAuthMiddleware(cfg.Server.AuthToken, logger)(httpHandler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           wrapped,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("serving MCP over HTTP on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-stop:
	}
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

func serveMetrics(addr string, m *metrics.Metrics, logger *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Infof("serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("metrics server error: %v", err)
	}
}
