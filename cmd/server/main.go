package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/swiftbook-app/swiftbook/internal/api"
	"github.com/swiftbook-app/swiftbook/internal/config"
	"github.com/swiftbook-app/swiftbook/internal/database"
	"github.com/swiftbook-app/swiftbook/internal/directory"
	"github.com/swiftbook-app/swiftbook/internal/server"
	"github.com/swiftbook-app/swiftbook/internal/stats"
)

// development only; set SWIFTBOOK_SIGNING_KEY in any shared environment
const defaultSigningKey = "c3dpZnRib29rLWRldmVsb3BtZW50LXNpZ25pbmcta2V5"

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
	tokenTTL       time.Duration
	logLevel       string
	runMigrations  bool
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file found, reading configuration from the environment")
	}

	env, err := config.LoadEnv()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if env.SigningKey == "" {
		env.SigningKey = defaultSigningKey
	}
	allowedOrigins = env.AllowedOrigins

	flag.StringVar(&addr, "addr", env.Addr, "server address")
	flag.StringVar(&dsn, "dsn", env.DSN, "database connection string")
	flag.StringVar(&signingKey, "signing-key", env.SigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.DurationVar(&tokenTTL, "token-ttl", env.TokenTTL, "lifetime of issued credentials")
	flag.StringVar(&logLevel, "log-level", env.LogLevel, "log level (debug, info, warn, error)")
	flag.BoolVar(&runMigrations, "migrate", env.RunMigrations, "apply database migrations on startup")
	flag.Parse()

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if _, err := cfg.WithTokenTTL(tokenTTL); err != nil {
		logger.Fatalf("config: %v", err)
	}
	if _, err := cfg.WithLogLevel(logLevel); err != nil {
		logger.Fatalf("config: %v", err)
	}
	cfg.RunMigrations = runMigrations

	logger.SetLevel(cfg.LogLevel)

	dbConn, err := database.NewPgRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatalf("db open: %v", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Errorf("db close: %v", err)
		}
	}()

	if cfg.RunMigrations {
		if err := database.Migrate(dbConn.DB()); err != nil {
			logger.Fatalf("migrate: %v", err)
		}
		logger.Info("database schema up to date")
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	groups := directory.New(logger, dbConn)

	chatServer, err := server.NewChatServer(logger, dbConn, groups, statsUpdater)
	if err != nil {
		logger.Fatalf("new chat server: %v", err)
	}

	srv := api.NewSwiftBookApp(mux, logger, chatServer, dbConn, groups, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Infof("received signal: %s", sig)
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server: %v", err)
		}
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Errorf("HTTP server shutdown: %v", err)
	}

	logger.Info("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Errorf("chat server shutdown: %v", err)
	}

	logger.Info("shutdown complete")
}
