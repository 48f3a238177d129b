package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/speakup/internal/api"
	"github.com/npezzotti/speakup/internal/config"
	"github.com/npezzotti/speakup/internal/database"
	"github.com/npezzotti/speakup/internal/server"
	"github.com/npezzotti/speakup/internal/stats"
)

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
	baseURL        string
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "", "database connection string; meetings are kept in memory only when empty")
	flag.StringVar(&baseURL, "base-url", "http://localhost:8000", "public URL used to build meeting share links")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[speakup] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, baseURL, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	var repo database.Repository
	if cfg.DatabaseDSN != "" {
		dbConn, err := database.NewPgRepository(cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal("db open:", err)
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Println("db close:", err)
			}
		}()

		if err := dbConn.Migrate(); err != nil {
			logger.Fatal("db migrate:", err)
		}
		repo = dbConn
	} else {
		logger.Println("no database configured, meetings will not survive a restart")
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	queueServer, err := server.NewQueueServer(logger, repo, statsUpdater)
	if err != nil {
		logger.Fatal("new queue server:", err)
	}

	srv := api.NewQueueApp(mux, logger, queueServer, repo, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go queueServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down queue server...")
	if err := queueServer.Shutdown(shutDownCtx); err != nil {
		logger.Println("queue server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
