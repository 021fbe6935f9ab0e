package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/quoteforge/quoting/internal/config"
	"github.com/quoteforge/quoting/internal/db"
	"github.com/quoteforge/quoting/internal/server"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()
	_ = godotenv.Load()

	logrus.SetFormatter(&logrus.JSONFormatter{})
	cfg := config.Load()
	if cfg.Env == "development" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	dbConn, err := db.ConnectAndMigrate()
	if err != nil {
		logrus.WithError(err).Fatal("database connection failed")
	}
	if *migrateOnlyFlag {
		logrus.Info("migrations completed; exiting as requested")
		return
	}

	logrus.WithFields(logrus.Fields{"env": cfg.Env, "port": cfg.Port}).Info("starting server")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.New(dbConn, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("error during shutdown")
	}
	logrus.Info("server gracefully stopped")
}
