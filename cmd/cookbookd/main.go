package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matzeds/cookbook/auth"
	"github.com/matzeds/cookbook/common"
	"github.com/matzeds/cookbook/database"
	"github.com/matzeds/cookbook/handlers"
)

var startedAt = time.Now()

// Use common logging functions
var (
	infoLog  = common.InfoLog
	errorLog = common.ErrorLog
	fatalLog = common.FatalLog
)

func main() {
	addr := common.Env("COOKBOOK_BIND", ":8888")

	infoLog("cookbookd starting with log level: %s", common.Env("COOKBOOK_LOG_LEVEL", "info"))

	secret, err := common.MustSecret("SECRET_KEY")
	if err != nil {
		fatalLog("config: %v", err)
	}
	dataDir := common.Env("DATA_DIR", "/tmp")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := database.OpenFromEnv(ctx)
	if err != nil {
		fatalLog("DB init failed: %v", err)
	}
	defer store.Close()

	api := handlers.New(store, auth.NewTokens(secret), dataDir)

	srv := &http.Server{
		Addr:              addr,
		Handler:           makeRouter(api),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		infoLog("http: listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatalLog("HTTP server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	infoLog("http: shutting down")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		errorLog("http: shutdown: %v", err)
	}
}
