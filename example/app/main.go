package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/duosecurity/duo-universal-go/pkg/duo"
	httphelper "github.com/duosecurity/duo-universal-go/pkg/http"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	}))

	cfg, err := FromEnvVars()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	duoCfg, err := LoadDuoConfig(cfg.DuoConfigFile)
	if err != nil {
		logger.Error("load duo config", "file", cfg.DuoConfigFile, "error", err)
		os.Exit(1)
	}
	client, err := duoCfg.Client(duo.WithLogger(logger), duo.WithTimeout(cfg.Timeout))
	if err != nil {
		logger.Error("*** Duo config error. Verify the values in the duo config file are correct ***", "error", err)
		os.Exit(1)
	}
	failOpen, err := duoCfg.FailOpen()
	if err != nil {
		logger.Error("load duo config", "error", err)
		os.Exit(1)
	}

	cookieOpts := []httphelper.CookieHandlerOpt{httphelper.WithMaxAge(300)}
	if cfg.Insecure {
		cookieOpts = append(cookieOpts, httphelper.WithUnsecure())
	}
	var encryptKey []byte
	if cfg.EncryptKey != "" {
		encryptKey = []byte(cfg.EncryptKey)
	}
	cookies := httphelper.NewCookieHandler([]byte(cfg.HashKey), encryptKey, cookieOpts...)

	app := NewApp(client, cookies, logger, failOpen)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	if err := httphelper.StartServer(ctx, addr, app.Router(), logger); err != nil {
		logger.Error("start server", "addr", addr, "error", err)
		os.Exit(1)
	}
	logger.Info("server listening, press ctrl+c to stop", "addr", "http://localhost"+addr)
	<-ctx.Done()
	logger.Info("shutting down")
}
