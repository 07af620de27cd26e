package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/duosecurity/duo-universal-go/pkg/cli"
	"github.com/duosecurity/duo-universal-go/pkg/duo"
)

type config struct {
	ClientID     string        `env:"DUO_CLIENT_ID,notEmpty"`
	ClientSecret string        `env:"DUO_CLIENT_SECRET,notEmpty"`
	APIHost      string        `env:"DUO_API_HOST,notEmpty"`
	Username     string        `env:"DUO_USERNAME,notEmpty"`
	CallbackAddr string        `env:"CALLBACK_ADDR"           envDefault:"127.0.0.1:5556"`
	Timeout      time.Duration `env:"LOGIN_TIMEOUT"           envDefault:"5m"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		logger.Error("parse env", "error", err)
		os.Exit(1)
	}
	client, err := duo.NewClient(cfg.ClientID, cfg.ClientSecret, cfg.APIHost,
		"http://"+cfg.CallbackAddr+"/duo-callback",
		duo.WithLogger(logger),
	)
	if err != nil {
		logger.Error("create duo client", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	tokens, err := cli.CodeFlow(ctx, client, cfg.Username, cfg.CallbackAddr, cli.PrintURL(os.Stdout), logger)
	if err != nil {
		logger.Error("duo login", "error", err)
		os.Exit(1)
	}
	fmt.Printf("authenticated %s, result: %v\n", tokens.IDTokenClaims.PreferredUsername, tokens.IDTokenClaims.AuthResult["status_msg"])
}
