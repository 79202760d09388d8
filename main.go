package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/cenkalti/backoff"
	"github.com/pyama86/food-donation-bot/config"
	"github.com/pyama86/food-donation-bot/domain/infra"
	"github.com/pyama86/food-donation-bot/handler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}
	slog.SetDefault(cfg.NewLogger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, err := newDatastore(ctx, cfg)
	if err != nil {
		slog.Error("newDatastore failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer ds.Close()

	messenger, webhook, err := newMessenger(ctx, cfg)
	if err != nil {
		slog.Error("newMessenger failed", slog.Any("err", err))
		os.Exit(1)
	}

	h := handler.NewHandler(ds, messenger, handler.Options{
		SessionTTL:        cfg.SessionTTL,
		Location:          cfg.Location,
		NotifyConcurrency: cfg.NotifyConcurrency,
	})

	srv := &http.Server{
		Addr:              cfg.ListenSocket,
		Handler:           handler.NewRouter(webhook),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Server listening", slog.String("bind", cfg.ListenSocket))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", slog.Any("err", err))
			stop()
		}
	}()

	if err := h.Handle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Handle failed", slog.Any("err", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", slog.Any("err", err))
	}
}

// retry は起動時の接続をバックオフしながら再試行する
func retry(ctx context.Context, name string, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 2 * time.Minute

	return backoff.RetryNotify(op, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		slog.Warn("Retrying connection", slog.String("target", name), slog.Any("err", err), slog.Duration("next", next))
	})
}

func newDatastore(ctx context.Context, cfg *config.Config) (infra.Datastore, error) {
	var ds infra.Datastore
	err := retry(ctx, cfg.DBDriver, func() error {
		var err error
		switch cfg.DBDriver {
		case config.DBDriverDynamoDB:
			ds, err = infra.NewDynamoDB(ctx, infra.DynamoDBConfig{
				TablePrefix:   cfg.DynamoTablePrefix,
				LocalEndpoint: cfg.DynamoEndpoint,
				Location:      cfg.Location,
			})
		case config.DBDriverSheets:
			ds, err = infra.NewSheets(ctx, infra.SheetsConfig{
				SpreadsheetID:   cfg.SpreadsheetID,
				CredentialsJSON: cfg.GoogleCreds,
				Location:        cfg.Location,
			})
		default:
			ds, err = infra.NewDataBase(cfg.DBPath)
		}
		return err
	})
	return ds, err
}

// newMessenger はチャットの送受信と、webhook を使う場合はその受け口を返す
func newMessenger(ctx context.Context, cfg *config.Config) (infra.Messenger, handler.WebhookReceiver, error) {
	switch cfg.ChatDriver {
	case config.ChatDriverSlack:
		s, err := infra.NewSlack(infra.SlackConfig{
			BotToken: cfg.SlackBotToken,
			AppToken: cfg.SlackAppToken,
		})
		return s, nil, err
	case config.ChatDriverTelegram:
		var t *infra.Telegram
		err := retry(ctx, "telegram", func() error {
			var err error
			t, err = infra.NewTelegram(infra.TelegramConfig{
				Token:         cfg.TelegramToken,
				WebhookURL:    cfg.TelegramWebhookURL,
				WebhookSecret: cfg.TelegramWebhookSecret,
			})
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		if t.WebhookEnabled() {
			return t, t, nil
		}
		return t, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown chat driver: %s", cfg.ChatDriver)
}
