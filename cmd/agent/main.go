package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"powerdash/internal/api"
	"powerdash/internal/config"
	"powerdash/internal/devices"
	"powerdash/internal/fetchcache"
	"powerdash/internal/hub"
	"powerdash/internal/layout"
	"powerdash/internal/localstore"
	"powerdash/internal/metrics"
	"powerdash/internal/model"
	"powerdash/internal/notify"
	"powerdash/internal/registry"
	"powerdash/internal/server"
	"powerdash/internal/session"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	gin.SetMode(cfg.GinMode)

	collector := metrics.NewCollector()
	state := localstore.Open(cfg.StateFile, logger)

	var sess *session.Store
	client := api.New(cfg.BackendURL, api.Options{
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Tokens: func() string {
			if sess == nil {
				return ""
			}
			return sess.Token()
		},
		Metrics: collector,
		Logger:  logger,
	})
	sess = session.New(client, state, logger)

	catalog := devices.New(client, state, cfg.DeviceCacheTTL, logger)
	lay := layout.New(state, registry.IDs(registry.Builtin()), logger)
	relay := hub.New()

	center := notify.New(client, logger)
	center.SetAlertHook(func(n model.Notification) {
		payload, err := json.Marshal(n)
		if err != nil {
			return
		}
		relay.Broadcast(payload)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	subscriber := notify.NewSubscriber(notify.SubscriberOptions{
		URL:   cfg.PushURL,
		Token: sess.Token,
		OnOpen: func() {
			refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := center.Refresh(refreshCtx); err != nil {
				logger.Warn("notification refresh failed", "error", err)
			}
		},
		OnMessage: func(data []byte) {
			if err := center.HandlePush(data); err != nil {
				logger.Warn("push payload rejected", "error", err)
			}
		},
		MinDelay: cfg.ReconnectMinDelay,
		MaxDelay: cfg.ReconnectMaxDelay,
		Metrics:  collector,
		Logger:   logger,
	})

	router := server.NewRouter(server.Deps{
		Session:   sess,
		API:       client,
		Measure:   client,
		Layout:    lay,
		Catalog:   catalog,
		Cache:     fetchcache.New(collector),
		State:     state,
		Center:    center,
		Hub:       relay,
		Metrics:   collector,
		PushState: subscriber.State,
	})

	go subscriber.Run(ctx)

	srv := server.NewHTTPServer(cfg, router)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		errCh <- server.Serve(cfg, srv)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	subscriber.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
