package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"stocksearch/internal/action"
	"stocksearch/internal/config"
	"stocksearch/internal/identity"
	"stocksearch/internal/logger"
	"stocksearch/internal/middleware"
	"stocksearch/internal/stock"
)

func main() {
	cfg, err := config.LoadActionEnv()
	if err != nil {
		log.Fatalf("[CONFIG ERROR] %v", err)
	}

	lg := logger.New(cfg.LogLevel, cfg.LogJSON)

	validator, closeValidator, err := newValidator(cfg, lg)
	if err != nil {
		lg.WithError(err).Fatal("identity validator")
	}
	defer closeValidator()

	h := &action.Handler{
		Log:      lg,
		Identity: validator,
		Stock: stock.New(stock.Config{
			Endpoint: cfg.StockEndpoint,
			APIKey:   cfg.StockAPIKey,
			Product:  cfg.StockXProduct,
			Timeout:  cfg.HTTPTimeout,
		}, lg),
	}

	mux := http.NewServeMux()
	mux.Handle("/stock-search", h)
	mux.HandleFunc("/health", action.Health)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           middleware.Chain(mux, middleware.RequestID, middleware.RequestLogger(lg), middleware.Instrument, middleware.CORS),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.WithField("addr", cfg.BindAddr).Info("stock-search action listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.WithError(err).Fatal("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	lg.Info("bye")
}

// newValidator prefers the local identity manager when IDENTITY_ADDR is set
// and falls back to IMS.
func newValidator(cfg config.ActionEnv, lg *logrus.Logger) (identity.Validator, func(), error) {
	if cfg.IdentityAddr != "" {
		v, conn, err := identity.DialGRPCValidator(cfg.IdentityAddr)
		if err != nil {
			return nil, nil, err
		}
		lg.WithField("addr", cfg.IdentityAddr).Info("validating tokens with identity manager")
		return v, func() { _ = conn.Close() }, nil
	}
	lg.WithField("ims", cfg.IMSURL).Info("validating tokens with IMS")
	return identity.NewIMS(cfg.IMSURL, cfg.IMSClientID, cfg.HTTPTimeout, lg), func() {}, nil
}
