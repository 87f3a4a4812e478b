package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"stocksearch/internal/config"
	"stocksearch/internal/hostrpc"
	"stocksearch/internal/logger"
	"stocksearch/internal/middleware"
	"stocksearch/internal/widget"
)

// host plays the embedding application during local development.
type host struct {
	cfg config.WidgetHostConfig
	log *logrus.Logger
}

func (h *host) methods(entry *logrus.Entry) hostrpc.Methods {
	return hostrpc.Methods{
		"getIMSAccessToken": func(context.Context, []json.RawMessage) (any, error) {
			token := os.Getenv(h.cfg.TokenEnv)
			entry.WithField("signed_in", token != "").Info("getIMSAccessToken")
			if token == "" {
				return nil, nil
			}
			return widget.User{Token: token}, nil
		},
		"setHeight": func(_ context.Context, args []json.RawMessage) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("setHeight expects 1 argument, got %d", len(args))
			}
			var px string
			if err := json.Unmarshal(args[0], &px); err != nil {
				return nil, fmt.Errorf("setHeight: %w", err)
			}
			entry.WithField("height", px).Info("setHeight")
			return nil, nil
		},
		"signIn": func(context.Context, []json.RawMessage) (any, error) {
			entry.Warnf("sign-in requested: export %s and reconnect the widget", h.cfg.TokenEnv)
			return nil, nil
		},
	}
}

func (h *host) channel(w http.ResponseWriter, r *http.Request) {
	entry := logger.For(r.Context(), h.log)
	conn, err := hostrpc.Accept(w, r, hostrpc.Options{
		Methods:        h.methods(entry),
		Timeout:        widget.ConnectTimeout,
		OriginPatterns: h.cfg.Origins,
		Log:            h.log,
	})
	if err != nil {
		entry.WithError(err).Warn("widget connection failed")
		return
	}
	defer conn.Close()
	entry.WithField("methods", conn.RemoteMethods()).Info("widget connected")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	if err := conn.Call(ctx, "onShow", nil); err != nil {
		entry.WithError(err).Debug("onShow")
	}
	cancel()

	<-conn.Done()
	entry.Info("widget disconnected")
}

func main() {
	cfg := config.Get()
	lg := logger.New(cfg.LevelFor(cfg.WidgetHost.ComponentConfig), false)
	h := &host{cfg: cfg.WidgetHost, log: lg}

	mux := http.NewServeMux()
	mux.HandleFunc("/channel", h.channel)
	mux.Handle("/metrics", promhttp.Handler())

	addr := cfg.WidgetHost.Address()
	lg.Printf("🌐 Widget host started on %s", cfg.WidgetHost.ChannelURL())
	if err := http.ListenAndServe(addr, middleware.Chain(mux, middleware.RequestID, middleware.RequestLogger(lg), middleware.Instrument)); err != nil {
		log.Fatalf("failed to start web server: %v", err)
	}
}
