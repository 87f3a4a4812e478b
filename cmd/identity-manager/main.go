package main

import (
	"log"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"stocksearch/internal/config"
	"stocksearch/internal/identity"
	"stocksearch/internal/logger"
)

func main() {
	cfg := config.Get()
	lg := logger.New(cfg.LevelFor(cfg.IdentityManager.ComponentConfig), false)

	path := cfg.IdentityManager.Whitelist
	if env := os.Getenv("IDENTITY_WHITELIST"); env != "" {
		path = env
	}
	wl, err := identity.LoadWhitelist(path)
	if err != nil {
		log.Fatalf("Failed to load whitelist: %v", err)
	}

	addr := cfg.IdentityManager.Address()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	if addr := cfg.MetricsAddress(); addr != "" {
		go func() {
			lg.WithField("addr", addr).Info("📈 metrics listening")
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
				lg.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	s := grpc.NewServer()
	identity.RegisterServer(s, wl, lg)

	lg.WithFields(logrus.Fields{"addr": addr, "tokens": len(wl.Tokens)}).Info("🛡  Identity-Manager started")
	if err := s.Serve(lis); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
