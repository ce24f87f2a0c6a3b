package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/services/admin"
)

func buildHTTPServer(cfg *config.Config, srv *admin.Server, auth *admin.Auth) (*http.Server, error) {
	mux, err := admin.NewGateway(srv)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              cfg.Admin.HTTPAddr,
		Handler:           auth.HTTP(mux),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}, nil
}

func serveHTTP(srv *http.Server, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", srv.Addr))
	return srv.ListenAndServe()
}
