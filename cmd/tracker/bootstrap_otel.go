package main

import (
	"context"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/obs"
)

func initOTel(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	closer, err := obs.SetupOTel(ctx, &obs.OTELConfig{
		Enable:      cfg.OTEL.Enable,
		Endpoint:    cfg.OTEL.Endpoint,
		ServiceName: cfg.OTEL.ServiceName,
		Version:     cfg.App.Version,
		Env:         cfg.App.Env,
		SampleRatio: cfg.OTEL.SampleRatio,
	})
	if err != nil {
		return nil, err
	}
	return closer.Shutdown, nil
}
