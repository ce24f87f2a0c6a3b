package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/obs"
	"github.com/NordCoder/Pricewatch/internal/obs/retry"
	"github.com/NordCoder/Pricewatch/internal/outbox"
	"github.com/NordCoder/Pricewatch/internal/services/admin"
	"github.com/NordCoder/Pricewatch/internal/services/checker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := os.Getenv("PRICEWATCH_CONFIG")
	if path == "" {
		path = "config/tracker.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting tracker", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	otelShutdown, err := initOTel(rootCtx, cfg)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	st, err := initStorage(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("storage init", zap.Error(err))
	}
	defer st.close()

	msg := initKafka(rootCtx, cfg, logger)
	defer msg.close()

	svc := initServices(rootCtx, cfg, logger, st)

	var wg conc.WaitGroup
	relay := outbox.NewOutboxRunner(logger, st.outbox,
		outbox.MakeGlobalOutboxHandler(msg.events, retry.PublishPolicy(logger)), 2, cfg.Outbox)
	wg.Go(func() { _ = relay.Run(rootCtx) })
	wg.Go(func() { _ = svc.sweeper.Run(rootCtx) })
	if msg.consumer != nil {
		ctl := &checker.Controller{Log: logger.With(zap.String("component", "checker")), Sub: msg.consumer, UC: svc.tracker}
		wg.Go(func() { _ = ctl.Run(rootCtx) })
	}

	if cfg.Sched.AutoStart {
		svc.scheduler.Start(rootCtx)
	}

	auth := admin.NewAuth(cfg.Admin.JWTSecret)
	if !auth.Enabled() {
		logger.Warn("admin auth disabled: admin.jwt_secret is empty")
	}
	adminSrv := admin.NewServer(admin.NewUsecase(admin.Deps{
		Log:         logger,
		Sched:       svc.scheduler,
		Checks:      svc.tracker,
		Alerts:      st.alerts,
		Outbox:      st.outbox,
		Tx:          st.tx,
		Base:        rootCtx,
		StopTimeout: cfg.Sched.StopTimeout,
	}))

	grpcServer, grpcLn, err := buildGRPCServer(cfg, adminSrv, auth)
	if err != nil {
		logger.Fatal("build grpc", zap.Error(err))
	}
	grpcErrCh := make(chan error, 1)
	go func() { grpcErrCh <- serveGRPC(grpcServer, grpcLn, logger) }()

	httpSrv, err := buildHTTPServer(cfg, adminSrv, auth)
	if err != nil {
		logger.Fatal("build http", zap.Error(err))
	}
	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, logger) }()

	metricsSrv := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, st.health, logger)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case err := <-grpcErrCh:
		logger.Error("grpc serve", zap.Error(err))
	case err := <-httpErrCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
		}
	}
	stop()

	schedCtx, cancelSched := context.WithTimeout(context.Background(), cfg.Sched.StopTimeout)
	if err := svc.scheduler.Stop(schedCtx); err != nil {
		logger.Warn("scheduler stop", zap.Error(err))
	}
	cancelSched()

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shCtx)
	_ = metricsSrv.Shutdown(shCtx)
	grpcServer.GracefulStop()

	wg.Wait()
	logger.Info("bye")
}
