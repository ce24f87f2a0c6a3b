package main

import (
	"context"

	"go.uber.org/zap"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/domain/item"
	"github.com/NordCoder/Pricewatch/internal/services/fetcher"
	"github.com/NordCoder/Pricewatch/internal/services/notifier"
	"github.com/NordCoder/Pricewatch/internal/services/scheduler"
	"github.com/NordCoder/Pricewatch/internal/services/sweeper"
	"github.com/NordCoder/Pricewatch/internal/services/tracker"
)

type services struct {
	dispatcher *notifier.Dispatcher
	tracker    *tracker.Tracker
	scheduler  *scheduler.Scheduler
	sweeper    *sweeper.Runner
}

func initFetcher(cfg *config.Config, logger *zap.Logger) item.Fetcher {
	if cfg.Fetch.Fake {
		logger.Warn("using fake fetcher; prices echo the last known value")
		return fetcher.NewFake().EchoLast()
	}
	return fetcher.NewHTTP(fetcher.NewHTTPClient(cfg.Fetch), cfg.Fetch, logger)
}

func initChannels(cfg *config.Config, logger *zap.Logger) (notifier.EmailSender, notifier.PushSender) {
	fallback := notifier.LogChannel{Log: logger.With(zap.String("component", "notifier.log"))}
	var (
		email notifier.EmailSender = fallback
		push  notifier.PushSender  = fallback
	)
	if cfg.SMTP.Host != "" {
		email = notifier.NewMailer(cfg.SMTP, logger)
	}
	if cfg.Telegram.Token != "" {
		tg, err := notifier.NewTelegramPush(cfg.Telegram.Token, logger)
		if err != nil {
			logger.Warn("telegram disabled", zap.Error(err))
		} else {
			push = tg
		}
	}
	return email, push
}

func initServices(_ context.Context, cfg *config.Config, logger *zap.Logger, st *storage) *services {
	email, push := initChannels(cfg, logger)
	disp := &notifier.Dispatcher{
		Log:    logger.With(zap.String("component", "notifier")),
		Users:  st.users,
		Alerts: st.alerts,
		Outbox: st.outbox,
		Tx:     st.tx,
		Email:  email,
		Push:   push,
		Cfg:    cfg.Alerts,
	}
	trk := tracker.New(tracker.Deps{
		Log:        logger,
		Items:      st.items,
		Alerts:     st.alerts,
		Outbox:     st.outbox,
		Tx:         st.tx,
		Fetcher:    initFetcher(cfg, logger),
		Dispatcher: disp,
	}, cfg.Sched, cfg.Alerts)

	return &services{
		dispatcher: disp,
		tracker:    trk,
		scheduler:  scheduler.New(logger, trk, cfg.Sched),
		sweeper: &sweeper.Runner{
			Log:        logger.With(zap.String("component", "sweeper")),
			Alerts:     st.alerts,
			Items:      st.items,
			Outbox:     st.outbox,
			Tx:         st.tx,
			Dispatcher: disp,
			Cfg:        cfg.Sweeper,
			AlertsCfg:  cfg.Alerts,
		},
	}
}
