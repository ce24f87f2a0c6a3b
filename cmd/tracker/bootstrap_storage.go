package main

import (
	"context"

	"go.uber.org/zap"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/domain/alert"
	"github.com/NordCoder/Pricewatch/internal/domain/item"
	"github.com/NordCoder/Pricewatch/internal/domain/outbox"
	"github.com/NordCoder/Pricewatch/internal/domain/user"
	"github.com/NordCoder/Pricewatch/internal/obs"
	"github.com/NordCoder/Pricewatch/internal/repository/memory"
	pg "github.com/NordCoder/Pricewatch/internal/repository/postgres"
)

type storage struct {
	items  item.Repo
	alerts alert.Repo
	users  user.Directory
	outbox outbox.Repository
	tx     pg.Transactor
	health obs.HealthChecks
	close  func()
}

func initStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.Storage.Driver == "memory" {
		logger.Warn("using in-memory storage; state is lost on exit")
		return &storage{
			items:  memory.NewItemRepo(),
			alerts: memory.NewAlertRepo(),
			users:  memory.NewUsers(),
			outbox: memory.NewOutbox(),
			tx:     memory.Transactor{},
			health: obs.HealthChecks{},
			close:  func() {},
		}, nil
	}

	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	return &storage{
		items:  pg.NewItemRepo(db),
		alerts: pg.NewAlertRepo(db),
		users:  pg.NewUserRepo(db),
		outbox: pg.NewOutboxRepo(db),
		tx:     pg.NewTransactor(db, logger),
		health: obs.HealthChecks{"db": db.Ping},
		close:  db.Close,
	}, nil
}
