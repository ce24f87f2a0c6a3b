package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/NordCoder/Pricewatch/internal/obs"
)

// usage: migrator [-dir migrations] [up|down|status|version|redo|up-to N|down-to N]
func main() {
	dir := flag.String("dir", envOr("MIGRATIONS_DIR", "migrations"), "directory with goose sql files")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall timeout")
	flag.Parse()

	logger := obs.MustLogger(obs.LogConfig{Level: "info", App: "migrator", Env: os.Getenv("APP_ENV")})
	defer func() { _ = logger.Sync() }()

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		logger.Fatal("DB_URL is empty")
	}
	command, args := "up", []string(nil)
	if flag.NArg() > 0 {
		command, args = flag.Arg(0), flag.Args()[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatal("set dialect", zap.Error(err))
	}
	db, err := goose.OpenDBWithDriver("pgx", dbURL)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	log := logger.With(zap.String("command", command), zap.String("dir", *dir))
	if err := goose.RunContext(ctx, command, db, *dir, args...); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	log.Info("migrations done")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
