// Command auditor rebuilds balances from the ledger once, compares them with custody
// and halts settlement when they disagree. It exits non-zero on a violation.
package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"edufund-backend/internal/adapter/cache"
	"edufund-backend/internal/adapter/repository/mysql"
	"edufund-backend/internal/config"
	redisx "edufund-backend/internal/infrastructure/cache"
	"edufund-backend/internal/infrastructure/db"
	"edufund-backend/internal/infrastructure/logger"
	ledgeruc "edufund-backend/internal/usecase/ledger"
)

const auditTimeout = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	log, err := logger.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}

	code := 0
	if err := run(cfg, log); err != nil {
		log.Error("audit failed", zap.Error(err))
		code = 1
	}
	_ = log.Sync()
	os.Exit(code)
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	gdb, err := db.OpenGorm(cfg.DB.Driver, cfg.DSN(), log)
	if err != nil {
		return err
	}
	rdb, err := redisx.OpenRedis(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	l := ledgeruc.NewUsecase(mysql.NewEntryRepository(gdb), mysql.NewAccountRepository(gdb),
		cache.NewHaltSwitch(rdb, ""), nil, log.Named("auditor"))
	rep, err := l.RunAudit(ctx)
	if err != nil {
		return err
	}
	log.Info("audit passed",
		zap.String("total_debits", rep.TotalDebits.String()),
		zap.String("total_credits", rep.TotalCredits.String()))
	return nil
}
