package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"edufund-backend/internal/adapter/cache"
	"edufund-backend/internal/adapter/events"
	httpadp "edufund-backend/internal/adapter/http"
	appmw "edufund-backend/internal/adapter/middleware"
	paymentsim "edufund-backend/internal/adapter/payment"
	"edufund-backend/internal/adapter/repository/mysql"
	"edufund-backend/internal/config"
	redisx "edufund-backend/internal/infrastructure/cache"
	"edufund-backend/internal/infrastructure/db"
	"edufund-backend/internal/infrastructure/logger"
	"edufund-backend/internal/infrastructure/metrics"
	"edufund-backend/internal/usecase/automation"
	custodyuc "edufund-backend/internal/usecase/custody"
	ledgeruc "edufund-backend/internal/usecase/ledger"
	"edufund-backend/internal/usecase/matching"
	"edufund-backend/internal/usecase/origination"
	"edufund-backend/internal/usecase/settlement"
)

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
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.OpenGorm(cfg.DB.Driver, cfg.DSN(), log)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	rdb, err := redisx.OpenRedis(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	m := metrics.New(prometheus.NewRegistry())

	guow := mysql.NewGormUoW(gdb)
	loans := mysql.NewLoanRepository(gdb)
	offers := mysql.NewOfferRepository(gdb)
	matches := mysql.NewMatchRepository(gdb)
	accounts := mysql.NewAccountRepository(gdb)
	halt := cache.NewHaltSwitch(rdb, "")
	scoreRepo := mysql.NewScoreRepository(gdb)
	scores := cache.NewScoreCache(rdb, scoreRepo, cfg.ScoreCacheTTL, log.Named("scores"))

	pay, err := paymentsim.NewSimulator(cfg.Settlement.PaymentMode)
	if err != nil {
		return err
	}

	ledgerUC := ledgeruc.NewUsecase(mysql.NewEntryRepository(gdb), accounts, halt, m, log.Named("ledger"))
	custodyUC := custodyuc.NewUsecase(guow, accounts, ledgerUC, cfg.Settlement.MaxRetries, m, log.Named("custody"))

	var producer *events.SyncProducer
	if cfg.Kafka.Enabled {
		producer, err = events.NewSyncProducer(cfg.Kafka.Brokers, log.Named("producer"))
		if err != nil {
			return err
		}
		defer func() { _ = producer.Close() }()
	}

	deps := settlement.Deps{
		UoW:     guow,
		Matches: matches,
		Loans:   loans,
		Custody: custodyUC,
		Gateway: pay,
		Halt:    halt,
		Metrics: m,
		Log:     log.Named("settlement"),
	}
	if producer != nil {
		deps.Publisher = producer
	}
	settleUC := settlement.NewUsecase(deps, settlement.Config{
		MaxRetries:   cfg.Settlement.MaxRetries,
		MatchesTopic: cfg.Kafka.Topics.MatchesExecuted,
	})
	matchUC := matching.NewUsecase(loans, offers, matches, scores, matching.Config{
		MinScore:       cfg.Matching.MinScore,
		ScanLimit:      cfg.Matching.ScanLimit,
		AutoMatchLimit: cfg.Matching.AutoMatchLimit,
	}, log.Named("matching"))
	trigger := automation.NewTrigger(matchUC, settleUC, offers, log.Named("automation"))

	var announce origination.Announcer = automation.Inline{T: trigger}
	if producer != nil {
		announce = events.NewAnnouncer(producer, cfg.Kafka.Topics.LoansCreated, cfg.Kafka.Topics.OffersCreated)

		consumer, err := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, log.Named("consumer"))
		if err != nil {
			return err
		}
		defer func() { _ = consumer.Close() }()
		handler := events.NewAutomationHandler(trigger, cfg.Kafka.Topics.LoansCreated, cfg.Kafka.Topics.OffersCreated, log.Named("events"))
		go func() {
			if err := consumer.Consume(ctx, handler.Topics(), handler); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("automation consumer stopped", zap.Error(err))
			}
		}()
	}
	originUC := origination.NewUsecase(loans, offers, announce, log.Named("origination")).WithScores(scoreRepo, scores)

	if cfg.AuditInterval > 0 {
		go auditLoop(ctx, ledgerUC, cfg.AuditInterval, log)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover(), appmw.RequestLogger(log.Named("http"), m))
	httpadp.Register(e, httpadp.Routes{
		Health: httpadp.NewHandler(map[string]httpadp.Check{
			"db":    sqlDB.PingContext,
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
		Origination: httpadp.NewOriginationHandler(originUC),
		Matches:     httpadp.NewMatchHandler(matchUC, settleUC),
		Accounts:    httpadp.NewAccountHandler(custodyUC),
		Ledger:      httpadp.NewLedgerHandler(ledgerUC),
		Metrics:     m,
		Redis:       rdb,
		IdempTTL:    time.Duration(cfg.IdempTTLSecs) * time.Second,
		Log:         log.Named("idempotency"),
	})

	addr := ":" + cfg.AppPort
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("db_driver", cfg.DB.Driver), zap.Bool("kafka", cfg.Kafka.Enabled))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func auditLoop(ctx context.Context, l *ledgeruc.Usecase, every time.Duration, log *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := l.RunAudit(ctx); err != nil {
				log.Warn("scheduled audit failed", zap.Error(err))
			}
		}
	}
}
