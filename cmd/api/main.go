package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fleetdesk/payroll-backend-go/internal/config"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/audit"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/driver"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/salary"
	"github.com/fleetdesk/payroll-backend-go/internal/fixtures"
	appHTTP "github.com/fleetdesk/payroll-backend-go/internal/handler/http"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/cron"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/database"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/jwt"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/lock"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/metrics"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/money"
	"github.com/fleetdesk/payroll-backend-go/internal/repository/memory"
	"github.com/fleetdesk/payroll-backend-go/internal/repository/postgresql"
	salaryService "github.com/fleetdesk/payroll-backend-go/internal/service/salary"
)

type repositories struct {
	tx       salary.Transactor
	salaries salary.SalaryRepository
	drivers  driver.DriverRepository
	auditLog audit.Logger
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	logger := appHTTP.NewLogger(cfg.App.Name, cfg.App.Version, cfg.App.Env, parseLevel(cfg.App.LogLevel))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "type", cfg.Storage.Type, "error", err)
		os.Exit(1)
	}
	defer repos.close()

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		client, err := lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Error("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client, "payroll:")
		slog.Info("Using Redis locks", "addr", cfg.Redis.Addr)
	}

	m := metrics.NewWithRuntime()
	converter := money.NewConverter(cfg.Payroll.BaseCurrency, cfg.Payroll.ExchangeRates)
	diurna := salaryService.NewDiurnaCalculator(repos.drivers, converter, salaryService.DiurnaPolicy{
		DefaultRate:      cfg.Payroll.DiurnaDailyRate,
		HalfDayThreshold: cfg.Payroll.HalfDayThreshold,
		FullDayThreshold: cfg.Payroll.FullDayThreshold,
		Location:         cfg.Payroll.Location,
	}, m)

	salarySvc := salaryService.NewSalaryService(
		repos.tx,
		repos.salaries,
		repos.drivers,
		repos.auditLog,
		diurna,
		converter,
		locker,
		m,
		salaryService.Options{
			Concurrency:   cfg.Processor.Concurrency,
			DriverTimeout: cfg.Processor.DriverTimeout,
			BatchLockTTL:  cfg.Processor.LockTTL,
		},
	)

	scheduler := cron.NewScheduler(cfg.Payroll.Location)
	salaryJobs := cron.NewSalaryJobs(salarySvc, cfg.Processor.Schedule, cfg.Payroll.Location, time.Now)
	if err := salaryJobs.RegisterJobs(scheduler); err != nil {
		slog.Error("Failed to register cron jobs", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	JWTService := jwt.NewJWTService(cfg.JWT.Secret)
	salaryHandler := appHTTP.NewSalaryHandler(salarySvc, time.Now, cfg.Payroll.Location)
	router := appHTTP.NewRouter(JWTService, salaryHandler, appHTTP.RouterOptions{
		Logger:         logger,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Metrics:        m.Handler(),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server running", "addr", "http://localhost"+server.Addr, "storage", cfg.Storage.Type)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
	scheduler.Stop()
}

func openRepositories(ctx context.Context, cfg *config.Config) (repositories, error) {
	switch cfg.Storage.Type {
	case "postgres":
		db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return repositories{}, fmt.Errorf("connect to database: %w", err)
		}
		if err := postgresql.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return repositories{}, err
		}
		return repositories{
			tx:       postgresql.NewTransactor(db),
			salaries: postgresql.NewSalaryRepository(db),
			drivers:  postgresql.NewDriverRepository(db),
			auditLog: postgresql.NewAuditLogger(db),
			close:    db.Close,
		}, nil

	case "memory":
		store := memory.NewStore()
		seeded := fixtures.SeedDemoFleet(store, time.Now())
		slog.Info("Seeded in-memory demo fleet", "drivers", len(seeded.DriverIDs))
		return repositories{
			tx:       store,
			salaries: memory.NewSalaryRepository(store),
			drivers:  memory.NewDriverRepository(store),
			auditLog: memory.NewAuditLogger(store),
			close:    func() {},
		}, nil
	}
	return repositories{}, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
