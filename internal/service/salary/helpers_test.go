package salary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/audit"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/driver"
	"github.com/fleetdesk/payroll-backend-go/internal/domain/salary"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/lock"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/metrics"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/money"
	"github.com/fleetdesk/payroll-backend-go/internal/repository/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	february = time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	march    = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	testNow  = time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)
)

type testEnv struct {
	store     *memory.Store
	drivers   driver.DriverRepository
	salaries  salary.SalaryRepository
	auditLog  audit.Logger
	locker    *lock.LocalLocker
	converter *money.Converter
	svc       salary.SalaryService
}

type envOption func(*envConfig)

type envConfig struct {
	wrapDrivers func(driver.DriverRepository) driver.DriverRepository
	wrapAudit   func(audit.Logger) audit.Logger
	policy      DiurnaPolicy
	timeout     time.Duration
}

func withDrivers(wrap func(driver.DriverRepository) driver.DriverRepository) envOption {
	return func(c *envConfig) { c.wrapDrivers = wrap }
}

func withAudit(wrap func(audit.Logger) audit.Logger) envOption {
	return func(c *envConfig) { c.wrapAudit = wrap }
}

func withDriverTimeout(timeout time.Duration) envOption {
	return func(c *envConfig) { c.timeout = timeout }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := envConfig{policy: DefaultDiurnaPolicy(), timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := memory.NewStore()
	env := &testEnv{
		store:    store,
		drivers:  memory.NewDriverRepository(store),
		salaries: memory.NewSalaryRepository(store),
		auditLog: memory.NewAuditLogger(store),
		locker:   lock.NewLocalLocker(),
		converter: money.NewConverter("RON", map[string]decimal.Decimal{
			"EUR": decimal.NewFromInt(5),
		}),
	}
	if cfg.wrapDrivers != nil {
		env.drivers = cfg.wrapDrivers(env.drivers)
	}
	if cfg.wrapAudit != nil {
		env.auditLog = cfg.wrapAudit(env.auditLog)
	}

	m := metrics.New(prometheus.NewRegistry())
	calc := NewDiurnaCalculator(env.drivers, env.converter, cfg.policy, m)
	env.svc = NewSalaryService(store, env.salaries, env.drivers, env.auditLog, calc, env.converter, env.locker, m, Options{
		Concurrency:   2,
		DriverTimeout: cfg.timeout,
		Now:           func() time.Time { return testNow },
	})
	return env
}

func (e *testEnv) addDriver(name string, base *decimal.Decimal) driver.Driver {
	return e.store.AddDriver(driver.Driver{
		Name:       name,
		Active:     true,
		Status:     driver.StatusAvailable,
		BaseSalary: base,
	})
}

func (e *testEnv) history(t *testing.T, id string) []audit.Entry {
	t.Helper()
	entries, err := e.auditLog.ListByEntity(context.Background(), salary.EntityType, id)
	require.NoError(t, err)
	return entries
}

func actions(entries []audit.Entry) []audit.Action {
	out := make([]audit.Action, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

var errRegistryDown = errors.New("registry down")

// flakyDrivers fails registry reads for one driver.
type flakyDrivers struct {
	driver.DriverRepository
	failFor string
}

func (f flakyDrivers) ListDiurnaEntries(ctx context.Context, driverID string, from, to time.Time) ([]driver.DiurnaEntry, error) {
	if driverID == f.failFor {
		return nil, errRegistryDown
	}
	return f.DriverRepository.ListDiurnaEntries(ctx, driverID, from, to)
}

func (f flakyDrivers) ListTrips(ctx context.Context, driverID string, from, to time.Time) ([]driver.Trip, error) {
	if driverID == f.failFor {
		return nil, errRegistryDown
	}
	return f.DriverRepository.ListTrips(ctx, driverID, from, to)
}

// stalledDrivers blocks registry reads for one driver until ctx is done.
type stalledDrivers struct {
	driver.DriverRepository
	stalled *driver.Driver
}

func (f *stalledDrivers) ListDiurnaEntries(ctx context.Context, driverID string, from, to time.Time) ([]driver.DiurnaEntry, error) {
	if driverID == f.stalled.ID {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.DriverRepository.ListDiurnaEntries(ctx, driverID, from, to)
}
