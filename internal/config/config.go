package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Database  DatabaseConfig
	JWT       JWTConfig
	App       AppConfig
	Storage   StorageConfig
	Payroll   PayrollConfig
	Processor ProcessorConfig
	Redis     RedisConfig
	CORS      CORSConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
	Name     string
	Version  string
}

// StorageConfig selects the persistence backend: "postgres" or "memory".
type StorageConfig struct {
	Type string
}

// PayrollConfig holds the money and diurna policy of the salary engine.
type PayrollConfig struct {
	BaseCurrency     string
	ExchangeRates    map[string]decimal.Decimal
	DiurnaDailyRate  decimal.Decimal
	HalfDayThreshold time.Duration
	FullDayThreshold time.Duration
	Location         *time.Location
}

// ProcessorConfig holds the automatic payment processor settings.
type ProcessorConfig struct {
	Schedule      string
	Concurrency   int
	DriverTimeout time.Duration
	LockTTL       time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	minConns, err := strconv.Atoi(getEnv("DB_MIN_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "fleet_payroll"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(maxConns),
		MinConns: int32(minConns),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Name:     getEnv("APP_NAME", "fleet-payroll"),
		Version:  getEnv("APP_VERSION", "v1.0.0"),
	}

	config.JWT = JWTConfig{
		Secret: getEnv("JWT_SECRET_KEY", ""),
	}

	config.Storage = StorageConfig{
		Type: getEnv("STORAGE_TYPE", "postgres"),
	}

	// Payroll configuration
	payroll, err := loadPayroll()
	if err != nil {
		return nil, err
	}
	config.Payroll = payroll

	// Processor configuration
	concurrency, err := strconv.Atoi(getEnv("PROCESSOR_CONCURRENCY", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROCESSOR_CONCURRENCY: %w", err)
	}
	driverTimeout, err := time.ParseDuration(getEnv("PROCESSOR_DRIVER_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROCESSOR_DRIVER_TIMEOUT: %w", err)
	}
	lockTTL, err := time.ParseDuration(getEnv("PROCESSOR_LOCK_TTL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROCESSOR_LOCK_TTL: %w", err)
	}

	config.Processor = ProcessorConfig{
		Schedule:      getEnv("PROCESSOR_SCHEDULE", "0 2 * * *"),
		Concurrency:   concurrency,
		DriverTimeout: driverTimeout,
		LockTTL:       lockTTL,
	}

	// Redis configuration (optional, enables distributed locks)
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	config.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	config.CORS = CORSConfig{
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}
	if len(config.CORS.AllowedOrigins) == 0 {
		config.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadPayroll() (PayrollConfig, error) {
	dailyRate, err := decimal.NewFromString(getEnv("DIURNA_DAILY_RATE", "50"))
	if err != nil {
		return PayrollConfig{}, fmt.Errorf("invalid DIURNA_DAILY_RATE: %w", err)
	}
	halfDay, err := time.ParseDuration(getEnv("DIURNA_HALF_DAY_THRESHOLD", "6h"))
	if err != nil {
		return PayrollConfig{}, fmt.Errorf("invalid DIURNA_HALF_DAY_THRESHOLD: %w", err)
	}
	fullDay, err := time.ParseDuration(getEnv("DIURNA_FULL_DAY_THRESHOLD", "12h"))
	if err != nil {
		return PayrollConfig{}, fmt.Errorf("invalid DIURNA_FULL_DAY_THRESHOLD: %w", err)
	}
	rates, err := ParseExchangeRates(getEnv("EXCHANGE_RATES", "EUR:4.97,USD:4.60"))
	if err != nil {
		return PayrollConfig{}, fmt.Errorf("invalid EXCHANGE_RATES: %w", err)
	}
	loc, err := time.LoadLocation(getEnv("PAYROLL_TIMEZONE", "Europe/Bucharest"))
	if err != nil {
		return PayrollConfig{}, fmt.Errorf("invalid PAYROLL_TIMEZONE: %w", err)
	}

	return PayrollConfig{
		BaseCurrency:     strings.ToUpper(getEnv("BASE_CURRENCY", "RON")),
		ExchangeRates:    rates,
		DiurnaDailyRate:  dailyRate,
		HalfDayThreshold: halfDay,
		FullDayThreshold: fullDay,
		Location:         loc,
	}, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "postgres":
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported STORAGE_TYPE: %s", c.Storage.Type)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Payroll.BaseCurrency == "" {
		return fmt.Errorf("BASE_CURRENCY is required")
	}
	if c.Payroll.DiurnaDailyRate.IsNegative() {
		return fmt.Errorf("DIURNA_DAILY_RATE must be non-negative")
	}
	if c.Payroll.HalfDayThreshold <= 0 || c.Payroll.HalfDayThreshold > c.Payroll.FullDayThreshold {
		return fmt.Errorf("DIURNA_HALF_DAY_THRESHOLD must be positive and not exceed DIURNA_FULL_DAY_THRESHOLD")
	}
	if c.Payroll.FullDayThreshold > 24*time.Hour {
		return fmt.Errorf("DIURNA_FULL_DAY_THRESHOLD must not exceed 24h")
	}
	if c.Processor.Concurrency < 1 {
		return fmt.Errorf("PROCESSOR_CONCURRENCY must be at least 1")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// ParseExchangeRates parses "EUR:4.97,USD:4.60" into a currency -> rate map.
// Rates convert one unit of the currency into the base currency.
func ParseExchangeRates(value string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal)
	if strings.TrimSpace(value) == "" {
		return rates, nil
	}
	for _, pair := range strings.Split(value, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, fmt.Errorf("rate for %s: %w", kv[0], err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive", kv[0])
		}
		rates[strings.ToUpper(strings.TrimSpace(kv[0]))] = rate
	}
	return rates, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string = strings.Split(value, ",")
	return result
}
