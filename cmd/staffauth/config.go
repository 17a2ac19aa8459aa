package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/pmikheev/staffauth/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultMetricsAddr  = "localhost:9090"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultRedisAddr    = "localhost:6379"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the auth service will be run
	ListenAddr string

	// Address of the metrics and health listener
	MetricsAddr string

	// Database to connect to
	DatabaseDSN string

	// Redis that keeps the refresh token sessions
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Secret key
	// JWT tokens are signed symmetrically, so this key is used for that purpose
	SecretKey string

	// Token lifetimes. Zero means the token manager defaults
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		MetricsAddr: defaultMetricsAddr,
		RedisAddr:   defaultRedisAddr,
		Environment: defaultEnvironment,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setInt := func(o *int) func(value string) {
		return func(value string) {
			if parsed, err := strconv.Atoi(value); err == nil {
				*o = parsed
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if parsed, err := time.ParseDuration(value); err == nil {
				*o = parsed
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":       setString(&c.ListenAddr),
		"METRICS_ADDRESS":   setString(&c.MetricsAddr),
		"DATABASE_URI":      setString(&c.DatabaseDSN),
		"REDIS_ADDRESS":     setString(&c.RedisAddr),
		"REDIS_PASSWORD":    setString(&c.RedisPassword),
		"REDIS_DB":          setInt(&c.RedisDB),
		"SECRET_KEY":        setString(&c.SecretKey),
		"ACCESS_TOKEN_TTL":  setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_TTL": setDuration(&c.RefreshTTL),
		"LOG_LEVEL":         setString(&c.LogLevel),
		"ENVIRONMENT":       setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("staffauth", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.MetricsAddr, "metrics-address", "m", c.MetricsAddr, "Metrics listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.RedisAddr, "redis", "r", c.RedisAddr, "Redis address")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}
