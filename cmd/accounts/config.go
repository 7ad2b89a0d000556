package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/accounts/internal/logger"
	"github.com/nkiryanov/accounts/internal/models"
)

const (
	BrokerKafka = "kafka"
	BrokerNATS  = "nats"
	BrokerNone  = "none"
)

const (
	defaultListenAddr    = "localhost:8000"
	defaultLoggingLevel  = logger.LevelInfo
	defaultEnvironment   = logger.EnvProduction
	defaultAccessTTL     = 5 * time.Minute
	defaultRefreshTTL    = 7 * 24 * time.Hour
	defaultBcryptCost    = 12
	defaultEventsBroker  = BrokerNone
	defaultEventsTimeout = 5 * time.Second
	defaultSweepInterval = time.Hour
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the accounts service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secrets to sign access and refresh tokens. Both required and must differ
	AccessTokenSecret  string
	RefreshTokenSecret string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Password hashing cost and count of concurrent hash computations (0 is number of CPUs)
	BcryptCost  int
	HashWorkers int

	// Count of reverse proxies in front of the service that append to X-Forwarded-For
	TrustedProxyDepth int

	// Where account events go: kafka, nats or none (log only)
	EventsBroker  string
	KafkaBrokers  []string
	NATSURL       string
	EventsTopic   string
	EventsTimeout time.Duration

	SessionSweepInterval time.Duration

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:             defaultLoggingLevel,
		ListenAddr:           defaultListenAddr,
		Environment:          defaultEnvironment,
		AccessTokenTTL:       defaultAccessTTL,
		RefreshTokenTTL:      defaultRefreshTTL,
		BcryptCost:           defaultBcryptCost,
		EventsBroker:         defaultEventsBroker,
		EventsTopic:          models.TopicAccountDeleted,
		EventsTimeout:        defaultEventsTimeout,
		SessionSweepInterval: defaultSweepInterval,
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
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			i, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = i
			return nil
		}
	}
	setList := func(o *[]string) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			*o = (*o)[:0]
			for _, item := range strings.Split(value, ",") {
				if item = strings.TrimSpace(item); item != "" {
					*o = append(*o, item)
				}
			}
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":            setString(&c.ListenAddr),
		"DATABASE_URI":           setString(&c.DatabaseDSN),
		"ACCESS_TOKEN_SECRET":    setString(&c.AccessTokenSecret),
		"REFRESH_TOKEN_SECRET":   setString(&c.RefreshTokenSecret),
		"ACCESS_TOKEN_TTL":       setDuration(&c.AccessTokenTTL),
		"REFRESH_TOKEN_TTL":      setDuration(&c.RefreshTokenTTL),
		"BCRYPT_COST":            setInt(&c.BcryptCost),
		"HASH_WORKERS":           setInt(&c.HashWorkers),
		"TRUSTED_PROXY_DEPTH":    setInt(&c.TrustedProxyDepth),
		"EVENTS_BROKER":          setString(&c.EventsBroker),
		"KAFKA_BROKERS":          setList(&c.KafkaBrokers),
		"NATS_URL":               setString(&c.NATSURL),
		"EVENTS_TOPIC":           setString(&c.EventsTopic),
		"EVENTS_TIMEOUT":         setDuration(&c.EventsTimeout),
		"SESSION_SWEEP_INTERVAL": setDuration(&c.SessionSweepInterval),
		"LOG_LEVEL":              setString(&c.LogLevel),
		"ENVIRONMENT":            setString(&c.Environment),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("accounts", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVar(&c.AccessTokenSecret, "access-secret", c.AccessTokenSecret, "Secret to sign access tokens")
	fs.StringVar(&c.RefreshTokenSecret, "refresh-secret", c.RefreshTokenSecret, "Secret to sign refresh tokens")
	fs.DurationVar(&c.AccessTokenTTL, "access-ttl", c.AccessTokenTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTokenTTL, "refresh-ttl", c.RefreshTokenTTL, "Refresh token lifetime")
	fs.IntVar(&c.BcryptCost, "bcrypt-cost", c.BcryptCost, "Password hashing cost")
	fs.IntVar(&c.HashWorkers, "hash-workers", c.HashWorkers, "Concurrent password hash computations, 0 is number of CPUs")
	fs.IntVar(&c.TrustedProxyDepth, "trusted-proxy-depth", c.TrustedProxyDepth, "Reverse proxies in front of the service")
	fs.StringVar(&c.EventsBroker, "events-broker", c.EventsBroker, "Events broker (kafka, nats, none)")
	fs.StringSliceVar(&c.KafkaBrokers, "kafka-brokers", c.KafkaBrokers, "Kafka bootstrap brokers")
	fs.StringVar(&c.NATSURL, "nats-url", c.NATSURL, "NATS server url")
	fs.StringVar(&c.EventsTopic, "events-topic", c.EventsTopic, "Topic (subject) for account deletion events")
	fs.DurationVar(&c.EventsTimeout, "events-timeout", c.EventsTimeout, "Upper bound of event publishing")
	fs.DurationVar(&c.SessionSweepInterval, "sweep-interval", c.SessionSweepInterval, "How often expired sessions are removed")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

// Validate checks options that have no sensible default
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}
	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("both access and refresh token secrets are required"))
	} else if c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}

	switch c.EventsBroker {
	case BrokerKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("kafka brokers are required for kafka events broker"))
		}
	case BrokerNATS:
		if c.NATSURL == "" {
			errs = append(errs, errors.New("nats url is required for nats events broker"))
		}
	case BrokerNone:
	default:
		errs = append(errs, fmt.Errorf("unknown events broker %q", c.EventsBroker))
	}

	if c.TrustedProxyDepth < 0 {
		errs = append(errs, errors.New("trusted proxy depth must not be negative"))
	}

	return errors.Join(errs...)
}
