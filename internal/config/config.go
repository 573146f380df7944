package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Store types accepted by StoreType
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StoreRedis    = "redis"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

// Config holds the process configuration
type Config struct {
	Addr     string
	LogLevel string

	// StartDisconnected starts the replicas partitioned
	StartDisconnected bool

	StoreType       string
	BadgerPath      string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	KeyPrefix       string
	MongoURI        string
	MongoDB         string
	MongoCollection string
	PostgresDSN     string
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Addr:            ":8080",
		LogLevel:        "info",
		StoreType:       StoreMemory,
		BadgerPath:      "./data/snapshots",
		RedisAddr:       "localhost:6379",
		KeyPrefix:       "flowsync",
		MongoURI:        "mongodb://localhost:27017",
		MongoDB:         "flowsync",
		MongoCollection: "snapshots",
		PostgresDSN:     "postgres://localhost:5432/flowsync",
	}
}

// Parse builds the configuration from defaults, the .env file named by -env (when it
// exists), environment variables and finally the flags set in args.
func Parse(args []string) (*Config, error) {
	cfg := Default()
	flagged := Default()

	fs := flag.NewFlagSet("flowsync", flag.ContinueOnError)
	envFile := fs.String("env", ".env", "Path to .env file")
	fs.StringVar(&flagged.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&flagged.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.BoolVar(&flagged.StartDisconnected, "disconnected", cfg.StartDisconnected, "Start with the replicas partitioned")
	fs.StringVar(&flagged.StoreType, "store", cfg.StoreType, "Snapshot store (memory, badger, redis, mongo, postgres)")
	fs.StringVar(&flagged.BadgerPath, "badger-path", cfg.BadgerPath, "Badger data directory")
	fs.StringVar(&flagged.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address")
	fs.StringVar(&flagged.MongoURI, "mongo-uri", cfg.MongoURI, "MongoDB connection URI")
	fs.StringVar(&flagged.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load environment variables from .env file if it exists
	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", *envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	// Flags given explicitly win over the environment
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = flagged.Addr
		case "log-level":
			cfg.LogLevel = flagged.LogLevel
		case "disconnected":
			cfg.StartDisconnected = flagged.StartDisconnected
		case "store":
			cfg.StoreType = flagged.StoreType
		case "badger-path":
			cfg.BadgerPath = flagged.BadgerPath
		case "redis-addr":
			cfg.RedisAddr = flagged.RedisAddr
		case "mongo-uri":
			cfg.MongoURI = flagged.MongoURI
		case "postgres-dsn":
			cfg.PostgresDSN = flagged.PostgresDSN
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"FLOWSYNC_ADDR":    &c.Addr,
		"LOG_LEVEL":        &c.LogLevel,
		"STORE_TYPE":       &c.StoreType,
		"BADGER_PATH":      &c.BadgerPath,
		"REDIS_ADDR":       &c.RedisAddr,
		"REDIS_PASSWORD":   &c.RedisPassword,
		"KEY_PREFIX":       &c.KeyPrefix,
		"MONGO_URI":        &c.MongoURI,
		"MONGO_DB":         &c.MongoDB,
		"MONGO_COLLECTION": &c.MongoCollection,
		"POSTGRES_DSN":     &c.PostgresDSN,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		c.RedisDB = db
	}
	if v := os.Getenv("START_DISCONNECTED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid START_DISCONNECTED %q: %w", v, err)
		}
		c.StartDisconnected = b
	}
	return nil
}

// Validate checks the store selection
func (c *Config) Validate() error {
	switch c.StoreType {
	case StoreMemory, StoreBadger, StoreRedis, StoreMongo, StorePostgres:
		return nil
	default:
		return fmt.Errorf("unknown store type %q", c.StoreType)
	}
}
