package database

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mesworks/shopsched/pkg/config"
)

// Querier is the subset of *pgxpool.Pool the services run their SQL through.
// Tests substitute a scripted implementation.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	instance *PostgreSQL
	once     sync.Once
)

// PostgreSQL represents a PostgreSQL database connection
type PostgreSQL struct {
	pool *pgxpool.Pool
}

type PostgreSQLConfig struct {
	User              string
	Password          string
	Host              string
	Port              int
	Database          string
	SSLMode           string
	MaxConnections    int32
	ConnectionTimeout time.Duration
}

// New creates a new PostgreSQL instance
func New(ctx context.Context, cfg PostgreSQLConfig) (*PostgreSQL, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("database name is required - must be provided in config or SHOPSCHED_DATABASE_NAME environment variable")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("database host is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("database user is required")
	}

	// Use pgxpool.ParseConfig to handle special characters in passwords
	poolConfig, err := pgxpool.ParseConfig("")
	if err != nil {
		return nil, fmt.Errorf("failed to create connection config: %w", err)
	}

	// Set connection parameters individually to avoid URL parsing issues
	poolConfig.ConnConfig.Host = cfg.Host
	poolConfig.ConnConfig.Port = uint16(cfg.Port)
	poolConfig.ConnConfig.Database = cfg.Database
	poolConfig.ConnConfig.User = cfg.User
	poolConfig.ConnConfig.Password = cfg.Password
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectionTimeout

	switch cfg.SSLMode {
	case "disable":
		poolConfig.ConnConfig.TLSConfig = nil
	case "require", "prefer":
		// pgx handles the TLS negotiation automatically
	default:
	}

	poolConfig.MaxConns = cfg.MaxConnections
	poolConfig.MaxConnIdleTime = cfg.ConnectionTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgreSQL{pool: pool}, nil
}

// FromGlobalConfig creates a PostgreSQL config from the global configuration
func FromGlobalConfig(cfg *config.Config) PostgreSQLConfig {
	port := 5432
	if p, err := strconv.Atoi(cfg.Get("database.port")); err == nil && p > 0 {
		port = p
	}

	maxConns := int32(40)
	if m, err := strconv.Atoi(cfg.Get("database.maxconnections")); err == nil && m > 0 {
		maxConns = int32(m)
	}

	return PostgreSQLConfig{
		User:              cfg.GetOrDefault("database.user", "shopsched"),
		Password:          cfg.GetOrDefault("database.password", "shopsched"),
		Host:              cfg.GetOrDefault("database.host", "localhost"),
		Port:              port,
		Database:          cfg.Get("database.name"),
		SSLMode:           cfg.GetOrDefault("database.sslmode", "disable"),
		MaxConnections:    maxConns,
		ConnectionTimeout: 5 * time.Second,
	}
}

// Pool returns the underlying connection pool
func (db *PostgreSQL) Pool() *pgxpool.Pool {
	return db.pool
}

// Close closes the database connection
func (db *PostgreSQL) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Initialize creates and sets up the database instance
func Initialize(ctx context.Context, cfg PostgreSQLConfig) error {
	var err error
	once.Do(func() {
		instance, err = New(ctx, cfg)
	})
	return err
}

// GetInstance returns the singleton database instance
func GetInstance() *PostgreSQL {
	if instance == nil {
		panic("database not initialized")
	}
	return instance
}
