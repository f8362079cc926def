package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "oracle", cfg.Database)
	assert.Equal(t, "oracle", cfg.User)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, int32(5), cfg.MaxConns)
	assert.Equal(t, int32(1), cfg.MinConns)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{
		Host:           "db.internal",
		Port:           5433,
		Database:       "journal",
		User:           "worker",
		Password:       "secret",
		SSLMode:        "require",
		ConnectTimeout: 10 * time.Second,
	}

	dsn := cfg.DSN()

	assert.Equal(t, "host=db.internal port=5433 dbname=journal user=worker password=secret sslmode=require connect_timeout=10", dsn)
}

func TestConfig_PoolConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "localhost"
	cfg.Password = "pass"

	poolCfg, err := cfg.PoolConfig()
	require.NoError(t, err)

	assert.Equal(t, int32(5), poolCfg.MaxConns)
	assert.Equal(t, int32(1), poolCfg.MinConns)
	assert.Equal(t, time.Hour, poolCfg.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, poolCfg.MaxConnIdleTime)
	assert.Equal(t, "localhost", poolCfg.ConnConfig.Host)
	assert.Equal(t, "oracle", poolCfg.ConnConfig.Database)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(pgx.ErrNoRows))
	assert.True(t, IsNoRows(ErrNoRows))
	assert.False(t, IsNoRows(errors.New("plain")))
	assert.False(t, IsNoRows(nil))
}
