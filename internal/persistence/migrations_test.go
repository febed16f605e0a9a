package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/desk-bridge/internal/config"
)

func TestMigrationNamesAreSorted(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_relay_journal.sql", names[0])
	assert.IsIncreasing(t, names)
}

func TestRunMigrationsWithoutPool(t *testing.T) {
	assert.NoError(t, RunMigrations(context.Background(), nil, zap.NewNop()))
}

func TestOptionalBackendsWithoutConfig(t *testing.T) {
	ctx := context.Background()
	pg, err := NewPostgres(ctx, config.PostgresConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, pg.PoolHandle())
	assert.Error(t, pg.Ping(ctx))

	rdb := NewRedis(ctx, config.RedisConfig{}, zap.NewNop())
	assert.Nil(t, rdb)
	assert.Error(t, rdb.Ping(ctx))
	rdb.Close()
}

func TestApplyPoolLimits(t *testing.T) {
	poolCfg, err := pgxpool.ParseConfig("postgres://bridge@localhost:5432/bridge")
	require.NoError(t, err)

	applyPoolLimits(poolCfg, config.PostgresConfig{MaxConns: 7, MinConns: 2, ConnMaxIdleSec: 30, ConnMaxLifeSec: 300})

	assert.Equal(t, int32(7), poolCfg.MaxConns)
	assert.Equal(t, int32(2), poolCfg.MinConns)
	assert.Equal(t, 30*time.Second, poolCfg.MaxConnIdleTime)
	assert.Equal(t, 5*time.Minute, poolCfg.MaxConnLifetime)
}
