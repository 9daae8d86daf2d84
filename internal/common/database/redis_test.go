// internal/common/database/redis_test.go
package database

import (
	"context"
	"testing"

	"devmatch-workers/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis_PingsMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))
}

func TestNewRedis_RejectsEmptyAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestRedisPing_FailsWhenServerGone(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func TestPostgresDSN(t *testing.T) {
	dsn := config.PostgresConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", Database: "devmatch", SSLMode: "disable",
	}.GetDSN()
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=devmatch sslmode=disable", dsn)
}
