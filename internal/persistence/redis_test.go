package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/config"
)

func TestConnectRedisUnreachable(t *testing.T) {
	t.Parallel()

	rdb, err := ConnectRedis(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1"}, 200*time.Millisecond, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, rdb)
	assert.Contains(t, err.Error(), "127.0.0.1:1")

	assert.NotPanics(t, rdb.Close)
}
