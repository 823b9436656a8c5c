package factory

import (
	"strings"
	"testing"

	"sentinel-auth/internal/config"
)

// The primary stores are required in every environment. A development
// process must not come up with a nil Redis client wired into the OTP store.
func TestInitializeClientsFailsWithoutRedis(t *testing.T) {
	f := &Factory{
		config: &config.Config{
			Environment: "development",
			Redis:       config.RedisConfig{URL: "redis://127.0.0.1:1", PoolSize: 1},
		},
		closed: make(chan struct{}),
	}

	err := f.initializeClients()
	if err == nil {
		t.Fatal("initializeClients succeeded with unreachable Redis")
	}
	if !strings.Contains(err.Error(), "redis") {
		t.Errorf("err = %v, want a redis failure", err)
	}
	if f.redisClient != nil {
		t.Error("redis client set despite failed initialization")
	}
}
