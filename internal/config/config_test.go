package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.PollWait)
	assert.Equal(t, 30, cfg.SendLimit)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHAT_ADDR", "127.0.0.1:9000")
	t.Setenv("CHAT_POLL_WAIT", "10s")
	t.Setenv("CHAT_SEND_LIMIT", "5")

	cfg := Load()

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, 10*time.Second, cfg.PollWait)
	assert.Equal(t, 5, cfg.SendLimit)
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("CHAT_POLL_WAIT", "not-a-duration")
	t.Setenv("CHAT_SEND_LIMIT", "many")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.PollWait)
	assert.Equal(t, 30, cfg.SendLimit)
}
