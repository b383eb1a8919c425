package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetIntBool(t *testing.T) {
	t.Setenv("X_INT", "42")
	assert.Equal(t, 42, getInt("X_INT", 1))
	assert.Equal(t, 7, getInt("X_INT_MISSING", 7))

	t.Setenv("X_BOOL_T", "true")
	t.Setenv("X_BOOL_F", "false")
	assert.True(t, getBool("X_BOOL_T", false))
	assert.False(t, getBool("X_BOOL_F", true))
}

func TestDefaults_ReadsEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("RATE_LIMIT_MAX", "10")
	t.Setenv("JWT_ACCESS_MIN", "5")

	cfg := Defaults()
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 10, cfg.RateLimit.Max)
	assert.Equal(t, 5, cfg.JWT.AccessMin)
	assert.Equal(t, "HS256", cfg.JWT.Algo)
}

func TestApplyValues(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Password = "old"
	values := map[string]string{
		"log.level":      "debug",
		"pg.max_open":    "42",
		"pg.max_idle":    "not-a-number",
		"redis.password": "",
	}
	applyValues(cfg, func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	})

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 42, cfg.PG.MaxOpenConns)
	assert.Equal(t, 5, cfg.PG.MaxIdleConns)
	assert.Equal(t, "", cfg.Redis.Password)
}

func TestStore_UpdateValidated(t *testing.T) {
	s := NewStore(Defaults())
	var seen []string
	s.Watch(func(newCfg *Config, changed map[string]bool) {
		seen = append(seen, newCfg.Log.Level)
	})
	s.AddValidator(func(newCfg *Config, changed map[string]bool) error {
		if newCfg.Log.Level == "bogus" {
			return errors.New("bad level")
		}
		return nil
	})

	next := cloneConfig(s.Get())
	next.Log.Level = "bogus"
	require.False(t, s.UpdateValidated(next, map[string]bool{"log.level": true}))
	assert.NotEqual(t, "bogus", s.Get().Log.Level)

	next = cloneConfig(s.Get())
	next.Log.Level = "warn"
	require.True(t, s.UpdateValidated(next, map[string]bool{"log.level": true}))
	assert.Equal(t, "warn", s.Get().Log.Level)
	assert.Equal(t, []string{"warn"}, seen)
}
