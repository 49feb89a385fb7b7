package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// environment lists the settings that may come from RUX_* variables.
type environment struct {
	LogLevel      string `env:"RUX_LOG_LEVEL"`
	SnapshotDir   string `env:"RUX_SNAPSHOT_DIR"`
	RedisAddr     string `env:"RUX_REDIS_ADDR"`
	RedisPassword string `env:"RUX_REDIS_PASSWORD"`
	PostgresDSN   string `env:"RUX_POSTGRES_DSN"`
	EncryptionKey string `env:"RUX_ENCRYPTION_KEY"`
	KeySeed       string `env:"RUX_KEY_SEED"`
	AuthSecret    string `env:"RUX_AUTH_SECRET"`
}

// ApplyEnv loads the dotenv files that exist, then fills every setting whose
// flag was not given on the command line from its RUX_* variable. Variables
// already set in the process win over dotenv files.
func (c *Config) ApplyEnv(changed func(flag string) bool, files ...string) error {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) > 0 {
		if err := godotenv.Load(present...); err != nil {
			return fmt.Errorf("failed to load %v: %w", present, err)
		}
	}

	var env environment
	if err := envdecode.Decode(&env); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return fmt.Errorf("failed to read environment: %w", err)
	}

	bindings := []struct {
		flags  []string
		value  string
		target *string
	}{
		{[]string{"log-level"}, env.LogLevel, &c.LogLevel},
		{[]string{"snapshot-dir"}, env.SnapshotDir, &c.SnapshotDir},
		{[]string{"redis"}, env.RedisAddr, &c.RedisAddr},
		{[]string{"redis-password"}, env.RedisPassword, &c.RedisPassword},
		{[]string{"postgres"}, env.PostgresDSN, &c.PostgresDSN},
		{[]string{"encryption-key"}, env.EncryptionKey, &c.EncryptionKey},
		{[]string{"key-seed"}, env.KeySeed, &c.KeySeed},
		{[]string{"auth-secret", "secret"}, env.AuthSecret, &c.AuthSecret},
	}
	for _, b := range bindings {
		if b.value == "" || anyChanged(changed, b.flags) {
			continue
		}
		*b.target = b.value
	}
	return nil
}

func anyChanged(changed func(string) bool, flags []string) bool {
	for _, f := range flags {
		if changed(f) {
			return true
		}
	}
	return false
}
