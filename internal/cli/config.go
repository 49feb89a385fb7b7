package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/rux/internal/logging"
	"github.com/aretw0/rux/pkg/persistence/middleware"
)

// Config collects the flags shared by every command.
type Config struct {
	// Manifest is a YAML manifest file. Repo is a Loam directory of slice
	// documents. Exactly one must be set.
	Manifest string
	Repo     string
	Name     string

	LogLevel  string
	LogFormat string

	SnapshotDir    string
	SnapshotFormat string
	RedisAddr      string
	RedisPassword  string
	PostgresDSN    string
	SnapshotTTL    time.Duration
	LockTTL        time.Duration

	// EncryptionKey is a base64 AES-256 key. KeySeed derives versioned keys
	// instead; snapshots sealed under FallbackVersions stay readable.
	// Mask lists "Slice.field" patterns redacted before a snapshot is written.
	EncryptionKey    string
	KeySeed          string
	KeyVersion       string
	FallbackVersions []string
	Mask             []string

	// AuthSecret signs and verifies HTTP bearer tokens.
	AuthSecret string
}

var (
	errNoSource   = errors.New("one of --manifest or --repo is required")
	errTwoSources = errors.New("--manifest and --repo are mutually exclusive")
	errTwoKeys    = errors.New("--encryption-key and --key-seed are mutually exclusive")
	errTwoStores  = errors.New("--redis and --postgres are mutually exclusive")
)

// Validate checks the flag combination.
func (c Config) Validate() error {
	switch {
	case c.Manifest == "" && c.Repo == "":
		return errNoSource
	case c.Manifest != "" && c.Repo != "":
		return errTwoSources
	}
	if c.EncryptionKey != "" && c.KeySeed != "" {
		return errTwoKeys
	}
	if c.RedisAddr != "" && c.PostgresDSN != "" {
		return errTwoStores
	}
	if c.EncryptionKey != "" || c.KeySeed != "" {
		if _, err := c.encryption(); err != nil {
			return err
		}
	}
	return nil
}

// encryption builds the key set from a raw key or from the seed.
func (c Config) encryption() (middleware.EncryptionConfig, error) {
	if c.KeySeed != "" {
		version := c.KeyVersion
		if version == "" {
			version = "v1"
		}
		return middleware.DeriveConfig([]byte(c.KeySeed), version, c.FallbackVersions...)
	}
	key, err := c.encryptionKey()
	if err != nil {
		return middleware.EncryptionConfig{}, err
	}
	return middleware.EncryptionConfig{ActiveKey: key}, nil
}

func (c Config) encryptionKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid encryption key: want 32 bytes, got %d", len(key))
	}
	return key, nil
}

// NewLogger builds the application logger on Stderr.
func NewLogger(c Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.LogFormat)
	if err != nil {
		return nil, err
	}
	return logging.NewWithWriter(os.Stderr, level, format), nil
}
