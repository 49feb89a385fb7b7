package middleware

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

var keySalt = []byte("rux-snapshot")

// DeriveKey expands a master seed into the AES-256 key of one key version.
// Rotating to a new version keeps the old keys derivable as fallbacks.
func DeriveKey(seed []byte, version string) ([]byte, error) {
	if len(seed) == 0 {
		return nil, errors.New("key seed is required")
	}
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, errors.New("key version is required")
	}

	reader := hkdf.New(sha256.New, seed, keySalt, []byte("rux-snapshot-"+version))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// DeriveConfig derives the active key and one fallback key per older version.
func DeriveConfig(seed []byte, active string, fallbacks ...string) (EncryptionConfig, error) {
	key, err := DeriveKey(seed, active)
	if err != nil {
		return EncryptionConfig{}, err
	}
	cfg := EncryptionConfig{ActiveKey: key}
	for _, v := range fallbacks {
		k, err := DeriveKey(seed, v)
		if err != nil {
			return EncryptionConfig{}, err
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, k)
	}
	return cfg, nil
}
