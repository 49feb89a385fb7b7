package main

import (
	"fmt"
	"os"

	"github.com/aretw0/rux/internal/cli"
	"github.com/spf13/cobra"
)

var cfg cli.Config

var rootCmd = &cobra.Command{
	Use:   "rux",
	Short: "rux is a reactive store of typed state slices",
	Long: `rux builds a store from a declarative slice manifest (a YAML file or a
directory of Markdown documents) and exposes it for inspection, snapshots and
remote access over HTTP or MCP.

Settings not given as flags are read from RUX_* variables (RUX_LOG_LEVEL,
RUX_SNAPSHOT_DIR, RUX_REDIS_ADDR, RUX_REDIS_PASSWORD, RUX_POSTGRES_DSN,
RUX_ENCRYPTION_KEY, RUX_KEY_SEED, RUX_AUTH_SECRET), also from a .env file in
the working directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cfg.ApplyEnv(cmd.Flags().Changed, ".env")
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&cfg.Manifest, "manifest", "m", "", "YAML manifest file")
	f.StringVarP(&cfg.Repo, "repo", "r", "", "Directory of slice documents")
	f.StringVar(&cfg.Name, "name", "", "Store name used in logs (defaults to the manifest name)")
	f.StringVar(&cfg.LogLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	f.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")

	f.StringVar(&cfg.SnapshotDir, "snapshot-dir", "", "Snapshot directory (default .rux/snapshots)")
	f.StringVar(&cfg.SnapshotFormat, "snapshot-format", "json", "Snapshot file format: json or yaml")
	f.StringVar(&cfg.RedisAddr, "redis", "", "Store snapshots in Redis at this address")
	f.StringVar(&cfg.RedisPassword, "redis-password", "", "Redis password")
	f.StringVar(&cfg.PostgresDSN, "postgres", "", "Store snapshots in PostgreSQL (connection string)")
	f.DurationVar(&cfg.SnapshotTTL, "snapshot-ttl", 0, "Expiry of Redis snapshots (0 keeps them)")
	f.DurationVar(&cfg.LockTTL, "lock-ttl", 0, "Maximum hold time of the snapshot write lock")
	f.StringVar(&cfg.EncryptionKey, "encryption-key", "", "Base64 AES-256 key sealing snapshots")
	f.StringVar(&cfg.KeySeed, "key-seed", "", "Master seed deriving versioned snapshot keys")
	f.StringVar(&cfg.KeyVersion, "key-version", "v1", "Key version sealing new snapshots")
	f.StringSliceVar(&cfg.FallbackVersions, "fallback-key-versions", nil, "Older key versions still accepted when reading")
	f.StringSliceVar(&cfg.Mask, "mask", nil, "Regexp over Slice.field paths redacted in snapshots")
}
