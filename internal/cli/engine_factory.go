package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aretw0/rux"
	"github.com/aretw0/rux/pkg/adapters/file"
	loamAdapter "github.com/aretw0/rux/pkg/adapters/loam"
	"github.com/aretw0/rux/pkg/adapters/memory"
	postgresAdapter "github.com/aretw0/rux/pkg/adapters/postgres"
	redisAdapter "github.com/aretw0/rux/pkg/adapters/redis"
	"github.com/aretw0/rux/pkg/manifest"
	"github.com/aretw0/rux/pkg/persistence/middleware"
	"github.com/aretw0/rux/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Source opens the manifest source selected by c.
func Source(c Config) (ports.ManifestSource, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Repo != "" {
		return loamAdapter.Open(c.Repo)
	}
	return manifest.File(c.Manifest), nil
}

// storeName labels the engine after the manifest file or repository directory.
func storeName(c Config) string {
	if c.Name != "" {
		return c.Name
	}
	path := c.Repo
	if path == "" {
		path = strings.TrimSuffix(filepath.Base(c.Manifest), filepath.Ext(c.Manifest))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return filepath.Base(abs)
}

// NewEngine loads the manifest and creates an engine with the default store,
// wired to the snapshot store selected by c.
func NewEngine(ctx context.Context, c Config, logger *slog.Logger, opts ...rux.Option) (*rux.Engine, error) {
	src, err := Source(c)
	if err != nil {
		return nil, err
	}
	return openEngine(ctx, c, src, logger, opts...)
}

func openEngine(ctx context.Context, c Config, src ports.ManifestSource, logger *slog.Logger, opts ...rux.Option) (*rux.Engine, error) {
	engineOpts := []rux.Option{
		rux.WithLogger(logger),
		rux.WithName(storeName(c)),
	}
	store, locker, err := snapshotStore(ctx, c)
	if err != nil {
		return nil, err
	}
	engineOpts = append(engineOpts, rux.WithSnapshotStore(store))
	if locker != nil {
		engineOpts = append(engineOpts, rux.WithLocker(locker, c.LockTTL))
	}

	engine, err := rux.Open(ctx, src, append(engineOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}

// snapshotStore picks Redis or Postgres when configured and the file store
// otherwise. Only Redis shares its lock between processes. Masking is applied
// before encryption.
func snapshotStore(ctx context.Context, c Config) (ports.SnapshotStore, ports.DistributedLocker, error) {
	var (
		store  ports.SnapshotStore
		locker ports.DistributedLocker
	)
	switch {
	case c.PostgresDSN != "":
		pg, err := postgresAdapter.Open(ctx, c.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		store = pg
		locker = memory.NewLocker()
	case c.RedisAddr != "":
		client := backend.NewClient(&backend.Options{Addr: c.RedisAddr, Password: c.RedisPassword})
		var redisOpts []redisAdapter.Option
		if c.SnapshotTTL > 0 {
			redisOpts = append(redisOpts, redisAdapter.WithTTL(c.SnapshotTTL))
		}
		store = redisAdapter.NewFromClient(client, redisOpts...)
		locker = redisAdapter.NewLocker(client, "rux:")
	default:
		format := file.FormatJSON
		if c.SnapshotFormat != "" {
			format = file.Format(c.SnapshotFormat)
			if format != file.FormatJSON && format != file.FormatYAML {
				return nil, nil, fmt.Errorf("unknown snapshot format %q", c.SnapshotFormat)
			}
		}
		store = file.New(c.SnapshotDir, file.WithFormat(format))
		locker = memory.NewLocker()
	}

	var mws []middleware.Middleware
	if len(c.Mask) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(c.Mask))
	}
	if c.EncryptionKey != "" || c.KeySeed != "" {
		enc, err := c.encryption()
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}
	return middleware.Chain(store, mws...), locker, nil
}
