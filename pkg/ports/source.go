package ports

import (
	"context"

	"github.com/aretw0/rux/pkg/manifest"
)

// ManifestSource provides the declarative slice manifest a store is built from.
type ManifestSource interface {
	LoadManifest(ctx context.Context) (*manifest.Manifest, error)
}
