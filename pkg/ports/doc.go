/*
Package ports defines the driven ports (interfaces) for the rux store.

These interfaces decouple the engine from external implementations, so a store
can be persisted to memory, files or Redis, and slice declarations can come from
a manifest file or a document repository.

# Key Interfaces

  - SnapshotStore: persists and loads store snapshots (dump/load round trips).
  - DistributedLocker: serialises snapshot writes across replicas.
  - ManifestSource: provides declarative slice manifests (e.g., from Loam).
*/
package ports
