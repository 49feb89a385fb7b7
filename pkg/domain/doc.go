/*
Package domain contains the core model of the rux store.

It declares slice types and their immutable instances, the symbolic paths used
to address fields before any instance exists, reducers and reactions (extra
reducers) and the dependency table that links them. The package is pure: it
holds no store, performs no I/O and has no global state. Every declaration lives
in an explicit Catalog.

# Key Entities

  - Catalog: arena of slice types with index-based parent links and the dependency table.
  - SliceType: a named, ordered set of typed fields, with parents, reducers and reactions.
  - Instance: an immutable value of a slice type; updates return a new instance.
  - StatePath: the (slice, field) handle used by the store and by subscriptions.
  - Reducer / ExtraReducer: pure functions producing a new instance.
*/
package domain
