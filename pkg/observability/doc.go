/*
Package observability turns rux lifecycle events into Prometheus metrics.

Metrics.Hooks returns domain.LifecycleHooks; combine them with other hooks
through domain.ComposeHooks and pass the result to rux.WithLifecycleHooks.
*/
package observability
