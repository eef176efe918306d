// Package authstate reconciles the identity provider, the remote
// authorization lookup, and the local cache into one published auth state.
//
// The Machine owns the state exclusively. It bootstraps once from the
// identity source, re-resolves on every session-change event, and
// publishes {identity, authorization, loading} snapshots to subscribers.
// Results from superseded resolutions are discarded by a monotonically
// increasing token: a resolution may finish its network work, but its
// result is only applied if its token is still current.
//
// Lookup failures never surface as errors. After one retry a failed
// resolution degrades to stale-but-email-matching cache data if any
// exists, and otherwise settles unauthorized: fail closed, never open.
// Timeouts drop loading without touching the held values so no consumer
// waits forever on a spinner.
//
// Construct one Machine per application root and pass it by reference;
// there is no package-level instance.
package authstate
