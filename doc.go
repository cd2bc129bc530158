// Package authsync keeps a client-held authentication state (identity,
// session, profile) synchronized with a hosted auth/data backend.
//
// Store and orchestrator:
//   - Store holds the current Identity, Session and Profile plus a loading
//     flag. It is explicitly constructed, never a package singleton, and
//     only ever written through the Orchestrator's transitions. Readers get
//     State snapshots; Subscribe delivers derived state over a channel.
//   - Orchestrator mediates every transition: session initialization under
//     a hard ceiling, sign up with a redundant profile upsert, sign in with
//     profile adoption before return, local-first sign out, normalized
//     profile updates with read-after-write verification, and refresh.
//     Stale async results are suppressed via a store epoch, so a sign-out
//     always wins over fetches still in flight.
//
// Backends:
//   - Provider and ProfileStore abstract the remote service. The
//     provider/supabase package adapts the hosted backend's auth and row
//     endpoints; provider/local is an embedded bun/sqlite implementation
//     for development and tests.
//
// Activity sinks:
//   - Every state transition emits an ActivityEvent to a configurable
//     ActivitySink. Sinks run best-effort (errors are logged) so telemetry
//     never blocks authentication.
package authsync
