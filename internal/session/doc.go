// Package session tracks one server-to-client push channel per client
// identifier.
//
// The Registry is the only long-lived shared mutable structure in the
// server. Sessions move through absent -> connected -> (completed |
// replaced | timed-out | errored) -> absent; destruction always removes
// the registry entry first and then finalizes the channel, so the registry
// never maps a client id to a defunct channel after cleanup has run.
//
// Delivery is best-effort and at-most-once: sends are bounded by the
// channel buffer and a failed send is terminal for that session only.
package session
