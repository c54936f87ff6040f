// Package state keeps per-user conversation data in process memory.
// It is domain-agnostic: callers choose the value type and own the transitions.
package state
