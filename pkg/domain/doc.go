// Package domain holds the core types of the story progression engine:
// story nodes and graphs, resolved runtime content, session snapshots,
// player answers and the error taxonomy. It has no dependencies on the
// runtime or any adapter.
package domain
