package domain

import (
	"context"
	"time"
)

// NodeEvent reports entry into a resolved node.
type NodeEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	Subject   string          `json:"subject"`
	NodeID    string          `json:"node_id"`
	Kind      InteractionType `json:"kind"`
}

// ResolveEvent reports one primary-image resolution.
type ResolveEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Subject   string        `json:"subject"`
	NodeID    string        `json:"node_id"`
	CacheHit  bool          `json:"cache_hit"`
	Duration  time.Duration `json:"duration"`
}

// DegradeEvent reports a content failure that was absorbed by a
// degradation path (sentinel image, bypass node, auto-advance,
// placeholder piece).
type DegradeEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject"`
	NodeID    string    `json:"node_id"`
	Reason    string    `json:"reason"`
}

// ScoreEvent reports points awarded by an interaction.
type ScoreEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject"`
	NodeID    string    `json:"node_id"`
	Delta     int       `json:"delta"`
	Total     int       `json:"total"`
}

// PreloadEvent reports a finished background preload. Err is nil on
// success; preload failures are never surfaced to the player.
type PreloadEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject"`
	NodeID    string    `json:"node_id"`
	Err       error     `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability. All
// fields are optional.
type LifecycleHooks struct {
	OnNodeEnter func(context.Context, *NodeEvent)
	OnResolve   func(context.Context, *ResolveEvent)
	OnDegrade   func(context.Context, *DegradeEvent)
	OnScore     func(context.Context, *ScoreEvent)
	OnPreload   func(context.Context, *PreloadEvent)
}
