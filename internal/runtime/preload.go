package runtime

import (
	"context"
	"time"

	"github.com/fabulaverse/fabula/pkg/domain"
	"github.com/fabulaverse/fabula/pkg/ports"
)

// schedulePreload opportunistically pre-resolves the primary image of
// the single most likely next node: the first forward target in the
// node's own payload order. Item locations and math pieces are
// deferred until the node is actually entered. Skipped entirely when
// the target is already cached, already in flight, or is the node
// being resolved right now.
func (e *Engine) schedulePreload(ctx context.Context, gen uint64, rn *domain.ResolvedNode) {
	if rn.Payload == nil {
		return
	}
	targets := rn.Payload.NextNodeIDs()
	if len(targets) == 0 {
		return
	}
	target := targets[0]

	e.mu.Lock()
	if e.generation != gen || !e.hasGraph || target == e.nodeID {
		e.mu.Unlock()
		return
	}
	node, ok := e.graph.Node(target)
	if !ok {
		e.mu.Unlock()
		return
	}
	key := cacheKey(e.subject, target)
	if _, cached := e.images[key]; cached {
		e.mu.Unlock()
		return
	}
	if _, busy := e.inflight[key]; busy {
		e.mu.Unlock()
		return
	}
	done := make(chan struct{})
	e.inflight[key] = done
	subject := e.subject
	e.mu.Unlock()

	// Detached from the caller's cancellation: a preload outliving the
	// triggering request is still useful, and stale results are
	// dropped by the generation check.
	go e.preload(context.WithoutCancel(ctx), gen, subject, key, node, done)
}

func (e *Engine) preload(ctx context.Context, gen uint64, subject, key string, node domain.StoryNode, done chan struct{}) {
	defer func() {
		e.mu.Lock()
		delete(e.inflight, key)
		e.mu.Unlock()
		close(done)
	}()

	img, err := e.generator.GenerateImage(ctx, node.ImagePrompt, ports.AspectWide)
	if e.hooks.OnPreload != nil {
		e.hooks.OnPreload(ctx, &domain.PreloadEvent{
			Timestamp: time.Now(),
			Subject:   subject,
			NodeID:    node.ID,
			Err:       err,
		})
	}
	if err != nil {
		// Silent: a failed preload blocks nothing.
		e.logger.Debug("preload failed", "node", node.ID, "error", err)
		return
	}
	if err := e.cache.Put(ctx, key, img); err != nil {
		e.logger.Warn("cache put failed", "key", key, "error", err)
	}
	e.mu.Lock()
	if e.generation == gen {
		e.images[key] = img
	}
	e.mu.Unlock()
}
