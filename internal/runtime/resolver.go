package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fabulaverse/fabula/pkg/domain"
	"github.com/fabulaverse/fabula/pkg/ports"
)

// bypassNodeID identifies the synthesized substitute used when a
// find-the-item scene has no image to search.
const bypassNodeID = "bypass_find_item"

// resolveInto runs the resolution pipeline for node id and commits the
// result, unless a newer loadSubject/restart superseded this
// resolution in the meantime. On success it schedules the preload of
// the most likely next node.
func (e *Engine) resolveInto(ctx context.Context, gen uint64, id string) (*domain.ResolvedNode, error) {
	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		return nil, domain.ErrSuperseded
	}
	e.phase = domain.PhaseResolving
	e.mu.Unlock()

	rn, finalID, err := e.resolvePath(ctx, id)

	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		return nil, domain.ErrSuperseded
	}
	if err != nil {
		// Graph integrity violation: fatal for this run. The graph is
		// retained so RestartSubject can recover.
		e.phase = domain.PhaseIdle
		e.resolved = nil
		e.mu.Unlock()
		return nil, err
	}
	e.nodeID = finalID
	e.resolved = rn
	e.mathIndex = 0
	e.mathOptions = nil
	if m, ok := rn.Payload.(domain.DragAndDropMathData); ok {
		e.mathOptions = answerOptions(m.Problems[0].CorrectAnswer, e.rng)
	}
	if rn.Kind() == domain.InteractionEnd {
		e.phase = domain.PhaseTerminal
	} else {
		e.phase = domain.PhaseReady
	}
	subject := e.subject
	e.mu.Unlock()

	if e.hooks.OnNodeEnter != nil {
		e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
			Timestamp: time.Now(),
			Subject:   subject,
			NodeID:    rn.ID,
			Kind:      rn.Kind(),
		})
	}
	e.schedulePreload(ctx, gen, rn)
	return rn, nil
}

// resolvePath resolves id, following auto-advance targets produced by
// the degradation rules (a failed item location or an aborted piece
// pipeline skips the interaction instead of stalling). The hop bound
// only trips on a pathological all-degraded cycle.
func (e *Engine) resolvePath(ctx context.Context, id string) (*domain.ResolvedNode, string, error) {
	e.mu.Lock()
	graph := e.graph
	e.mu.Unlock()

	for hops := 0; hops <= len(graph.Nodes); hops++ {
		node, ok := graph.Node(id)
		if !ok {
			return nil, "", fmt.Errorf("%w: %q", domain.ErrNodeNotFound, id)
		}
		rn, skipTo := e.resolveNode(ctx, graph.Subject, node)
		if skipTo == "" {
			return rn, id, nil
		}
		id = skipTo
	}
	return nil, "", fmt.Errorf("%w: auto-advance cycle at %q", domain.ErrNodeNotFound, id)
}

// resolveNode turns a raw story node into a displayable one. It never
// fails: content problems degrade to the unavailable sentinel, a
// bypass node, or an auto-advance (returned as a non-empty skipTo).
func (e *Engine) resolveNode(ctx context.Context, subject string, node domain.StoryNode) (rn *domain.ResolvedNode, skipTo string) {
	node.Text = e.personalize(node.Text)
	rn = &domain.ResolvedNode{StoryNode: node}

	start := time.Now()
	img, hit := e.resolveImage(ctx, subject, node.ID, node.ImagePrompt)
	rn.Image = img
	if e.hooks.OnResolve != nil {
		e.hooks.OnResolve(ctx, &domain.ResolveEvent{
			Timestamp: time.Now(),
			Subject:   subject,
			NodeID:    node.ID,
			CacheHit:  hit,
			Duration:  time.Since(start),
		})
	}

	switch p := node.Payload.(type) {
	case domain.FindTheItemData:
		if img == domain.ImageUnavailable {
			// Never ask the player to find an item in an image that
			// does not exist.
			e.emitDegrade(ctx, subject, node.ID, "find-the-item bypassed: image unavailable")
			return e.bypassNode(p.NextNodeID), ""
		}
		names := make([]string, 0, len(p.Items))
		for _, it := range p.Items {
			names = append(names, it.Name)
		}
		boxes, err := e.generator.LocateItems(ctx, img, names)
		if err != nil {
			e.emitDegrade(ctx, subject, node.ID, "item location failed: "+err.Error())
			return nil, p.NextNodeID
		}
		rn.ItemLocations = matchLocations(p.Items, boxes)
		if len(rn.ItemLocations) == 0 {
			e.emitDegrade(ctx, subject, node.ID, "no named items located in scene")
			return nil, p.NextNodeID
		}
	case domain.DragAndDropMathData:
		rn.Pieces = e.generatePieces(ctx, subject, node.ID, p.PiecePrompts)
		if ctx.Err() != nil {
			// The whole piece pipeline was torn down, as opposed to
			// individual pieces failing.
			e.emitDegrade(ctx, subject, node.ID, "piece generation aborted: "+ctx.Err().Error())
			return nil, p.NextNodeID
		}
	}
	return rn, ""
}

// resolveImage returns the node's primary image and whether it came
// from the cache or session view. Failures yield the unavailable
// sentinel, held in memory only so a future session retries.
func (e *Engine) resolveImage(ctx context.Context, subject, nodeID, prompt string) (string, bool) {
	key := cacheKey(subject, nodeID)

	e.mu.Lock()
	if img, ok := e.images[key]; ok {
		e.mu.Unlock()
		return img, true
	}
	preloading := e.inflight[key]
	e.mu.Unlock()

	// A preload for this key is already talking to the service; wait
	// for its result rather than issuing a duplicate generation.
	if preloading != nil {
		select {
		case <-preloading:
			e.mu.Lock()
			if img, ok := e.images[key]; ok {
				e.mu.Unlock()
				return img, true
			}
			e.mu.Unlock()
		case <-ctx.Done():
		}
	}

	if img, ok, err := e.cache.Get(ctx, key); err == nil && ok {
		e.mu.Lock()
		e.images[key] = img
		e.mu.Unlock()
		return img, true
	}

	img, err := e.generator.GenerateImage(ctx, prompt, ports.AspectWide)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			e.logger.Warn("image generation rate limited", "node", nodeID)
		} else {
			e.logger.Error("image generation failed", "node", nodeID, "error", err)
		}
		e.emitDegrade(ctx, subject, nodeID, "image unavailable: "+err.Error())
		e.mu.Lock()
		e.images[key] = domain.ImageUnavailable
		e.mu.Unlock()
		return domain.ImageUnavailable, false
	}
	if err := e.cache.Put(ctx, key, img); err != nil {
		e.logger.Warn("cache put failed", "key", key, "error", err)
	}
	e.mu.Lock()
	e.images[key] = img
	e.mu.Unlock()
	return img, false
}

// generatePieces issues one generation request per piece prompt, in
// parallel. A failed piece resolves to the unavailable sentinel and
// never cancels the others.
func (e *Engine) generatePieces(ctx context.Context, subject, nodeID string, prompts []string) []string {
	pieces := make([]string, len(prompts))
	var wg sync.WaitGroup
	for i, prompt := range prompts {
		wg.Add(1)
		go func(i int, prompt string) {
			defer wg.Done()
			img, err := e.generator.GenerateImage(ctx, prompt, ports.AspectSquare)
			if err != nil {
				e.emitDegrade(ctx, subject, nodeID, fmt.Sprintf("piece %d unavailable: %v", i, err))
				pieces[i] = domain.ImageUnavailable
				return
			}
			pieces[i] = img
		}(i, prompt)
	}
	wg.Wait()
	return pieces
}

// bypassNode synthesizes a choice node with a single forward option so
// the player keeps making progress without the missing scene image.
func (e *Engine) bypassNode(nextNodeID string) *domain.ResolvedNode {
	n := domain.StoryNode{
		ID:    bypassNodeID,
		Title: "A Little Detour!",
		Text: e.personalize("The picture for this scene could not be drawn right now, {name}. " +
			"But don't worry! We trust your explorer skills to find the way. Onward with the journey!"),
		Payload: domain.ChoiceData{Options: []domain.Choice{
			{Text: "Continue the journey!", NextNodeID: nextNodeID},
		}},
	}
	return &domain.ResolvedNode{StoryNode: n, Image: domain.ImageUnavailable, Bypassed: true}
}

// matchLocations joins the located boxes with the authored items,
// matching names case-insensitively and preserving the locate result
// order. Each item carries its correctness flag and authored name.
func matchLocations(items []domain.FindableItem, boxes []ports.ItemBox) []domain.ItemLocation {
	locs := make([]domain.ItemLocation, 0, len(boxes))
	for _, box := range boxes {
		for _, it := range items {
			if strings.EqualFold(it.Name, box.Name) {
				locs = append(locs, domain.ItemLocation{
					BoundingBox: domain.BoundingBox{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height},
					Name:        it.Name,
					IsCorrect:   it.IsCorrect,
				})
				break
			}
		}
	}
	return locs
}

func (e *Engine) emitDegrade(ctx context.Context, subject, nodeID, reason string) {
	e.logger.Warn("content degraded", "subject", subject, "node", nodeID, "reason", reason)
	if e.hooks.OnDegrade != nil {
		e.hooks.OnDegrade(ctx, &domain.DegradeEvent{
			Timestamp: time.Now(),
			Subject:   subject,
			NodeID:    nodeID,
			Reason:    reason,
		})
	}
}

func (e *Engine) emitScore(ctx context.Context, subject, nodeID string, delta, total int) {
	if e.hooks.OnScore != nil {
		e.hooks.OnScore(ctx, &domain.ScoreEvent{
			Timestamp: time.Now(),
			Subject:   subject,
			NodeID:    nodeID,
			Delta:     delta,
			Total:     total,
		})
	}
}
