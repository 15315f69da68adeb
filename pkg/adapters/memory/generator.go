package memory

import (
	"context"
	"sync"

	"github.com/fabulaverse/fabula/pkg/domain"
	"github.com/fabulaverse/fabula/pkg/ports"
)

// Generator implements ports.ImageGenerator with scripted responses.
// Tests use it to drive the engine's degradation paths; the CLI uses
// the zero value as an offline backend where every call degrades.
type Generator struct {
	mu sync.Mutex

	// Images maps a prompt to its generated image. Prompts not present
	// fall back to Fallback, or fail with ErrContentUnavailable.
	Images map[string]string

	// Fallback, when non-empty, is returned for any unscripted prompt.
	Fallback string

	// Err, when set, fails every GenerateImage call.
	Err error

	// Boxes is returned by LocateItems. LocateErr, when set, fails the
	// call instead.
	Boxes     []ports.ItemBox
	LocateErr error

	// Avatar is returned by StyleAvatar. AvatarErr, when set, fails
	// the call instead.
	Avatar    string
	AvatarErr error

	calls []string
}

// GenerateImage returns the scripted image for prompt.
func (g *Generator) GenerateImage(ctx context.Context, prompt string, aspect ports.AspectRatio) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, prompt)
	g.mu.Unlock()

	if g.Err != nil {
		return "", g.Err
	}
	if img, ok := g.Images[prompt]; ok {
		return img, nil
	}
	if g.Fallback != "" {
		return g.Fallback, nil
	}
	return "", domain.ErrContentUnavailable
}

// LocateItems returns the scripted boxes.
func (g *Generator) LocateItems(ctx context.Context, image string, names []string) ([]ports.ItemBox, error) {
	if g.LocateErr != nil {
		return nil, g.LocateErr
	}
	return g.Boxes, nil
}

// StyleAvatar returns the scripted avatar.
func (g *Generator) StyleAvatar(ctx context.Context, photo, stylePrompt string) (string, error) {
	if g.AvatarErr != nil {
		return "", g.AvatarErr
	}
	if g.Avatar == "" {
		return "", domain.ErrContentUnavailable
	}
	return g.Avatar, nil
}

// Calls returns the prompts passed to GenerateImage, in order.
func (g *Generator) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.calls))
	copy(out, g.calls)
	return out
}
