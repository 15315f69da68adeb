package ports

import "context"

// AspectRatio selects the shape of a generated image.
type AspectRatio string

const (
	AspectWide     AspectRatio = "16:9"
	AspectSquare   AspectRatio = "1:1"
	AspectTall     AspectRatio = "9:16"
	AspectClassic  AspectRatio = "4:3"
	AspectPortrait AspectRatio = "3:4"
)

// ItemBox is one located item as reported by the generation service.
// Coordinates are percentages of the image dimensions, top-left origin.
type ItemBox struct {
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ImageGenerator is the remote generation service. All calls are
// network-bound, fallible and rate-limited; implementations map
// rate-limit responses to domain.ErrRateLimited and everything else to
// domain.ErrContentUnavailable so the engine can apply its degradation
// rules uniformly.
type ImageGenerator interface {
	// GenerateImage produces an image for the prompt.
	GenerateImage(ctx context.Context, prompt string, aspect AspectRatio) (string, error)

	// LocateItems finds the named items inside the image and returns
	// their bounding boxes.
	LocateItems(ctx context.Context, image string, names []string) ([]ItemBox, error)

	// StyleAvatar produces a stylized avatar from the player's photo.
	StyleAvatar(ctx context.Context, photo, stylePrompt string) (string, error)
}
