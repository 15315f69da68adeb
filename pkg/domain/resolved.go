package domain

// ImageUnavailable stands in for image content that could not be
// produced this session. It is never persisted to the cache, so a
// future session retries generation.
const ImageUnavailable = "unavailable"

// BoundingBox locates an item inside the scene image. All values are
// percentages of the image dimensions, top-left origin.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the point (x, y), in image percentages,
// falls inside the box.
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.X && x <= b.X+b.Width && y >= b.Y && y <= b.Y+b.Height
}

// ItemLocation is a resolved findable item: where it sits in the image
// and whether tapping it is the correct answer.
type ItemLocation struct {
	BoundingBox
	Name      string `json:"name"`
	IsCorrect bool   `json:"isCorrect"`
}

// ResolvedNode is a StoryNode made displayable: text personalized,
// image resolved (or ImageUnavailable), and interaction-specific
// auxiliary content attached. It is derived at runtime and never
// persisted.
type ResolvedNode struct {
	StoryNode

	// Image is the resolved scene image, or ImageUnavailable.
	Image string

	// ItemLocations holds the located items in the order the locate
	// call returned them, FindTheItem nodes only. Taps are hit-tested
	// in this order.
	ItemLocations []ItemLocation

	// Pieces holds one image (or ImageUnavailable) per math problem,
	// DragAndDropMath nodes only.
	Pieces []string

	// Bypassed marks a synthesized substitute for an interaction that
	// could not be fulfilled due to missing content.
	Bypassed bool
}
