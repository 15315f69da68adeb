package ports

import "github.com/fabulaverse/fabula/pkg/domain"

// StoryLibrary provides the static, authored story graphs, one per
// subject. Implementations validate graph integrity at load time.
type StoryLibrary interface {
	// Subjects lists the available subject ids in stable order.
	Subjects() []string

	// Graph returns the graph for a subject, or
	// domain.ErrSubjectNotFound.
	Graph(subject string) (domain.Graph, error)
}
