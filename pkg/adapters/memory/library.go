package memory

import (
	"fmt"
	"sort"

	"github.com/fabulaverse/fabula/pkg/domain"
)

// Library implements ports.StoryLibrary over an in-memory graph set.
// Used by tests and by embedded content.
type Library struct {
	graphs map[string]domain.Graph
}

// NewLibrary builds a library from validated graphs.
func NewLibrary(graphs ...domain.Graph) (*Library, error) {
	l := &Library{graphs: make(map[string]domain.Graph, len(graphs))}
	for _, g := range graphs {
		if g.Subject == "" {
			return nil, fmt.Errorf("graph missing subject id")
		}
		if err := g.Validate(); err != nil {
			return nil, err
		}
		if _, dup := l.graphs[g.Subject]; dup {
			return nil, fmt.Errorf("duplicate subject %q", g.Subject)
		}
		l.graphs[g.Subject] = g
	}
	return l, nil
}

// Subjects returns the subject ids in sorted order.
func (l *Library) Subjects() []string {
	subjects := make([]string, 0, len(l.graphs))
	for s := range l.graphs {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects
}

// Graph returns the graph for subject.
func (l *Library) Graph(subject string) (domain.Graph, error) {
	g, ok := l.graphs[subject]
	if !ok {
		return domain.Graph{}, fmt.Errorf("%w: %q", domain.ErrSubjectNotFound, subject)
	}
	return g, nil
}
