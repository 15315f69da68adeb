package domain

import "fmt"

// StartNodeID is the entry point of every graph.
const StartNodeID = "start"

// Graph is the complete, immutable node set for one subject.
type Graph struct {
	Subject string
	Nodes   map[string]StoryNode
}

// Node looks up a node by id.
func (g Graph) Node(id string) (StoryNode, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// Validate checks authoring integrity: the start node exists, every
// node carries a payload, every referenced nextNodeId resolves within
// the graph (self-references are legal "try again" loops), and math
// nodes have one piece prompt per problem.
func (g Graph) Validate() error {
	if _, ok := g.Nodes[StartNodeID]; !ok {
		return fmt.Errorf("graph %q: missing %q node", g.Subject, StartNodeID)
	}
	for id, n := range g.Nodes {
		if n.ID != id {
			return fmt.Errorf("graph %q: node keyed %q declares id %q", g.Subject, id, n.ID)
		}
		if n.Payload == nil {
			return fmt.Errorf("graph %q: node %q has no interaction payload", g.Subject, id)
		}
		if m, ok := n.Payload.(DragAndDropMathData); ok {
			if len(m.PiecePrompts) != len(m.Problems) {
				return fmt.Errorf("graph %q: node %q has %d piece prompts for %d problems",
					g.Subject, id, len(m.PiecePrompts), len(m.Problems))
			}
			if len(m.Problems) == 0 {
				return fmt.Errorf("graph %q: node %q has no math problems", g.Subject, id)
			}
		}
		for _, next := range n.Payload.NextNodeIDs() {
			if _, ok := g.Nodes[next]; !ok {
				return fmt.Errorf("graph %q: node %q references unknown node %q", g.Subject, id, next)
			}
		}
	}
	return nil
}
