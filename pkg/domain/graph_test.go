package domain

import (
	"strings"
	"testing"
)

func validGraph() Graph {
	return Graph{
		Subject: "history",
		Nodes: map[string]StoryNode{
			"start": {
				ID: "start", Title: "Start", Text: "Go!",
				Payload: ChoiceData{Options: []Choice{{Text: "On", NextNodeID: "end"}}},
			},
			"end": {ID: "end", Title: "End", Text: "Done.", Payload: EndData{}},
		},
	}
}

func TestGraphValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		if err := validGraph().Validate(); err != nil {
			t.Fatalf("valid graph rejected: %v", err)
		}
	})

	t.Run("missing start", func(t *testing.T) {
		g := validGraph()
		delete(g.Nodes, "start")
		if err := g.Validate(); err == nil || !strings.Contains(err.Error(), `"start"`) {
			t.Fatalf("expected missing-start error, got %v", err)
		}
	})

	t.Run("id mismatch", func(t *testing.T) {
		g := validGraph()
		n := g.Nodes["end"]
		n.ID = "other"
		g.Nodes["end"] = n
		if err := g.Validate(); err == nil {
			t.Fatal("id mismatch accepted")
		}
	})

	t.Run("missing payload", func(t *testing.T) {
		g := validGraph()
		n := g.Nodes["end"]
		n.Payload = nil
		g.Nodes["end"] = n
		if err := g.Validate(); err == nil {
			t.Fatal("nil payload accepted")
		}
	})

	t.Run("dangling reference", func(t *testing.T) {
		g := validGraph()
		g.Nodes["start"] = StoryNode{
			ID: "start", Title: "Start", Text: "Go!",
			Payload: ChoiceData{Options: []Choice{{Text: "On", NextNodeID: "nowhere"}}},
		}
		if err := g.Validate(); err == nil || !strings.Contains(err.Error(), `"nowhere"`) {
			t.Fatalf("expected dangling-reference error, got %v", err)
		}
	})

	t.Run("self reference is a legal retry loop", func(t *testing.T) {
		g := validGraph()
		g.Nodes["start"] = StoryNode{
			ID: "start", Title: "Start", Text: "Go!",
			Payload: ChoiceData{Options: []Choice{
				{Text: "Again", NextNodeID: "start"},
				{Text: "On", NextNodeID: "end"},
			}},
		}
		if err := g.Validate(); err != nil {
			t.Fatalf("self reference rejected: %v", err)
		}
	})

	t.Run("math piece count mismatch", func(t *testing.T) {
		g := validGraph()
		g.Nodes["start"] = StoryNode{
			ID: "start", Title: "Start", Text: "Go!",
			Payload: DragAndDropMathData{
				Problems:     []MathProblem{{Question: "1+1", CorrectAnswer: 2}},
				PiecePrompts: []string{"a", "b"},
				NextNodeID:   "end",
			},
		}
		if err := g.Validate(); err == nil {
			t.Fatal("piece count mismatch accepted")
		}
	})

	t.Run("math without problems", func(t *testing.T) {
		g := validGraph()
		g.Nodes["start"] = StoryNode{
			ID: "start", Title: "Start", Text: "Go!",
			Payload: DragAndDropMathData{NextNodeID: "end"},
		}
		if err := g.Validate(); err == nil {
			t.Fatal("empty math node accepted")
		}
	})
}

func TestPayloadNextNodeIDs(t *testing.T) {
	choice := ChoiceData{Options: []Choice{
		{Text: "L", NextNodeID: "a"},
		{Text: "R", NextNodeID: "b"},
	}}
	got := choice.NextNodeIDs()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("option order not preserved: %v", got)
	}

	if ids := (EndData{}).NextNodeIDs(); len(ids) != 0 {
		t.Fatalf("end node has transitions: %v", ids)
	}

	blank := FillInTheBlankData{NextNodeID: "x"}
	if ids := blank.NextNodeIDs(); len(ids) != 1 || ids[0] != "x" {
		t.Fatalf("unexpected blank targets: %v", ids)
	}
}

func TestStoryNodeKind(t *testing.T) {
	n := StoryNode{ID: "n"}
	if n.Kind() != InteractionEnd {
		t.Errorf("payload-less node must be terminal, got %s", n.Kind())
	}
	n.Payload = VoiceChoiceData{}
	if n.Kind() != InteractionVoiceChoice {
		t.Errorf("unexpected kind %s", n.Kind())
	}
}

func TestBoundingBoxContains(t *testing.T) {
	b := BoundingBox{X: 10, Y: 20, Width: 30, Height: 40}
	for _, tc := range []struct {
		x, y float64
		want bool
	}{
		{10, 20, true},   // top-left edge
		{40, 60, true},   // bottom-right edge
		{25, 40, true},   // interior
		{9.9, 40, false}, // left of box
		{25, 60.1, false},
	} {
		if got := b.Contains(tc.x, tc.y); got != tc.want {
			t.Errorf("Contains(%v, %v) = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
}
