package http

import (
	"encoding/json"
	"fmt"
	"io"

	fabula "github.com/fabulaverse/fabula"
	"github.com/fabulaverse/fabula/pkg/domain"
)

// answerEnvelope is the tagged wire form of a player answer.
type answerEnvelope struct {
	Kind       string  `json:"kind"`
	Index      *int    `json:"index,omitempty"`
	Transcript string  `json:"transcript,omitempty"`
	Text       string  `json:"text,omitempty"`
	X          float64 `json:"x,omitempty"`
	Y          float64 `json:"y,omitempty"`
	Value      *int    `json:"value,omitempty"`
}

func decodeAnswer(body io.Reader) (domain.Answer, error) {
	var env answerEnvelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return nil, fmt.Errorf("invalid request body")
	}
	switch env.Kind {
	case "choice":
		if env.Index == nil {
			return nil, fmt.Errorf("choice answer requires index")
		}
		return domain.ChoiceAnswer{Index: *env.Index}, nil
	case "voice":
		return domain.VoiceAnswer{Transcript: env.Transcript}, nil
	case "blank":
		return domain.BlankAnswer{Text: env.Text}, nil
	case "tap":
		return domain.TapAnswer{X: env.X, Y: env.Y}, nil
	case "math":
		if env.Value == nil {
			return nil, fmt.Errorf("math answer requires value")
		}
		return domain.MathAnswer{Value: *env.Value}, nil
	}
	return nil, fmt.Errorf("unknown answer kind %q", env.Kind)
}

// stateView bundles the session snapshot with the current node view.
func (s *Server) stateView(engine *fabula.Engine, rn *domain.ResolvedNode) map[string]any {
	snap := engine.Snapshot()
	return map[string]any{
		"phase":   snap.Phase,
		"subject": snap.Subject,
		"score":   snap.Score,
		"node":    s.nodeView(engine, rn),
	}
}

// nodeView is the client-facing shape of a resolved node. Correct
// answers, keywords, transition targets and item boxes stay server
// side; the client only learns what it must render.
func (s *Server) nodeView(engine *fabula.Engine, rn *domain.ResolvedNode) map[string]any {
	view := map[string]any{
		"id":          rn.ID,
		"title":       rn.Title,
		"text":        rn.Text,
		"image":       rn.Image,
		"interaction": rn.Kind(),
	}
	if rn.SoundURL != "" {
		view["soundUrl"] = rn.SoundURL
	}
	if rn.Bypassed {
		view["bypassed"] = true
	}

	switch p := rn.Payload.(type) {
	case domain.ChoiceData:
		view["options"] = optionTexts(p.Options)
	case domain.VoiceChoiceData:
		view["options"] = optionTexts(p.Options)
	case domain.FillInTheBlankData:
		view["promptParts"] = p.PromptParts
	case domain.FindTheItemData:
		view["prompt"] = p.Prompt
	case domain.DragAndDropMathData:
		problem, idx, options, err := engine.MathState()
		if err == nil {
			view["question"] = problem.Question
			view["problemIndex"] = idx
			view["problemCount"] = len(p.Problems)
			view["answerOptions"] = options
		}
		view["pieces"] = rn.Pieces
	}
	return view
}

func optionTexts(opts []domain.Choice) []map[string]any {
	out := make([]map[string]any, 0, len(opts))
	for i, o := range opts {
		out = append(out, map[string]any{"index": i, "text": o.Text})
	}
	return out
}

func outcomeView(out domain.Outcome) map[string]any {
	view := map[string]any{
		"correct":    out.Correct,
		"scoreDelta": out.ScoreDelta,
	}
	if out.Feedback != "" {
		view["feedback"] = out.Feedback
	}
	if out.PieceRevealed >= 0 {
		view["pieceRevealed"] = out.PieceRevealed
	}
	return view
}
