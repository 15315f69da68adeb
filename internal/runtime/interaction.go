package runtime

import (
	"math/rand/v2"
	"strings"

	"github.com/fabulaverse/fabula/pkg/domain"
)

// interactionScore is the fixed award for solving any interaction.
const interactionScore = 10

// distractorRerolls bounds the random perturbation loop for math
// distractors before the deterministic fallback kicks in.
const distractorRerolls = 32

var blankFeedback = []string{
	"Hmm, not quite. Try again!",
	"Almost there! Think back to the story.",
	"That word doesn't look right. Remember what we talked about!",
	"Take another guess, you've seen the answer on our journey.",
}

// resolveChoice accepts any in-range option; clicking is correct by
// construction.
func resolveChoice(options []domain.Choice, index int) (domain.Outcome, error) {
	if index < 0 || index >= len(options) {
		return domain.Outcome{PieceRevealed: -1}, domain.ErrInputInvalid
	}
	return domain.Outcome{
		Correct:       true,
		ScoreDelta:    interactionScore,
		NextNodeID:    options[index].NextNodeID,
		PieceRevealed: -1,
	}, nil
}

// resolveVoice matches the lower-cased transcript against every
// option's keywords in list order; first match wins. No match keeps
// the player on the node for another try.
func resolveVoice(d domain.VoiceChoiceData, transcript string) (domain.Outcome, error) {
	t := strings.ToLower(strings.TrimSpace(transcript))
	if t == "" {
		return domain.Outcome{PieceRevealed: -1}, domain.ErrInputInvalid
	}
	for _, opt := range d.Options {
		for _, kw := range opt.Keywords {
			if strings.Contains(t, strings.ToLower(kw)) {
				return domain.Outcome{
					Correct:       true,
					ScoreDelta:    interactionScore,
					NextNodeID:    opt.NextNodeID,
					PieceRevealed: -1,
				}, nil
			}
		}
	}
	return domain.Outcome{
		Feedback:      "I didn't quite catch that. Say one of the options again!",
		PieceRevealed: -1,
	}, nil
}

// resolveBlank compares case-insensitively after trimming whitespace.
// Mismatches pick a feedback message that never repeats the previous
// one; the player may retry indefinitely.
func resolveBlank(d domain.FillInTheBlankData, text string, rng *rand.Rand, last *int) (domain.Outcome, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return domain.Outcome{PieceRevealed: -1}, domain.ErrInputInvalid
	}
	if strings.EqualFold(t, strings.TrimSpace(d.CorrectAnswer)) {
		return domain.Outcome{
			Correct:       true,
			ScoreDelta:    interactionScore,
			NextNodeID:    d.NextNodeID,
			Feedback:      "That's it!",
			PieceRevealed: -1,
		}, nil
	}
	idx := rng.IntN(len(blankFeedback))
	if idx == *last {
		idx = (idx + 1) % len(blankFeedback)
	}
	*last = idx
	return domain.Outcome{Feedback: blankFeedback[idx], PieceRevealed: -1}, nil
}

// resolveTap hit-tests the click against every resolved bounding box
// in locate result order; the first containing box wins. Only a
// correct contained item transitions; everything else is transient
// feedback.
func resolveTap(locs []domain.ItemLocation, nextNodeID string, x, y float64) domain.Outcome {
	for _, loc := range locs {
		if !loc.Contains(x, y) {
			continue
		}
		if loc.IsCorrect {
			return domain.Outcome{
				Correct:       true,
				ScoreDelta:    interactionScore,
				NextNodeID:    nextNodeID,
				PieceRevealed: -1,
			}
		}
		break
	}
	return domain.Outcome{Feedback: "Not there! Keep looking.", PieceRevealed: -1}
}

// resolveMath checks the submitted value against the problem at index.
// A correct answer on the last problem completes the mini-game and
// transitions; earlier problems advance within the node (handled by
// the engine).
func resolveMath(d domain.DragAndDropMathData, index, value int) (domain.Outcome, error) {
	if index < 0 || index >= len(d.Problems) {
		return domain.Outcome{PieceRevealed: -1}, domain.ErrInputInvalid
	}
	if value != d.Problems[index].CorrectAnswer {
		return domain.Outcome{Feedback: "That piece doesn't fit. Try another!", PieceRevealed: -1}, nil
	}
	out := domain.Outcome{Correct: true, ScoreDelta: interactionScore, PieceRevealed: -1}
	if index == len(d.Problems)-1 {
		out.NextNodeID = d.NextNodeID
	}
	return out, nil
}

// answerOptions builds the three shuffled options for a problem: the
// correct answer plus two distinct distractors rolled near it. The
// roll is bounded; leftovers are filled deterministically with
// correct+1, correct+2, ... so small answers can never loop forever.
func answerOptions(correct int, rng *rand.Rand) []int {
	options := []int{correct}
	seen := map[int]bool{correct: true}
	for i := 0; i < distractorRerolls && len(options) < 3; i++ {
		w := correct + rng.IntN(5) - 2
		if w < 1 {
			w = 1
		}
		if !seen[w] {
			seen[w] = true
			options = append(options, w)
		}
	}
	for next := correct + 1; len(options) < 3; next++ {
		if !seen[next] {
			seen[next] = true
			options = append(options, next)
		}
	}
	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return options
}
