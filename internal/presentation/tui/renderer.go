// Package tui renders story nodes as markdown for the terminal player.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/fabulaverse/fabula/pkg/domain"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// NodeMarkdown lays out a resolved node as markdown: title, scene
// state, narration and the interaction prompt.
func NodeMarkdown(rn *domain.ResolvedNode, score int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", rn.Title)
	if rn.Image == domain.ImageUnavailable {
		b.WriteString("> _The scene picture is still being painted..._\n\n")
	} else {
		b.WriteString("> 🖼 _A scene illustration is ready._\n\n")
	}
	fmt.Fprintf(&b, "%s\n\n", rn.Text)

	switch p := rn.Payload.(type) {
	case domain.ChoiceData:
		b.WriteString("**What do you do?**\n\n")
		for i, opt := range p.Options {
			fmt.Fprintf(&b, "%d. %s\n", i+1, opt.Text)
		}
	case domain.VoiceChoiceData:
		b.WriteString("**Say your answer (or type its number):**\n\n")
		for i, opt := range p.Options {
			fmt.Fprintf(&b, "%d. %s\n", i+1, opt.Text)
		}
	case domain.FillInTheBlankData:
		fmt.Fprintf(&b, "**%s ____ %s**\n", p.PromptParts[0], p.PromptParts[1])
	case domain.FindTheItemData:
		fmt.Fprintf(&b, "**%s**\n\n", p.Prompt)
		b.WriteString("Enter coordinates as `x y` (0-100).\n")
	case domain.DragAndDropMathData:
		b.WriteString("**Solve to continue!**\n")
	case domain.EndData:
		fmt.Fprintf(&b, "**The End!** Final score: **%d**\n", score)
	}

	return b.String()
}

// MathMarkdown lays out the current math problem with its options.
func MathMarkdown(problem domain.MathProblem, index, count int, options []int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Problem %d of %d:** `%s = ?`\n\n", index+1, count, problem.Question)
	b.WriteString("Options: ")
	for i, o := range options {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "`%d`", o)
	}
	b.WriteString("\n")
	return b.String()
}
