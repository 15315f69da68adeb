package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	fabula "github.com/fabulaverse/fabula"
	"github.com/fabulaverse/fabula/internal/presentation/tui"
	"github.com/fabulaverse/fabula/pkg/domain"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a story in the terminal",
	Long:  `Runs the engine locally and plays stories interactively. Without --service-url the adventure runs offline; scenes degrade gracefully and the story stays playable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd)
		opts, err := buildOptions(cmd, logger)
		if err != nil {
			return err
		}
		engine, err := fabula.New(opts...)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		subject, _ := cmd.Flags().GetString("subject")
		return runPlay(cmd.Context(), engine, name, subject)
	},
}

func init() {
	playCmd.Flags().String("name", "", "Player name (skips the name prompt)")
	playCmd.Flags().String("subject", "", "Subject to play (skips the subject menu)")
	rootCmd.AddCommand(playCmd)
}

func runPlay(ctx context.Context, engine *fabula.Engine, name, firstSubject string) error {
	render := tui.NewRenderer()
	reader := bufio.NewReader(os.Stdin)

	show := func(markdown string) {
		out, err := render(markdown)
		if err != nil {
			fmt.Println(markdown)
			return
		}
		fmt.Print(out)
	}

	if name == "" {
		show("# Welcome to Fabula!\n\nWhat is your name, explorer?")
		name = readLine(reader)
	}
	if name == "" {
		name = "Explorer"
	}
	engine.RegisterPlayer(name)

	for {
		subject := firstSubject
		firstSubject = ""
		if subject == "" {
			var quit bool
			subject, quit = pickSubject(reader, engine.Subjects())
			if quit {
				show("Until the next adventure! 👋")
				return nil
			}
		}

		if _, err := engine.SelectSubject(ctx, subject); err != nil {
			fmt.Printf("Could not start the story: %v\n", err)
			continue
		}

		again, err := playSubject(ctx, engine, reader, show)
		if err != nil {
			return err
		}
		if !again {
			show("Until the next adventure! 👋")
			return nil
		}
	}
}

func pickSubject(reader *bufio.Reader, subjects []string) (string, bool) {
	fmt.Println("\nPick a subject (or type 'quit'):")
	for i, s := range subjects {
		fmt.Printf("  %d. %s\n", i+1, s)
	}
	for {
		fmt.Print("> ")
		input := readLine(reader)
		if input == "quit" || input == "exit" {
			return "", true
		}
		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(subjects) {
			return subjects[n-1], false
		}
		for _, s := range subjects {
			if strings.EqualFold(s, input) {
				return s, false
			}
		}
		fmt.Println("Pick a number from the list.")
	}
}

// playSubject runs one story until its end node, returning whether the
// player wants to pick another subject.
func playSubject(ctx context.Context, engine *fabula.Engine, reader *bufio.Reader, show func(string)) (bool, error) {
	for {
		rn := engine.Resolved()
		if rn == nil {
			return true, nil
		}
		show(tui.NodeMarkdown(rn, engine.Score()))

		if engine.Snapshot().Phase == domain.PhaseTerminal {
			fmt.Println("Type 'replay' to play again, 'subjects' for another story, or 'quit'.")
			for {
				fmt.Print("> ")
				switch readLine(reader) {
				case "replay":
					if _, err := engine.RestartSubject(ctx); err != nil {
						return false, err
					}
				case "subjects":
					engine.BackToSubjectSelection()
					return true, nil
				case "quit", "exit":
					return false, nil
				default:
					continue
				}
				break
			}
			continue
		}

		ans, quit := readAnswer(engine, reader, rn)
		if quit {
			return false, nil
		}
		if ans == nil {
			continue
		}

		outcome, _, err := engine.Submit(ctx, ans)
		if err != nil {
			if errors.Is(err, domain.ErrInputInvalid) {
				fmt.Println("That doesn't work here. Try again!")
				continue
			}
			return false, err
		}
		if outcome.Feedback != "" && !outcome.Correct {
			fmt.Printf("💬 %s\n", outcome.Feedback)
		}
		if outcome.Correct {
			fmt.Printf("⭐ +%d points!\n", outcome.ScoreDelta)
		}
	}
}

func readAnswer(engine *fabula.Engine, reader *bufio.Reader, rn *domain.ResolvedNode) (domain.Answer, bool) {
	switch p := rn.Payload.(type) {
	case domain.ChoiceData:
		return readIndex(reader, len(p.Options))
	case domain.VoiceChoiceData:
		// A typed number picks the option directly; anything else is
		// treated as the spoken transcript.
		fmt.Print("> ")
		input := readLine(reader)
		if input == "quit" || input == "exit" {
			return nil, true
		}
		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(p.Options) {
			return domain.ChoiceAnswer{Index: n - 1}, false
		}
		return domain.VoiceAnswer{Transcript: input}, false
	case domain.FillInTheBlankData:
		fmt.Print("> ")
		input := readLine(reader)
		if input == "quit" || input == "exit" {
			return nil, true
		}
		return domain.BlankAnswer{Text: input}, false
	case domain.FindTheItemData:
		fmt.Print("x y > ")
		input := readLine(reader)
		if input == "quit" || input == "exit" {
			return nil, true
		}
		fields := strings.Fields(input)
		if len(fields) != 2 {
			fmt.Println("Enter two numbers, like: 40 60")
			return nil, false
		}
		x, errX := strconv.ParseFloat(fields[0], 64)
		y, errY := strconv.ParseFloat(fields[1], 64)
		if errX != nil || errY != nil {
			fmt.Println("Enter two numbers, like: 40 60")
			return nil, false
		}
		return domain.TapAnswer{X: x, Y: y}, false
	case domain.DragAndDropMathData:
		problem, idx, options, err := engine.MathState()
		if err != nil {
			return nil, false
		}
		fmt.Println(tui.MathMarkdown(problem, idx, len(p.Problems), options))
		fmt.Print("> ")
		input := readLine(reader)
		if input == "quit" || input == "exit" {
			return nil, true
		}
		v, err := strconv.Atoi(input)
		if err != nil {
			fmt.Println("Enter one of the numbers shown.")
			return nil, false
		}
		return domain.MathAnswer{Value: v}, false
	}
	return nil, false
}

func readIndex(reader *bufio.Reader, count int) (domain.Answer, bool) {
	for {
		fmt.Print("> ")
		input := readLine(reader)
		if input == "quit" || input == "exit" {
			return nil, true
		}
		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= count {
			return domain.ChoiceAnswer{Index: n - 1}, false
		}
		fmt.Printf("Pick a number between 1 and %d.\n", count)
	}
}

func readLine(reader *bufio.Reader) string {
	text, _ := reader.ReadString('\n')
	return strings.TrimSpace(text)
}
