package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fabulaverse/fabula/pkg/adapters/file"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the story files for consistency",
	Long:  `Parses every story file in the content directory and reports missing start nodes, dead transitions and malformed payloads.`,
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("dir")
		if len(args) > 0 {
			dir = args[0]
		}

		lib, err := file.New(dir)
		if err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}

		for _, subject := range lib.Subjects() {
			g, _ := lib.Graph(subject)
			fmt.Printf("  %s: %d nodes\n", subject, len(g.Nodes))
		}
		fmt.Println("Stories are valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
