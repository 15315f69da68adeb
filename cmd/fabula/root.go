package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	fabula "github.com/fabulaverse/fabula"
	"github.com/fabulaverse/fabula/internal/logging"
	"github.com/fabulaverse/fabula/pkg/adapters/file"
	"github.com/fabulaverse/fabula/pkg/adapters/gemini"
	"github.com/fabulaverse/fabula/pkg/adapters/memory"
	"github.com/fabulaverse/fabula/pkg/adapters/redis"
	"github.com/fabulaverse/fabula/pkg/domain"
	"github.com/fabulaverse/fabula/pkg/ports"
)

var rootCmd = &cobra.Command{
	Use:   "fabula",
	Short: "Fabula is a story progression engine for illustrated adventures",
	Long: `Fabula walks branching educational stories for children, resolving
AI-generated scene images and interactive challenges as the player
explores. Stories are authored as YAML files, one subject per file.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", "content", "Directory containing the story files")
	rootCmd.PersistentFlags().String("service-url", "", "Base URL of the image generation service (empty runs offline)")
	rootCmd.PersistentFlags().String("redis", "", "Redis address for the shared image cache (empty keeps it in memory)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	levelName, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	switch strings.ToLower(levelName) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return logging.New(level)
}

// buildOptions wires the engine collaborators from the persistent
// flags. Without a service URL the generator runs offline and every
// scene takes its degradation path, which is enough to play the story.
func buildOptions(cmd *cobra.Command, logger *slog.Logger) ([]fabula.Option, error) {
	dir, _ := cmd.Flags().GetString("dir")
	serviceURL, _ := cmd.Flags().GetString("service-url")
	redisAddr, _ := cmd.Flags().GetString("redis")

	library, err := file.New(dir)
	if err != nil {
		return nil, fmt.Errorf("load stories: %w", err)
	}

	var generator ports.ImageGenerator
	if serviceURL != "" {
		generator = gemini.New(serviceURL, gemini.WithLogger(logger))
	} else {
		logger.Warn("no --service-url set, running offline without images")
		generator = &memory.Generator{Err: domain.ErrContentUnavailable}
	}

	opts := []fabula.Option{
		fabula.WithLibrary(library),
		fabula.WithGenerator(generator),
		fabula.WithLogger(logger),
	}
	if redisAddr != "" {
		opts = append(opts, fabula.WithCache(redis.New(redisAddr, "", 0)))
	}
	return opts, nil
}
