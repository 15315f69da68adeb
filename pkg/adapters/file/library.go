// Package file loads story graphs from a directory of YAML documents,
// one subject per file.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/fabulaverse/fabula/pkg/domain"
)

// Library implements ports.StoryLibrary over a directory of story
// files. Graphs are parsed and validated once, at construction.
type Library struct {
	graphs map[string]domain.Graph
}

type rawGraph struct {
	Subject string             `yaml:"subject"`
	Nodes   map[string]rawNode `yaml:"nodes"`
}

type rawNode struct {
	Title       string         `yaml:"title"`
	Text        string         `yaml:"text"`
	ImagePrompt string         `yaml:"imagePrompt"`
	SoundURL    string         `yaml:"soundUrl"`
	Interaction string         `yaml:"interaction"`
	Payload     map[string]any `yaml:"payload"`
}

// New builds a library from every .yaml/.yml file in dir.
func New(dir string) (*Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read story dir: %w", err)
	}

	l := &Library{graphs: make(map[string]domain.Graph)}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		g, err := loadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if _, dup := l.graphs[g.Subject]; dup {
			return nil, fmt.Errorf("%s: duplicate subject %q", entry.Name(), g.Subject)
		}
		l.graphs[g.Subject] = g
	}
	if len(l.graphs) == 0 {
		return nil, fmt.Errorf("no story files found in %s", dir)
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

func loadFile(path string) (domain.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Graph{}, fmt.Errorf("read story file: %w", err)
	}

	var raw rawGraph
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return domain.Graph{}, fmt.Errorf("%s: parse: %w", filepath.Base(path), err)
	}
	if raw.Subject == "" {
		return domain.Graph{}, fmt.Errorf("%s: missing subject id", filepath.Base(path))
	}

	g := domain.Graph{Subject: raw.Subject, Nodes: make(map[string]domain.StoryNode, len(raw.Nodes))}
	for id, rn := range raw.Nodes {
		payload, err := decodePayload(rn.Interaction, rn.Payload)
		if err != nil {
			return domain.Graph{}, fmt.Errorf("%s: node %q: %w", filepath.Base(path), id, err)
		}
		g.Nodes[id] = domain.StoryNode{
			ID:          id,
			Title:       rn.Title,
			Text:        rn.Text,
			ImagePrompt: rn.ImagePrompt,
			SoundURL:    rn.SoundURL,
			Payload:     payload,
		}
	}
	if err := g.Validate(); err != nil {
		return domain.Graph{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return g, nil
}

// decodePayload picks the payload type from the interaction tag and
// decodes the loose YAML mapping into it. Unknown keys are authoring
// errors.
func decodePayload(interaction string, payload map[string]any) (domain.Payload, error) {
	kind := domain.InteractionType(strings.ToUpper(strings.TrimSpace(interaction)))

	var target domain.Payload
	switch kind {
	case domain.InteractionChoice:
		target = &domain.ChoiceData{}
	case domain.InteractionVoiceChoice:
		target = &domain.VoiceChoiceData{}
	case domain.InteractionFillInTheBlank:
		target = &domain.FillInTheBlankData{}
	case domain.InteractionFindTheItem:
		target = &domain.FindTheItemData{}
	case domain.InteractionDragAndDropMath:
		target = &domain.DragAndDropMathData{}
	case domain.InteractionEnd:
		if len(payload) > 0 {
			return nil, fmt.Errorf("end node carries a payload")
		}
		return domain.EndData{}, nil
	default:
		return nil, fmt.Errorf("unknown interaction %q", interaction)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build payload decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}

	// Return the value, not the pointer, so payloads stay comparable to
	// their type switch cases.
	switch p := target.(type) {
	case *domain.ChoiceData:
		return *p, nil
	case *domain.VoiceChoiceData:
		return *p, nil
	case *domain.FillInTheBlankData:
		return *p, nil
	case *domain.FindTheItemData:
		return *p, nil
	case *domain.DragAndDropMathData:
		return *p, nil
	}
	return nil, fmt.Errorf("unhandled payload type for %s", kind)
}
