package domain

// InteractionType tags the payload variant carried by a StoryNode.
type InteractionType string

const (
	InteractionChoice          InteractionType = "CHOICE"
	InteractionFillInTheBlank  InteractionType = "FILL_IN_THE_BLANK"
	InteractionVoiceChoice     InteractionType = "VOICE_CHOICE"
	InteractionFindTheItem     InteractionType = "FIND_THE_ITEM"
	InteractionDragAndDropMath InteractionType = "DRAG_AND_DROP_MATH"
	InteractionEnd             InteractionType = "END"
)

// Choice is one selectable option of a Choice or VoiceChoice node.
// Keywords are only consulted for spoken-answer matching.
type Choice struct {
	Text       string   `json:"text" yaml:"text"`
	NextNodeID string   `json:"nextNodeId" yaml:"nextNodeId"`
	Keywords   []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// FindableItem names an object the player may tap in the scene image.
type FindableItem struct {
	Name      string `json:"name" yaml:"name"`
	IsCorrect bool   `json:"isCorrect" yaml:"isCorrect"`
}

// MathProblem is a single arithmetic question with one numeric answer.
type MathProblem struct {
	Question      string `json:"question" yaml:"question"`
	CorrectAnswer int    `json:"correctAnswer" yaml:"correctAnswer"`
}

// Payload is the tagged interaction variant of a node. Exactly one
// concrete payload type exists per InteractionType, which makes the
// "exactly one populated" rule structural instead of conventional.
type Payload interface {
	Kind() InteractionType

	// NextNodeIDs lists every forward transition target in authored
	// order. The first entry is the preload candidate.
	NextNodeIDs() []string
}

// ChoiceData holds the options of a button-choice node.
type ChoiceData struct {
	Options []Choice `json:"options"`
}

func (ChoiceData) Kind() InteractionType { return InteractionChoice }

func (d ChoiceData) NextNodeIDs() []string { return optionTargets(d.Options) }

// VoiceChoiceData holds the options of a spoken-choice node. When voice
// input is unsupported the presentation degrades it to button semantics.
type VoiceChoiceData struct {
	Options []Choice `json:"options"`
}

func (VoiceChoiceData) Kind() InteractionType { return InteractionVoiceChoice }

func (d VoiceChoiceData) NextNodeIDs() []string { return optionTargets(d.Options) }

// FillInTheBlankData asks the player to type the missing word between
// the two prompt parts.
type FillInTheBlankData struct {
	PromptParts   [2]string `json:"promptParts"`
	CorrectAnswer string    `json:"correctAnswer"`
	NextNodeID    string    `json:"nextNodeId"`
}

func (FillInTheBlankData) Kind() InteractionType { return InteractionFillInTheBlank }

func (d FillInTheBlankData) NextNodeIDs() []string { return []string{d.NextNodeID} }

// FindTheItemData asks the player to tap a named object in the scene.
type FindTheItemData struct {
	Prompt     string         `json:"prompt"`
	Items      []FindableItem `json:"items"`
	NextNodeID string         `json:"nextNodeId"`
}

func (FindTheItemData) Kind() InteractionType { return InteractionFindTheItem }

func (d FindTheItemData) NextNodeIDs() []string { return []string{d.NextNodeID} }

// DragAndDropMathData presents arithmetic problems one at a time; each
// solved problem reveals one piece image. PiecePrompts is always the
// same length as Problems.
type DragAndDropMathData struct {
	Problems     []MathProblem `json:"problems"`
	NextNodeID   string        `json:"nextNodeId"`
	PiecePrompts []string      `json:"piecePrompts"`
}

func (DragAndDropMathData) Kind() InteractionType { return InteractionDragAndDropMath }

func (d DragAndDropMathData) NextNodeIDs() []string { return []string{d.NextNodeID} }

// EndData marks a terminal node. It carries no payload.
type EndData struct{}

func (EndData) Kind() InteractionType { return InteractionEnd }

func (EndData) NextNodeIDs() []string { return nil }

// StoryNode is one step of the branching narrative. Text may contain
// the {name} placeholder, substituted at resolution time.
type StoryNode struct {
	ID          string
	Title       string
	Text        string
	ImagePrompt string
	SoundURL    string
	Payload     Payload
}

// Kind returns the interaction type of the node's payload.
// A node without a payload is treated as terminal.
func (n StoryNode) Kind() InteractionType {
	if n.Payload == nil {
		return InteractionEnd
	}
	return n.Payload.Kind()
}

func optionTargets(opts []Choice) []string {
	ids := make([]string, 0, len(opts))
	for _, o := range opts {
		ids = append(ids, o.NextNodeID)
	}
	return ids
}
