package domain

// Phase is the progression engine's state machine position.
type Phase string

const (
	// PhaseIdle means no subject graph is loaded.
	PhaseIdle Phase = "idle"
	// PhaseResolving means an async content fetch is in flight for the
	// current node. Advancing is disabled.
	PhaseResolving Phase = "resolving"
	// PhaseReady means the current node is fully resolved and the
	// engine awaits a player action.
	PhaseReady Phase = "ready"
	// PhaseTransitioning means a player action was accepted and the
	// engine is about to resolve the next node. Advancing is disabled.
	PhaseTransitioning Phase = "transitioning"
	// PhaseTerminal means the current node is an End node. Only
	// restart actions apply.
	PhaseTerminal Phase = "terminal"
)

// Snapshot is a read-only view of the session for the presentation
// layer.
type Snapshot struct {
	Phase      Phase  `json:"phase"`
	Subject    string `json:"subject,omitempty"`
	NodeID     string `json:"nodeId,omitempty"`
	Score      int    `json:"score"`
	PlayerName string `json:"playerName,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
}

// Outcome is the result of applying player input to the current
// node's interaction.
type Outcome struct {
	// Correct reports whether the input solved the interaction.
	Correct bool `json:"correct"`
	// ScoreDelta is the points awarded. Never negative.
	ScoreDelta int `json:"scoreDelta"`
	// NextNodeID is the transition target, empty when the player
	// stays on the current node (retry).
	NextNodeID string `json:"nextNodeId,omitempty"`
	// Feedback is a transient message for the player, set on retries.
	Feedback string `json:"feedback,omitempty"`
	// PieceRevealed is the index of the math piece unlocked by this
	// answer, or -1.
	PieceRevealed int `json:"pieceRevealed"`
}

// Answer is player input for the current interaction. The concrete
// type must match the node's interaction kind.
type Answer interface{ answer() }

// ChoiceAnswer selects option Index of a Choice node.
type ChoiceAnswer struct{ Index int }

// VoiceAnswer carries the recognized transcript for a VoiceChoice node.
type VoiceAnswer struct{ Transcript string }

// BlankAnswer carries the typed word for a FillInTheBlank node.
type BlankAnswer struct{ Text string }

// TapAnswer is a click on the scene image, in percentages of the image
// dimensions.
type TapAnswer struct{ X, Y float64 }

// MathAnswer is the numeric value dropped on the current math problem.
type MathAnswer struct{ Value int }

func (ChoiceAnswer) answer() {}
func (VoiceAnswer) answer()  {}
func (BlankAnswer) answer()  {}
func (TapAnswer) answer()    {}
func (MathAnswer) answer()   {}
