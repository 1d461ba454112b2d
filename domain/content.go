package domain

// Content items are drawn from the question banks by the storage layer.
// The game core keeps only the ids (for exclusion on later draws) and the
// payload it needs to render the current turn.

// Question is a single truth-or-dare question.
type Question struct {
	ID         string
	Type       string // "truth" or "dare"
	SpiceLevel string
	Content    string
	Points     int
}

// PromptPair is one imposter round's pair of prompts. Regular goes to
// everyone except the imposter, Imposter only to the imposter.
type PromptPair struct {
	ID       string
	Category string
	Regular  string
	Imposter string
}

// Statement is a never-have-i-ever statement.
type Statement struct {
	ID       string
	Category string
	Text     string
}
