package generator

// Thread is what the model gets to see of a thread.
type Thread struct {
	Title     string
	OPSummary string
	Comments  []string
}

// Constraints bound the generated reply. Lengths count runes.
type Constraints struct {
	MinLength int
	MaxLength int
	// Language is a BCP 47 tag such as "zh" or "en".
	Language string
}

// DefaultConstraints matches the length of a typical forum reply.
func DefaultConstraints() Constraints {
	return Constraints{MinLength: 120, MaxLength: 220, Language: "zh"}
}
