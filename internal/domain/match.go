package domain

// MatchOutcome classifies an entity-matching attempt.
type MatchOutcome int

const (
	MatchNotFound MatchOutcome = iota
	MatchUnique
	MatchAmbiguous
)

// MatchResult is the per-call outcome of matching a spreadsheet entity name
// against the stored entity pool. Never persisted.
type MatchResult struct {
	Outcome    MatchOutcome
	Entity     string   // stored display name on MatchUnique
	Candidates []string // plausible stored names on MatchAmbiguous
	Rule       string   // which strategy decided: "exact", "contains", "similarity"
}

func (m MatchResult) String() string {
	switch m.Outcome {
	case MatchUnique:
		return "unique:" + m.Entity
	case MatchAmbiguous:
		return "ambiguous"
	default:
		return "not-found"
	}
}
