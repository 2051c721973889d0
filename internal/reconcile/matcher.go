package reconcile

import (
	"sort"
	"strings"

	"github.com/CaixiangyangCD/ksx/internal/domain"
)

const similarityFloor = 0.6

// Matcher resolves spreadsheet entity names against the stored entity pool.
// The pool is cleaned once up front; matching is read-only afterwards, so a
// single Matcher is safe for concurrent use.
type Matcher struct {
	pool    []string          // stored display names, sorted
	cleaned map[string]string // pool name -> cleaned form
}

// NewMatcher builds a matcher over the stored display names.
func NewMatcher(entities []string) *Matcher {
	pool := make([]string, len(entities))
	copy(pool, entities)
	sort.Strings(pool)

	cleaned := make(map[string]string, len(pool))
	for _, name := range pool {
		cleaned[name] = CleanName(name)
	}
	return &Matcher{pool: pool, cleaned: cleaned}
}

// MatchEntity tries, in order: cleaned-name equality, substring containment
// in either direction, then similarity ratio with a unique best above the
// floor. The pool is sorted, so every rule is deterministic. Several stored
// names can clean to the same core (markup and coded variants of one store),
// so the exact tier collects every hit and never picks among them.
func (m *Matcher) MatchEntity(name string) domain.MatchResult {
	target := CleanName(name)
	if target == "" {
		return domain.MatchResult{Outcome: domain.MatchNotFound}
	}

	var exact []string
	for _, stored := range m.pool {
		if m.cleaned[stored] == target {
			exact = append(exact, stored)
		}
	}
	switch {
	case len(exact) == 1:
		return domain.MatchResult{Outcome: domain.MatchUnique, Entity: exact[0], Rule: "exact"}
	case len(exact) > 1:
		return domain.MatchResult{Outcome: domain.MatchAmbiguous, Candidates: exact, Rule: "exact"}
	}

	for _, stored := range m.pool {
		c := m.cleaned[stored]
		if c == "" {
			continue
		}
		if strings.Contains(c, target) || strings.Contains(target, c) {
			return domain.MatchResult{Outcome: domain.MatchUnique, Entity: stored, Rule: "contains"}
		}
	}

	return m.matchBySimilarity(target)
}

func (m *Matcher) matchBySimilarity(target string) domain.MatchResult {
	var (
		best      float64
		bestNames []string
	)
	for _, stored := range m.pool {
		c := m.cleaned[stored]
		if c == "" {
			continue
		}
		score := similarity(target, c)
		if score < similarityFloor {
			continue
		}
		switch {
		case score > best:
			best = score
			bestNames = []string{stored}
		case score == best:
			bestNames = append(bestNames, stored)
		}
	}

	switch len(bestNames) {
	case 0:
		return domain.MatchResult{Outcome: domain.MatchNotFound}
	case 1:
		return domain.MatchResult{Outcome: domain.MatchUnique, Entity: bestNames[0], Rule: "similarity"}
	default:
		return domain.MatchResult{Outcome: domain.MatchAmbiguous, Candidates: bestNames, Rule: "similarity"}
	}
}
