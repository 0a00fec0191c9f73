package usecase

import (
	"strings"

	"github.com/avdeenkov/tourneysync/internal/domain/roster"
)

// TeamIdentityResolver reconciles team names between the wiki and the
// statistics service. Resolution is binary: a name either maps to a
// counterpart id or is unresolved, and unresolved means the caller drops
// the record, never fails.
type TeamIdentityResolver struct {
	candidates []identityCandidate
	cache      map[string]int64
}

type identityCandidate struct {
	id         int64
	name       string
	normalized string
}

// NewTeamIdentityResolver builds a resolver over the statistics-service
// side of the mapping: team id by team name.
func NewTeamIdentityResolver(namesByID map[int64]string) *TeamIdentityResolver {
	r := &TeamIdentityResolver{
		candidates: make([]identityCandidate, 0, len(namesByID)),
		cache:      make(map[string]int64),
	}
	for id, name := range namesByID {
		name = strings.TrimSpace(name)
		if id <= 0 || name == "" {
			continue
		}
		r.candidates = append(r.candidates, identityCandidate{
			id:         id,
			name:       name,
			normalized: roster.NormalizeTeamKey(name),
		})
	}
	return r
}

// Resolve walks the matching ladder in order, first rung wins: exact raw
// match, exact normalized match, normalized substring containment in
// either direction, then significant-token overlap. The token rung
// recovers sponsor renames and short forms like "Team Spirit" vs
// "Spirit".
func (r *TeamIdentityResolver) Resolve(wikiName string) (int64, bool) {
	wikiName = strings.TrimSpace(wikiName)
	if wikiName == "" || len(r.candidates) == 0 {
		return 0, false
	}

	if id, hit := r.cache[wikiName]; hit {
		return id, id > 0
	}

	id := r.resolve(wikiName)
	r.cache[wikiName] = id
	return id, id > 0
}

func (r *TeamIdentityResolver) resolve(wikiName string) int64 {
	for _, candidate := range r.candidates {
		if candidate.name == wikiName {
			return candidate.id
		}
	}

	normalized := roster.NormalizeTeamKey(wikiName)
	if normalized == "" {
		return 0
	}
	for _, candidate := range r.candidates {
		if candidate.normalized == normalized {
			return candidate.id
		}
	}

	for _, candidate := range r.candidates {
		if candidate.normalized == "" {
			continue
		}
		if strings.Contains(normalized, candidate.normalized) || strings.Contains(candidate.normalized, normalized) {
			return candidate.id
		}
	}

	words := significantTokens(normalized)
	if len(words) == 0 {
		return 0
	}
	for _, candidate := range r.candidates {
		if tokenOverlap(words, significantTokens(candidate.normalized)) {
			return candidate.id
		}
	}

	return 0
}

// significantTokens drops words of two characters or fewer; short tokens
// like "of" or team-tag punctuation leftovers create false matches.
func significantTokens(normalized string) []string {
	var out []string
	for _, word := range strings.Fields(normalized) {
		if len(word) > 2 {
			out = append(out, word)
		}
	}
	return out
}

// tokenOverlap accepts when at least half of the shorter name's
// significant words have a counterpart (exact or substring) in the other
// name.
func tokenOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}

	shorter, longer := a, b
	if len(b) < len(a) {
		shorter, longer = b, a
	}

	matched := 0
	for _, word := range shorter {
		for _, other := range longer {
			if word == other || strings.Contains(other, word) || strings.Contains(word, other) {
				matched++
				break
			}
		}
	}

	return matched*2 >= len(shorter)
}
