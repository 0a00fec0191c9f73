package roster

import "strings"

// PlayerSlot is one roster position. Position is 1-5 for starters; a
// substitute carries IsSub and a position past the starter range.
type PlayerSlot struct {
	Nickname string
	Position int
	IsSub    bool
	Country  string
}

// Participant is one team's appearance at one tournament: up to five
// starters and three substitutes plus team-level context. Exactly one
// record exists per distinct team name per tournament snapshot; a
// re-import replaces the prior set wholesale.
type Participant struct {
	TeamName    string
	Players     []PlayerSlot
	Coach       string
	Qualifier   string
	Placement   string
	Notes       string
	LogoURL     string
	LogoDarkURL string
}

func (p Participant) Starters() []PlayerSlot {
	out := make([]PlayerSlot, 0, 5)
	for _, slot := range p.Players {
		if !slot.IsSub {
			out = append(out, slot)
		}
	}
	return out
}

func (p Participant) Substitutes() []PlayerSlot {
	var out []PlayerSlot
	for _, slot := range p.Players {
		if slot.IsSub {
			out = append(out, slot)
		}
	}
	return out
}

// NormalizeTeamKey dedupes participants by team name: lowercase with
// separator runs folded to single spaces.
func NormalizeTeamKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	var b strings.Builder
	lastSpace := false
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}
