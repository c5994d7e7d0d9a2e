// internal/champion/champion.go
package champion

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Lane is one of the five role slots of a draft.
type Lane string

const (
	Top     Lane = "top"
	Jungle  Lane = "jungle"
	Mid     Lane = "mid"
	ADC     Lane = "adc"
	Support Lane = "support"
)

// Lanes lists every lane in canonical order. Iteration over lanes always
// follows this order.
var Lanes = []Lane{Top, Jungle, Mid, ADC, Support}

var ErrUnknownLane = errors.New("unknown lane")

// ParseLane validates a lane name coming from the wire.
func ParseLane(s string) (Lane, error) {
	l := Lane(strings.ToLower(strings.TrimSpace(s)))
	if l.Valid() {
		return l, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownLane)
}

// Valid reports whether l is one of the five lanes.
func (l Lane) Valid() bool {
	for _, known := range Lanes {
		if l == known {
			return true
		}
	}
	return false
}

// Index returns the canonical position of l, or -1.
func (l Lane) Index() int {
	for i, known := range Lanes {
		if l == known {
			return i
		}
	}
	return -1
}

// Label is the display name used in draft summaries.
func (l Lane) Label() string {
	switch l {
	case Top:
		return "Top Lane"
	case Jungle:
		return "Jungle"
	case Mid:
		return "Mid Lane"
	case ADC:
		return "Bot Carry"
	case Support:
		return "Support"
	}
	return string(l)
}

// Champion is a draftable character. Name is the de-duplication key.
type Champion struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Roles []Lane `json:"roles"`
	Icon  string `json:"icon"`
}

// Plays reports whether the champion is eligible for lane.
func (c Champion) Plays(lane Lane) bool {
	for _, r := range c.Roles {
		if r == lane {
			return true
		}
	}
	return false
}

// Roster is an immutable list of champions with a per-lane index. Build it
// once with NewRoster; nothing mutates it afterwards.
type Roster struct {
	champions []Champion
	byLane    map[Lane][]Champion
}

// NewRoster copies champions, sorts them by name and indexes them by lane.
func NewRoster(champions []Champion) *Roster {
	list := make([]Champion, len(champions))
	copy(list, champions)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	byLane := make(map[Lane][]Champion, len(Lanes))
	for _, lane := range Lanes {
		byLane[lane] = []Champion{}
	}
	for _, c := range list {
		for _, role := range c.Roles {
			if role.Valid() {
				byLane[role] = append(byLane[role], c)
			}
		}
	}
	return &Roster{champions: list, byLane: byLane}
}

// EmptyRoster has no champions; every roll against it yields nulls.
func EmptyRoster() *Roster { return NewRoster(nil) }

// ByLane returns the champions eligible for lane. The slice is shared and
// must not be modified.
func (r *Roster) ByLane(lane Lane) []Champion {
	if r == nil {
		return nil
	}
	return r.byLane[lane]
}

// All returns a copy of every champion, sorted by name.
func (r *Roster) All() []Champion {
	if r == nil {
		return nil
	}
	out := make([]Champion, len(r.champions))
	copy(out, r.champions)
	return out
}

func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.champions)
}

// Lookup finds a champion by name.
func (r *Roster) Lookup(name string) (Champion, bool) {
	if r == nil {
		return Champion{}, false
	}
	for _, c := range r.champions {
		if c.Name == name {
			return c, true
		}
	}
	return Champion{}, false
}

// Stamp identifies the roster content; it changes whenever the set of
// champion ids changes.
func (r *Roster) Stamp() string {
	if r == nil {
		return ""
	}
	ids := make([]string, len(r.champions))
	for i, c := range r.champions {
		ids[i] = c.ID
	}
	return strings.Join(ids, "|")
}
