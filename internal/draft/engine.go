// internal/draft/engine.go
package draft

import (
	"fmt"

	"github.com/THoguet/random-lol/internal/champion"
	"github.com/THoguet/random-lol/internal/random"
)

// LaneIndex lists the champions eligible for each lane.
type LaneIndex interface {
	ByLane(lane champion.Lane) []champion.Champion
}

// Candidates returns the champions of lane whose name is not in exclude.
func Candidates(index LaneIndex, lane champion.Lane, exclude NameSet) []champion.Champion {
	if index == nil {
		return nil
	}
	eligible := index.ByLane(lane)
	out := make([]champion.Champion, 0, len(eligible))
	for _, c := range eligible {
		if !exclude.Has(c.Name) {
			out = append(out, c)
		}
	}
	return out
}

// pick draws one champion uniformly from candidates; nil when empty.
func pick(candidates []champion.Champion, src random.Source) (*champion.Champion, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	i, err := src.Intn(len(candidates))
	if err != nil {
		return nil, fmt.Errorf("draw champion: %w", err)
	}
	c := candidates[i]
	return &c, nil
}

// RollAll assigns a champion to every active lane, never choosing the same
// name twice and never choosing a blacklisted name. Lanes are visited in
// canonical order. Inactive lanes stay nil and do not consume a draw; a lane
// with no remaining candidate stays nil.
func RollAll(index LaneIndex, active []champion.Lane, blacklist NameSet, src random.Source) (Assignments, error) {
	isActive := make(map[champion.Lane]bool, len(active))
	for _, l := range active {
		isActive[l] = true
	}

	chosen := NameSet{}
	result := Empty()
	for _, lane := range champion.Lanes {
		if !isActive[lane] {
			continue
		}
		candidates := Candidates(index, lane, chosen.Union(blacklist))
		c, err := pick(candidates, src)
		if err != nil {
			return Empty(), fmt.Errorf("roll %s: %w", lane, err)
		}
		if c == nil {
			continue
		}
		result = result.With(lane, c)
		chosen.Add(c.Name)
	}
	return result, nil
}

// RollLane draws a replacement for lane. Every champion in current is
// excluded, the lane's own pick included, so a reroll never hands back the
// same champion; blacklisted names are excluded too. It returns nil when
// nothing is left to offer.
func RollLane(index LaneIndex, lane champion.Lane, current Assignments, blacklist NameSet, src random.Source) (*champion.Champion, error) {
	exclude := current.Names().Union(blacklist)
	c, err := pick(Candidates(index, lane, exclude), src)
	if err != nil {
		return nil, fmt.Errorf("reroll %s: %w", lane, err)
	}
	return c, nil
}

// ActiveLanes returns the lanes not in disabled, in canonical order.
func ActiveLanes(disabled map[champion.Lane]bool) []champion.Lane {
	out := make([]champion.Lane, 0, len(champion.Lanes))
	for _, l := range champion.Lanes {
		if !disabled[l] {
			out = append(out, l)
		}
	}
	return out
}
