// internal/draft/assignments.go
package draft

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/THoguet/random-lol/internal/champion"
)

// Assignments maps every lane to a champion or nil. It is a value type:
// copies never alias each other, so a snapshot holding one is immutable.
type Assignments [5]*champion.Champion

// Empty returns assignments with all five lanes unset.
func Empty() Assignments { return Assignments{} }

// Get returns the champion assigned to lane, or nil.
func (a Assignments) Get(lane champion.Lane) *champion.Champion {
	i := lane.Index()
	if i < 0 {
		return nil
	}
	return a[i]
}

// With returns a copy of a where lane is assigned c.
func (a Assignments) With(lane champion.Lane, c *champion.Champion) Assignments {
	if i := lane.Index(); i >= 0 {
		a[i] = c
	}
	return a
}

// Names returns the set of assigned champion names.
func (a Assignments) Names() NameSet {
	names := NameSet{}
	for _, c := range a {
		if c != nil {
			names.Add(c.Name)
		}
	}
	return names
}

// Filled counts non-nil lanes.
func (a Assignments) Filled() int {
	n := 0
	for _, c := range a {
		if c != nil {
			n++
		}
	}
	return n
}

// MarshalJSON renders a lane-keyed record with all five lanes present.
func (a Assignments) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, lane := range champion.Lanes {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(string(lane))
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(a[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the record produced by MarshalJSON. Missing lanes
// decode as nil; unknown lanes are rejected.
func (a *Assignments) UnmarshalJSON(data []byte) error {
	var raw map[string]*champion.Champion
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Assignments
	for k, c := range raw {
		lane, err := champion.ParseLane(k)
		if err != nil {
			return fmt.Errorf("assignments: %w", err)
		}
		out[lane.Index()] = c
	}
	*a = out
	return nil
}

// NameSet is a set of champion names.
type NameSet map[string]struct{}

// NewNameSet builds a set from names.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

func (s NameSet) Add(name string) { s[name] = struct{}{} }

func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Union returns a new set holding the names of both sets.
func (s NameSet) Union(other NameSet) NameSet {
	out := make(NameSet, len(s)+len(other))
	for n := range s {
		out.Add(n)
	}
	for n := range other {
		out.Add(n)
	}
	return out
}
