// internal/session/view.go
package session

import (
	"fmt"
	"strings"

	"github.com/THoguet/random-lol/internal/champion"
	"github.com/THoguet/random-lol/internal/draft"
	"github.com/THoguet/random-lol/internal/room"
)

// LaneView is one row of the draft as displayed.
type LaneView struct {
	Lane      champion.Lane
	Label     string
	Champion  *champion.Champion
	RolesText string
	Disabled  bool
}

// View is a read-only picture of the session. In multiplayer it reflects the
// last room snapshot; otherwise the local solo state.
type View struct {
	Multiplayer   bool
	RoomID        string
	Players       []room.Player
	Assignments   draft.Assignments
	DisabledLanes []champion.Lane
	RerollBank    int
	RerollBankMax int
	Fearless      bool
	Blacklist     []string
}

// ActiveLanes returns the lanes that are not disabled, in canonical order.
func (v View) ActiveLanes() []champion.Lane {
	disabled := make(map[champion.Lane]bool, len(v.DisabledLanes))
	for _, l := range v.DisabledLanes {
		disabled[l] = true
	}
	return draft.ActiveLanes(disabled)
}

// Lanes lists all five lanes with their assignment.
func (v View) Lanes() []LaneView {
	disabled := make(map[champion.Lane]bool, len(v.DisabledLanes))
	for _, l := range v.DisabledLanes {
		disabled[l] = true
	}
	out := make([]LaneView, 0, len(champion.Lanes))
	for _, lane := range champion.Lanes {
		c := v.Assignments.Get(lane)
		out = append(out, LaneView{
			Lane:      lane,
			Label:     lane.Label(),
			Champion:  c,
			RolesText: RolesText(c),
			Disabled:  disabled[lane],
		})
	}
	return out
}

// RerollPercentage is the share of the bank left, or 0 when the bank has no
// capacity.
func (v View) RerollPercentage() float64 {
	if v.RerollBankMax == 0 {
		return 0
	}
	return float64(v.RerollBank) / float64(v.RerollBankMax) * 100
}

func (v View) CanCopyDraft() bool { return v.Assignments.Filled() > 0 }

// DraftText renders the draft for pasting into a chat: a left-to-right mark,
// one line per filled lane, then the rerolls left.
func (v View) DraftText() string {
	var b strings.Builder
	b.WriteString("\u200e\n")
	for _, lv := range v.Lanes() {
		if lv.Champion == nil {
			continue
		}
		fmt.Fprintf(&b, "%s - %q\n", lv.Label, lv.Champion.Name)
	}
	fmt.Fprintf(&b, "%d rerolls remaining", v.RerollBank)
	return b.String()
}

// RolesText lists the lanes a champion plays, by label.
func RolesText(c *champion.Champion) string {
	if c == nil {
		return ""
	}
	labels := make([]string, 0, len(c.Roles))
	for _, r := range c.Roles {
		labels = append(labels, r.Label())
	}
	return strings.Join(labels, ", ")
}
