// internal/room/room.go
package room

import (
	"sort"

	"github.com/THoguet/random-lol/internal/champion"
	"github.com/THoguet/random-lol/internal/draft"
)

// Player is a member of a room, keyed by connection id.
type Player struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	SelectedLane champion.Lane `json:"selectedLane,omitempty"`
}

// Room is an immutable snapshot of one draft session. Every Manager
// operation that changes a room stores a fresh snapshot; a *Room obtained
// earlier is never modified afterwards.
type Room struct {
	id            string
	ownerID       string
	players       map[string]Player
	assignments   draft.Assignments
	disabled      map[champion.Lane]bool
	rerollBank    int
	rerollBankMax int
}

func (r *Room) ID() string      { return r.id }
func (r *Room) OwnerID() string { return r.ownerID }

// RerollBank is the number of single-lane rerolls left in this cycle.
func (r *Room) RerollBank() int    { return r.rerollBank }
func (r *Room) RerollBankMax() int { return r.rerollBankMax }

// Assignments returns a copy of the lane assignments.
func (r *Room) Assignments() draft.Assignments { return r.assignments }

// Player looks up a member by id.
func (r *Room) Player(id string) (Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

func (r *Room) PlayerCount() int { return len(r.players) }

// Players returns every member sorted by id.
func (r *Room) Players() []Player {
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PlayerIDs returns member ids sorted.
func (r *Room) PlayerIDs() []string {
	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Disabled reports whether lane is excluded from rolls.
func (r *Room) Disabled(lane champion.Lane) bool { return r.disabled[lane] }

// DisabledLanes returns the disabled lanes in canonical order.
func (r *Room) DisabledLanes() []champion.Lane {
	out := []champion.Lane{}
	for _, l := range champion.Lanes {
		if r.disabled[l] {
			out = append(out, l)
		}
	}
	return out
}

// ActiveLanes returns the enabled lanes in canonical order.
func (r *Room) ActiveLanes() []champion.Lane { return draft.ActiveLanes(r.disabled) }

// laneHolder returns the id of the player who claimed lane, if any.
func (r *Room) laneHolder(lane champion.Lane) (string, bool) {
	for id, p := range r.players {
		if p.SelectedLane == lane {
			return id, true
		}
	}
	return "", false
}

// clone copies the snapshot so the copy can be changed before it is stored.
func (r *Room) clone() *Room {
	players := make(map[string]Player, len(r.players))
	for k, v := range r.players {
		players[k] = v
	}
	disabled := make(map[champion.Lane]bool, len(r.disabled))
	for k, v := range r.disabled {
		if v {
			disabled[k] = true
		}
	}
	return &Room{
		id:            r.id,
		ownerID:       r.ownerID,
		players:       players,
		assignments:   r.assignments,
		disabled:      disabled,
		rerollBank:    r.rerollBank,
		rerollBankMax: r.rerollBankMax,
	}
}

// Info is the summary used for room listings.
type Info struct {
	RoomID      string `json:"roomId"`
	OwnerID     string `json:"ownerId"`
	PlayerCount int    `json:"playerCount"`
}

// Snapshot is the wire representation of a room. It is the only form of a
// room that leaves the server.
type Snapshot struct {
	RoomID        string            `json:"roomId"`
	OwnerID       string            `json:"ownerId"`
	Players       []Player          `json:"players"`
	Assignments   draft.Assignments `json:"assignments"`
	DisabledLanes []champion.Lane   `json:"disabledLanes"`
	RerollBank    int               `json:"reRollBank"`
	RerollBankMax int               `json:"reRollBankMax"`
}

// Serialize projects r into its wire form.
func Serialize(r *Room) Snapshot {
	return Snapshot{
		RoomID:        r.id,
		OwnerID:       r.ownerID,
		Players:       r.Players(),
		Assignments:   r.assignments,
		DisabledLanes: r.DisabledLanes(),
		RerollBank:    r.rerollBank,
		RerollBankMax: r.rerollBankMax,
	}
}

// Disabled reports whether lane is disabled in the snapshot.
func (s Snapshot) Disabled(lane champion.Lane) bool {
	for _, l := range s.DisabledLanes {
		if l == lane {
			return true
		}
	}
	return false
}
