// internal/history/record.go
package history

import (
	"time"

	"github.com/THoguet/random-lol/internal/champion"
	"github.com/THoguet/random-lol/internal/room"
)

// Record is one committed draw as queued for the historian.
type Record struct {
	RoomID      string            `json:"room_id"`
	Kind        string            `json:"kind"`
	Lane        string            `json:"lane,omitempty"`
	Assignments map[string]string `json:"assignments"`
	RerollBank  int               `json:"reroll_bank"`
	Timestamp   int64             `json:"timestamp"` // epoch millis
}

// FromEvent captures ev at time now. Empty lanes map to "".
func FromEvent(ev room.Event, now time.Time) Record {
	rec := Record{
		Kind:        string(ev.Kind),
		Lane:        string(ev.Lane),
		Assignments: make(map[string]string, len(champion.Lanes)),
		Timestamp:   now.UnixMilli(),
	}
	if ev.Room == nil {
		return rec
	}
	rec.RoomID = ev.Room.ID()
	rec.RerollBank = ev.Room.RerollBank()
	a := ev.Room.Assignments()
	for _, lane := range champion.Lanes {
		name := ""
		if c := a.Get(lane); c != nil {
			name = c.Name
		}
		rec.Assignments[string(lane)] = name
	}
	return rec
}

func (r Record) Time() time.Time { return time.UnixMilli(r.Timestamp) }
