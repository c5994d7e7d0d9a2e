// internal/room/manager.go
package room

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/THoguet/random-lol/internal/champion"
	"github.com/THoguet/random-lol/internal/draft"
	"github.com/THoguet/random-lol/internal/random"
)

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrPlayerNotFound  = errors.New("player not in room")
	ErrLaneTaken       = errors.New("lane already selected by another player")
	ErrLaneDisabled    = errors.New("lane is disabled")
	ErrRerollBankEmpty = errors.New("no rerolls left")
)

// EventKind identifies a committed draw.
type EventKind string

const (
	EventRollAll EventKind = "roll_all"
	EventReroll  EventKind = "reroll"
)

// Event describes a committed draw, delivered to observers after the new
// snapshot is stored.
type Event struct {
	Kind EventKind
	Lane champion.Lane // set for EventReroll
	Room *Room
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver registers fn to be called after every committed roll.
func WithObserver(fn func(Event)) Option {
	return func(m *Manager) { m.observers = append(m.observers, fn) }
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(logger *logrus.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Manager is the authoritative store of live rooms. It is not safe for
// concurrent use; the gateway calls it from a single goroutine.
type Manager struct {
	rooms     map[string]*Room
	roster    *champion.Roster
	src       random.Source
	observers []func(Event)
	logger    *logrus.Logger
}

// New creates a Manager drawing from roster with src.
func New(roster *champion.Roster, src random.Source, opts ...Option) *Manager {
	if roster == nil {
		roster = champion.EmptyRoster()
	}
	m := &Manager{
		rooms:  make(map[string]*Room),
		roster: roster,
		src:    src,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetRoster replaces the roster used by later rolls. Existing assignments
// are kept.
func (m *Manager) SetRoster(r *champion.Roster) {
	if r == nil {
		r = champion.EmptyRoster()
	}
	m.roster = r
}

func (m *Manager) Roster() *champion.Roster { return m.roster }

// CreateRoom opens a room owned by creatorID and returns its code. The code
// is regenerated until it does not collide with a live room.
func (m *Manager) CreateRoom(creatorID, creatorName string) (string, error) {
	var code string
	for {
		c, err := random.Code(m.src, codeLength, codeAlphabet)
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		if _, taken := m.rooms[c]; !taken {
			code = c
			break
		}
		m.logger.Debug("collision on room code, regenerating")
	}

	lanes := len(champion.Lanes)
	m.rooms[code] = &Room{
		id:            code,
		ownerID:       creatorID,
		players:       map[string]Player{creatorID: {ID: creatorID, Name: creatorName}},
		assignments:   draft.Empty(),
		disabled:      map[champion.Lane]bool{},
		rerollBank:    lanes,
		rerollBankMax: lanes,
	}
	m.logger.WithFields(logrus.Fields{"room": code, "owner": creatorID}).Info("Room created")
	return code, nil
}

// Room returns the current snapshot of roomID.
func (m *Manager) Room(roomID string) (*Room, error) {
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", roomID, ErrRoomNotFound)
	}
	return r, nil
}

// Rooms lists every live room sorted by id.
func (m *Manager) Rooms() []Info {
	out := make([]Info, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, Info{RoomID: r.id, OwnerID: r.ownerID, PlayerCount: len(r.players)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

// JoinRoom adds playerID to roomID. Rooms have no capacity limit.
func (m *Manager) JoinRoom(roomID, playerID, playerName string) (*Room, error) {
	cur, err := m.Room(roomID)
	if err != nil {
		return nil, err
	}
	next := cur.clone()
	next.players[playerID] = Player{ID: playerID, Name: playerName}
	return m.commit(next), nil
}

// LeaveRoom removes playerID. When the owner leaves or the room becomes
// empty, the room is deleted and closed is true; that is a normal outcome,
// not an error. Otherwise the departing player's lane assignment is cleared.
func (m *Manager) LeaveRoom(roomID, playerID string) (r *Room, closed bool, err error) {
	cur, err := m.Room(roomID)
	if err != nil {
		return nil, false, err
	}
	next := cur.clone()
	player, wasMember := next.players[playerID]
	delete(next.players, playerID)

	if len(next.players) == 0 || playerID == cur.ownerID {
		delete(m.rooms, roomID)
		m.logger.WithFields(logrus.Fields{"room": roomID, "player": playerID}).Info("Room closed")
		return nil, true, nil
	}

	if wasMember && player.SelectedLane != "" {
		next.assignments = next.assignments.With(player.SelectedLane, nil)
	}
	return m.commit(next), false, nil
}

// SelectLane records playerID's claim on lane. A player holds at most one
// lane; the first claim wins and is never overridden by another player.
func (m *Manager) SelectLane(roomID, playerID string, lane champion.Lane) (*Room, error) {
	if !lane.Valid() {
		return nil, fmt.Errorf("%q: %w", lane, champion.ErrUnknownLane)
	}
	cur, err := m.Room(roomID)
	if err != nil {
		return nil, err
	}
	player, ok := cur.players[playerID]
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", playerID, roomID, ErrPlayerNotFound)
	}
	if holder, taken := cur.laneHolder(lane); taken && holder != playerID {
		return nil, fmt.Errorf("%s: %w", lane, ErrLaneTaken)
	}

	next := cur.clone()
	player.SelectedLane = lane
	next.players[playerID] = player
	return m.commit(next), nil
}

// ToggleLane enables or disables lane, clearing its assignment. Disabling
// takes one reroll from the bank and enabling gives it back.
func (m *Manager) ToggleLane(roomID string, lane champion.Lane) (*Room, error) {
	if !lane.Valid() {
		return nil, fmt.Errorf("%q: %w", lane, champion.ErrUnknownLane)
	}
	cur, err := m.Room(roomID)
	if err != nil {
		return nil, err
	}

	next := cur.clone()
	if next.disabled[lane] {
		delete(next.disabled, lane)
		next.rerollBank++
	} else {
		next.disabled[lane] = true
		next.rerollBank--
	}
	next.assignments = next.assignments.With(lane, nil)
	return m.commit(next), nil
}

// RerollLane replaces the champion of lane, spending one reroll. A draw
// that finds no candidate still spends the reroll and leaves the lane empty.
// With an empty bank nothing changes.
func (m *Manager) RerollLane(roomID string, lane champion.Lane) (*Room, error) {
	if !lane.Valid() {
		return nil, fmt.Errorf("%q: %w", lane, champion.ErrUnknownLane)
	}
	cur, err := m.Room(roomID)
	if err != nil {
		return nil, err
	}
	if cur.rerollBank <= 0 {
		return nil, fmt.Errorf("%s: %w", roomID, ErrRerollBankEmpty)
	}
	if cur.disabled[lane] {
		return nil, fmt.Errorf("%s: %w", lane, ErrLaneDisabled)
	}

	c, err := draft.RollLane(m.roster, lane, cur.assignments, nil, m.src)
	if err != nil {
		return nil, err
	}

	next := cur.clone()
	next.assignments = next.assignments.With(lane, c)
	next.rerollBank--
	committed := m.commit(next)
	m.notify(Event{Kind: EventReroll, Lane: lane, Room: committed})
	return committed, nil
}

// RollAllAssignments draws every active lane again and refills the bank to
// the number of active lanes.
func (m *Manager) RollAllAssignments(roomID string) (*Room, error) {
	cur, err := m.Room(roomID)
	if err != nil {
		return nil, err
	}

	active := cur.ActiveLanes()
	assignments, err := draft.RollAll(m.roster, active, nil, m.src)
	if err != nil {
		return nil, err
	}

	next := cur.clone()
	next.assignments = assignments
	next.rerollBank = len(active)
	next.rerollBankMax = len(active)
	committed := m.commit(next)
	m.notify(Event{Kind: EventRollAll, Room: committed})
	return committed, nil
}

func (m *Manager) commit(r *Room) *Room {
	m.rooms[r.id] = r
	return r
}

// notify runs observers after a commit. The room has already changed, so an
// observer that panics is logged and skipped.
func (m *Manager) notify(ev Event) {
	for _, fn := range m.observers {
		m.observe(fn, ev)
	}
}

func (m *Manager) observe(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.WithFields(logrus.Fields{
				"room": ev.Room.ID(),
				"kind": ev.Kind,
			}).Errorf("Recovered from panic in room observer: %v", r)
		}
	}()
	fn(ev)
}
