// internal/gateway/hub.go
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/THoguet/random-lol/internal/champion"
	"github.com/THoguet/random-lol/internal/room"
)

// ErrHubStopped is returned by calls made after Run has returned.
var ErrHubStopped = errors.New("hub stopped")

var (
	errNotInRoom    = errors.New("not in a room")
	errNameRequired = errors.New("player name required")
	errUnknownType  = errors.New("unknown command")
)

// Conn is the hub's handle on one client connection. The hub is the only
// writer of the outbound channel and closes it when the connection is
// unregistered or dropped for being too slow.
type Conn struct {
	ID  string
	out chan []byte
}

// NewConn creates a handle whose outbound queue holds buffer messages.
func NewConn(id string, buffer int) *Conn {
	return &Conn{ID: id, out: make(chan []byte, buffer)}
}

// Out yields encoded messages for the connection's writer. It is closed
// when the hub lets go of the connection.
func (c *Conn) Out() <-chan []byte { return c.out }

type hubMsg interface{ isHubMsg() }

type registerMsg struct {
	conn  *Conn
	reply chan struct{}
}

type unregisterMsg struct {
	connID string
	reply  chan struct{}
}

type dispatchMsg struct {
	connID string
	cmd    Command
	reply  chan Ack
}

type setRosterMsg struct {
	roster *champion.Roster
}

type queryMsg struct {
	fn    func(*room.Manager)
	reply chan struct{}
}

func (registerMsg) isHubMsg()   {}
func (unregisterMsg) isHubMsg() {}
func (dispatchMsg) isHubMsg()   {}
func (setRosterMsg) isHubMsg()  {}
func (queryMsg) isHubMsg()      {}

// Hub serializes every room command on one goroutine. It owns the room
// manager, the connection registry and the connection-to-room index.
type Hub struct {
	manager  *room.Manager
	logger   *logrus.Logger
	inbox    chan hubMsg
	done     chan struct{}
	conns    map[string]*Conn
	memberOf map[string]string

	// pending holds the messages caused by the command being handled. They
	// are queued after the caller's ack.
	pending []staged
	slow    []string
}

// NewHub creates a hub around manager. Call Run to start processing.
func NewHub(manager *room.Manager, logger *logrus.Logger) *Hub {
	return &Hub{
		manager:  manager,
		logger:   logger,
		inbox:    make(chan hubMsg, 64),
		done:     make(chan struct{}),
		conns:    make(map[string]*Conn),
		memberOf: make(map[string]string),
	}
}

// Run handles inbox messages until ctx is done. On exit Done is closed, then
// every registered connection's outbound channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for id, c := range h.conns {
				close(c.out)
				delete(h.conns, id)
			}
			h.logger.Info("Hub stopped")
			return
		case m := <-h.inbox:
			h.handle(m)
			h.dropSlow()
		}
	}
}

// Done is closed when Run stops, before outbound channels are closed, so a
// writer seeing its queue closed can tell shutdown from being dropped.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Register adds conn to the registry and queues its welcome message.
func (h *Hub) Register(ctx context.Context, conn *Conn) error {
	reply := make(chan struct{}, 1)
	if err := h.send(ctx, registerMsg{conn: conn, reply: reply}); err != nil {
		return err
	}
	return h.wait(ctx, reply)
}

// Unregister treats the connection as gone: it leaves its room, if any, and
// closes its outbound channel. Repeated calls for the same id are no-ops.
func (h *Hub) Unregister(ctx context.Context, connID string) error {
	reply := make(chan struct{}, 1)
	if err := h.send(ctx, unregisterMsg{connID: connID, reply: reply}); err != nil {
		return err
	}
	return h.wait(ctx, reply)
}

// Dispatch runs cmd on behalf of connID. The ack is queued on the
// connection ahead of any broadcast the command causes, and also returned.
func (h *Hub) Dispatch(ctx context.Context, connID string, cmd Command) (Ack, error) {
	reply := make(chan Ack, 1)
	if err := h.send(ctx, dispatchMsg{connID: connID, cmd: cmd, reply: reply}); err != nil {
		return Ack{}, err
	}
	select {
	case ack := <-reply:
		return ack, nil
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	case <-h.done:
		return Ack{}, ErrHubStopped
	}
}

// SetRoster hands a freshly loaded roster to the manager. Later rolls use
// it; current assignments are untouched.
func (h *Hub) SetRoster(ctx context.Context, roster *champion.Roster) error {
	return h.send(ctx, setRosterMsg{roster: roster})
}

// Rooms lists the live rooms.
func (h *Hub) Rooms(ctx context.Context) ([]room.Info, error) {
	var out []room.Info
	err := h.query(ctx, func(m *room.Manager) { out = m.Rooms() })
	return out, err
}

// Roster returns the roster currently used for rolls.
func (h *Hub) Roster(ctx context.Context) (*champion.Roster, error) {
	var out *champion.Roster
	err := h.query(ctx, func(m *room.Manager) { out = m.Roster() })
	return out, err
}

func (h *Hub) query(ctx context.Context, fn func(*room.Manager)) error {
	reply := make(chan struct{}, 1)
	if err := h.send(ctx, queryMsg{fn: fn, reply: reply}); err != nil {
		return err
	}
	return h.wait(ctx, reply)
}

func (h *Hub) send(ctx context.Context, m hubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *Hub) wait(ctx context.Context, reply <-chan struct{}) error {
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		select {
		case <-reply:
			return nil
		default:
			return ErrHubStopped
		}
	}
}

func (h *Hub) handle(m hubMsg) {
	switch msg := m.(type) {
	case registerMsg:
		h.conns[msg.conn.ID] = msg.conn
		h.sendTo(msg.conn.ID, Event{Type: EventWelcome, ConnectionID: msg.conn.ID})
		h.logger.WithField("conn", msg.conn.ID).Debug("Connection registered")
		msg.reply <- struct{}{}

	case unregisterMsg:
		h.disconnect(msg.connID)
		h.flush()
		msg.reply <- struct{}{}

	case dispatchMsg:
		msg.reply <- h.dispatch(msg.connID, msg.cmd)

	case setRosterMsg:
		h.manager.SetRoster(msg.roster)
		h.logger.WithField("champions", msg.roster.Len()).Info("Roster updated")

	case queryMsg:
		msg.fn(h.manager)
		msg.reply <- struct{}{}
	}
}

// disconnect runs the leave path for a vanished connection. Only the first
// call for an id does anything, since the registry entry is removed here.
func (h *Hub) disconnect(connID string) {
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	if _, inRoom := h.memberOf[connID]; inRoom {
		if err := h.leave(connID); err != nil {
			h.logger.WithError(err).WithField("conn", connID).Warn("Leave on disconnect failed")
		}
	}
	delete(h.conns, connID)
	close(c.out)
	h.logger.WithField("conn", connID).Debug("Connection unregistered")
}

func (h *Hub) dispatch(connID string, cmd Command) (ack Ack) {
	ack = Ack{Type: TypeAck, RequestID: cmd.RequestID, Command: cmd.Type}
	log := h.logger.WithFields(logrus.Fields{"conn": connID, "command": cmd.Type})

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Recovered from panic while handling command: %v", r)
			ack = Ack{Type: TypeAck, RequestID: cmd.RequestID, Command: cmd.Type, Error: "Failed to " + cmd.Type}
			h.sendTo(connID, ack)
			// Staged messages only describe committed snapshots.
			h.flush()
		}
	}()

	if _, ok := h.conns[connID]; !ok {
		ack.Error = "Not connected"
		return ack
	}

	roomID, err := h.run(connID, cmd)
	if err != nil {
		ack.Error = errorMessage(cmd.Type, err)
		if errors.Is(err, errUnknownType) {
			h.sendTo(connID, Event{Type: EventError, Message: ack.Error})
		}
		log.WithError(err).Debug("Command refused")
	} else {
		ack.Success = true
		ack.RoomID = roomID
	}
	h.sendTo(connID, ack)
	h.flush()
	return ack
}

// run performs cmd and stages the broadcasts it causes. Broadcasts are only
// queued after the ack, via flush.
func (h *Hub) run(connID string, cmd Command) (string, error) {
	switch cmd.Type {
	case CmdCreateRoom:
		name := strings.TrimSpace(cmd.PlayerName)
		if name == "" {
			return "", errNameRequired
		}
		if _, inRoom := h.memberOf[connID]; inRoom {
			if err := h.leave(connID); err != nil {
				return "", err
			}
		}
		id, err := h.manager.CreateRoom(connID, name)
		if err != nil {
			return "", err
		}
		h.memberOf[connID] = id
		r, err := h.manager.Room(id)
		if err != nil {
			return "", err
		}
		h.stageState(r)
		return id, nil

	case CmdJoinRoom:
		name := strings.TrimSpace(cmd.PlayerName)
		if name == "" {
			return "", errNameRequired
		}
		roomID := strings.ToUpper(strings.TrimSpace(cmd.RoomID))
		if cur, inRoom := h.memberOf[connID]; inRoom {
			if cur == roomID {
				r, err := h.manager.Room(roomID)
				if err != nil {
					return "", err
				}
				h.stage(connID, stateEvent(r))
				return roomID, nil
			}
			if _, err := h.manager.Room(roomID); err != nil {
				return "", err
			}
			if err := h.leave(connID); err != nil {
				return "", err
			}
		}
		r, err := h.manager.JoinRoom(roomID, connID, name)
		if err != nil {
			return "", err
		}
		h.memberOf[connID] = roomID
		if p, ok := r.Player(connID); ok {
			for _, id := range r.PlayerIDs() {
				if id != connID {
					h.stage(id, Event{Type: EventPlayerJoined, Player: &p})
				}
			}
		}
		h.stageState(r)
		return roomID, nil

	case CmdLeaveRoom:
		// Leaving twice, or after the room closed, is not an error.
		if _, inRoom := h.memberOf[connID]; !inRoom {
			return "", nil
		}
		return "", h.leave(connID)

	case CmdSelectLane, CmdToggleLane, CmdRerollLane, CmdRollAll:
		roomID, inRoom := h.memberOf[connID]
		if !inRoom {
			return "", errNotInRoom
		}
		r, err := h.mutate(roomID, connID, cmd)
		if err != nil {
			return "", err
		}
		h.stageState(r)
		return "", nil

	default:
		return "", fmt.Errorf("%q: %w", cmd.Type, errUnknownType)
	}
}

func (h *Hub) mutate(roomID, connID string, cmd Command) (*room.Room, error) {
	if cmd.Type == CmdRollAll {
		return h.manager.RollAllAssignments(roomID)
	}
	lane, err := champion.ParseLane(cmd.Lane)
	if err != nil {
		return nil, err
	}
	switch cmd.Type {
	case CmdSelectLane:
		return h.manager.SelectLane(roomID, connID, lane)
	case CmdToggleLane:
		return h.manager.ToggleLane(roomID, lane)
	default:
		return h.manager.RerollLane(roomID, lane)
	}
}

// leave removes connID from its room and stages the notices for whoever
// remains. When the room closes, each remaining member is told who left,
// then that the room is gone, and is moved out of the room.
func (h *Hub) leave(connID string) error {
	roomID := h.memberOf[connID]
	delete(h.memberOf, connID)

	before, err := h.manager.Room(roomID)
	if err != nil {
		return err
	}
	r, closed, err := h.manager.LeaveRoom(roomID, connID)
	if err != nil {
		return err
	}

	if closed {
		for _, id := range before.PlayerIDs() {
			if id == connID {
				continue
			}
			h.stage(id, Event{Type: EventPlayerLeft, PlayerID: connID})
			h.stage(id, Event{Type: EventRoomClosed, RoomID: roomID})
			delete(h.memberOf, id)
		}
		return nil
	}

	for _, id := range r.PlayerIDs() {
		h.stage(id, Event{Type: EventPlayerLeft, PlayerID: connID})
	}
	h.stageState(r)
	return nil
}

type staged struct {
	connID string
	msg    any
}

func (h *Hub) stage(connID string, msg any) {
	h.pending = append(h.pending, staged{connID: connID, msg: msg})
}

func (h *Hub) stageState(r *room.Room) {
	ev := stateEvent(r)
	for _, id := range r.PlayerIDs() {
		h.stage(id, ev)
	}
}

func stateEvent(r *room.Room) Event {
	snap := room.Serialize(r)
	return Event{Type: EventRoomState, State: &snap}
}

func (h *Hub) flush() {
	for _, s := range h.pending {
		h.sendTo(s.connID, s.msg)
	}
	h.pending = h.pending[:0]
}

// sendTo encodes msg and queues it without blocking. A connection whose
// queue is full is marked slow and dropped once the current command is done.
func (h *Hub) sendTo(connID string, msg any) {
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).WithField("conn", connID).Error("Failed to encode message")
		return
	}
	select {
	case c.out <- data:
	default:
		h.logger.WithField("conn", connID).Warn("Outbound queue full, dropping connection")
		h.slow = append(h.slow, connID)
	}
}

func (h *Hub) dropSlow() {
	for len(h.slow) > 0 {
		id := h.slow[0]
		h.slow = h.slow[1:]
		h.disconnect(id)
		h.flush()
	}
}

func errorMessage(command string, err error) string {
	switch {
	case errors.Is(err, errNotInRoom):
		return "Not in a room"
	case errors.Is(err, errNameRequired):
		return "Player name is required"
	case errors.Is(err, errUnknownType):
		return "Unknown command: " + command
	case errors.Is(err, room.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, room.ErrPlayerNotFound):
		return "Player not in room"
	case errors.Is(err, room.ErrLaneTaken):
		return "Lane already taken"
	case errors.Is(err, room.ErrLaneDisabled):
		return "Lane is disabled"
	case errors.Is(err, room.ErrRerollBankEmpty):
		return "No rerolls left"
	case errors.Is(err, champion.ErrUnknownLane):
		return "Invalid lane"
	default:
		return "Failed to " + command
	}
}
