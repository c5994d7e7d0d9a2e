// internal/gateway/protocol.go
package gateway

import (
	"github.com/THoguet/random-lol/internal/room"
)

// Subprotocol is the WebSocket subprotocol spoken on the room socket.
const Subprotocol = "draft"

// Commands sent by clients.
const (
	CmdCreateRoom = "createRoom"
	CmdJoinRoom   = "joinRoom"
	CmdLeaveRoom  = "leaveRoom"
	CmdSelectLane = "selectLane"
	CmdToggleLane = "toggleLane"
	CmdRerollLane = "rerollLane"
	CmdRollAll    = "rollAllAssignments"
)

// Messages sent by the server.
const (
	TypeAck           = "ack"
	EventWelcome      = "welcome"
	EventRoomState    = "roomState"
	EventPlayerJoined = "playerJoined"
	EventPlayerLeft   = "playerLeft"
	EventRoomClosed   = "roomClosed"
	EventError        = "error"
)

// Command is one client request. RequestID is echoed in the ack so the
// client can match replies to calls.
type Command struct {
	Type       string `json:"type"`
	RequestID  string `json:"requestId,omitempty"`
	RoomID     string `json:"roomId,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	Lane       string `json:"lane,omitempty"`
}

// Ack answers a single Command, sent only to the caller.
type Ack struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Command   string `json:"command"`
	Success   bool   `json:"success"`
	RoomID    string `json:"roomId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Event is a server push. Only the field matching Type is set.
type Event struct {
	Type         string         `json:"type"`
	State        *room.Snapshot `json:"state,omitempty"`
	Player       *room.Player   `json:"player,omitempty"`
	PlayerID     string         `json:"playerId,omitempty"`
	RoomID       string         `json:"roomId,omitempty"`
	Message      string         `json:"message,omitempty"`
	ConnectionID string         `json:"connectionId,omitempty"`
}

// Message is the union of Ack and Event, for decoding any server message
// before looking at Type.
type Message struct {
	Type         string         `json:"type"`
	RequestID    string         `json:"requestId,omitempty"`
	Command      string         `json:"command,omitempty"`
	Success      bool           `json:"success,omitempty"`
	RoomID       string         `json:"roomId,omitempty"`
	Error        string         `json:"error,omitempty"`
	State        *room.Snapshot `json:"state,omitempty"`
	Player       *room.Player   `json:"player,omitempty"`
	PlayerID     string         `json:"playerId,omitempty"`
	Message      string         `json:"message,omitempty"`
	ConnectionID string         `json:"connectionId,omitempty"`
}

// Ack extracts the acknowledgement fields.
func (m Message) Ack() Ack {
	return Ack{Type: m.Type, RequestID: m.RequestID, Command: m.Command, Success: m.Success, RoomID: m.RoomID, Error: m.Error}
}
