// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the room socket.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // Client offered subprotocols but not "draft".
	HubUnavailableError websocket.StatusCode = 3001 // The room hub is shutting down.
	SlowConsumerError   websocket.StatusCode = 3002 // Outbound queue overflowed; the hub dropped the connection.
)
