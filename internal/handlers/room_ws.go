// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/THoguet/random-lol/internal/gateway"
	"github.com/THoguet/random-lol/internal/middleware"
)

const (
	outboundBuffer = 32
	pingInterval   = 30 * time.Second
	pingTimeout    = 15 * time.Second
	writeTimeout   = 5 * time.Second
)

// RoomWSHandler upgrades the request and bridges the socket to the hub.
// Each connection gets a fresh id; the hub treats the end of the socket,
// whatever the cause, as leaving the room.
func RoomWSHandler(logger *logrus.Logger, hub *gateway.Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{gateway.Subprotocol},
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if r.Header.Get("Sec-WebSocket-Protocol") != "" && c.Subprotocol() != gateway.Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the draft subprotocol")
			return
		}

		connID := uuid.NewString()
		conn := gateway.NewConn(connID, outboundBuffer)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if err := hub.Register(ctx, conn); err != nil {
			c.Close(HubUnavailableError, "server is shutting down")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path, connID)

		// Unregister must run even when the request context is already gone.
		defer func() {
			if err := hub.Unregister(context.Background(), connID); err != nil && !errors.Is(err, gateway.ErrHubStopped) {
				logger.WithError(err).WithField("conn", connID).Warn("Unregister failed")
			}
		}()

		go writePump(ctx, cancel, c, conn, hub.Done(), logger)
		err = readPump(ctx, c, hub, connID, logger)
		cancel()
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, connID, err)
	}
}

// readPump decodes commands and hands them to the hub until the socket or
// ctx ends. Acks travel back through the connection's outbound queue.
func readPump(ctx context.Context, c *websocket.Conn, hub *gateway.Hub, connID string, logger *logrus.Logger) error {
	log := logger.WithField("conn", connID)
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			log.Warnf("Ignoring non-text message type %d", typ)
			continue
		}

		var cmd gateway.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			log.Warnf("Invalid json: %v", err)
			writeDirect(ctx, c, gateway.Event{Type: gateway.EventError, Message: "Invalid JSON format"})
			continue
		}

		if _, err := hub.Dispatch(ctx, connID, cmd); err != nil {
			if errors.Is(err, gateway.ErrHubStopped) {
				c.Close(HubUnavailableError, "server is shutting down")
			}
			return err
		}
	}
}

// writePump drains the outbound queue and keeps the socket alive with
// pings. A closed queue means the hub let go of the connection, either
// because it stopped or because the client fell behind.
func writePump(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, conn *gateway.Conn, hubDone <-chan struct{}, logger *logrus.Logger) {
	defer cancel()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	log := logger.WithField("conn", conn.ID)

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-conn.Out():
			if !ok {
				select {
				case <-hubDone:
					c.Close(HubUnavailableError, "server is shutting down")
				default:
					if ctx.Err() == nil {
						c.Close(SlowConsumerError, "connection too slow")
					}
				}
				return
			}
			writeCtx, writeCancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(writeCtx, websocket.MessageText, data)
			writeCancel()
			if err != nil {
				log.Warnf("Failed to write to websocket: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			pingCancel()
			if err != nil {
				log.Warnf("Failed to send ping: %v. Assuming disconnect.", err)
				return
			}
		}
	}
}

// writeDirect answers a frame that never reached the hub.
func writeDirect(ctx context.Context, c *websocket.Conn, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = c.Write(writeCtx, websocket.MessageText, data)
}
