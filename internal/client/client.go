// internal/client/client.go
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/THoguet/random-lol/internal/champion"
	"github.com/THoguet/random-lol/internal/gateway"
	"github.com/THoguet/random-lol/internal/session"
)

var ErrClosed = errors.New("connection closed")

// CommandError is a refusal reported by the server in a failure ack.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

// Option configures a Client.
type Option func(*Client)

// WithSession binds a session: room snapshots are applied to it and it is
// moved in and out of multiplayer as rooms are entered and left.
func WithSession(s *session.State) Option {
	return func(c *Client) { c.session = s }
}

// WithEventHandler receives every server push that is not an ack. It runs
// on the read loop and must not block.
func WithEventHandler(fn func(gateway.Message)) Option {
	return func(c *Client) { c.onEvent = fn }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client talks to the room socket. Calls block until the matching ack
// arrives; it implements session.RoomDelegate.
type Client struct {
	conn    *websocket.Conn
	logger  *logrus.Logger
	session *session.State
	onEvent func(gateway.Message)

	connID string

	mu      sync.Mutex
	nextReq uint64
	pending map[string]chan gateway.Message
	roomID  string

	done    chan struct{}
	readErr error
}

var _ session.RoomDelegate = (*Client)(nil)

// Dial opens the socket at url and waits for the welcome message.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{gateway.Subprotocol},
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		logger:  logrus.StandardLogger(),
		pending: make(map[string]chan gateway.Message),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	welcome, err := c.read(ctx)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "no welcome")
		return nil, err
	}
	if welcome.Type != gateway.EventWelcome {
		conn.Close(websocket.StatusProtocolError, "expected welcome")
		return nil, fmt.Errorf("unexpected first message %q", welcome.Type)
	}
	c.connID = welcome.ConnectionID

	go c.readLoop()
	return c, nil
}

// ConnectionID is the id the server assigned to this socket. It is also
// the player id inside rooms.
func (c *Client) ConnectionID() string { return c.connID }

// RoomID is the room currently joined, or "".
func (c *Client) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// Done is closed when the socket is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the socket ended. Only meaningful once Done is closed.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.readErr
	default:
		return nil
	}
}

func (c *Client) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	<-c.done
	return err
}

func (c *Client) CreateRoom(ctx context.Context, playerName string) (string, error) {
	ack, err := c.call(ctx, gateway.Command{Type: gateway.CmdCreateRoom, PlayerName: playerName})
	if err != nil {
		return "", err
	}
	c.entered(ack.RoomID)
	return ack.RoomID, nil
}

func (c *Client) JoinRoom(ctx context.Context, roomID, playerName string) error {
	ack, err := c.call(ctx, gateway.Command{Type: gateway.CmdJoinRoom, RoomID: roomID, PlayerName: playerName})
	if err != nil {
		return err
	}
	c.entered(ack.RoomID)
	return nil
}

func (c *Client) LeaveRoom(ctx context.Context) error {
	if _, err := c.call(ctx, gateway.Command{Type: gateway.CmdLeaveRoom}); err != nil {
		return err
	}
	c.left()
	return nil
}

func (c *Client) RollAll(ctx context.Context) error {
	_, err := c.call(ctx, gateway.Command{Type: gateway.CmdRollAll})
	return err
}

func (c *Client) RerollLane(ctx context.Context, lane champion.Lane) error {
	_, err := c.call(ctx, gateway.Command{Type: gateway.CmdRerollLane, Lane: string(lane)})
	return err
}

func (c *Client) ToggleLane(ctx context.Context, lane champion.Lane) error {
	_, err := c.call(ctx, gateway.Command{Type: gateway.CmdToggleLane, Lane: string(lane)})
	return err
}

func (c *Client) SelectLane(ctx context.Context, lane champion.Lane) error {
	_, err := c.call(ctx, gateway.Command{Type: gateway.CmdSelectLane, Lane: string(lane)})
	return err
}

func (c *Client) entered(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
	if c.session != nil {
		c.session.EnterRoom(roomID, c)
	}
}

func (c *Client) left() {
	c.mu.Lock()
	c.roomID = ""
	c.mu.Unlock()
	if c.session != nil {
		c.session.LeaveRoom()
	}
}

// call sends cmd and waits for its ack. A failure ack becomes a
// *CommandError.
func (c *Client) call(ctx context.Context, cmd gateway.Command) (gateway.Ack, error) {
	reply := make(chan gateway.Message, 1)
	c.mu.Lock()
	c.nextReq++
	cmd.RequestID = strconv.FormatUint(c.nextReq, 10)
	c.pending[cmd.RequestID] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, cmd.RequestID)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(cmd)
	if err != nil {
		return gateway.Ack{}, err
	}
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return gateway.Ack{}, fmt.Errorf("send %s: %w", cmd.Type, err)
	}

	select {
	case m := <-reply:
		ack := m.Ack()
		if !ack.Success {
			return ack, &CommandError{Command: cmd.Type, Message: ack.Error}
		}
		return ack, nil
	case <-c.done:
		return gateway.Ack{}, ErrClosed
	case <-ctx.Done():
		return gateway.Ack{}, ctx.Err()
	}
}

func (c *Client) read(ctx context.Context) (gateway.Message, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return gateway.Message{}, err
	}
	var m gateway.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return gateway.Message{}, fmt.Errorf("decode server message: %w", err)
	}
	return m, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			c.readErr = err
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				c.logger.WithError(err).Debug("Room socket closed")
			}
			if c.RoomID() != "" {
				c.left()
			}
			return
		}
		var m gateway.Message
		if err := json.Unmarshal(data, &m); err != nil {
			c.logger.Warnf("Dropping undecodable server message: %v", err)
			continue
		}

		if m.Type == gateway.TypeAck {
			c.mu.Lock()
			reply, ok := c.pending[m.RequestID]
			c.mu.Unlock()
			if ok {
				reply <- m
			} else {
				c.logger.Debugf("Ack for unknown request %q", m.RequestID)
			}
			continue
		}
		c.handleEvent(m)
	}
}

func (c *Client) handleEvent(m gateway.Message) {
	switch m.Type {
	case gateway.EventRoomState:
		if m.State != nil && c.session != nil {
			c.session.ApplySnapshot(*m.State)
		}
	case gateway.EventRoomClosed:
		c.left()
	case gateway.EventError:
		c.logger.Warnf("Server error: %s", m.Message)
	}
	if c.onEvent != nil {
		c.onEvent(m)
	}
}
