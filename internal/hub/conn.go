package hub

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to read the next pong message from the endpoint.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Conn is an endpoint backed by a websocket connection.
type Conn struct {
	id    string
	ws    *websocket.Conn
	codec Codec
	hub   *Hub

	// Channel for outbound frames.
	dataQ chan []byte

	// Closed when the listener exits.
	done chan struct{}

	// Rate limiting.
	numMessages int
	lastMessage time.Time
}

// newConn returns a new instance of Conn.
func newConn(ws *websocket.Conn, c Codec, h *Hub) *Conn {
	size := h.cfg.MaxMessageQueue
	if size < 1 {
		size = 100
	}
	return &Conn{
		id:    uuid.NewString(),
		ws:    ws,
		codec: c,
		hub:   h,
		dataQ: make(chan []byte, size),
		done:  make(chan struct{}),
	}
}

// ID returns the connection's endpoint handle.
func (c *Conn) ID() string {
	return c.id
}

// Send queues an event to be written to the connection. The event is
// dropped if the queue is full or the connection has closed.
func (c *Conn) Send(e Event) {
	b, err := c.codec.Encode(e)
	if err != nil {
		c.hub.log.Errorf("error encoding %s for %s: %v", e.Type, c.id, err)
		return
	}

	select {
	case <-c.done:
	case c.dataQ <- b:
	default:
		c.hub.log.Warnf("dropping %s for %s: queue full", e.Type, c.id)
	}
}

// RunListener is a blocking function that reads incoming frames from the
// connection until it's dropped or there's an error. This should be
// invoked as a goroutine.
func (c *Conn) RunListener() {
	if n := c.hub.cfg.MaxMessageLen; n > 0 {
		c.ws.SetReadLimit(int64(n))
	}
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, m, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debugf("read error on %s: %v", c.id, err)
			}
			break
		}
		if !c.processMessage(m) {
			break
		}
	}

	// WS connection is closed.
	close(c.done)
	c.ws.Close()

	if p, ok := c.hub.Disconnect(c); ok {
		c.hub.MarkSeen(p.UID)
	}
}

// RunWriter is a blocking function that writes frames in the connection's
// queue to the websocket. This should be invoked as a goroutine.
func (c *Conn) RunWriter() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case b := <-c.dataQ:
			if err := c.writeWSData(c.codec.FrameType(), b); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.writeWSData(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeWSData writes the given payload to the WS connection.
func (c *Conn) writeWSData(msgType int, payload []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WSTimeout))
	return c.ws.WriteMessage(msgType, payload)
}

// writeWSControl writes a close frame with the given reason.
func (c *Conn) writeWSControl(reason string) error {
	return c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(c.hub.cfg.WSTimeout))
}

// rateLimited updates the message counters and reports whether the
// connection has exceeded its allowance for the current interval.
func (c *Conn) rateLimited() bool {
	cfg := c.hub.cfg
	if cfg.RateLimitMessages < 1 {
		return false
	}

	now := time.Now()
	if now.Sub(c.lastMessage) > cfg.RateLimitInterval {
		c.numMessages = 0
		c.lastMessage = now
	}
	c.numMessages++
	return c.numMessages > cfg.RateLimitMessages
}

// processMessage processes an incoming frame. It returns false if the
// connection should be closed.
func (c *Conn) processMessage(b []byte) bool {
	if c.rateLimited() {
		c.hub.log.Infof("%s rate limited", c.id)
		c.writeWSControl(TypeRateLimited)
		return false
	}

	m, err := c.codec.DecodeEnvelope(b)
	if err != nil {
		c.respond("", newError(ErrValidation, "invalid message"))
		return true
	}

	c.respond(m.Ack, c.dispatch(m))
	return true
}

// dispatch hands a decoded frame to the hub.
func (c *Conn) dispatch(m Envelope) error {
	switch m.Type {
	case TypeRegisterPresence:
		var p Profile
		if err := c.decode(m.Data, &p); err != nil {
			return err
		}
		return c.hub.Register(c, p)

	case TypeJoinRoom:
		var req reqJoin
		if err := c.decode(m.Data, &req); err != nil {
			return err
		}
		_, err := c.hub.Join(c, req.RoomID, req.User)
		return err

	case TypeLeaveRoom:
		return c.hub.Leave(c)

	case TypeSendFile:
		var req reqFile
		if err := c.decode(m.Data, &req); err != nil {
			return err
		}
		return c.hub.RelayFile(c, req.RoomID, req.File)

	case TypeSendRequest:
		var req reqRequest
		if err := c.decode(m.Data, &req); err != nil {
			return err
		}
		return c.hub.SendRequest(req.To, req.From, req.RoomID)

	case TypeAcceptRequest:
		var req reqRequest
		if err := c.decode(m.Data, &req); err != nil {
			return err
		}
		return c.hub.AcceptRequest(req.To, req.From, req.RoomID, req.SenderProfile, req.ReceiverProfile)

	case TypeDeclineRequest:
		var req reqRequest
		if err := c.decode(m.Data, &req); err != nil {
			return err
		}
		return c.hub.DeclineRequest(req.To, req.From)
	}

	return newError(ErrValidation, "unknown message type")
}

func (c *Conn) decode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return newError(ErrValidation, "missing message data")
	}
	if err := c.codec.Decode(data, v); err != nil {
		return newError(ErrValidation, "invalid message data")
	}
	return nil
}

// respond reports the outcome of a request to the connection. Requests
// that carry an ack token always get an ack. Others only hear of errors.
func (c *Conn) respond(ack string, err error) {
	if ack != "" {
		a := msgAck{ID: ack, OK: err == nil}
		if err != nil {
			a.Reason = err.Error()
		}
		c.Send(newEvent(TypeAck, a))
		return
	}
	if err == nil {
		return
	}

	e := &Error{Kind: KindOf(err), Message: err.Error()}
	if e.Kind == "" {
		e.Kind = ErrValidation
	}
	c.Send(newEvent(TypeError, e))
}
