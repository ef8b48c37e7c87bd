/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Seednode/checkers/engine"
	"github.com/Seednode/checkers/room"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Inbound message types.
const (
	msgCreateRoom   = "createRoom"
	msgJoinRoom     = "joinRoom"
	msgPickColor    = "pickColor"
	msgSetReady     = "setReady"
	msgSubmitMove   = "submitMove"
	msgRequestReset = "requestReset"
	msgLeaveRoom    = "leaveRoom"
	msgSendChat     = "sendChat"
)

const (
	sendBuffer   = 32
	maxReadBytes = 8 << 10
	writeWait    = 10 * time.Second
)

// ClientMessage is any request a browser sends over the socket.
type ClientMessage struct {
	Type  string       `json:"type"`
	Room  string       `json:"room,omitempty"`
	Color string       `json:"color,omitempty"`
	From  *engine.Cell `json:"from,omitempty"`
	To    *engine.Cell `json:"to,omitempty"`
	Move  *engine.Move `json:"move,omitempty"`
	Index *int         `json:"index,omitempty"`
	Text  string       `json:"text,omitempty"`
}

var errMissingCells = errors.New("move needs from and to")

// moveRequest accepts either explicit from/to cells or a full move
// descriptor. Only the cells are trusted.
func (m ClientMessage) moveRequest() (room.MoveRequest, error) {
	req := room.MoveRequest{Index: m.Index, Descriptor: m.Move}
	switch {
	case m.From != nil && m.To != nil:
		req.From, req.To = *m.From, *m.To
	case m.Move != nil:
		req.From, req.To = m.Move.From, m.Move.To
	default:
		return req, errMissingCells
	}
	return req, nil
}

type Client struct {
	conn    *websocket.Conn
	send    chan any
	session room.SessionID

	done chan struct{}
	once sync.Once

	// hub is only touched by readPump.
	hub *Hub

	logger *zap.Logger
}

func newClient(conn *websocket.Conn, logger *zap.Logger) *Client {
	sid := room.SessionID(uuid.NewString())
	return &Client{
		conn:    conn,
		send:    make(chan any, sendBuffer),
		session: sid,
		done:    make(chan struct{}),
		logger:  logger.With(zap.String("session", string(sid))),
	}
}

// close disconnects the client. It is safe to call more than once.
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// enqueue never blocks. A client that cannot keep up is disconnected.
func (c *Client) enqueue(msg any) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		c.logger.Info("SERVE: Dropping slow client")
		c.close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			gm.logger.Info("SERVE: Websocket upgrade failed", zap.String("ip", realIP(r)), zap.Error(err))
			return
		}

		client := newClient(conn, gm.logger)
		client.logger.Debug("SERVE: Websocket connected", zap.String("ip", realIP(r)))

		go client.writePump()
		client.readPump(gm)
	}
}

func (c *Client) readPump(gm *GameManager) {
	defer func() {
		if c.hub != nil {
			c.hub.leave(c)
		}
		c.close()
		c.logger.Debug("SERVE: Websocket disconnected")
	}()

	c.conn.SetReadLimit(maxReadBytes)

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if isDecodeError(err) {
				c.enqueue(room.StatusFor(err))
				continue
			}
			return
		}

		switch msg.Type {
		case msgCreateRoom, msgJoinRoom:
			c.joinRoom(gm, msg)

		case msgLeaveRoom:
			if c.hub != nil {
				c.hub.leave(c)
				c.hub = nil
			}

		default:
			if c.hub == nil || (msg.Room != "" && room.NormalizeCode(msg.Room) != c.hub.code) {
				c.enqueue(room.StatusFor(room.ErrRoomNotFound))
				continue
			}
			if !c.hub.send(inbound{client: c, msg: msg}) {
				c.hub = nil
				c.enqueue(room.StatusFor(room.ErrRoomNotFound))
			}
		}
	}
}

// joinRoom moves the client into the room named by msg, creating it when
// needed. createRoom without a code gets a fresh one.
func (c *Client) joinRoom(gm *GameManager, msg ClientMessage) {
	code := room.NormalizeCode(msg.Room)
	if code == "" && msg.Type == msgCreateRoom {
		code = gm.NewCode()
	}
	if err := room.ValidateCode(code); err != nil {
		c.enqueue(room.StatusFor(err))
		return
	}

	if c.hub != nil && c.hub.code != code {
		c.hub.leave(c)
		c.hub = nil
	}

	c.hub = gm.join(code, c)
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func (c *Client) writePump() {
	defer c.close()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
