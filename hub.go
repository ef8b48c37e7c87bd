/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Seednode/checkers/archive"
	"github.com/Seednode/checkers/engine"
	"github.com/Seednode/checkers/room"
	"go.uber.org/zap"
)

const archiveTimeout = 5 * time.Second

type inbound struct {
	client *Client
	msg    ClientMessage
}

// Hub owns one room. Every inbound message for the room is handled to
// completion on the run goroutine, so the room itself needs no lock.
type Hub struct {
	code    string
	room    *room.Room
	clients map[room.SessionID]*Client

	register  chan *Client
	unreg     chan *Client
	inbox     chan inbound
	snapshots chan chan room.BoardSyncedMessage

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	lastActive atomic.Int64

	gm       *GameManager
	logger   *zap.Logger
	recorder archive.Recorder
}

func newHub(code string, gm *GameManager) *Hub {
	h := &Hub{
		code:      code,
		room:      room.NewWithClock(code, gm.now),
		clients:   make(map[room.SessionID]*Client),
		register:  make(chan *Client),
		unreg:     make(chan *Client),
		inbox:     make(chan inbound, 16),
		snapshots: make(chan chan room.BoardSyncedMessage),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		gm:        gm,
		logger:    gm.logger.With(zap.String("room", code)),
		recorder:  gm.recorder,
	}
	h.touch()
	return h
}

// touch publishes the room's last activity for the reaper. Only the run
// goroutine calls it once the hub is started.
func (h *Hub) touch() {
	h.lastActive.Store(h.room.LastActive().UnixNano())
}

func (h *Hub) idleSince() time.Time {
	return time.Unix(0, h.lastActive.Load())
}

// shutdown asks the run loop to disconnect everyone and exit.
func (h *Hub) shutdown() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.clients[c.session] = c
			envs, err := h.room.Join(c.session)
			h.touch()
			h.deliver(envs)
			if err != nil {
				h.logger.Info("ROOMS: Join refused", zap.String("session", string(c.session)), zap.Error(err))
				continue
			}
			h.logger.Info("ROOMS: Session joined",
				zap.String("session", string(c.session)),
				zap.Int("members", h.room.Size()),
			)

		case c := <-h.unreg:
			if _, ok := h.clients[c.session]; !ok {
				continue
			}
			delete(h.clients, c.session)
			envs := h.room.Leave(c.session)
			h.touch()
			h.deliver(envs)
			h.archive()
			h.logger.Info("ROOMS: Session left",
				zap.String("session", string(c.session)),
				zap.Int("members", h.room.Size()),
			)
			if h.room.Empty() {
				h.gm.release(h)
				h.logger.Info("ROOMS: Closed empty room")
				return
			}

		case in := <-h.inbox:
			h.handle(in)
			h.touch()

		case reply := <-h.snapshots:
			reply <- h.room.Snapshot()

		case <-h.stop:
			for sid, c := range h.clients {
				c.close()
				delete(h.clients, sid)
			}
			h.logger.Info("ROOMS: Reaped idle room")
			return
		}
	}
}

// handle applies one client request to the room. A panic is contained to
// the offending message.
func (h *Hub) handle(in inbound) {
	sid := in.client.session
	log := h.logger.With(zap.String("session", string(sid)), zap.String("type", in.msg.Type))

	defer func() {
		if r := recover(); r != nil {
			log.Error("ERROR: Recovered from panic while handling message", zap.Any("panic", r))
		}
	}()

	if _, ok := h.clients[sid]; !ok {
		in.client.enqueue(room.StatusFor(room.ErrRoomNotFound))
		return
	}

	envs, err := h.dispatch(sid, in.msg)
	h.deliver(envs)
	h.archive()

	switch {
	case err == nil:
		log.Debug("MOVES: Accepted")
	case in.msg.Type == msgSubmitMove:
		log.Info("MOVES: Rejected move", zap.Error(err))
	default:
		log.Info("ROOMS: Request refused", zap.Error(err))
	}
}

func (h *Hub) dispatch(sid room.SessionID, msg ClientMessage) ([]room.Envelope, error) {
	switch msg.Type {
	case msgPickColor:
		color, err := engine.ParseColor(msg.Color)
		if err != nil {
			return []room.Envelope{{To: sid, Message: room.StatusFor(err)}}, err
		}
		return h.room.PickColor(sid, color)

	case msgSetReady:
		var out []room.Envelope
		if msg.Color != "" {
			color, err := engine.ParseColor(msg.Color)
			if err != nil {
				return []room.Envelope{{To: sid, Message: room.StatusFor(err)}}, err
			}
			if m, _ := h.room.Member(sid); m.Color != color {
				envs, err := h.room.PickColor(sid, color)
				if err != nil {
					return envs, err
				}
				out = envs
			}
		}
		envs, err := h.room.SetReady(sid)
		return append(out, envs...), err

	case msgSubmitMove:
		req, err := msg.moveRequest()
		if err != nil {
			return []room.Envelope{{To: sid, Message: room.StatusFor(err)}}, err
		}
		return h.room.SubmitMove(sid, req)

	case msgRequestReset:
		return h.room.RequestReset(sid)

	case msgSendChat:
		return h.room.Chat(sid, msg.Text)

	default:
		err := fmt.Errorf("unknown message type %q", msg.Type)
		return []room.Envelope{{To: sid, Message: room.StatusFor(err)}}, err
	}
}

func (h *Hub) deliver(envs []room.Envelope) {
	for _, env := range envs {
		for sid, c := range h.clients {
			if env.Delivers(sid) {
				c.enqueue(env.Message)
			}
		}
	}
}

// archive hands a finished game to the recorder off the run goroutine.
func (h *Hub) archive() {
	o := h.room.TakeOutcome()
	if o == nil {
		return
	}

	res := archive.Result{
		Room:      o.Room,
		Winner:    o.Winner.String(),
		Reason:    o.Reason,
		Points:    o.Points,
		Forfeit:   o.Forfeit,
		Moves:     o.Moves,
		History:   make([]string, 0, len(o.History)),
		StartedAt: o.StartedAt,
		EndedAt:   o.EndedAt,
	}
	for _, e := range o.History {
		res.History = append(res.History, e.Text)
	}

	h.logger.Info("ROOMS: Game over",
		zap.String("winner", res.Winner),
		zap.String("reason", res.Reason),
		zap.Int("points", res.Points),
		zap.Bool("forfeit", res.Forfeit),
	)

	h.gm.wg.Add(1)
	go func() {
		defer h.gm.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		if err := h.recorder.Record(ctx, res); err != nil {
			h.logger.Error("ERROR: Failed to archive result", zap.Error(err))
		}
	}()
}

var errHubClosed = errors.New("room closed")

// Snapshot returns the room's authoritative board state.
func (h *Hub) Snapshot(ctx context.Context) (room.BoardSyncedMessage, error) {
	reply := make(chan room.BoardSyncedMessage, 1)

	select {
	case h.snapshots <- reply:
	case <-h.done:
		return room.BoardSyncedMessage{}, errHubClosed
	case <-ctx.Done():
		return room.BoardSyncedMessage{}, ctx.Err()
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return room.BoardSyncedMessage{}, ctx.Err()
	}
}

// send queues a request for the run loop, dropping it if the hub has exited.
func (h *Hub) send(in inbound) bool {
	select {
	case h.inbox <- in:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters c, returning once the hub has taken it or has exited.
func (h *Hub) leave(c *Client) {
	select {
	case h.unreg <- c:
	case <-h.done:
	}
}
