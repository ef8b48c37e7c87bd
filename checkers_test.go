/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Seednode/checkers/archive"
	"github.com/Seednode/checkers/engine"
	"github.com/Seednode/checkers/room"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const testCode = "ABCD1234"

type testServer struct {
	*httptest.Server
	gm       *GameManager
	recorder archive.Recorder
}

// newTestServer starts the full router. Each opt runs before the server
// starts serving.
func newTestServer(t *testing.T, opts ...func(*Config, *GameManager)) *testServer {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	recorder := archive.NewRedisRecorder(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	cfg := validConfig()
	logger := zap.NewNop()

	errs := make(chan error, 64)
	go drainErrors(logger, errs)

	gm := newGameManager(0, logger, recorder)
	for _, opt := range opts {
		opt(cfg, gm)
	}
	srv := httptest.NewServer(newRouter(cfg, logger, gm, recorder, errs))

	t.Cleanup(srv.Close)
	t.Cleanup(gm.Close)

	return &testServer{Server: srv, gm: gm, recorder: recorder}
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (ts *testServer) dial(t *testing.T) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(msg map[string]any) {
	c.t.Helper()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// next returns the type and raw body of the next message.
func (c *wsClient) next() (string, json.RawMessage) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		c.t.Fatalf("decode: %v", err)
	}
	return head.Type, data
}

// expect skips messages until one of type typ arrives and decodes it into out.
func (c *wsClient) expect(typ string, out any) {
	c.t.Helper()
	for range 50 {
		got, data := c.next()
		if got != typ {
			continue
		}
		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				c.t.Fatalf("decode %s: %v", typ, err)
			}
		}
		return
	}
	c.t.Fatalf("no %s message received", typ)
}

func cellJSON(r, c int) map[string]int { return map[string]int{"row": r, "col": c} }

// startGame seats red and black clients in testCode and starts a game.
func startGame(t *testing.T, ts *testServer) (red, black *wsClient) {
	t.Helper()
	red, black = ts.dial(t), ts.dial(t)

	red.send(map[string]any{"type": "joinRoom", "room": testCode})
	var info room.SessionInfoMessage
	red.expect(room.TypeSessionInfo, &info)
	if info.Role != room.Player1 {
		t.Fatalf("expected first joiner to be player1, got %v", info.Role)
	}

	black.send(map[string]any{"type": "joinRoom", "room": strings.ToLower(testCode)})
	black.expect(room.TypeSessionInfo, &info)
	if info.Role != room.Player2 || info.Room != testCode {
		t.Fatalf("expected second joiner to be player2 in %s, got %+v", testCode, info)
	}

	red.send(map[string]any{"type": "pickColor", "room": testCode, "color": "red"})
	red.expect(room.TypeColorPicked, nil)
	black.send(map[string]any{"type": "pickColor", "room": testCode, "color": "black"})
	black.expect(room.TypeBothPicked, nil)

	red.send(map[string]any{"type": "setReady", "room": testCode})
	black.expect(room.TypeOpponentRdy, nil)
	black.send(map[string]any{"type": "setReady", "room": testCode, "color": "black"})

	for _, c := range []*wsClient{red, black} {
		var started room.GameStartedMessage
		c.expect(room.TypeGameStarted, &started)
		if started.FirstTurn != engine.Black {
			t.Fatalf("expected black to move first, got %s", started.FirstTurn)
		}
		if started.Board.Count(engine.Red) != 12 || started.Board.Count(engine.Black) != 12 {
			t.Fatalf("expected a full opening board")
		}
	}
	return red, black
}

func TestGameOverWebsocket(t *testing.T) {
	ts := newTestServer(t)
	red, black := startGame(t, ts)

	black.send(map[string]any{
		"type":  "submitMove",
		"room":  testCode,
		"from":  cellJSON(2, 1),
		"to":    cellJSON(3, 2),
		"index": 0,
	})
	for _, c := range []*wsClient{red, black} {
		var synced room.BoardSyncedMessage
		c.expect(room.TypeBoardSynced, &synced)
		if synced.CurrentTurn != engine.Red || synced.MoveIndex != 1 || len(synced.History) != 1 {
			t.Fatalf("unexpected sync %+v", synced)
		}
		if synced.Board.At(engine.Cell{Row: 3, Col: 2}).Color != engine.Black {
			t.Fatalf("expected the moved piece on (3,2)")
		}
	}

	// Out of turn: only the sender hears about it.
	black.send(map[string]any{
		"type": "submitMove",
		"room": testCode,
		"move": map[string]any{"from": cellJSON(3, 2), "to": cellJSON(4, 3), "isJump": false},
	})
	var rejected room.MoveRejectedMessage
	black.expect(room.TypeMoveRejected, &rejected)
	if rejected.Code != "outOfTurn" || rejected.MoveIndex != 1 {
		t.Fatalf("unexpected rejection %+v", rejected)
	}

	red.send(map[string]any{"type": "sendChat", "room": testCode, "text": "good luck"})
	typ, data := red.next()
	if typ != room.TypeChatMessage {
		t.Fatalf("expected the rejected move to produce nothing for red, got %s: %s", typ, data)
	}

	// Red disconnects mid-game and forfeits.
	_ = red.conn.Close()

	black.expect(room.TypeOpponentLeft, nil)
	var over room.GameOverMessage
	black.expect(room.TypeGameOver, &over)
	if over.Winner != engine.Black || !over.Forfeit || over.Points != 12 {
		t.Fatalf("unexpected game over %+v", over)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(ts.URL + "/results")
		if err != nil {
			t.Fatalf("GET /results: %v", err)
		}
		var results []archive.Result
		err = json.NewDecoder(resp.Body).Decode(&results)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode results: %v", err)
		}
		if len(results) == 1 {
			if results[0].Room != testCode || results[0].Winner != "black" || !results[0].Forfeit {
				t.Fatalf("unexpected archived result %+v", results[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("result was never archived")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestDuplicateColorWebsocket(t *testing.T) {
	ts := newTestServer(t)
	a, b := ts.dial(t), ts.dial(t)

	a.send(map[string]any{"type": "createRoom", "room": testCode})
	a.expect(room.TypeSessionInfo, nil)
	b.send(map[string]any{"type": "joinRoom", "room": testCode})
	b.expect(room.TypeSessionInfo, nil)

	a.send(map[string]any{"type": "pickColor", "color": "red"})
	b.expect(room.TypeColorPicked, nil)
	b.send(map[string]any{"type": "pickColor", "color": "red"})

	var status room.StatusMessage
	b.expect(room.TypeStatus, &status)
	if status.Code != "duplicateColor" {
		t.Fatalf("expected duplicateColor, got %+v", status)
	}

	b.send(map[string]any{"type": "setReady"})
	b.expect(room.TypeStatus, &status)
	if status.Code != "noColor" {
		t.Fatalf("expected noColor, got %+v", status)
	}
}

func TestCreateRoomWithoutCode(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)

	c.send(map[string]any{"type": "createRoom"})
	var info room.SessionInfoMessage
	c.expect(room.TypeSessionInfo, &info)
	if err := room.ValidateCode(info.Room); err != nil {
		t.Fatalf("expected a generated room code, got %q: %v", info.Room, err)
	}
	if info.SessionID == "" {
		t.Fatalf("expected a session id")
	}
}

func TestRequestsOutsideRoom(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)

	var status room.StatusMessage

	c.send(map[string]any{"type": "pickColor", "color": "red"})
	c.expect(room.TypeStatus, &status)
	if status.Code != "roomNotFound" {
		t.Fatalf("expected roomNotFound, got %+v", status)
	}

	c.send(map[string]any{"type": "joinRoom", "room": "bad"})
	c.expect(room.TypeStatus, &status)
	if status.Code != "invalidRoomCode" {
		t.Fatalf("expected invalidRoomCode, got %+v", status)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	c.expect(room.TypeStatus, &status)

	c.send(map[string]any{"type": "joinRoom", "room": testCode})
	c.expect(room.TypeSessionInfo, nil)
}

func TestRoomClosesWhenEmpty(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)

	c.send(map[string]any{"type": "joinRoom", "room": testCode})
	c.expect(room.TypeSessionInfo, nil)
	if ts.gm.Rooms() != 1 {
		t.Fatalf("expected one live room")
	}

	c.send(map[string]any{"type": "leaveRoom", "room": testCode})

	deadline := time.Now().Add(3 * time.Second)
	for ts.gm.Rooms() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("room was not closed after the last member left")
		}
		time.Sleep(10 * time.Millisecond)
	}

	c.send(map[string]any{"type": "joinRoom", "room": testCode})
	c.expect(room.TypeSessionInfo, nil)
}

func TestReapIdleRooms(t *testing.T) {
	ts := newTestServer(t)

	hub := ts.gm.getHub(testCode)
	ts.gm.reap(time.Now().Add(-time.Hour))
	if ts.gm.Rooms() != 1 {
		t.Fatalf("a fresh room must not be reaped")
	}

	ts.gm.reap(time.Now().Add(time.Hour))
	if ts.gm.Rooms() != 0 {
		t.Fatalf("expected idle room to be reaped")
	}

	select {
	case <-hub.done:
	case <-time.After(3 * time.Second):
		t.Fatalf("reaped hub did not stop")
	}
}

func TestReapFollowsRoomActivity(t *testing.T) {
	var clock atomic.Int64
	clock.Store(time.Now().Add(-2 * time.Hour).UnixNano())

	ts := newTestServer(t, func(_ *Config, gm *GameManager) {
		gm.now = func() time.Time { return time.Unix(0, clock.Load()) }
	})

	const staleCode = "STALE001"
	stale := ts.gm.getHub(staleCode)

	clock.Store(time.Now().UnixNano())

	c := ts.dial(t)
	c.send(map[string]any{"type": "joinRoom", "room": testCode})
	c.expect(room.TypeSessionInfo, nil)

	ts.gm.reap(time.Now().Add(-time.Hour))

	if _, ok := ts.gm.lookup(staleCode); ok {
		t.Fatalf("expected a room idle since creation to be reaped")
	}
	if _, ok := ts.gm.lookup(testCode); !ok {
		t.Fatalf("expected a room with a recent join to survive")
	}

	select {
	case <-stale.done:
	case <-time.After(3 * time.Second):
		t.Fatalf("reaped hub did not stop")
	}
}

var assetRef = regexp.MustCompile(`(?:href|src)="([^"]+)"`)

func TestPrefixedPagesLinkPrefixedAssets(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config, _ *GameManager) {
		cfg.prefix = "/games"
	})

	for _, page := range []string{"/games/", "/games/checkers/" + testCode, "/games/checkers/nope"} {
		resp, err := http.Get(ts.URL + page)
		if err != nil {
			t.Fatalf("GET %s: %v", page, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("read %s: %v", page, err)
		}

		refs := assetRef.FindAllStringSubmatch(string(body), -1)
		if len(refs) == 0 {
			t.Fatalf("%s links nothing", page)
		}
		for _, ref := range refs {
			link := ref[1]
			if !strings.HasPrefix(link, "/games/") {
				t.Fatalf("%s links %q outside the prefix", page, link)
			}
			asset, err := http.Get(ts.URL + link)
			if err != nil {
				t.Fatalf("GET %s: %v", link, err)
			}
			asset.Body.Close()
			if asset.StatusCode != http.StatusOK {
				t.Fatalf("%s links %q, which returned %d", page, link, asset.StatusCode)
			}
		}
	}
}

func noRedirect(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

func TestHTTPRoutes(t *testing.T) {
	ts := newTestServer(t)
	client := &http.Client{CheckRedirect: noRedirect}

	resp, err := client.Get(ts.URL + "/checkers")
	if err != nil {
		t.Fatalf("GET /checkers: %v", err)
	}
	resp.Body.Close()
	loc := resp.Header.Get("Location")
	if resp.StatusCode != http.StatusTemporaryRedirect || !strings.HasPrefix(loc, "/checkers/") {
		t.Fatalf("expected redirect to a new room, got %d %q", resp.StatusCode, loc)
	}
	if err := room.ValidateCode(strings.TrimPrefix(loc, "/checkers/")); err != nil {
		t.Fatalf("redirected to an invalid code: %v", err)
	}

	tests := []struct {
		path   string
		status int
		ctype  string
	}{
		{"/", http.StatusOK, "text/html; charset=utf-8"},
		{"/checkers/" + testCode, http.StatusOK, "text/html; charset=utf-8"},
		{"/checkers/nope", http.StatusBadRequest, "text/html; charset=utf-8"},
		{"/checkers/" + testCode + "/qr", http.StatusOK, "image/png"},
		{"/checkers/" + testCode + "/board.png", http.StatusNotFound, ""},
		{"/assets/checkers/app.js", http.StatusOK, "application/javascript; charset=utf-8"},
		{"/assets/checkers/app.css", http.StatusOK, "text/css; charset=utf-8"},
		{"/favicon.png", http.StatusOK, "image/png"},
		{"/healthz", http.StatusOK, "text/plain; charset=utf-8"},
		{"/version", http.StatusOK, "text/plain; charset=utf-8"},
		{"/robots.txt", http.StatusOK, "text/plain; charset=utf-8"},
		{"/results", http.StatusOK, "application/json; charset=utf-8"},
	}

	for _, tt := range tests {
		resp, err := client.Get(ts.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.status {
			t.Fatalf("GET %s: status %d, want %d", tt.path, resp.StatusCode, tt.status)
		}
		if tt.ctype != "" && resp.Header.Get("Content-Type") != tt.ctype {
			t.Fatalf("GET %s: content type %q, want %q", tt.path, resp.Header.Get("Content-Type"), tt.ctype)
		}
	}

	resp, err = client.Get(ts.URL + "/checkers/abcd1234")
	if err != nil {
		t.Fatalf("GET lowercase code: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusPermanentRedirect || resp.Header.Get("Location") != "/checkers/"+testCode {
		t.Fatalf("expected canonical redirect, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestBoardImageForLiveRoom(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	c.send(map[string]any{"type": "joinRoom", "room": testCode})
	c.expect(room.TypeSessionInfo, nil)

	resp, err := http.Get(ts.URL + "/checkers/" + testCode + "/board.png?size=200")
	if err != nil {
		t.Fatalf("GET board.png: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 200 {
		t.Fatalf("expected 200px image, got %d", img.Bounds().Dx())
	}

	resp2, err := http.Get(ts.URL + "/checkers/" + testCode + "/board.png?size=huge")
	if err != nil {
		t.Fatalf("GET board.png: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for a bad size, got %d", resp2.StatusCode)
	}
}
