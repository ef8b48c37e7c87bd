/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Checkers
//
// Two players meet in a room identified by an 8-character code, pick
// colors, signal ready, and play. The server keeps the only authoritative
// board: every move is re-validated by the rule engine before it is applied
// and broadcast.
//
// Routes:
//   - $prefix/checkers                 → redirect to a new room code
//   - $prefix/checkers/:code           → browser client for that room
//   - $prefix/checkers/:code/qr        → PNG QR code for the room URL
//   - $prefix/checkers/:code/board.png → current board of a live room
//   - $prefix/ws                       → websocket for all rooms
//   - $prefix/results                  → recently finished games as JSON

package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Seednode/checkers/archive"
	"github.com/Seednode/checkers/render"
	"github.com/Seednode/checkers/room"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// GameManager owns the live rooms, keyed by code.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
	now         func() time.Time

	logger   *zap.Logger
	recorder archive.Recorder

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newGameManager(idleTimeout time.Duration, logger *zap.Logger, recorder archive.Recorder) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: idleTimeout,
		now:         time.Now,
		logger:      logger,
		recorder:    recorder,
		quit:        make(chan struct{}),
	}
	if idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(code string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[code]; ok {
		return hub
	}

	hub := newHub(code, gm)
	gm.hubs[code] = hub
	go hub.run()

	gm.logger.Info("ROOMS: Created room", zap.String("room", code))

	return hub
}

// lookup returns the hub for code without creating one.
func (gm *GameManager) lookup(code string) (*Hub, bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	hub, ok := gm.hubs[code]
	return hub, ok
}

// join registers c with the room for code, creating the room when it does
// not exist. A hub that exits while c is waiting is replaced.
func (gm *GameManager) join(code string, c *Client) *Hub {
	for {
		hub := gm.getHub(code)
		select {
		case hub.register <- c:
			return hub
		case <-hub.done:
			gm.release(hub)
		}
	}
}

// release forgets hub if it is still the registered hub for its code.
func (gm *GameManager) release(hub *Hub) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if gm.hubs[hub.code] == hub {
		delete(gm.hubs, hub.code)
	}
}

// Rooms returns the number of live rooms.
func (gm *GameManager) Rooms() int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	return len(gm.hubs)
}

// NewCode generates a room code that no live room is using.
func (gm *GameManager) NewCode() string {
	return room.NewCode(func(code string) bool {
		_, exists := gm.lookup(code)
		return exists
	})
}

// reaperLoop periodically removes rooms that have been idle longer than
// idleTimeout. Idleness is measured by each room's own clock, so rejected
// requests do not keep a room alive.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			gm.reap(gm.now().Add(-gm.idleTimeout))
		case <-gm.quit:
			return
		}
	}
}

func (gm *GameManager) reap(cutoff time.Time) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for code, hub := range gm.hubs {
		if hub.idleSince().Before(cutoff) {
			delete(gm.hubs, code)
			hub.shutdown()
		}
	}
}

// Close stops every room and waits for pending archive writes.
func (gm *GameManager) Close() {
	gm.closeOnce.Do(func() {
		close(gm.quit)

		gm.mu.Lock()
		hubs := make([]*Hub, 0, len(gm.hubs))
		for code, hub := range gm.hubs {
			delete(gm.hubs, code)
			hub.shutdown()
			hubs = append(hubs, hub)
		}
		gm.mu.Unlock()

		for _, hub := range hubs {
			<-hub.done
		}
		gm.wg.Wait()
	})
}

// QR handler: generates a PNG QR code for the room URL using go-qrcode.
func serveQR(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := room.NormalizeCode(ps.ByName("code"))
		if err := room.ValidateCode(code); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		scheme := cfg.scheme()
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/checkers/" + code

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

func serveBoardImage(cfg *Config, gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		code := room.NormalizeCode(ps.ByName("code"))
		if err := room.ValidateCode(code); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		size, err := queryInt(r, "size", render.DefaultSize)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		hub, ok := gm.lookup(code)
		if !ok {
			http.Error(w, room.ErrRoomNotFound.Error(), http.StatusNotFound)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		snap, err := hub.Snapshot(ctx)
		if errors.Is(err, errHubClosed) {
			http.Error(w, room.ErrRoomNotFound.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		data, err := render.BoardPNG(snap.Board, render.Options{Size: size, LastMove: snap.LastMove})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		written, err := w.Write(data)
		if err != nil {
			errs <- err

			return
		}

		gm.logger.Debug("SERVE: Board image",
			zap.String("room", code),
			zap.String("size", humanReadableSize(int64(written))),
			zap.String("ip", realIP(r)),
			zap.Duration("elapsed", time.Since(startTime).Round(time.Microsecond)),
		)
	}
}

func serveResults(cfg *Config, recorder archive.Recorder, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		results, err := recorder.Recent(ctx, cfg.resultsLimit)
		if err != nil {
			http.Error(w, "results unavailable", http.StatusServiceUnavailable)
			errs <- err
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		if err := json.NewEncoder(w).Encode(results); err != nil {
			errs <- err
		}
	}
}

// ---- Static file paths ----

//go:embed checkers/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

// serveIndex serves the browser client with its asset links under cfg.prefix.
func serveIndex(cfg *Config, errs chan<- error) httprouter.Handle {
	var page bytes.Buffer
	if err := indexTemplate.Execute(&page, struct{ Prefix string }{cfg.prefix}); err != nil {
		return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			http.Error(w, "page unavailable", http.StatusInternalServerError)
			errs <- err
		}
	}

	return serveStatic(cfg, "text/html; charset=utf-8", page.Bytes(), errs)
}

//go:embed checkers/app.css
var checkersCSS []byte

//go:embed checkers/app.js
var checkersJS []byte

func serveStatic(cfg *Config, contentType string, data []byte, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

// serveRoomPage serves the client for a room, redirecting lowercase or
// padded codes to their canonical form.
func serveRoomPage(cfg *Config, errs chan<- error) httprouter.Handle {
	page := serveIndex(cfg, errs)

	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		raw := ps.ByName("code")
		code := room.NormalizeCode(raw)
		if err := room.ValidateCode(code); err != nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			securityHeaders(cfg, w)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(newPage(cfg.prefix, "Invalid room code", "Room codes are 8 letters or digits. Start a new game?")))
			return
		}
		if code != raw {
			http.Redirect(w, r, cfg.prefix+"/checkers/"+code, http.StatusPermanentRedirect)
			return
		}
		page(w, r, ps)
	}
}

// redirectNewGame handles GET /checkers by generating a new room code
// (with server-side collision detection) and redirecting to it.
func redirectNewGame(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		code := gm.NewCode()
		gm.logger.Info("ROOMS: Issued room code", zap.String("room", code), zap.String("ip", realIP(r)))
		http.Redirect(w, r, cfg.prefix+"/checkers/"+code, http.StatusTemporaryRedirect)
	}
}

func registerCheckers(cfg *Config, mux *httprouter.Router, gm *GameManager, recorder archive.Recorder, errs chan<- error) {
	path := cfg.prefix + "/checkers"

	mux.GET(path, redirectNewGame(cfg, gm))
	mux.GET(path+"/:code", serveRoomPage(cfg, errs))
	mux.GET(path+"/:code/qr", serveQR(cfg, errs))
	mux.GET(path+"/:code/board.png", serveBoardImage(cfg, gm, errs))

	mux.GET(cfg.prefix+"/assets/checkers/app.css", serveStatic(cfg, "text/css; charset=utf-8", checkersCSS, errs))
	mux.GET(cfg.prefix+"/assets/checkers/app.js", serveStatic(cfg, "application/javascript; charset=utf-8", checkersJS, errs))

	mux.GET(cfg.prefix+"/ws", serveWS(gm))
	mux.GET(cfg.prefix+"/results", serveResults(cfg, recorder, errs))
}
