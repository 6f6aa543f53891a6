package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mediabatch/mediabatch-agent/internal/jobs"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isAllowedOrigin(origin)
	},
}

// wsHandler streams bus events to one client. A since query parameter
// replays buffered events newer than that sequence first; without it the
// stream starts at the current head.
func wsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		last := cfg.Bus.LastSeq()
		if s := r.URL.Query().Get("since"); s != "" {
			seq, err := strconv.ParseInt(s, 10, 64)
			if err != nil || seq < 0 {
				WriteError(w, http.StatusBadRequest, "invalid since", "BAD_REQUEST")
				return
			}
			last = seq
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		signal, unsubscribe := cfg.Bus.Subscribe()
		defer unsubscribe()

		closed := make(chan struct{})
		go readPump(conn, closed)

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		cfg.Logger.Debug("websocket client connected", "since", last)
		if last, err = flushEvents(conn, cfg.Bus, last); err != nil {
			return
		}

		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case <-signal:
				if last, err = flushEvents(conn, cfg.Bus, last); err != nil {
					cfg.Logger.Debug("websocket write failed", "error", err)
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

func flushEvents(conn *websocket.Conn, bus *jobs.EventBus, last int64) (int64, error) {
	for _, ev := range bus.Since(last) {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(ev); err != nil {
			return last, err
		}
		last = ev.Seq
	}
	return last, nil
}

// readPump drains client frames so control messages are processed, and
// closes done when the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
