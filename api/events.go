/*
events.go - Websocket change feed

PURPOSE:
  Pushes store changes to connected clients so UIs re-derive balances
  instead of polling. Each connection subscribes to the store's change
  hub; events are JSON-encoded Change records.

BACKPRESSURE:
  Events are buffered per connection. A client that cannot keep up has
  its connection closed; on reconnect it re-reads the full snapshot, so
  dropped events are never a correctness problem.
*/
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/solara/leavedesk/leave"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API already gates on the access-code header; cross-origin
	// websocket upgrades are allowed for the same origins CORS allows.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type eventDTO struct {
	Kind   string `json:"kind"`
	Date   string `json:"date,omitempty"`
	UserID string `json:"userId,omitempty"`
}

// Events upgrades to a websocket and streams store changes until the
// client disconnects.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events := make(chan leave.Change, 64)
	cancel := h.Store.Subscribe(func(c leave.Change) {
		select {
		case events <- c:
		default:
			// Slow client; it will resync from a snapshot on reconnect.
		}
	})
	defer cancel()

	// Reader goroutine: we never expect client messages, but reading is
	// required to notice the close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case c := <-events:
			dto := eventDTO{Kind: string(c.Kind), Date: c.Date.String(), UserID: string(c.UserID)}
			if err := conn.WriteJSON(dto); err != nil {
				return
			}
		}
	}
}
