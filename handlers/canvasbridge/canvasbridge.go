// Package canvasbridge binds a web-view sandbox to a bridge host session
// over a websocket. Each connection is one (user, canvas) editing session.
package canvasbridge

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"social-canvas/bridge"
	"social-canvas/core"
	"social-canvas/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 20,
	WriteBufferSize: 1 << 20,
	// The facade serves the app's own web view on loopback.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts a websocket connection to the bridge's send-only channel.
// Writes are serialized: the flush path and the autosave timer may send
// concurrently.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// HandleSession upgrades the request and runs a bridge host until the
// sandbox disconnects. On disconnect the session's timer and queue are
// discarded with it.
func HandleSession(store bridge.Persister, notify core.Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFrom(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		canvasName := chi.URLParam(r, "name")
		if canvasName == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Canvas name is required"})
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logrus.WithError(err).Error("bridge upgrade failed")
			return
		}
		defer conn.Close()

		log := logrus.WithFields(logrus.Fields{
			"session": ulid.Make().String(),
			"userID":  claims.Subject,
			"canvas":  canvasName,
		})
		log.Info("bridge session open")

		host := bridge.NewHost(&wsConn{conn: conn}, store, notify, claims.Subject, canvasName)
		defer host.Close()
		host.Start(r.Context())

		for {
			msgType, raw, err := conn.ReadMessage()
			if err != nil {
				log.WithError(err).Info("bridge session closed")
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}
			host.HandleMessage(r.Context(), raw)
		}
	}
}
