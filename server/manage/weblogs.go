package servermanage

import (
	"net/http"
	"slices"
	"sync"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/robert-nix/ansihtml"
)

// logging is designed such that the review page can open a websocket and
// watch the extraction of its upload happen; if the user destroys their
// websocket and comes back they only miss the lines in between
// logs are OK to be lost, nothing reads them back after the fact

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// LogStream fans colored log output out to every connected websocket as
// HTML fragments. It is an io.Writer so it can sit directly in a
// logrus MultiWriter output.
type LogStream struct {
	mu          sync.Mutex
	connections []*WebSocketConnection
}

func NewLogStream() *LogStream {
	return &LogStream{}
}

func (s *LogStream) Write(b []byte) (int, error) {
	bytesLen := len(b)
	s.mu.Lock()
	connections := slices.Clone(s.connections)
	s.mu.Unlock()
	if len(connections) == 0 {
		return bytesLen, nil
	}

	formattedLog := ansihtml.ConvertToHTML(b)
	fragment := []byte(`<div class="log-line">` + string(formattedLog) + `</div>`)

	for _, c := range connections {
		if c == nil || c.send == nil {
			continue
		}
		// a slow reader should not stall logging
		select {
		case c.send <- fragment:
		default:
		}
	}
	return bytesLen, nil
}

type WebSocketConnection struct {
	conn   *websocket.Conn
	send   chan []byte
	stream *LogStream
}

func (s *LogStream) loggingWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Info("Could not upgrade", "err", err)
		return
	}

	wsConn := &WebSocketConnection{
		conn:   conn,
		send:   make(chan []byte, 64),
		stream: s,
	}

	s.mu.Lock()
	s.connections = append(s.connections, wsConn)
	s.mu.Unlock()

	go wsConn.writePump()
	go wsConn.readPump()
}

// the read side only exists to notice the peer going away
func (wsConn *WebSocketConnection) readPump() {
	defer wsConn.disconnect()
	for {
		_, _, err := wsConn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				slog.Info("websocket closed", "err", err)
			}
			break
		}
	}
}

func (wsConn *WebSocketConnection) writePump() {
	for message := range wsConn.send {
		err := wsConn.conn.WriteMessage(websocket.TextMessage, message)
		if err != nil {
			slog.Error("Channel error: ", "err", err)
			return
		}
	}
	wsConn.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (wsConn *WebSocketConnection) disconnect() {
	stream := wsConn.stream
	stream.mu.Lock()
	defer stream.mu.Unlock()
	wsConn.conn.Close()
	for i, c := range stream.connections {
		if c == wsConn {
			stream.connections = slices.Delete(stream.connections, i, i+1)
			close(wsConn.send)
			break
		}
	}
}
