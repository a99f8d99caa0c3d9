package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sessionWriteWait   = 10 * time.Second
	sessionReadLimit   = 512 * 1024
	sessionSendBacklog = 256
)

// session wraps one live websocket connection. The write pump is the sole
// writer; everything outbound goes through the send channel.
type session struct {
	conn *websocket.Conn
	send chan *Message
	done chan struct{}

	closeOnce sync.Once
}

func newSession(conn *websocket.Conn) *session {
	return &session{
		conn: conn,
		send: make(chan *Message, sessionSendBacklog),
		done: make(chan struct{}),
	}
}

// enqueue hands a message to the write pump. It reports false when the
// session is shutting down or the backlog is full.
func (s *session) enqueue(m *Message) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- m:
		return true
	default:
		return false
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
