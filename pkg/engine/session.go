package engine

import (
	"io"
	"sync"

	"go.uber.org/zap"

	"spx/pkg/wire"
)

// Session owns one trader's two endpoints. A read goroutine frames the
// inbound stream into events; a write goroutine drains the outbound queue.
// Nothing on the matching path ever blocks on a session: sends go through
// a buffered queue and are dropped if the queue is full or the session is
// closed.
type Session struct {
	id        int
	in        *wire.Reader
	inCloser  io.Closer
	out       io.WriteCloser
	send      chan []byte
	events    chan<- Event
	terminate func() error
	log       *zap.SugaredLogger

	closeOnce sync.Once
	closed    chan struct{}
}

func newSession(id int, in io.ReadCloser, out io.WriteCloser, terminate func() error, queue int, events chan<- Event, log *zap.SugaredLogger) *Session {
	return &Session{
		id:        id,
		in:        wire.NewReader(in),
		inCloser:  in,
		out:       out,
		send:      make(chan []byte, queue),
		events:    events,
		terminate: terminate,
		log:       log,
		closed:    make(chan struct{}),
	}
}

func (s *Session) start() {
	go s.readLoop()
	go s.writeLoop()
}

// readLoop turns the inbound byte stream into events. End-of-stream is an
// ungraceful disconnect.
func (s *Session) readLoop() {
	for {
		msg, err := s.in.ReadMessage()
		if err != nil {
			s.events <- Event{TraderID: s.id, Kind: EventDisconnect}
			return
		}
		s.events <- Event{TraderID: s.id, Kind: EventMessage, Raw: msg}
	}
}

// writeLoop is the only goroutine that touches the outbound endpoint. Write
// errors are logged and the rest of the queue is drained so senders never
// back up.
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.closed:
			return
		case msg := <-s.send:
			if _, err := s.out.Write(msg); err != nil {
				s.log.Debugw("session_write_failed", "trader", s.id, "err", err)
			}
		}
	}
}

// Send queues a message for the trader. If the queue is full the message is
// dropped; a slow or dead peer must not stall the matching pipeline.
func (s *Session) Send(msg []byte) {
	select {
	case s.send <- msg:
	case <-s.closed:
	default:
		s.log.Warnw("session_send_dropped", "trader", s.id)
	}
}

// close shuts the outbound side down. The inbound closer is released too so
// the read goroutine unblocks if it has not already seen end-of-stream.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.out.Close()
		_ = s.inCloser.Close()
	})
}

// kill invokes the transport's forced termination, if any.
func (s *Session) kill() {
	if s.terminate == nil {
		return
	}
	if err := s.terminate(); err != nil {
		s.log.Debugw("session_terminate_failed", "trader", s.id, "err", err)
	}
}
