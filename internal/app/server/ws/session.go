// Package ws holds the per-connection session: one instance per live
// websocket, policing liveness and translating frames in both
// directions.
package ws

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Sycamoie/Bear-Hole-server/internal/core/contracts"
	"github.com/Sycamoie/Bear-Hole-server/internal/core/domain"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512 * 1024
	outBufferSize  = 256
)

type frame struct {
	kind int
	data []byte
}

// Session owns one connection. It registers itself with the registry on
// construction, pushes registry deliveries out through a buffered
// channel so fan-out never blocks on a slow socket, and emits exactly
// one Leave on any terminal transition.
type Session struct {
	id     uuid.UUID
	roomID domain.RoomID
	conn   *websocket.Conn
	hub    contracts.Registry
	log    *slog.Logger

	probeInterval time.Duration
	clientTimeout time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	out      chan frame
	lastBeat atomic.Int64
	once     sync.Once
}

// NewSession binds an upgraded connection to a room, registers it and
// starts the write/probe loop. The caller still has to run ReadLoop. A
// Join rejection means the session was never visible to any room; the
// caller just closes the transport.
func NewSession(
	parent context.Context,
	conn *websocket.Conn,
	roomID domain.RoomID,
	hub contracts.Registry,
	probeInterval, clientTimeout time.Duration,
	log *slog.Logger,
) (*Session, error) {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:            uuid.New(),
		roomID:        roomID,
		conn:          conn,
		hub:           hub,
		log:           log,
		probeInterval: probeInterval,
		clientTimeout: clientTimeout,
		ctx:           ctx,
		cancel:        cancel,
		out:           make(chan frame, outBufferSize),
	}
	s.touch()

	if err := hub.Join(domain.JoinRequest{ID: s.id, RoomID: roomID, Handle: s}); err != nil {
		cancel()
		return nil, err
	}
	go s.writeLoop()
	return s, nil
}

func (s *Session) ID() uuid.UUID       { return s.id }
func (s *Session) Room() domain.RoomID { return s.roomID }

// Deliver enqueues a registry push for the write loop. Bounded and
// non-blocking: when the buffer is full the payload is dropped and the
// registry moves on to the next recipient.
func (s *Session) Deliver(msg domain.OutboundText) error {
	if s.ctx.Err() != nil {
		return domain.ErrSessionClosed
	}
	select {
	case s.out <- frame{kind: websocket.TextMessage, data: []byte(msg.Text)}:
		return nil
	default:
		return domain.ErrSessionBufferFull
	}
}

// ReadLoop drives the session from transport frames. It blocks until
// the peer closes, the read fails, or the probe loop tears the
// connection down under it.
func (s *Session) ReadLoop() {
	defer s.stop()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetPingHandler(func(appData string) error {
		s.touch()
		return s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})
	// The default close handler echoes the close frame back before the
	// read returns, which is exactly the close semantics we want.

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn("session - read - unexpected close", "conn_id", s.id, "err", err)
			}
			return
		}

		switch kind {
		case websocket.TextMessage:
			s.hub.Route(domain.InboundText{ID: s.id, RoomID: s.roomID, Text: string(data)})
		case websocket.BinaryMessage:
			// Opaque relay, echoed back byte-for-byte.
			select {
			case s.out <- frame{kind: websocket.BinaryMessage, data: data}:
			default:
				s.log.Warn("session - read - binary echo dropped", "conn_id", s.id)
			}
		default:
			s.log.Warn("session - read - unsupported frame", "conn_id", s.id, "frame_kind", kind)
			return
		}
	}
}

// writeLoop owns all writes to the socket: queued deliveries and the
// liveness probe. A client that misses probes past the timeout is
// evicted on the next tick without waiting for the transport to notice.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.probeInterval)
	defer func() {
		ticker.Stop()
		s.stop()
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case f := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(f.kind, f.data); err != nil {
				// Best-effort delivery: one failed push is logged, the
				// session lives on until the probe decides otherwise.
				s.log.Warn("session - write - push failed", "conn_id", s.id, "err", err)
			}
		case <-ticker.C:
			if s.sinceBeat() > s.clientTimeout {
				s.log.Info("session - heartbeat - client timed out",
					"conn_id", s.id, "room_id", s.roomID, "silent_for", s.sinceBeat())
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Warn("session - heartbeat - ping failed", "conn_id", s.id, "err", err)
			}
		}
	}
}

// stop runs the terminal transition once: Leave is emitted exactly once
// no matter which loop gets here first, then the probe ticker and the
// pending read are cancelled together.
func (s *Session) stop() {
	s.once.Do(func() {
		s.hub.Leave(domain.LeaveNotice{ID: s.id, RoomID: s.roomID})
		s.cancel()
		_ = s.conn.Close()
		s.log.Info("session - stop - closed", "conn_id", s.id, "room_id", s.roomID)
	})
}

func (s *Session) touch() {
	s.lastBeat.Store(time.Now().UnixNano())
}

func (s *Session) sinceBeat() time.Duration {
	return time.Since(time.Unix(0, s.lastBeat.Load()))
}
