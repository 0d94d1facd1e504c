package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smazurov/camerahost/internal/capture"
)

const (
	frameQueueSize = 4
	frameWriteWait = 5 * time.Second
	framePongWait  = 30 * time.Second
	framePingEvery = framePongWait * 9 / 10
)

var (
	errSubscriberSlow = errors.New("frame subscriber is not keeping up")
	errSubscriberGone = errors.New("frame subscriber disconnected")
)

var frameUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 << 10,
	// Same policy as the CORS headers: any origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// frameHeader precedes every binary JPEG message on /api/frames.
type frameHeader struct {
	Seq       uint64 `json:"seq"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	Size      int    `json:"size"`
	Timestamp string `json:"timestamp"`
}

// frameSubscriber is the capture.FrameSink of one WebSocket connection.
// Push never blocks: frames beyond the queue are refused.
type frameSubscriber struct {
	frames chan capture.Frame
	gone   chan struct{}
}

func newFrameSubscriber() *frameSubscriber {
	return &frameSubscriber{
		frames: make(chan capture.Frame, frameQueueSize),
		gone:   make(chan struct{}),
	}
}

func (f *frameSubscriber) Push(frame capture.Frame) error {
	select {
	case <-f.gone:
		return errSubscriberGone
	default:
	}
	select {
	case f.frames <- frame:
		return nil
	default:
		return errSubscriberSlow
	}
}

func (s *Server) registerFrameRoutes() {
	s.mux.HandleFunc("GET /api/frames", s.requireAuth(s.handleFrames))
}

// handleFrames attaches the connection as the frame sink for its lifetime.
// A newer connection replaces it; this one then stays open but idle.
func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	conn, err := frameUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	sub := newFrameSubscriber()
	broker := s.controller.Broker()
	broker.Attach(sub)
	s.logger.Info("Frame subscriber attached", "remote_addr", r.RemoteAddr)
	defer func() {
		broker.DetachSink(sub)
		close(sub.gone)
		conn.Close()
		s.logger.Info("Frame subscriber detached", "remote_addr", r.RemoteAddr)
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(framePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(framePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(framePingEvery)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case frame := <-sub.frames:
			if err := writeFrame(conn, frame); err != nil {
				s.logger.Debug("Frame write failed", "remote_addr", r.RemoteAddr, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(frameWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, frame capture.Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(frameWriteWait))
	header := frameHeader{
		Seq:       frame.Seq,
		Width:     frame.Width,
		Height:    frame.Height,
		Format:    frame.Format,
		Size:      len(frame.Data),
		Timestamp: frame.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if err := conn.WriteJSON(header); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, frame.Data)
}
