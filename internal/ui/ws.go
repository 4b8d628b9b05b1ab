package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
)

// feedBuffer is the per-connection event buffer. Amplitude events arrive at
// frame rate, so a slow client drops level-meter frames rather than stalling
// the pipeline.
const feedBuffer = 256

// command is a client-to-server control frame.
type command struct {
	Op   string `json:"op"`
	Text string `json:"text,omitempty"`
}

// ack confirms a command. It shares the "kind" discriminator with
// [event.Event] frames so clients can demultiplex the stream with a single
// tag switch.
type ack struct {
	Kind     string `json:"kind"`
	Op       string `json:"op"`
	State    string `json:"state"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleWS upgrades the request and runs the duplex session: pipeline events
// and command acks flow out, control commands flow in. One writer goroutine
// owns the connection's write side.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The daemon binds loopback and GUI shells connect from app-scheme
		// origins that never match the Host header, so the origin check
		// cannot be satisfied.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	feed, unsubscribe := s.bridge.Subscribe(feedBuffer)
	defer unsubscribe()

	acks := make(chan ack, 8)
	go s.readCommands(ctx, conn, acks, cancel)

	s.log.Debug("websocket client connected", "remote", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case ev := <-feed:
			if err := writeJSON(ctx, conn, ev); err != nil {
				return
			}
		case a := <-acks:
			if err := writeJSON(ctx, conn, a); err != nil {
				return
			}
		}
	}
}

// readCommands consumes client frames until the connection or context ends,
// applying each command and queueing its ack for the writer. Cancelling the
// session context on exit tears down the writer as well.
func (s *Server) readCommands(ctx context.Context, conn *websocket.Conn, acks chan<- ack, cancel context.CancelFunc) {
	defer cancel()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				s.log.Debug("websocket read ended", "error", err)
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			cmd.Op = strings.TrimSpace(string(data))
			select {
			case acks <- ack{Kind: "ack", Op: cmd.Op, State: s.a.State().String(), Error: "malformed command"}:
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case acks <- s.apply(ctx, cmd):
		case <-ctx.Done():
			return
		}
	}
}

// apply executes one control command and reports the resulting state. The
// say op blocks until the utterance has been handled, which serializes
// commands per connection; concurrent clients each get their own reader.
func (s *Server) apply(ctx context.Context, cmd command) ack {
	out := ack{Kind: "ack", Op: cmd.Op}

	switch cmd.Op {
	case "start":
		s.a.Start()
	case "stop":
		s.a.Stop()
	case "toggle":
		s.a.Toggle()
	case "say":
		if strings.TrimSpace(cmd.Text) == "" {
			out.Error = "say requires text"
		} else {
			out.Response = s.a.Command(ctx, cmd.Text)
		}
	default:
		out.Error = fmt.Sprintf("unknown op %q", cmd.Op)
	}

	out.State = s.a.State().String()
	return out
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ui: marshal frame: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
