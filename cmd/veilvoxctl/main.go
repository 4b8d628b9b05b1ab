// Command veilvoxctl controls and observes a running veilvox daemon over its
// HTTP/WebSocket control surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run())
}

func run() int {
	addr := pflag.StringP("addr", "a", "127.0.0.1:8590", "daemon address (host:port)")
	timeout := pflag.DurationP("timeout", "t", 10*time.Second, "deadline for one-shot verbs")
	amplitude := pflag.Bool("amplitude", false, "include level-meter frames in the events stream")
	pflag.Usage = usage
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		usage()
		return 2
	}

	switch verb := args[0]; verb {
	case "start", "stop", "toggle":
		return control(*addr, *timeout, verb, "")
	case "say":
		text := strings.TrimSpace(strings.Join(args[1:], " "))
		if text == "" {
			fmt.Fprintln(os.Stderr, "veilvoxctl: say needs text, e.g.: veilvoxctl say what time is it")
			return 2
		}
		return control(*addr, *timeout, "say", text)
	case "status":
		return status(*addr, *timeout)
	case "events":
		return events(*addr, *timeout, *amplitude)
	default:
		fmt.Fprintf(os.Stderr, "veilvoxctl: unknown verb %q\n\n", verb)
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `veilvoxctl controls a running veilvox daemon.

Usage:
  veilvoxctl [flags] <verb>

Verbs:
  start        begin listening
  stop         pause listening
  toggle       flip between listening and paused
  say <text>   run a command as if it had been spoken
  status       print the daemon state
  events       stream the live event feed (Ctrl+C to stop)

Flags:
`)
	pflag.PrintDefaults()
}

// frame is the union of daemon event and ack messages on the ws feed; the
// kind tag says which fields are meaningful.
type frame struct {
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Label     string    `json:"label"`
	Text      string    `json:"text"`
	Amplitude int       `json:"amplitude"`
	Listening bool      `json:"listening"`
	Time      time.Time `json:"time"`
	Op        string    `json:"op"`
	State     string    `json:"state"`
	Response  string    `json:"response"`
	Error     string    `json:"error"`
}

// control sends one command over the ws surface and waits for its ack.
// Pipeline events interleave with the ack on the same connection and are
// skipped.
func control(addr string, timeout time.Duration, op, text string) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := dial(ctx, addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "veilvoxctl: %v\n", err)
		return 1
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	cmd := struct {
		Op   string `json:"op"`
		Text string `json:"text,omitempty"`
	}{Op: op, Text: text}
	data, err := json.Marshal(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "veilvoxctl: encode command: %v\n", err)
		return 1
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		fmt.Fprintf(os.Stderr, "veilvoxctl: send command: %v\n", err)
		return 1
	}

	for {
		f, err := readFrame(ctx, conn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "veilvoxctl: await ack: %v\n", err)
			return 1
		}
		if f.Kind != "ack" || f.Op != op {
			continue
		}
		if f.Error != "" {
			fmt.Fprintf(os.Stderr, "veilvoxctl: daemon: %s\n", f.Error)
			return 1
		}
		if f.Response != "" {
			fmt.Println(f.Response)
		}
		fmt.Printf("state: %s\n", f.State)
		return 0
	}
}

func status(addr string, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	url := "http://" + addr + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "veilvoxctl: %v\n", err)
		return 1
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "veilvoxctl: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "veilvoxctl: %s returned %s\n", url, resp.Status)
		return 1
	}

	var st struct {
		State         string `json:"state"`
		Listening     bool   `json:"listening"`
		Recognizer    string `json:"recognizer"`
		QueueDepth    int    `json:"queue_depth"`
		CaptureError  string `json:"capture_error"`
		Uptime        string `json:"uptime"`
		DroppedEvents uint64 `json:"dropped_events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		fmt.Fprintf(os.Stderr, "veilvoxctl: decode status: %v\n", err)
		return 1
	}

	fmt.Printf("state:       %s\n", st.State)
	fmt.Printf("listening:   %t\n", st.Listening)
	if st.Recognizer != "" {
		fmt.Printf("recognizer:  %s\n", st.Recognizer)
	}
	fmt.Printf("queue depth: %d\n", st.QueueDepth)
	fmt.Printf("uptime:      %s\n", st.Uptime)
	if st.CaptureError != "" {
		fmt.Printf("capture:     %s\n", st.CaptureError)
	}
	if st.DroppedEvents > 0 {
		fmt.Printf("dropped:     %d\n", st.DroppedEvents)
	}
	return 0
}

// events streams the daemon's feed to stdout until interrupted.
func events(addr string, timeout time.Duration, showAmplitude bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	conn, err := dial(dialCtx, addr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "veilvoxctl: %v\n", err)
		return 1
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	for {
		f, err := readFrame(ctx, conn)
		if err != nil {
			if ctx.Err() != nil {
				return 0
			}
			fmt.Fprintf(os.Stderr, "veilvoxctl: %v\n", err)
			return 1
		}
		printEvent(f, showAmplitude)
	}
}

func printEvent(f frame, showAmplitude bool) {
	ts := f.Time.Format("15:04:05")
	switch f.Kind {
	case "amplitude":
		if showAmplitude {
			fmt.Printf("%s  amplitude  %d\n", ts, f.Amplitude)
		}
	case "status":
		label := f.Label
		if label == "" {
			label = f.Status
		}
		fmt.Printf("%s  status     %s\n", ts, label)
	case "transcript":
		fmt.Printf("%s  you        %s\n", ts, f.Text)
	case "response":
		fmt.Printf("%s  assistant  %s\n", ts, f.Text)
	case "listening":
		fmt.Printf("%s  listening  %t\n", ts, f.Listening)
	case "log":
		fmt.Printf("%s  log        %s\n", ts, f.Text)
	default:
		fmt.Printf("%s  %-9s  %s\n", ts, f.Kind, f.Text)
	}
}

func dial(ctx context.Context, addr string) (*websocket.Conn, error) {
	wsURL := "ws://" + addr + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	return conn, nil
}

func readFrame(ctx context.Context, conn *websocket.Conn) (frame, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return frame{}, err
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}
