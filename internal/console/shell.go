package console

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/tgsitter/tgsitter/internal/bus"
)

// shellMessage is one inbound websocket frame from the operator.
type shellMessage struct {
	Type    string `json:"type"` // "run" or "interrupt"
	Command string `json:"command,omitempty"`
}

// handleWebsocket upgrades to a websocket that streams the event feed
// to the operator and accepts shell commands. One command runs at a
// time per connection; "interrupt" kills the running one.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if s.cfg.AllowedOrigin != "" {
		opts.OriginPatterns = []string{s.cfg.AllowedOrigin}
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}
	termID := uuid.NewString()
	s.log.Info("terminal connected", "terminal_id", termID, "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	events, unsubscribe := s.feed.Subscribe()
	defer unsubscribe()

	// Feed pump: push every bus event to the client.
	go func() {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := writeWS(ctx, conn, ev); err != nil {
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	sh := &shellRunner{feed: s.feed}
	for {
		var msg shellMessage
		if err := readWS(ctx, conn, &msg); err != nil {
			s.log.Info("terminal disconnected", "terminal_id", termID)
			sh.interrupt()
			return
		}
		switch msg.Type {
		case "run":
			sh.run(ctx, msg.Command)
		case "interrupt":
			sh.interrupt()
		default:
			s.feed.Terminal("unknown message type: " + msg.Type)
		}
	}
}

func writeWS(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}

func readWS(ctx context.Context, conn *websocket.Conn, v any) error {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// shellRunner executes operator shell commands, streaming output lines
// onto the feed. At most one command runs at a time.
type shellRunner struct {
	feed *bus.Feed

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (sh *shellRunner) run(ctx context.Context, command string) {
	if command == "" {
		return
	}

	sh.mu.Lock()
	if sh.cancel != nil {
		sh.mu.Unlock()
		sh.feed.Terminal("a command is already running, interrupt it first")
		return
	}
	cmdCtx, cancel := context.WithCancel(ctx)
	sh.cancel = cancel
	sh.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			sh.mu.Lock()
			sh.cancel = nil
			sh.mu.Unlock()
		}()

		cmd := exec.CommandContext(cmdCtx, "sh", "-c", command)
		// Run the shell in its own process group and kill the whole
		// group on interrupt. Killing only the shell would leave its
		// children holding the stdout pipe open, blocking the scanner
		// and cmd.Wait forever.
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		cmd.Cancel = func() error {
			if cmd.Process == nil {
				return nil
			}
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		cmd.WaitDelay = 3 * time.Second
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			sh.feed.Terminal("error: " + err.Error())
			return
		}
		cmd.Stderr = cmd.Stdout
		if err := cmd.Start(); err != nil {
			sh.feed.Terminal("error: " + err.Error())
			return
		}

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			sh.feed.Terminal(scanner.Text())
		}
		if err := cmd.Wait(); err != nil {
			sh.feed.Terminal("exit: " + err.Error())
		} else {
			sh.feed.Terminal("exit: ok")
		}
	}()
}

// interrupt kills the running command, if any.
func (sh *shellRunner) interrupt() {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.cancel != nil {
		sh.cancel()
	}
}
