package render

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultReadyTimeout bounds how long the surface waits for the sidecar's
// "ready" signal. A missed handshake is a hard failure of the web strategy
// for the session.
const DefaultReadyTimeout = 10 * time.Second

// message is the wire format exchanged with the sidecar renderer, one JSON
// object per line. Requests carry type "render" or "convert"; responses
// carry "ready", "svg", "error", "conversion_success", or
// "conversion_error". Messages have no correlation IDs: the exchange is
// strictly serialized, one outstanding request per surface.
type message struct {
	Type string `json:"type"`

	// render request
	Text       string  `json:"text,omitempty"`
	Theme      string  `json:"theme,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	Background string  `json:"background,omitempty"`
	Scale      float64 `json:"scale,omitempty"`

	// convert request / svg response
	SVG    string `json:"svg,omitempty"`
	Format string `json:"format,omitempty"`

	// conversion_success response: base64-encoded image bytes
	Data string `json:"data,omitempty"`

	// error responses: message plus partial diagram text for diagnostics
	Message string `json:"message,omitempty"`
	Diagram string `json:"diagram,omitempty"`
}

// surface owns one sidecar renderer process and serializes all request/
// response exchanges with it. It is the only shared resource between
// concurrent export jobs using the web strategy, so access is a simple
// mutual-exclusion queue: one render/convert cycle at a time.
type surface struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	msgCh  chan message
	readEr chan error
	done   chan struct{}
	logger hclog.Logger

	mu sync.Mutex // held for the whole duration of one exchange

	closeOnce sync.Once
	closeErr  error
}

// startSurface spawns the sidecar and completes the ready handshake.
func startSurface(ctx context.Context, argv []string, readyTimeout time.Duration, logger hclog.Logger) (*surface, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("no renderer command configured")
	}
	if readyTimeout <= 0 {
		readyTimeout = DefaultReadyTimeout
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open renderer stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open renderer stdout: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start renderer: %w", err)
	}

	s := &surface{
		cmd:    cmd,
		stdin:  stdin,
		msgCh:  make(chan message, 4),
		readEr: make(chan error, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	go s.readLoop(stdout)

	// Handshake: the sidecar signals "ready" once its renderer library has
	// initialized. Anything else, or silence, fails the strategy.
	readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	msg, err := s.receive(readyCtx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("renderer did not signal ready within %s: %w (stderr: %s)", readyTimeout, err, condense(stderr.String()))
	}
	if msg.Type != "ready" {
		s.Close()
		return nil, fmt.Errorf("unexpected first message from renderer: %q", msg.Type)
	}
	logger.Debug("renderer surface ready", "command", argv[0])
	return s, nil
}

// readLoop decodes one JSON message per stdout line until the process
// closes its end.
func (s *surface) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			s.logger.Warn("discarding malformed renderer message", "error", err)
			continue
		}
		// A sidecar spewing unsolicited messages must not pin this
		// goroutine past Close.
		select {
		case s.msgCh <- msg:
		case <-s.done:
			return
		}
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case s.readEr <- err:
	case <-s.done:
	}
}

// roundTrip sends one request and waits for its response. The surface
// mutex guarantees a new request is never sent before the previous
// response (success or error) has arrived; without correlation IDs this is
// what prevents response misattribution. A failed exchange tears the
// surface down: the response may still arrive after the caller gave up,
// and on a torn-down surface it can never be mistaken for the answer to a
// later request.
func (s *surface) roundTrip(ctx context.Context, req message) (message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(req)
	if err != nil {
		return message{}, fmt.Errorf("failed to encode request: %w", err)
	}
	if _, err := s.stdin.Write(append(payload, '\n')); err != nil {
		_ = s.Close()
		return message{}, fmt.Errorf("failed to send %s request: %w", req.Type, err)
	}
	resp, err := s.receive(ctx)
	if err != nil {
		_ = s.Close()
		return message{}, err
	}
	return resp, nil
}

func (s *surface) receive(ctx context.Context) (message, error) {
	select {
	case msg := <-s.msgCh:
		return msg, nil
	case err := <-s.readEr:
		return message{}, fmt.Errorf("renderer channel closed: %w", err)
	case <-ctx.Done():
		return message{}, ctx.Err()
	}
}

// Close tears the sidecar down. Safe to call more than once.
func (s *surface) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.stdin != nil {
			_ = s.stdin.Close()
		}
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		s.closeErr = s.cmd.Wait()
	})
	return s.closeErr
}
