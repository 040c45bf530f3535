package link

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"i4.energy/across/atlink/at"
)

// Session is the actor that owns a modem transport. It is the only thread
// of execution that touches Core state: send requests, registrations,
// received lines and timer expiries all funnel through the Loop, which
// runs one event to completion (including its effects) before the next.
//
// Callers block in Send until their transaction resolves through a final
// result line, the per-transaction timer, or session teardown. Exactly one
// of those happens for every dispatched command.
type Session struct {
	transport Transport
	config    Config
	logger    *slog.Logger

	core *Core

	sends         chan *sendRequest
	registrations chan *registerRequest
	// timerFired carries token-stamped expiry events from the armed
	// timer back into the loop.
	timerFired chan uint64

	// The single timer slot. Owned by the loop; at most one timer is
	// outstanding, backing the active transaction.
	timer      *time.Timer
	timerToken uint64

	mu     sync.Mutex
	closed bool
	// loopStarted latches on the first Loop call; a session's loop runs
	// at most once, restart attempts get ErrLoopRunning.
	loopStarted bool
	// done closes when the loop exits; it unblocks callers and retires
	// in-flight timer goroutines.
	done chan struct{}
}

type sendRequest struct {
	payload string
	timeout time.Duration
	resp    chan result
}

type registerRequest struct {
	reportType string
	handler    ReportHandler
	done       chan struct{}
}

// SendOption adjusts a single Send call.
type SendOption func(*sendOptions)

type sendOptions struct {
	timeout time.Duration
}

// WithTimeout overrides the session's default window for the final result.
func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) {
		o.timeout = d
	}
}

// New creates a Session and dials its transport. The Loop must be started
// (typically in a goroutine) before Send or Register are used.
func New(ctx context.Context, config Config) (*Session, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotConnected
	}

	return &Session{
		transport:     transport,
		config:        config,
		logger:        config.Logger,
		core:          newCore(config.Intermediate),
		sends:         make(chan *sendRequest),
		registrations: make(chan *registerRequest),
		timerFired:    make(chan uint64, 1),
		done:          make(chan struct{}),
	}, nil
}

// Loop is the session's event loop. It must be called exactly once. It is
// the only goroutine that reads the transport, so unsolicited reports are
// never lost and no locking of Core state is needed.
//
// The loop runs until the context is cancelled, the transport reaches EOF,
// or a read error occurs. On exit every active or queued transaction is
// resolved with ErrSessionClosed.
func (s *Session) Loop(ctx context.Context) error {
	s.mu.Lock()
	if s.loopStarted {
		s.mu.Unlock()
		return ErrLoopRunning
	}
	s.loopStarted = true
	s.mu.Unlock()

	defer func() {
		s.run(s.core.Shutdown(ErrSessionClosed))
		s.stopTimer()
		close(s.done)
	}()

	scanner := bufio.NewScanner(s.transport)
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		advance, token, err := at.Splitter(data, atEOF)
		if err == nil && token == nil && advance > 0 {
			s.logger.Debug("dropping unframed fragment", "fragment", string(data[:advance]))
		}
		return advance, token, err
	})

	tokens := make(chan string, 10)
	scanErrs := make(chan error, 1)

	// Reader goroutine: frames transport bytes into tokens. Empty tokens
	// (blank lines between CRLF pairs) are unframeable noise and never
	// reach the engine.
	go func() {
		defer close(tokens)
		for scanner.Scan() {
			token := scanner.Text()
			if token == "" {
				continue
			}
			select {
			case tokens <- token:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case scanErrs <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case req := <-s.sends:
			s.run(s.core.Send(req.payload, req.resp, req.timeout))

		case req := <-s.registrations:
			s.run(s.core.Register(req.reportType, req.handler))
			close(req.done)

		case token, ok := <-tokens:
			if !ok {
				return io.EOF
			}
			s.logger.Debug("line received", "line", token)
			s.run(s.core.ProcessLine(token))

		case token := <-s.timerFired:
			s.run(s.core.Timeout(token))

		case err := <-scanErrs:
			s.run(s.core.Abort(fmt.Errorf("read error: %w", err)))
			return fmt.Errorf("scanner error: %w", err)
		}
	}
}

// run is the effect interpreter. Effects execute in the order the Core
// produced them; a failed write aborts the transaction it belonged to,
// which may append further effects for the next queued command.
func (s *Session) run(effects []effect) {
	for i := 0; i < len(effects); i++ {
		switch e := effects[i].(type) {
		case writeEffect:
			wire := e.payload + "\r"
			if _, err := s.transport.Write([]byte(wire)); err != nil {
				s.logger.Error("transport write failed", "command", e.payload, "error", err)
				effects = append(effects, s.core.Abort(fmt.Errorf("write command %q: %w", e.payload, err))...)
			}

		case armTimerEffect:
			s.armTimer(e.token, e.timeout)

		case cancelTimerEffect:
			s.cancelTimer(e.token)

		case replyEffect:
			// The caller channel is buffered and each caller is resumed
			// exactly once, so this never blocks the loop.
			e.caller <- e.result

		case notifyEffect:
			s.notify(e.handler, e.report)
		}
	}
}

func (s *Session) armTimer(token uint64, timeout time.Duration) {
	s.timerToken = token
	s.timer = time.AfterFunc(timeout, func() {
		select {
		case s.timerFired <- token:
		case <-s.done:
		}
	})
}

func (s *Session) cancelTimer(token uint64) {
	if s.timer != nil && s.timerToken == token {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// notify isolates subscriber panics so a misbehaving handler cannot take
// down the loop.
func (s *Session) notify(handler ReportHandler, report at.Report) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("report handler panicked", "type", report.Type, "panic", r)
		}
	}()
	handler(report)
}

// Send writes an AT command to the modem and blocks until its transaction
// resolves. Commands issued while another is in flight queue up and
// dispatch in strict FIFO order; the modem only ever sees one at a time.
//
// The caller-side wait is the command timeout plus the configured margin;
// the session-driven timeout is the authoritative backstop, so under
// normal operation the error always comes from the reply.
func (s *Session) Send(ctx context.Context, command string, opts ...SendOption) (Response, error) {
	options := sendOptions{timeout: s.config.ATTimeout}
	for _, o := range opts {
		o(&options)
	}

	req := &sendRequest{
		payload: strings.TrimSpace(command),
		timeout: options.timeout,
		resp:    make(chan result, 1),
	}

	select {
	case s.sends <- req:
	case <-s.done:
		return Response{}, ErrSessionClosed
	case <-ctx.Done():
		return Response{}, fmt.Errorf("command cancelled before sending: %w", ctx.Err())
	}

	wait := time.NewTimer(options.timeout + s.config.ReplyMargin)
	defer wait.Stop()

	select {
	case res := <-req.resp:
		return res.resp, res.err
	case <-ctx.Done():
		return Response{}, fmt.Errorf("command cancelled: %w", ctx.Err())
	case <-wait.C:
		return Response{}, fmt.Errorf("no reply within %v: %w", options.timeout+s.config.ReplyMargin, ErrTimeout)
	}
}

// Register subscribes handler to unsolicited reports of the given type
// (e.g. "CREG" for +CREG: lines, "RING" for RING). It always succeeds and
// replaces any prior handler for that type. Report types registered here
// are exactly the set of lines treated as unsolicited; everything else
// follows the intermediate policy.
func (s *Session) Register(reportType string, handler ReportHandler) {
	req := &registerRequest{
		reportType: reportType,
		handler:    handler,
		done:       make(chan struct{}),
	}
	select {
	case s.registrations <- req:
	case <-s.done:
		return
	}
	select {
	case <-req.done:
	case <-s.done:
	}
}

// Close shuts the session down and closes the transport. Closing the
// transport fails the reader, which makes a running Loop exit and resolve
// every outstanding transaction with ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrAlreadyClosed
	}
	s.closed = true
	s.mu.Unlock()

	return s.transport.Close()
}
