package link

import (
	"io"
	"sync"
)

// TestTransport is a test helper that simulates a blocking transport using
// channels. The session's reader goroutine reads continuously, so reads
// must block until data is available, like a real serial port would.
//
// A write hook, when set, runs for every Write after the payload is
// recorded. Tests use it to script the modem side: respond to each command
// as it is written rather than pre-queueing lines (which the engine would
// discard as stray output).
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	writes   []string
	closed   bool
	onWrite  func(p []byte)
	writeErr error
}

// NewTestTransport creates a new test transport. Exported for use in
// tests of packages built on top of the session.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 10),
	}
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	if t.writeErr != nil {
		err = t.writeErr
		t.writeErr = nil
		t.mu.Unlock()
		return 0, err
	}
	t.writes = append(t.writes, string(p))
	onWrite := t.onWrite
	t.mu.Unlock()
	if onWrite != nil {
		onWrite(p)
	}
	return len(p), nil
}

// FailNextWrite makes the next Write fail with err instead of recording
// anything. The failure is one-shot.
func (t *TestTransport) FailNextWrite(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
}

// SetOnWrite installs the write hook.
func (t *TestTransport) SetOnWrite(fn func(p []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onWrite = fn
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	data, ok := <-t.readChan
	if !ok {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport. This simulates
// receiving data from the modem.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Writes returns a snapshot of everything written so far.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.writes))
	copy(out, t.writes)
	return out
}
