package modem_test

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"i4.energy/across/atlink/link"
	"i4.energy/across/atlink/modem"
)

// script is a canned modem: it answers each written command with a fixed
// response. Commands without an entry get no answer and run into the
// session timeout.
type script map[string]string

var initScript = script{
	"AT":        "OK\r\n",
	"ATE0":      "OK\r\n",
	"AT+CMEE=2": "OK\r\n",
	"AT+CPIN?":  "+CPIN: READY\r\nOK\r\n",
	"AT+CMGF=1": "OK\r\n",
}

func merged(base script, extra script) script {
	out := script{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// newTestModem wires a Modem to a scripted transport with a running
// session loop.
func newTestModem(t *testing.T, responses script, config modem.Config) (*modem.Modem, *link.TestTransport, func()) {
	t.Helper()

	ctrl := gomock.NewController(t)
	transport := link.NewTestTransport()
	dialer := link.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(transport, nil)

	transport.SetOnWrite(func(p []byte) {
		cmd := strings.TrimSuffix(string(p), "\r")
		if resp, ok := responses[cmd]; ok {
			transport.SendData(resp)
		}
	})

	linkConfig, err := link.NewConfigBuilder().
		WithDialer(dialer).
		WithATTimeout(200 * time.Millisecond).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess, err := link.New(ctx, linkConfig)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- sess.Loop(ctx)
	}()

	if config.Device == "" {
		config.Device = "/dev/ttyUSB0"
	}
	if config.APN == "" {
		config.APN = "internet"
	}
	m, err := modem.New(sess, modem.SIM7600{}, config, nil)
	if err != nil {
		t.Fatalf("failed to create modem: %v", err)
	}

	cleanup := func() {
		m.Close()
		if err := <-loopDone; err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
			t.Errorf("loop exited with: %v", err)
		}
		cancel()
		ctrl.Finish()
	}
	return m, transport, cleanup
}

func TestModemInit(t *testing.T) {
	t.Run("Runs the init sequence in order", func(t *testing.T) {
		m, transport, cleanup := newTestModem(t, initScript, modem.Config{})
		defer cleanup()

		if err := m.Init(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"AT\r", "ATE0\r", "AT+CMEE=2\r", "AT+CPIN?\r", "AT+CMGF=1\r"}
		if got := transport.Writes(); !slices.Equal(got, want) {
			t.Errorf("init writes = %v, want %v", got, want)
		}
	})

	t.Run("ErrSIMPinRequired when SIM PIN is required but not provided", func(t *testing.T) {
		responses := merged(initScript, script{
			"AT+CPIN?": "+CPIN: SIM PIN\r\nOK\r\n",
		})
		m, _, cleanup := newTestModem(t, responses, modem.Config{})
		defer cleanup()

		if err := m.Init(context.Background()); !errors.Is(err, modem.ErrSIMPinRequired) {
			t.Errorf("expected ErrSIMPinRequired, got: %v", err)
		}
	})

	t.Run("Enters the SIM PIN and waits for ready", func(t *testing.T) {
		var pinSeen bool
		responses := merged(initScript, script{
			"AT+CPIN?":       "+CPIN: SIM PIN\r\nOK\r\n",
			`AT+CPIN="1980"`: "OK\r\n",
		})
		config := modem.Config{
			SimPIN: "1980",
			Poll:   modem.PollConfig{Interval: 10 * time.Millisecond},
		}
		m, transport, cleanup := newTestModem(t, responses, config)
		defer cleanup()

		// After the PIN is entered the SIM flips to ready on the next
		// status poll.
		transport.SetOnWrite(func(p []byte) {
			cmd := strings.TrimSuffix(string(p), "\r")
			if cmd == `AT+CPIN="1980"` {
				pinSeen = true
			}
			if cmd == "AT+CPIN?" && pinSeen {
				transport.SendData("+CPIN: READY\r\nOK\r\n")
				return
			}
			if resp, ok := responses[cmd]; ok {
				transport.SendData(resp)
			}
		})

		if err := m.Init(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !pinSeen {
			t.Error("expected the PIN to be submitted")
		}
	})

	t.Run("Unsupported SIM state fails init", func(t *testing.T) {
		responses := merged(initScript, script{
			"AT+CPIN?": "+CPIN: PH-NET PIN\r\nOK\r\n",
		})
		m, _, cleanup := newTestModem(t, responses, modem.Config{})
		defer cleanup()

		err := m.Init(context.Background())
		if err == nil || !strings.Contains(err.Error(), "unsupported SIM state") {
			t.Errorf("expected unsupported SIM state error, got: %v", err)
		}
	})
}

func TestSendSMS(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		responses := script{
			`AT+CMGS="+1234567890"`: "> ",
			"Hello World\x1a":       "+CMGS: 123\r\nOK\r\n",
		}
		m, _, cleanup := newTestModem(t, responses, modem.Config{})
		defer cleanup()

		if err := m.SendSMS(context.Background(), "+1234567890", "Hello World"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Error on no prompt", func(t *testing.T) {
		responses := script{
			`AT+CMGS="+1234567890"`: "ERROR\r\n",
		}
		m, _, cleanup := newTestModem(t, responses, modem.Config{})
		defer cleanup()

		err := m.SendSMS(context.Background(), "+1234567890", "Hello World")
		if err == nil {
			t.Fatal("expected error when modem rejects CMGS")
		}
		var modemErr *link.ModemError
		if !errors.As(err, &modemErr) {
			t.Errorf("expected ModemError, got: %v", err)
		}
	})

	t.Run("Error when network rejects the body", func(t *testing.T) {
		responses := script{
			`AT+CMGS="+1234567890"`: "> ",
			"Hello World\x1a":       "+CMS ERROR: 500\r\n",
		}
		m, _, cleanup := newTestModem(t, responses, modem.Config{})
		defer cleanup()

		err := m.SendSMS(context.Background(), "+1234567890", "Hello World")
		if err == nil || !strings.Contains(err.Error(), "SMS send failed") {
			t.Errorf("expected send failure, got: %v", err)
		}
	})
}

func TestModemReady(t *testing.T) {
	t.Run("Registered", func(t *testing.T) {
		responses := script{"AT+CREG?": "+CREG: 0,1\r\nOK\r\n"}
		m, _, cleanup := newTestModem(t, responses, modem.Config{})
		defer cleanup()

		if err := m.Ready(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Roaming counts as registered", func(t *testing.T) {
		responses := script{"AT+CREG?": "+CREG: 0,5\r\nOK\r\n"}
		m, _, cleanup := newTestModem(t, responses, modem.Config{})
		defer cleanup()

		if err := m.Ready(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Searching is not registered", func(t *testing.T) {
		responses := script{"AT+CREG?": "+CREG: 0,2\r\nOK\r\n"}
		m, _, cleanup := newTestModem(t, responses, modem.Config{})
		defer cleanup()

		if err := m.Ready(context.Background()); !errors.Is(err, modem.ErrNotRegistered) {
			t.Errorf("expected ErrNotRegistered, got: %v", err)
		}
	})
}

func TestSignalQuality(t *testing.T) {
	responses := script{"AT+CSQ": "+CSQ: 15,99\r\nOK\r\n"}
	m, _, cleanup := newTestModem(t, responses, modem.Config{})
	defer cleanup()

	q, err := m.SignalQuality(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Known {
		t.Error("expected a known measurement")
	}
	if q.RSSI != -83 {
		t.Errorf("RSSI = %d, want -83", q.RSSI)
	}
}

func TestParseSignalQuality(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		want    modem.SignalQuality
	}{
		{name: "Typical", input: "+CSQ: 15,99", want: modem.SignalQuality{RSSI: -83, BER: 99, Known: true}},
		{name: "Strong", input: "+CSQ: 31,0", want: modem.SignalQuality{RSSI: -51, BER: 0, Known: true}},
		{name: "Unknown", input: "+CSQ: 99,99", want: modem.SignalQuality{BER: 99}},
		{name: "Not a CSQ line", input: "+CREG: 0,1", wantErr: true},
		{name: "Garbage rssi", input: "+CSQ: abc,99", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := modem.ParseSignalQuality(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
