package modem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"i4.energy/across/atlink/at"
	"i4.energy/across/atlink/link"
)

// Modem composes a Session with a hardware Profile. It owns no transport
// state of its own; every operation turns into Session transactions, so
// modem operations from any goroutine serialize naturally.
type Modem struct {
	sess    *link.Session
	profile Profile
	config  Config
	logger  *slog.Logger
}

// New builds a Modem. The profile normalizes the configuration before
// anything else happens, so misconfiguration fails at composition time.
// The session's Loop must be running before Init or any other operation
// is called.
func New(sess *link.Session, profile Profile, config Config, logger *slog.Logger) (*Modem, error) {
	if sess == nil {
		return nil, ErrNoSession
	}
	if logger == nil {
		logger = slog.Default()
	}
	normalized, err := profile.Normalize(config)
	if err != nil {
		return nil, fmt.Errorf("normalize config for %s: %w", profile.Name(), err)
	}
	return &Modem{
		sess:    sess,
		profile: profile,
		config:  normalized,
		logger:  logger,
	}, nil
}

// Init performs the initial setup sequence for the modem hardware:
// wake-up probe, echo off, verbose errors, SIM unlock if needed, and SMS
// text mode. It must complete successfully before SMS operations are
// used.
func (m *Modem) Init(ctx context.Context) error {
	if m.config.InitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.InitTimeout)
		defer cancel()
	}

	// 1. Wake-up / sanity check
	if err := m.expectOK(ctx, at.CmdAt); err != nil {
		return fmt.Errorf("modem not responding: %w", err)
	}

	if err := m.expectOK(ctx, at.CmdEchoOff); err != nil {
		return fmt.Errorf("could not disable echo: %w", err)
	}

	if err := m.expectOK(ctx, at.CmdVerboseErrors); err != nil {
		return fmt.Errorf("could not enable verbose errors: %w", err)
	}

	// 2. Check SIM status
	simStatus, err := m.sess.Send(ctx, at.CmdSimStatus)
	if err != nil {
		return fmt.Errorf("query SIM status: %w", err)
	}

	switch {
	case strings.Contains(simStatus.Text(), at.SimReady):
		// OK

	case strings.Contains(simStatus.Text(), at.SimPin):
		if m.config.SimPIN == "" {
			return ErrSIMPinRequired
		}
		if err := m.expectOK(ctx, fmt.Sprintf(`AT+CPIN="%s"`, m.config.SimPIN)); err != nil {
			return fmt.Errorf("enter SIM PIN: %w", err)
		}

		// Wait until SIM becomes ready
		if err := m.waitForSIMReady(ctx); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported SIM state: %q", simStatus.Text())
	}

	// 3. Select SMS text mode
	if err := m.expectOK(ctx, at.CmdSetTextMode); err != nil {
		return fmt.Errorf("set SMS text mode: %w", err)
	}

	return nil
}

// Ready runs the profile's readiness probe.
func (m *Modem) Ready(ctx context.Context) error {
	return m.profile.Ready(ctx, m.sess)
}

// RuntimeConfig renders the profile's runtime artifacts for the
// normalized configuration.
func (m *Modem) RuntimeConfig() (RuntimeConfig, error) {
	return m.profile.RuntimeConfig(m.config)
}

// SendSMS sends a text message to the specified recipient.
//
// The message is sent in text mode (not PDU mode). The recipient should
// be in international format (e.g. "+1234567890").
//
// This method blocks until the message is accepted by the network or an
// error occurs. Network delivery to the final recipient happens
// asynchronously.
func (m *Modem) SendSMS(ctx context.Context, recipient, message string) error {
	resp, err := m.sess.Send(ctx, fmt.Sprintf(`AT+CMGS="%s"`, recipient))
	if err != nil {
		return fmt.Errorf("AT+CMGS command failed: %w", err)
	}
	if !resp.Prompt {
		return fmt.Errorf("did not receive SMS prompt, got: %q", resp.Final)
	}

	// The message body is its own transaction, terminated by Ctrl-Z.
	// Network acceptance can take a while, hence the generous window.
	resp, err = m.sess.Send(ctx, message+at.CtrlZ, link.WithTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("SMS send failed: %w", err)
	}

	for _, line := range resp.Lines {
		if report, ok := at.ParseReport(line); ok && report.Type == "CMGS" && len(report.Fields) > 0 {
			m.logger.Debug("SMS accepted", "to", recipient, "reference", report.Fields[0])
		}
	}
	return nil
}

// SignalQuality describes a parsed +CSQ measurement.
type SignalQuality struct {
	// RSSI in dBm. Only meaningful when Known is true.
	RSSI int
	// BER is the raw bit error rate index (99 when unknown).
	BER int
	// Known is false when the modem reported 99 (not detectable).
	Known bool
}

// SignalQuality issues AT+CSQ and parses the measurement from the
// response. When a Monitor has subscribed to CSQ reports, the line routes
// to the subscription instead; use the Monitor's report stream in that
// configuration.
func (m *Modem) SignalQuality(ctx context.Context) (SignalQuality, error) {
	resp, err := m.sess.Send(ctx, at.CmdSignal)
	if err != nil {
		return SignalQuality{}, err
	}
	for _, line := range resp.Lines {
		if q, err := ParseSignalQuality(line); err == nil {
			return q, nil
		}
	}
	return SignalQuality{}, errors.New("no +CSQ line in response")
}

// ParseSignalQuality parses a "+CSQ: <rssi>,<ber>" line. The raw rssi
// index maps to dBm as -113 + 2*index; 99 means not detectable.
func ParseSignalQuality(line string) (SignalQuality, error) {
	report, ok := at.ParseReport(line)
	if !ok || report.Type != "CSQ" || len(report.Fields) < 2 {
		return SignalQuality{}, fmt.Errorf("not a +CSQ line: %q", line)
	}
	raw, err := strconv.Atoi(report.Fields[0])
	if err != nil {
		return SignalQuality{}, fmt.Errorf("bad rssi in %q: %w", line, err)
	}
	ber, err := strconv.Atoi(report.Fields[1])
	if err != nil {
		return SignalQuality{}, fmt.Errorf("bad ber in %q: %w", line, err)
	}
	if raw == 99 {
		return SignalQuality{BER: ber}, nil
	}
	return SignalQuality{RSSI: -113 + 2*raw, BER: ber, Known: true}, nil
}

// Close shuts down the underlying session and its transport.
func (m *Modem) Close() error {
	return m.sess.Close()
}

// expectOK executes a command that should succeed with a bare OK.
func (m *Modem) expectOK(ctx context.Context, cmd string) error {
	_, err := m.sess.Send(ctx, cmd)
	return err
}

// waitForSIMReady polls the SIM card status until it reports ready state.
// This is necessary after entering a SIM PIN, as the SIM card needs time
// to authenticate and become operational.
func (m *Modem) waitForSIMReady(ctx context.Context) error {
	var (
		pollInterval = m.config.Poll.Interval
		timeout      = m.config.Poll.Timeout
		maxRetries   = m.config.Poll.MaxRetries
	)

	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = int(timeout / pollInterval)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	retries := 0

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("SIM not ready: %w", ctx.Err())
		case <-ticker.C:
			retries++
			if retries > maxRetries {
				return fmt.Errorf("SIM not ready after %d retries", maxRetries)
			}
			resp, err := m.sess.Send(ctx, at.CmdSimStatus)
			if err != nil {
				if errors.Is(err, link.ErrSessionClosed) {
					return fmt.Errorf("SIM status check failed: %w", err)
				}
				continue
			}
			if strings.Contains(resp.Text(), at.SimReady) {
				return nil
			}
		}
	}
}
