package modem_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"i4.energy/across/atlink/link"
	"i4.energy/across/atlink/modem"
)

func newTestMonitor(t *testing.T, interval time.Duration) (*modem.Monitor, *link.TestTransport, func()) {
	t.Helper()

	ctrl := gomock.NewController(t)
	transport := link.NewTestTransport()
	dialer := link.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(transport, nil)

	config, err := link.NewConfigBuilder().
		WithDialer(dialer).
		WithATTimeout(200 * time.Millisecond).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess, err := link.New(ctx, config)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- sess.Loop(ctx)
	}()

	mon := modem.NewMonitor(sess, interval, nil)

	monCtx, monCancel := context.WithCancel(context.Background())
	monDone := make(chan error, 1)
	go func() {
		monDone <- mon.Run(monCtx)
	}()

	cleanup := func() {
		monCancel()
		if err := <-monDone; !errors.Is(err, context.Canceled) {
			t.Errorf("monitor exited with: %v", err)
		}
		sess.Close()
		<-loopDone
		cancel()
		ctrl.Finish()
	}
	return mon, transport, cleanup
}

func waitForReport(t *testing.T, mon *modem.Monitor) link.Report {
	t.Helper()
	select {
	case r := <-mon.Reports():
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a report")
		return link.Report{}
	}
}

func TestMonitorForwardsRegistrationReports(t *testing.T) {
	mon, transport, cleanup := newTestMonitor(t, time.Hour)
	defer cleanup()

	transport.SendData("+CREG: 0,5\r\n")

	report := waitForReport(t, mon)
	if report.Type != "CREG" {
		t.Fatalf("report type = %q, want CREG", report.Type)
	}
	if len(report.Fields) != 2 || report.Fields[1] != "5" {
		t.Errorf("report fields = %v, want [0 5]", report.Fields)
	}
}

func TestMonitorPollsSignalQuality(t *testing.T) {
	mon, transport, cleanup := newTestMonitor(t, 20*time.Millisecond)
	defer cleanup()

	transport.SetOnWrite(func(p []byte) {
		if strings.TrimSuffix(string(p), "\r") == "AT+CSQ" {
			transport.SendData("+CSQ: 21,99\r\nOK\r\n")
		}
	})

	report := waitForReport(t, mon)
	if report.Type != "CSQ" {
		t.Fatalf("report type = %q, want CSQ", report.Type)
	}
	q, err := modem.ParseSignalQuality(report.Line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Known || q.RSSI != -71 {
		t.Errorf("signal = %+v, want known RSSI -71", q)
	}
}
