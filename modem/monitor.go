package modem

import (
	"context"
	"log/slog"
	"time"

	"i4.energy/across/atlink/at"
	"i4.energy/across/atlink/link"
)

// Monitor watches network registration and signal strength. It subscribes
// to +CREG and +CSQ reports and additionally polls AT+CSQ on an interval,
// for modules that never push signal strength on their own. The poll
// response's +CSQ line routes through the same subscription as a pushed
// report, so consumers see one uniform stream.
type Monitor struct {
	sess     *link.Session
	logger   *slog.Logger
	interval time.Duration
	reports  chan link.Report
}

// NewMonitor creates a monitor polling at the given interval (default
// 30s).
func NewMonitor(sess *link.Session, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		sess:     sess,
		logger:   logger,
		interval: interval,
		reports:  make(chan link.Report, 16),
	}
}

// Reports returns the stream of registration and signal reports. The
// channel is buffered; reports are dropped when no one consumes them.
func (mon *Monitor) Reports() <-chan link.Report {
	return mon.reports
}

// Run subscribes and polls until the context is cancelled. It must be
// called after the session's Loop has started.
func (mon *Monitor) Run(ctx context.Context) error {
	forward := func(r link.Report) {
		select {
		case mon.reports <- r:
		default:
			mon.logger.Warn("report dropped, consumer too slow", "type", r.Type)
		}
	}

	mon.sess.Register("CREG", forward)
	mon.sess.Register("CSQ", forward)

	ticker := time.NewTicker(mon.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// The response's +CSQ line arrives via the subscription.
			if _, err := mon.sess.Send(ctx, at.CmdSignal); err != nil {
				mon.logger.Warn("signal poll failed", "error", err)
			}
		}
	}
}
