package link

import (
	"time"

	"i4.energy/across/atlink/at"
)

// effect is one action the Core asks the Session to carry out. The Core
// never touches the transport or the timer itself; it only describes the
// intended actions, and the Session's interpreter executes them in order.
type effect interface {
	isEffect()
}

// writeEffect sends a command to the transport. The payload carries no
// line terminator; the interpreter appends it.
type writeEffect struct {
	payload string
}

// armTimerEffect schedules a timeout event for the given token.
type armTimerEffect struct {
	token   uint64
	timeout time.Duration
}

// cancelTimerEffect cancels the outstanding timer if its token matches.
// Cancellation is best effort: an expiry that already fired is rejected
// later by the Core's stale-token check, not here.
type cancelTimerEffect struct {
	token uint64
}

// replyEffect resumes exactly one caller with the transaction's outcome.
type replyEffect struct {
	caller chan<- result
	result result
}

// notifyEffect invokes one subscriber with a parsed report.
type notifyEffect struct {
	handler ReportHandler
	report  at.Report
}

func (writeEffect) isEffect()       {}
func (armTimerEffect) isEffect()    {}
func (cancelTimerEffect) isEffect() {}
func (replyEffect) isEffect()       {}
func (notifyEffect) isEffect()      {}
