package link

import (
	"strings"
	"time"

	"i4.energy/across/atlink/at"
)

// Report is a parsed unsolicited report line.
type Report = at.Report

// ReportHandler receives parsed unsolicited reports for one report type.
// Handlers run on the Session loop and must not block.
type ReportHandler func(Report)

// Response is what a completed transaction delivers to its caller.
type Response struct {
	// Lines are the intermediate lines collected before the final line,
	// in arrival order. Empty under the Discard policy.
	Lines []string
	// Final is the final result line as received. Empty when the
	// transaction resolved on the SMS input prompt.
	Final string
	// Prompt is true when the modem answered with the "> " input prompt
	// instead of a final result.
	Prompt bool
}

// Text joins the collected intermediate lines.
func (r Response) Text() string {
	return strings.Join(r.Lines, "\n")
}

// result pairs a Response with the terminal error, delivered exactly once
// on the caller's buffered channel.
type result struct {
	resp Response
	err  error
}

// transaction is one outstanding or queued command.
type transaction struct {
	payload string
	caller  chan<- result
	timeout time.Duration
	// token is nonzero only while this transaction is the active one. It
	// identifies the timer instance backing it so stale expiries can be
	// rejected.
	token uint64
	lines []string
}

// IntermediatePolicy decides what happens to lines that are neither final
// results nor subscribed reports while a transaction is active.
type IntermediatePolicy int

const (
	// CollectIntermediate buffers such lines on the active transaction
	// and attaches them to the eventual reply.
	CollectIntermediate IntermediatePolicy = iota
	// DiscardIntermediate drops them. Chat-script style profiles that
	// only care about the final verb can run with this.
	DiscardIntermediate
)

// Core is the transaction engine: a state machine that consumes events
// (send request, received line, timer expiry, registration) and returns
// the effects the Session must execute. It performs no I/O and is safe
// exactly because the Session is its only caller.
//
// At most one transaction is active at a time; the rest wait in a FIFO
// queue. The subscription table outlives transactions and doubles as the
// set of recognized report tokens.
type Core struct {
	active  *transaction
	pending []*transaction
	subs    map[string][]ReportHandler
	policy  IntermediatePolicy
	// lastToken increases on every dispatch, so no two timer instances
	// ever share a token.
	lastToken uint64
}

func newCore(policy IntermediatePolicy) *Core {
	return &Core{
		subs:   make(map[string][]ReportHandler),
		policy: policy,
	}
}

// Send accepts a new command. When idle it dispatches immediately; when a
// transaction is in flight the command queues behind it and produces no
// effects until its turn comes.
func (c *Core) Send(payload string, caller chan<- result, timeout time.Duration) []effect {
	t := &transaction{payload: payload, caller: caller, timeout: timeout}
	if c.active != nil {
		c.pending = append(c.pending, t)
		return nil
	}
	return c.dispatch(t)
}

// ProcessLine classifies one received line. Final results terminate the
// active transaction, subscribed reports fan out to their handlers, and
// everything else goes through the intermediate policy. A final line with
// no active transaction is stray output after a timeout and is dropped.
func (c *Core) ProcessLine(line string) []effect {
	switch at.Classify(line) {
	case at.TypeFinal:
		if c.active == nil {
			return nil
		}
		fin, _ := at.ParseFinal(line)
		res := result{resp: Response{Lines: c.active.lines, Final: line}}
		if !fin.OK {
			res.err = &ModemError{Line: line, Detail: fin.Detail}
		}
		return c.resolve(res)

	case at.TypePrompt:
		if c.active == nil {
			return nil
		}
		return c.resolve(result{resp: Response{Lines: c.active.lines, Prompt: true}})

	case at.TypeReport:
		if handlers := c.subs[at.ReportToken(line)]; len(handlers) > 0 {
			report, _ := at.ParseReport(line)
			effects := make([]effect, 0, len(handlers))
			for _, h := range handlers {
				effects = append(effects, notifyEffect{handler: h, report: report})
			}
			return effects
		}
		// Unsubscribed report shapes are command output more often than
		// not (+CSQ, +CPIN, ...), so they follow the intermediate path.
		return c.intermediate(line)

	default:
		return c.intermediate(line)
	}
}

// Timeout handles a timer expiry. A token that does not match the active
// transaction belongs to a timer that already lost its race; nothing
// happens.
func (c *Core) Timeout(token uint64) []effect {
	if c.active == nil || c.active.token != token {
		return nil
	}
	t := c.active
	c.active = nil
	effects := []effect{
		replyEffect{caller: t.caller, result: result{resp: Response{Lines: t.lines}, err: ErrTimeout}},
	}
	return append(effects, c.next()...)
}

// Register replaces the subscriber list for the given report type.
// Last writer wins; entries persist across transactions.
func (c *Core) Register(reportType string, handler ReportHandler) []effect {
	c.subs[reportType] = []ReportHandler{handler}
	return nil
}

// Abort terminates the active transaction with err, as after a transport
// write failure, and advances the queue.
func (c *Core) Abort(err error) []effect {
	if c.active == nil {
		return nil
	}
	t := c.active
	c.active = nil
	effects := []effect{
		cancelTimerEffect{token: t.token},
		replyEffect{caller: t.caller, result: result{err: err}},
	}
	return append(effects, c.next()...)
}

// Shutdown resolves the active transaction and every queued one with err,
// without dispatching anything further. Used at session teardown so no
// caller is left blocked.
func (c *Core) Shutdown(err error) []effect {
	var effects []effect
	if c.active != nil {
		effects = append(effects,
			cancelTimerEffect{token: c.active.token},
			replyEffect{caller: c.active.caller, result: result{err: err}})
		c.active = nil
	}
	for _, t := range c.pending {
		effects = append(effects, replyEffect{caller: t.caller, result: result{err: err}})
	}
	c.pending = nil
	return effects
}

func (c *Core) dispatch(t *transaction) []effect {
	c.lastToken++
	t.token = c.lastToken
	c.active = t
	return []effect{
		writeEffect{payload: t.payload},
		armTimerEffect{token: t.token, timeout: t.timeout},
	}
}

func (c *Core) resolve(res result) []effect {
	t := c.active
	c.active = nil
	effects := []effect{
		cancelTimerEffect{token: t.token},
		replyEffect{caller: t.caller, result: res},
	}
	return append(effects, c.next()...)
}

func (c *Core) next() []effect {
	if len(c.pending) == 0 {
		return nil
	}
	head := c.pending[0]
	c.pending = c.pending[1:]
	return c.dispatch(head)
}

func (c *Core) intermediate(line string) []effect {
	if c.active != nil && c.policy == CollectIntermediate {
		c.active.lines = append(c.active.lines, line)
	}
	return nil
}
