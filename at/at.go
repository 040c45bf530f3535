package at

const (
	// Terminal Control
	CRLF   = "\r\n"
	Prompt = "> "
	CtrlZ  = "\x1a"

	// Final result lines
	OK         = "OK"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	// Ring indication, the one report line without a "+TOKEN:" shape
	Ring = "RING"

	// Common commands
	CmdAt            = "AT"
	CmdEchoOff       = "ATE0"
	CmdVerboseErrors = "AT+CMEE=2"
	CmdSimStatus     = "AT+CPIN?"
	CmdSetTextMode   = "AT+CMGF=1"
	CmdSignal        = "AT+CSQ"
	CmdNetworkReg    = "AT+CREG?"

	// SIM states reported by AT+CPIN?
	SimReady = "READY"
	SimPin   = "SIM PIN"
)

// ResponseType identifies the nature of one line of modem output.
type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR, +CME ERROR: ...
	TypeReport                     // candidate unsolicited report (+CREG: ..., RING)
	TypeData                       // intermediate command output
	TypePrompt                     // SMS input prompt
)

// Final is a parsed final result line.
type Final struct {
	// OK is true for the success verb, false for any error result.
	OK bool
	// Detail carries the trailing code of a +CME/+CMS error, or the
	// result verb itself for bare error results. Empty on success.
	Detail string
}

// Report is a parsed unsolicited report line.
type Report struct {
	// Type is the leading token without '+' and ':' (e.g. "CREG").
	Type string
	// Fields are the comma-separated values after the colon, trimmed.
	Fields []string
	// Line is the raw line as received.
	Line string
}
