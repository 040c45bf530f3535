package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter is used for tokenizing AT command modem responses. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// It splits the input by CRLF line endings and also
// recognizes the SMS input prompt ("> ").
//
// Important: This splitter assumes "No Echo" mode (ATE0). If echo is enabled,
// it would need modification to handle command echoes that precede the actual
// response.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining unframed data is a truncated line: it is
// consumed without producing a token, so a fragment never reaches the
// transaction engine.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// 1. Match SMS Prompt
	if bytes.HasPrefix(data, []byte(Prompt)) {
		return len(Prompt), data[0:len(Prompt)], nil
	}

	// 2. Match standard line ending with CRLF
	if i := bytes.Index(data, []byte(CRLF)); i >= 0 {
		return i + len(CRLF), data[0:i], nil
	}

	if atEOF {
		return len(data), nil, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Classify identifies the nature of one line of modem output.
//
// The precedence is fixed: final results first, then report candidates,
// then everything else as intermediate data. Which report candidates are
// actually delivered anywhere is decided by the subscription table, not
// here; Classify only recognizes the shape.
func Classify(line string) ResponseType {
	if line == Prompt {
		return TypePrompt
	}

	// Direct matches for final results
	switch line {
	case OK, ERROR, NoCarrier, NoDialtone, Busy, NoAnswer:
		return TypeFinal
	}

	switch {
	case strings.HasPrefix(line, CmeError), strings.HasPrefix(line, CmsError):
		return TypeFinal
	case line == Ring:
		return TypeReport
	case ReportToken(line) != "":
		return TypeReport
	default:
		return TypeData
	}
}

// ParseFinal parses a final result line. The second return value is false
// when the line is not a final result at all.
func ParseFinal(line string) (Final, bool) {
	switch line {
	case OK:
		return Final{OK: true}, true
	case ERROR, NoCarrier, NoDialtone, Busy, NoAnswer:
		return Final{Detail: line}, true
	}

	for _, prefix := range []string{CmeError, CmsError} {
		if strings.HasPrefix(line, prefix) {
			return Final{Detail: strings.TrimSpace(strings.TrimPrefix(line, prefix))}, true
		}
	}
	return Final{}, false
}

// ReportToken extracts the report type from a "+TOKEN: ..." line, e.g.
// "CREG" from "+CREG: 1,5". RING maps to "RING". Returns "" for lines
// that do not have a report shape.
func ReportToken(line string) string {
	if line == Ring {
		return Ring
	}
	if !strings.HasPrefix(line, "+") {
		return ""
	}
	colon := strings.Index(line, ":")
	if colon <= 1 {
		return ""
	}
	token := line[1:colon]
	// Error finals share the "+TOKEN:" shape but are never reports.
	if strings.HasSuffix(token, "ERROR") {
		return ""
	}
	return token
}

// ParseReport parses an unsolicited report line into its type and fields.
// RING yields a report with no fields. The second return value is false
// when the line has no report shape.
func ParseReport(line string) (Report, bool) {
	token := ReportToken(line)
	if token == "" {
		return Report{}, false
	}
	report := Report{Type: token, Line: line}
	if line == Ring {
		return report, true
	}
	rest := strings.TrimSpace(line[strings.Index(line, ":")+1:])
	if rest != "" {
		parts := strings.Split(rest, ",")
		report.Fields = make([]string, len(parts))
		for i, p := range parts {
			report.Fields[i] = strings.TrimSpace(p)
		}
	}
	return report, true
}
