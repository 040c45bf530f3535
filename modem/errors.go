package modem

import "errors"

var (
	// ErrNoSession is returned when a Modem is constructed without a
	// Session to drive.
	ErrNoSession = errors.New("no session configured")

	// ErrSIMPinRequired is returned when the SIM card requires a PIN and
	// no PIN was provided in the Config.
	//
	// Callers may handle this error specially (for example, by prompting
	// the user for a PIN) and retry initialization.
	ErrSIMPinRequired = errors.New("SIM PIN required")

	// ErrUnknownProfile is returned by ProfileByName for hardware this
	// build does not support.
	ErrUnknownProfile = errors.New("unknown modem profile")

	// ErrNotRegistered is returned by readiness checks while the modem
	// has not registered with a network.
	ErrNotRegistered = errors.New("not registered with network")

	// ErrNoDevice is returned by Normalize when the serial device path
	// is missing from the configuration.
	ErrNoDevice = errors.New("no serial device configured")

	// ErrNoAPN is returned by Normalize for profiles that cannot build a
	// data connection without an APN.
	ErrNoAPN = errors.New("no APN configured")
)
