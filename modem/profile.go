package modem

import (
	"context"
	"time"

	"i4.energy/across/atlink/link"
)

// Config describes one modem installation. Profiles normalize it and
// render it into runtime artifacts; the Modem reads it for the init
// sequence.
type Config struct {
	// Device is the serial device path, e.g. "/dev/ttyUSB2". Required.
	Device string
	// APN is the data access point name used in PPP chat scripts.
	// Required by profiles that render a data connection.
	APN string
	// SimPIN is the SIM card PIN code, if the card requires one.
	SimPIN string
	// InitTimeout bounds the whole init sequence.
	InitTimeout time.Duration
	// Poll configures SIM-ready polling after PIN entry.
	Poll PollConfig
}

// PollConfig defines polling behaviour for wait-until conditions like SIM
// readiness.
type PollConfig struct {
	// Interval is the time between polling attempts
	Interval time.Duration
	// Timeout is the maximum time to wait for the condition
	Timeout time.Duration
	// MaxRetries is the maximum number of polling attempts
	MaxRetries int
}

// RuntimeConfig is what a profile renders for the surrounding system:
// files to write (PPP chat scripts) and child processes to supervise.
// Nothing in this package spawns the children; supervision is the
// platform's concern.
type RuntimeConfig struct {
	Files    []File
	Children []ChildSpec
}

// File is one rendered configuration file.
type File struct {
	Path    string
	Content string
}

// ChildSpec names one child process and its arguments.
type ChildSpec struct {
	Name string
	Args []string
}

// Profile captures the per-hardware behaviour of a supported modem model:
// configuration validation and defaults, runtime artifact rendering, and
// the readiness probe. One implementation exists per supported variant,
// selected by configuration at composition time.
type Profile interface {
	// Name identifies the profile in configuration and logs.
	Name() string
	// Normalize validates cfg for this hardware and fills in model
	// defaults.
	Normalize(cfg Config) (Config, error)
	// RuntimeConfig renders the PPP chat script and child process specs
	// for the data connection.
	RuntimeConfig(cfg Config) (RuntimeConfig, error)
	// Ready reports whether the modem is usable for data, typically by
	// checking network registration.
	Ready(ctx context.Context, sess *link.Session) error
}

// ProfileByName selects a profile implementation.
func ProfileByName(name string) (Profile, error) {
	switch name {
	case "sim7600":
		return SIM7600{}, nil
	case "quectel-bg96":
		return QuectelBG96{}, nil
	default:
		return nil, ErrUnknownProfile
	}
}
