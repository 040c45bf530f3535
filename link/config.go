package link

import (
	"log/slog"
	"time"
)

type Config struct {
	// Dialer opens the transport to the modem. Required.
	Dialer Dialer
	// ATTimeout is the default per-command window for a final result.
	ATTimeout time.Duration
	// ReplyMargin is added on top of the command timeout for the
	// caller-side wait, so callers never race the protocol timer.
	ReplyMargin time.Duration
	// Intermediate selects the handling of lines that belong to neither
	// a final result nor a subscribed report.
	Intermediate IntermediatePolicy
	// Logger receives session diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.ATTimeout == 0 {
		c.ATTimeout = 10 * time.Second
	}
	if c.ReplyMargin == 0 {
		c.ReplyMargin = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ConfigBuilder assembles a Session Config.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.ATTimeout = d
	return b
}

func (b *ConfigBuilder) WithReplyMargin(d time.Duration) *ConfigBuilder {
	b.config.ReplyMargin = d
	return b
}

func (b *ConfigBuilder) WithIntermediatePolicy(p IntermediatePolicy) *ConfigBuilder {
	b.config.Intermediate = p
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

// Build validates the configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	config := b.config
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	config.setDefaults()
	return config, nil
}
