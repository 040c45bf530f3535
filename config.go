package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `toml:"bind_address"`
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string `toml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 115200)
	BaudRate int `toml:"baud_rate"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `toml:"log_level"`
	// Profile selects the modem hardware profile (e.g. "sim7600")
	Profile string `toml:"profile"`
	// APN is the data access point name
	APN string `toml:"apn"`
	// SimPIN is the SIM card PIN code
	SimPIN string `toml:"sim_pin"`
	// SignalPollSeconds is the interval between AT+CSQ polls
	SignalPollSeconds int `toml:"signal_poll_seconds"`
	// MQTT configures the optional MQTT bridge; empty broker disables it
	MQTT MQTTConfig `toml:"mqtt"`
}

// MQTTConfig holds the MQTT bridge settings
type MQTTConfig struct {
	Broker      string `toml:"broker"`
	ClientID    string `toml:"client_id"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	SendTopic   string `toml:"send_topic"`
	ReportTopic string `toml:"report_topic"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.Profile = "sim7600"
		c.APN = "internet"
		c.SignalPollSeconds = 30
		c.MQTT.ClientID = "atlink-1"
		c.MQTT.SendTopic = "atlink/sms/send"
		c.MQTT.ReportTopic = "atlink/modem/report"
		return nil
	}
}

// WithFile loads configuration from a TOML file. An empty path is a
// no-op.
func WithFile(path string) ConfigOption {
	if path == "" {
		return nil
	}
	return func(c *Config) error {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if profile := os.Getenv("MODEM_PROFILE"); profile != "" {
			c.Profile = profile
		}

		if apn := os.Getenv("APN"); apn != "" {
			c.APN = apn
		}

		if simPIN := os.Getenv("SIM_PIN"); simPIN != "" {
			c.SimPIN = simPIN
		}

		if poll := os.Getenv("SIGNAL_POLL_SECONDS"); poll != "" {
			if p, err := strconv.Atoi(poll); err == nil {
				c.SignalPollSeconds = p
			}
		}

		if broker := os.Getenv("MQTT_BROKER"); broker != "" {
			c.MQTT.Broker = broker
		}

		if clientID := os.Getenv("MQTT_CLIENT_ID"); clientID != "" {
			c.MQTT.ClientID = clientID
		}

		if user := os.Getenv("MQTT_USERNAME"); user != "" {
			c.MQTT.Username = user
		}

		if pass := os.Getenv("MQTT_PASSWORD"); pass != "" {
			c.MQTT.Password = pass
		}

		if topic := os.Getenv("MQTT_SEND_TOPIC"); topic != "" {
			c.MQTT.SendTopic = topic
		}

		if topic := os.Getenv("MQTT_REPORT_TOPIC"); topic != "" {
			c.MQTT.ReportTopic = topic
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "profile":
				c.Profile = f.Value.String()
			case "apn":
				c.APN = f.Value.String()
			case "sim-pin":
				c.SimPIN = f.Value.String()
			case "signal-poll-seconds":
				if p, err := strconv.Atoi(f.Value.String()); err == nil {
					c.SignalPollSeconds = p
				}
			case "mqtt-broker":
				c.MQTT.Broker = f.Value.String()
			}

		})
		return nil
	}

}
