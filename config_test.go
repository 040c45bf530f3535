package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		config, err := LoadConfig(WithDefaults())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.BindAddress != "0.0.0.0:8080" {
			t.Errorf("BindAddress = %q", config.BindAddress)
		}
		if config.SerialPort != "/dev/ttyUSB0" {
			t.Errorf("SerialPort = %q", config.SerialPort)
		}
		if config.BaudRate != 115200 {
			t.Errorf("BaudRate = %d", config.BaudRate)
		}
		if config.Profile != "sim7600" {
			t.Errorf("Profile = %q", config.Profile)
		}
		if config.MQTT.Broker != "" {
			t.Errorf("MQTT.Broker = %q, want empty (bridge disabled)", config.MQTT.Broker)
		}
	})

	t.Run("File overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "atlink.toml")
		content := `
serial_port = "/dev/ttyUSB2"
profile = "quectel-bg96"
apn = "m2m.provider.net"

[mqtt]
broker = "tcp://broker:1883"
send_topic = "custom/send"
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		config, err := LoadConfig(WithDefaults(), WithFile(path))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.SerialPort != "/dev/ttyUSB2" {
			t.Errorf("SerialPort = %q", config.SerialPort)
		}
		if config.Profile != "quectel-bg96" {
			t.Errorf("Profile = %q", config.Profile)
		}
		if config.APN != "m2m.provider.net" {
			t.Errorf("APN = %q", config.APN)
		}
		if config.MQTT.Broker != "tcp://broker:1883" {
			t.Errorf("MQTT.Broker = %q", config.MQTT.Broker)
		}
		if config.MQTT.SendTopic != "custom/send" {
			t.Errorf("MQTT.SendTopic = %q", config.MQTT.SendTopic)
		}
		// Untouched keys keep their defaults.
		if config.BaudRate != 115200 {
			t.Errorf("BaudRate = %d", config.BaudRate)
		}
		if config.MQTT.ReportTopic != "atlink/modem/report" {
			t.Errorf("MQTT.ReportTopic = %q", config.MQTT.ReportTopic)
		}
	})

	t.Run("Empty file path is a no-op", func(t *testing.T) {
		config, err := LoadConfig(WithDefaults(), WithFile(""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.SerialPort != "/dev/ttyUSB0" {
			t.Errorf("SerialPort = %q", config.SerialPort)
		}
	})

	t.Run("Missing file is an error", func(t *testing.T) {
		_, err := LoadConfig(WithDefaults(), WithFile("/nonexistent/atlink.toml"))
		if err == nil || !strings.Contains(err.Error(), "config file") {
			t.Errorf("expected config file error, got: %v", err)
		}
	})

	t.Run("Env overrides defaults", func(t *testing.T) {
		t.Setenv("SERIAL_PORT", "/dev/ttyACM0")
		t.Setenv("BAUD_RATE", "9600")
		t.Setenv("MODEM_PROFILE", "quectel-bg96")
		t.Setenv("MQTT_BROKER", "tcp://env-broker:1883")
		t.Setenv("SIGNAL_POLL_SECONDS", "10")

		config, err := LoadConfig(WithDefaults(), WithEnv())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.SerialPort != "/dev/ttyACM0" {
			t.Errorf("SerialPort = %q", config.SerialPort)
		}
		if config.BaudRate != 9600 {
			t.Errorf("BaudRate = %d", config.BaudRate)
		}
		if config.Profile != "quectel-bg96" {
			t.Errorf("Profile = %q", config.Profile)
		}
		if config.MQTT.Broker != "tcp://env-broker:1883" {
			t.Errorf("MQTT.Broker = %q", config.MQTT.Broker)
		}
		if config.SignalPollSeconds != 10 {
			t.Errorf("SignalPollSeconds = %d", config.SignalPollSeconds)
		}
	})

	t.Run("Flags override env", func(t *testing.T) {
		t.Setenv("SERIAL_PORT", "/dev/ttyACM0")

		fSet := flag.NewFlagSet("test", flag.ContinueOnError)
		fSet.String("serial-port", "/dev/ttyUSB0", "")
		fSet.String("apn", "", "")
		if err := fSet.Parse([]string{"-serial-port", "/dev/ttyUSB3", "-apn", "flag.apn"}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(fSet))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.SerialPort != "/dev/ttyUSB3" {
			t.Errorf("SerialPort = %q", config.SerialPort)
		}
		if config.APN != "flag.apn" {
			t.Errorf("APN = %q", config.APN)
		}
	})

	t.Run("Unset flags do not override", func(t *testing.T) {
		fSet := flag.NewFlagSet("test", flag.ContinueOnError)
		fSet.String("serial-port", "/dev/ttyUSB0", "")
		if err := fSet.Parse(nil); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		t.Setenv("SERIAL_PORT", "/dev/ttyACM0")
		config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(fSet))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.SerialPort != "/dev/ttyACM0" {
			t.Errorf("SerialPort = %q, flag default should not win", config.SerialPort)
		}
	})
}
