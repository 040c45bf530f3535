package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	serial "go.bug.st/serial"
	"i4.energy/across/atlink/link"
	"i4.energy/across/atlink/modem"
)

func main() {
	configFile := flag.String("config-file", "", "Path to a TOML configuration file")
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("profile", "sim7600", "Modem hardware profile")
	flag.String("apn", "", "Data access point name")
	flag.String("sim-pin", "", "SIM card PIN code (if required)")
	flag.Int("signal-poll-seconds", 30, "Interval between signal quality polls")
	flag.String("mqtt-broker", "", "MQTT broker URL (empty disables the bridge)")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configFile), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	profile, err := modem.ProfileByName(config.Profile)
	if err != nil {
		logger.Error("Unknown modem profile", "profile", config.Profile, "error", err)
		os.Exit(1)
	}

	linkConfig, err := link.NewConfigBuilder().
		WithATTimeout(5 * time.Second).
		WithDialer(link.SerialDialer{
			PortName: config.SerialPort,
			Mode:     &serial.Mode{BaudRate: config.BaudRate},
		}).
		WithLogger(logger.With("component", "link")).
		Build()
	if err != nil {
		logger.Error("Failed to create link config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := link.New(ctx, linkConfig)
	if err != nil {
		logger.Error("Failed to open modem link", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := sess.Loop(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Modem link lost", "error", err)
			os.Exit(1)
		}
	}()

	m, err := modem.New(sess, profile, modem.Config{
		Device: config.SerialPort,
		APN:    config.APN,
		SimPIN: config.SimPIN,
	}, logger.With("component", "modem"))
	if err != nil {
		logger.Error("Failed to create modem", "error", err)
		os.Exit(1)
	}

	if err := m.Init(ctx); err != nil {
		logger.Error("Modem init failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Modem initialized", "profile", profile.Name())

	if err := m.Ready(ctx); err != nil {
		// Registration often completes after boot; the monitor reports
		// the transition.
		logger.Warn("Modem not network-registered yet", "error", err)
	}

	if q, err := m.SignalQuality(ctx); err != nil {
		logger.Warn("Signal quality check failed", "error", err)
	} else {
		logger.Info("Signal quality", "rssi_dbm", q.RSSI, "known", q.Known)
	}

	bridge := StartBridge(ctx, config.MQTT, m, logger.With("component", "mqtt"))

	mon := modem.NewMonitor(sess, time.Duration(config.SignalPollSeconds)*time.Second, logger.With("component", "monitor"))
	go func() {
		if err := mon.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Monitor stopped", "error", err)
		}
	}()
	go func() {
		for report := range mon.Reports() {
			logger.Debug("Modem report", "type", report.Type, "line", report.Line)
			if bridge != nil {
				bridge.PublishReport(report)
			}
		}
	}()

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger:  logger.With("component", "server"),
			Modem:   m,
			Session: sess,
		},
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
	}

	cancel()
	if bridge != nil {
		bridge.Close()
	}

	logger.Info("Closing modem connection")
	if err := m.Close(); err != nil {
		logger.Error("Failed to close modem", "error", err)
	}
}
