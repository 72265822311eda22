package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-simplserial/internal/config"
	"github.com/arloliu/go-simplserial/logger"
	"github.com/arloliu/go-simplserial/serialport"
	"github.com/arloliu/go-simplserial/simplserial"
	"github.com/arloliu/go-simplserial/simulator"
)

// session bundles what every command needs.
type session struct {
	cfg *config.Config
	log logger.Logger
	bus *simplserial.Bus
}

// openSession loads the configuration and opens the bus over either the
// configured serial port or a simulator.
func openSession(cmd *cobra.Command) (*session, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}

	log := logger.NewSlog(cfg.LogLevel(), false)
	logger.SetLogger(log)

	busCfg, err := cfg.BusConfig(log)
	if err != nil {
		return nil, err
	}

	transport, err := openTransport(cfg, log)
	if err != nil {
		return nil, err
	}

	bus, err := simplserial.NewBus(transport, busCfg)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	return &session{cfg: cfg, log: log, bus: bus}, nil
}

func openTransport(cfg *config.Config, log logger.Logger) (simplserial.Transport, error) {
	if cfg.Simulate != "" {
		fx, err := simulator.LoadFixture(cfg.Simulate)
		if err != nil {
			return nil, err
		}

		devices, err := fx.NewDevices()
		if err != nil {
			return nil, err
		}

		log.Info("using simulated bus", "fixture", cfg.Simulate, "devices", len(devices))

		return simulator.NewBus(devices, simulator.WithLogger(log)), nil
	}

	portCfg := serialport.NewConfig(cfg.Port.Name, cfg.Port.BaudRate)
	portCfg.Logger = log

	return serialport.Open(portCfg)
}

func (s *session) close() {
	if err := s.bus.Close(); err != nil {
		s.log.Warn("failed to close bus", "error", err)
	}

	m := s.bus.Metrics()
	s.log.Debug("bus metrics",
		"framesSent", m.FrameSendCount.Load(),
		"framesReceived", m.FrameRecvCount.Load(),
		"checksumErrors", m.ChecksumErrCount.Load(),
		"timeouts", m.TimeoutCount.Load(),
		"retries", m.RetryCount.Load(),
		"portErrors", m.PortErrCount.Load(),
	)
}

// errUsage marks argument errors.
var errUsage = errors.New("invalid argument")

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}
