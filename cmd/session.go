// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/autothrottle/pkg/throttle"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// session bundles everything a command needs to talk to the servo.
type session struct {
	cfg        *throttle.Config
	conn       Connection
	connInfo   string
	logger     *zap.Logger
	controller *throttle.Controller
}

// logOutput is where the CLI logger writes. Empty disables logging.
var logOutput = "stderr"

// newLogger builds the CLI logger. Frame traffic is only shown with --verbose.
func newLogger(verbose bool, output string) (*zap.Logger, error) {
	if output == "" {
		return zap.NewNop(), nil
	}

	zcfg := zap.NewDevelopmentConfig()
	zcfg.OutputPaths = []string{output}
	zcfg.ErrorOutputPaths = []string{output}
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zcfg.DisableStacktrace = true
	return zcfg.Build()
}

// openSession loads the config, lets the caller adjust it, opens the
// connection and builds a controller on top of it.
func openSession(adjust func(*throttle.Config)) (*session, error) {
	cfg, err := throttle.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(verbose, logOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	conn, connInfo, err := OpenConnection(cfg.ReadTimeout())
	if err != nil {
		logger.Sync()
		return nil, err
	}

	logger.Debug("connection opened",
		zap.String("connection", connInfo),
		zap.Uint8("servo", cfg.ServoNumber),
		zap.Duration("read_timeout", cfg.ReadTimeout()),
	)

	controller := throttle.NewController(conn, *cfg,
		throttle.WithLogger(logger),
		throttle.WithStatistics(throttle.NewStatistics()),
	)

	return &session{
		cfg:        cfg,
		conn:       conn,
		connInfo:   connInfo,
		logger:     logger,
		controller: controller,
	}, nil
}

// Close lets an in-flight command finish before closing the connection
func (s *session) Close() error {
	s.controller.Close()
	s.logger.Sync()
	return s.conn.Close()
}
