// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	controlInterval time.Duration
	controlAssign   bool
	controlLogFile  string
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for driving the throttle servo",
	Long: `Drive the throttle servo from an interactive terminal UI.

Every --interval one command is sent: a poll, or a move while full throttle
is engaged or a typed target is pending. The acknowledged position, torque,
voltage and flags are shown live together with link statistics.

Keys:
  c      toggle full throttle (config full_position)
  enter  type a target position, enter again to send it
  p      log the current position
  t      log the elapsed session time
  q      quit

Frame tracing goes to --log-file, since the terminal is owned by the UI.`,
	Args: cobra.NoArgs,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().DurationVar(&controlInterval, "interval", 100*time.Millisecond, "Time between commands")
	controlCmd.Flags().BoolVar(&controlAssign, "assign", false, "Send assign-servo-number before starting")
	controlCmd.Flags().StringVar(&controlLogFile, "log-file", "", "Write the frame log to this file")
}

func runControl(cmd *cobra.Command, args []string) error {
	if controlInterval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	logOutput = controlLogFile
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	m := initialControlModel(s.controller, s.connInfo, controlInterval)
	if controlAssign {
		if err := s.controller.AssignServoNumber(); err != nil {
			return fmt.Errorf("assign servo number: %w", err)
		}
		m.addLogEntry(fmt.Sprintf("Assigned servo number %d", s.cfg.ServoNumber), false)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()

	// The last tick's command may still be on the wire
	s.controller.Close()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	fmt.Print(s.controller.Statistics().String())
	return nil
}
