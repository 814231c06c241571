// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/autothrottle/pkg/mglservo"
	"github.com/Thermoquad/autothrottle/pkg/throttle"
	"github.com/spf13/cobra"
)

var (
	monitorShowAll       bool
	monitorFull          bool
	monitorInterval      time.Duration
	monitorStatsInterval int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Poll the servo continuously and report errors",
	Long: `Exchange one command with the servo every --interval and track the results.

By default only failures (timeouts, truncated or corrupt acknowledgements,
I/O errors) and over-torque readings are printed. Use --show-all to print
every acknowledgement. With --full the configured full_position is
commanded on every cycle instead of a poll.

Statistics summaries are printed every --stats-interval seconds and on exit.
Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorShowAll, "show-all", false, "Show every acknowledgement (not just errors)")
	monitorCmd.Flags().BoolVar(&monitorFull, "full", false, "Command full throttle instead of polling")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 100*time.Millisecond, "Time between commands")
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorInterval <= 0 || monitorStatsInterval <= 0 {
		return fmt.Errorf("--interval and --stats-interval must be positive")
	}

	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("Autothrottle - Monitor\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	fmt.Printf("Servo: %d, interval: %s\n", s.cfg.ServoNumber, monitorInterval)
	fmt.Printf("Statistics interval: %d seconds\n", monitorStatsInterval)
	if monitorShowAll {
		fmt.Printf("Mode: All acknowledgements\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	command := mglservo.Poll()
	if monitorFull {
		command = mglservo.MoveTo(s.cfg.FullPosition)
	}

	m := &monitor{
		ctl:           s.controller,
		command:       command,
		interval:      monitorInterval,
		statsInterval: time.Duration(monitorStatsInterval) * time.Second,
		showAll:       monitorShowAll,
		out:           os.Stdout,
	}
	m.run(ctx)

	fmt.Println()
	fmt.Print(s.controller.Statistics().String())
	return nil
}

// monitor repeats one command on a fixed interval and prints the outcome
type monitor struct {
	ctl           *throttle.Controller
	command       mglservo.PositionCommand
	interval      time.Duration
	statsInterval time.Duration
	showAll       bool
	out           io.Writer
}

func (m *monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(m.statsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			status, err := m.ctl.Command(m.command)
			m.report(time.Now(), status, err)

		case <-statsTicker.C:
			if stats := m.ctl.Statistics(); stats != nil {
				fmt.Fprintln(m.out)
				fmt.Fprint(m.out, stats.String())
				fmt.Fprintln(m.out)
			}
		}
	}
}

// report prints one exchange according to the display mode
func (m *monitor) report(at time.Time, status *mglservo.AckStatus, err error) {
	timestamp := at.Format("15:04:05.000")

	if err != nil {
		fmt.Fprintf(m.out, "[%s] \033[1;31mERROR:\033[0m %s: %v\n", timestamp, m.command, err)
		return
	}

	if m.ctl.OverTorque(status) {
		fmt.Fprintf(m.out, "[%s] \033[1;33mOVER TORQUE:\033[0m torque=%d limit=%d position=%d\n",
			timestamp, status.Torque, m.ctl.Config().OverTorque, status.Position)
		return
	}

	if m.showAll {
		fmt.Fprintf(m.out, "[%s] ACK position=%d voltage=%d torque=%d engaged=%s slipping=%s voltage_alarm=%s\n",
			timestamp, status.Position, status.Voltage, status.Torque,
			yesNo(status.Engaged), yesNo(status.Slipping), yesNo(status.VoltageAlarm))
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
