// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/Thermoquad/autothrottle/pkg/mglservo"
	"github.com/spf13/cobra"
)

var (
	moveFull   bool
	moveFormat string
)

var moveCmd = &cobra.Command{
	Use:   "move [position]",
	Short: "Command the servo to a position",
	Long: `Send a single move command and print the servo's acknowledgement.

The position is a 16-bit servo position (0-65535), decimal or 0x-prefixed
hex. With --full the configured full_position is commanded instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMove,
}

func init() {
	rootCmd.AddCommand(moveCmd)
	moveCmd.Flags().BoolVar(&moveFull, "full", false, "Move to the configured full throttle position")
	moveCmd.Flags().StringVarP(&moveFormat, "format", "f", formatText, "Output format: text, json or cbor")
}

// parsePosition parses a servo position argument
func parsePosition(arg string) (uint16, error) {
	v, err := strconv.ParseUint(arg, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q: must be 0-65535", arg)
	}
	return uint16(v), nil
}

func runMove(cmd *cobra.Command, args []string) error {
	if err := validateFormat(moveFormat); err != nil {
		return err
	}
	if moveFull == (len(args) == 1) {
		return errors.New("specify either a position or --full")
	}

	var position uint16
	if !moveFull {
		var err error
		if position, err = parsePosition(args[0]); err != nil {
			return err
		}
	}

	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if moveFull {
		position = s.cfg.FullPosition
	}

	target := mglservo.MoveTo(position)
	status, err := s.controller.Command(target)
	if err != nil {
		return err
	}

	return writeStatus(os.Stdout, moveFormat, target, status, s.controller.OverTorque(status))
}
