// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/autothrottle/pkg/mglservo"
	"github.com/Thermoquad/autothrottle/pkg/throttle"
	"github.com/spf13/cobra"
)

var assignServo uint8

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign the servo number",
	Long: `Send the assign-servo-number frame.

The servo number comes from servo_number in the config file unless --servo
is given. The servo does not acknowledge this frame, so success only means
the frame was written.`,
	Args: cobra.NoArgs,
	RunE: runAssign,
}

func init() {
	rootCmd.AddCommand(assignCmd)
	assignCmd.Flags().Uint8Var(&assignServo, "servo", throttle.DefaultServoNumber, "Servo number to assign (default from config)")
}

func runAssign(cmd *cobra.Command, args []string) error {
	override := cmd.Flags().Changed("servo")

	s, err := openSession(func(cfg *throttle.Config) {
		if override {
			cfg.ServoNumber = assignServo
		}
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.controller.AssignServoNumber(); err != nil {
		return err
	}

	fmt.Printf("Assigned servo number %d\n", s.cfg.ServoNumber)
	fmt.Print(mglservo.FormatFrame(mglservo.EncodeAssignServoNumber(s.cfg.ServoNumber)))
	return nil
}
