// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Autothrottle - EFIS Throttle Servo Controller
//
// A CLI tool for commanding a serial throttle servo and displaying its
// acknowledged position, torque, voltage and status flags.

package main

import (
	"os"

	"github.com/Thermoquad/autothrottle/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
