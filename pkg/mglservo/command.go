// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mglservo

import "fmt"

// PositionCommand is either a status-only poll or a move to an absolute
// servo position. The zero value is a poll.
type PositionCommand struct {
	move     bool
	position uint16
}

// Poll returns a command that requests servo status without motion
func Poll() PositionCommand {
	return PositionCommand{}
}

// MoveTo returns a command that drives the servo to position
func MoveTo(position uint16) PositionCommand {
	return PositionCommand{move: true, position: position}
}

// IsPoll reports whether the command is a status-only poll
func (c PositionCommand) IsPoll() bool {
	return !c.move
}

// Position returns the target position and true for a move, or 0 and false
// for a poll
func (c PositionCommand) Position() (uint16, bool) {
	if !c.move {
		return 0, false
	}
	return c.position, true
}

// String implements fmt.Stringer
func (c PositionCommand) String() string {
	if !c.move {
		return "Poll"
	}
	return fmt.Sprintf("MoveTo(%d)", c.position)
}
