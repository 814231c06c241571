// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Thermoquad/autothrottle/pkg/mglservo"
)

// Output formats accepted by --format
const (
	formatText = "text"
	formatJSON = "json"
	formatCBOR = "cbor"
)

// statusReport is the machine-readable form of one acknowledgement.
type statusReport struct {
	Command    string              `json:"command"`
	Status     *mglservo.AckStatus `json:"status"`
	OverTorque bool                `json:"over_torque"`
}

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatCBOR:
		return nil
	}
	return fmt.Errorf("unknown format %q (use text, json or cbor)", format)
}

// writeStatus renders an acknowledgement in the requested format. CBOR output
// is the raw encoded AckStatus, suitable for piping.
func writeStatus(w io.Writer, format string, cmd mglservo.PositionCommand, status *mglservo.AckStatus, overTorque bool) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(statusReport{
			Command:    cmd.String(),
			Status:     status,
			OverTorque: overTorque,
		})

	case formatCBOR:
		data, err := mglservo.MarshalAckCBOR(status)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err

	case formatText:
		fmt.Fprintf(w, "%s acknowledged\n", cmd)
		fmt.Fprint(w, mglservo.FormatAck(status))
		if overTorque {
			fmt.Fprintf(w, "  WARNING: over torque (%d)\n", status.Torque)
		}
		return nil
	}
	return validateFormat(format)
}
